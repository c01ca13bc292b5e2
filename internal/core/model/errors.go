// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import "errors"

// Error classes shared by every stage. Stages wrap one of these with %w so a
// caller can classify a failure with errors.Is.
var (
	// ErrContractViolation marks a collaborator that answered with structurally
	// invalid output: unparsable JSON, wrong arity, empty fields, bad media bytes.
	ErrContractViolation = errors.New("collaborator contract violation")

	// ErrCollaboratorUnavailable marks a transport or provider failure.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrPrecondition marks input a component refuses to work with, such as an
	// empty image set entering timing reconciliation.
	ErrPrecondition = errors.New("precondition violation")

	// ErrFileSystem marks a missing manifest or an unwritable output directory.
	ErrFileSystem = errors.New("file system error")
)
