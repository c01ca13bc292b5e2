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

// Package cor implements a small Chain of Responsibility framework used to
// assemble the video pipeline. A Chain runs an ordered list of Commands over a
// shared Context. Each command reads its primary input from CtxIn and writes
// its primary output to CtxOut; the chain moves CtxOut into CtxIn between
// commands so every stage sees the value produced by its predecessor.
//
// Every command declares a FailurePolicy. FailFast commands abort the chain on
// the first recorded error. FailSoftWithSentinel commands have their error
// demoted to a warning, and if they implement Degradable, they get the chance
// to publish a sentinel output before the chain moves on.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CtxIn is the default key for the primary input of a command. The BaseChain
	// will automatically populate the value of this key with the output from the
	// previous command.
	CtxIn = "__IN__"
	// CtxOut is the default key where a command should place its primary output.
	// The BaseChain will pick up the value from this key to use as the input
	// for the next command.
	CtxOut = "__OUT__"
)

// FailurePolicy tells a chain what to do when a command records an error.
type FailurePolicy int

const (
	// FailFast aborts the chain.
	FailFast FailurePolicy = iota
	// FailSoftWithSentinel keeps the chain running. The error is kept as a
	// warning and the command may publish a sentinel output via Degradable.
	FailSoftWithSentinel
)

func (p FailurePolicy) String() string {
	switch p {
	case FailSoftWithSentinel:
		return "fail-soft"
	default:
		return "fail-fast"
	}
}

// Context is the state shared by the commands of one chain run.
type Context interface {
	// SetContext sets the standard Go `context.Context`. This is primarily
	// used for passing request-scoped data like cancellation signals and
	// OpenTelemetry trace information.
	SetContext(context context.Context)

	// GetContext retrieves the standard Go `context.Context`.
	GetContext() context.Context

	// Add stores a key-value pair in the context. It returns the Context to
	// allow for fluent method chaining.
	Add(key string, value interface{}) Context

	// AddError records an error that occurred within a command. The key should
	// typically be the name of the command that produced the error.
	AddError(key string, err error)

	// GetErrors returns a map of all errors collected during the workflow.
	GetErrors() map[string]error

	// RemoveError clears the error recorded under key.
	RemoveError(key string)

	// AddWarning records a failure that did not abort the chain.
	AddWarning(key string, err error)

	// GetWarnings returns all failures demoted by fail-soft commands.
	GetWarnings() map[string]error

	// Get retrieves a value from the context by its key.
	Get(key string) interface{}

	// Remove deletes a key-value pair from the context.
	Remove(key string)

	// HasErrors checks if any errors have been recorded in the context.
	HasErrors() bool

	// AddTempFile tracks a temporary file that was created during the workflow.
	AddTempFile(file string)

	// GetTempFiles returns a list of all tracked temporary file paths.
	GetTempFiles() []string

	// Close removes every file tracked by AddTempFile.
	Close()
}

// Executable is anything a chain can run.
type Executable interface {
	Execute(context Context)
}

// Command is one step of a chain.
type Command interface {
	Executable

	// GetName returns the unique name of the command, used for logging and telemetry.
	GetName() string

	// GetInputParam returns the key that the command will use to look up its
	// primary input in the Context.
	GetInputParam() string

	// GetOutputParam returns the key that the command will use to store its
	// primary output in the Context.
	GetOutputParam() string

	// IsExecutable checks if the command can be run with the current state of
	// the Context. A command that is not executable is skipped and its input
	// is handed to the next command untouched.
	IsExecutable(context Context) bool

	// GetFailurePolicy reports how a chain should treat errors from this command.
	GetFailurePolicy() FailurePolicy

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Degradable is implemented by fail-soft commands that publish a sentinel
// output when they fail. Degrade is called after the error has been demoted
// to a warning and must leave the command's output in the context.
type Degradable interface {
	Degrade(context Context, err error)
}

// Chain is a Command made of other commands.
type Chain interface {
	Command

	// ContinueOnFailure tells the chain whether to keep running after a
	// fail-fast command records an error.
	ContinueOnFailure(bool) Chain

	// AddCommand adds a new command to the end of the execution sequence.
	AddCommand(command Command) Chain
}
