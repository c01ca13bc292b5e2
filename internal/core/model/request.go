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

// Package model holds the domain types shared by the pipeline stages. This
// file defines the Request and the thread id that names its directory.
package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	threadTimeLayout = "20060102_150405"
	maxSlugRunes     = 48
	fragLength       = 8
)

var slugSeparators = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Request is a single user ask. It is created once at intake and never changed.
type Request struct {
	Topic    string `json:"topic"`     // Free text as typed by the user.
	ThreadID string `json:"thread_id"` // Namespace for every artifact of this request.
}

// NewRequest stamps a topic with a fresh thread id.
//
// Inputs:
//   - topic: What the user typed. It may be blank or vague.
//   - now: The request time, used for the thread id.
func NewRequest(topic string, now time.Time) Request {
	return Request{Topic: topic, ThreadID: NewThreadID(topic, now)}
}

// NewThreadID builds "yyyymmdd_HHMMSS_<slug>_<frag>". The slug is the topic
// reduced to ASCII letters, digits and underscores and is dropped when nothing
// usable is left. frag is eight random hex digits, so two requests for the same
// topic in the same second still get their own directory.
func NewThreadID(topic string, now time.Time) string {
	// Runs of anything but ASCII letters and digits become one underscore.
	slug := strings.Trim(slugSeparators.ReplaceAllString(topic, "_"), "_")
	// Long topics are cut so the id stays a sane path element.
	if r := []rune(slug); len(r) > maxSlugRunes {
		slug = strings.TrimRight(string(r[:maxSlugRunes]), "_")
	}
	// Random suffix.
	frag := strings.ReplaceAll(uuid.NewString(), "-", "")[:fragLength]
	if slug == "" {
		return now.Format(threadTimeLayout) + "_" + frag
	}
	return now.Format(threadTimeLayout) + "_" + slug + "_" + frag
}

// ValidThreadID reports whether id is safe to use as a single path element.
func ValidThreadID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}
