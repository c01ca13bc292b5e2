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

// Package cor implements a small Chain of Responsibility framework. This file
// defines BaseContext, the Context every workflow run uses, and JoinErrors.
package cor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// BaseContext is the default, map-backed Context. It is not safe for
// concurrent use; a chain is always traversed by a single goroutine.
type BaseContext struct {
	data      map[string]interface{} // Values shared between commands.
	errors    map[string]error       // Fatal errors keyed by command name.
	warnings  map[string]error       // Demoted errors from fail-soft commands.
	tempFiles []string               // Files removed by Close.
	context   context.Context        // Request scoped Go context (cancellation, spans).
}

// NewBaseContext returns an empty Context. Call SetContext before running a
// chain and Close when the run is over.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		warnings:  make(map[string]error),
		tempFiles: make([]string, 0),
	}
}

// SetContext replaces the Go context, e.g. with one carrying a command span.
func (c *BaseContext) SetContext(context context.Context) {
	c.context = context
}

func (c *BaseContext) GetContext() context.Context {
	return c.context
}

// Close removes the tracked temp files. Files that are already gone are
// ignored; other failures are logged.
func (c *BaseContext) Close() {
	for _, file := range c.GetTempFiles() {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove temporary file", "file", file, "error", err)
		}
	}
	c.tempFiles = c.tempFiles[:0]
}

// Add stores value under key and returns the context for chaining.
func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

// AddTempFile registers file for removal by Close.
func (c *BaseContext) AddTempFile(file string) {
	c.tempFiles = append(c.tempFiles, file)
}

func (c *BaseContext) GetTempFiles() []string {
	return c.tempFiles
}

func (c *BaseContext) AddError(key string, err error) {
	c.errors[key] = err
}

func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

// RemoveError forgets the error of key, e.g. when it is demoted to a warning.
func (c *BaseContext) RemoveError(key string) {
	delete(c.errors, key)
}

func (c *BaseContext) AddWarning(key string, err error) {
	c.warnings[key] = err
}

func (c *BaseContext) GetWarnings() map[string]error {
	return c.warnings
}

func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

// HasErrors reports whether any fatal error has been recorded.
func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}

// JoinErrors folds the errors recorded in context into a single error, ordered
// by command name so the message is stable. It returns nil when no error was
// recorded. Each error is prefixed with its command name and stays reachable
// through errors.Is and errors.As.
func JoinErrors(context Context) error {
	recorded := context.GetErrors()
	if len(recorded) == 0 {
		return nil
	}
	keys := make([]string, 0, len(recorded))
	for k := range recorded {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	errs := make([]error, 0, len(keys))
	for _, k := range keys {
		errs = append(errs, fmt.Errorf("%s: %w", k, recorded[k]))
	}
	return errors.Join(errs...)
}
