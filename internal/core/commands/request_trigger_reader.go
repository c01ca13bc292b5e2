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

// Package commands provides the concrete cor.Command stages of the facts
// video workflows. This file defines the first stage of the facts workflow.
//
// Logic Flow:
// A request reaches the workflow either from the HTTP API, as a model.Request,
// or from Pub/Sub, as the raw message body. This command turns both into the
// initial pipeline state.
//
//  1. The input is read from the context. A model.Request (or a pointer to one)
//     is used as is. A string that looks like a JSON object is decoded as
//     {"topic", "thread_id"}; any other string is taken as the topic.
//  2. When no thread id came with the request, one is generated here, so a
//     redelivered message that already carries an id keeps its directory.
//  3. The thread id is checked to be a single safe path element.
//  4. The request is stored under RequestKey and a fresh PipelineState becomes
//     the output for the next stage.
package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// RequestTriggerReader turns an incoming request into the initial pipeline
// state. The input is a model.Request, a JSON payload {"topic", "thread_id"}
// as delivered over Pub/Sub, or plain text taken as the topic. A missing
// thread id is generated here, once.
type RequestTriggerReader struct {
	cor.BaseCommand
	// Replaced in tests to pin the thread id.
	now func() time.Time
}

// NewRequestTriggerReader creates the intake command. Generated thread ids are
// stamped with the wall clock.
func NewRequestTriggerReader(name string) *RequestTriggerReader {
	return &RequestTriggerReader{BaseCommand: *cor.NewBaseCommand(name), now: time.Now}
}

// Execute parses the request and seeds the pipeline state. Unparseable input
// and unsafe thread ids fail with model.ErrPrecondition.
//
// Inputs:
//   - context: The request under the input parameter: a model.Request, a JSON
//     object string or a bare topic string.
//
// Outputs:
//   - The initial *model.PipelineState under the output parameter.
func (c *RequestTriggerReader) Execute(context cor.Context) {
	// Decode whatever the caller handed in.
	req, err := c.parse(context.Get(c.GetInputParam()))
	if err != nil {
		c.Fail(context, err)
		return
	}
	// A request without an id is new; stamp it now.
	if req.ThreadID == "" {
		req = model.NewRequest(req.Topic, c.now())
	}
	if !model.ValidThreadID(req.ThreadID) {
		c.Fail(context, fmt.Errorf("%w: invalid thread id %q", model.ErrPrecondition, req.ThreadID))
		return
	}

	context.Add(RequestKey, req)
	c.Succeed(context, model.NewPipelineState(req))
}

func (c *RequestTriggerReader) parse(in interface{}) (model.Request, error) {
	switch v := in.(type) {
	case model.Request:
		return v, nil
	case *model.Request:
		return *v, nil
	case string:
		// Anything that is not a JSON object is taken as the topic itself.
		text := strings.TrimSpace(v)
		if !strings.HasPrefix(text, "{") {
			return model.Request{Topic: text}, nil
		}
		var out model.Request
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return model.Request{}, fmt.Errorf("%w: failed to unmarshal request: %w", model.ErrPrecondition, err)
		}
		return out, nil
	default:
		return model.Request{}, fmt.Errorf("%w: unsupported request type %T", model.ErrPrecondition, in)
	}
}
