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
// video workflows. This file defines the topic resolution stage: the user's
// free text goes to the topic resolver and the resolved topic, with its
// random flag, is merged into the pipeline state.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/services"
)

// ResolveTopic asks the topic resolver what the user wants a fact about.
type ResolveTopic struct {
	cor.BaseCommand
	resolver services.TopicResolver
}

// NewResolveTopic creates the stage around resolver.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - resolver: The topic resolver service.
func NewResolveTopic(name string, resolver services.TopicResolver) *ResolveTopic {
	return &ResolveTopic{BaseCommand: *cor.NewBaseCommand(name), resolver: resolver}
}

// Execute resolves the user input. Any resolver error stops the workflow.
//
// Inputs:
//   - context: The *model.PipelineState from the trigger reader.
//
// Outputs:
//   - The state with Topic and IsRandom set.
func (c *ResolveTopic) Execute(context cor.Context) {
	state, err := pipelineState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	topic, err := c.resolver.ResolveTopic(context.GetContext(), state.UserInput)
	if err != nil {
		c.Fail(context, fmt.Errorf("resolving topic %q: %w", state.UserInput, err))
		return
	}
	c.Succeed(context, state.WithTopic(topic))
}
