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
// video workflows. This file defines the fact generation stage.
//
// Logic Flow:
//  1. The resolved topic is read from the pipeline state. An empty topic means
//     the previous stage did not run and is a precondition failure.
//  2. The fact generator is asked for a search-grounded fact. It returns the
//     short narration text (viral_fact) and a longer description.
//  3. Both are merged into a new pipeline state for the narration stage.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/services"
)

// GenerateFacts finds the fact the video is about.
type GenerateFacts struct {
	cor.BaseCommand
	generator services.FactGenerator
}

// NewGenerateFacts creates the stage around generator.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - generator: The grounded fact service.
//
// Outputs:
//   - *GenerateFacts: The ready command.
func NewGenerateFacts(name string, generator services.FactGenerator) *GenerateFacts {
	return &GenerateFacts{BaseCommand: *cor.NewBaseCommand(name), generator: generator}
}

// Execute asks for a fact about the resolved topic.
//
// Inputs:
//   - context: The *model.PipelineState with a resolved topic.
//
// Outputs:
//   - The state with ViralFact and Description set.
func (c *GenerateFacts) Execute(context cor.Context) {
	state, err := pipelineState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	if state.Topic == "" {
		c.Fail(context, fmt.Errorf("%w: no resolved topic", model.ErrPrecondition))
		return
	}
	// The fact service retries and checks grounding itself.
	fact, err := c.generator.GenerateFact(context.GetContext(), state.Topic)
	if err != nil {
		c.Fail(context, fmt.Errorf("generating fact about %q: %w", state.Topic, err))
		return
	}
	c.Succeed(context, state.WithFact(fact))
}
