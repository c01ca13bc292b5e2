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
// video workflows. This file defines the image prompt stage.
//
// Logic Flow:
//  1. The brief written by DeriveImageInstructions is read from the state.
//  2. The image prompt generator is asked for prompts.
//  3. services.ValidateImagePrompts enforces exactly two non-blank prompts.
//     The workflow does not retry a wrong count; it fails the request.
//  4. The prompts are merged into the state in the order returned.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/services"
)

// DeriveImagePrompts turns the brief into exactly two text-to-image prompts.
// Anything else from the generator is a contract violation and is not retried.
type DeriveImagePrompts struct {
	cor.BaseCommand
	generator services.ImagePromptGenerator
}

// NewDeriveImagePrompts creates the stage around generator.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - generator: The image prompt service.
func NewDeriveImagePrompts(name string, generator services.ImagePromptGenerator) *DeriveImagePrompts {
	return &DeriveImagePrompts{BaseCommand: *cor.NewBaseCommand(name), generator: generator}
}

// Execute derives and validates the two prompts.
//
// Inputs:
//   - context: The *model.PipelineState carrying the fact and instructions.
//
// Outputs:
//   - The state with exactly two TxtToImgPrompts.
func (c *DeriveImagePrompts) Execute(context cor.Context) {
	state, err := pipelineState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	if state.ImageInstructions == "" {
		c.Fail(context, fmt.Errorf("%w: no image instructions", model.ErrPrecondition))
		return
	}
	// Ask the model for prompts that follow the brief.
	prompts, err := c.generator.GenerateImagePrompts(context.GetContext(), state.ImageInstructions)
	if err != nil {
		c.Fail(context, fmt.Errorf("deriving image prompts: %w", err))
		return
	}
	// Blank or missing prompts are a contract violation.
	prompts, err = services.ValidateImagePrompts(prompts)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, state.WithImagePrompts(prompts))
}
