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
// video workflows. This file defines the stage that writes the art-direction
// brief. The brief is a template rendered from the topic, the viral fact and
// its description, so this stage has no external calls.
package commands

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// DeriveImageInstructions renders the art-direction brief from the fact. It
// makes no calls and writes no files.
type DeriveImageInstructions struct {
	cor.BaseCommand
	// Parsed once at construction.
	template *template.Template
}

// NewDeriveImageInstructions parses promptTemplate once. An invalid template
// is a programming error in the configuration and panics at startup.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - promptTemplate: The image_instructions template source.
//
// Outputs:
//   - *DeriveImageInstructions: The ready command.
func NewDeriveImageInstructions(name string, promptTemplate string) *DeriveImageInstructions {
	tmpl, err := cloud.NewPromptTemplate(name, promptTemplate)
	if err != nil {
		panic(fmt.Sprintf("invalid image instructions template: %v", err))
	}
	return &DeriveImageInstructions{BaseCommand: *cor.NewBaseCommand(name), template: tmpl}
}

// Execute renders the brief and trims surrounding whitespace.
//
// Inputs:
//   - context: The *model.PipelineState carrying the fact.
//
// Outputs:
//   - The state with ImageInstructions set. No model is called.
func (c *DeriveImageInstructions) Execute(context cor.Context) {
	state, err := pipelineState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	// The brief only depends on the fact.
	params := map[string]interface{}{
		"Topic":       state.Topic,
		"ViralFact":   state.ViralFact,
		"Description": state.Description,
	}
	var buffer bytes.Buffer
	if err := c.template.Execute(&buffer, params); err != nil {
		c.Fail(context, fmt.Errorf("%w: rendering image instructions: %w", model.ErrPrecondition, err))
		return
	}
	c.Succeed(context, state.WithImageInstructions(strings.TrimSpace(buffer.String())))
}
