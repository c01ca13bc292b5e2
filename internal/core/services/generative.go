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

// Package services wraps the external collaborators of the pipeline. This
// file holds the plumbing shared by the Gemini backed services.
package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// generativeClient is the plumbing shared by the services backed by a Gemini
// model: a rate limited model, a parsed prompt template and token counters.
type generativeClient struct {
	name                     string                 // Service name, used for metrics and errors.
	model                    cloud.ContentGenerator // Rate limited Gemini model.
	template                 *template.Template     // Parsed prompt template.
	geminiInputTokenCounter  metric.Int64Counter
	geminiOutputTokenCounter metric.Int64Counter
	geminiRetryCounter       metric.Int64Counter
}

// newGenerativeClient panics on a broken template, as command constructors do:
// templates come from configuration and are checked once at startup.
func newGenerativeClient(name string, generator cloud.ContentGenerator, promptTemplate string) generativeClient {
	tmpl, err := cloud.NewPromptTemplate(name, promptTemplate)
	if err != nil {
		panic(fmt.Sprintf("invalid %s prompt template: %v", name, err))
	}
	meter := otel.Meter(cor.MeterName)
	out := generativeClient{name: name, model: generator, template: tmpl}
	// Token usage and retries are tracked per service.
	out.geminiInputTokenCounter, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.input", name))
	out.geminiOutputTokenCounter, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.output", name))
	out.geminiRetryCounter, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.retry", name))
	return out
}

// render executes the prompt template with params.
func (g *generativeClient) render(params interface{}) (string, error) {
	var buffer bytes.Buffer
	if err := g.template.Execute(&buffer, params); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt template: %w", g.name, err)
	}
	return buffer.String(), nil
}

// generate renders params into the prompt and sends it to the model. Transport
// failures are reported as ErrCollaboratorUnavailable.
func (g *generativeClient) generate(ctx context.Context, params interface{}) (*genai.GenerateContentResponse, error) {
	prompt, err := g.render(params)
	if err != nil {
		return nil, err
	}
	// Retries happen inside GenerateResponse; an error here means they ran out.
	resp, err := cloud.GenerateResponse(ctx, g.geminiInputTokenCounter, g.geminiOutputTokenCounter, g.geminiRetryCounter, 0, g.model, cloud.NewTextPart(prompt))
	if err != nil {
		return nil, fmt.Errorf("%w: %s model: %w", model.ErrCollaboratorUnavailable, g.name, err)
	}
	return resp, nil
}

// extractJSON trims any prose around the first JSON value of kind open/close.
// Grounded responses cannot use the JSON response type, so the model sometimes
// wraps the object in a sentence.
func extractJSON(text string, open, close byte) string {
	// Widest span from the first open to the last close.
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
