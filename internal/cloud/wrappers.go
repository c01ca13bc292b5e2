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

// Package cloud holds the application configuration and the clients for the
// external services the pipeline talks to. This file wraps the genai Models
// service with a per-model rate limit and generation config.
package cloud

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// QuotaAwareGenerativeAIModel binds a model name and its generation config to
// the genai Models service and throttles calls with a token bucket so one
// request never bursts past the project quota.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *rate.Limiter
}

// NewQuotaAwareModel refills one token per second with a burst of
// requestsPerSecond. A non-positive rate disables throttling.
//
// Inputs:
//   - wrapped: The generation config sent with every request.
//   - name: The model name, e.g. "gemini-2.5-flash".
//   - modelHandle: The genai Models service.
//   - requestsPerSecond: The token bucket burst.
//
// Outputs:
//   - *QuotaAwareGenerativeAIModel: The throttled model.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, modelHandle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	// Unlimited unless a rate is configured.
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Second), requestsPerSecond)
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             modelHandle,
		RateLimit:               limiter,
	}
}

// GenerateContent blocks until the limiter grants a token, or ctx ends, and
// then calls the model. Retries are left to GenerateResponse.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}

// GroundingEnabled reports whether the model is configured with Google Search.
func (q *QuotaAwareGenerativeAIModel) GroundingEnabled() bool {
	if q.GenerativeContentConfig == nil {
		return false
	}
	for _, tool := range q.GenerativeContentConfig.Tools {
		if tool != nil && tool.GoogleSearch != nil {
			return true
		}
	}
	return false
}

// NewGenerateContentConfig translates a model entry of the configuration into
// a genai request config.
func NewGenerateContentConfig(values VertexAiLLMModel) *genai.GenerateContentConfig {
	out := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](values.Temperature),
		TopP:             genai.Ptr[float32](values.TopP),
		TopK:             genai.Ptr[float32](values.TopK),
		MaxOutputTokens:  values.MaxTokens,
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: values.OutputFormat,
		Tools:            []*genai.Tool{},
	}
	// System instructions are optional.
	if values.SystemInstructions != "" {
		out.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
	}
	// Grounding with Google Search is what lets the fact model cite sources.
	if values.EnableGoogle {
		out.Tools = append(out.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	return out
}
