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

// Package services holds the collaborators the pipeline calls out to. This
// file defines the fact service.
//
// Logic Flow:
//  1. The fact prompt is rendered with the topic and a one-shot example of the
//     expected JSON.
//  2. The grounded model is called through GenerateResponse, which retries
//     transient failures.
//  3. When RequireGrounding is set, an answer without search results is
//     rejected, since an unsourced fact cannot be trusted.
//  4. The JSON object is cut out of the answer (models like to wrap it in a
//     code fence) and both fields must be present.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// FactService asks a Google Search grounded model for one viral fact and a
// short description of it.
type FactService struct {
	generativeClient
	// RequireGrounding rejects answers that cite no search results.
	RequireGrounding bool
}

// NewFactService creates the service around a Google Search grounded model.
//
// Inputs:
//   - generator: The grounded text model.
//   - promptTemplate: The fact prompt template source.
//   - requireGrounding: Reject answers without grounding chunks.
//
// Outputs:
//   - *FactService: The ready service. An invalid template panics.
func NewFactService(generator cloud.ContentGenerator, promptTemplate string, requireGrounding bool) *FactService {
	return &FactService{
		generativeClient: newGenerativeClient("fact-service", generator, promptTemplate),
		RequireGrounding: requireGrounding,
	}
}

// GenerateFact returns a viral fact about topic and its description.
func (s *FactService) GenerateFact(ctx context.Context, topic string) (model.FactResult, error) {
	params := map[string]interface{}{
		"Topic":   topic,
		// The example shows the model the exact JSON shape to answer with.
		"Example": model.GetExampleFact(),
	}
	resp, err := s.generate(ctx, params)
	if err != nil {
		return model.FactResult{}, err
	}

	// Count the web sources the answer was grounded on.
	sources := groundingSources(resp)
	if s.RequireGrounding && sources == 0 {
		return model.FactResult{}, fmt.Errorf("%w: web search returned no results for %q", model.ErrContractViolation, topic)
	}

	var out model.FactResult
	// Cut the JSON object out of any surrounding prose.
	text := extractJSON(cloud.ResponseText(resp), '{', '}')
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return model.FactResult{}, fmt.Errorf("%w: fact response is not valid JSON: %w", model.ErrContractViolation, err)
	}
	out.ViralFact = strings.TrimSpace(out.ViralFact)
	out.Description = strings.TrimSpace(out.Description)
	// Both fields are needed downstream: one is narrated, the other briefs the artist.
	if out.ViralFact == "" || out.Description == "" {
		return model.FactResult{}, fmt.Errorf("%w: fact response is missing viral_fact or description", model.ErrContractViolation)
	}
	slog.InfoContext(ctx, "fact generated", "topic", topic, "sources", sources)
	return out, nil
}

func groundingSources(resp *genai.GenerateContentResponse) int {
	count := 0
	for _, candidate := range resp.Candidates {
		if candidate != nil && candidate.GroundingMetadata != nil {
			count += len(candidate.GroundingMetadata.GroundingChunks)
		}
	}
	return count
}
