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

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// ImagePromptCount is the number of prompts every brief must yield.
const ImagePromptCount = 2

// ImagePromptService asks a Gemini model to turn an art-direction brief into
// text-to-image prompts.
type ImagePromptService struct {
	generativeClient
}

// NewImagePromptService creates the service around generator.
//
// Inputs:
//   - generator: The text model that writes the prompts.
//   - promptTemplate: The image prompt template source.
func NewImagePromptService(generator cloud.ContentGenerator, promptTemplate string) *ImagePromptService {
	return &ImagePromptService{generativeClient: newGenerativeClient("image-prompt-service", generator, promptTemplate)}
}

// GenerateImagePrompts fails with ErrContractViolation unless the model answers
// with exactly two non-empty prompts.
func (s *ImagePromptService) GenerateImagePrompts(ctx context.Context, instructions string) ([]string, error) {
	params := map[string]interface{}{
		"Instructions": instructions,
		"Example":      model.GetExampleImagePrompts(),
	}
	resp, err := s.generate(ctx, params)
	if err != nil {
		return nil, err
	}

	var prompts []string
	// The answer is a JSON array of strings.
	text := extractJSON(cloud.ResponseText(resp), '[', ']')
	if err := json.Unmarshal([]byte(text), &prompts); err != nil {
		return nil, fmt.Errorf("%w: image prompts are not a JSON string array: %w", model.ErrContractViolation, err)
	}
	return ValidateImagePrompts(prompts)
}

// ValidateImagePrompts checks the arity and content of generated prompts and
// returns them trimmed.
//
// Inputs:
//   - prompts: The decoded model answer.
//
// Outputs:
//   - []string: The trimmed prompts.
//   - error: ErrContractViolation when the answer is empty or has blank entries.
func ValidateImagePrompts(prompts []string) ([]string, error) {
	// A wrong count is not retried.
	if len(prompts) != ImagePromptCount {
		return nil, fmt.Errorf("%w: expected %d image prompts, got %d", model.ErrContractViolation, ImagePromptCount, len(prompts))
	}
	out := make([]string, 0, len(prompts))
	for i, p := range prompts {
		// Blank prompts would produce an arbitrary image.
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w: image prompt %d is empty", model.ErrContractViolation, i+1)
		}
		out = append(out, p)
	}
	return out, nil
}
