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
// file defines the topic service, which turns the user's free text into a
// topic with a few-shot prompt and a JSON answer.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// TopicService decides whether the user named a topic or left the choice to
// us. The fallback topics only steer the model; nothing here picks a topic
// locally when the model fails.
type TopicService struct {
	generativeClient
	FallbackTopics []string
}

// NewTopicService creates the service. fallbackTopics are listed in the prompt
// as examples of good random topics.
//
// Inputs:
//   - generator: The text model that resolves topics.
//   - promptTemplate: The topic prompt template source.
//   - fallbackTopics: Example topics offered to the model for random picks.
func NewTopicService(generator cloud.ContentGenerator, promptTemplate string, fallbackTopics []string) *TopicService {
	return &TopicService{
		generativeClient: newGenerativeClient("topic-service", generator, promptTemplate),
		FallbackTopics:   fallbackTopics,
	}
}

// ResolveTopic returns the topic named in raw, or one chosen by the model when
// raw asks for a surprise. A blank topic is a contract violation.
func (s *TopicService) ResolveTopic(ctx context.Context, raw string) (model.TopicResult, error) {
	params := map[string]interface{}{
		"Input":          strings.TrimSpace(raw),
		// Few-shot examples cover both a named topic and a request for a surprise.
		"Examples":       model.GetExampleTopics(),
		"FallbackTopics": s.FallbackTopics,
	}
	resp, err := s.generate(ctx, params)
	if err != nil {
		return model.TopicResult{}, err
	}

	var out model.TopicResult
	// Cut the JSON object out of any surrounding prose.
	text := extractJSON(cloud.ResponseText(resp), '{', '}')
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return model.TopicResult{}, fmt.Errorf("%w: topic response is not valid JSON: %w", model.ErrContractViolation, err)
	}
	// A blank topic would send the fact search off with nothing to look for.
	out.Topic = strings.TrimSpace(out.Topic)
	if out.Topic == "" {
		return model.TopicResult{}, fmt.Errorf("%w: topic response has an empty topic", model.ErrContractViolation)
	}
	slog.InfoContext(ctx, "topic resolved", "input", raw, "topic", out.Topic, "is_random", out.IsRandom)
	return out, nil
}
