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

// Package services holds the collaborators the pipeline calls out to: the
// generative models that resolve topics, find facts and write image prompts,
// the narration and image providers, and the store of finished manifests.
package services

import (
	"context"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// TopicResolver turns free text into a concrete topic.
type TopicResolver interface {
	ResolveTopic(ctx context.Context, raw string) (model.TopicResult, error)
}

// FactGenerator finds a surprising, search-grounded fact about a topic.
type FactGenerator interface {
	GenerateFact(ctx context.Context, topic string) (model.FactResult, error)
}

// NarrationSynthesizer reads text out loud and reports when each word is spoken.
type NarrationSynthesizer interface {
	Synthesize(ctx context.Context, text string) (*model.Narration, error)
}

// ImagePromptGenerator writes exactly two text-to-image prompts for a brief.
type ImagePromptGenerator interface {
	GenerateImagePrompts(ctx context.Context, instructions string) ([]string, error)
}

// ImageGenerator renders one prompt to encoded image bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, aspectRatio string) ([]byte, error)
}
