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

// Package workflow assembles the stage commands into the chains the server
// runs: the fact pipeline, the rendering pipeline and the two back to back.
package workflow

import (
	"fmt"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/services"
)

// Collaborators are the external capabilities the fact pipeline depends on.
// Tests substitute fakes for any of them.
type Collaborators struct {
	Topics       services.TopicResolver
	Facts        services.FactGenerator
	Narration    services.NarrationSynthesizer
	ImagePrompts services.ImagePromptGenerator
	Images       services.ImageGenerator
}

// NewCollaborators wires the production services from the configured agent
// models and HTTP providers.
func NewCollaborators(config *cloud.Config, serviceClients *cloud.ServiceClients) (Collaborators, error) {
	models := make(map[string]*cloud.QuotaAwareGenerativeAIModel, 3)
	// Every text service needs its agent model.
	for _, name := range []string{cloud.TopicModel, cloud.FactsModel, cloud.PromptModel} {
		m, ok := serviceClients.AgentModels[name]
		if !ok {
			return Collaborators{}, fmt.Errorf("agent model %q is not configured", name)
		}
		models[name] = m
	}
	// Grounding is required exactly when the facts model has search enabled.
	return Collaborators{
		Topics:       services.NewTopicService(models[cloud.TopicModel], config.PromptTemplates.Topic, config.FallbackTopics),
		Facts:        services.NewFactService(models[cloud.FactsModel], config.PromptTemplates.Facts, models[cloud.FactsModel].GroundingEnabled()),
		Narration:    services.NewNarrationService(config.Narration),
		ImagePrompts: services.NewImagePromptService(models[cloud.PromptModel], config.PromptTemplates.ImagePrompts),
		Images:       services.NewImageService(config.ImageGeneration),
	}, nil
}
