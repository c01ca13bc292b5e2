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

// Package workflow assembles the stage commands into chains. This file
// defines the facts workflow.
//
// Logic Flow:
//  1. The request is turned into the initial state and gets its thread id.
//  2. The topic is resolved and a grounded fact is found for it.
//  3. The fact is narrated. This is the only stage allowed to fail; the chain
//     then carries on without audio.
//  4. An art brief is rendered, turned into two image prompts, and both images
//     are generated.
//  5. The state is persisted as {thread_dir}/result.json.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/commands"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// FactsWorkflow runs the fact pipeline: request, topic, fact, narration,
// image brief, image prompts, images and finally result.json. Every stage
// except narration stops the chain on failure.
type FactsWorkflow struct {
	cor.BaseCommand
	config        *cloud.Config
	collaborators Collaborators
	chain         cor.Chain
}

// NewFactsWorkflow builds the chain once. Files are written below
// config.Application.OutputRoot.
//
// Inputs:
//   - config: The application configuration.
//   - collaborators: The services the stages call.
//
// Outputs:
//   - *FactsWorkflow: The assembled chain.
func NewFactsWorkflow(config *cloud.Config, collaborators Collaborators) *FactsWorkflow {
	out := &FactsWorkflow{
		BaseCommand:   *cor.NewBaseCommand("facts-workflow"),
		config:        config,
		collaborators: collaborators,
	}
	out.initializeChain()
	return out
}

func (w *FactsWorkflow) initializeChain() {
	root := w.config.Application.OutputRoot
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewRequestTriggerReader("request-trigger-reader"))
	out.AddCommand(commands.NewResolveTopic("resolve-topic", w.collaborators.Topics))
	out.AddCommand(commands.NewGenerateFacts("generate-facts", w.collaborators.Facts))
	out.AddCommand(commands.NewGenerateAudio("generate-audio", w.collaborators.Narration, root))
	out.AddCommand(commands.NewDeriveImageInstructions("derive-image-instructions", w.config.PromptTemplates.ImageInstructions))
	out.AddCommand(commands.NewDeriveImagePrompts("derive-image-prompts", w.collaborators.ImagePrompts))
	out.AddCommand(commands.NewGenerateImages("generate-images", w.collaborators.Images, root, w.config.ImageGeneration.AspectRatio))
	out.AddCommand(commands.NewPersistManifest("persist-manifest", root))
	w.chain = out
}

// Execute runs the chain over context. Its final output is the manifest path.
func (w *FactsWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Run executes the pipeline for one request and returns the persisted
// manifest. A degraded narration stage is logged, not returned.
func (w *FactsWorkflow) Run(ctx context.Context, req model.Request) (*model.Manifest, error) {
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, req)

	w.Execute(chainCtx)
	if err := cor.JoinErrors(chainCtx); err != nil {
		return nil, err
	}
	logWarnings(ctx, chainCtx)

	manifest, ok := chainCtx.Get(commands.ManifestKey).(*model.Manifest)
	if !ok {
		return nil, fmt.Errorf("%s finished without a manifest", w.GetName())
	}
	return manifest, nil
}

func logWarnings(ctx context.Context, chainCtx cor.Context) {
	for name, err := range chainCtx.GetWarnings() {
		slog.WarnContext(ctx, "stage degraded", "command", name, "error", err)
	}
}
