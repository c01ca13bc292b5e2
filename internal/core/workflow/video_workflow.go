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
// defines the end-to-end workflow that turns one request into a video.
//
// Logic Flow:
//  1. The facts workflow turns the request into a manifest and leaves its
//     path in CtxIn.
//  2. The render workflow reads that manifest and produces the video.
//  3. Generate collects the manifest, the render result and any warnings of
//     degraded stages into a VideoResult.
package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/commands"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// VideoResult is everything a caller gets back from one request.
type VideoResult struct {
	Manifest *model.Manifest     `json:"manifest"`
	Render   *model.RenderResult `json:"render"`
	Warnings []string            `json:"warnings,omitempty"`
}

// VideoWorkflow runs the fact pipeline and then renders its manifest, as one
// chain. It is what the HTTP front-end and the request subscription execute.
type VideoWorkflow struct {
	cor.BaseCommand
	facts  *FactsWorkflow
	render *RenderWorkflow
	chain  cor.Chain
}

// NewVideoWorkflow chains facts and render. The manifest path that ends the
// facts chain is the input of the render chain.
//
// Inputs:
//   - facts: Produces the manifest.
//   - render: Turns the manifest into a video.
func NewVideoWorkflow(facts *FactsWorkflow, render *RenderWorkflow) *VideoWorkflow {
	out := &VideoWorkflow{
		BaseCommand: *cor.NewBaseCommand("video-workflow"),
		facts:       facts,
		render:      render,
	}
	// The two workflows are commands themselves, so they chain directly.
	chain := cor.NewBaseChain(out.GetName())
	chain.AddCommand(facts)
	chain.AddCommand(render)
	out.chain = chain
	return out
}

// Execute runs both workflows over context.
func (w *VideoWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Generate produces the manifest and the final video for req.
func (w *VideoWorkflow) Generate(ctx context.Context, req model.Request) (*VideoResult, error) {
	// One context per request; Close removes the temp files.
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, req)

	w.Execute(chainCtx)
	// Any fatal stage error fails the whole request.
	if err := cor.JoinErrors(chainCtx); err != nil {
		return nil, err
	}
	logWarnings(ctx, chainCtx)

	// The manifest was published under its own key by the persist stage.
	manifest, ok := chainCtx.Get(commands.ManifestKey).(*model.Manifest)
	if !ok {
		return nil, fmt.Errorf("%s finished without a manifest", w.GetName())
	}
	render, err := renderResult(chainCtx)
	if err != nil {
		return nil, err
	}

	out := &VideoResult{Manifest: manifest, Render: render}
	// Warnings are sorted so responses are stable.
	for name, warning := range chainCtx.GetWarnings() {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", name, warning))
	}
	sort.Strings(out.Warnings)
	return out, nil
}

// Render re-renders an existing thread.
func (w *VideoWorkflow) Render(ctx context.Context, manifestPath string) (*model.RenderResult, error) {
	return w.render.Render(ctx, manifestPath)
}
