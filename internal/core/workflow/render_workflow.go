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
// defines the render workflow, which only reads result.json and the files
// next to it, so any thread can be rendered again later.
package workflow

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/commands"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// RenderWorkflow turns a result.json into video: plan the slide timing,
// assemble the slideshow, mux the narration, burn the subtitles and upload.
// Muxing and subtitles are skipped for threads without narration, and the
// upload when no artifact bucket is configured.
type RenderWorkflow struct {
	cor.BaseCommand
	config        *cloud.Config
	runner        commands.FfmpegRunner
	storageClient *storage.Client
	random        *commands.RandomSource
	chain         cor.Chain
}

// NewRenderWorkflow builds the chain. A nil runner runs the configured ffmpeg
// binary and a nil storageClient disables the upload stage.
//
// Inputs:
//   - config: The application configuration.
//   - runner: Executes every ffmpeg graph.
//   - storageClient: Used for artifact upload. May be nil.
//
// Outputs:
//   - *RenderWorkflow: The assembled chain.
func NewRenderWorkflow(config *cloud.Config, runner commands.FfmpegRunner, storageClient *storage.Client) *RenderWorkflow {
	// Production renders shell out to ffmpeg.
	if runner == nil {
		runner = commands.NewExecFfmpegRunner(config.Application.FfmpegCommand)
	}
	// The random source is shared by timing and effects so one seed reproduces a render.
	out := &RenderWorkflow{
		BaseCommand:   *cor.NewBaseCommand("render-workflow"),
		config:        config,
		runner:        runner,
		storageClient: storageClient,
		random:        commands.NewRandomSource(config.Slideshow.RandomSeed),
	}
	out.initializeChain()
	return out
}

// initializeChain builds the ordered render stages.
func (w *RenderWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	// Stages run in order. Each skips itself when IsExecutable is false.
	out.AddCommand(commands.NewManifestReader("manifest-reader"))
	out.AddCommand(commands.NewTimingReconciler("timing-reconciler", w.config.Slideshow, w.random))
	out.AddCommand(commands.NewSlideshowAssembler("slideshow-assembler", w.config.Slideshow, w.runner, w.random))
	out.AddCommand(commands.NewAudioVideoMuxer("audio-video-muxer", w.config.Mux, w.runner))
	out.AddCommand(commands.NewSubtitleCompositor("subtitle-compositor", w.config.Subtitles, w.config.Slideshow, w.runner))
	out.AddCommand(commands.NewArtifactUpload("artifact-upload", w.storageClient, w.config.Storage.ArtifactBucket))
	w.chain = out
}

// Execute runs the chain. Its input is a manifest path and its final output
// the *model.RenderState.
func (w *RenderWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Render renders the thread whose manifest is at manifestPath.
func (w *RenderWorkflow) Render(ctx context.Context, manifestPath string) (*model.RenderResult, error) {
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	// The manifest path is the chain input.
	chainCtx.Add(cor.CtxIn, manifestPath)

	w.Execute(chainCtx)
	if err := cor.JoinErrors(chainCtx); err != nil {
		return nil, err
	}
	return renderResult(chainCtx)
}

// renderResult extracts the final render state left in CtxIn.
func renderResult(chainCtx cor.Context) (*model.RenderResult, error) {
	state, ok := chainCtx.Get(cor.CtxIn).(*model.RenderState)
	if !ok {
		return nil, fmt.Errorf("render finished without a render state, got %T", chainCtx.Get(cor.CtxIn))
	}
	return state.Result(), nil
}
