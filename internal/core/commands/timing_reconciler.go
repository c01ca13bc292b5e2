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

// Package commands provides the concrete cor.Command stages of the facts
// video workflows. This file defines the timing stage of the render workflow.
//
// Logic Flow:
//  1. The PNG images of the manifest are collected, capped at MaxImages.
//  2. Every image draws a whole number of seconds from the seeded random
//     source.
//  3. With narration, the target is the measured audio duration. Without it
//     the target is the sum of the draws, so nothing is cut.
//  4. timing.Fit keeps the shortest prefix of images that reaches the target
//     and truncates its last slide, or stretches every slide proportionally
//     when even all of them fall short.
//  5. The kept images and their durations become the RenderPlan.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/timing"
)

// TimingReconciler plans the slideshow. The manifest's PNG images, capped at
// MaxImages, each draw a whole number of seconds in
// [MinSecondsPerImage, MaxSecondsPerImage); the draws are then fitted to the
// narration length. Without narration the slideshow keeps its drawn length.
type TimingReconciler struct {
	cor.BaseCommand
	config cloud.Slideshow
	// Draws the per-image durations.
	random *RandomSource
}

// NewTimingReconciler creates the timing stage. random is shared with the
// slideshow assembler so one seed reproduces a whole render.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - config: The per-image duration range and image cap.
//   - random: The source the durations are drawn from.
//
// Outputs:
//   - *TimingReconciler: The ready command.
func NewTimingReconciler(name string, config cloud.Slideshow, random *RandomSource) *TimingReconciler {
	return &TimingReconciler{BaseCommand: *cor.NewBaseCommand(name), config: config, random: random}
}

// Execute plans the slideshow for the manifest in the render state.
//
// Inputs:
//   - context: The *model.RenderState from the manifest reader.
//
// Outputs:
//   - The render state with Plan set.
func (c *TimingReconciler) Execute(context cor.Context) {
	state, err := renderState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	// Only PNG images can be rendered.
	images := state.Manifest.PNGImages(c.config.MaxImages)
	if len(images) == 0 {
		c.Fail(context, fmt.Errorf("%w: thread %s has no png images", model.ErrPrecondition, state.Manifest.ThreadID))
		return
	}

	// Draw a display time per image.
	durations := c.drawDurations(len(images))
	plan := &model.RenderPlan{Silent: !state.Manifest.HasAudio()}
	// Without narration the video is as long as the drawn durations.
	if plan.Silent {
		for _, d := range durations {
			plan.Target += d
		}
	} else {
		plan.Target = *state.Manifest.AudioDuration
	}
	if plan.Target <= 0 {
		c.Fail(context, fmt.Errorf("%w: target duration %.3fs", model.ErrPrecondition, plan.Target))
		return
	}

	// Fit the durations to the target.
	selection, err := timing.Fit(durations, plan.Target)
	if err != nil {
		c.Fail(context, err)
		return
	}
	for i, idx := range selection.Indexes {
		plan.Segments = append(plan.Segments, model.SlideSegment{ImagePath: images[idx], Duration: selection.Durations[i]})
	}
	slog.InfoContext(context.GetContext(), "slideshow planned",
		"thread_id", state.Manifest.ThreadID, "target", plan.Target, "candidates", len(images), "kept", len(plan.Segments), "silent", plan.Silent)

	next := *state
	next.Plan = plan
	c.Succeed(context, &next)
}

func (c *TimingReconciler) drawDurations(n int) []float64 {
	low, high := c.config.MinSecondsPerImage, c.config.MaxSecondsPerImage
	if low < 1 {
		low = 1
	}
	out := make([]float64, n)
	for i := range out {
		d := low
		if high > low {
			d += c.random.IntN(high - low)
		}
		out[i] = float64(d)
	}
	return out
}
