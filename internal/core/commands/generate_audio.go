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
// video workflows. This file defines the narration stage.
//
// Logic Flow:
// Narration is the only stage that may fail without stopping the workflow.
// The command is created with cor.FailSoftWithSentinel, so the chain records
// its error as a warning and calls Degrade instead of stopping.
//
//  1. The viral fact is sent to the narration synthesizer.
//  2. The returned bytes must sniff as WAV; anything else is a contract
//     violation.
//  3. The audio is written to {thread_dir}/output.wav.
//  4. The duration is measured from the WAV headers rather than trusted from
//     the provider, since it drives the timing of the whole video.
//  5. Path, duration and per-word timing segments are merged into the state.
//
// On failure Degrade publishes the input state with the audio fields cleared,
// and the rest of the workflow produces a silent video.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-audio/wav"
	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/services"
)

// GenerateAudio narrates the viral fact into {thread_dir}/output.wav. It is
// the one fail-soft stage: when synthesis fails the chain keeps going and
// Degrade publishes the state with the audio fields cleared.
type GenerateAudio struct {
	cor.BaseCommand
	// Turns the fact into speech with timing.
	synthesizer services.NarrationSynthesizer
	outputRoot  string
}

// NewGenerateAudio creates the fail-soft narration stage. Audio is written
// below outputRoot in the thread's directory.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - synthesizer: The narration provider.
//   - outputRoot: The directory holding every thread directory.
//
// Outputs:
//   - *GenerateAudio: The ready command, with the FailSoftWithSentinel policy.
func NewGenerateAudio(name string, synthesizer services.NarrationSynthesizer, outputRoot string) *GenerateAudio {
	out := &GenerateAudio{BaseCommand: *cor.NewBaseCommand(name), synthesizer: synthesizer, outputRoot: outputRoot}
	out.Policy = cor.FailSoftWithSentinel
	return out
}

// Execute synthesizes, stores and measures the narration.
//
// Inputs:
//   - context: The *model.PipelineState carrying the fact.
//
// Outputs:
//   - The state with the audio path, duration and timing. On failure Degrade
//     publishes the state with the audio fields cleared.
func (c *GenerateAudio) Execute(context cor.Context) {
	state, err := pipelineState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	if state.ViralFact == "" {
		c.Fail(context, fmt.Errorf("%w: nothing to narrate", model.ErrPrecondition))
		return
	}

	// Narrate the fact.
	narration, err := c.synthesizer.Synthesize(context.GetContext(), state.ViralFact)
	if err != nil {
		c.Fail(context, fmt.Errorf("synthesizing narration: %w", err))
		return
	}
	// Sniff the payload before trusting it.
	if !filetype.Is(narration.Audio, "wav") {
		c.Fail(context, fmt.Errorf("%w: narration audio is not WAV", model.ErrContractViolation))
		return
	}

	// Store the audio in the thread directory.
	dir, err := model.EnsureThreadDir(c.outputRoot, state.ThreadID)
	if err != nil {
		c.Fail(context, err)
		return
	}
	path := filepath.Join(dir, model.AudioFileName)
	if err := os.WriteFile(path, narration.Audio, 0o644); err != nil {
		c.Fail(context, fmt.Errorf("%w: writing %s: %w", model.ErrFileSystem, path, err))
		return
	}

	// The duration comes from the written file, not the provider.
	duration, err := WavDuration(path)
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(context.GetContext(), "narration written", "path", path, "duration", duration, "segments", len(narration.Segments))
	c.Succeed(context, state.WithAudio(path, duration, narration.Segments))
}

// Degrade publishes the input state with the absent-audio sentinel.
func (c *GenerateAudio) Degrade(context cor.Context, _ error) {
	state, err := pipelineState(context, c.GetInputParam())
	if err != nil {
		return
	}
	context.Add(c.GetOutputParam(), state.WithoutAudio())
}

// WavDuration measures a WAV file as frames / sample rate from its headers,
// independently of whatever duration the provider reported.
//
// Inputs:
//   - path: A WAV file.
//
// Outputs:
//   - float64: The playing time in seconds.
//   - error: ErrFileSystem when the file cannot be opened, otherwise
//     ErrContractViolation when it is not usable PCM audio.
func WavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: opening %s: %w", model.ErrFileSystem, path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if err := d.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("%w: reading WAV %s: %w", model.ErrContractViolation, path, err)
	}
	if err := d.Err(); err != nil {
		return 0, fmt.Errorf("%w: reading WAV %s: %w", model.ErrContractViolation, path, err)
	}
	// Bytes per sample frame across all channels.
	frameSize := int64(d.NumChans) * int64(d.BitDepth/8)
	if d.SampleRate == 0 || frameSize == 0 {
		return 0, fmt.Errorf("%w: WAV %s has no usable format chunk", model.ErrContractViolation, path)
	}
	frames := d.PCMLen() / frameSize
	if frames == 0 {
		return 0, fmt.Errorf("%w: WAV %s has no samples", model.ErrContractViolation, path)
	}
	return float64(frames) / float64(d.SampleRate), nil
}
