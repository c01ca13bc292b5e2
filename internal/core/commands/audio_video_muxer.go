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
// video workflows. This file defines the stage that adds the narration track
// to the silent slideshow, writing {thread_dir}/video_with_audio.mp4.
package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// AudioVideoMuxer attaches the narration to the silent slideshow. The video
// stream is copied, so its frames and length are untouched, and nothing is
// trimmed. It only runs for threads that have narration.
type AudioVideoMuxer struct {
	cor.BaseCommand
	// Codec settings for the muxed file.
	config cloud.Mux
	runner FfmpegRunner
}

// NewAudioVideoMuxer creates the mux stage with the configured codecs.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - config: The audio and video codec settings.
//   - runner: Executes the ffmpeg graph.
//
// Outputs:
//   - *AudioVideoMuxer: The ready command.
func NewAudioVideoMuxer(name string, config cloud.Mux, runner FfmpegRunner) *AudioVideoMuxer {
	return &AudioVideoMuxer{BaseCommand: *cor.NewBaseCommand(name), config: config, runner: runner}
}

// IsExecutable skips silent threads and states without a slideshow.
func (c *AudioVideoMuxer) IsExecutable(context cor.Context) bool {
	if !c.BaseCommand.IsExecutable(context) {
		return false
	}
	state, err := renderState(context, c.GetInputParam())
	return err == nil && state.VideoPath != "" && state.Manifest.HasAudio()
}

// Execute muxes the slideshow and narration.
//
// Inputs:
//   - context: The *model.RenderState with a slideshow.
//
// Outputs:
//   - The render state with MuxedPath set.
func (c *AudioVideoMuxer) Execute(context cor.Context) {
	state, err := renderState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	// Copy the video stream and encode the narration next to it.
	muxed := filepath.Join(state.ThreadDir, model.MuxedFileName)
	if err := c.runner.Run(context.GetContext(), muxed, c.MuxStream(state.VideoPath, *state.Manifest.AudioFilepath, muxed)); err != nil {
		c.Fail(context, fmt.Errorf("muxing narration: %w", err))
		return
	}
	slog.InfoContext(context.GetContext(), "narration muxed", "path", muxed)

	// Rendering continues from the muxed file.
	next := *state
	next.MuxedPath = muxed
	c.Succeed(context, &next)
}

// MuxStream maps the video of the first input and the audio of the second.
func (c *AudioVideoMuxer) MuxStream(videoPath, audioPath, output string) *ffmpeg.Stream {
	// Video from the slideshow, audio from the narration.
	video := ffmpeg.Input(videoPath)
	audio := ffmpeg.Input(audioPath)
	return ffmpeg.Output([]*ffmpeg.Stream{video.Video(), audio.Audio()}, output, ffmpeg.KwArgs{
		"c:v": c.config.VideoCodec,
		"c:a": c.config.AudioCodec,
	}).OverWriteOutput()
}
