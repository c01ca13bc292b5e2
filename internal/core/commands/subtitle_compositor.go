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
// video workflows. This file defines the subtitle stage.
//
// Logic Flow:
//  1. The narration timing segments of the manifest become cues in
//     centiseconds. Blank, zero-length and overlapping cues are dropped or
//     trimmed.
//  2. The cues are written as an ASS script sized to the video frame, with one
//     bottom-center style.
//  3. ffmpeg burns the script into the muxed video with the ass filter and
//     copies the audio, writing {thread_dir}/video_with_audio_subtitle.mp4.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// SubtitleCue is one caption in ASS time units (centiseconds).
type SubtitleCue struct {
	// End is exclusive.
	Start int64
	End   int64
	Text  string
}

// SubtitleCompositor burns the narration timing into the muxed video as
// bottom-center, single-line captions. Each caption is visible for
// [start, start+duration) of its timing segment.
type SubtitleCompositor struct {
	cor.BaseCommand
	// Font and margin of the caption style.
	config cloud.Subtitles
	// Frame size, used as the play resolution.
	slideshow cloud.Slideshow
	runner    FfmpegRunner
}

// NewSubtitleCompositor creates the subtitle stage. slideshow supplies the
// frame size used as the ASS play resolution.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - config: The caption style.
//   - slideshow: The slideshow settings, for the frame size.
//   - runner: Executes the ffmpeg graph that burns the captions.
//
// Outputs:
//   - *SubtitleCompositor: The ready command.
func NewSubtitleCompositor(name string, config cloud.Subtitles, slideshow cloud.Slideshow, runner FfmpegRunner) *SubtitleCompositor {
	return &SubtitleCompositor{BaseCommand: *cor.NewBaseCommand(name), config: config, slideshow: slideshow, runner: runner}
}

// IsExecutable requires a muxed video and at least one timing segment.
func (c *SubtitleCompositor) IsExecutable(context cor.Context) bool {
	if !c.BaseCommand.IsExecutable(context) {
		return false
	}
	state, err := renderState(context, c.GetInputParam())
	return err == nil && state.MuxedPath != "" && len(state.Manifest.SynthesisDurations) > 0
}

// Execute writes the ASS script and burns it in.
//
// Inputs:
//   - context: The *model.RenderState with a muxed video.
//
// Outputs:
//   - The render state with FinalPath set.
func (c *SubtitleCompositor) Execute(context cor.Context) {
	state, err := renderState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	// Build the cues from the narration timing.
	cues := Cues(state.Manifest.SynthesisDurations)
	if len(cues) == 0 {
		c.Fail(context, fmt.Errorf("%w: no usable subtitle cues", model.ErrPrecondition))
		return
	}

	// Write the .ass script next to the video.
	assPath := filepath.Join(state.ThreadDir, model.SubtitleFileName)
	f, err := os.Create(assPath)
	if err != nil {
		c.Fail(context, fmt.Errorf("%w: creating %s: %w", model.ErrFileSystem, assPath, err))
		return
	}
	err = c.WriteASS(f, cues)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		c.Fail(context, fmt.Errorf("%w: writing %s: %w", model.ErrFileSystem, assPath, err))
		return
	}

	// Burn the script into the muxed video.
	final := filepath.Join(state.ThreadDir, model.FinalFileName)
	if err := c.runner.Run(context.GetContext(), final, BurnStream(state.MuxedPath, assPath, final)); err != nil {
		c.Fail(context, fmt.Errorf("burning subtitles: %w", err))
		return
	}
	slog.InfoContext(context.GetContext(), "subtitles burned", "path", final, "cues", len(cues))

	next := *state
	next.FinalPath = final
	c.Succeed(context, &next)
}

// Cues converts timing segments into captions. Blank text and non-positive
// durations are dropped, as are cues that round to zero length. Line breaks
// are folded so every caption is a single line. Segments are expected in
// start order; overlapping neighbours are trimmed at the later start.
//
// Inputs:
//   - segments: The narration timing from the manifest.
//
// Outputs:
//   - []SubtitleCue: The cues to write, in order and without overlap.
func Cues(segments []model.TimedSegment) []SubtitleCue {
	out := make([]SubtitleCue, 0, len(segments))
	for _, s := range segments {
		// Collapse whitespace and drop empty or untimed segments.
		text := strings.Join(strings.Fields(s.Text), " ")
		if text == "" || s.Duration <= 0 || s.Start < 0 {
			continue
		}
		cue := SubtitleCue{
			Start: centiseconds(s.Start),
			End:   centiseconds(s.End()),
			Text:  text,
		}
		if cue.End <= cue.Start {
			continue
		}
		out = append(out, cue)
	}

	// A cue ends no later than the next one starts, so libass never stacks two.
	kept := out[:0]
	for i, cue := range out {
		if i+1 < len(out) && cue.End > out[i+1].Start {
			cue.End = out[i+1].Start
		}
		if cue.End > cue.Start {
			kept = append(kept, cue)
		}
	}
	return kept
}

// WriteASS renders cues as an Advanced SubStation Alpha script: white text on
// an opaque black box, anchored bottom-center, with wrapping disabled.
func (c *SubtitleCompositor) WriteASS(w io.Writer, cues []SubtitleCue) error {
	var b strings.Builder
	// Script header sized to the slideshow frame.
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", c.slideshow.Width)
	fmt.Fprintf(&b, "PlayResY: %d\n", c.slideshow.Height)
	b.WriteString("WrapStyle: 2\n")
	b.WriteString("ScaledBorderAndShadow: yes\n\n")

	// One bottom-centred style with an opaque box.
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, " +
		"Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, " +
		"Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Default,%s,%d,&H00FFFFFF,&H00FFFFFF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,3,4,0,2,10,10,%d,1\n\n",
		c.config.FontName, c.config.FontSize, c.config.MarginV)

	// One dialogue line per cue.
	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, cue := range cues {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", FormatASSTime(cue.Start), FormatASSTime(cue.End), escapeASS(cue.Text))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// BurnStream re-encodes the video with the ass filter and copies the audio.
func BurnStream(videoPath, assPath, output string) *ffmpeg.Stream {
	in := ffmpeg.Input(videoPath)
	captioned := in.Video().Filter("ass", ffmpeg.Args{assPath})
	return ffmpeg.Output([]*ffmpeg.Stream{captioned, in.Audio()}, output, ffmpeg.KwArgs{
		"c:v":     "libx264",
		"pix_fmt": "yuv420p",
		"c:a":     "copy",
	}).OverWriteOutput()
}

// FormatASSTime renders centiseconds as H:MM:SS.cc.
func FormatASSTime(cs int64) string {
	h := cs / 360000
	m := cs / 6000 % 60
	s := cs / 100 % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}

func centiseconds(v float64) int64 {
	return int64(math.Round(v * 100))
}

// escapeASS keeps caption text literal: braces would open override blocks and
// a backslash could start \N or \h.
func escapeASS(text string) string {
	return strings.NewReplacer("{", "(", "}", ")", `\`, "/").Replace(text)
}
