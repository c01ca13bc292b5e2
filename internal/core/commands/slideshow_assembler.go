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
// video workflows. This file defines the slideshow stage.
//
// Logic Flow:
//  1. The plan from TimingReconciler is copied so the input state is never
//     changed. A trailing slide shorter than one frame is folded into the one
//     before it.
//  2. Every slide without an effect picks one of model.TransitionEffects.
//  3. Each slide is rendered to its own clip with ffmpeg-go: the still image is
//     looped for the slide's duration, scaled and padded to the frame, and
//     decorated with its fade, slide or zoom filter.
//  4. The clips are listed in a concat demuxer file and joined without
//     re-encoding into {thread_dir}/video.mp4.
//
// Clips and the list file are registered as temp files and removed when the
// chain context is closed.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// SlideshowAssembler renders one clip per planned slide, each decorated with
// a transition effect picked once for that slide, and concatenates the clips
// in plan order into the silent {thread_dir}/video.mp4.
type SlideshowAssembler struct {
	cor.BaseCommand
	config cloud.Slideshow
	runner FfmpegRunner
	// Picks effects for unassigned slides.
	random *RandomSource
}

// NewSlideshowAssembler creates the slideshow stage. runner executes the
// ffmpeg graphs and random picks the effects.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - config: Frame size, frame rate and effect timings.
//   - runner: Executes the ffmpeg graphs.
//   - random: Picks an effect for slides that have none.
//
// Outputs:
//   - *SlideshowAssembler: The ready command.
func NewSlideshowAssembler(name string, config cloud.Slideshow, runner FfmpegRunner, random *RandomSource) *SlideshowAssembler {
	return &SlideshowAssembler{BaseCommand: *cor.NewBaseCommand(name), config: config, runner: runner, random: random}
}

// Execute renders every planned slide and joins them in plan order.
//
// Inputs:
//   - context: The *model.RenderState with a plan.
//
// Outputs:
//   - The render state with VideoPath set. Segment clips and the concat
//     list are registered as temp files.
func (c *SlideshowAssembler) Execute(context cor.Context) {
	state, err := renderState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	if state.Plan == nil || len(state.Plan.Segments) == 0 {
		c.Fail(context, fmt.Errorf("%w: nothing to assemble", model.ErrPrecondition))
		return
	}

	// Work on a copy; the incoming state is shared with earlier commands.
	plan := *state.Plan
	plan.Segments = make([]model.SlideSegment, len(state.Plan.Segments))
	copy(plan.Segments, state.Plan.Segments)
	plan.Segments = FoldShortTail(plan.Segments, c.config.FPS)

	clips := make([]string, 0, len(plan.Segments))
	for i := range plan.Segments {
		seg := &plan.Segments[i]
		// Unassigned slides draw a random effect.
		if seg.Effect == "" {
			seg.Effect = model.TransitionEffects[c.random.IntN(len(model.TransitionEffects))]
		}
		clip := filepath.Join(state.ThreadDir, model.SegmentFileName(i))
		context.AddTempFile(clip)
		if err := c.runner.Run(context.GetContext(), clip, c.SegmentStream(*seg, clip)); err != nil {
			c.Fail(context, fmt.Errorf("rendering slide %d (%s): %w", i, seg.Effect, err))
			return
		}
		clips = append(clips, clip)
	}

	// Join the clips with the concat demuxer without re-encoding.
	listPath := filepath.Join(state.ThreadDir, model.ConcatFileName)
	context.AddTempFile(listPath)
	if err := WriteConcatList(listPath, clips); err != nil {
		c.Fail(context, err)
		return
	}
	videoPath := filepath.Join(state.ThreadDir, model.VideoFileName)
	if err := c.runner.Run(context.GetContext(), videoPath, ConcatStream(listPath, videoPath)); err != nil {
		c.Fail(context, fmt.Errorf("concatenating slides: %w", err))
		return
	}
	slog.InfoContext(context.GetContext(), "slideshow assembled", "path", videoPath, "slides", len(clips), "duration", plan.Total())

	// Hand the assembled video to the muxer.
	next := *state
	next.Plan = &plan
	next.VideoPath = videoPath
	c.Succeed(context, &next)
}

// FoldShortTail merges trailing slides shorter than one frame into the slide
// before them. ffmpeg renders such a slide as an empty clip. The total
// duration is unchanged and segments is modified in place.
//
// Inputs:
//   - segments: The planned slides.
//   - fps: The output frame rate.
//
// Outputs:
//   - []model.SlideSegment: The segments with sub-frame tails folded.
func FoldShortTail(segments []model.SlideSegment, fps int) []model.SlideSegment {
	if fps <= 0 {
		return segments
	}
	frame := 1 / float64(fps)
	for len(segments) > 1 && segments[len(segments)-1].Duration < frame {
		last := segments[len(segments)-1]
		segments = segments[:len(segments)-1]
		segments[len(segments)-1].Duration += last.Duration
	}
	return segments
}

// SegmentStream builds the ffmpeg graph for one slide: the still image looped
// for the slide's duration, letterboxed to the frame size, with its effect.
func (c *SlideshowAssembler) SegmentStream(seg model.SlideSegment, output string) *ffmpeg.Stream {
	w, h, fps := c.config.Width, c.config.Height, c.config.FPS
	d := seconds(seg.Duration)

	still := ffmpeg.Input(seg.ImagePath, ffmpeg.KwArgs{"loop": 1, "t": d, "framerate": fps}).
		Filter("scale", ffmpeg.Args{strconv.Itoa(w), strconv.Itoa(h)}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"}).
		Filter("pad", ffmpeg.Args{strconv.Itoa(w), strconv.Itoa(h), "(ow-iw)/2", "(oh-ih)/2"}).
		Filter("setsar", ffmpeg.Args{"1"})

	// Layer the effect over the scaled and padded still.
	var video *ffmpeg.Stream
	switch seg.Effect {
	case model.EffectFadeIn:
		video = still.Filter("fade", nil, ffmpeg.KwArgs{"t": "in", "st": 0, "d": seconds(c.config.FadeSeconds)})
	case model.EffectFadeOut:
		start := max(seg.Duration-c.config.FadeSeconds, 0)
		video = still.Filter("fade", nil, ffmpeg.KwArgs{"t": "out", "st": seconds(start), "d": seconds(c.config.FadeSeconds)})
	case model.EffectSlideInLeft, model.EffectSlideInRight, model.EffectSlideOutLeft, model.EffectSlideOutRight:
		video = ffmpeg.Filter([]*ffmpeg.Stream{c.background(d), still}, "overlay",
			ffmpeg.Args{slideExpression(seg.Effect, w, seg.Duration, c.config.SlideSeconds), "0"},
			ffmpeg.KwArgs{"shortest": 1})
	case model.EffectZoomIn:
		video = still.
			Filter("scale", ffmpeg.Args{fmt.Sprintf("trunc(%d*(1+%g*t)/2)*2", w, c.config.ZoomPerSecond), "-2"}, ffmpeg.KwArgs{"eval": "frame"}).
			Filter("crop", ffmpeg.Args{strconv.Itoa(w), strconv.Itoa(h)})
	case model.EffectZoomOut:
		shrinking := still.Filter("scale", ffmpeg.Args{fmt.Sprintf("trunc(%d*max(1-%g*t,0.1)/2)*2", w, c.config.ZoomPerSecond), "-2"}, ffmpeg.KwArgs{"eval": "frame"})
		video = ffmpeg.Filter([]*ffmpeg.Stream{c.background(d), shrinking}, "overlay",
			ffmpeg.Args{"(W-w)/2", "(H-h)/2"},
			ffmpeg.KwArgs{"shortest": 1})
	default:
		video = still
	}

	// Every clip shares codec and frame rate so concat can copy them.
	return video.Output(output, ffmpeg.KwArgs{
		"c:v":     "libx264",
		"pix_fmt": "yuv420p",
		"r":       fps,
		"t":       d,
	}).OverWriteOutput()
}

func (c *SlideshowAssembler) background(d string) *ffmpeg.Stream {
	return ffmpeg.Input(fmt.Sprintf("color=c=black:s=%dx%d:r=%d:d=%s", c.config.Width, c.config.Height, c.config.FPS, d), ffmpeg.KwArgs{"f": "lavfi"})
}

// slideExpression is the overlay x position of a sliding slide: slide-ins
// travel from off screen to 0 over the first slideSeconds, slide-outs travel
// from 0 to off screen over the last slideSeconds.
func slideExpression(effect model.TransitionEffect, width int, duration, slideSeconds float64) string {
	s := seconds(slideSeconds)
	switch effect {
	case model.EffectSlideInLeft:
		return fmt.Sprintf("-%d*(1-min(t/%s,1))", width, s)
	case model.EffectSlideInRight:
		return fmt.Sprintf("%d*(1-min(t/%s,1))", width, s)
	case model.EffectSlideOutLeft:
		return fmt.Sprintf("-%d*max(0,(t-%s)/%s)", width, seconds(max(duration-slideSeconds, 0)), s)
	default:
		return fmt.Sprintf("%d*max(0,(t-%s)/%s)", width, seconds(max(duration-slideSeconds, 0)), s)
	}
}

// ConcatStream joins the clips listed in listPath without re-encoding.
func ConcatStream(listPath string, output string) *ffmpeg.Stream {
	return ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(output, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput()
}

// WriteConcatList writes an ffmpeg concat demuxer list, one clip per line.
func WriteConcatList(path string, clips []string) error {
	var b strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			abs = clip
		}
		// Quote for the concat list syntax.
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", model.ErrFileSystem, path, err)
	}
	return nil
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
