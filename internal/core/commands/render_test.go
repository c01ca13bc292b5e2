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

package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/commands"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	test "github.com/jaycherian/gcp-go-facts-video/internal/testutil"
)

func renderOutput(t *testing.T, chainCtx cor.Context) *model.RenderState {
	t.Helper()
	require.False(t, chainCtx.HasErrors(), "%v", chainCtx.GetErrors())
	out, ok := chainCtx.Get(cor.CtxOut).(*model.RenderState)
	require.True(t, ok, "got %T", chainCtx.Get(cor.CtxOut))
	return out
}

func readThread(t *testing.T, withAudio bool) *model.RenderState {
	t.Helper()
	path := test.WriteThread(t, t.TempDir(), threadID, withAudio)
	return renderOutput(t, run(commands.NewManifestReader("reader"), path))
}

func TestManifestReader(t *testing.T) {
	state := readThread(t, true)
	assert.Equal(t, threadID, state.Manifest.ThreadID)
	assert.Equal(t, filepath.Dir(state.ManifestPath), state.ThreadDir)
	assert.Nil(t, state.Plan)

	err := failure(t, run(commands.NewManifestReader("reader"), filepath.Join(t.TempDir(), "result.json")), "reader")
	assert.ErrorIs(t, err, model.ErrFileSystem)

	broken := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0o644))
	err = failure(t, run(commands.NewManifestReader("reader"), broken), "reader")
	assert.ErrorIs(t, err, model.ErrPrecondition)
}

func TestTimingReconcilerFitsNarration(t *testing.T) {
	state := readThread(t, true)
	cfg := cloud.NewConfig().Slideshow
	reconciler := commands.NewTimingReconciler("timing", cfg, commands.NewRandomSource(test.Seed))

	out := renderOutput(t, run(reconciler, state))
	require.NotNil(t, out.Plan)
	assert.False(t, out.Plan.Silent)
	assert.Equal(t, 2.0, out.Plan.Target)
	assert.InDelta(t, 2.0, out.Plan.Total(), 1e-9)
	require.NotEmpty(t, out.Plan.Segments)
	for i, seg := range out.Plan.Segments {
		assert.Equal(t, state.Manifest.ImageFilepaths[i], seg.ImagePath)
		assert.Greater(t, seg.Duration, 0.0)
		assert.Empty(t, seg.Effect)
	}
	assert.Nil(t, state.Plan, "input state must not change")
}

func TestTimingReconcilerSilentKeepsDrawnLength(t *testing.T) {
	state := readThread(t, false)
	cfg := cloud.NewConfig().Slideshow
	reconciler := commands.NewTimingReconciler("timing", cfg, commands.NewRandomSource(test.Seed))

	out := renderOutput(t, run(reconciler, state))
	assert.True(t, out.Plan.Silent)
	require.Len(t, out.Plan.Segments, 2)
	for _, seg := range out.Plan.Segments {
		assert.GreaterOrEqual(t, seg.Duration, float64(cfg.MinSecondsPerImage))
		assert.Less(t, seg.Duration, float64(cfg.MaxSecondsPerImage))
		assert.Equal(t, seg.Duration, float64(int(seg.Duration)))
	}
	assert.InDelta(t, out.Plan.Target, out.Plan.Total(), 1e-9)
}

func TestTimingReconcilerNeedsPNGImages(t *testing.T) {
	state := readThread(t, true)
	state.Manifest.ImageFilepaths = []string{"a.jpg", "b.webp"}
	reconciler := commands.NewTimingReconciler("timing", cloud.NewConfig().Slideshow, commands.NewRandomSource(test.Seed))

	err := failure(t, run(reconciler, state), "timing")
	assert.ErrorIs(t, err, model.ErrPrecondition)
}

func plannedState(t *testing.T, withAudio bool) *model.RenderState {
	t.Helper()
	state := readThread(t, withAudio)
	state.Plan = &model.RenderPlan{Target: 3, Silent: !withAudio, Segments: []model.SlideSegment{
		{ImagePath: state.Manifest.ImageFilepaths[0], Duration: 2},
		{ImagePath: state.Manifest.ImageFilepaths[1], Duration: 1, Effect: model.EffectZoomIn},
	}}
	return state
}

func TestSlideshowAssembler(t *testing.T) {
	state := plannedState(t, true)
	runner := &test.RecordingRunner{}
	assembler := commands.NewSlideshowAssembler("slideshow", cloud.NewConfig().Slideshow, runner, commands.NewRandomSource(test.Seed))

	chainCtx := run(assembler, state)
	out := renderOutput(t, chainCtx)

	videoPath := filepath.Join(state.ThreadDir, model.VideoFileName)
	assert.Equal(t, videoPath, out.VideoPath)
	assert.Equal(t, []string{
		filepath.Join(state.ThreadDir, model.SegmentFileName(0)),
		filepath.Join(state.ThreadDir, model.SegmentFileName(1)),
		videoPath,
	}, runner.Outputs)

	require.Len(t, out.Plan.Segments, 2)
	assert.Contains(t, model.TransitionEffects, out.Plan.Segments[0].Effect)
	assert.Equal(t, model.EffectZoomIn, out.Plan.Segments[1].Effect)
	assert.Empty(t, state.Plan.Segments[0].Effect, "input plan must not change")

	list, err := os.ReadFile(filepath.Join(state.ThreadDir, model.ConcatFileName))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(list), "file '"))
	assert.Contains(t, strings.Join(runner.Args[2], " "), "concat")

	assert.Len(t, chainCtx.GetTempFiles(), 3)
	chainCtx.Close()
	assert.NoFileExists(t, filepath.Join(state.ThreadDir, model.SegmentFileName(0)))
	assert.FileExists(t, videoPath)
}

func TestSlideshowAssemblerFoldsSubFrameTail(t *testing.T) {
	state := plannedState(t, true)
	images := state.Manifest.ImageFilepaths
	state.Plan = &model.RenderPlan{Target: 7.0004, Segments: []model.SlideSegment{
		{ImagePath: images[0], Duration: 4},
		{ImagePath: images[1], Duration: 3},
		{ImagePath: images[0], Duration: 0.0004},
	}}
	runner := &test.RecordingRunner{}
	assembler := commands.NewSlideshowAssembler("slideshow", cloud.NewConfig().Slideshow, runner, commands.NewRandomSource(test.Seed))

	out := renderOutput(t, run(assembler, state))
	require.Len(t, out.Plan.Segments, 2)
	assert.InDelta(t, 3.0004, out.Plan.Segments[1].Duration, 1e-9)
	assert.InDelta(t, 7.0004, out.Plan.Total(), 1e-9)
	assert.Len(t, runner.Outputs, 3)
	for _, args := range runner.Args {
		assert.NotContains(t, args, "0.000")
	}
	assert.Len(t, state.Plan.Segments, 3, "input plan must not change")
}

func TestFoldShortTail(t *testing.T) {
	segs := commands.FoldShortTail([]model.SlideSegment{{Duration: 2}, {Duration: 0.01}, {Duration: 0.02}}, 30)
	require.Len(t, segs, 1)
	assert.InDelta(t, 2.03, segs[0].Duration, 1e-9)

	single := commands.FoldShortTail([]model.SlideSegment{{Duration: 0.01}}, 30)
	assert.Len(t, single, 1)

	kept := commands.FoldShortTail([]model.SlideSegment{{Duration: 2}, {Duration: 0.5}}, 30)
	assert.Len(t, kept, 2)
}

func TestSlideshowAssemblerRunnerFailure(t *testing.T) {
	runner := &test.RecordingRunner{Err: os.ErrPermission}
	assembler := commands.NewSlideshowAssembler("slideshow", cloud.NewConfig().Slideshow, runner, commands.NewRandomSource(test.Seed))

	err := failure(t, run(assembler, plannedState(t, false)), "slideshow")
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Len(t, runner.Outputs, 1)
}

func TestSegmentStreamEffects(t *testing.T) {
	assembler := commands.NewSlideshowAssembler("slideshow", cloud.NewConfig().Slideshow, &test.RecordingRunner{}, commands.NewRandomSource(test.Seed))
	expected := map[model.TransitionEffect]string{
		model.EffectFadeIn:        "t=in",
		model.EffectFadeOut:       "t=out",
		model.EffectSlideInLeft:   "overlay",
		model.EffectSlideOutLeft:  "overlay",
		model.EffectSlideInRight:  "overlay",
		model.EffectSlideOutRight: "overlay",
		model.EffectZoomIn:        "crop",
		model.EffectZoomOut:       "overlay",
	}
	for effect, filter := range expected {
		seg := model.SlideSegment{ImagePath: "image_1.png", Duration: 2.5, Effect: effect}
		args := strings.Join(assembler.SegmentStream(seg, "out.mp4").GetArgs(), " ")
		assert.Contains(t, args, filter, "effect %s", effect)
		assert.Contains(t, args, "image_1.png", "effect %s", effect)
		assert.Contains(t, args, "libx264", "effect %s", effect)
		assert.Contains(t, args, "2.500", "effect %s", effect)
		assert.Contains(t, args, "out.mp4", "effect %s", effect)
	}
}

func TestAudioVideoMuxer(t *testing.T) {
	state := plannedState(t, true)
	state.VideoPath = filepath.Join(state.ThreadDir, model.VideoFileName)
	runner := &test.RecordingRunner{}
	muxer := commands.NewAudioVideoMuxer("mux", cloud.NewConfig().Mux, runner)

	out := renderOutput(t, run(muxer, state))
	assert.Equal(t, filepath.Join(state.ThreadDir, model.MuxedFileName), out.MuxedPath)
	args := strings.Join(runner.Args[0], " ")
	assert.Contains(t, args, "-c:v copy")
	assert.Contains(t, args, "-c:a aac")
	assert.Contains(t, args, model.AudioFileName)
}

func TestAudioVideoMuxerSkipsSilentThreads(t *testing.T) {
	state := plannedState(t, false)
	state.VideoPath = filepath.Join(state.ThreadDir, model.VideoFileName)
	runner := &test.RecordingRunner{}

	chainCtx := run(commands.NewAudioVideoMuxer("mux", cloud.NewConfig().Mux, runner), state)
	assert.False(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(cor.CtxOut))
	assert.Empty(t, runner.Outputs)
}

func TestCues(t *testing.T) {
	cues := commands.Cues([]model.TimedSegment{
		{Text: "Octopuses", Start: 0, Duration: 0.6},
		{Text: "  ", Start: 0.6, Duration: 0.1},
		{Text: "have\nthree", Start: 0.7, Duration: 0.5},
		{Text: "hearts", Start: 1.2, Duration: 0},
		{Text: "blink", Start: 1.3, Duration: 0.001},
		{Text: "late", Start: 61.25, Duration: 1},
	})
	assert.Equal(t, []commands.SubtitleCue{
		{Start: 0, End: 60, Text: "Octopuses"},
		{Start: 70, End: 120, Text: "have three"},
		{Start: 6125, End: 6225, Text: "late"},
	}, cues)
}

func TestCuesNeverOverlap(t *testing.T) {
	cues := commands.Cues([]model.TimedSegment{
		{Text: "three", Start: 0.5, Duration: 0.506},
		{Text: "hearts", Start: 1.004, Duration: 0.4},
		{Text: "blue", Start: 1.4, Duration: 0.3},
	})
	assert.Equal(t, []commands.SubtitleCue{
		{Start: 50, End: 100, Text: "three"},
		{Start: 100, End: 140, Text: "hearts"},
		{Start: 140, End: 170, Text: "blue"},
	}, cues)
	for i := 1; i < len(cues); i++ {
		assert.LessOrEqual(t, cues[i-1].End, cues[i].Start)
	}
}

func TestFormatASSTime(t *testing.T) {
	assert.Equal(t, "0:00:00.00", commands.FormatASSTime(0))
	assert.Equal(t, "0:00:01.25", commands.FormatASSTime(125))
	assert.Equal(t, "0:01:01.25", commands.FormatASSTime(6125))
	assert.Equal(t, "1:00:00.01", commands.FormatASSTime(360001))
}

func TestWriteASS(t *testing.T) {
	compositor := commands.NewSubtitleCompositor("subtitles", cloud.NewConfig().Subtitles, cloud.NewConfig().Slideshow, &test.RecordingRunner{})
	var buf bytes.Buffer
	require.NoError(t, compositor.WriteASS(&buf, []commands.SubtitleCue{{Start: 70, End: 120, Text: `a {b} c\N`}}))

	script := buf.String()
	assert.Contains(t, script, "PlayResX: 1024")
	assert.Contains(t, script, "WrapStyle: 2")
	assert.Contains(t, script, "Style: Default,Arial,24,&H00FFFFFF,")
	assert.Contains(t, script, "Dialogue: 0,0:00:00.70,0:00:01.20,Default,,0,0,0,,a (b) c/N\n")
}

func TestSubtitleCompositor(t *testing.T) {
	state := plannedState(t, true)
	state.VideoPath = filepath.Join(state.ThreadDir, model.VideoFileName)
	runner := &test.RecordingRunner{}
	compositor := commands.NewSubtitleCompositor("subtitles", cloud.NewConfig().Subtitles, cloud.NewConfig().Slideshow, runner)

	chainCtx := run(compositor, state)
	assert.Nil(t, chainCtx.Get(cor.CtxOut), "no muxed video yet")

	state.MuxedPath = filepath.Join(state.ThreadDir, model.MuxedFileName)
	out := renderOutput(t, run(compositor, state))
	assert.Equal(t, filepath.Join(state.ThreadDir, model.FinalFileName), out.FinalPath)
	assert.Equal(t, out.FinalPath, out.Output())

	script, err := os.ReadFile(filepath.Join(state.ThreadDir, model.SubtitleFileName))
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(script), "Dialogue:"))
	args := strings.Join(runner.Args[0], " ")
	assert.Contains(t, args, "ass=")
	assert.Contains(t, args, "-c:a copy")
}

func TestArtifactUploadSkippedWithoutBucket(t *testing.T) {
	state := plannedState(t, true)
	chainCtx := run(commands.NewArtifactUpload("upload", nil, ""), state)
	assert.False(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(cor.CtxOut))
}

func TestExecFfmpegRunnerReportsMissingBinary(t *testing.T) {
	runner := commands.NewExecFfmpegRunner(filepath.Join(t.TempDir(), "no-ffmpeg"))
	err := runner.Run(context.Background(), "out.mp4", commands.ConcatStream("list.txt", "out.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out.mp4")
	assert.Equal(t, commands.DefaultFfmpegCommand, commands.NewExecFfmpegRunner(" ").CommandPath)
}
