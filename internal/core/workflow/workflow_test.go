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

package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-facts-video/internal/testutil"
)

var testTime = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	fakes  *test.Collaborators
	runner *test.RecordingRunner
	video  *workflow.VideoWorkflow
	root   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	config := test.NewConfig(t)
	fakes := test.NewCollaborators(test.WAVBytes(t, 2, 8000), test.PNGBytes(t))
	collaborators := workflow.Collaborators{
		Topics:       fakes,
		Facts:        fakes,
		Narration:    fakes,
		ImagePrompts: fakes,
		Images:       fakes,
	}
	runner := &test.RecordingRunner{}
	facts := workflow.NewFactsWorkflow(config, collaborators)
	render := workflow.NewRenderWorkflow(config, runner, nil)
	return &fixture{
		fakes:  fakes,
		runner: runner,
		video:  workflow.NewVideoWorkflow(facts, render),
		root:   config.Application.OutputRoot,
	}
}

func TestVideoWorkflowEndToEnd(t *testing.T) {
	f := newFixture(t)
	req := model.Request{Topic: "octopus stuff", ThreadID: "20240101_100000_octopus_stuff_c24e8b17"}

	out, err := f.video.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)

	dir := filepath.Join(f.root, req.ThreadID)
	m := out.Manifest
	assert.Equal(t, req.ThreadID, m.ThreadID)
	assert.Equal(t, "octopuses", m.Topic)
	require.True(t, m.HasAudio())
	assert.InDelta(t, 2.0, *m.AudioDuration, 1e-6)
	assert.Equal(t, f.fakes.Prompts, m.TxtToImgPrompts)
	assert.Equal(t, []string{filepath.Join(dir, "image_1.png"), filepath.Join(dir, "image_2.png")}, m.ImageFilepaths)
	assert.NotEmpty(t, m.ImageInstructions)

	saved, err := model.LoadManifest(filepath.Join(dir, model.ManifestFileName))
	require.NoError(t, err)
	assert.Equal(t, m, saved)

	r := out.Render
	assert.Equal(t, filepath.Join(dir, model.FinalFileName), r.OutputPath)
	assert.Equal(t, filepath.Join(dir, model.VideoFileName), r.VideoPath)
	assert.Equal(t, filepath.Join(dir, model.MuxedFileName), r.MuxedPath)
	assert.False(t, r.Plan.Silent)
	assert.InDelta(t, 2.0, r.Plan.Total(), 1e-9)
	assert.Empty(t, r.UploadedObjects)
	assert.FileExists(t, filepath.Join(dir, model.SubtitleFileName))

	// Slide clips and the concat list are removed once the request finishes.
	assert.NoFileExists(t, filepath.Join(dir, model.SegmentFileName(0)))
	assert.NoFileExists(t, filepath.Join(dir, model.ConcatFileName))
	assert.Equal(t, len(r.Plan.Segments)+3, len(f.runner.Outputs))
}

func TestVideoWorkflowSilentWhenNarrationFails(t *testing.T) {
	f := newFixture(t)
	f.fakes.NarrationErr = model.ErrCollaboratorUnavailable

	out, err := f.video.Generate(context.Background(), model.Request{Topic: "cats", ThreadID: "t_silent"})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "generate-audio")

	assert.False(t, out.Manifest.HasAudio())
	assert.Nil(t, out.Manifest.AudioFilepath)
	assert.Nil(t, out.Manifest.AudioDuration)
	assert.Len(t, out.Manifest.ImageFilepaths, 2)

	assert.True(t, out.Render.Plan.Silent)
	assert.Empty(t, out.Render.MuxedPath)
	assert.Empty(t, out.Render.FinalPath)
	assert.Equal(t, out.Render.VideoPath, out.Render.OutputPath)
	assert.NoFileExists(t, filepath.Join(f.root, "t_silent", model.AudioFileName))
}

func TestVideoWorkflowStopsOnBadPrompts(t *testing.T) {
	f := newFixture(t)
	f.fakes.Prompts = []string{"only one"}

	_, err := f.video.Generate(context.Background(), model.Request{Topic: "cats", ThreadID: "t_prompts"})
	assert.ErrorIs(t, err, model.ErrContractViolation)
	assert.Empty(t, f.fakes.ImageCalls)
	assert.Empty(t, f.runner.Outputs)
	assert.NoFileExists(t, filepath.Join(f.root, "t_prompts", model.ManifestFileName))
}

func TestVideoWorkflowStopsWhenTopicFails(t *testing.T) {
	f := newFixture(t)
	f.fakes.TopicErr = model.ErrCollaboratorUnavailable

	_, err := f.video.Generate(context.Background(), model.Request{Topic: "cats", ThreadID: "t_topic"})
	assert.ErrorIs(t, err, model.ErrCollaboratorUnavailable)
	_, statErr := os.Stat(filepath.Join(f.root, "t_topic"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRenderWorkflowRerendersThread(t *testing.T) {
	f := newFixture(t)
	req := model.Request{Topic: "octopus stuff", ThreadID: "t_rerender"}
	first, err := f.video.Generate(context.Background(), req)
	require.NoError(t, err)

	again, err := f.video.Render(context.Background(), filepath.Join(f.root, req.ThreadID, model.ManifestFileName))
	require.NoError(t, err)
	assert.Equal(t, first.Render.OutputPath, again.OutputPath)
	assert.InDelta(t, first.Render.Plan.Total(), again.Plan.Total(), 1e-9)

	_, err = f.video.Render(context.Background(), filepath.Join(f.root, "missing", model.ManifestFileName))
	assert.ErrorIs(t, err, model.ErrFileSystem)
}

func TestFactsWorkflowRun(t *testing.T) {
	config := test.NewConfig(t)
	fakes := test.NewCollaborators(test.WAVBytes(t, 1, 8000), test.PNGBytes(t))
	facts := workflow.NewFactsWorkflow(config, workflow.Collaborators{
		Topics: fakes, Facts: fakes, Narration: fakes, ImagePrompts: fakes, Images: fakes,
	})

	m, err := facts.Run(context.Background(), model.NewRequest("octopus stuff", testTime))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.ThreadID, "20240101_100000_octopus_stuff_"), m.ThreadID)
	assert.FileExists(t, filepath.Join(config.Application.OutputRoot, m.ThreadID, model.ManifestFileName))
}
