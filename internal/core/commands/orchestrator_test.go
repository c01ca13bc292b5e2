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
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/h2non/filetype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/commands"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	test "github.com/jaycherian/gcp-go-facts-video/internal/testutil"
)

const threadID = "20240101_100000_octopuses_5f3a9c1e"

// run executes a single command against in and returns the chain context.
func run(cmd cor.Command, in interface{}) cor.Context {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, in)
	if cmd.IsExecutable(chainCtx) {
		cmd.Execute(chainCtx)
	}
	return chainCtx
}

func output(t *testing.T, chainCtx cor.Context) model.PipelineState {
	t.Helper()
	require.False(t, chainCtx.HasErrors(), "%v", chainCtx.GetErrors())
	out, ok := chainCtx.Get(cor.CtxOut).(model.PipelineState)
	require.True(t, ok, "got %T", chainCtx.Get(cor.CtxOut))
	return out
}

func failure(t *testing.T, chainCtx cor.Context, name string) error {
	t.Helper()
	err, ok := chainCtx.GetErrors()[name]
	require.True(t, ok, "expected %s to fail", name)
	return err
}

func factState() model.PipelineState {
	return model.NewPipelineState(model.Request{Topic: "octopus stuff", ThreadID: threadID}).
		WithTopic(model.TopicResult{Topic: "octopuses"}).
		WithFact(model.FactResult{ViralFact: "Octopuses have three hearts.", Description: "Two pump blood through the gills."})
}

func TestRequestTriggerReaderInputs(t *testing.T) {
	reader := commands.NewRequestTriggerReader("reader")

	out := output(t, run(reader, "  cats  "))
	assert.Equal(t, "cats", out.UserInput)
	assert.True(t, model.ValidThreadID(out.ThreadID))
	assert.Contains(t, out.ThreadID, "_cats")

	chainCtx := run(reader, `{"topic": "space", "thread_id": "fixed_id"}`)
	out = output(t, chainCtx)
	assert.Equal(t, "space", out.UserInput)
	assert.Equal(t, "fixed_id", out.ThreadID)
	assert.Equal(t, model.Request{Topic: "space", ThreadID: "fixed_id"}, chainCtx.Get(commands.RequestKey))

	out = output(t, run(reader, &model.Request{Topic: "idk", ThreadID: "t1"}))
	assert.Equal(t, "t1", out.ThreadID)
}

func TestRequestTriggerReaderRejectsBadInput(t *testing.T) {
	reader := commands.NewRequestTriggerReader("reader")

	err := failure(t, run(reader, `{"topic": "x", "thread_id": "../escape"}`), "reader")
	assert.ErrorIs(t, err, model.ErrPrecondition)

	err = failure(t, run(reader, `{"topic": `), "reader")
	assert.ErrorIs(t, err, model.ErrPrecondition)

	err = failure(t, run(reader, 42), "reader")
	assert.ErrorIs(t, err, model.ErrPrecondition)
}

func TestResolveTopicAndGenerateFacts(t *testing.T) {
	fakes := test.NewCollaborators(nil, nil)
	start := model.NewPipelineState(model.Request{Topic: "octopus stuff", ThreadID: threadID})

	withTopic := output(t, run(commands.NewResolveTopic("topic", fakes), start))
	assert.Equal(t, "octopuses", withTopic.Topic)
	assert.Equal(t, "octopus stuff", withTopic.UserInput)

	withFact := output(t, run(commands.NewGenerateFacts("facts", fakes), withTopic))
	assert.Equal(t, fakes.Fact.ViralFact, withFact.ViralFact)
	assert.Equal(t, fakes.Fact.Description, withFact.Description)

	err := failure(t, run(commands.NewGenerateFacts("facts", fakes), start), "facts")
	assert.ErrorIs(t, err, model.ErrPrecondition)

	fakes.TopicErr = model.ErrCollaboratorUnavailable
	err = failure(t, run(commands.NewResolveTopic("topic", fakes), start), "topic")
	assert.ErrorIs(t, err, model.ErrCollaboratorUnavailable)
}

func TestGenerateAudioWritesNarration(t *testing.T) {
	root := t.TempDir()
	fakes := test.NewCollaborators(test.WAVBytes(t, 1.5, 8000), nil)

	out := output(t, run(commands.NewGenerateAudio("audio", fakes, root), factState()))
	require.True(t, out.HasAudio())
	assert.Equal(t, filepath.Join(root, threadID, model.AudioFileName), *out.AudioFilepath)
	assert.InDelta(t, 1.5, *out.AudioDuration, 1e-6)
	assert.Equal(t, fakes.Narration.Segments, out.SynthesisDurations)
	assert.FileExists(t, *out.AudioFilepath)
}

func TestGenerateAudioRejectsNonWAV(t *testing.T) {
	fakes := test.NewCollaborators([]byte("ID3 definitely an mp3"), nil)
	cmd := commands.NewGenerateAudio("audio", fakes, t.TempDir())

	err := failure(t, run(cmd, factState()), "audio")
	assert.ErrorIs(t, err, model.ErrContractViolation)
	assert.Equal(t, cor.FailSoftWithSentinel, cmd.GetFailurePolicy())
}

func TestGenerateAudioDegradesInChain(t *testing.T) {
	fakes := test.NewCollaborators(nil, nil)
	fakes.NarrationErr = model.ErrCollaboratorUnavailable
	withAudio := factState().WithAudio("/tmp/old.wav", 3, fakes.Narration.Segments)

	chain := cor.NewBaseChain("narrate")
	chain.AddCommand(commands.NewGenerateAudio("audio", fakes, t.TempDir()))
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, withAudio)
	chain.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.ErrorIs(t, chainCtx.GetWarnings()["audio"], model.ErrCollaboratorUnavailable)
	out := chainCtx.Get(cor.CtxIn).(model.PipelineState)
	assert.False(t, out.HasAudio())
	assert.Nil(t, out.SynthesisDurations)
	assert.Equal(t, "Octopuses have three hearts.", out.ViralFact)
}

func TestWavDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	test.WriteWAV(t, path, 2.25, 16000)
	d, err := commands.WavDuration(path)
	require.NoError(t, err)
	assert.InDelta(t, 2.25, d, 1e-6)

	_, err = commands.WavDuration(filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, model.ErrFileSystem)
}

func TestDeriveImageInstructions(t *testing.T) {
	cmd := commands.NewDeriveImageInstructions("instructions", cloud.DefaultImageInstructions)
	out := output(t, run(cmd, factState()))
	assert.Contains(t, out.ImageInstructions, "octopuses")
	assert.Contains(t, out.ImageInstructions, "Octopuses have three hearts.")
	assert.Equal(t, strings.TrimSpace(out.ImageInstructions), out.ImageInstructions)
}

func TestDeriveImagePrompts(t *testing.T) {
	fakes := test.NewCollaborators(nil, nil)
	cmd := commands.NewDeriveImagePrompts("prompts", fakes)

	err := failure(t, run(cmd, factState()), "prompts")
	assert.ErrorIs(t, err, model.ErrPrecondition)

	in := factState().WithImageInstructions("Deep blues.")
	out := output(t, run(cmd, in))
	assert.Equal(t, fakes.Prompts, out.TxtToImgPrompts)

	fakes.Prompts = []string{"just one"}
	err = failure(t, run(cmd, in), "prompts")
	assert.ErrorIs(t, err, model.ErrContractViolation)
}

func TestGenerateImages(t *testing.T) {
	root := t.TempDir()
	fakes := test.NewCollaborators(nil, test.JPEGBytes(t))
	in := factState().WithImagePrompts([]string{"first", "second"})

	out := output(t, run(commands.NewGenerateImages("images", fakes, root, "1:1"), in))
	require.Len(t, out.ImageFilepaths, 2)
	assert.Equal(t, []string{"first", "second"}, fakes.ImageCalls)
	assert.Equal(t, "1:1", fakes.AspectRatio)
	for n, p := range out.ImageFilepaths {
		assert.Equal(t, filepath.Join(root, threadID, model.ImageFileName(n+1)), p)
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, filetype.Is(data, "png"), "image %d was not transcoded", n+1)
	}
}

func TestGenerateImagesFailures(t *testing.T) {
	fakes := test.NewCollaborators(nil, []byte("<html>quota exceeded</html>"))
	cmd := commands.NewGenerateImages("images", fakes, t.TempDir(), "1:1")

	err := failure(t, run(cmd, factState().WithImagePrompts([]string{"a", "b"})), "images")
	assert.ErrorIs(t, err, model.ErrContractViolation)
	assert.Len(t, fakes.ImageCalls, 1)

	err = failure(t, run(cmd, factState()), "images")
	assert.ErrorIs(t, err, model.ErrPrecondition)

	fakes.ImageErr = errors.Join(model.ErrCollaboratorUnavailable, errors.New("503"))
	err = failure(t, run(cmd, factState().WithImagePrompts([]string{"a", "b"})), "images")
	assert.ErrorIs(t, err, model.ErrCollaboratorUnavailable)
}

func TestEncodePNGLeavesNothingOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), model.ImageFileName(1))

	err := commands.EncodePNG(path, image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, model.ErrFileSystem)
	assert.NoFileExists(t, path)

	require.NoError(t, commands.EncodePNG(path, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, filetype.Is(data, "png"))
}

func TestPersistManifest(t *testing.T) {
	root := t.TempDir()
	in := factState().WithImagePrompts([]string{"a", "b"}).WithImages([]string{"x/image_1.png", "x/image_2.png"})

	chainCtx := run(commands.NewPersistManifest("persist", root), in)
	require.False(t, chainCtx.HasErrors())
	path, ok := chainCtx.Get(cor.CtxOut).(string)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, threadID, model.ManifestFileName), path)

	saved, err := model.LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, chainCtx.Get(commands.ManifestKey), saved)
	assert.Nil(t, saved.AudioFilepath)
	assert.Equal(t, []string{"a", "b"}, saved.TxtToImgPrompts)
}
