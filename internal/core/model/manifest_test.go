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

package model_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() model.PipelineState {
	return model.NewPipelineState(model.Request{Topic: "octopus", ThreadID: "20240101_120000_octopus"}).
		WithTopic(model.TopicResult{Topic: "octopus"}).
		WithFact(model.FactResult{ViralFact: "Octopuses have three hearts.", Description: "Two pump blood to the gills."}).
		WithAudio("data/output/20240101_120000_octopus/output.wav", 12.4, []model.TimedSegment{
			{Text: "Octopuses", Start: 0, Duration: 0.61},
			{Text: "have three hearts.", Start: 0.61, Duration: 1.2345678901},
		}).
		WithImageInstructions("Illustrate: Two pump blood to the gills.").
		WithImagePrompts([]string{"an octopus", "three hearts"}).
		WithImages([]string{"data/output/20240101_120000_octopus/image_1.png", "data/output/20240101_120000_octopus/image_2.png"})
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thread", model.ManifestFileName)
	want := sampleState().Manifest()

	require.NoError(t, model.SaveManifest(path, want))
	got, err := model.LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, want, got.State().Manifest())
}

func TestManifestRoundTripWithoutAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), model.ManifestFileName)
	want := sampleState().WithoutAudio().Manifest()

	require.NoError(t, model.SaveManifest(path, want))
	got, err := model.LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.False(t, got.HasAudio())
	assert.Nil(t, got.AudioFilepath)
	assert.Nil(t, got.AudioDuration)
}

func TestManifestUsesPublishedKeys(t *testing.T) {
	data, err := json.Marshal(sampleState().WithoutAudio().Manifest())
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{
		"thread_id", "topic", "viral_fact", "description", "is_random",
		"audio_filepath", "audio_duration", "synthesis_durations",
		"txt2img_prompts", "image_filepaths", "image_instructions",
	}, keys)
	assert.Nil(t, raw["audio_filepath"])
	assert.Nil(t, raw["audio_duration"])
}

func TestSaveManifestOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), model.ManifestFileName)
	first := sampleState().Manifest()
	second := sampleState().WithTopic(model.TopicResult{Topic: "squid"}).Manifest()

	require.NoError(t, model.SaveManifest(path, first))
	require.NoError(t, model.SaveManifest(path, second))

	got, err := model.LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "squid", got.Topic)
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := model.LoadManifest(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, model.ErrFileSystem)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0o644))
	_, err = model.LoadManifest(broken)
	assert.ErrorIs(t, err, model.ErrPrecondition)

	anonymous := filepath.Join(dir, "anonymous.json")
	require.NoError(t, os.WriteFile(anonymous, []byte(`{"topic":"x"}`), 0o644))
	_, err = model.LoadManifest(anonymous)
	assert.ErrorIs(t, err, model.ErrPrecondition)
}

func TestPNGImagesFiltersAndCaps(t *testing.T) {
	m := &model.Manifest{ImageFilepaths: []string{"a.png", "b.jpg", "c.PNG", "d.png", "e.png"}}
	assert.Equal(t, []string{"a.png", "c.PNG", "d.png", "e.png"}, m.PNGImages(0))
	assert.Equal(t, []string{"a.png", "c.PNG"}, m.PNGImages(2))
}
