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

package cloud_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"google.golang.org/genai"
)

func TestLoadConfigLayersRuntimeOverBase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(`
[application]
name = "base"
output_root = "/tmp/base"

[slideshow]
max_images = 6
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.unit.toml"), []byte(`
[application]
output_root = "/tmp/unit"

[storage]
artifact_bucket = "videos"
`), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "unit")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))

	assert.Equal(t, "base", config.Application.Name)
	assert.Equal(t, "/tmp/unit", config.Application.OutputRoot)
	assert.Equal(t, "videos", config.Storage.ArtifactBucket)
	assert.Equal(t, 6, config.Slideshow.MaxImages)
	// Untouched defaults survive.
	assert.Equal(t, 30, config.Slideshow.FPS)
	assert.Equal(t, "lily", config.Narration.Voice)
	assert.Len(t, config.FallbackTopics, 10)
}

func TestLoadConfigRejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[application\n"), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "missing")

	assert.Error(t, cloud.LoadConfig(cloud.NewConfig()))
}

func TestNewGenerateContentConfig(t *testing.T) {
	config := cloud.NewConfig()

	facts := cloud.NewGenerateContentConfig(config.AgentModels[cloud.FactsModel])
	require.Len(t, facts.Tools, 1)
	assert.NotNil(t, facts.Tools[0].GoogleSearch)
	assert.Empty(t, facts.ResponseMIMEType)

	topic := cloud.NewGenerateContentConfig(config.AgentModels[cloud.TopicModel])
	assert.Empty(t, topic.Tools)
	assert.Equal(t, "application/json", topic.ResponseMIMEType)
	require.NotNil(t, topic.SystemInstruction)
	assert.NotEmpty(t, topic.SystemInstruction.Parts[0].Text)

	model := cloud.NewQuotaAwareModel(facts, "m", nil, 1)
	assert.True(t, model.GroundingEnabled())
}

type flakyModel struct {
	failures int
	calls    int
}

func (f *flakyModel) GenerateContent(_ context.Context, _ []*genai.Content) (*genai.GenerateContentResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("unavailable")
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{Text: "```json\n{\"topic\":"},
			{Text: "\"cats\"}\n```"},
		}}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 4},
	}, nil
}

func TestGenerateMultiModalResponseRetriesAndStripsFences(t *testing.T) {
	counter, _ := noop.NewMeterProvider().Meter("test").Int64Counter("c")
	model := &flakyModel{failures: 2}

	out, err := cloud.GenerateMultiModalResponse(context.Background(), counter, counter, counter, 0, model, cloud.NewTextPart("hi"))
	require.NoError(t, err)
	assert.Equal(t, `{"topic":"cats"}`, out)
	assert.Equal(t, 3, model.calls)
}

func TestGenerateMultiModalResponseGivesUp(t *testing.T) {
	counter, _ := noop.NewMeterProvider().Meter("test").Int64Counter("c")
	model := &flakyModel{failures: 100}

	_, err := cloud.GenerateMultiModalResponse(context.Background(), counter, counter, counter, 0, model, cloud.NewTextPart("hi"))
	assert.Error(t, err)
	assert.Equal(t, cloud.MaxRetries+1, model.calls)
}

func TestParseGCSURI(t *testing.T) {
	obj, err := cloud.ParseGCSURI("gs://videos/20240101_120000_cats/video_with_audio_subtitle.mp4")
	require.NoError(t, err)
	assert.Equal(t, "videos", obj.Bucket)
	assert.Equal(t, "20240101_120000_cats/video_with_audio_subtitle.mp4", obj.Name)
	assert.Equal(t, "gs://videos/20240101_120000_cats/video_with_audio_subtitle.mp4", obj.URI())

	_, err = cloud.ParseGCSURI("https://example.com/x")
	assert.Error(t, err)
	_, err = cloud.ParseGCSURI("gs://bucket-only")
	assert.Error(t, err)

	assert.Equal(t, "t1/result.json", cloud.ArtifactObjectName("t1", "/data/output/t1/result.json"))
}

func TestPromptTemplateHelpers(t *testing.T) {
	tmpl, err := cloud.NewPromptTemplate("t", `{{join .List ", "}} {{json .Obj}}`)
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, tmpl.Execute(&out, map[string]interface{}{
		"List": []string{"a", "b"},
		"Obj":  map[string]int{"n": 1},
	}))
	assert.Equal(t, `a, b {"n":1}`, out.String())
}

func TestDefaultPromptsParse(t *testing.T) {
	config := cloud.NewConfig()
	for name, text := range map[string]string{
		"topic":              config.PromptTemplates.Topic,
		"facts":              config.PromptTemplates.Facts,
		"image_instructions": config.PromptTemplates.ImageInstructions,
		"image_prompts":      config.PromptTemplates.ImagePrompts,
	} {
		_, err := cloud.NewPromptTemplate(name, text)
		assert.NoError(t, err, name)
	}
}
