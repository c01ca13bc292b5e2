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

// Package cloud holds the application configuration and the clients for the
// external services the pipeline talks to. This file contains the helpers
// shared by every caller of a generative model, and the configuration loader.
//
// Functions:
//   - LoadConfig: layers the base and runtime TOML files onto a Config.
//   - GenerateResponse: calls a model with retries and token accounting.
//   - GenerateMultiModalResponse: GenerateResponse that returns plain text.
//   - ResponseText: extracts the answer text from a model response.
//   - NewPromptTemplate: parses a prompt with the join and json helpers.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable for specifying the runtime context (e.g., "local", "test", "prod").
	MaxRetries          = 3                   // The maximum number of times to retry a failed API call.
)

// fileExists reports whether in can be stat-ed.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig decodes "<prefix>/.env.toml" and then "<prefix>/.env.<runtime>.toml"
// into baseConfig. The prefix comes from GCP_CONFIG_PREFIX and the runtime from
// GCP_RUNTIME (default "test"). Keys in the runtime file override the base
// file; missing files are skipped.
func LoadConfig(baseConfig interface{}) error {
	// The prefix is a directory; make sure it ends with a separator.
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	// Default to the test runtime so tests need no environment setup.
	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	// e.g. configs/.env.toml and configs/.env.local.toml
	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension
	slog.Debug("loading configuration", "base", baseConfigFileName, "runtime", envConfigFileName)

	// Later files override earlier ones key by key.
	for _, name := range []string{baseConfigFileName, envConfigFileName} {
		if !fileExists(name) {
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
	}
	return nil
}

// ContentGenerator is the part of a generative model the pipeline calls.
// QuotaAwareGenerativeAIModel implements it; tests substitute fakes.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error)
}

// GenerateResponse sends content to model, retrying up to MaxRetries times,
// and records prompt and candidate token usage on the given counters.
//
// Inputs:
//   - ctx: Cancels the call and stops further retries.
//   - inputTokenCounter, outputTokenCounter: Record token usage.
//   - retryCounter: Counts retried calls.
//   - tryCount: The attempt number, starting at 0.
//   - model: The model to call.
//   - content: The request.
//
// Outputs:
//   - *genai.GenerateContentResponse: The first successful response.
//   - error: The last error once retries are exhausted.
func GenerateResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	tryCount int,
	model ContentGenerator,
	content []*genai.Content) (*genai.GenerateContentResponse, error) {
	// Call the model.
	resp, err := model.GenerateContent(ctx, content)
	if err != nil {
		// Retry unless the budget is spent or the caller gave up.
		if tryCount < MaxRetries && ctx.Err() == nil {
			retryCounter.Add(ctx, 1)
			return GenerateResponse(ctx, inputTokenCounter, outputTokenCounter, retryCounter, tryCount+1, model, content)
		}
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("empty response from model")
	}
	// Record token usage for cost tracking.
	if resp.UsageMetadata != nil {
		inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}
	return resp, nil
}

// GenerateMultiModalResponse is GenerateResponse followed by ResponseText.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	tryCount int,
	model ContentGenerator,
	content []*genai.Content) (value string, err error) {
	resp, err := GenerateResponse(ctx, inputTokenCounter, outputTokenCounter, retryCounter, tryCount, model, content)
	if err != nil {
		return "", err
	}
	return ResponseText(resp), nil
}

// ResponseText concatenates the text parts of every candidate and strips a
// surrounding markdown code fence.
func ResponseText(resp *genai.GenerateContentResponse) string {
	var value strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				value.WriteString(part.Text)
			}
		}
	}
	// Models often wrap JSON answers in a markdown fence.
	out := strings.TrimSpace(value.String())
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

// NewTextPart wraps a prompt as user content.
func NewTextPart(in string) []*genai.Content {
	return genai.Text(in)
}

// NewPromptTemplate parses a prompt template with the helpers the default
// prompts rely on: join (strings.Join) and json (compact JSON encoding).
func NewPromptTemplate(name string, text string) (*template.Template, error) {
	return template.New(name).Funcs(template.FuncMap{
		"join": strings.Join,
		"json": func(v interface{}) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}).Parse(text)
}
