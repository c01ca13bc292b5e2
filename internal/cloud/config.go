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
// external services the pipeline talks to. Config is decoded from layered TOML
// files (see LoadConfig); NewConfig supplies a default for every setting so a
// missing or partial file still yields a runnable configuration.
//
// Structs:
//   - PromptTemplates: text/template sources for the generative prompts.
//   - VertexAiLLMModel: one Gemini model with its sampling and quota settings.
//   - TopicSubscription: a Pub/Sub subscription feeding requests.
//   - Storage: the artifact bucket and signed URL settings.
//   - Narration, ImageGeneration: the speech and image providers.
//   - Slideshow, Mux, Subtitles: the rendering parameters.
//   - Telemetry: where traces and metrics go.
//   - Config: the top-level struct that aggregates all of the above.
//
// Functions:
//   - NewConfig: a constructor returning a Config filled with defaults.
package cloud

import (
	"os"
	"time"

	"google.golang.org/genai"
)

// Logical names of the agent models used by the fact pipeline.
const (
	TopicModel  = "topic"
	FactsModel  = "facts"
	PromptModel = "prompts"
)

// RequestSubscription is the logical name of the Pub/Sub subscription that
// receives video requests.
const RequestSubscription = "TopicRequests"

// DefaultSafetySettings blocks only high-probability harmful content.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
}

// PromptTemplates holds the prompt sources. Each is parsed with
// NewPromptTemplate, which adds the join and json helpers.
type PromptTemplates struct {
	Topic             string `toml:"topic"`              // Topic resolution prompt. Fields: .Input, .Examples, .FallbackTopics.
	Facts             string `toml:"facts"`              // Fact generation prompt. Fields: .Topic, .Example.
	ImageInstructions string `toml:"image_instructions"` // Art direction brief. Fields: .Topic, .ViralFact, .Description.
	ImagePrompts      string `toml:"image_prompts"`      // Image prompt generation. Fields: .Instructions, .Example.
}

// VertexAiLLMModel configures one entry of the agent_models table.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // Response MIME type, e.g. application/json.
	EnableGoogle       bool    `toml:"enable_google"`       // Ground answers with Google Search.
	RateLimit          int     `toml:"rate_limit"`          // Burst of requests per second.
}

// TopicSubscription configures one entry of the topic_subscriptions table.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Upper bound for one message's pipeline run.
}

// Storage configures artifact uploads and the signed URLs handed out for them.
type Storage struct {
	ArtifactBucket string `toml:"artifact_bucket"`        // Bucket finished videos are uploaded to. Empty disables upload.
	Endpoint       string `toml:"endpoint"`               // Optional endpoint override, e.g. a local emulator.
	SignedURLTTL   int    `toml:"signed_url_ttl_minutes"` // Lifetime of signed download URLs, in minutes.
}

// Narration configures the speech synthesis provider.
type Narration struct {
	Endpoint         string `toml:"endpoint"`           // Speech synthesis URL.
	APIKeyEnv        string `toml:"api_key_env"`        // Environment variable holding the API key.
	Voice            string `toml:"voice"`              // Provider voice id.
	Format           string `toml:"format"`             // Requested audio format, "wav".
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Bound on one synthesis call.
}

// ImageGeneration configures the text-to-image provider.
type ImageGeneration struct {
	Endpoint         string `toml:"endpoint"`           // Image generation URL.
	APIKeyEnv        string `toml:"api_key_env"`        // Environment variable holding the API key.
	AspectRatio      string `toml:"aspect_ratio"`       // Requested for every image, e.g. "9:16".
	RateLimit        int    `toml:"rate_limit"`         // Requests per second.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Bound on one image call.
}

// Slideshow configures the slideshow assembler and timing reconciler.
type Slideshow struct {
	MaxImages          int     `toml:"max_images"`            // Candidate images considered. Zero keeps all.
	MinSecondsPerImage int     `toml:"min_seconds_per_image"` // Inclusive.
	MaxSecondsPerImage int     `toml:"max_seconds_per_image"` // Exclusive.
	FPS                int     `toml:"fps"`                   // Output frame rate.
	Width              int     `toml:"width"`                 // Output frame width in pixels.
	Height             int     `toml:"height"`                // Output frame height in pixels.
	FadeSeconds        float64 `toml:"fade_seconds"`          // Length of the fade effects.
	SlideSeconds       float64 `toml:"slide_seconds"`         // Length of the slide-in and slide-out motion.
	ZoomPerSecond      float64 `toml:"zoom_per_second"`       // Relative scale change per second for the zoom effects.
	RandomSeed         uint64  `toml:"random_seed"`           // Zero seeds from the clock.
}

// Mux selects the codecs used when the narration is added to the slideshow.
type Mux struct {
	VideoCodec string `toml:"video_codec"` // e.g. "copy" to keep the slideshow stream.
	AudioCodec string `toml:"audio_codec"` // e.g. "aac".
}

// Subtitles configures the burned-in caption style.
type Subtitles struct {
	FontName string `toml:"font_name"` // Must be installed where ffmpeg runs.
	FontSize int    `toml:"font_size"` // In script pixels.
	MarginV  int    `toml:"margin_v"`  // Distance from the bottom edge.
}

// Telemetry selects the OpenTelemetry exporter.
type Telemetry struct {
	Exporter string `toml:"exporter"` // "gcp" or "none".
}

// Config is the top-level configuration struct, mirroring the TOML layout.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		OutputRoot                string `toml:"output_root"`                  // Parent of every thread directory.
		FfmpegCommand             string `toml:"ffmpeg_command"`               // Path or name of the ffmpeg binary.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
		Port                      int    `toml:"port"`                         // HTTP listen port.
	} `toml:"application"`
	Storage            Storage                      `toml:"storage"`             // Artifact bucket and signed URLs.
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`    // Prompt sources. Empty entries keep the defaults.
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by logical name, e.g. "TopicRequests".
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`        // Keyed by logical name, e.g. "facts".
	Narration          Narration                    `toml:"narration"`           // Speech provider.
	ImageGeneration    ImageGeneration              `toml:"image_generation"`    // Image provider.
	Slideshow          Slideshow                    `toml:"slideshow"`           // Slideshow rendering.
	Mux                Mux                          `toml:"mux"`                 // Narration muxing.
	Subtitles          Subtitles                    `toml:"subtitles"`           // Caption style.
	Telemetry          Telemetry                    `toml:"telemetry"`           // OpenTelemetry exporter.
	FallbackTopics     []string                     `toml:"fallback_topics"`     // Offered to the topic model for random picks.
}

// NewConfig returns a Config filled with defaults. Values decoded by LoadConfig
// override them key by key.
func NewConfig() *Config {
	c := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels: map[string]VertexAiLLMModel{
			TopicModel: {
				Model:        "gemini-2.0-flash-lite",
				Temperature:  0.7,
				TopP:         0.95,
				TopK:         40,
				MaxTokens:    256,
				OutputFormat: "application/json",
				RateLimit:    5,
				SystemInstructions: "You are a helpful assistant that determines if a user has a specific topic in mind. " +
					"Never add details to a topic the user gave you.",
			},
			FactsModel: {
				Model:        "gemini-2.0-flash",
				Temperature:  0.9,
				TopP:         0.95,
				TopK:         40,
				MaxTokens:    1024,
				EnableGoogle: true,
				RateLimit:    5,
				SystemInstructions: "You are a curator of fascinating and unusual facts. When given a topic, search the web " +
					"for the most interesting, surprising, or weird facts about it. Focus on lesser-known information " +
					"that would intrigue people.",
			},
			PromptModel: {
				Model:              "gemini-2.0-flash",
				Temperature:        1.0,
				TopP:               0.95,
				TopK:               40,
				MaxTokens:          512,
				OutputFormat:       "application/json",
				RateLimit:          5,
				SystemInstructions: "You write prompts for a text-to-image model. Prompts are vivid, concrete and contain no text overlays.",
			},
		},
		PromptTemplates: PromptTemplates{
			Topic:             DefaultTopicPrompt,
			Facts:             DefaultFactsPrompt,
			ImageInstructions: DefaultImageInstructions,
			ImagePrompts:      DefaultImagePromptsPrompt,
		},
		Narration: Narration{
			Endpoint:         "https://api.lmnt.com/v1/ai/speech",
			APIKeyEnv:        "LMNT_API_KEY",
			Voice:            "lily",
			Format:           "wav",
			TimeoutInSeconds: 60,
		},
		ImageGeneration: ImageGeneration{
			Endpoint:         "https://api.segmind.com/v1/fast-flux-schnell",
			APIKeyEnv:        "SEGMIND_API_KEY",
			AspectRatio:      "1:1",
			RateLimit:        1,
			TimeoutInSeconds: 120,
		},
		Slideshow: Slideshow{
			MaxImages:          10,
			MinSecondsPerImage: 1,
			MaxSecondsPerImage: 5,
			FPS:                30,
			Width:              1024,
			Height:             1024,
			FadeSeconds:        0.3,
			SlideSeconds:       0.5,
			ZoomPerSecond:      0.06,
		},
		Mux:       Mux{VideoCodec: "copy", AudioCodec: "aac"},
		Subtitles: Subtitles{FontName: "Arial", FontSize: 24, MarginV: 40},
		Telemetry: Telemetry{Exporter: "gcp"},
		FallbackTopics: []string{
			"cats", "space", "coffee", "penguins", "chocolate",
			"volcanoes", "dinosaurs", "ocean", "rainforest", "ancient egypt",
		},
	}
	c.Application.Name = "facts-video"
	c.Application.GoogleLocation = "us-central1"
	c.Application.OutputRoot = "data/output"
	c.Application.FfmpegCommand = "ffmpeg"
	c.Application.Port = 8080
	c.Storage.SignedURLTTL = 15
	return c
}

// APIKey reads the narration provider key from the environment.
func (n Narration) APIKey() string {
	return os.Getenv(n.APIKeyEnv)
}

// Timeout bounds one synthesis request.
func (n Narration) Timeout() time.Duration {
	return time.Duration(n.TimeoutInSeconds) * time.Second
}

// APIKey reads the image provider key from the environment.
func (i ImageGeneration) APIKey() string {
	return os.Getenv(i.APIKeyEnv)
}

// Timeout bounds one image request.
func (i ImageGeneration) Timeout() time.Duration {
	return time.Duration(i.TimeoutInSeconds) * time.Second
}

// SignedURLExpiry is how long a signed artifact URL stays valid.
func (s Storage) SignedURLExpiry() time.Duration {
	return time.Duration(s.SignedURLTTL) * time.Minute
}
