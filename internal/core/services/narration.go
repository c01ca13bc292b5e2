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

// Package services holds the collaborators the pipeline calls out to. This
// file defines the speech client.
//
// Logic Flow:
//  1. The text is posted to the speech endpoint with the configured voice and
//     format, asking for per-word durations.
//  2. A non-200 answer keeps a bounded piece of the body for the error.
//  3. The JSON answer carries the audio as base64 and the timing segments that
//     later become subtitles.
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// maxErrorBody bounds how much of a failed provider response ends up in an error.
const maxErrorBody = 512

// speechRequest is the JSON body of a synthesis call.
type speechRequest struct {
	Text            string `json:"text"`
	Voice           string `json:"voice"`
	Format          string `json:"format"`
	ReturnDurations bool   `json:"return_durations"`
}

// speechResponse is the JSON answer of a synthesis call.
type speechResponse struct {
	Audio     string               `json:"audio"` // base64
	Durations []model.TimedSegment `json:"durations"`
}

// NarrationService synthesizes speech with the LMNT HTTP API and returns the
// per-word timing alongside the audio.
type NarrationService struct {
	Endpoint   string
	APIKey     string
	Voice      string
	Format     string
	HTTPClient *http.Client
}

// NewNarrationService builds a client from configuration. The API key is read
// from the environment variable the configuration names.
//
// Inputs:
//   - config: The speech provider endpoint and voice.
//
// Outputs:
//   - *NarrationService: The ready service.
func NewNarrationService(config cloud.Narration) *NarrationService {
	return &NarrationService{
		Endpoint:   config.Endpoint,
		APIKey:     config.APIKey(),
		Voice:      config.Voice,
		Format:     config.Format,
		HTTPClient: &http.Client{Timeout: config.Timeout()},
	}
}

// Synthesize reads text aloud. A missing API key fails before any request is
// made, so a misconfigured deployment still yields silent videos.
func (s *NarrationService) Synthesize(ctx context.Context, text string) (*model.Narration, error) {
	// Fail fast without a key; the stage then degrades to a silent video.
	if s.APIKey == "" {
		return nil, fmt.Errorf("%w: narration API key is not set", model.ErrCollaboratorUnavailable)
	}
	// Ask for per-word durations; they become the subtitles.
	body, err := json.Marshal(speechRequest{Text: text, Voice: s.Voice, Format: s.Format, ReturnDurations: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build narration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Authenticate with the API key header.
	req.Header.Set("X-API-Key", s.APIKey)

	// The client timeout bounds the whole call.
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: narration request: %w", model.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Keep a bounded piece of the body for the error message.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: narration provider returned %d: %s", model.ErrCollaboratorUnavailable, resp.StatusCode, detail)
	}

	var out speechResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: narration response is not valid JSON: %w", model.ErrContractViolation, err)
	}
	// The audio is embedded as base64.
	audio, err := base64.StdEncoding.DecodeString(out.Audio)
	if err != nil {
		return nil, fmt.Errorf("%w: narration audio is not base64: %w", model.ErrContractViolation, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: narration audio is empty", model.ErrContractViolation)
	}

	slog.DebugContext(ctx, "narration synthesized", "bytes", len(audio), "segments", len(out.Durations))
	return &model.Narration{Audio: audio, Segments: out.Durations}, nil
}
