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
// file defines the text-to-image client. Requests are throttled locally with
// a token bucket because the provider answers bursts with 429.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// imageRequest is the JSON body of a text-to-image call.
type imageRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

// ImageService renders prompts with the Segmind text-to-image API. The
// response body is the encoded image.
type ImageService struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	RateLimit  *rate.Limiter
}

// NewImageService builds a client from configuration. A non-positive rate
// limit disables throttling.
//
// Inputs:
//   - config: The image provider endpoint and its limits.
//
// Outputs:
//   - *ImageService: The ready service.
func NewImageService(config cloud.ImageGeneration) *ImageService {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Second/time.Duration(config.RateLimit)), 1)
	}
	return &ImageService{
		Endpoint:   config.Endpoint,
		APIKey:     config.APIKey(),
		HTTPClient: &http.Client{Timeout: config.Timeout()},
		RateLimit:  limiter,
	}
}

// GenerateImage renders prompt and returns the encoded image. Transport
// errors and non-200 responses are model.ErrCollaboratorUnavailable; an empty
// body is model.ErrContractViolation.
func (s *ImageService) GenerateImage(ctx context.Context, prompt string, aspectRatio string) ([]byte, error) {
	// Without a key every call would be rejected; fail before waiting on the limiter.
	if s.APIKey == "" {
		return nil, fmt.Errorf("%w: image API key is not set", model.ErrCollaboratorUnavailable)
	}
	// Wait for a token so a burst of prompts stays under the provider limit.
	if err := s.RateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", model.ErrCollaboratorUnavailable, err)
	}

	body, err := json.Marshal(imageRequest{Prompt: prompt, AspectRatio: aspectRatio})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Authenticate with the API key header.
	req.Header.Set("x-api-key", s.APIKey)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: image request: %w", model.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 429 and 5xx answers end up here; the body explains which.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: image provider returned %d: %s", model.ErrCollaboratorUnavailable, resp.StatusCode, detail)
	}
	// The body is the encoded image itself.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading image: %w", model.ErrCollaboratorUnavailable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image provider returned an empty body", model.ErrContractViolation)
	}
	return data, nil
}
