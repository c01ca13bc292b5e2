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

// Package test provides shared helpers for the test suites. This file holds
// the fakes that stand in for the generative models, the narration and image
// providers and ffmpeg.
package test

import (
	"context"
	"errors"
	"os"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// FakeGenerator answers GenerateContent with canned text, in order. The last
// answer repeats once the list is exhausted. Errs, when set, are returned
// before any text, one per call.
type FakeGenerator struct {
	mu       sync.Mutex
	Texts    []string           // Answers, in order. The last one repeats.
	Errs     []error            // Returned first, one per call.
	Chunks   int                // Grounding chunks attached to every response.
	Calls    int                // Number of GenerateContent calls.
	Contents [][]*genai.Content // Every request, in call order.
}

// GenerateContent records content and returns the next error or answer.
func (f *FakeGenerator) GenerateContent(_ context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.Contents = append(f.Contents, content)
	if len(f.Errs) > 0 {
		err := f.Errs[0]
		f.Errs = f.Errs[1:]
		return nil, err
	}
	if len(f.Texts) == 0 {
		return nil, errors.New("fake generator has no answers")
	}
	text := f.Texts[0]
	// The last answer sticks.
	if len(f.Texts) > 1 {
		f.Texts = f.Texts[1:]
	}
	// A single text candidate, optionally grounded.
	candidate := &genai.Candidate{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}}
	if f.Chunks > 0 {
		candidate.GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: make([]*genai.GroundingChunk, f.Chunks)}
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{candidate},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 20},
	}, nil
}

// Prompt returns the text of the n-th request.
func (f *FakeGenerator) Prompt(n int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n >= len(f.Contents) {
		return ""
	}
	var out string
	// Concatenate every text part of the request.
	for _, c := range f.Contents[n] {
		for _, p := range c.Parts {
			out += p.Text
		}
	}
	return out
}

// Collaborators is a full set of fakes for the fact pipeline.
type Collaborators struct {
	Topic        model.TopicResult
	TopicErr     error
	Fact         model.FactResult
	FactErr      error
	Narration    *model.Narration
	NarrationErr error
	Prompts      []string
	PromptsErr   error
	Image        []byte
	ImageErr     error

	mu          sync.Mutex
	ImageCalls  []string
	AspectRatio string
}

// NewCollaborators returns fakes that succeed end to end with narration of
// the given WAV bytes.
//
// Inputs:
//   - audio: The narration bytes, normally from WAVBytes.
//   - image: The image bytes, normally from PNGBytes.
func NewCollaborators(audio []byte, image []byte) *Collaborators {
	return &Collaborators{
		Topic: model.TopicResult{Topic: "octopuses", IsRandom: false},
		Fact: model.FactResult{
			ViralFact:   "Octopuses have three hearts and blue blood.",
			Description: "Two hearts pump blood through the gills. https://example.com/octopus",
		},
		Narration: &model.Narration{
			Audio: audio,
			Segments: []model.TimedSegment{
				{Text: "Octopuses", Start: 0, Duration: 0.6},
				{Text: "have", Start: 0.6, Duration: 0.3},
				{Text: "three", Start: 0.9, Duration: 0.4},
				{Text: "hearts", Start: 1.3, Duration: 0.7},
			},
		},
		Prompts: []string{"an octopus in a coral reef", "three glowing hearts under the sea"},
		Image:   image,
	}
}

// ResolveTopic returns Topic and TopicErr.
func (c *Collaborators) ResolveTopic(_ context.Context, _ string) (model.TopicResult, error) {
	return c.Topic, c.TopicErr
}

func (c *Collaborators) GenerateFact(_ context.Context, _ string) (model.FactResult, error) {
	return c.Fact, c.FactErr
}

// Synthesize returns Narration, or NarrationErr when set.
func (c *Collaborators) Synthesize(_ context.Context, _ string) (*model.Narration, error) {
	if c.NarrationErr != nil {
		return nil, c.NarrationErr
	}
	return c.Narration, nil
}

// GenerateImagePrompts returns Prompts and PromptsErr.
func (c *Collaborators) GenerateImagePrompts(_ context.Context, _ string) ([]string, error) {
	return c.Prompts, c.PromptsErr
}

// GenerateImage records the prompt and aspect ratio of every call.
func (c *Collaborators) GenerateImage(_ context.Context, prompt string, aspectRatio string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Record before failing so tests can count attempts.
	c.ImageCalls = append(c.ImageCalls, prompt)
	c.AspectRatio = aspectRatio
	if c.ImageErr != nil {
		return nil, c.ImageErr
	}
	return c.Image, nil
}

// RecordingRunner stands in for ffmpeg: it records the arguments of every
// invocation and creates the output file.
type RecordingRunner struct {
	mu      sync.Mutex
	Outputs []string   // Output path of every run.
	Args    [][]string // Rendered ffmpeg arguments of every run.
	Err     error      // Returned by every run when set.
}

// Run records the stream and writes a placeholder at output unless Err is set.
func (r *RecordingRunner) Run(_ context.Context, output string, stream *ffmpeg.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outputs = append(r.Outputs, output)
	// Compile the graph the same way the real runner would.
	r.Args = append(r.Args, stream.GetArgs())
	if r.Err != nil {
		return r.Err
	}
	return os.WriteFile(output, []byte("fake media"), 0o644)
}
