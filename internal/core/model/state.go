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

// Package model holds the domain types shared by the pipeline stages. This
// file defines the results returned by the collaborators and the
// PipelineState the fact pipeline threads from stage to stage.
package model

import "slices"

// TopicResult is what the topic resolver returns.
type TopicResult struct {
	Topic    string `json:"topic"`
	IsRandom bool   `json:"is_random"`
}

// FactResult is what the fact generator returns.
type FactResult struct {
	ViralFact   string `json:"viral_fact"`
	Description string `json:"description"`
}

// Narration is what the narration synthesizer returns: the encoded audio and
// the provider's per-segment timing.
type Narration struct {
	Audio    []byte
	Segments []TimedSegment // Cue timing; may be empty.
}

// PipelineState is the record threaded through the orchestrator stages. It is
// a value: every With method returns an updated copy and leaves the receiver,
// including its slices, untouched. Audio fields are nil when narration failed.
type PipelineState struct {
	ThreadID           string         // Directory name of every artifact of the request.
	UserInput          string         // The topic exactly as the user typed it.
	Topic              string         // Resolved topic.
	IsRandom           bool           // True when the resolver picked the topic itself.
	ViralFact          string         // The narration text.
	Description        string         // Supporting detail and sources.
	AudioFilepath      *string        // Nil when narration degraded.
	AudioDuration      *float64       // Measured from the WAV, in seconds.
	SynthesisDurations []TimedSegment // Provider timing, one entry per cue.
	ImageInstructions  string         // Art direction shared by every image prompt.
	TxtToImgPrompts    []string       // Exactly two after DeriveImagePrompts.
	ImageFilepaths     []string       // One PNG per prompt, in prompt order.
}

// NewPipelineState seeds a state from a request.
func NewPipelineState(req Request) PipelineState {
	return PipelineState{ThreadID: req.ThreadID, UserInput: req.Topic}
}

// WithTopic records the resolved topic.
func (s PipelineState) WithTopic(t TopicResult) PipelineState {
	s.Topic = t.Topic
	s.IsRandom = t.IsRandom
	return s
}

// WithFact records the narration text and its description.
func (s PipelineState) WithFact(f FactResult) PipelineState {
	s.ViralFact = f.ViralFact
	s.Description = f.Description
	return s
}

// WithAudio records the narration file, its measured duration and the
// provider's timing map.
func (s PipelineState) WithAudio(path string, duration float64, segments []TimedSegment) PipelineState {
	s.AudioFilepath = &path
	s.AudioDuration = &duration
	s.SynthesisDurations = slices.Clone(segments)
	return s
}

// WithoutAudio records the absent-audio sentinel.
func (s PipelineState) WithoutAudio() PipelineState {
	s.AudioFilepath = nil
	s.AudioDuration = nil
	s.SynthesisDurations = nil
	return s
}

// WithImageInstructions records the art brief.
func (s PipelineState) WithImageInstructions(instructions string) PipelineState {
	s.ImageInstructions = instructions
	return s
}

// WithImagePrompts records a copy of prompts.
func (s PipelineState) WithImagePrompts(prompts []string) PipelineState {
	s.TxtToImgPrompts = slices.Clone(prompts)
	return s
}

// WithImages records a copy of the written image paths, in prompt order.
func (s PipelineState) WithImages(paths []string) PipelineState {
	s.ImageFilepaths = slices.Clone(paths)
	return s
}

// HasAudio is false when the narration stage degraded.
func (s PipelineState) HasAudio() bool {
	return s.AudioFilepath != nil && s.AudioDuration != nil
}

// Manifest converts the state into its persisted form.
func (s PipelineState) Manifest() *Manifest {
	m := &Manifest{
		ThreadID:           s.ThreadID,
		Topic:              s.Topic,
		ViralFact:          s.ViralFact,
		Description:        s.Description,
		IsRandom:           s.IsRandom,
		SynthesisDurations: slices.Clone(s.SynthesisDurations),
		TxtToImgPrompts:    slices.Clone(s.TxtToImgPrompts),
		ImageFilepaths:     slices.Clone(s.ImageFilepaths),
		ImageInstructions:  s.ImageInstructions,
	}
	// Copy the pointed-to values so the manifest shares nothing with the state.
	if s.AudioFilepath != nil {
		path := *s.AudioFilepath
		m.AudioFilepath = &path
	}
	if s.AudioDuration != nil {
		duration := *s.AudioDuration
		m.AudioDuration = &duration
	}
	return m
}
