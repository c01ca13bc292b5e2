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
// file defines the Manifest, the result.json document that hands a finished
// fact run over to rendering.
//
// Structs:
//   - TimedSegment: one narration cue with its start and duration.
//   - Manifest: the serialized PipelineState of a thread.
//
// Functions:
//   - SaveManifest: writes a manifest, creating the thread directory.
//   - LoadManifest: reads and validates a manifest.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TimedSegment is one subtitle cue as timed by the narration provider.
type TimedSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End is when the segment stops being spoken, in seconds.
func (t TimedSegment) End() float64 {
	return t.Start + t.Duration
}

// Manifest is the durable hand-off between the fact pipeline and rendering,
// stored as result.json in the thread directory. Absent audio is JSON null.
type Manifest struct {
	ThreadID           string         `json:"thread_id"`
	Topic              string         `json:"topic"`
	ViralFact          string         `json:"viral_fact"`
	Description        string         `json:"description"`
	IsRandom           bool           `json:"is_random"`
	AudioFilepath      *string        `json:"audio_filepath"`      // Null without narration.
	AudioDuration      *float64       `json:"audio_duration"`      // Null without narration.
	SynthesisDurations []TimedSegment `json:"synthesis_durations"` // Empty without narration.
	TxtToImgPrompts    []string       `json:"txt2img_prompts"`     // In image order.
	ImageFilepaths     []string       `json:"image_filepaths"`     // Absolute or relative to the working directory.
	ImageInstructions  string         `json:"image_instructions"`
}

// HasAudio is false when the narration stage degraded.
func (m *Manifest) HasAudio() bool {
	return m.AudioFilepath != nil && m.AudioDuration != nil && *m.AudioFilepath != ""
}

// PNGImages returns the image paths with a .png extension, in manifest order,
// keeping at most limit of them. A limit of zero or less keeps all.
func (m *Manifest) PNGImages(limit int) []string {
	out := make([]string, 0, len(m.ImageFilepaths))
	for _, p := range m.ImageFilepaths {
		// Placeholders and other formats are skipped.
		if !strings.EqualFold(filepath.Ext(p), ".png") {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, p)
	}
	return out
}

// State rebuilds the pipeline state a manifest was written from.
func (m *Manifest) State() PipelineState {
	s := PipelineState{
		ThreadID:          m.ThreadID,
		Topic:             m.Topic,
		IsRandom:          m.IsRandom,
		ViralFact:         m.ViralFact,
		Description:       m.Description,
		ImageInstructions: m.ImageInstructions,
	}
	// Audio is restored only as a whole.
	if m.HasAudio() {
		s = s.WithAudio(*m.AudioFilepath, *m.AudioDuration, m.SynthesisDurations)
	}
	return s.WithImagePrompts(m.TxtToImgPrompts).WithImages(m.ImageFilepaths)
}

// SaveManifest writes m to path, replacing any previous manifest.
func SaveManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	// The thread directory may not exist yet.
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", ErrFileSystem, filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write manifest %s: %w", ErrFileSystem, path, err)
	}
	return nil
}

// LoadManifest reads a manifest written by SaveManifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read manifest %s: %w", ErrFileSystem, path, err)
	}
	m := &Manifest{}
	// A manifest that does not parse cannot be rendered.
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: malformed manifest %s: %w", ErrPrecondition, path, err)
	}
	if m.ThreadID == "" {
		return nil, fmt.Errorf("%w: manifest %s has no thread_id", ErrPrecondition, path)
	}
	return m, nil
}
