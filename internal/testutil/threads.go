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

// Package test provides shared helpers for the test suites. This file lays
// out thread directories for the render and API tests.
package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// WriteThread lays out a thread directory under outputRoot the way the fact
// pipeline leaves it: two PNG images, optional narration and result.json.
// It returns the manifest path.
func WriteThread(t *testing.T, outputRoot string, threadID string, withAudio bool) string {
	t.Helper()
	dir := filepath.Join(outputRoot, threadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// A manifest as the fact pipeline writes it.
	m := &model.Manifest{
		ThreadID:          threadID,
		Topic:             "octopuses",
		ViralFact:         "Octopuses have three hearts.",
		Description:       "Two pump blood through the gills.",
		TxtToImgPrompts:   []string{"an octopus in a coral reef", "three glowing hearts under the sea"},
		ImageInstructions: "Deep blues, soft light.",
	}
	// Two real PNG images.
	for n := 1; n <= 2; n++ {
		p := filepath.Join(dir, model.ImageFileName(n))
		if err := os.WriteFile(p, PNGBytes(t), 0o644); err != nil {
			t.Fatal(err)
		}
		m.ImageFilepaths = append(m.ImageFilepaths, p)
	}
	// Two seconds of silence with the fake narration timing.
	if withAudio {
		audio := filepath.Join(dir, model.AudioFileName)
		WriteWAV(t, audio, 2, 8000)
		duration := 2.0
		m.AudioFilepath = &audio
		m.AudioDuration = &duration
		m.SynthesisDurations = NewCollaborators(nil, nil).Narration.Segments
	}
	// result.json goes last, as in the pipeline.
	path := filepath.Join(dir, model.ManifestFileName)
	if err := model.SaveManifest(path, m); err != nil {
		t.Fatal(err)
	}
	return path
}
