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

// Package commands provides the concrete cor.Command stages of the facts
// video workflows. This file defines the last stage of the facts workflow,
// which turns the accumulated state into the on-disk manifest.
package commands

import (
	"log/slog"
	"path/filepath"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// PersistManifest writes {thread_dir}/result.json, replacing any earlier
// manifest of the same thread. Its output is the manifest path, which is
// what the rendering workflow starts from; the manifest itself is left under
// ManifestKey.
type PersistManifest struct {
	cor.BaseCommand
	outputRoot string
}

// NewPersistManifest creates the stage. Manifests are written below outputRoot.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - outputRoot: The directory holding every thread directory.
func NewPersistManifest(name string, outputRoot string) *PersistManifest {
	return &PersistManifest{BaseCommand: *cor.NewBaseCommand(name), outputRoot: outputRoot}
}

// Execute saves result.json and outputs its path.
//
// Inputs:
//   - context: The finished *model.PipelineState.
//
// Outputs:
//   - The path of result.json, a string.
func (c *PersistManifest) Execute(context cor.Context) {
	state, err := pipelineState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	dir, err := model.EnsureThreadDir(c.outputRoot, state.ThreadID)
	if err != nil {
		c.Fail(context, err)
		return
	}
	// Convert and write result.json.
	manifest := state.Manifest()
	path := filepath.Join(dir, model.ManifestFileName)
	if err := model.SaveManifest(path, manifest); err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(context.GetContext(), "manifest persisted", "path", path, "has_audio", manifest.HasAudio())
	// Callers find the manifest here once rendering has replaced CtxIn.
	context.Add(ManifestKey, manifest)
	c.Succeed(context, path)
}
