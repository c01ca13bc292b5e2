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
// video workflows. This file defines the first stage of the render workflow.
// Its input is the path of a result.json and its output is the RenderState
// that the timing, slideshow, mux and subtitle stages extend in turn.
package commands

import (
	"fmt"
	"path/filepath"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// ManifestReader loads result.json and starts the render state. A missing or
// malformed manifest stops rendering.
type ManifestReader struct {
	cor.BaseCommand
}

// NewManifestReader creates the render intake command.
func NewManifestReader(name string) *ManifestReader {
	return &ManifestReader{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute loads the manifest. A missing file fails with model.ErrFileSystem
// and a malformed one with model.ErrPrecondition.
//
// Inputs:
//   - context: The path of a result.json, a string.
//
// Outputs:
//   - A *model.RenderState holding the loaded manifest and thread directory.
func (c *ManifestReader) Execute(context cor.Context) {
	path, ok := context.Get(c.GetInputParam()).(string)
	if !ok || path == "" {
		c.Fail(context, fmt.Errorf("%w: expected a manifest path, got %T", model.ErrPrecondition, context.Get(c.GetInputParam())))
		return
	}
	// Missing files are ErrFileSystem, malformed ones ErrPrecondition.
	manifest, err := model.LoadManifest(path)
	if err != nil {
		c.Fail(context, err)
		return
	}
	// Every render artifact goes next to the manifest.
	c.Succeed(context, &model.RenderState{
		ManifestPath: path,
		ThreadDir:    filepath.Dir(path),
		Manifest:     manifest,
	})
}
