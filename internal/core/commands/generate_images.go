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
// video workflows. This file defines the image generation stage.
//
// Logic Flow:
//  1. The thread directory is created if needed.
//  2. Each prompt is sent to the image generator in order, with the configured
//     aspect ratio. Calls are sequential so image_1 always matches prompt 1.
//  3. The returned bytes are checked to be an image. PNG is written as is;
//     JPEG and GIF are decoded and re-encoded so image_{n}.png is really PNG.
//  4. The list of written paths is merged into the state.
//
// The first failed prompt fails the stage; images already written stay on
// disk and are overwritten by the next run of the same thread.
package commands

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/services"
)

// GenerateImages renders every prompt, one after the other, to
// {thread_dir}/image_{n}.png. The first failure aborts the stage.
type GenerateImages struct {
	cor.BaseCommand
	generator  services.ImageGenerator
	outputRoot string
	// Passed through to the provider.
	aspectRatio string
}

// NewGenerateImages creates the stage. Images are written below outputRoot
// in the thread's directory.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - generator: The image provider.
//   - outputRoot: The directory holding every thread directory.
//   - aspectRatio: The aspect ratio requested for every image, e.g. "9:16".
//
// Outputs:
//   - *GenerateImages: The ready command.
func NewGenerateImages(name string, generator services.ImageGenerator, outputRoot string, aspectRatio string) *GenerateImages {
	return &GenerateImages{
		BaseCommand: *cor.NewBaseCommand(name),
		generator:   generator,
		outputRoot:  outputRoot,
		aspectRatio: aspectRatio,
	}
}

// Execute renders and stores every prompt.
//
// Inputs:
//   - context: The *model.PipelineState with image prompts.
//
// Outputs:
//   - The state with ImageFilepaths, one PNG per prompt, in prompt order.
func (c *GenerateImages) Execute(context cor.Context) {
	state, err := pipelineState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	if len(state.TxtToImgPrompts) == 0 {
		c.Fail(context, fmt.Errorf("%w: no image prompts", model.ErrPrecondition))
		return
	}
	dir, err := model.EnsureThreadDir(c.outputRoot, state.ThreadID)
	if err != nil {
		c.Fail(context, err)
		return
	}

	// One image per prompt, numbered from 1.
	paths := make([]string, 0, len(state.TxtToImgPrompts))
	for i, prompt := range state.TxtToImgPrompts {
		data, err := c.generator.GenerateImage(context.GetContext(), prompt, c.aspectRatio)
		if err != nil {
			c.Fail(context, fmt.Errorf("generating image %d: %w", i+1, err))
			return
		}
		path := filepath.Join(dir, model.ImageFileName(i+1))
		if err := WritePNG(path, data); err != nil {
			c.Fail(context, fmt.Errorf("image %d: %w", i+1, err))
			return
		}
		slog.DebugContext(context.GetContext(), "image written", "path", path, "bytes", len(data))
		paths = append(paths, path)
	}
	c.Succeed(context, state.WithImages(paths))
}

// WritePNG stores encoded image bytes as a PNG file. PNG input is written
// as is; other decodable formats are re-encoded so the content matches the
// extension.
//
// Inputs:
//   - path: The destination, normally image_{n}.png.
//   - data: PNG or JPEG bytes from the provider.
func WritePNG(path string, data []byte) error {
	// Reject payloads that are not images.
	if !filetype.IsImage(data) {
		return fmt.Errorf("%w: provider did not return an image", model.ErrContractViolation)
	}
	// PNG is stored as is.
	if filetype.Is(data, "png") {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			_ = os.Remove(path)
			return fmt.Errorf("%w: writing %s: %w", model.ErrFileSystem, path, err)
		}
		return nil
	}

	// Anything else is re-encoded as PNG.
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: decoding image: %w", model.ErrContractViolation, err)
	}
	if err := EncodePNG(path, img); err != nil {
		return fmt.Errorf("transcoding %s: %w", format, err)
	}
	return nil
}

// EncodePNG writes img to path as a PNG. On failure nothing is left at path.
func EncodePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", model.ErrFileSystem, path, err)
	}
	err = png.Encode(f, img)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("%w: encoding %s: %w", model.ErrFileSystem, path, err)
	}
	return nil
}
