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
// video workflows. This file defines the optional last stage of the render
// workflow.
//
// Logic Flow:
//  1. The stage only runs when a storage client and bucket are configured.
//  2. The most finished video (subtitled, muxed or silent) and result.json are
//     uploaded under gs://<bucket>/<thread_id>/.
//  3. Each object's content type is sniffed from its first bytes; files that
//     do not sniff, such as the JSON manifest, are uploaded as
//     application/json.
//  4. The gs:// URIs are recorded on the render state.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// ArtifactUpload copies the finished video and result.json of a thread to
// gs://<bucket>/<thread_id>/. It is skipped when no bucket is configured.
type ArtifactUpload struct {
	cor.BaseCommand
	client *storage.Client
	// Empty disables the upload.
	bucket string
}

// NewArtifactUpload creates the upload stage. A nil client or empty bucket
// disables it.
//
// Inputs:
//   - name: The command name, used for errors, spans and metrics.
//   - client: The storage client, or nil.
//   - bucket: The artifact bucket, or "".
//
// Outputs:
//   - *ArtifactUpload: The command. It is never executable without both.
func NewArtifactUpload(name string, client *storage.Client, bucket string) *ArtifactUpload {
	return &ArtifactUpload{BaseCommand: *cor.NewBaseCommand(name), client: client, bucket: bucket}
}

// IsExecutable reports whether uploads are configured.
func (c *ArtifactUpload) IsExecutable(context cor.Context) bool {
	return c.client != nil && c.bucket != "" && c.BaseCommand.IsExecutable(context)
}

// Execute uploads the artifacts of the rendered thread.
//
// Inputs:
//   - context: The *model.RenderState after rendering.
//
// Outputs:
//   - The render state with the gs:// URIs of the uploaded objects.
func (c *ArtifactUpload) Execute(context cor.Context) {
	state, err := renderState(context, c.GetInputParam())
	if err != nil {
		c.Fail(context, err)
		return
	}
	if state.Output() == "" {
		c.Fail(context, fmt.Errorf("%w: no rendered video to upload", model.ErrPrecondition))
		return
	}

	// Upload the most finished video and the manifest.
	uploaded := make([]string, 0, 2)
	for _, path := range []string{state.Output(), state.ManifestPath} {
		obj := cloud.GCSObject{Bucket: c.bucket, Name: cloud.ArtifactObjectName(state.Manifest.ThreadID, path)}
		if err := c.upload(context, path, &obj); err != nil {
			c.Fail(context, err)
			return
		}
		uploaded = append(uploaded, obj.URI())
	}

	next := *state
	next.UploadedObjects = uploaded
	c.Succeed(context, &next)
}

func (c *ArtifactUpload) upload(context cor.Context, path string, obj *cloud.GCSObject) error {
	dat, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: failed to open file %s: %w", model.ErrFileSystem, path, err)
	}
	defer dat.Close()

	// Detect the content type from the file header.
	head := make([]byte, 262)
	n, _ := io.ReadFull(dat, head)
	if kind, err := filetype.Match(head[:n]); err == nil && kind != filetype.Unknown {
		obj.MIMEType = kind.MIME.Value
	} else {
		obj.MIMEType = "application/json"
	}
	if _, err := dat.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewinding %s: %w", model.ErrFileSystem, path, err)
	}

	// Stream the file into the bucket.
	writer := c.client.Bucket(obj.Bucket).Object(obj.Name).NewWriter(context.GetContext())
	writer.ContentType = obj.MIMEType
	if written, err := io.Copy(writer, dat); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to copy to GCS or partial write: %d total bytes: %w", written, err)
	}
	// Close finalizes the object; the upload has failed if it errors.
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", obj.URI(), err)
	}
	slog.InfoContext(context.GetContext(), "uploaded artifact", "uri", obj.URI(), "content_type", obj.MIMEType)
	return nil
}
