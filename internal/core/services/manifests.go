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
// file defines the read side of the output root, used by the HTTP API.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// ManifestService reads finished threads back from the output root and hands
// out signed URLs for the artifacts uploaded to the artifact bucket.
type ManifestService struct {
	OutputRoot     string                            // Parent of every thread directory.
	StorageClient  *storage.Client                   // Nil when artifacts are not uploaded.
	IAMClient      *credentials.IamCredentialsClient // Signs URLs on behalf of SignerEmail.
	SignerEmail    string                            // Service account that signs URLs.
	ArtifactBucket string                            // Bucket the render workflow uploads to.
}

// ThreadStats summarises the thread directories under the output root.
type ThreadStats struct {
	Threads  int `json:"threads"`  // Threads with a manifest.
	Rendered int `json:"rendered"` // Threads with at least the silent slideshow.
	Narrated int `json:"narrated"` // Threads whose manifest carries audio.
	Silent   int `json:"silent"`   // Threads whose narration stage degraded.
	Final    int `json:"final"`    // Threads with the subtitled video.
}

// ManifestPath is the result.json of a thread.
func (s *ManifestService) ManifestPath(threadID string) string {
	return filepath.Join(model.ThreadDir(s.OutputRoot, threadID), model.ManifestFileName)
}

// ArtifactPath resolves a file of a thread. The thread id must be a single
// path element.
//
// Inputs:
//   - threadID: The thread directory name.
//   - fileName: Reduced to its base name.
//
// Outputs:
//   - string: The path below the thread directory.
//   - error: ErrPrecondition for an unsafe thread id.
func (s *ManifestService) ArtifactPath(threadID string, fileName string) (string, error) {
	if !model.ValidThreadID(threadID) {
		return "", fmt.Errorf("%w: invalid thread id %q", model.ErrPrecondition, threadID)
	}
	return filepath.Join(model.ThreadDir(s.OutputRoot, threadID), filepath.Base(fileName)), nil
}

// List returns the ids of every thread with a manifest, newest first. Thread
// ids start with their creation time, so this is reverse lexical order.
func (s *ManifestService) List() ([]string, error) {
	// Nothing has been generated yet when the root does not exist.
	entries, err := os.ReadDir(s.OutputRoot)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", model.ErrFileSystem, s.OutputRoot, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		// Directories of failed runs have no manifest and are not listed.
		if _, err := os.Stat(s.ManifestPath(e.Name())); err == nil {
			out = append(out, e.Name())
		}
	}
	// Newest first.
	slices.Sort(out)
	slices.Reverse(out)
	return out, nil
}

// Get loads the manifest of one thread.
func (s *ManifestService) Get(threadID string) (*model.Manifest, error) {
	if !model.ValidThreadID(threadID) {
		return nil, fmt.Errorf("%w: invalid thread id %q", model.ErrPrecondition, threadID)
	}
	return model.LoadManifest(s.ManifestPath(threadID))
}

// FinalVideo returns the most finished local video of a thread: the
// subtitled one, the muxed one, or the silent slideshow.
//
// Outputs:
//   - string: The path of the best video on disk.
//   - error: ErrPrecondition for a bad id, ErrFileSystem when nothing was rendered.
func (s *ManifestService) FinalVideo(threadID string) (string, error) {
	// Most finished first.
	for _, name := range []string{model.FinalFileName, model.MuxedFileName, model.VideoFileName} {
		p, err := s.ArtifactPath(threadID, name)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: thread %s has no rendered video", model.ErrFileSystem, threadID)
}

// Stats summarises every readable thread. Threads whose manifest cannot be
// loaded are left out.
func (s *ManifestService) Stats() (ThreadStats, error) {
	var stats ThreadStats
	ids, err := s.List()
	if err != nil {
		return stats, err
	}
	for _, id := range ids {
		// A manifest that no longer parses is skipped, not fatal.
		m, err := s.Get(id)
		if err != nil {
			continue
		}
		// Every loaded manifest counts once as narrated or silent.
		stats.Threads++
		if m.HasAudio() {
			stats.Narrated++
		} else {
			stats.Silent++
		}
		// Rendered counts any video; Final only the subtitled one.
		if video, err := s.FinalVideo(id); err == nil {
			stats.Rendered++
			if filepath.Base(video) == model.FinalFileName {
				stats.Final++
			}
		}
	}
	return stats, nil
}

// ListUploaded returns the artifact objects of a thread in the artifact bucket.
func (s *ManifestService) ListUploaded(ctx context.Context, threadID string) ([]cloud.GCSObject, error) {
	// Uploads are optional; no bucket means nothing was uploaded.
	if s.StorageClient == nil || s.ArtifactBucket == "" {
		return nil, nil
	}
	// Artifacts of a thread share the "<thread_id>/" prefix.
	it := s.StorageClient.Bucket(s.ArtifactBucket).Objects(ctx, &storage.Query{Prefix: threadID + "/"})
	var out []cloud.GCSObject
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing gs://%s/%s: %w", s.ArtifactBucket, threadID, err)
		}
		out = append(out, cloud.GCSObject{Bucket: attrs.Bucket, Name: attrs.Name, MIMEType: attrs.ContentType})
	}
	return out, nil
}

// GenerateSignedURL returns a V4 GET URL for gcsURI (gs://bucket/object) that
// expires after the given duration. When a signer service account is set, the
// signature is produced by the IAM Credentials API so no private key has to be
// present locally.
//
// Inputs:
//   - ctx: Used for the IAM SignBlob call.
//   - gcsURI: The object, as gs://bucket/object.
//   - expires: How long the URL stays valid.
//
// Outputs:
//   - string: The signed HTTPS URL.
//   - error: ErrPrecondition without a storage client or for a bad URI.
func (s *ManifestService) GenerateSignedURL(ctx context.Context, gcsURI string, expires time.Duration) (string, error) {
	if s.StorageClient == nil {
		return "", fmt.Errorf("%w: no storage client", model.ErrPrecondition)
	}
	// Split gs://bucket/object into its parts.
	obj, err := cloud.ParseGCSURI(gcsURI)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrPrecondition, err)
	}

	// V4 signing, valid for GET only.
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	}
	// On Cloud Run there is no private key; sign through IAM instead.
	// Without a signer the client falls back to its own credentials.
	if s.IAMClient != nil && s.SignerEmail != "" {
		opts.GoogleAccessID = s.SignerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}

	// Generate the signed URL.
	u, err := s.StorageClient.Bucket(obj.Bucket).SignedURL(obj.Name, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", obj.Bucket, obj.Name, err)
	}
	return u, nil
}
