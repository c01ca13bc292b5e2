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

package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/services"
	test "github.com/jaycherian/gcp-go-facts-video/internal/testutil"
)

func TestManifestServiceListAndStats(t *testing.T) {
	root := t.TempDir()
	svc := &services.ManifestService{OutputRoot: root}

	test.WriteThread(t, root, "20240101_100000_octopuses_5f3a9c1e", true)
	test.WriteThread(t, root, "20240102_100000_cats_0b7d2e64", false)
	assert.NoError(t, os.MkdirAll(filepath.Join(root, "20240103_100000_unfinished_9e41c07a"), 0o755))

	ids, err := svc.List()
	assert.NoError(t, err)
	assert.DeepEqual(t, []string{"20240102_100000_cats_0b7d2e64", "20240101_100000_octopuses_5f3a9c1e"}, ids)

	final, err := svc.ArtifactPath("20240101_100000_octopuses_5f3a9c1e", model.FinalFileName)
	assert.NoError(t, err)
	assert.NoError(t, os.WriteFile(final, []byte("video"), 0o644))
	silent, err := svc.ArtifactPath("20240102_100000_cats_0b7d2e64", model.VideoFileName)
	assert.NoError(t, err)
	assert.NoError(t, os.WriteFile(silent, []byte("video"), 0o644))

	stats, err := svc.Stats()
	assert.NoError(t, err)
	assert.DeepEqual(t, services.ThreadStats{Threads: 2, Rendered: 2, Narrated: 1, Silent: 1, Final: 1}, stats)
}

func TestManifestServiceMissingRoot(t *testing.T) {
	svc := &services.ManifestService{OutputRoot: filepath.Join(t.TempDir(), "nothing-yet")}
	ids, err := svc.List()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(ids))
}

func TestManifestServiceGet(t *testing.T) {
	root := t.TempDir()
	svc := &services.ManifestService{OutputRoot: root}
	test.WriteThread(t, root, "20240101_100000_octopuses_5f3a9c1e", true)

	m, err := svc.Get("20240101_100000_octopuses_5f3a9c1e")
	assert.NoError(t, err)
	assert.Equal(t, "octopuses", m.Topic)
	assert.That(t, m.HasAudio())

	_, err = svc.Get("../etc")
	assert.That(t, errors.Is(err, model.ErrPrecondition))
	_, err = svc.Get("20990101_000000_missing")
	assert.That(t, errors.Is(err, model.ErrFileSystem))
}

func TestManifestServiceFinalVideoPrefersSubtitled(t *testing.T) {
	root := t.TempDir()
	svc := &services.ManifestService{OutputRoot: root}
	id := "20240101_100000_octopuses_5f3a9c1e"
	test.WriteThread(t, root, id, true)

	_, err := svc.FinalVideo(id)
	assert.That(t, errors.Is(err, model.ErrFileSystem))

	for _, name := range []string{model.VideoFileName, model.MuxedFileName} {
		p, _ := svc.ArtifactPath(id, name)
		assert.NoError(t, os.WriteFile(p, []byte("video"), 0o644))
	}
	got, err := svc.FinalVideo(id)
	assert.NoError(t, err)
	assert.Equal(t, model.MuxedFileName, filepath.Base(got))
}

func TestManifestServiceWithoutBucket(t *testing.T) {
	svc := &services.ManifestService{OutputRoot: t.TempDir()}
	objects, err := svc.ListUploaded(context.Background(), "any")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(objects))

	_, err = svc.GenerateSignedURL(context.Background(), "gs://bucket/a.mp4", time.Minute)
	assert.That(t, errors.Is(err, model.ErrPrecondition))
}
