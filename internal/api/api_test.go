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

package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-facts-video/internal/api"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/services"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-facts-video/internal/testutil"
)

const threadID = "20240101_100000_octopuses_5f3a9c1e"

type fakeVideos struct {
	requests []model.Request
	rendered []string
	err      error
}

func (f *fakeVideos) Generate(_ context.Context, req model.Request) (*workflow.VideoResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &workflow.VideoResult{
		Manifest: &model.Manifest{ThreadID: req.ThreadID, Topic: req.Topic},
		Render:   &model.RenderResult{ThreadID: req.ThreadID, OutputPath: "video.mp4"},
	}, nil
}

func (f *fakeVideos) Render(_ context.Context, manifestPath string) (*model.RenderResult, error) {
	f.rendered = append(f.rendered, manifestPath)
	if f.err != nil {
		return nil, f.err
	}
	return &model.RenderResult{ThreadID: filepath.Base(filepath.Dir(manifestPath))}, nil
}

func newRouter(t *testing.T) (*gin.Engine, *fakeVideos, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	videos := &fakeVideos{}
	server := &api.Server{
		Videos:    videos,
		Manifests: &services.ManifestService{OutputRoot: root},
		Now:       func() time.Time { return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) },
	}
	r := gin.New()
	v1 := r.Group("/api/v1")
	server.VideoRouter(v1)
	server.Dashboard(v1)
	return r, videos, root
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateVideo(t *testing.T) {
	r, videos, _ := newRouter(t)

	w := do(r, http.MethodPost, "/api/v1/videos", `{"topic": "octopuses"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, videos.requests, 1)
	assert.Equal(t, "octopuses", videos.requests[0].Topic)
	id := videos.requests[0].ThreadID
	assert.True(t, strings.HasPrefix(id, "20240101_100000_octopuses_"), id)

	var out workflow.VideoResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, id, out.Manifest.ThreadID)
	assert.Equal(t, "video.mp4", out.Render.OutputPath)
}

func TestCreateVideoValidation(t *testing.T) {
	r, videos, _ := newRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/videos", `{"topic": "   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/videos", `nope`).Code)
	assert.Empty(t, videos.requests)
}

func TestCreateVideoFailure(t *testing.T) {
	r, videos, _ := newRouter(t)
	videos.err = model.ErrCollaboratorUnavailable

	w := do(r, http.MethodPost, "/api/v1/videos", `{"topic": "cats"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "unavailable")
	assert.True(t, strings.HasPrefix(body["thread_id"], "20240101_100000_cats_"), body["thread_id"])
}

func TestListAndGetVideos(t *testing.T) {
	r, _, root := newRouter(t)
	test.WriteThread(t, root, threadID, true)

	w := do(r, http.MethodGet, "/api/v1/videos", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"threads": ["`+threadID+`"]}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/videos/"+threadID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var m model.Manifest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "octopuses", m.Topic)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/videos/nothing_here", "").Code)
}

func TestStreamVideoServesLocalFile(t *testing.T) {
	r, _, root := newRouter(t)
	test.WriteThread(t, root, threadID, false)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/videos/"+threadID+"/stream", "").Code)

	require.NoError(t, os.WriteFile(filepath.Join(root, threadID, model.VideoFileName), []byte("silent video"), 0o644))
	w := do(r, http.MethodGet, "/api/v1/videos/"+threadID+"/stream", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "silent video", w.Body.String())
}

func TestRenderVideo(t *testing.T) {
	r, videos, root := newRouter(t)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/v1/videos/"+threadID+"/render", "").Code)
	assert.Empty(t, videos.rendered)

	test.WriteThread(t, root, threadID, true)
	w := do(r, http.MethodPost, "/api/v1/videos/"+threadID+"/render", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{filepath.Join(root, threadID, model.ManifestFileName)}, videos.rendered)

	videos.err = model.ErrPrecondition
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/videos/"+threadID+"/render", "").Code)
}

func TestDashboardStats(t *testing.T) {
	r, _, root := newRouter(t)
	test.WriteThread(t, root, threadID, true)
	test.WriteThread(t, root, "20240102_100000_cats_0b7d2e64", false)

	w := do(r, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"threads": 2, "rendered": 0, "narrated": 1, "silent": 1, "final": 0}`, w.Body.String())
}
