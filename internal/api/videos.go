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

// Package api exposes the video pipeline over HTTP with gin.
//
// Routes, relative to the group passed to VideoRouter:
//   - POST /videos: runs the pipeline for {"topic": ...} and answers with the
//     manifest and render result. Any pipeline failure is a 500 carrying the
//     thread id, so the caller can inspect what was left on disk.
//   - GET /videos: lists thread ids, newest first.
//   - GET /videos/:thread_id: returns the thread's manifest.
//   - GET /videos/:thread_id/stream: returns a signed URL for an uploaded
//     video, or serves the best local video file.
//   - POST /videos/:thread_id/render: renders an existing thread again.
//
// Errors from the read and render routes are mapped from the model error
// sentinels by statusFor.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/services"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/workflow"
)

// VideoGenerator is the part of workflow.VideoWorkflow the handlers use.
type VideoGenerator interface {
	Generate(ctx context.Context, req model.Request) (*workflow.VideoResult, error)
	Render(ctx context.Context, manifestPath string) (*model.RenderResult, error)
}

// Server holds what the handlers need. Requests are independent; the only
// shared state is the output root, partitioned by thread id.
type Server struct {
	Videos       VideoGenerator            // Runs and re-renders the pipeline.
	Manifests    *services.ManifestService // Reads finished threads.
	SignedURLTTL time.Duration             // Lifetime of stream URLs.
	Now          func() time.Time          // Clock for thread ids. Nil uses time.Now.
}

// videoRequest is the body of POST /videos.
type videoRequest struct {
	Topic string `json:"topic"`
}

// VideoRouter registers the /videos routes.
func (s *Server) VideoRouter(r *gin.RouterGroup) {
	videos := r.Group("/videos")
	{
		videos.POST("", s.createVideo)
		videos.GET("", s.listVideos)
		videos.GET("/:thread_id", s.getVideo)
		videos.GET("/:thread_id/stream", s.streamVideo)
		videos.POST("/:thread_id/render", s.renderVideo)
	}
}

// createVideo runs the whole pipeline synchronously for one topic.
func (s *Server) createVideo(c *gin.Context) {
	var body videoRequest
	// Reject malformed bodies and blank topics before any work is done.
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Topic) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a non-empty topic is required"})
		return
	}
	// Tests pin the clock to get predictable thread ids.
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	req := model.NewRequest(body.Topic, now())
	slog.InfoContext(c.Request.Context(), "video requested", "thread_id", req.ThreadID, "topic", body.Topic)

	// The request blocks until the video is rendered.
	out, err := s.Videos.Generate(c.Request.Context(), req)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "video pipeline failed", "thread_id", req.ThreadID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"thread_id": req.ThreadID, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// listVideos returns every thread id under the output root.
func (s *Server) listVideos(c *gin.Context) {
	// A missing output root is an empty list, not an error.
	ids, err := s.Manifests.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": ids})
}

// getVideo returns one manifest.
func (s *Server) getVideo(c *gin.Context) {
	// Bad ids and missing manifests map to 400 and 404.
	m, err := s.Manifests.Get(c.Param("thread_id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

// streamVideo redirects clients to a signed URL when the video was uploaded
// and serves the local file otherwise.
func (s *Server) streamVideo(c *gin.Context) {
	id := c.Param("thread_id")
	// Uploaded artifacts win. Without a bucket the list is empty.
	objects, err := s.Manifests.ListUploaded(c.Request.Context(), id)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "listing uploaded artifacts failed", "thread_id", id, "error", err)
	}
	for _, obj := range objects {
		// result.json is uploaded next to the video; skip it.
		if filepath.Ext(obj.Name) != ".mp4" {
			continue
		}
		signedURL, err := s.Manifests.GenerateSignedURL(c.Request.Context(), obj.URI(), s.SignedURLTTL)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "error generating signed URL", "uri", obj.URI(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate streaming URL"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": signedURL})
		return
	}

	// Fall back to the most finished local file.
	path, err := s.Manifests.FinalVideo(id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.File(path)
}

// renderVideo re-runs the render workflow on a persisted thread. The
// manifest is loaded first so a bad id is reported before ffmpeg runs.
func (s *Server) renderVideo(c *gin.Context) {
	id := c.Param("thread_id")
	if _, err := s.Manifests.Get(id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	// Rendering replaces the previous video files of the thread.
	out, err := s.Videos.Render(c.Request.Context(), s.Manifests.ManifestPath(id))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"thread_id": id, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// statusFor maps the model error sentinels to HTTP status codes:
// ErrFileSystem is a missing thread or file, ErrPrecondition a bad id or
// manifest, and ErrCollaboratorUnavailable an upstream provider failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrFileSystem):
		return http.StatusNotFound
	case errors.Is(err, model.ErrPrecondition):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrCollaboratorUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
