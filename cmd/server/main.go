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

// Package main is the entry point of the facts video server.
//
// The server exposes a REST API built on gin. A POST to /api/v1/videos runs
// the whole pipeline for one topic: a fact is found, narrated and illustrated,
// and the result is rendered into a subtitled video. Other routes list the
// finished threads, return their manifests, stream their videos and render
// them again.
//
// The same workflow is attached to the request subscription, so video
// requests can also arrive over Pub/Sub. Both paths are instrumented with
// OpenTelemetry.
//
// Functions:
//   - main: sets up logging, telemetry, configuration and clients, serves the
//     API and handles graceful shutdown.
//   - SetupOS, GetConfig, InitState: build the shared state (setup.go).
//   - SetupListeners: starts the Pub/Sub listeners (listeners.go).
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-facts-video/internal/telemetry"
)

// main wires everything together and blocks until the process is told to stop.
func main() {
	// Initialize structured logging for the application.
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	// The root context of the application. Cancelling it stops the listeners.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load application configuration from TOML files.
	config := GetConfig()

	// Initialize OpenTelemetry for distributed tracing and metrics.
	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	// Flush pending spans and metrics on the way out.
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()
	slog.Info("Tracing initialized")

	// Create the cloud clients, the workflows and the API server.
	if err := InitState(ctx); err != nil {
		slog.Error("Failed to initialize state", "error", err)
		log.Fatal(err)
	}
	defer state.cloud.Close()
	slog.Info("Initialized State")

	// Set up the Gin web server with default middleware.
	r := gin.Default()
	// Trace every incoming request.
	r.Use(otelgin.Middleware(config.Application.Name))
	// Permissive CORS, suitable for a local front-end.
	r.Use(cors.Default())

	// Group routes under the "/api/v1" prefix.
	apiV1 := r.Group("/api/v1")
	{
		state.server.VideoRouter(apiV1)
		state.server.Dashboard(apiV1)
	}

	// A request runs the whole pipeline synchronously, so the write timeout
	// has to cover image generation and rendering.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Application.Port),
		Handler:      r,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}

	// Serve in the background so main can wait for a signal.
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen", "error", err)
		}
	}()
	slog.Info("Server ready", "port", config.Application.Port)

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	// Give in-flight requests 5 seconds to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed", "error", err)
	}
	log.Println("Server exiting")
}
