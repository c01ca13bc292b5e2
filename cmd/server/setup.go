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

// Package main is the entry point of the facts video server. This file builds
// the state shared by the HTTP handlers and the Pub/Sub listeners.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/jaycherian/gcp-go-facts-video/internal/api"
	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/services"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/workflow"
)

// StateManager holds the dependencies shared by the HTTP handlers and the
// Pub/Sub listeners.
type StateManager struct {
	config *cloud.Config           // Loaded once by GetConfig.
	cloud  *cloud.ServiceClients   // Long-lived clients, closed on shutdown.
	videos *workflow.VideoWorkflow // The end-to-end workflow.
	server *api.Server             // HTTP handlers.
}

var state = &StateManager{}

// SetupOS loads provider keys from a .env file when present and points the
// configuration loader at configs/ with the "local" runtime unless the
// environment already names one.
func SetupOS() (err error) {
	// Provider API keys usually live in .env during local development.
	if envErr := godotenv.Load(); envErr != nil && !os.IsNotExist(envErr) {
		slog.Warn("could not read .env", "error", envErr)
	}
	// Only fill in what the environment does not already say.
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads the configuration once.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		// Start from the defaults and overlay the TOML layers.
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// InitState creates the cloud clients, the collaborators and both workflows,
// then starts the Pub/Sub listeners.
func InitState(ctx context.Context) error {
	config := GetConfig()

	// Storage, Pub/Sub, IAM and genai clients, plus the configured models and listeners.
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	// The services the fact pipeline calls out to.
	collaborators, err := workflow.NewCollaborators(config, cloudClients)
	if err != nil {
		return err
	}

	// A nil runner means the render workflow runs the configured ffmpeg binary.
	facts := workflow.NewFactsWorkflow(config, collaborators)
	render := workflow.NewRenderWorkflow(config, nil, cloudClients.StorageClient)
	state.videos = workflow.NewVideoWorkflow(facts, render)

	// The API reads finished threads straight from the output root.
	state.server = &api.Server{
		Videos: state.videos,
		Manifests: &services.ManifestService{
			OutputRoot:     config.Application.OutputRoot,
			StorageClient:  cloudClients.StorageClient,
			IAMClient:      cloudClients.IAMClient,
			SignerEmail:    config.Application.SignerServiceAccountEmail,
			ArtifactBucket: config.Storage.ArtifactBucket,
		},
		SignedURLTTL: config.Storage.SignedURLExpiry(),
	}

	// Listeners need the workflow, so they start last.
	SetupListeners(cloudClients, ctx)
	return nil
}
