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

// Package cloud holds the application configuration and the clients for the
// external services the pipeline talks to. This file creates those clients
// once at startup.
//
// Logic Flow:
//  1. Storage, Pub/Sub and genai clients are created from the configuration.
//     The IAM credentials client is only created when URLs are signed on
//     behalf of a service account.
//  2. A PubSubListener is prepared for every configured subscription. Its
//     command is attached later, once the workflows exist.
//  3. Every configured agent model is wrapped in a rate limited
//     QuotaAwareGenerativeAIModel.
package cloud

import (
	"context"
	"fmt"
	"log/slog"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/genai"
)

// ServiceClients is the container for every external client, created once at
// startup and shared by the workflows, the HTTP handlers and the listeners.
type ServiceClients struct {
	StorageClient   *storage.Client                         // Artifact uploads and signed URLs.
	PubsubClient    *pubsub.Client                          // Request subscription.
	GenAIClient     *genai.Client                           // Vertex AI generative models.
	IAMClient       *credentials.IamCredentialsClient       // Signs URLs on behalf of the signer service account.
	PubSubListeners map[string]*PubSubListener              // Keyed by the logical name from the config.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel // Keyed by the logical name from the config.
}

// Close releases every client that was created. The genai client holds no
// connection of its own.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// NewCloudServiceClients creates the storage, Pub/Sub, IAM and genai clients
// described by config, a listener for every configured subscription and a
// rate limited model for every configured agent model.
//
// Inputs:
//   - ctx: Governs client creation.
//   - config: The application configuration.
//
// Outputs:
//   - *ServiceClients: The clients. Call Close when done.
//   - error: The first client that failed to start.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	var storageOptions []option.ClientOption
	// An endpoint override points storage at an emulator.
	if config.Storage.Endpoint != "" {
		storageOptions = append(storageOptions, option.WithEndpoint(config.Storage.Endpoint))
	}
	sc, err := storage.NewClient(ctx, storageOptions...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}

	// Pub/Sub delivers video requests.
	pc, err := pubsub.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	slog.Info("creating genai client", "project", config.Application.GoogleProjectId, "location", config.Application.GoogleLocation)
	// All generative models go through Vertex AI.
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	var iamClient *credentials.IamCredentialsClient
	// Only needed to sign URLs without a local private key.
	if config.Application.SignerServiceAccountEmail != "" {
		iamClient, err = credentials.NewIamCredentialsClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("iam credentials client: %w", err)
		}
	}

	// Commands are attached later, once the workflows exist.
	subscriptions := make(map[string]*PubSubListener)
	for subKey, values := range config.TopicSubscriptions {
		actual, err := NewPubSubListener(pc, values.Name, nil)
		if err != nil {
			return nil, err
		}
		actual.SetTimeout(values.TimeoutInSeconds)
		subscriptions[subKey] = actual
	}

	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	// Every model gets its own generation config and rate limiter.
	for amKey, values := range config.AgentModels {
		slog.Debug("configuring agent model", "name", amKey, "model", values.Model, "grounded", values.EnableGoogle)
		agentModels[amKey] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, gc.Models, values.RateLimit)
	}

	cloud = &ServiceClients{
		StorageClient:   sc,
		PubsubClient:    pc,
		GenAIClient:     gc,
		IAMClient:       iamClient,
		PubSubListeners: subscriptions,
		AgentModels:     agentModels,
	}
	return cloud, nil
}
