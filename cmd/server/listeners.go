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

package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
)

// SetupListeners attaches the video workflow to the request subscription and
// starts receiving. Each message is a topic, either as plain text or as a
// JSON request.
func SetupListeners(cloudClients *cloud.ServiceClients, ctx context.Context) {
	listener, ok := cloudClients.PubSubListeners[cloud.RequestSubscription]
	if !ok {
		slog.Info("no request subscription configured; serving HTTP only")
		return
	}
	// Every message runs the full video workflow.
	listener.SetCommand(state.videos)
	listener.Listen(ctx)
}
