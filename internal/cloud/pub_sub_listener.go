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

// This file defines a generic Pub/Sub listener that hands every message to a
// cor.Command. The message payload becomes the command's CtxIn. A message is
// acked only when the command finishes without errors; otherwise it is left
// for redelivery under the subscription's retry policy.
package cloud

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener connects one subscription to the command that processes its
// messages. Listeners outlive individual requests, so they live here with the
// other long-lived clients.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
	timeout      time.Duration // Zero means no per-message deadline.
}

// NewPubSubListener binds subscriptionID to command. The command may be nil
// and attached later with SetCommand.
//
// Inputs:
//   - pubsubClient: The Pub/Sub client.
//   - subscriptionID: The subscription to receive from.
//   - command: The command each message runs, or nil.
//
// Outputs:
//   - *PubSubListener: The listener. Call Listen to start it.
//   - error: Always nil.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	sub := pubsubClient.Subscription(subscriptionID)
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches command unless one is already set.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// SetTimeout bounds the processing of one message. Non-positive values remove the bound.
func (m *PubSubListener) SetTimeout(seconds int) {
	if seconds <= 0 {
		m.timeout = 0
		return
	}
	m.timeout = time.Duration(seconds) * time.Second
}

// Listen starts receiving in a background goroutine until ctx is cancelled.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening", "subscription", m.subscription.String())

	go func() {
		// One span per message, parented to the listener context.
		tracer := otel.Tracer("message-listener")

		err := m.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			spanCtx, span := tracer.Start(ctx, "receive-message")
			defer span.End()
			span.SetAttributes(attribute.String("msg", string(msg.Data)), attribute.String("msg_id", msg.ID))

			// Leave the message for redelivery until a command is attached.
			if m.command == nil {
				span.SetStatus(codes.Error, "no command attached")
				msg.Nack()
				return
			}

			runCtx := spanCtx
			// Bound one run by the subscription timeout.
			if m.timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(spanCtx, m.timeout)
				defer cancel()
			}

			// Every message gets its own chain context; Close removes its temp files.
			chainCtx := cor.NewBaseContext()
			defer chainCtx.Close()
			chainCtx.SetContext(runCtx)
			chainCtx.Add(cor.CtxIn, string(msg.Data))

			// Run the workflow synchronously inside the callback.
			m.command.Execute(chainCtx)

			if !chainCtx.HasErrors() {
				span.SetStatus(codes.Ok, "success")
				msg.Ack()
				return
			}
			span.SetStatus(codes.Error, "failed")
			for name, e := range chainCtx.GetErrors() {
				slog.ErrorContext(spanCtx, "error executing chain", "command", name, "error", e)
			}
			// No Ack: Pub/Sub redelivers after the ack deadline.
		})
		if err != nil {
			slog.Error("error receiving data", "error", err)
		}
	}()
}
