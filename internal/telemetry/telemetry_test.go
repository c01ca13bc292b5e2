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

package telemetry_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jaycherian/gcp-go-facts-video/internal/telemetry"
)

func decode(t *testing.T, line string) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(line), &out))
	return out
}

func TestLogHandlerUsesCloudLoggingKeys(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(telemetry.NewLogHandler(&buf, slog.LevelInfo))

	logger.Warn("stage degraded", "command", "generate-audio")
	logger.Debug("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	entry := decode(t, lines[0])
	assert.Equal(t, "WARNING", entry["severity"])
	assert.Equal(t, "stage degraded", entry["message"])
	assert.Equal(t, "generate-audio", entry["command"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "logging.googleapis.com/trace")
}

func TestLogHandlerAddsSpanContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "request")
	defer span.End()

	var buf strings.Builder
	logger := slog.New(telemetry.NewLogHandler(&buf, slog.LevelInfo)).With("thread_id", "t1")
	logger.InfoContext(ctx, "manifest persisted")

	entry := decode(t, strings.TrimSpace(buf.String()))
	assert.Equal(t, "INFO", entry["severity"])
	assert.Equal(t, "t1", entry["thread_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["logging.googleapis.com/trace"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["logging.googleapis.com/spanId"])
	assert.Equal(t, true, entry["logging.googleapis.com/trace_sampled"])
}
