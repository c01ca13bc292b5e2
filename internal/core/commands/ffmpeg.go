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

// Package commands provides the concrete cor.Command stages of the facts
// video workflows. This file defines how the rendering stages run ffmpeg.
// The stages build their filter graphs with ffmpeg-go and hand them to an
// FfmpegRunner, which lets tests record the arguments instead of encoding.
package commands

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// DefaultFfmpegCommand is looked up on PATH when no binary is configured.
const (
	DefaultFfmpegCommand = "ffmpeg"
	maxStderrTail        = 2048
)

// FfmpegRunner executes a compiled ffmpeg-go stream that writes output.
type FfmpegRunner interface {
	Run(ctx context.Context, output string, stream *ffmpeg.Stream) error
}

// ExecFfmpegRunner runs the ffmpeg binary at CommandPath. The process is
// killed when ctx is cancelled.
type ExecFfmpegRunner struct {
	// The ffmpeg binary, by name or path.
	CommandPath string
}

// NewExecFfmpegRunner runs commandPath, or DefaultFfmpegCommand when blank.
func NewExecFfmpegRunner(commandPath string) *ExecFfmpegRunner {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = DefaultFfmpegCommand
	}
	return &ExecFfmpegRunner{CommandPath: commandPath}
}

// Run executes the stream quietly and returns the end of stderr with any
// error.
func (r *ExecFfmpegRunner) Run(ctx context.Context, output string, stream *ffmpeg.Stream) error {
	args := append([]string{"-hide_banner", "-loglevel", "error"}, stream.GetArgs()...)
	cmd := exec.CommandContext(ctx, r.CommandPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.DebugContext(ctx, "running ffmpeg", "output", output, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("error running ffmpeg for %s: %w: %s", output, err, tail(stderr.String(), maxStderrTail))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
