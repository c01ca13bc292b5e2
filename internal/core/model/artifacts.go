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

// Package model holds the domain types shared by the pipeline stages. This
// file fixes the layout of a thread directory on disk.
package model

import (
	"fmt"
	"os"
	"path/filepath"
)

// File names inside a thread directory. Each is written by exactly one stage.
const (
	AudioFileName    = "output.wav"
	ManifestFileName = "result.json"
	VideoFileName    = "video.mp4"
	MuxedFileName    = "video_with_audio.mp4"
	FinalFileName    = "video_with_audio_subtitle.mp4"
	SubtitleFileName = "subtitles.ass"
	ConcatFileName   = "segments.txt"
	imageFileFormat  = "image_%d.png"
	segmentFormat    = "segment_%02d.mp4"
)

// ThreadDir is the directory holding every artifact of one request.
func ThreadDir(outputRoot string, threadID string) string {
	return filepath.Join(outputRoot, threadID)
}

// ImageFileName names the n-th generated image, counting from 1.
func ImageFileName(n int) string {
	return fmt.Sprintf(imageFileFormat, n)
}

// SegmentFileName names the rendered clip of the i-th slide, counting from 0.
func SegmentFileName(i int) string {
	return fmt.Sprintf(segmentFormat, i)
}

// EnsureThreadDir creates the thread directory on first use.
//
// Inputs:
//   - outputRoot: The directory holding every thread directory.
//   - threadID: Must pass ValidThreadID.
//
// Outputs:
//   - string: The thread directory.
//   - error: ErrPrecondition for a bad id, ErrFileSystem when mkdir fails.
func EnsureThreadDir(outputRoot string, threadID string) (string, error) {
	// The id becomes a path element, so it is validated first.
	if !ValidThreadID(threadID) {
		return "", fmt.Errorf("%w: invalid thread id %q", ErrPrecondition, threadID)
	}
	dir := ThreadDir(outputRoot, threadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create %s: %w", ErrFileSystem, dir, err)
	}
	return dir, nil
}
