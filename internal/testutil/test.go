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

// Package test provides shared helpers for the test suites: configuration
// that needs no cloud credentials, fake collaborators, a recording ffmpeg
// runner and small media fixtures.
package test

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-facts-video/internal/cloud"
)

// Seed makes effect and duration draws reproducible in tests.
const Seed = 42

var (
	configOnce sync.Once
	config     *cloud.Config
)

// HandleErr fails the test when err is set.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SetupOS points the configuration loader at the repository's configs
// directory and the "test" runtime, wherever the test binary runs from.
func SetupOS() (err error) {
	// Absolute path, so the package directory of the test does not matter.
	if err = os.Setenv(cloud.EnvConfigFilePrefix, configDir()); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// configDir resolves the configs directory relative to this source file.
func configDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "configs"
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "configs")
}

// GetConfig loads the test configuration once and caches it.
func GetConfig() *cloud.Config {
	configOnce.Do(func() {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		c := cloud.NewConfig()
		if err := cloud.LoadConfig(c); err != nil {
			log.Fatalf("failed to load test config: %v\n", err)
		}
		config = c
	})
	return config
}

// NewConfig returns a fresh default configuration that writes under a
// temporary output root, exports no telemetry and draws from a fixed seed.
func NewConfig(t *testing.T) *cloud.Config {
	t.Helper()
	c := cloud.NewConfig()
	// Each test gets its own output root.
	c.Application.OutputRoot = filepath.Join(t.TempDir(), "output")
	c.Telemetry.Exporter = "none"
	c.Slideshow.RandomSeed = Seed
	c.Storage.ArtifactBucket = ""
	return c
}
