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

// Package commands holds one cor.Command per pipeline stage. Orchestrator
// stages pass a model.PipelineState from CtxIn to CtxOut; rendering stages do
// the same with a model.RenderState.
package commands

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/cor"
	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// Context keys written next to CtxOut so callers can find results after the
// chain has moved on.
const (
	ManifestKey = "__MANIFEST__"
	RequestKey  = "__REQUEST__"
)

// pipelineState reads the fact pipeline state stored under key. Values and
// pointers are both accepted.
func pipelineState(context cor.Context, key string) (model.PipelineState, error) {
	switch v := context.Get(key).(type) {
	case model.PipelineState:
		return v, nil
	case *model.PipelineState:
		if v != nil {
			return *v, nil
		}
	}
	return model.PipelineState{}, fmt.Errorf("%w: expected a pipeline state in %s, got %T", model.ErrPrecondition, key, context.Get(key))
}

// renderState reads the render state under key. A state without a manifest
// is rejected.
func renderState(context cor.Context, key string) (*model.RenderState, error) {
	if v, ok := context.Get(key).(*model.RenderState); ok && v != nil && v.Manifest != nil {
		return v, nil
	}
	return nil, fmt.Errorf("%w: expected a render state in %s, got %T", model.ErrPrecondition, key, context.Get(key))
}

// RandomSource is a math/rand/v2 generator that is safe for concurrent use.
// Commands are shared by every request, so each draw takes the lock.
type RandomSource struct {
	// Guards rng.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource seeds a PCG generator. A zero seed uses the clock.
func NewRandomSource(seed uint64) *RandomSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	// The second PCG word is derived from the seed.
	return &RandomSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// IntN returns a uniform int in [0, n). n must be positive.
func (r *RandomSource) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}
