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

// Package timing fits a run of image display durations to a target length,
// normally the duration of the narration track.
package timing

import (
	"fmt"
	"math"

	"github.com/jaycherian/gcp-go-facts-video/internal/core/model"
)

// Selection is the prefix of candidate images that survives reconciliation
// together with the adjusted duration of each.
type Selection struct {
	Indexes   []int
	Durations []float64
}

// Total is the summed duration of the selection.
func (s Selection) Total() float64 {
	total := 0.0
	for _, d := range s.Durations {
		total += d
	}
	return total
}

// Len is the number of images kept.
func (s Selection) Len() int {
	return len(s.Indexes)
}

// Fit selects and trims durations so they add up to target.
//
// When the candidates are too short in total, every duration is first
// multiplied by ceil(target/sum). The (possibly stretched) sequence is then
// walked until the running total reaches target; that last segment is
// shortened by the overshoot and everything after it is dropped. The shrink
// is never more than one segment's own duration, so a kept segment never
// ends up with a negative length.
//
// An empty candidate list, a non-positive or non-finite duration, or a
// negative target is rejected with model.ErrPrecondition. A target of zero
// selects nothing.
//
// Inputs:
//   - durations: The drawn display time of every candidate image.
//   - target: The length to fill, in seconds.
//
// Outputs:
//   - Selection: The kept images and their durations.
//   - error: ErrPrecondition for invalid input.
func Fit(durations []float64, target float64) (Selection, error) {
	if len(durations) == 0 {
		return Selection{}, fmt.Errorf("%w: no candidate durations", model.ErrPrecondition)
	}
	// Validate the target before touching the durations.
	if math.IsNaN(target) || math.IsInf(target, 0) || target < 0 {
		return Selection{}, fmt.Errorf("%w: invalid target %v", model.ErrPrecondition, target)
	}

	sum := 0.0
	for i, d := range durations {
		if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			return Selection{}, fmt.Errorf("%w: duration %d is %v", model.ErrPrecondition, i, d)
		}
		sum += d
	}
	// Nothing to fill.
	if target == 0 {
		return Selection{Indexes: []int{}, Durations: []float64{}}, nil
	}

	stretched := make([]float64, len(durations))
	copy(stretched, durations)
	// Stretch by a whole factor so every image is shown equally longer.
	if sum < target {
		factor := math.Ceil(target / sum)
		for i := range stretched {
			stretched[i] *= factor
		}
	}

	out := Selection{Indexes: make([]int, 0, len(stretched)), Durations: make([]float64, 0, len(stretched))}
	running := 0.0
	// Keep images until the running total reaches target.
	for i, d := range stretched {
		running += d
		out.Indexes = append(out.Indexes, i)
		if running >= target {
			// Trim the overshoot from the last kept image.
			out.Durations = append(out.Durations, d-(running-target))
			return out, nil
		}
		out.Durations = append(out.Durations, d)
	}

	// Floating point can leave the stretched total a hair under target.
	last := len(out.Durations) - 1
	out.Durations[last] += target - running
	return out, nil
}
