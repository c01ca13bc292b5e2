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
// file defines the rendering types: the plan produced by timing
// reconciliation and the RenderState threaded through the render chain.
package model

// TransitionEffect is the cosmetic effect applied to one slide.
type TransitionEffect string

// Transition effects understood by the slideshow assembler.
const (
	EffectFadeIn        TransitionEffect = "fade-in"
	EffectFadeOut       TransitionEffect = "fade-out"
	EffectSlideInLeft   TransitionEffect = "slide-in-left"
	EffectSlideOutLeft  TransitionEffect = "slide-out-left"
	EffectSlideInRight  TransitionEffect = "slide-in-right"
	EffectSlideOutRight TransitionEffect = "slide-out-right"
	EffectZoomIn        TransitionEffect = "zoom-in"
	EffectZoomOut       TransitionEffect = "zoom-out"
)

// TransitionEffects is the palette slides draw from.
var TransitionEffects = []TransitionEffect{
	EffectFadeIn,
	EffectFadeOut,
	EffectSlideInLeft,
	EffectSlideOutLeft,
	EffectSlideInRight,
	EffectSlideOutRight,
	EffectZoomIn,
	EffectZoomOut,
}

// SlideSegment is one image of the slideshow with its reconciled duration.
type SlideSegment struct {
	ImagePath string           `json:"image_path"`       // PNG shown for the whole segment.
	Duration  float64          `json:"duration"`         // Seconds on screen.
	Effect    TransitionEffect `json:"effect,omitempty"` // Drawn at assembly when empty.
}

// RenderPlan is the output of timing reconciliation.
type RenderPlan struct {
	Target   float64        `json:"target"` // Seconds to fill: the narration length, or the drawn total when silent.
	Silent   bool           `json:"silent"` // True when the manifest has no audio.
	Segments []SlideSegment `json:"segments"`
}

// Total is the planned video length in seconds.
func (p *RenderPlan) Total() float64 {
	total := 0.0
	for _, s := range p.Segments {
		total += s.Duration
	}
	return total
}

// RenderState is threaded through the rendering commands. Each command returns
// a copy with the field it owns filled in.
type RenderState struct {
	ManifestPath    string      // result.json being rendered.
	ThreadDir       string      // Where every render artifact is written.
	Manifest        *Manifest   // Loaded by the manifest reader.
	Plan            *RenderPlan // Set by the timing reconciler.
	VideoPath       string      // Silent slideshow.
	MuxedPath       string      // Slideshow with narration.
	FinalPath       string      // Muxed video with burned-in subtitles.
	UploadedObjects []string    // gs:// URIs, when uploads are configured.
}

// Output is the most finished video produced so far.
func (r *RenderState) Output() string {
	switch {
	// Subtitled beats muxed beats silent.
	case r.FinalPath != "":
		return r.FinalPath
	case r.MuxedPath != "":
		return r.MuxedPath
	default:
		return r.VideoPath
	}
}

// Result summarises a finished render for callers.
func (r *RenderState) Result() *RenderResult {
	out := &RenderResult{
		VideoPath:       r.VideoPath,
		MuxedPath:       r.MuxedPath,
		FinalPath:       r.FinalPath,
		OutputPath:      r.Output(),
		UploadedObjects: r.UploadedObjects,
	}
	if r.Manifest != nil {
		out.ThreadID = r.Manifest.ThreadID
	}
	if r.Plan != nil {
		out.Plan = *r.Plan
	}
	return out
}

// RenderResult lists the artifacts of a finished render.
type RenderResult struct {
	ThreadID        string     `json:"thread_id"`
	VideoPath       string     `json:"video_path"`
	MuxedPath       string     `json:"muxed_path,omitempty"`
	FinalPath       string     `json:"final_path,omitempty"`
	OutputPath      string     `json:"output_path"`
	UploadedObjects []string   `json:"uploaded_objects,omitempty"`
	Plan            RenderPlan `json:"plan"`
}
