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

// Hardcoded model instances used as few-shot examples in prompts. Showing the
// model a complete, well-formed JSON answer keeps its output parseable.
package model

// TopicExample pairs a raw user input with the resolution we expect for it.
type TopicExample struct {
	Input  string      `json:"input"`
	Output TopicResult `json:"output"`
}

// GetExampleTopics returns one concrete subject and one expression of
// indifference. The first must come back verbatim, the second picks a
// general topic and raises the random flag.
func GetExampleTopics() []TopicExample {
	return []TopicExample{
		{Input: "Indonesia", Output: TopicResult{Topic: "Indonesia", IsRandom: false}},
		{Input: "idk", Output: TopicResult{Topic: "sloths", IsRandom: true}},
		{Input: "the history of the Eiffel Tower", Output: TopicResult{Topic: "the history of the Eiffel Tower", IsRandom: false}},
	}
}

// GetExampleFact shows the two-field shape of a fact answer.
func GetExampleFact() *FactResult {
	return &FactResult{
		ViralFact: "Indonesia has more than seventeen thousand islands, which means that if you " +
			"visited a new one every single day you would need about forty-six years to see them all. " +
			"That is longer than most people keep a gym membership, and far longer than anyone has " +
			"ever managed to remember where they parked. Somewhere out there is an island nobody has " +
			"posted a selfie from, and honestly, it is probably thriving.",
		Description: "Indonesia is the largest archipelago in the world, spanning more than 17,000 " +
			"islands across the equator. Only about 6,000 of them are inhabited. " +
			"https://en.wikipedia.org/wiki/Indonesia",
	}
}

// GetExampleImagePrompts shows the two-prompt array expected from the
// image prompt generator.
func GetExampleImagePrompts() []string {
	return []string{
		"Aerial photograph of a turquoise tropical archipelago at golden hour, dozens of small green islands, soft haze, ultra detailed",
		"A lone wooden outrigger boat drifting between two uninhabited palm covered islands, calm glassy sea, cinematic lighting",
	}
}
