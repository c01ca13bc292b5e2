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

// Package cloud holds the application configuration and the clients for the
// external services the pipeline talks to. This file holds the default prompt
// templates. They are Go text/template sources rendered with NewPromptTemplate
// and can be replaced through the prompt_templates table of the configuration.
package cloud

// Default prompt templates (text/template syntax). They can be replaced in
// the [prompt_templates] section of the configuration.
const (
	// Fields: .Input, .Examples, .FallbackTopics.
	DefaultTopicPrompt = `Decide whether the user has a specific topic in mind.
If they do, return that topic exactly as they wrote it. Do not add details to the topic coming from the user.
If they don't (for example they say 'idk', 'no', 'anything', 'surprise me'), pick an interesting,
fairly general topic yourself and set is_random to true.
{{- if .FallbackTopics}}
Good general topics look like: {{join .FallbackTopics ", "}}.
{{- end}}

Answer with a JSON object {"topic": string, "is_random": boolean}.
{{range .Examples}}
User input: '{{.Input}}'
{{json .Output}}
{{end}}
User input: '{{.Input}}'`

	// Fields: .Topic, .Example.
	DefaultFactsPrompt = `Search the web for the most surprising facts about {{.Topic}} and provide two outputs.

1. viral_fact: one short, engaging text of 80 to 100 words with a funny and ironic tone.
   It will be read out loud, so no bullet points, no emojis and no URLs.
2. description: 2 to 3 sentences expanding on the fact with more context and details.
   Include one relevant URL from the search results.

Answer only with a JSON object like this example:
{{json .Example}}`

	// Fields: .Topic, .ViralFact, .Description.
	DefaultImageInstructions = `Create an illustration brief for a short vertical video about "{{.Topic}}".
The narration says: {{.ViralFact}}
Background for the artist: {{.Description}}
Style: bold, colourful, photographic, a single clear subject, no text or captions in the image.`

	// Fields: .Instructions, .Example.
	DefaultImagePromptsPrompt = `Read the art direction brief below and write exactly two distinct,
thematically related prompts for a text-to-image model. Each prompt describes one scene.

Brief:
{{.Instructions}}

Answer only with a JSON array of two strings, like this example:
{{json .Example}}`
)
