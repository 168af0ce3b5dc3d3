// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package agentstore loads *.agent.md and *.skill.md files into an
// in-memory registry and keeps it in sync with the filesystem.
package agentstore

// AgentDefinition is one parsed *.agent.md file.
type AgentDefinition struct {
	Name             string
	Description      string
	Model            string
	Tools            []string
	Skills           []string
	SystemPrompt     string
	SystemPromptLast bool
}

// Skill is one parsed *.skill.md file.
type Skill struct {
	Name        string
	Description string
	Tools       []string
	Prompt      string
}

type agentMetadata struct {
	Description      string      `yaml:"description"`
	Model            string      `yaml:"model"`
	Tools            interface{} `yaml:"tools"`
	Skills           interface{} `yaml:"skills"`
	SystemPromptLast bool        `yaml:"system_prompt_last"`
}

type skillMetadata struct {
	Description string      `yaml:"description"`
	Tools       interface{} `yaml:"tools"`
}
