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

package agentstore

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// splitFrontMatter splits a "---\n<yaml>\n---\n<body>" document into its
// YAML metadata block and body. The file must start with "---" on its own
// section boundary, matching the teacher's split("---") / parts[0]=="" check.
func splitFrontMatter(content, path string) (metadataYAML, body string, err error) {
	parts := strings.Split(content, "---")
	if len(parts) < 3 || strings.TrimSpace(parts[0]) != "" {
		return "", "", fmt.Errorf("invalid file format, expected YAML metadata enclosed by '---': %s", path)
	}
	return parts[1], strings.TrimSpace(strings.Join(parts[2:], "---")), nil
}

// stringList normalizes a YAML value that may be a list of strings or a
// single comma-separated string into a []string.
func stringList(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func parseAgentFile(content, path, defaultModel string) (AgentDefinition, error) {
	metaYAML, body, err := splitFrontMatter(content, path)
	if err != nil {
		return AgentDefinition{}, err
	}
	var meta agentMetadata
	if err := yaml.Unmarshal([]byte(metaYAML), &meta); err != nil {
		return AgentDefinition{}, fmt.Errorf("invalid YAML metadata in %s: %w", path, err)
	}
	model := meta.Model
	if model == "" {
		model = defaultModel
	}
	description := meta.Description
	if description == "" {
		description = "No description provided."
	}
	return AgentDefinition{
		Description:      description,
		Model:            model,
		Tools:            stringList(meta.Tools),
		Skills:           stringList(meta.Skills),
		SystemPrompt:     body,
		SystemPromptLast: meta.SystemPromptLast,
	}, nil
}

func parseSkillFile(content, path string) (Skill, error) {
	metaYAML, body, err := splitFrontMatter(content, path)
	if err != nil {
		return Skill{}, err
	}
	var meta skillMetadata
	if err := yaml.Unmarshal([]byte(metaYAML), &meta); err != nil {
		return Skill{}, fmt.Errorf("invalid YAML metadata in %s: %w", path, err)
	}
	return Skill{
		Description: meta.Description,
		Tools:       stringList(meta.Tools),
		Prompt:      body,
	}, nil
}

// deriveName turns a file path, relative to a root directory, into a
// dotted name: path separators become dots and the given suffix is
// stripped, e.g. "a/b/c.agent.md" -> "a.b.c".
func deriveName(relPath, suffix string) string {
	name := filepath.ToSlash(relPath)
	name = strings.TrimSuffix(name, suffix)
	return strings.ReplaceAll(name, "/", ".")
}
