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

// Package runner implements the multi-agent turn loop: determining the
// active agent, synthesizing handover and skill-switch tools, filtering
// tool visibility, and driving one model per step until the model stops
// requesting tool calls.
package runner

import (
	"strings"

	"github.com/kadirpekel/quackgate/internal/chatapi"
)

const mainAnchorSuffix = ".__main__"

// toolMatches reports whether name is covered by any glob in filters,
// where a filter either equals name exactly or ends in "*" and name
// starts with the filter's prefix.
func toolMatches(name string, filters []string) bool {
	for _, filter := range filters {
		if name == filter {
			return true
		}
		if strings.HasSuffix(filter, "*") && strings.HasPrefix(name, strings.TrimSuffix(filter, "*")) {
			return true
		}
	}
	return false
}

// namespaceAllowed applies the namespace-anchor visibility rule: among all
// tools named "<ns>.__main__", find the longest ns that is a prefix of
// name; if one exists, the tool is only visible to an agent whose own
// qualified name starts with that ns. Anchor tools themselves are always
// visible.
func namespaceAllowed(name string, available []chatapi.Tool, agentQualifiedName string) bool {
	if strings.HasSuffix(name, mainAnchorSuffix) {
		return true
	}
	var matched string
	for _, t := range available {
		if !strings.HasSuffix(t.Name, mainAnchorSuffix) {
			continue
		}
		ns := strings.TrimSuffix(t.Name, mainAnchorSuffix)
		if strings.HasPrefix(name, ns) && len(ns) > len(matched) {
			matched = ns
		}
	}
	if matched == "" {
		return true
	}
	return strings.HasPrefix(agentQualifiedName, matched)
}

// visibleTools returns the subset of candidates visible to agentName,
// given the tool-filter globs in filters and the full candidate set used
// to resolve namespace anchors.
func visibleTools(candidates []chatapi.Tool, filters []string, agentName string) []chatapi.Tool {
	selfTool := "agent." + agentName
	agentQualifiedName := selfTool
	out := make([]chatapi.Tool, 0, len(candidates))
	for _, t := range candidates {
		if t.Name == selfTool {
			continue
		}
		if !toolMatches(t.Name, filters) {
			continue
		}
		if !namespaceAllowed(t.Name, candidates, agentQualifiedName) {
			continue
		}
		out = append(out, t)
	}
	return out
}
