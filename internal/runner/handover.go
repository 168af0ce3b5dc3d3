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

package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/quackgate/internal/agentstore"
	"github.com/kadirpekel/quackgate/internal/chatapi"
)

const switchedAgentMarker = "Successfully switched to agent: `"
const switchedSkillMarker = "Successfully switched to skill: `"

// handover tracks the mutable (active agent, carried kwargs) pair a
// switch-agent tool callable mutates when the model invokes it.
type handover struct {
	agent  string
	kwargs map[string]string
}

// agentSwitchTool builds the "agent.<name>" handover tool for one known
// agent definition. Invoking it (re-)targets h at that agent and records
// the model's call arguments as template kwargs for the next step.
func agentSwitchTool(name string, def agentstore.AgentDefinition, known func() map[string]agentstore.AgentDefinition, h *handover) chatapi.Tool {
	return chatapi.Tool{
		Name:        "agent." + name,
		Description: def.Description,
		Parameters:  map[string]chatapi.ToolParameter{},
		Callable: func(ctx context.Context, args map[string]any) (string, error) {
			if _, ok := known()[name]; !ok {
				slog.Info("failed to switch agent, unknown agent name", "agent", name)
				return fmt.Sprintf("Failed to switch agent, unknown agent name: `%s`", name), nil
			}
			h.agent = name
			h.kwargs = stringifyArgs(args)
			slog.Info("successfully switched to agent", "agent", name)
			return switchedAgentMarker + name + "`", nil
		},
	}
}

// skillSwitchTool builds the "switch_skill.<name>" tool for one skill.
func skillSwitchTool(name string, skill agentstore.Skill, known func() map[string]agentstore.Skill) chatapi.Tool {
	return chatapi.Tool{
		Name:        "switch_skill." + name,
		Description: fmt.Sprintf("Select the `%s` skill: %s", name, skill.Description),
		Parameters:  map[string]chatapi.ToolParameter{},
		Callable: func(ctx context.Context, args map[string]any) (string, error) {
			if _, ok := known()[name]; !ok {
				slog.Info("failed to switch skill, unknown skill name", "skill", name)
				return fmt.Sprintf("Failed to switch skill, unknown skill name: `%s`", name), nil
			}
			slog.Info("successfully switched to skill", "skill", name)
			return switchedSkillMarker + name + "`", nil
		},
	}
}

func stringifyArgs(args map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

// determineAgent scans history for the most recent handover marker and
// returns the named agent if it is still known, otherwise fallback.
func determineAgent(history []chatapi.ChatMessage, known map[string]agentstore.AgentDefinition, fallback string) string {
	agent := fallback
	for _, msg := range history {
		if line := lastMarkerLine(msg.Text(), switchedAgentMarker); line != "" {
			agent = line
		}
	}
	if _, ok := known[agent]; !ok {
		agent = fallback
	}
	return agent
}

// determineSkill scans history for the most recent skill-switch marker,
// returning "" if none is found or it no longer names a known skill.
func determineSkill(history []chatapi.ChatMessage, known map[string]agentstore.Skill) string {
	var skill string
	for _, msg := range history {
		if line := lastMarkerLine(msg.Text(), switchedSkillMarker); line != "" {
			skill = line
		}
	}
	if _, ok := known[skill]; !ok {
		return ""
	}
	return skill
}

func lastMarkerLine(text, marker string) string {
	if !strings.Contains(text, marker) {
		return ""
	}
	var found string
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, marker) {
			found = strings.ReplaceAll(strings.ReplaceAll(line, marker, ""), "`", "")
		}
	}
	return found
}
