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
	"strings"
	"time"

	"github.com/kadirpekel/quackgate/internal/agentstore"
	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/connector/openaicompat"
	"github.com/kadirpekel/quackgate/internal/gateway"
	"github.com/kadirpekel/quackgate/internal/modelprovider"
	"github.com/kadirpekel/quackgate/internal/outputwriter"
)

const defaultMaxSteps = 15

// historyWindow bounds how much conversation history is forwarded to the
// upstream model on each step.
const historyWindow = 10

// Runner drives the multi-agent turn loop described by the agent store:
// it resolves which agent is active, synthesizes handover/skill-switch
// tools, filters tool visibility per agent, and calls the model provider
// once per step until the model stops requesting tool calls.
type Runner struct {
	defaultAgent string
	staticTools  []chatapi.Tool
	maxSteps     int
	store        *agentstore.Store
	models       *modelprovider.Registry
}

// New creates a Runner. staticTools are available to every agent (e.g.
// MCP-backed tools loaded at bootstrap) subject to each agent's own tool
// filter; maxSteps <= 0 falls back to 15.
func New(defaultAgent string, staticTools []chatapi.Tool, maxSteps int, store *agentstore.Store, models *modelprovider.Registry) *Runner {
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	return &Runner{
		defaultAgent: defaultAgent,
		staticTools:  staticTools,
		maxSteps:     maxSteps,
		store:        store,
		models:       models,
	}
}

// GetHandler implements gateway.ChatHandlerProvider. name must be
// "agent.<known-name>"; the default agent is served without pinning, so
// in-conversation handover between agents can still occur.
func (r *Runner) GetHandler(name string) (gateway.ChatHandler, error) {
	known := false
	for _, h := range r.ListHandlers() {
		if h == name {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("agent %q not found in multi-agent runner", name)
	}
	agentName := strings.TrimPrefix(name, "agent.")
	if agentName == r.defaultAgent {
		agentName = ""
	}
	return func(ctx context.Context, history []chatapi.ChatMessage, workspace string, w *outputwriter.Writer) error {
		return r.Chat(ctx, history, w, agentName)
	}, nil
}

// ListHandlers returns "agent.<name>" for every agent currently loaded.
func (r *Runner) ListHandlers() []string {
	agents := r.store.Agents()
	out := make([]string, 0, len(agents))
	for name := range agents {
		out = append(out, "agent."+name)
	}
	return out
}

// Chat runs the turn loop. agentName pins the active agent for the whole
// request; an empty agentName lets the model hand the conversation off
// between agents via synthesized "agent.<name>" tools, starting from
// whichever agent the history's most recent handover marker names (or
// the default agent, on no marker / an unknown name).
func (r *Runner) Chat(ctx context.Context, history []chatapi.ChatMessage, w *outputwriter.Writer, agentName string) error {
	conv := append([]chatapi.ChatMessage(nil), history...)
	tools := append([]chatapi.Tool(nil), r.staticTools...)
	h := &handover{kwargs: map[string]string{}}

	if agentName == "" {
		known := r.store.Agents()
		h.agent = determineAgent(conv, known, r.defaultAgent)
		for name, def := range known {
			tools = append(tools, agentSwitchTool(name, def, r.store.Agents, h))
		}
	} else {
		h.agent = agentName
	}

	for step := 0; step < r.maxSteps; step++ {
		currentTools := tools
		if step == r.maxSteps-1 {
			currentTools = nil
		}
		done, err := r.step(ctx, h, &conv, w, currentTools)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return nil
}

// step runs one model call for the currently active agent and applies
// its tool calls to history. It returns done=true once the model
// produces a tool-call-free, non-empty reply.
func (r *Runner) step(ctx context.Context, h *handover, history *[]chatapi.ChatMessage, w *outputwriter.Writer, available []chatapi.Tool) (bool, error) {
	def, ok := r.store.Agent(h.agent)
	if !ok {
		return false, fmt.Errorf("unknown agent %q", h.agent)
	}

	now := time.Now()
	systemPrompt := fillPlaceholders(def.SystemPrompt, h.kwargs, now)

	skills := r.store.Skills()
	skillTools := make([]chatapi.Tool, 0, len(skills))
	for name, skill := range skills {
		skillTools = append(skillTools, skillSwitchTool(name, skill, r.store.Skills))
	}

	filters := append([]string(nil), def.Tools...)
	if selected := determineSkill(*history, skills); selected != "" {
		skill := skills[selected]
		systemPrompt += "\n\n" + skill.Prompt
		filters = append(filters, skill.Tools...)
	}
	for _, name := range def.Skills {
		filters = append(filters, "switch_skill."+name)
	}

	candidates := append(append([]chatapi.Tool(nil), available...), skillTools...)
	currentTools := visibleTools(candidates, filters, h.agent)

	systemPrompt += "\n\n"
	if len(currentTools) > 0 {
		systemPrompt += "Final note, if you think a question / task is not in your competence call the agent better suited for it. If no agent matches, `agent.auto` is the front desk taking care of it.\n"
	}
	systemPrompt += "If you cannot answer a question, because it does not fit your job and you cannot hand it to another agent, let the user politely know."

	llm, err := r.models.GetLLM(def.Model)
	if err != nil {
		return false, err
	}

	windowed := *history
	if len(windowed) > historyWindow {
		windowed = windowed[len(windowed)-historyWindow:]
	}

	resp, err := llm(ctx, openaicompat.ChatOptions{
		Messages:       windowed,
		Tools:          currentTools,
		SystemPrompt:   systemPrompt,
		RemoveThoughts: true,
		Stream:         true,
	})
	if err != nil {
		return false, err
	}

	if err := streamToWriter(ctx, resp, w); err != nil {
		return false, err
	}

	return applyToolCalls(ctx, resp, history, w)
}
