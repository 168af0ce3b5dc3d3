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

// Package chatapi defines the shared chat message, tool, and streaming
// response model used across the gateway, the connectors, the tool-call
// parsers, and the multi-agent runner.
package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
)

// ChatContent is one part of a multi-part message, e.g. text or an image.
type ChatContent struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries a remote or data-uri image reference.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatMessage is one turn of the conversation. Content is either a plain
// string or a slice of ChatContent parts (multi-modal messages).
type ChatMessage struct {
	Role       string `json:"role"`
	Content    any    `json:"content"`
	ToolCalls  []any  `json:"tool_calls,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// UnmarshalJSON decodes content as either a plain string or a []ChatContent
// array, since encoding/json has no way to pick that apart on its own when
// the field is typed any — without this, a JSON content array would decode
// into []interface{} of map[string]interface{} instead of []ChatContent.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role       string          `json:"role"`
		Content    json.RawMessage `json:"content"`
		ToolCalls  []any           `json:"tool_calls,omitempty"`
		ToolCallID string          `json:"tool_call_id,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	m.Role = wire.Role
	m.ToolCalls = wire.ToolCalls
	m.ToolCallID = wire.ToolCallID
	m.Content = nil

	if len(wire.Content) == 0 || string(wire.Content) == "null" {
		return nil
	}
	var text string
	if err := json.Unmarshal(wire.Content, &text); err == nil {
		m.Content = text
		return nil
	}
	var parts []ChatContent
	if err := json.Unmarshal(wire.Content, &parts); err != nil {
		return fmt.Errorf("decoding message content: %w", err)
	}
	m.Content = parts
	return nil
}

// Text returns the first textual part of the message, or the whole content
// when it is already a plain string.
func (m ChatMessage) Text() string {
	switch v := m.Content.(type) {
	case string:
		return v
	case []ChatContent:
		for _, part := range v {
			if part.Type == "text" && part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

// ToolParameter describes one named parameter of a Tool's schema.
type ToolParameter struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ToolCallable is the function bound to a Tool. It runs synchronously but
// may itself call out to a goroutine/channel internally; the runner always
// invokes it via a context so long-running callables can observe
// cancellation.
type ToolCallable func(ctx context.Context, args map[string]any) (string, error)

// Tool is a capability exposed to the model. Name is a dotted path
// (namespace.sub.leaf); a name ending in ".__main__" marks a namespace
// anchor (see the runner's tool-visibility policy).
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]ToolParameter
	Callable    ToolCallable
}

// ToolCall is a parsed request by the model to invoke a Tool.
type ToolCall struct {
	ID     string
	Tool   Tool
	Params map[string]any
}

// ParsedCall is either a successfully parsed *ToolCall or, on parse/lookup
// failure, an explanatory error string that gets fed back to the model as
// a synthetic tool message instead of aborting the turn.
type ParsedCall struct {
	Call *ToolCall
	Err  string
}

// LLMResponse abstracts a buffered or live-streamed model reply. Text and
// ToolCalls are only meaningful after Stream has been fully drained.
type LLMResponse interface {
	// Stream yields plain-text tokens (tool-call payloads are withheld).
	Stream(ctx context.Context) (<-chan string, <-chan error)

	// Text returns the full response text. Valid only after Stream drains.
	Text() string

	// ToolCalls returns the parsed calls. Valid only after Stream drains.
	ToolCalls() []ParsedCall
}
