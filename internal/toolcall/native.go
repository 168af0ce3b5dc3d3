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

// Package toolcall implements the two ways a model reply encodes tool
// invocations: the OpenAI-native structured "tool_calls" delta stream, and
// the in-band "[CALL] {json}" convention used by connectors without native
// function calling.
package toolcall

import (
	"encoding/json"
	"fmt"

	"github.com/kadirpekel/quackgate/internal/chatapi"
)

// NativeDelta is one streamed tool-call fragment as delivered by the
// OpenAI-compatible wire format. String fields are empty when the delta
// does not carry them; callers pass Index always.
type NativeDelta struct {
	Index             int
	ID                string
	Name              string
	ArgumentsFragment string
}

type nativeCall struct {
	id        string
	name      string
	arguments string
}

// NativeAccumulator coalesces streamed tool-call deltas by index, the way
// the reference client accumulates `chunk.choices[0].delta.tool_calls`.
type NativeAccumulator struct {
	calls map[int]*nativeCall
	order []int
}

// NewNativeAccumulator returns an empty accumulator.
func NewNativeAccumulator() *NativeAccumulator {
	return &NativeAccumulator{calls: make(map[int]*nativeCall)}
}

// Add merges one delta into the call at its index, creating it on first
// sight. Empty ID/Name fields never overwrite a previously-seen value;
// ArgumentsFragment is always appended.
func (a *NativeAccumulator) Add(d NativeDelta) {
	c, ok := a.calls[d.Index]
	if !ok {
		c = &nativeCall{}
		a.calls[d.Index] = c
		a.order = append(a.order, d.Index)
	}
	if d.ID != "" {
		c.id = d.ID
	}
	if d.Name != "" {
		c.name = d.Name
	}
	c.arguments += d.ArgumentsFragment
}

// Finish resolves every accumulated call against tools, in the order the
// calls were first seen, and returns one ParsedCall per entry: either a
// bound *ToolCall or an explanatory error string when the name is unknown
// or the arguments are not valid JSON.
func (a *NativeAccumulator) Finish(tools []chatapi.Tool) []chatapi.ParsedCall {
	var out []chatapi.ParsedCall
	for _, idx := range a.order {
		c := a.calls[idx]
		out = append(out, resolveNativeCall(c.id, c.name, c.arguments, tools))
	}
	return out
}

// ParseBuffered resolves a non-streamed response's tool_calls list in one
// shot (index order as returned by the API), for providers that never
// stream.
func ParseBuffered(deltas []NativeDelta, tools []chatapi.Tool) []chatapi.ParsedCall {
	acc := NewNativeAccumulator()
	for _, d := range deltas {
		acc.Add(d)
	}
	return acc.Finish(tools)
}

func resolveNativeCall(id, name, arguments string, tools []chatapi.Tool) chatapi.ParsedCall {
	args := map[string]any{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return chatapi.ParsedCall{Err: fmt.Sprintf("Failed to parse arguments for tool '%s': %v", name, err)}
		}
	}
	// Matches the reference implementation's asymmetric comparison: the
	// tool's own name is lower-cased, the call's name is taken verbatim.
	for _, tool := range tools {
		if lower(tool.Name) == name {
			return chatapi.ParsedCall{Call: &chatapi.ToolCall{ID: id, Tool: tool, Params: args}}
		}
	}
	return chatapi.ParsedCall{Err: fmt.Sprintf("Tool '%s' not found.", name)}
}
