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

package toolcall

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/quackgate/internal/chatapi"
)

// InBandScanner recognizes "[CALL] {json}" tool-call payloads embedded in a
// plain-text token stream, while leaving anything inside a <think>...
// </think> span untouched — a '[' encountered while thinking never starts
// tool-call buffering.
type InBandScanner struct {
	tools []chatapi.Tool

	isToolCall bool
	isThinking bool
	toolCalls  strings.Builder
	buffer     strings.Builder
}

// NewInBandScanner returns a scanner bound to the tool set available for
// this turn; with zero tools, "[CALL]" is never recognized as the start of
// a call (it passes through as plain text).
func NewInBandScanner(tools []chatapi.Tool) *InBandScanner {
	return &InBandScanner{tools: tools}
}

// Feed consumes one token chunk from the underlying model stream and
// returns the plain-text fragments that should be forwarded to the output
// writer, in emission order. Tool-call payload bytes are withheld and
// accumulated internally.
func (s *InBandScanner) Feed(token string) []string {
	var out []string
	var tokenBuffer strings.Builder

	for _, r := range token {
		c := string(r)
		switch {
		case s.isToolCall:
			s.toolCalls.WriteString(c)
		case c == "<":
			if tokenBuffer.Len() > 0 {
				out = append(out, tokenBuffer.String())
				tokenBuffer.Reset()
			}
			if s.buffer.Len() > 0 {
				out = append(out, s.buffer.String())
			}
			s.buffer.Reset()
			s.buffer.WriteString(c)
		case c == "[" && !s.isThinking:
			if tokenBuffer.Len() > 0 {
				out = append(out, tokenBuffer.String())
				tokenBuffer.Reset()
			}
			if s.buffer.Len() > 0 {
				out = append(out, s.buffer.String())
			}
			s.buffer.Reset()
			s.buffer.WriteString(c)
		case s.buffer.Len() > 0:
			if c == ">" || c == "]" || c == " " || c == "\n" || c == "\t" {
				word := s.buffer.String() + c
				s.buffer.Reset()
				if word == "<think>" {
					s.isThinking = true
				}
				if word == "</think>" {
					s.isThinking = false
				}
				if !s.isThinking && word == "[CALL]" && len(s.tools) > 0 {
					s.isToolCall = true
					word = ""
				}
				if word != "" {
					out = append(out, word)
				}
			} else {
				s.buffer.WriteString(c)
			}
		default:
			tokenBuffer.WriteString(c)
		}
	}
	if tokenBuffer.Len() > 0 {
		out = append(out, tokenBuffer.String())
	}
	return out
}

// Flush returns any partially-matched bracket buffer still pending once
// the underlying stream has ended, and must be called exactly once after
// the last Feed.
func (s *InBandScanner) Flush() []string {
	if s.buffer.Len() == 0 {
		return nil
	}
	out := []string{s.buffer.String()}
	s.buffer.Reset()
	return out
}

// Finish parses the accumulated "[CALL] {json}" payload(s) and resolves
// each against the tool set, returning one ParsedCall per detected call.
func (s *InBandScanner) Finish() []chatapi.ParsedCall {
	return ParseInBand(strings.TrimSpace(s.toolCalls.String()), s.tools)
}

// ParseInBand splits a raw "[CALL] {json}[CALL] {json}..." payload and
// resolves each JSON object against tools. Used for streamed scanners'
// Finish and for buffered (non-streaming) responses alike.
func ParseInBand(payload string, tools []chatapi.Tool) []chatapi.ParsedCall {
	var out []chatapi.ParsedCall
	for _, part := range strings.Split(payload, "[CALL]") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		var spec struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		}
		err := json.Unmarshal([]byte(part), &spec)
		if err == nil && spec.Name == "" {
			err = fmt.Errorf("KeyError: missing required key `name`")
		}
		if err != nil {
			out = append(out, chatapi.ParsedCall{Err: fmt.Sprintf(
				"Failed to load tool call with the following error: `%v`.\n\n"+
					"Detected Toolcall:\n```\n%s\n```\n\n"+
					"Possible reasons are:\n"+
					"  - `Extra data`: You wrote something else after the tool call. The tool call has to be your last output.\n"+
					"  - `Keyerror`: Your json object did not adhere to the format requiring `parameters` and `name` on top level.\n"+
					"Make sure your message ends on a tool call with no text after it and that it adheres to the correct format.",
				err, part)})
			continue
		}
		toolName := lower(spec.Name)
		found := false
		for _, tool := range tools {
			if lower(tool.Name) == toolName {
				out = append(out, chatapi.ParsedCall{Call: &chatapi.ToolCall{
					ID:     uuid.NewString(),
					Tool:   tool,
					Params: spec.Parameters,
				}})
				found = true
				break
			}
		}
		if !found {
			out = append(out, chatapi.ParsedCall{Err: fmt.Sprintf("Tool '%s' not found.", toolName)})
		}
	}
	return out
}
