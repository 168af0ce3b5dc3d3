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

package openaicompat

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/quackgate/internal/chatapi"
)

func drain(t *testing.T, out <-chan string, errc <-chan error) string {
	t.Helper()
	var sb strings.Builder
	for out != nil || errc != nil {
		select {
		case s, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			sb.WriteString(s)
		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			require.NoError(t, err)
		}
	}
	return sb.String()
}

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func TestMessagesToWireStripsThoughtsAndKeepsToolCalls(t *testing.T) {
	tool := chatapi.Tool{Name: "search"}
	messages := []chatapi.ChatMessage{
		{Role: "user", Content: "before <think>secret</think> after"},
		{
			Role: "assistant",
			ToolCalls: []any{&chatapi.ToolCall{
				ID:     "call_1",
				Tool:   tool,
				Params: map[string]any{"query": "go"},
			}},
		},
	}
	wire := messagesToWire(messages, true)
	require.Equal(t, "before after", wire[0].Content)
	require.Len(t, wire[1].ToolCalls, 1)
	require.Equal(t, "search", wire[1].ToolCalls[0].Function.Name)
}

func TestMessagesToWireStripsThoughtsFromJSONDecodedMultiPartContent(t *testing.T) {
	var m chatapi.ChatMessage
	raw := `{"role":"user","content":[{"type":"text","text":"before <think>secret</think> after"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	wire := messagesToWire([]chatapi.ChatMessage{m}, true)
	parts, ok := wire[0].Content.([]chatapi.ChatContent)
	require.True(t, ok)
	require.Equal(t, "before after", parts[0].Text)
}

func TestFlattenTextOnlyFlattensJSONDecodedMultiPartContent(t *testing.T) {
	var m chatapi.ChatMessage
	raw := `{"role":"user","content":[{"type":"text","text":"hello"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	flat := flattenTextOnly(m.Content)
	require.Equal(t, "hello", flat)
}

func TestToolsToWireBuildsJSONSchema(t *testing.T) {
	tools := []chatapi.Tool{{
		Name:        "search",
		Description: "search the web",
		Parameters: map[string]chatapi.ToolParameter{
			"query": {Type: "string", Description: "the search query"},
		},
	}}
	wire := toolsToWire(tools)
	require.Len(t, wire, 1)
	require.Equal(t, "function", wire[0].Type)
	props := wire[0].Function.Parameters["properties"].(map[string]any)
	require.Contains(t, props, "query")
}

func TestNativeBufferedResponseResolvesToolCalls(t *testing.T) {
	msg := wireResponseMessage{
		Content: "",
		ToolCalls: []wireToolCall{
			{ID: "call_1", Function: wireFunctionCall{Name: "search", Arguments: `{"query":"go"}`}},
		},
	}
	resp := newNativeBufferedResponse(msg, []chatapi.Tool{{Name: "search"}})
	out, errc := resp.Stream(context.Background())
	drain(t, out, errc)
	require.Len(t, resp.ToolCalls(), 1)
	require.Equal(t, "call_1", resp.ToolCalls()[0].Call.ID)
}

func TestInBandBufferedResponseSplitsPayload(t *testing.T) {
	raw := `I will search. [CALL] {"name": "search", "parameters": {"query": "go"}}`
	resp := newInBandBufferedResponse(raw, []chatapi.Tool{{Name: "search"}})
	require.Equal(t, "I will search.", resp.Text())
	require.Len(t, resp.ToolCalls(), 1)
	require.Equal(t, "go", resp.ToolCalls()[0].Call.Params["query"])
}

func TestNativeStreamResponseAccumulatesTextAndToolCalls(t *testing.T) {
	sse := "data: {\"choices\":[{\"delta\":{\"content\":\"hi \"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"search\",\"arguments\":\"{}\"}}]}}]}\n" +
		"data: [DONE]\n"
	resp := newNativeStreamResponse(nopCloser{strings.NewReader(sse)}, []chatapi.Tool{{Name: "search"}})
	out, errc := resp.Stream(context.Background())
	text := drain(t, out, errc)
	require.Equal(t, "hi ", text)
	require.Len(t, resp.ToolCalls(), 1)
	require.Equal(t, "call_1", resp.ToolCalls()[0].Call.ID)
}

func TestInBandStreamResponseWithholdsCallPayload(t *testing.T) {
	sse := "data: {\"choices\":[{\"delta\":{\"content\":\"ok [CALL] \"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"{\\\"name\\\": \\\"search\\\", \\\"parameters\\\": {}}\"}}]}\n" +
		"data: [DONE]\n"
	resp := newInBandStreamResponse(nopCloser{strings.NewReader(sse)}, []chatapi.Tool{{Name: "search"}})
	out, errc := resp.Stream(context.Background())
	text := drain(t, out, errc)
	require.Equal(t, "ok ", text)
	require.Len(t, resp.ToolCalls(), 1)
}
