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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/toolcall"
)

// nativeStreamResponse drains an SSE chat/completions stream and coalesces
// structured tool_calls deltas by index, matching
// OpenAIToolCallingResponseStream.
type nativeStreamResponse struct {
	body  io.ReadCloser
	tools []chatapi.Tool

	text      strings.Builder
	toolCalls []chatapi.ParsedCall
}

func newNativeStreamResponse(body io.ReadCloser, tools []chatapi.Tool) *nativeStreamResponse {
	return &nativeStreamResponse{body: body, tools: tools}
}

func (r *nativeStreamResponse) Stream(ctx context.Context) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		defer r.body.Close()

		acc := toolcall.NewNativeAccumulator()
		scanner := bufio.NewScanner(r.body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			line = line[len("data: "):]
			if bytes.Equal(line, []byte("[DONE]")) {
				break
			}
			var chunk wireStreamChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				select {
				case errc <- fmt.Errorf("upstream error: %s", chunk.Error.Message):
				case <-ctx.Done():
				}
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			for _, d := range choice.Delta.ToolCalls {
				acc.Add(toolcall.NativeDelta{
					Index:             d.Index,
					ID:                d.ID,
					Name:              d.Function.Name,
					ArgumentsFragment: d.Function.Arguments,
				})
			}
			if choice.Delta.Content != "" {
				r.text.WriteString(choice.Delta.Content)
				select {
				case out <- choice.Delta.Content:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case errc <- fmt.Errorf("reading stream: %w", err):
			case <-ctx.Done():
			}
			return
		}
		r.toolCalls = acc.Finish(r.tools)
	}()
	return out, errc
}

func (r *nativeStreamResponse) Text() string                   { return r.text.String() }
func (r *nativeStreamResponse) ToolCalls() []chatapi.ParsedCall { return r.toolCalls }

// nativeBufferedResponse wraps a non-streamed response already carrying a
// resolved tool_calls list, matching OpenAIToolCallingResponse.
type nativeBufferedResponse struct {
	text      string
	toolCalls []chatapi.ParsedCall
}

func newNativeBufferedResponse(msg wireResponseMessage, tools []chatapi.Tool) *nativeBufferedResponse {
	var deltas []toolcall.NativeDelta
	for i, tc := range msg.ToolCalls {
		deltas = append(deltas, toolcall.NativeDelta{
			Index:             i,
			ID:                tc.ID,
			Name:              tc.Function.Name,
			ArgumentsFragment: tc.Function.Arguments,
		})
	}
	return &nativeBufferedResponse{
		text:      msg.Content,
		toolCalls: toolcall.ParseBuffered(deltas, tools),
	}
}

func (r *nativeBufferedResponse) Stream(ctx context.Context) (<-chan string, <-chan error) {
	return bufferedWordStream(ctx, r.text)
}
func (r *nativeBufferedResponse) Text() string                   { return strings.TrimSpace(r.text) }
func (r *nativeBufferedResponse) ToolCalls() []chatapi.ParsedCall { return r.toolCalls }

// inBandStreamResponse scans a streamed response for "[CALL] {json}"
// payloads embedded in plain text, matching CustomToolCallingResponseStream.
type inBandStreamResponse struct {
	body    io.ReadCloser
	scanner *toolcall.InBandScanner

	text      strings.Builder
	toolCalls []chatapi.ParsedCall
}

func newInBandStreamResponse(body io.ReadCloser, tools []chatapi.Tool) *inBandStreamResponse {
	return &inBandStreamResponse{body: body, scanner: toolcall.NewInBandScanner(tools)}
}

func (r *inBandStreamResponse) Stream(ctx context.Context) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		defer r.body.Close()

		scanner := bufio.NewScanner(r.body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		emit := func(words []string) bool {
			for _, w := range words {
				select {
				case out <- w:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			line = line[len("data: "):]
			if bytes.Equal(line, []byte("[DONE]")) {
				break
			}
			var chunk wireStreamChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				select {
				case errc <- fmt.Errorf("upstream error: %s", chunk.Error.Message):
				case <-ctx.Done():
				}
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			token := chunk.Choices[0].Delta.Content
			if token == "" {
				continue
			}
			r.text.WriteString(token)
			if !emit(r.scanner.Feed(token)) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case errc <- fmt.Errorf("reading stream: %w", err):
			case <-ctx.Done():
			}
			return
		}
		emit(r.scanner.Flush())
		r.toolCalls = r.scanner.Finish()
	}()
	return out, errc
}

func (r *inBandStreamResponse) Text() string                   { return r.text.String() }
func (r *inBandStreamResponse) ToolCalls() []chatapi.ParsedCall { return r.toolCalls }

// inBandBufferedResponse extracts a "[CALL]" payload from a complete,
// non-streamed response body, matching CustomToolCallingResponse.
type inBandBufferedResponse struct {
	visibleText string
	toolCalls   []chatapi.ParsedCall
}

func newInBandBufferedResponse(rawText string, tools []chatapi.Tool) *inBandBufferedResponse {
	visible, payload := toolcall.SplitInBandPayload(rawText, len(tools) > 0)
	return &inBandBufferedResponse{
		visibleText: visible,
		toolCalls:   toolcall.ParseInBand(payload, tools),
	}
}

func (r *inBandBufferedResponse) Stream(ctx context.Context) (<-chan string, <-chan error) {
	return bufferedWordStream(ctx, r.visibleText)
}
func (r *inBandBufferedResponse) Text() string                   { return strings.TrimSpace(r.visibleText) }
func (r *inBandBufferedResponse) ToolCalls() []chatapi.ParsedCall { return r.toolCalls }

// bufferedWordStream fakes a token stream for a response that arrived in
// one shot, splitting on spaces the way LLMResponse.stream's fallback does.
func bufferedWordStream(ctx context.Context, text string) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for _, word := range strings.Split(text, " ") {
			select {
			case out <- word + " ":
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc
}
