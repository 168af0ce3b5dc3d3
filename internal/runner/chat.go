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

	"github.com/google/uuid"

	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/outputwriter"
)

// streamToWriter drains resp's token stream into w, routing tokens between
// the "default" and "thought" sections based on literal "<think>"/
// "</think>" boundary tokens, the same naive check the reference
// implementation applies.
func streamToWriter(ctx context.Context, resp chatapi.LLMResponse, w *outputwriter.Writer) error {
	tokens, errc := resp.Stream(ctx)
	isThinking := false
	for token := range tokens {
		switch token {
		case "<think>":
			isThinking = true
		case "</think>":
			isThinking = false
		}
		var err error
		if isThinking {
			err = w.Thought(ctx, token, false)
		} else {
			err = w.Default(ctx, token, false)
		}
		if err != nil {
			return err
		}
	}
	if err := <-errc; err != nil {
		return err
	}
	return nil
}

// applyToolCalls appends the assistant's reply and the results of any
// tool calls it made to *history, announcing each as a thought. It
// returns done=true when the reply had no tool calls and non-empty text,
// matching the termination rule in the turn loop.
func applyToolCalls(ctx context.Context, resp chatapi.LLMResponse, history *[]chatapi.ChatMessage, w *outputwriter.Writer) (bool, error) {
	calls := resp.ToolCalls()

	rawCalls := make([]any, 0, len(calls))
	for _, c := range calls {
		if c.Call != nil {
			rawCalls = append(rawCalls, c.Call)
		} else {
			rawCalls = append(rawCalls, c.Err)
		}
	}
	*history = append(*history, chatapi.ChatMessage{
		Role:      "assistant",
		Content:   resp.Text(),
		ToolCalls: rawCalls,
	})

	for _, parsed := range calls {
		if parsed.Call != nil {
			if err := runOneToolCall(ctx, parsed.Call, history, w); err != nil {
				return false, err
			}
			continue
		}
		if err := w.Thought(ctx, fmt.Sprintf("Failed parsing toolcall: `%s`", parsed.Err), true); err != nil {
			return false, err
		}
		result := fmt.Sprintf("Failed parsing toolcall with error: `%s`.", parsed.Err)
		*history = append(*history, chatapi.ChatMessage{
			Role:       "tool",
			Content:    result,
			ToolCallID: uuid.NewString(),
		})
		if err := w.Thought(ctx, fmt.Sprintf("Result:\n```\n%s\n```", parsed.Err), true); err != nil {
			return false, err
		}
	}

	if err := w.Default(ctx, "", false); err != nil {
		return false, err
	}

	return len(calls) == 0 && strings.TrimSpace(resp.Text()) != "", nil
}

func runOneToolCall(ctx context.Context, call *chatapi.ToolCall, history *[]chatapi.ChatMessage, w *outputwriter.Writer) error {
	if err := w.Thought(ctx, fmt.Sprintf("Calling Tool: `%s` with params `%v`", call.Tool.Name, call.Params), true); err != nil {
		return err
	}
	result, err := call.Tool.Callable(ctx, call.Params)
	if err != nil {
		result = err.Error()
	}
	*history = append(*history, chatapi.ChatMessage{
		Role:       "tool",
		Content:    result,
		ToolCallID: call.ID,
	})
	return w.Thought(ctx, fmt.Sprintf("Result:\n```\n%s\n```", result), true)
}
