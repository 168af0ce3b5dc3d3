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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/quackgate/internal/chatapi"
)

func searchTool() chatapi.Tool {
	return chatapi.Tool{Name: "search", Description: "search the web"}
}

func TestNativeAccumulatorCoalescesByIndex(t *testing.T) {
	acc := NewNativeAccumulator()
	acc.Add(NativeDelta{Index: 0, ID: "call_1", Name: "search"})
	acc.Add(NativeDelta{Index: 0, ArgumentsFragment: `{"query":`})
	acc.Add(NativeDelta{Index: 0, ArgumentsFragment: `"go"}`})

	out := acc.Finish([]chatapi.Tool{searchTool()})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Call)
	require.Equal(t, "call_1", out[0].Call.ID)
	require.Equal(t, "go", out[0].Call.Params["query"])
}

func TestNativeAccumulatorUnknownTool(t *testing.T) {
	acc := NewNativeAccumulator()
	acc.Add(NativeDelta{Index: 0, ID: "x", Name: "missing", ArgumentsFragment: "{}"})
	out := acc.Finish([]chatapi.Tool{searchTool()})
	require.Len(t, out, 1)
	require.Nil(t, out[0].Call)
	require.Contains(t, out[0].Err, "not found")
}

func TestNativeAccumulatorMultipleCallsPreserveOrder(t *testing.T) {
	acc := NewNativeAccumulator()
	acc.Add(NativeDelta{Index: 1, ID: "second", Name: "search", ArgumentsFragment: "{}"})
	acc.Add(NativeDelta{Index: 0, ID: "first", Name: "search", ArgumentsFragment: "{}"})

	out := acc.Finish([]chatapi.Tool{searchTool()})
	require.Len(t, out, 2)
	require.Equal(t, "second", out[0].Call.ID)
	require.Equal(t, "first", out[1].Call.ID)
}

func TestInBandScannerPassesPlainText(t *testing.T) {
	s := NewInBandScanner([]chatapi.Tool{searchTool()})
	out := s.Feed("hello world")
	require.Equal(t, []string{"hello world"}, out)
	require.Empty(t, s.Flush())
	require.Empty(t, s.Finish())
}

func TestInBandScannerParsesCall(t *testing.T) {
	s := NewInBandScanner([]chatapi.Tool{searchTool()})
	var got []string
	feed := func(tok string) { got = append(got, s.Feed(tok)...) }

	feed("answer [CALL] ")
	feed(`{"name": "search", "parameters": {"query": "go"}}`)

	require.Equal(t, "answer ", strings.Join(got, ""))
	calls := s.Finish()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Call)
	require.Equal(t, "go", calls[0].Call.Params["query"])
}

func TestInBandScannerIgnoresBracketWhileThinking(t *testing.T) {
	s := NewInBandScanner([]chatapi.Tool{searchTool()})
	out := s.Feed("<think> array[0] </think>done")
	joined := strings.Join(out, "")
	require.Contains(t, joined, "array[0]")
	require.Contains(t, joined, "done")
	require.Empty(t, s.Finish())
}

func TestParseInBandUnparsableJSON(t *testing.T) {
	out := ParseInBand("not json", []chatapi.Tool{searchTool()})
	require.Len(t, out, 1)
	require.Nil(t, out[0].Call)
	require.Contains(t, out[0].Err, "Failed to load tool call")
}

func TestParseInBandMissingNameKeyReportsVerboseError(t *testing.T) {
	out := ParseInBand(`{"foo": "bar"}`, []chatapi.Tool{searchTool()})
	require.Len(t, out, 1)
	require.Nil(t, out[0].Call)
	require.Contains(t, out[0].Err, "Failed to load tool call")
	require.Contains(t, out[0].Err, "Keyerror")
	require.NotContains(t, out[0].Err, "not found")
}

func TestSplitInBandPayloadExtractsTail(t *testing.T) {
	text := `before [CALL] {"name": "search", "parameters": {}}`
	visible, payload := SplitInBandPayload(text, true)
	require.Equal(t, "before ", visible)
	require.Equal(t, `{"name": "search", "parameters": {}}`, payload)
}

func TestSplitInBandPayloadNoToolsReturnsWholeText(t *testing.T) {
	text := `has [CALL] marker`
	visible, payload := SplitInBandPayload(text, false)
	require.Equal(t, text, visible)
	require.Empty(t, payload)
}

func TestRemoveThoughtsStripsThinkSpan(t *testing.T) {
	require.Equal(t, "before after", RemoveThoughts("before <think>hmm</think> after"))
}
