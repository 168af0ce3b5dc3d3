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

package outputwriter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultWritesPlainText(t *testing.T) {
	w := New(nil)
	ctx := context.Background()

	require.NoError(t, w.Default(ctx, "hello", false))
	require.Equal(t, "hello", w.OutputBuffer())
}

func TestThoughtOpensAndClosesThinkBlock(t *testing.T) {
	w := New(nil)
	ctx := context.Background()

	require.NoError(t, w.Thought(ctx, "reasoning", false))
	require.NoError(t, w.Default(ctx, "answer", false))

	out := w.OutputBuffer()
	require.Contains(t, out, "<think>")
	require.Contains(t, out, "</think>")
	require.Contains(t, out, "reasoning")
	require.Contains(t, out, "answer")
}

func TestDetailOpensNamedSection(t *testing.T) {
	w := New(nil)
	ctx := context.Background()

	require.NoError(t, w.Detail(ctx, "search", "calling search tool", false))
	out := w.OutputBuffer()
	require.Contains(t, out, "<details><summary><b>search:</b></summary>")
}

func TestDetailTopicChangeClosesAndReopens(t *testing.T) {
	w := New(nil)
	ctx := context.Background()

	require.NoError(t, w.Detail(ctx, "search", "one", false))
	require.NoError(t, w.Detail(ctx, "fetch", "two", false))

	out := w.OutputBuffer()
	require.Contains(t, out, "<b>search:</b>")
	require.Contains(t, out, "<b>fetch:</b>")
	require.Contains(t, out, "</details>")
}

func TestCleanStripsThinkTagsFromPayload(t *testing.T) {
	w := New(nil)
	ctx := context.Background()

	require.NoError(t, w.Default(ctx, "before <think>hidden</think> after", false))
	out := w.OutputBuffer()
	require.NotContains(t, out, "<think>hidden</think>")
	require.Contains(t, out, "before hidden after")
}

func TestSeparateAddsBlankLineWhenStateUnchanged(t *testing.T) {
	w := New(nil)
	ctx := context.Background()

	require.NoError(t, w.Default(ctx, "first", false))
	require.NoError(t, w.Default(ctx, "second", true))

	require.Equal(t, "first\n\nsecond", w.OutputBuffer())
}

func TestQueueReceivesChunkAndSentinel(t *testing.T) {
	queue := make(chan string, 4)
	w := New(queue)
	ctx := context.Background()

	require.NoError(t, w.Default(ctx, "hi", false))
	require.Equal(t, "hi", <-queue)
	require.Equal(t, "", <-queue)
}

func TestClearReturnsToDefaultState(t *testing.T) {
	w := New(nil)
	ctx := context.Background()

	require.NoError(t, w.Thought(ctx, "thinking", false))
	require.NoError(t, w.Clear(ctx))
	require.Equal(t, sectionDefault, w.state)
}
