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

package agentstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAndWatchLoadsExistingFilesAndCreatesDefaultAgent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "coder.agent.md"),
		"---\ndescription: Writes code\n---\nYou write code.\n")
	writeFile(t, filepath.Join(dir, "skills", "refunds.skill.md"),
		"---\ndescription: Refunds\ntools: refund.issue\n---\nHandle refunds.\n")

	store := New(dir, dir, "default-model")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.LoadAndWatch(ctx))

	require.FileExists(t, filepath.Join(dir, "auto.agent.md"))

	agents := store.Agents()
	require.Contains(t, agents, "coder")
	require.Equal(t, "Writes code", agents["coder"].Description)
	require.Contains(t, agents, "auto")

	skills := store.Skills()
	require.Contains(t, skills, "skills.refunds")
	require.Equal(t, []string{"refund.issue"}, skills["skills.refunds"].Tools)
}

func TestLoadAndWatchPicksUpCreatedAndDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, dir, "default-model")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.LoadAndWatch(ctx))

	newAgentPath := filepath.Join(dir, "helper.agent.md")
	writeFile(t, newAgentPath, "---\ndescription: Helper\n---\nHelp.\n")

	require.Eventually(t, func() bool {
		_, ok := store.Agent("helper")
		return ok
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(newAgentPath))
	require.Eventually(t, func() bool {
		_, ok := store.Agent("helper")
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
