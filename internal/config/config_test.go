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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadReadsRepoLocalConfig(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, configFileName), `{
		"default_model": "gpt-4o",
		"host": "0.0.0.0",
		"port": 8080,
		"llms": {"openai": {"api_endpoint": "https://api.openai.com/v1", "provider": "OpenAI", "model": "gpt-4o"}}
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", cfg.DefaultModel)
	require.Equal(t, 8080, cfg.Port)
	require.Contains(t, cfg.LLMs, "openai")
	require.Equal(t, "OpenAI", cfg.LLMs["openai"].Provider)
}

func TestLoadReturnsErrorWhenNoSourceExists(t *testing.T) {
	emptyHome := t.TempDir()
	emptyCwd := t.TempDir()
	t.Setenv("HOME", emptyHome)
	origCwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(emptyCwd))
	defer os.Chdir(origCwd)

	_, err = Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestLegacySpecFromEnvRequiresAPIEndpoint(t *testing.T) {
	t.Setenv("API_ENDPOINT", "")
	_, _, ok := LegacySpecFromEnv()
	require.False(t, ok)
}

func TestLegacySpecFromEnvBuildsSpec(t *testing.T) {
	t.Setenv("API_ENDPOINT", "http://localhost:11434")
	t.Setenv("API_KEY", "ollama")
	t.Setenv("PROVIDER", "ollama")
	t.Setenv("MODEL", "llama3")
	t.Setenv("SYSTEM_PROMPT_LAST", "true")

	name, spec, ok := LegacySpecFromEnv()
	require.True(t, ok)
	require.Equal(t, "default", name)
	require.Equal(t, "ollama", spec.Provider)
	require.Equal(t, true, spec.Config["system_prompt_last"])
}

func writeJSON(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
