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

package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/quackgate/internal/config"
	"github.com/kadirpekel/quackgate/internal/mcpclient"
)

func writeConfig(t *testing.T, dir, endpoint string) {
	t.Helper()
	content := `{
		"default_model": "gpt-4o",
		"llms": {"openai": {"api_endpoint": "` + endpoint + `", "provider": "OpenAI", "model": "gpt-4o"}},
		"proxy": ["gpt-4o"],
		"workspaces": {"default": "one", "other": "two"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0644))
}

func TestRunAssemblesRegistryAndWorkspaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	configDir := t.TempDir()
	workDir := t.TempDir()
	writeConfig(t, configDir, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Run(ctx, configDir, workDir)
	require.NoError(t, err)
	require.Equal(t, []string{"default", "other"}, app.WorkspaceNames)
	require.Contains(t, app.Registry.ListHandlers(), "proxy.gpt-4o")
	require.Contains(t, app.Registry.ListHandlers(), "agent.auto")
}

func TestModelSpecsPrefersConfiguredLLMsOverLegacyEnv(t *testing.T) {
	t.Setenv("API_ENDPOINT", "http://legacy.example")
	cfg := &config.Config{
		LLMs: map[string]config.ModelConnectionSpec{
			"b-conn": {Provider: "OpenAI", Model: "m-b", APIEndpoint: "http://b"},
			"a-conn": {Provider: "OpenAI", Model: "m-a", APIEndpoint: "http://a"},
		},
	}
	specs := modelSpecs(cfg)
	require.Len(t, specs, 2)
	require.Equal(t, "a-conn", specs[0].Name)
	require.Equal(t, "b-conn", specs[1].Name)
}

func TestModelSpecsFallsBackToLegacyEnv(t *testing.T) {
	t.Setenv("API_ENDPOINT", "http://legacy.example")
	t.Setenv("PROVIDER", "ollama")
	t.Setenv("MODEL", "llama3")

	cfg := &config.Config{}
	specs := modelSpecs(cfg)
	require.Len(t, specs, 1)
	require.Equal(t, "default", specs[0].Name)
	require.Equal(t, "http://legacy.example", specs[0].Spec.APIEndpoint)
}

func TestModelSpecsFallsBackToDefaultSpecs(t *testing.T) {
	t.Setenv("API_ENDPOINT", "")
	cfg := &config.Config{}
	specs := modelSpecs(cfg)
	require.Len(t, specs, 1)
	require.Equal(t, "Ollama", specs[0].Name)
}

func TestMcpConfigsConvertsFieldByField(t *testing.T) {
	cfg := &config.Config{
		MCPs: map[string]config.MCPSpec{
			"files": {Type: "stdio", Command: "mcp-fs", Args: []string{"--root", "/tmp"}},
		},
	}
	out := mcpConfigs(cfg)
	require.Equal(t, mcpclient.Config{Type: "stdio", Command: "mcp-fs", Args: []string{"--root", "/tmp"}}, out["files"])
}

func TestWorkspaceNamesAreSorted(t *testing.T) {
	cfg := &config.Config{Workspaces: map[string]string{"z": "1", "a": "2"}}
	require.Equal(t, []string{"a", "z"}, workspaceNames(cfg))
}

func TestAgentsDirJoinsWorkDir(t *testing.T) {
	require.Equal(t, filepath.Join("work", "agents"), AgentsDir("work"))
}
