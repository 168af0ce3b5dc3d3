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

// Package bootstrap wires configuration, model connections, MCP tools, the
// agent store, and the multi-agent runner into a ready-to-serve
// gateway.HandlerRegistry, the way agents/__main__.py assembles them.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/kadirpekel/quackgate/internal/agentstore"
	"github.com/kadirpekel/quackgate/internal/config"
	"github.com/kadirpekel/quackgate/internal/gateway"
	"github.com/kadirpekel/quackgate/internal/mcpclient"
	"github.com/kadirpekel/quackgate/internal/modelprovider"
	"github.com/kadirpekel/quackgate/internal/runner"
)

// App bundles everything a server or CLI command needs once bootstrap has
// run: the merged config, the handler registry ready to serve requests, the
// ordered workspace names, and the live agent store.
type App struct {
	Config         *config.Config
	Registry       *gateway.HandlerRegistry
	WorkspaceNames []string
	Store          *agentstore.Store
	Models         *modelprovider.Registry
}

// Run loads configuration, connects model providers and MCP tools, starts
// the agent store watcher, and assembles the handler registry. workDir is
// where the "auto.agent.md" default agent and any "*.agent.md"/"*.skill.md"
// files live; repoConfigsDir is the repo-local configs directory searched
// first by config.Load.
func Run(ctx context.Context, repoConfigsDir, workDir string) (*App, error) {
	config.LoadDotenv()

	cfg, err := config.Load(repoConfigsDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	specs := modelSpecs(cfg)
	models, err := modelprovider.Load(ctx, specs)
	if err != nil {
		return nil, fmt.Errorf("connecting model providers: %w", err)
	}

	tools := mcpclient.InitializeAll(ctx, mcpConfigs(cfg))

	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = config.DefaultModelFromEnv()
	}

	store := agentstore.New(workDir, workDir, defaultModel)
	if err := store.LoadAndWatch(ctx); err != nil {
		return nil, fmt.Errorf("loading agents: %w", err)
	}

	run := runner.New("auto", tools, 0, store, models)

	registry := gateway.NewHandlerRegistry()
	registry.RegisterHandlerProvider(gateway.NewProxyChatHandlerProvider(models, cfg.Proxy))
	registry.RegisterHandlerProvider(run)

	return &App{
		Config:         cfg,
		Registry:       registry,
		WorkspaceNames: workspaceNames(cfg),
		Store:          store,
		Models:         models,
	}, nil
}

// modelSpecs builds the ordered []modelprovider.NamedSpec bootstrap needs
// from cfg.LLMs, falling back to the single-connection legacy environment
// variables when no "llms" map is configured, and finally to
// modelprovider.DefaultSpecs when neither is present.
func modelSpecs(cfg *config.Config) []modelprovider.NamedSpec {
	if len(cfg.LLMs) > 0 {
		names := make([]string, 0, len(cfg.LLMs))
		for name := range cfg.LLMs {
			names = append(names, name)
		}
		sort.Strings(names)
		specs := make([]modelprovider.NamedSpec, 0, len(names))
		for _, name := range names {
			specs = append(specs, modelprovider.NamedSpec{Name: name, Spec: cfg.LLMs[name]})
		}
		return specs
	}
	if name, spec, ok := config.LegacySpecFromEnv(); ok {
		return []modelprovider.NamedSpec{{Name: name, Spec: spec}}
	}
	return modelprovider.DefaultSpecs()
}

// mcpConfigs converts cfg.MCPs into the map mcpclient.InitializeAll expects;
// config.MCPSpec and mcpclient.Config carry identical fields but the latter
// has no mapstructure tags of its own, so conversion is field-by-field.
func mcpConfigs(cfg *config.Config) map[string]mcpclient.Config {
	out := make(map[string]mcpclient.Config, len(cfg.MCPs))
	for name, spec := range cfg.MCPs {
		out[name] = mcpclient.Config{
			Type:    spec.Type,
			URL:     spec.URL,
			Command: spec.Command,
			Args:    spec.Args,
			Headers: spec.Headers,
		}
	}
	return out
}

// workspaceNames returns cfg.Workspaces' keys in sorted order, since Go maps
// carry no iteration order of their own, unlike the reference
// implementation's insertion-ordered dict.
func workspaceNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Workspaces))
	for name := range cfg.Workspaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AgentsDir derives the agent/skill directory from a working directory
// root, matching the reference implementation's "<work_dir>/agents" layout.
func AgentsDir(workDir string) string {
	return filepath.Join(workDir, "agents")
}
