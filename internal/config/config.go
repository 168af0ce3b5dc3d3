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

// Package config loads and merges quackgate's JSON configuration from the
// repo-local, home, and working-directory locations, the way the teacher's
// pkg/config loads its koanf tree.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/quackgate/internal/connector/openaicompat"
	"github.com/kadirpekel/quackgate/internal/mcpclient"
)

const configFileName = "config.json"

// ModelConnectionSpec is one entry of the "llms" config map.
type ModelConnectionSpec = openaicompat.Spec

// MCPSpec is one entry of the "mcps" config map.
type MCPSpec struct {
	Type    mcpclient.TransportType `mapstructure:"type" json:"type"`
	URL     string                  `mapstructure:"url" json:"url,omitempty"`
	Command string                  `mapstructure:"command" json:"command,omitempty"`
	Args    []string                `mapstructure:"args" json:"args,omitempty"`
	Headers map[string]string       `mapstructure:"headers" json:"headers,omitempty"`
}

// Config is quackgate's fully merged, typed configuration tree.
type Config struct {
	LLMs         map[string]ModelConnectionSpec `mapstructure:"llms" json:"llms,omitempty"`
	MCPs         map[string]MCPSpec             `mapstructure:"mcps" json:"mcps,omitempty"`
	Proxy        []string                       `mapstructure:"proxy" json:"proxy,omitempty"`
	DefaultModel string                         `mapstructure:"default_model" json:"default_model,omitempty"`
	Workspaces   map[string]string              `mapstructure:"workspaces" json:"workspaces,omitempty"`
	Debug        bool                           `mapstructure:"debug" json:"debug,omitempty"`
	Host         string                         `mapstructure:"host" json:"host,omitempty"`
	Port         int                            `mapstructure:"port" json:"port,omitempty"`
}

// Load merges config.json from, in override order: the repo-local
// configs/ directory, the user's ~/.config/quack-norris/ directory, and
// the current working directory. Missing sources are skipped; a source
// present later in this list overrides keys set by an earlier one.
func Load(repoConfigsDir string) (*Config, error) {
	k := koanf.New(".")

	paths := candidatePaths(repoConfigsDir)
	loaded := 0
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("config not found in any of: %v", paths)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "mapstructure",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			TagName:          "mapstructure",
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func candidatePaths(repoConfigsDir string) []string {
	paths := []string{filepath.Join(repoConfigsDir, configFileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "quack-norris", configFileName))
	}
	cwd, err := os.Getwd()
	if err == nil {
		paths = append(paths, filepath.Join(cwd, configFileName))
	} else {
		paths = append(paths, configFileName)
	}
	return paths
}
