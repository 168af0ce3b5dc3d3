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

// Package modelprovider maps logical model names onto warmed-up connectors,
// serving as the single place a runner asks "give me the LLM for model X".
package modelprovider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/connector/openaicompat"
)

// NamedSpec pairs a connection name (the config map key) with its spec.
// Order matters: later entries win when two connections expose the same
// logical model name.
type NamedSpec struct {
	Name string
	Spec openaicompat.Spec
}

// UnknownModelError is returned by GetLLM for a model name that
// no loaded connection serves.
type UnknownModelError struct{ Model string }

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("invalid model name `%s`, no such model available", e.Model)
}

// Registry holds every warmed-up connector and the logical model -> owning
// connection mapping derived from it.
type Registry struct {
	connections map[string]*openaicompat.Connector
	models      map[string]string // model name -> connection name
}

// DefaultSpecs returns the zero-config fallback: a single local Ollama
// connection with autodetected models, used when no "llms" map is present.
func DefaultSpecs() []NamedSpec {
	return []NamedSpec{{
		Name: "Ollama",
		Spec: openaicompat.Spec{
			APIEndpoint: "http://localhost:11434",
			APIKey:      "ollama",
			Provider:    "ollama",
			Model:       "AUTODETECT",
		},
	}}
}

// Load connects every spec in parallel and merges their served models in
// specs order, so a later connection's model name shadows an earlier one's
// — mirroring the reference provider's dict-update-in-config-order merge.
func Load(ctx context.Context, specs []NamedSpec) (*Registry, error) {
	type result struct {
		conn   *openaicompat.Connector
		models []string
		err    error
	}
	results := make([]result, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec NamedSpec) {
			defer wg.Done()
			slog.Info("connecting llm", "connection", spec.Name)
			conn, err := openaicompat.New(ctx, spec.Spec)
			if err != nil {
				results[i] = result{err: fmt.Errorf("connection %q: %w", spec.Name, err)}
				return
			}
			results[i] = result{conn: conn, models: conn.Models()}
		}(i, spec)
	}
	wg.Wait()

	reg := &Registry{
		connections: make(map[string]*openaicompat.Connector, len(specs)),
		models:      make(map[string]string),
	}
	for i, spec := range specs {
		if results[i].err != nil {
			return nil, results[i].err
		}
		reg.connections[spec.Name] = results[i].conn
	}
	// Second pass, in specs order, so later connections override earlier
	// ones for a shared model name regardless of goroutine completion order.
	for i, spec := range specs {
		for _, model := range results[i].models {
			reg.models[model] = spec.Name
		}
	}
	slog.Info("llms initialized", "models", len(reg.models), "connections", len(reg.connections))
	return reg, nil
}

// Models returns every logical model name currently served.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.models))
	for name := range r.models {
		out = append(out, name)
	}
	return out
}

// GetLLM returns a callable bound to the connection serving model.
func (r *Registry) GetLLM(model string) (LLM, error) {
	connName, ok := r.models[model]
	if !ok {
		return nil, &UnknownModelError{Model: model}
	}
	conn := r.connections[connName]
	return func(ctx context.Context, opts openaicompat.ChatOptions) (chatapi.LLMResponse, error) {
		opts.Model = model
		return conn.Chat(ctx, opts)
	}, nil
}

// LLM is the bound per-model chat callable returned by GetLLM.
type LLM func(ctx context.Context, opts openaicompat.ChatOptions) (chatapi.LLMResponse, error)
