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

// Package gateway exposes the OpenAI-compatible HTTP surface and the
// handler registry that routes a requested model/agent name to whatever
// backs it: a plain proxied connection or a multi-agent runner.
package gateway

import (
	"context"
	"fmt"

	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/outputwriter"
)

// ChatHandler runs one full chat turn, writing its output to w. It returns
// once the turn is complete (the writer has been filled).
type ChatHandler func(ctx context.Context, history []chatapi.ChatMessage, workspace string, w *outputwriter.Writer) error

// ChatHandlerProvider serves a family of handlers under a shared prefix,
// e.g. the multi-agent runner serving one handler per "agent.<name>".
type ChatHandlerProvider interface {
	GetHandler(name string) (ChatHandler, error)
	ListHandlers() []string
}

// UnknownHandlerError is returned when no registered name or provider
// recognizes the requested handler name.
type UnknownHandlerError struct {
	Name      string
	Available []string
}

func (e *UnknownHandlerError) Error() string {
	return fmt.Sprintf("model/agent %q not found, available: %v", e.Name, e.Available)
}

// HandlerRegistry resolves a requested name to a ChatHandler, checking
// providers in reverse registration order (newest wins) before falling
// back to statically registered handlers.
type HandlerRegistry struct {
	handlers  map[string]ChatHandler
	providers []ChatHandlerProvider
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]ChatHandler)}
}

// RegisterHandler adds a single statically named handler.
func (r *HandlerRegistry) RegisterHandler(name string, handler ChatHandler) {
	r.handlers[name] = handler
}

// RegisterHandlerProvider adds a provider, most-recently-registered-wins.
func (r *HandlerRegistry) RegisterHandlerProvider(provider ChatHandlerProvider) {
	r.providers = append(r.providers, provider)
}

// GetHandler resolves name, trying providers newest-first, then the
// static map.
func (r *HandlerRegistry) GetHandler(name string) (ChatHandler, error) {
	for i := len(r.providers) - 1; i >= 0; i-- {
		if handler, err := r.providers[i].GetHandler(name); err == nil {
			return handler, nil
		}
	}
	if handler, ok := r.handlers[name]; ok {
		return handler, nil
	}
	return nil, &UnknownHandlerError{Name: name, Available: r.ListHandlers()}
}

// ListHandlers returns every known handler name, static and
// provider-supplied, deduplicated.
func (r *HandlerRegistry) ListHandlers() []string {
	seen := make(map[string]struct{})
	for name := range r.handlers {
		seen[name] = struct{}{}
	}
	for _, provider := range r.providers {
		for _, name := range provider.ListHandlers() {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}
