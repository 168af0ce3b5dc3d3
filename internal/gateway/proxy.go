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

package gateway

import (
	"context"
	"strings"

	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/connector/openaicompat"
	"github.com/kadirpekel/quackgate/internal/modelprovider"
	"github.com/kadirpekel/quackgate/internal/outputwriter"
)

const proxyPrefix = "proxy."

// ProxyChatHandlerProvider serves the configured "proxy" model list under
// "proxy.<name>" handler names, with no tool loop or system prompt layered
// on top — a plain pass-through to the underlying connector.
type ProxyChatHandlerProvider struct {
	models *modelprovider.Registry
	names  []string
}

// NewProxyChatHandlerProvider exposes each of names (logical model names
// already served by models) as "proxy.<name>".
func NewProxyChatHandlerProvider(models *modelprovider.Registry, names []string) *ProxyChatHandlerProvider {
	return &ProxyChatHandlerProvider{models: models, names: names}
}

// GetHandler accepts only "proxy.<name>" for a name configured at
// construction time.
func (p *ProxyChatHandlerProvider) GetHandler(name string) (ChatHandler, error) {
	model, ok := strings.CutPrefix(name, proxyPrefix)
	if !ok || !p.exposes(model) {
		return nil, &UnknownHandlerError{Name: name, Available: p.ListHandlers()}
	}
	if _, err := p.models.GetLLM(model); err != nil {
		return nil, err
	}
	return p.chatHandler(model), nil
}

// ListHandlers returns "proxy.<name>" for every configured model name.
func (p *ProxyChatHandlerProvider) ListHandlers() []string {
	out := make([]string, 0, len(p.names))
	for _, name := range p.names {
		out = append(out, proxyPrefix+name)
	}
	return out
}

func (p *ProxyChatHandlerProvider) exposes(model string) bool {
	for _, name := range p.names {
		if name == model {
			return true
		}
	}
	return false
}

// chatHandler builds the three-step fallback chain: a real streaming call,
// then a buffered call with the same messages, then a buffered call with
// multi-part content flattened to plain text. Each step's failure is
// swallowed in favor of the next; only the last failure is returned.
func (p *ProxyChatHandlerProvider) chatHandler(model string) ChatHandler {
	return func(ctx context.Context, history []chatapi.ChatMessage, workspace string, w *outputwriter.Writer) error {
		llm, err := p.models.GetLLM(model)
		if err != nil {
			return err
		}

		attempts := []openaicompat.ChatOptions{
			{Model: model, Messages: history, Stream: true},
			{Model: model, Messages: history, Stream: false},
			{Model: model, Messages: flattenMessages(history), Stream: false},
		}

		var lastErr error
		for _, opts := range attempts {
			if err := runOnce(ctx, llm, opts, w); err != nil {
				lastErr = err
				continue
			}
			return nil
		}
		return lastErr
	}
}

func runOnce(ctx context.Context, llm modelprovider.LLM, opts openaicompat.ChatOptions, w *outputwriter.Writer) error {
	resp, err := llm(ctx, opts)
	if err != nil {
		return err
	}
	out, errc := resp.Stream(ctx)
	for token := range out {
		if err := w.Default(ctx, token, false); err != nil {
			return err
		}
	}
	return <-errc
}

// flattenMessages drops multi-part content down to its plain-text form,
// for the proxy's last-resort retry against models that reject multimodal
// message bodies.
func flattenMessages(history []chatapi.ChatMessage) []chatapi.ChatMessage {
	flat := make([]chatapi.ChatMessage, len(history))
	for i, m := range history {
		flat[i] = m
		flat[i].Content = m.Text()
	}
	return flat
}
