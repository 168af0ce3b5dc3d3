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

package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/httpclient"
	"github.com/kadirpekel/quackgate/internal/toolcall"
)

// Spec mirrors the JSON shape of one entry in the config's "llms" map.
type Spec struct {
	APIEndpoint string         `mapstructure:"api_endpoint" json:"api_endpoint"`
	APIKey      string         `mapstructure:"api_key" json:"api_key,omitempty"`
	Provider    string         `mapstructure:"provider" json:"provider"` // "OpenAI", "AzureOpenAI", "ollama"
	Model       string         `mapstructure:"model" json:"model"`       // model name, or "AUTODETECT" for ollama
	Config      map[string]any `mapstructure:"config" json:"config,omitempty"`
	APIVersion  string         `mapstructure:"api_version" json:"api_version,omitempty"`
}

// Connector speaks the OpenAI-compatible chat/completions wire format
// against one upstream (OpenAI, Azure OpenAI, or Ollama).
type Connector struct {
	client             *httpclient.Client
	baseURL            string
	apiKey             string
	provider           string
	apiVersion         string
	config             map[string]any
	models             map[string]string // logical name -> upstream model name
	customToolCallTmpl string
}

// New builds a Connector from spec, performing Ollama AUTODETECT discovery
// (GET /api/tags) synchronously when requested.
func New(ctx context.Context, spec Spec) (*Connector, error) {
	c := &Connector{
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
		apiKey:             spec.APIKey,
		provider:           spec.Provider,
		apiVersion:         spec.APIVersion,
		config:             spec.Config,
		models:             map[string]string{},
		customToolCallTmpl: defaultCustomToolCallPrompt,
	}
	if c.apiVersion == "" {
		c.apiVersion = "2024-10-21"
	}
	if tmpl, ok := stringConfig(spec.Config, "custom_tool_call_prompt"); ok {
		c.customToolCallTmpl = tmpl
	}

	switch spec.Provider {
	case "ollama":
		c.baseURL = spec.APIEndpoint + "/v1"
		if spec.Model == "AUTODETECT" {
			models, err := discoverOllamaModels(ctx, c.client, spec.APIEndpoint)
			if err != nil {
				return nil, fmt.Errorf("ollama model autodetection failed: %w", err)
			}
			prefix, _ := stringConfig(spec.Config, "name_prefix")
			for _, m := range models {
				c.models[prefix+m] = m
			}
		} else {
			name, ok := stringConfig(spec.Config, "name")
			if !ok {
				name = spec.Model
			}
			c.models[name] = spec.Model
		}
	case "AzureOpenAI", "OpenAI":
		if spec.Model == "AUTODETECT" {
			return nil, fmt.Errorf("model must be specified when not using the ollama provider")
		}
		c.baseURL = spec.APIEndpoint
		name, ok := stringConfig(spec.Config, "name")
		if !ok {
			name = spec.Model
		}
		c.models[name] = spec.Model
	default:
		return nil, fmt.Errorf("unsupported provider %q", spec.Provider)
	}
	return c, nil
}

func discoverOllamaModels(ctx context.Context, client *httpclient.Client, apiEndpoint string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiEndpoint+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if resp == nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GET /api/tags: status %d: %s", resp.StatusCode, string(body))
	}
	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Models returns the logical model names this connector serves.
func (c *Connector) Models() []string {
	out := make([]string, 0, len(c.models))
	for name := range c.models {
		out = append(out, name)
	}
	return out
}

func stringConfig(config map[string]any, key string) (string, bool) {
	v, ok := config[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func boolConfig(config map[string]any, key string) bool {
	v, ok := config[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func intConfig(config map[string]any, key string) (int, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

// ChatOptions carries the per-call parameters a runner supplies on top of
// the connector's static configuration.
type ChatOptions struct {
	Model          string
	Messages       []chatapi.ChatMessage
	Tools          []chatapi.Tool
	SystemPrompt   string
	RemoveThoughts bool
	Stream         bool
}

// Chat issues one chat/completions call and returns an LLMResponse whose
// Stream must be drained before Text/ToolCalls are valid.
func (c *Connector) Chat(ctx context.Context, opts ChatOptions) (chatapi.LLMResponse, error) {
	upstreamModel, ok := c.models[opts.Model]
	if !ok {
		return nil, fmt.Errorf("unknown model %q for this connector", opts.Model)
	}

	unofficial := boolConfig(c.config, "unofficial_toolcalling")

	messages := messagesToWire(opts.Messages, opts.RemoveThoughts)

	systemPrompt := opts.SystemPrompt
	if len(opts.Tools) > 0 && unofficial {
		systemPrompt += "\n\n" + toolsToCustomPrompt(opts.Tools, c.customToolCallTmpl)
	}
	if boolConfig(c.config, "no_think") {
		systemPrompt += " /no_think"
	}

	systemMsg := wireMessage{Role: "system", Content: systemPrompt}
	if boolConfig(c.config, "system_prompt_last") {
		messages = append(messages, systemMsg)
	} else {
		messages = append([]wireMessage{systemMsg}, messages...)
	}

	stream := opts.Stream
	if boolConfig(c.config, "never_stream") {
		stream = false
	}

	if boolConfig(c.config, "text_only") {
		for i := range messages {
			messages[i].Content = flattenTextOnly(messages[i].Content)
		}
	}

	req := wireRequest{
		Model:    upstreamModel,
		Messages: messages,
		Stream:   stream,
	}
	if maxTokens, ok := intConfig(c.config, "max_tokens"); ok {
		req.MaxTokens = maxTokens
	}
	if !unofficial && len(opts.Tools) > 0 {
		req.Tools = toolsToWire(opts.Tools)
	}

	httpResp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if stream {
		if unofficial {
			return newInBandStreamResponse(httpResp.Body, opts.Tools), nil
		}
		return newNativeStreamResponse(httpResp.Body, opts.Tools), nil
	}
	defer httpResp.Body.Close()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("upstream error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	if resp.Choices[0].FinishReason == "error" {
		return nil, fmt.Errorf("upstream error: %s", resp.Choices[0].Message.Content)
	}
	if unofficial {
		return newInBandBufferedResponse(resp.Choices[0].Message.Content, opts.Tools), nil
	}
	return newNativeBufferedResponse(resp.Choices[0].Message, opts.Tools), nil
}

func (c *Connector) send(ctx context.Context, req wireRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	url := c.baseURL + "/chat/completions"
	if c.provider == "AzureOpenAI" {
		url += "?api-version=" + c.apiVersion
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.provider == "AzureOpenAI" {
		httpReq.Header.Set("api-key", c.apiKey)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if resp == nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model not found: %s", string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

func messagesToWire(messages []chatapi.ChatMessage, removeThoughts bool) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		content := m.Content
		if removeThoughts {
			content = stripThoughtsFromContent(content)
		}
		wm := wireMessage{Role: m.Role, Content: content, ToolCallID: m.ToolCallID}
		for _, raw := range m.ToolCalls {
			if tc, ok := raw.(*chatapi.ToolCall); ok {
				args, _ := json.Marshal(tc.Params)
				wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: wireFunctionCall{
						Name:      tc.Tool.Name,
						Arguments: string(args),
					},
				})
			}
		}
		out = append(out, wm)
	}
	return out
}

func stripThoughtsFromContent(content any) any {
	switch v := content.(type) {
	case string:
		return toolcall.RemoveThoughts(v)
	case []chatapi.ChatContent:
		out := make([]chatapi.ChatContent, len(v))
		for i, part := range v {
			out[i] = part
			if part.Type == "text" {
				out[i].Text = toolcall.RemoveThoughts(part.Text)
			}
		}
		return out
	default:
		return content
	}
}

func flattenTextOnly(content any) any {
	switch v := content.(type) {
	case string:
		return v
	case []chatapi.ChatContent:
		for _, part := range v {
			if part.Type == "text" && part.Text != "" {
				return part.Text
			}
		}
		return ""
	default:
		return content
	}
}

func toolsToWire(tools []chatapi.Tool) []wireTool {
	out := make([]wireTool, 0, len(tools))
	for _, tool := range tools {
		properties := make(map[string]any, len(tool.Parameters))
		required := make([]string, 0, len(tool.Parameters))
		for name, p := range tool.Parameters {
			properties[name] = map[string]any{"type": p.Type, "description": p.Description}
			required = append(required, name)
		}
		out = append(out, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return out
}

// newToolCallID returns a fresh uuid4 string of the kind used for synthetic
// tool_call_id values. Nothing calls it; the ids the gateway assigns come
// from internal/toolcall and internal/runner.
func newToolCallID() string { return uuid.NewString() }
