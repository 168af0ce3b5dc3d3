// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/quackgate/internal/chatapi"
)

const sseResponseTimeout = 5 * time.Minute

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// listToolsHTTP runs the initialize and tools/list JSON-RPC calls against
// the configured URL, each as its own POST through rpc, and returns the
// listed tools under prefix.
func (c *Client) listToolsHTTP(ctx context.Context, prefix string) ([]chatapi.Tool, error) {
	initResp, err := c.rpc(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVer,
		"clientInfo":      map[string]any{"name": clientName, "version": clientVersion},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MCP: %w", err)
	}
	if initResp.Error != nil {
		return nil, fmt.Errorf("MCP init error: %s", initResp.Error.Message)
	}

	listResp, err := c.rpc(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	if listResp.Error != nil {
		return nil, fmt.Errorf("MCP list error: %s", listResp.Error.Message)
	}

	resultMap, ok := listResp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from tools/list")
	}
	rawTools, ok := resultMap["tools"].([]any)
	if !ok {
		return nil, fmt.Errorf("missing tools in tools/list response")
	}

	tools := make([]chatapi.Tool, 0, len(rawTools))
	for _, raw := range rawTools {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		desc, _ := entry["description"].(string)
		schema, _ := entry["inputSchema"].(map[string]any)

		tools = append(tools, chatapi.Tool{
			Name:        prefix + name,
			Description: descriptionOrDefault(desc),
			Parameters:  schemaToParameters(schema),
			Callable:    c.httpCallable(name),
		})
	}
	return tools, nil
}

func (c *Client) httpCallable(name string) chatapi.ToolCallable {
	return func(ctx context.Context, args map[string]any) (string, error) {
		resp, err := c.rpc(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
		if err != nil {
			return fmt.Sprintf("Error calling tool %s: %s", name, err), nil
		}
		if resp.Error != nil {
			return fmt.Sprintf("Error calling tool %s: %s", name, resp.Error.Message), nil
		}

		resultMap, ok := resp.Result.(map[string]any)
		if !ok {
			return "", nil
		}
		content, _ := resultMap["content"].([]any)
		var out strings.Builder
		for _, part := range content {
			entry, ok := part.(map[string]any)
			if !ok || entry["type"] != "text" {
				continue
			}
			if text, ok := entry["text"].(string); ok {
				out.WriteString(text)
			}
		}
		return out.String(), nil
	}
}

// rpc sends one JSON-RPC request over the configured http/sse endpoint.
func (c *Client) rpc(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	httpResp, err := c.http.Do(req)
	if httpResp == nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, string(respBody))
	}

	if strings.Contains(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSEResponse(ctx, httpResp.Body)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	var resp jsonRPCResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

// readSSEResponse reads the first complete JSON-RPC message off an SSE
// stream, bailing out after sseResponseTimeout.
func readSSEResponse(ctx context.Context, body io.ReadCloser) (*jsonRPCResponse, error) {
	type result struct {
		resp *jsonRPCResponse
		err  error
	}
	out := make(chan result, 1)

	go func() {
		defer body.Close()
		scanner := bufio.NewScanner(body)
		var data strings.Builder

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				if data.Len() == 0 {
					continue
				}
				var resp jsonRPCResponse
				if err := json.Unmarshal([]byte(data.String()), &resp); err == nil {
					out <- result{resp: &resp}
					return
				}
				data.Reset()
				continue
			}
			if strings.HasPrefix(line, "data:") {
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			}
		}
		if data.Len() > 0 {
			var resp jsonRPCResponse
			if err := json.Unmarshal([]byte(data.String()), &resp); err == nil {
				out <- result{resp: &resp}
				return
			}
		}
		out <- result{err: fmt.Errorf("SSE stream ended without a complete message")}
	}()

	select {
	case res := <-out:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(sseResponseTimeout):
		return nil, fmt.Errorf("timeout reading SSE response after %v", sseResponseTimeout)
	}
}
