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
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/quackgate/internal/chatapi"
)

// openStdioSession spawns the configured command and completes the MCP
// handshake. The caller owns the returned client and must Close it.
func (c *Client) openStdioSession(ctx context.Context) (*client.Client, error) {
	mcpClient, err := client.NewStdioMCPClient(c.cfg.Command, nil, c.cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}
	if _, err := mcpClient.Initialize(ctx, newInitializeRequest()); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize MCP: %w", err)
	}
	return mcpClient, nil
}

func (c *Client) listToolsStdio(ctx context.Context, prefix string) ([]chatapi.Tool, error) {
	session, err := c.openStdioSession(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	resp, err := session.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make([]chatapi.Tool, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		tools = append(tools, chatapi.Tool{
			Name:        prefix + t.Name,
			Description: descriptionOrDefault(t.Description),
			Parameters:  schemaToParameters(inputSchemaToMap(t.InputSchema)),
			Callable:    c.stdioCallable(t.Name),
		})
	}
	return tools, nil
}

// stdioCallable opens a fresh session for each invocation, matching the
// per-call "async with self._client" session semantics.
func (c *Client) stdioCallable(name string) chatapi.ToolCallable {
	return func(ctx context.Context, args map[string]any) (string, error) {
		session, err := c.openStdioSession(ctx)
		if err != nil {
			return fmt.Sprintf("Error calling tool %s: %s", name, err), nil
		}
		defer session.Close()

		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args

		resp, err := session.CallTool(ctx, req)
		if err != nil {
			return fmt.Sprintf("Error calling tool %s: %s", name, err), nil
		}
		return concatTextContent(resp.Content), nil
	}
}

func concatTextContent(content []mcp.Content) string {
	var out string
	for _, part := range content {
		if text, ok := part.(mcp.TextContent); ok {
			out += text.Text
		}
	}
	return out
}

func descriptionOrDefault(desc string) string {
	if desc == "" {
		return "missing description"
	}
	return desc
}

// inputSchemaToMap marshals an MCP tool's input schema into a generic map,
// matching the reference implementation's marshal/unmarshal trick for
// schema types whose exact field shape we don't want to depend on.
func inputSchemaToMap(schema any) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func schemaToParameters(schema map[string]any) map[string]chatapi.ToolParameter {
	properties, _ := schema["properties"].(map[string]any)
	out := make(map[string]chatapi.ToolParameter, len(properties))
	for name, raw := range properties {
		prop, _ := raw.(map[string]any)
		t, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		out[name] = chatapi.ToolParameter{Type: t, Description: desc}
	}
	return out
}
