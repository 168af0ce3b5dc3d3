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

// Package mcpclient opens sessions against Model Context Protocol servers
// over http, sse, or stdio, and exposes their tools as chatapi.Tool values.
//
// Unlike a long-lived toolset, a Client keeps no persistent connection: every
// ListTools and every tool invocation opens and tears down its own session,
// matching a server that expects one request per connection.
package mcpclient

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/httpclient"
)

// TransportType selects how a Client reaches its MCP server.
type TransportType string

const (
	TransportHTTP  TransportType = "http"
	TransportSSE   TransportType = "sse"
	TransportStdio TransportType = "stdio"
)

const (
	clientName    = "quackgate"
	clientVersion = "0.1.0"
	protocolVer   = "2024-11-05"

	spawnRetryDelay = 5 * time.Second
)

// Config describes one MCP server entry from the "mcps" config section.
type Config struct {
	Type    TransportType
	URL     string
	Command string
	Args    []string
	Headers map[string]string
}

// Validate mirrors the reference client's constructor checks.
func (c Config) Validate() error {
	switch c.Type {
	case TransportHTTP, TransportSSE:
		if c.URL == "" {
			return fmt.Errorf("URL must be provided for %s mode", c.Type)
		}
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("command must be provided for stdio mode")
		}
	default:
		return fmt.Errorf("unsupported transport type %q for MCPClient", c.Type)
	}
	return nil
}

// Client talks to a single MCP server, per Config.
type Client struct {
	cfg  Config
	http *httpclient.Client
}

// New validates cfg and builds a Client for it.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg: cfg,
		http: httpclient.New(
			httpclient.WithMaxRetries(3),
			httpclient.WithBaseDelay(2 * time.Second),
		),
	}, nil
}

// ListTools connects, enumerates the server's tools prefixed with prefix,
// and returns a chatapi.Tool per entry bound to a fresh per-call session.
// If the first attempt fails and a command is configured, it spawns the
// command detached, waits 5s, and retries once.
func (c *Client) ListTools(ctx context.Context, prefix string) ([]chatapi.Tool, error) {
	tools, err := c.tryListTools(ctx, prefix)
	if err == nil {
		return tools, nil
	}
	if c.cfg.Command == "" {
		return nil, err
	}
	if spawnErr := c.spawnCommand(); spawnErr != nil {
		slog.Warn("failed to start background mcp process, retrying connection anyway", "endpoint", c.endpoint(), "error", spawnErr)
	}
	if !sleepCtx(ctx, spawnRetryDelay) {
		return nil, ctx.Err()
	}
	return c.tryListTools(ctx, prefix)
}

func (c *Client) endpoint() string {
	if c.cfg.URL != "" {
		return c.cfg.URL
	}
	return c.cfg.Command
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) spawnCommand() error {
	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	detachProcess(cmd)
	return cmd.Start()
}

func (c *Client) tryListTools(ctx context.Context, prefix string) ([]chatapi.Tool, error) {
	switch c.cfg.Type {
	case TransportStdio:
		return c.listToolsStdio(ctx, prefix)
	default:
		return c.listToolsHTTP(ctx, prefix)
	}
}

func sanitizeServerName(name string) string {
	r := strings.NewReplacer("-", "_", "/", "_", ".", "_", "(", "_", ")", "_")
	return r.Replace(name)
}

func newInitializeRequest() mcp.InitializeRequest {
	req := mcp.InitializeRequest{}
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	req.Params.ProtocolVersion = protocolVer
	return req
}
