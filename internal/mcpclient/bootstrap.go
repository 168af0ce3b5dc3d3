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
	"log/slog"
	"sync"

	"github.com/kadirpekel/quackgate/internal/chatapi"
)

// InitializeAll connects to every configured MCP server in parallel and
// returns the union of their tools, each prefixed with "<sanitized
// name>.". A server that fails to connect is logged and skipped rather
// than aborting the whole bootstrap.
func InitializeAll(ctx context.Context, configs map[string]Config) []chatapi.Tool {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		tools []chatapi.Tool
	)

	for name, cfg := range configs {
		wg.Add(1)
		go func(name string, cfg Config) {
			defer wg.Done()
			client, err := New(cfg)
			if err != nil {
				slog.Warn("invalid MCP config", "server", name, "error", err)
				return
			}
			prefix := sanitizeServerName(name) + "."
			found, err := client.ListTools(ctx, prefix)
			if err != nil {
				slog.Warn("failed to gather tools from MCP", "server", name, "error", err)
				return
			}
			mu.Lock()
			tools = append(tools, found...)
			mu.Unlock()
		}(name, cfg)
	}
	wg.Wait()

	slog.Info("MCP tools discovered", "count", len(tools))
	for _, t := range tools {
		slog.Debug("mcp tool", "name", t.Name, "description", t.Description)
	}
	return tools
}
