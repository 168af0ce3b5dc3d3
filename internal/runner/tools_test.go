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

package runner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/quackgate/internal/chatapi"
)

func TestToolMatchesExactAndGlob(t *testing.T) {
	require.True(t, toolMatches("search.web", []string{"search.web"}))
	require.True(t, toolMatches("search.web", []string{"search.*"}))
	require.False(t, toolMatches("search.web", []string{"billing.*"}))
	require.False(t, toolMatches("search.web", nil))
}

func TestNamespaceAllowedMainAnchorsAlwaysVisible(t *testing.T) {
	require.True(t, namespaceAllowed("agent.code.__main__", nil, "agent.auto"))
}

func TestNamespaceAllowedRestrictsToMatchingNamespace(t *testing.T) {
	available := []chatapi.Tool{
		{Name: "agent.code.__main__"},
		{Name: "agent.code.search"},
	}
	require.False(t, namespaceAllowed("agent.code.search", available, "agent.auto"))
	require.True(t, namespaceAllowed("agent.code.search", available, "agent.code"))
}

func TestNamespaceAllowedUsesLongestMatchingAnchor(t *testing.T) {
	available := []chatapi.Tool{
		{Name: "agent.code.__main__"},
		{Name: "agent.code.agents.__main__"},
		{Name: "agent.code.agents.new-agent-writer"},
	}
	require.False(t, namespaceAllowed("agent.code.agents.new-agent-writer", available, "agent.code"))
	require.True(t, namespaceAllowed("agent.code.agents.new-agent-writer", available, "agent.code.agents"))
}

func TestVisibleToolsExcludesSelfAndUnmatchedFilters(t *testing.T) {
	candidates := []chatapi.Tool{
		{Name: "agent.auto"},
		{Name: "search.web"},
		{Name: "billing.charge"},
	}
	visible := visibleTools(candidates, []string{"search.*"}, "auto")
	require.Len(t, visible, 1)
	require.Equal(t, "search.web", visible[0].Name)
}
