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
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/connector/openaicompat"
	"github.com/kadirpekel/quackgate/internal/modelprovider"
	"github.com/kadirpekel/quackgate/internal/outputwriter"
)

func newProxyTestRegistry(t *testing.T, server *httptest.Server) *modelprovider.Registry {
	t.Helper()
	reg, err := modelprovider.Load(context.Background(), []modelprovider.NamedSpec{{
		Name: "test",
		Spec: openaicompat.Spec{
			APIEndpoint: server.URL,
			APIKey:      "test-key",
			Provider:    "OpenAI",
			Model:       "gpt-test",
		},
	}})
	require.NoError(t, err)
	return reg
}

func TestProxyListHandlersReturnsRegistryModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	p := NewProxyChatHandlerProvider(newProxyTestRegistry(t, server), []string{"gpt-test"})
	require.Equal(t, []string{"proxy.gpt-test"}, p.ListHandlers())
}

func TestProxyGetHandlerUnknownModelErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	p := NewProxyChatHandlerProvider(newProxyTestRegistry(t, server), []string{"gpt-test"})
	_, err := p.GetHandler("proxy.ghost")
	require.Error(t, err)
}

func TestProxyHandlerStreamsFirstAttemptSuccessfully(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "data: %s\n\n", `{"choices":[{"delta":{"content":"hi there"}}]}`)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewProxyChatHandlerProvider(newProxyTestRegistry(t, server), []string{"gpt-test"})
	handler, err := p.GetHandler("proxy.gpt-test")
	require.NoError(t, err)

	w := outputwriter.New(nil)
	err = handler(context.Background(), []chatapi.ChatMessage{{Role: "user", Content: "hi"}}, "", w)
	require.NoError(t, err)
	require.Contains(t, w.OutputBuffer(), "hi there")
}

func TestProxyHandlerFallsBackThroughAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "rejected", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"recovered"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	p := NewProxyChatHandlerProvider(newProxyTestRegistry(t, server), []string{"gpt-test"})
	handler, err := p.GetHandler("proxy.gpt-test")
	require.NoError(t, err)

	w := outputwriter.New(nil)
	err = handler(context.Background(), []chatapi.ChatMessage{{Role: "user", Content: "hi"}}, "", w)
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Contains(t, w.OutputBuffer(), "recovered")
}

func TestProxyHandlerReturnsLastErrorWhenAllAttemptsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewProxyChatHandlerProvider(newProxyTestRegistry(t, server), []string{"gpt-test"})
	handler, err := p.GetHandler("proxy.gpt-test")
	require.NoError(t, err)

	w := outputwriter.New(nil)
	err = handler(context.Background(), []chatapi.ChatMessage{{Role: "user", Content: "hi"}}, "", w)
	require.Error(t, err)
}
