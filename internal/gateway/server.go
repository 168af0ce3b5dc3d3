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
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/outputwriter"
)

// chatCompletionRequest is the client-facing request body for
// POST /chat/completions.
type chatCompletionRequest struct {
	Model     string                `json:"model"`
	Messages  []chatapi.ChatMessage `json:"messages"`
	MaxTokens *int                  `json:"max_tokens,omitempty"`
	Stream    bool                  `json:"stream,omitempty"`
	Workspace *string               `json:"workspace,omitempty"`
}

type streamChunk struct {
	ID      int            `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
}

type streamChoice struct {
	Delta streamDelta `json:"delta"`
}

type streamDelta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type chatCompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Model   string             `json:"model"`
	Created int64              `json:"created"`
	Choices []completionChoice `json:"choices"`
}

type completionChoice struct {
	FinishReason string             `json:"finish_reason"`
	Message      chatapi.ChatMessage `json:"message"`
}

type modelsResponse struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type validationErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// Server exposes the OpenAI-compatible HTTP surface backed by a
// HandlerRegistry: POST /chat/completions, GET /models, GET /workspaces.
type Server struct {
	registry       *HandlerRegistry
	workspaceNames []string
	workspaceSet   map[string]struct{}
}

// NewServer builds a Server. workspaceNames is the configured, ordered list
// of workspace names; an unset or unknown request workspace falls back to
// its first entry, or "" when none are configured.
func NewServer(registry *HandlerRegistry, workspaceNames []string) *Server {
	set := make(map[string]struct{}, len(workspaceNames))
	for _, name := range workspaceNames {
		set[name] = struct{}{}
	}
	return &Server{registry: registry, workspaceNames: workspaceNames, workspaceSet: set}
}

// Router builds the chi router for this server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)
	r.Post("/chat/completions", s.handleChatCompletions)
	r.Get("/models", s.handleModels)
	r.Get("/workspaces", s.handleWorkspaces)
	return r
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, err)
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		writeValidationError(w, fmt.Errorf("fields \"model\" and \"messages\" are required"))
		return
	}

	workspace := s.resolveWorkspace(req.Workspace)

	handler, err := s.registry.GetHandler(req.Model)
	if err != nil {
		message := err.Error()
		handler = func(ctx context.Context, history []chatapi.ChatMessage, workspace string, w *outputwriter.Writer) error {
			return w.Default(ctx, message, false)
		}
	}

	queue := runChat(r.Context(), handler, req.Messages, workspace)
	if req.Stream {
		streamChunks(w, queue, req.Model)
		return
	}
	bufferedResponse(w, queue, req.Model)
}

func (s *Server) resolveWorkspace(requested *string) string {
	if requested != nil {
		if _, ok := s.workspaceSet[*requested]; ok {
			return *requested
		}
	}
	if len(s.workspaceNames) > 0 {
		return s.workspaceNames[0]
	}
	return ""
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	names := s.registry.ListHandlers()
	sort.Strings(names)
	now := time.Now().Unix()
	entries := make([]modelEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, modelEntry{ID: name, Object: "model", Created: now, OwnedBy: "micro-graph"})
	}
	writeJSON(w, http.StatusOK, modelsResponse{Object: "list", Data: entries})
}

func (s *Server) handleWorkspaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.workspaceNames)
}

// runChat starts handler in the background, draining its output writer
// into a bounded channel. The channel closes once the handler (and any
// recovered panic/returned error) has been rendered and the writer
// cleared, the same sentinel-on-completion shape the reference
// implementation's queue.put(None) gives an async SSE drainer.
func runChat(ctx context.Context, handler ChatHandler, history []chatapi.ChatMessage, workspace string) <-chan string {
	queue := make(chan string, 1)
	w := outputwriter.New(queue)
	go func() {
		defer close(queue)
		err := func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("%v", rec)
				}
			}()
			return handler(ctx, history, workspace, w)
		}()
		if err != nil {
			_ = w.Default(ctx, fmt.Sprintf("Unexpected error occured:\n\n```\n%s\n```\n", err), false)
		}
		_ = w.Clear(ctx)
	}()
	return queue
}

func streamChunks(w http.ResponseWriter, queue <-chan string, model string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	id := 0
	for chunk := range queue {
		if chunk == "" {
			continue
		}
		payload := streamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   model,
			Choices: []streamChoice{{Delta: streamDelta{Content: chunk, Role: "assistant"}}},
		}
		id++
		data, _ := json.Marshal(payload)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func bufferedResponse(w http.ResponseWriter, queue <-chan string, model string) {
	var buf strings.Builder
	for chunk := range queue {
		if chunk == "" {
			continue
		}
		buf.WriteString(chunk)
	}
	resp := chatCompletionResponse{
		ID:      uuid.NewString(),
		Object:  "chat.completion",
		Model:   model,
		Created: time.Now().Unix(),
		Choices: []completionChoice{{
			FinishReason: "stop",
			Message:      chatapi.ChatMessage{Role: "assistant", Content: buf.String()},
		}},
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, validationErrorResponse{
		StatusCode: 10422,
		Message:    strings.ReplaceAll(err.Error(), "\n", " "),
		Data:       nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// corsMiddleware allows any origin, the standard OpenAI-proxy method set,
// and credentials, mirroring the reference implementation's permissive
// CORSMiddleware configuration.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
	})
}
