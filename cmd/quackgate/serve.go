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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadirpekel/quackgate/internal/bootstrap"
	"github.com/kadirpekel/quackgate/internal/gateway"
)

// ServeCmd starts the OpenAI-compatible gateway server.
type ServeCmd struct {
	Host string `help:"Override the configured host." placeholder:"HOST"`
	Port int    `help:"Override the configured port." placeholder:"PORT"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	workDir, err := cli.workDir()
	if err != nil {
		return fmt.Errorf("resolving work directory: %w", err)
	}

	app, err := bootstrap.Run(ctx, cli.Config, bootstrap.AgentsDir(workDir))
	if err != nil {
		return err
	}

	host := app.Config.Host
	if c.Host != "" {
		host = c.Host
	}
	port := app.Config.Port
	if c.Port != 0 {
		port = c.Port
	}
	if port == 0 {
		port = 8000
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      gateway.NewServer(app.Registry, app.WorkspaceNames).Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("quackgate server starting", "address", addr, "agents", app.Registry.ListHandlers())
	fmt.Printf("quackgate listening on http://%s\n", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
