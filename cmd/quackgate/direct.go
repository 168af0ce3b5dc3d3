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
	"os"

	"github.com/kadirpekel/quackgate/internal/bootstrap"
	"github.com/kadirpekel/quackgate/internal/chatapi"
	"github.com/kadirpekel/quackgate/internal/outputwriter"
)

// unknownAgentExitCode matches api/cli.py's cli_chat: a RuntimeError from an
// unresolved handler name exits the process with code 22.
const unknownAgentExitCode = 22

// DirectCmd runs a single chat turn without starting a server, the way
// api/cli.py's cli_chat drives a one-shot agent invocation from the shell.
type DirectCmd struct {
	Agent  string `help:"Agent/model handler name, e.g. \"agent.auto\" or \"proxy.gpt-4o\"." default:"agent.auto"`
	Input  string `help:"Literal message text, or a path to a file containing it." required:""`
	Output string `help:"Also write the full response to this file, in addition to stdout." type:"path"`
}

func (c *DirectCmd) Run(cli *CLI) error {
	ctx := context.Background()

	workDir, err := cli.workDir()
	if err != nil {
		return fmt.Errorf("resolving work directory: %w", err)
	}

	app, err := bootstrap.Run(ctx, cli.Config, bootstrap.AgentsDir(workDir))
	if err != nil {
		return err
	}

	handler, err := app.Registry.GetHandler(c.Agent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent %q not found, available: %v\n", c.Agent, app.Registry.ListHandlers())
		os.Exit(unknownAgentExitCode)
	}

	message := c.Input
	if content, readErr := os.ReadFile(c.Input); readErr == nil {
		message = string(content)
	}

	w := outputwriter.New(nil)
	history := []chatapi.ChatMessage{{Role: "user", Content: message}}
	if err := handler(ctx, history, "", w); err != nil {
		return fmt.Errorf("running chat turn: %w", err)
	}

	output := w.OutputBuffer()
	fmt.Println(output)
	if c.Output != "" {
		if err := os.WriteFile(c.Output, []byte(output), 0644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
	}
	return nil
}
