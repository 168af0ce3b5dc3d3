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

// Command quackgate is the CLI for the quackgate multi-agent gateway.
//
// Usage:
//
//	quackgate serve --config ./configs --workdir ~/.config/quack-norris
//	quackgate direct --agent agent.auto --input "hello there"
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/quackgate/internal/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the OpenAI-compatible gateway server."`
	Direct  DirectCmd  `cmd:"" help:"Run one chat turn directly, without a server."`
	Schema  SchemaCmd  `cmd:"" help:"Generate JSON Schema for the configuration file."`

	Config    string `short:"c" help:"Repo-local configs directory, searched before the user and working-directory config files." type:"path" default:"configs"`
	WorkDir   string `help:"Directory holding agent/skill definitions and the default agent copy." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or default)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("quackgate version %s\n", version)
	return nil
}

// workDir returns cli.WorkDir, defaulting to ~/.config/quack-norris the way
// agents/__main__.py defaults its own work directory.
func (cli *CLI) workDir() (string, error) {
	if cli.WorkDir != "" {
		return cli.WorkDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home + "/.config/quack-norris", nil
}

func main() {
	config.LoadDotenv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("quackgate"),
		kong.Description("quackgate - OpenAI-compatible multi-agent chat gateway"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
