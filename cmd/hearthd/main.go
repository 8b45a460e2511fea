// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command hearthd serves the hearth demo routes, either on a socket
// handed over by systemd or on 0.0.0.0:18080.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	serve := newServeCmd(&opts)
	root := &cobra.Command{
		Use:           "hearthd",
		Short:         "Embedded HTTP server with systemd socket activation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file layered over the defaults")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional .env file with "+EnvPrefix+" prefixed variables")

	root.AddCommand(
		serve,
		newProbeCmd(),
		newRoutesCmd(&opts),
	)
	return root
}

func main() {
	cmd := newRootCmd()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		cmd.PrintErrln("hearthd:", err)
		os.Exit(1)
	}
}
