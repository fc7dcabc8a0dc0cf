// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/telecli/lib/config"
	"github.com/bureau-foundation/telecli/lib/pairing"
	"github.com/bureau-foundation/telecli/lib/process"
	"github.com/bureau-foundation/telecli/lib/sessionstore"
	"github.com/bureau-foundation/telecli/lib/version"
)

func main() {
	if err := rootCommand().execute(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func rootCommand() *command {
	return &command{
		name:    "telecli-monitor",
		summary: "Connect Telegram to an agent through the tele-cli daemon.",
		subcommands: []*command{
			runCommand(),
			sendCommand(),
			pairingCommand(),
			accountsCommand(),
			{
				name:    "version",
				summary: "Print version information",
				run: func(args []string) error {
					fmt.Printf("telecli-monitor %s\n", version.Info())
					return nil
				},
			},
		},
	}
}

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	verbose    bool
}

func (g *globalOptions) bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&g.configPath, "config", "", "configuration file (default $"+config.EnvironmentVariable+")")
	flagSet.BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level, including tele-cli daemon output")
}

func (g *globalOptions) load() (*config.Config, error) {
	if g.configPath != "" {
		return config.LoadFile(g.configPath)
	}
	return config.Load()
}

// openPairing opens the pairing database, creating its directory.
func openPairing(cfg *config.Config) (*pairing.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.PairingDB), 0o700); err != nil {
		return nil, fmt.Errorf("creating pairing directory: %w", err)
	}
	return pairing.Open(pairing.Config{Path: cfg.Storage.PairingDB})
}

// openSessions opens the session database, creating its directory.
func openSessions(cfg *config.Config) (*sessionstore.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SessionDB), 0o700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return sessionstore.Open(sessionstore.Config{Path: cfg.Storage.SessionDB})
}
