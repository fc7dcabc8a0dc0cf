// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/telecli/lib/outbound"
	"github.com/bureau-foundation/telecli/lib/pairing"
)

func pairingCommand() *command {
	return &command{
		name:    "pairing",
		summary: "List and approve pending direct-message senders",
		subcommands: []*command{
			pairingListCommand(),
			pairingApproveCommand(),
		},
	}
}

// pairingEntry is the JSON form of a pending request.
type pairingEntry struct {
	SenderID  string    `json:"sender_id"`
	Name      string    `json:"name,omitempty"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

func pairingListCommand() *command {
	var (
		global     globalOptions
		outputJSON bool
	)
	return &command{
		name:    "list",
		summary: "List pending pairing requests",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			global.bind(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		run: func(args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			store, err := openPairing(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			requests, err := store.List(context.Background())
			if err != nil {
				return err
			}
			if outputJSON {
				entries := make([]pairingEntry, 0, len(requests))
				for _, request := range requests {
					entries = append(entries, pairingEntry(request))
				}
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(entries)
			}
			if len(requests) == 0 {
				fmt.Println("no pending pairing requests")
				return nil
			}
			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "CODE\tSENDER\tNAME\tREQUESTED")
			for _, request := range requests {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
					request.Code, request.SenderID, request.Name, request.CreatedAt.Format(time.RFC3339))
			}
			return writer.Flush()
		},
	}
}

func pairingApproveCommand() *command {
	var (
		global    globalOptions
		accountID string
		quiet     bool
	)
	return &command{
		name:    "approve",
		summary: "Approve a pairing code and notify the sender",
		usage:   "telecli-monitor pairing approve [flags] <code>",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("approve", pflag.ContinueOnError)
			global.bind(flagSet)
			flagSet.StringVar(&accountID, "account", "", "account to send the approval notice from")
			flagSet.BoolVar(&quiet, "no-notify", false, "do not message the approved sender")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: telecli-monitor pairing approve [flags] <code>")
			}
			cfg, err := global.load()
			if err != nil {
				return err
			}
			store, err := openPairing(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			senderID, err := store.Approve(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("approved %s\n", senderID)
			if quiet {
				return nil
			}

			logger := newLogger(global.verbose)
			acct := cfg.Account(accountID)
			if err := acct.RequireConfigured(); err != nil {
				logger.Warn("approval notice not sent", "sender_id", senderID, "error", err)
				return nil
			}
			sender := outbound.NewSender(outbound.Config{Logger: logger})
			if _, err := sender.Send(ctx, acct, senderID, pairing.ApprovalMessage, outbound.SendOptions{}); err != nil {
				logger.Warn("approval notice not sent", "sender_id", senderID, "error", err)
			}
			return nil
		},
	}
}
