// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/telecli/lib/outbound"
)

func sendCommand() *command {
	var (
		global    globalOptions
		accountID string
		media     []string
		replyTo   int64
	)
	return &command{
		name:    "send",
		summary: "Send a message through tele-cli",
		usage:   "telecli-monitor send [flags] <target> <text...>",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("send", pflag.ContinueOnError)
			global.bind(flagSet)
			flagSet.StringVar(&accountID, "account", "", "account to send from (default: default)")
			flagSet.StringArrayVar(&media, "media", nil, "media URL or local path to attach (repeatable)")
			flagSet.Int64Var(&replyTo, "reply-to", 0, "message id to reply to")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) < 2 && len(media) == 0 {
				return fmt.Errorf("usage: telecli-monitor send [flags] <target> <text...>")
			}
			if len(args) == 0 {
				return fmt.Errorf("target is required")
			}
			cfg, err := global.load()
			if err != nil {
				return err
			}
			acct := cfg.Account(accountID)
			if err := acct.RequireConfigured(); err != nil {
				return err
			}

			logger := newLogger(global.verbose)
			sender := outbound.NewSender(outbound.Config{Logger: logger})
			payload := outbound.Payload{Text: strings.Join(args[1:], " "), MediaURLs: media}
			var thread *int64
			if replyTo != 0 {
				thread = &replyTo
			}
			result, sent, err := sender.Deliver(context.Background(), acct, args[0], payload, thread)
			if err != nil {
				return err
			}
			if !sent {
				return fmt.Errorf("nothing to send")
			}
			fmt.Printf("sent %s to %s\n", result.MessageID, result.To)
			return nil
		},
	}
}
