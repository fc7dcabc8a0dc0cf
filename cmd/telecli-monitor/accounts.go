// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/telecli/lib/account"
	"github.com/bureau-foundation/telecli/lib/config"
)

// accountSummary is one resolved account as shown to the operator.
type accountSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Enabled     bool     `json:"enabled"`
	Configured  bool     `json:"configured"`
	TelePath    string   `json:"tele_path"`
	Session     string   `json:"session,omitempty"`
	DMPolicy    string   `json:"dm_policy"`
	GroupPolicy string   `json:"group_policy"`
	Warnings    []string `json:"warnings,omitempty"`
}

func summarizeAccounts(cfg *config.Config) []accountSummary {
	var summaries []accountSummary
	for _, id := range account.ListAccountIDs(cfg.Channels.Telecli) {
		acct := cfg.Account(id)
		summaries = append(summaries, accountSummary{
			ID:          acct.ID,
			Name:        acct.Name,
			Enabled:     acct.Enabled,
			Configured:  acct.Configured,
			TelePath:    acct.TelePath,
			Session:     acct.DaemonSession,
			DMPolicy:    string(acct.DMPolicy),
			GroupPolicy: string(acct.EffectiveGroupPolicy(cfg.Channels.Defaults)),
			Warnings:    acct.CollectWarnings(cfg.Channels.Defaults),
		})
	}
	return summaries
}

func accountsCommand() *command {
	var (
		global     globalOptions
		outputJSON bool
	)
	return &command{
		name:    "accounts",
		summary: "Show how each configured account resolves",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("accounts", pflag.ContinueOnError)
			global.bind(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		run: func(args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			summaries := summarizeAccounts(cfg)
			if outputJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(summaries)
			}
			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "ACCOUNT\tENABLED\tCONFIGURED\tTELE\tDM\tGROUPS")
			for _, summary := range summaries {
				fmt.Fprintf(writer, "%s\t%t\t%t\t%s\t%s\t%s\n", summary.ID, summary.Enabled,
					summary.Configured, summary.TelePath, summary.DMPolicy, summary.GroupPolicy)
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			for _, summary := range summaries {
				for _, warning := range summary.Warnings {
					fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
				}
			}
			return nil
		},
	}
}
