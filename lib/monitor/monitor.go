// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor runs one telecli account: it resolves the account,
// builds the inbound pipeline, supervises the tele-cli daemon, and
// records the lifecycle in the metrics recorder.
package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/telecli/lib/clock"
	"github.com/bureau-foundation/telecli/lib/config"
	"github.com/bureau-foundation/telecli/lib/daemon"
	"github.com/bureau-foundation/telecli/lib/inbound"
	"github.com/bureau-foundation/telecli/lib/metrics"
	"github.com/bureau-foundation/telecli/lib/rpc"
)

// Options holds the parameters for Run.
type Options struct {
	// AccountID is normalized; blank means the default account.
	AccountID string

	// Source returns the live configuration. Required.
	Source func() *config.Config

	// Registry is shared with the Deliverer so replies reach this
	// account's daemon. Required.
	Registry *rpc.Registry

	Pairing    inbound.PairingStore
	Sessions   inbound.SessionRecorder
	Deliverer  inbound.Deliverer
	Dispatcher inbound.Dispatcher

	// Recorder receives activity and lifecycle signals. Nil uses a
	// private recorder nobody reads.
	Recorder *metrics.Recorder

	// Environ is appended to the daemon's environment.
	Environ []string

	Verbose bool
	Clock   clock.Clock
	Logger  *slog.Logger
}

// Run monitors the account until ctx is cancelled or the daemon exits.
// It returns nil for a clean stop and the daemon's lifecycle error
// otherwise. An unconfigured account fails before anything starts.
func Run(ctx context.Context, opts Options) error {
	if opts.Source == nil {
		return fmt.Errorf("monitor: Source is required")
	}
	if opts.Registry == nil {
		return fmt.Errorf("monitor: Registry is required")
	}
	if opts.Pairing == nil || opts.Sessions == nil || opts.Deliverer == nil || opts.Dispatcher == nil {
		return fmt.Errorf("monitor: Pairing, Sessions, Deliverer, and Dispatcher are required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	acct := opts.Source().Account(opts.AccountID)
	if err := acct.RequireConfigured(); err != nil {
		return err
	}
	logger = logger.With("channel", inbound.ChannelID, "account_id", acct.ID)

	pipeline := inbound.NewPipeline(inbound.Config{
		AccountID:  acct.ID,
		Source:     opts.Source,
		Pairing:    opts.Pairing,
		Sessions:   opts.Sessions,
		Deliverer:  opts.Deliverer,
		Dispatcher: opts.Dispatcher,
		Activity:   recorder,
		Clock:      clk,
		Logger:     logger,
	})

	handle, err := daemon.Start(ctx, daemon.Config{
		Account:  acct,
		Registry: opts.Registry,
		Handler:  pipeline.HandlePacket,
		OnReady: func() {
			logger.Info("tele-cli daemon ready")
		},
		Environ: opts.Environ,
		Verbose: opts.Verbose,
		Clock:   clk,
		Logger:  logger,
	})
	if err != nil {
		recorder.RecordStop(acct.ID, clk.Now(), err)
		return err
	}
	recorder.RecordStart(acct.ID, clk.Now())

	err = handle.Wait()
	recorder.RecordStop(acct.ID, clk.Now(), err)
	return err
}
