// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/telecli/lib/account"
	"github.com/bureau-foundation/telecli/lib/agentexec"
	"github.com/bureau-foundation/telecli/lib/config"
	"github.com/bureau-foundation/telecli/lib/metrics"
	"github.com/bureau-foundation/telecli/lib/monitor"
	"github.com/bureau-foundation/telecli/lib/outbound"
	"github.com/bureau-foundation/telecli/lib/rpc"
	"github.com/bureau-foundation/telecli/lib/version"
)

func runCommand() *command {
	var (
		global        globalOptions
		accountID     string
		metricsListen string
	)
	return &command{
		name:    "run",
		summary: "Supervise tele-cli daemons and dispatch inbound messages",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			global.bind(flagSet)
			flagSet.StringVar(&accountID, "account", "", "run only this account (default: every enabled, configured account)")
			flagSet.StringVar(&metricsListen, "metrics-listen", "", "host:port for /metrics and /status (overrides metrics.listen)")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return runMonitor(global, accountID, metricsListen)
		},
	}
}

func runMonitor(global globalOptions, accountID, metricsListen string) error {
	logger := newLogger(global.verbose)

	cfg, err := global.load()
	if err != nil {
		return err
	}
	var live atomic.Pointer[config.Config]
	live.Store(cfg)
	source := live.Load

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if global.configPath != "" {
		go reloadOnHangup(ctx, global, &live, logger)
	}

	pairingStore, err := openPairing(cfg)
	if err != nil {
		return err
	}
	defer pairingStore.Close()
	sessions, err := openSessions(cfg)
	if err != nil {
		return err
	}
	defer sessions.Close()

	registry := rpc.NewRegistry()
	recorder := metrics.New()
	sender := outbound.NewSender(outbound.Config{
		Registry: registry,
		Activity: recorder,
		Logger:   logger,
	})
	dispatcher := agentexec.New(agentexec.Config{Source: source, Logger: logger})

	if metricsListen == "" {
		metricsListen = cfg.Metrics.Listen
	}
	if metricsListen != "" {
		shutdown, err := serveMetrics(metricsListen, recorder, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	accountIDs, err := selectAccounts(cfg, accountID, logger)
	if err != nil {
		return err
	}
	logger.Info("starting telecli monitor", "version", version.Info(), "accounts", accountIDs)

	var (
		group    sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	for _, id := range accountIDs {
		group.Add(1)
		go func() {
			defer group.Done()
			err := monitor.Run(ctx, monitor.Options{
				AccountID:  id,
				Source:     source,
				Registry:   registry,
				Pairing:    pairingStore,
				Sessions:   sessions,
				Deliverer:  sender,
				Dispatcher: dispatcher,
				Recorder:   recorder,
				Verbose:    global.verbose,
				Logger:     logger,
			})
			if err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("account %s: %w", id, err))
				mu.Unlock()
			}
		}()
	}
	group.Wait()
	logger.Info("telecli monitor stopped")
	return errors.Join(failures...)
}

// selectAccounts returns the accounts to monitor. An explicit account
// must be configured; otherwise every enabled, configured account is
// chosen and the rest are skipped with a log line.
func selectAccounts(cfg *config.Config, accountID string, logger *slog.Logger) ([]string, error) {
	if accountID != "" {
		acct := cfg.Account(accountID)
		if err := acct.RequireConfigured(); err != nil {
			return nil, err
		}
		for _, warning := range acct.CollectWarnings(cfg.Channels.Defaults) {
			logger.Warn(warning)
		}
		return []string{acct.ID}, nil
	}

	var ids []string
	for _, id := range account.ListAccountIDs(cfg.Channels.Telecli) {
		acct := cfg.Account(id)
		switch {
		case !acct.Enabled:
			logger.Info("skipping disabled telecli account", "account_id", id)
		case !acct.Configured:
			logger.Warn("skipping unconfigured telecli account", "account_id", id)
		default:
			for _, warning := range acct.CollectWarnings(cfg.Channels.Defaults) {
				logger.Warn(warning)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no enabled telecli account is configured")
	}
	return ids, nil
}

// reloadOnHangup reloads the configuration file on SIGHUP. Account
// resolution happens per message, so policy changes apply to the next
// message. A failed reload keeps the previous configuration.
func reloadOnHangup(ctx context.Context, global globalOptions, live *atomic.Pointer[config.Config], logger *slog.Logger) {
	hangups := make(chan os.Signal, 1)
	signal.Notify(hangups, syscall.SIGHUP)
	defer signal.Stop(hangups)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hangups:
			cfg, err := global.load()
			if err != nil {
				logger.Error("reloading configuration", "error", err)
				continue
			}
			live.Store(cfg)
			logger.Info("configuration reloaded", "path", global.configPath)
		}
	}
}

// serveMetrics serves Prometheus metrics at /metrics and the account
// status snapshots at /status. The returned function shuts the server
// down.
func serveMetrics(address string, recorder *metrics.Recorder, logger *slog.Logger) (func(), error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", address, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(recorder.Snapshots())
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", listener.Addr().String())
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}, nil
}
