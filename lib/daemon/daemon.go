// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/telecli/lib/account"
	"github.com/bureau-foundation/telecli/lib/clock"
	"github.com/bureau-foundation/telecli/lib/linescan"
	"github.com/bureau-foundation/telecli/lib/rpc"
	"github.com/bureau-foundation/telecli/lib/workqueue"
)

// maxLineSize bounds one output line. Message payloads with long text
// fit comfortably; longer lines are dropped.
const maxLineSize = 1024 * 1024

// State is the supervisor's lifecycle position.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// ExitError describes a daemon exit. Code is nil when the process was
// killed by a signal.
type ExitError struct {
	Code   *int
	Signal string
}

func (e *ExitError) Error() string {
	code := "null"
	if e.Code != nil {
		code = strconv.Itoa(*e.Code)
	}
	signal := e.Signal
	if signal == "" {
		signal = "none"
	}
	return fmt.Sprintf("tele-cli daemon exited (code=%s, signal=%s)", code, signal)
}

// Config holds the parameters for Start.
type Config struct {
	Account account.Account

	// Registry receives the daemon's RPC client for the lifetime of
	// the process. Required.
	Registry *rpc.Registry

	// Handler receives event and legacy packets in arrival order, one
	// at a time. Its context is not cancelled by the start context, so
	// packets read before shutdown are still handled. Required.
	Handler func(ctx context.Context, packet rpc.Packet)

	// OnReady is called from the reading goroutine for each ready
	// packet. May be nil.
	OnReady func()

	// Environ is appended to the daemon's inherited environment.
	Environ []string

	// Verbose logs daemon stderr and unparseable stdout at debug
	// level. Otherwise both are discarded.
	Verbose bool

	Clock  clock.Clock
	Logger *slog.Logger
}

// Handle is a running daemon.
type Handle struct {
	accountID string
	command   *exec.Cmd
	client    *rpc.Client
	registry  *rpc.Registry
	queue     *workqueue.Queue[rpc.Packet]
	logger    *slog.Logger
	verbose   bool
	onReady   func()

	state     atomic.Int32
	connected atomic.Bool
	cancelled atomic.Bool
	stopOnce  sync.Once

	done chan struct{}
	err  error
}

// Start spawns the daemon for cfg.Account. A spawn failure is returned
// directly; every later failure surfaces through Wait.
func Start(ctx context.Context, cfg Config) (*Handle, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("daemon: Registry is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("daemon: Handler is required")
	}
	if err := cfg.Account.RequireConfigured(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	arguments := cfg.Account.DaemonArgs()
	command := exec.Command(cfg.Account.TelePath, arguments...)
	command.Env = append(os.Environ(), cfg.Environ...)

	stdin, err := command.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := command.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := command.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	logger.Info("starting tele-cli daemon",
		"argv", strings.Join(append([]string{cfg.Account.TelePath}, arguments...), " "))
	if err := command.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("starting tele-cli daemon: %w", err)
	}

	handle := &Handle{
		accountID: cfg.Account.ID,
		command:   command,
		registry:  cfg.Registry,
		queue:     workqueue.New[rpc.Packet](),
		logger:    logger,
		verbose:   cfg.Verbose,
		onReady:   cfg.OnReady,
		done:      make(chan struct{}),
	}
	handle.client = rpc.NewClient(rpc.ClientConfig{
		Writer: stdin,
		Clock:  cfg.Clock,
		Logger: logger,
	})
	handle.state.Store(int32(StateRunning))
	cfg.Registry.Register(handle.accountID, handle.client)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		handle.queue.Run(context.WithoutCancel(ctx), cfg.Handler)
	}()

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		handle.readStdout(stdout)
	}()
	go func() {
		defer readers.Done()
		handle.readStderr(stderr)
	}()

	go func() {
		select {
		case <-ctx.Done():
			handle.Stop()
		case <-handle.done:
		}
	}()

	go func() {
		readers.Wait()
		waitErr := command.Wait()
		handle.finish(waitErr, workerDone)
	}()

	return handle, nil
}

// Client returns the daemon's RPC client.
func (h *Handle) Client() *rpc.Client { return h.client }

// State returns the current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Connected reports whether the daemon has announced readiness and
// has not exited since.
func (h *Handle) Connected() bool { return h.connected.Load() }

// Done is closed once the daemon has exited and every queued packet
// has been handled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until Done and returns the lifecycle error: nil for a
// clean stop, an *ExitError otherwise.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Stop writes the stop request to the daemon and then sends SIGTERM.
// The resulting exit counts as clean. Safe to call more than once.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.cancelled.Store(true)
		h.client.Close()
		if err := h.command.Process.Signal(unix.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			h.logger.Warn("signalling tele-cli daemon failed", "error", err)
		}
	})
}

func (h *Handle) readStdout(stdout io.Reader) {
	err := linescan.Scan(stdout, linescan.Options{
		MaxLineSize: maxLineSize,
		Oversized: func(length int) {
			h.logger.Debug("tele-cli stdout line too long, dropped", "bytes", length)
		},
	}, func(line []byte) {
		packet, ok := rpc.ParsePacket(line)
		if !ok {
			if h.verbose {
				if trimmed := strings.TrimSpace(string(line)); trimmed != "" {
					h.logger.Debug("tele-cli non-json line", "line", trimmed)
				}
			}
			return
		}
		switch packet.Kind {
		case rpc.PacketReady:
			h.connected.Store(true)
			if h.onReady != nil {
				h.onReady()
			}
		case rpc.PacketResponse:
			h.client.Resolve(packet)
		default:
			h.queue.Push(packet)
		}
	})
	if err != nil {
		h.logger.Error("reading tele-cli stdout", "error", err)
	}
}

func (h *Handle) readStderr(stderr io.Reader) {
	err := linescan.Scan(stderr, linescan.Options{MaxLineSize: maxLineSize}, func(line []byte) {
		if h.verbose {
			h.logger.Debug("tele-cli stderr", "line", string(line))
		}
	})
	if err != nil {
		h.logger.Debug("reading tele-cli stderr", "error", err)
	}
}

// finish runs once after the process has exited and both readers are
// done.
func (h *Handle) finish(waitErr error, workerDone <-chan struct{}) {
	exitErr := exitError(h.command.ProcessState)
	var processExit *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &processExit) {
		h.logger.Warn("waiting for tele-cli daemon", "error", waitErr)
	}

	h.client.RejectAll(exitErr)
	h.registry.Unregister(h.accountID, h.client)
	h.connected.Store(false)

	h.queue.Close()
	<-workerDone

	clean := h.cancelled.Load() || exitErr.Signal == "SIGTERM" || (exitErr.Code != nil && *exitErr.Code == 0)
	if clean {
		h.state.Store(int32(StateStopped))
		h.logger.Info("tele-cli daemon stopped", "exit", exitErr.Error())
	} else {
		h.err = exitErr
		h.state.Store(int32(StateFailed))
		h.logger.Error("tele-cli daemon failed", "error", exitErr)
	}
	close(h.done)
}

// exitError describes how the process ended. A missing process state
// means Wait failed before reaping; that reports code -1.
func exitError(state *os.ProcessState) *ExitError {
	if state == nil {
		code := -1
		return &ExitError{Code: &code, Signal: "none"}
	}
	if status, ok := state.Sys().(syscall.WaitStatus); ok {
		waitStatus := unix.WaitStatus(status)
		if waitStatus.Signaled() {
			return &ExitError{Signal: unix.SignalName(waitStatus.Signal())}
		}
		code := waitStatus.ExitStatus()
		return &ExitError{Code: &code, Signal: "none"}
	}
	code := state.ExitCode()
	return &ExitError{Code: &code, Signal: "none"}
}
