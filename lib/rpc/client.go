// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/telecli/lib/clock"
)

// CallTimeout bounds every call, independent of the daemon's lifetime.
const CallTimeout = 30 * time.Second

var (
	// ErrTimeout is wrapped by calls that outlive their deadline.
	ErrTimeout = errors.New("tele daemon rpc timeout")

	// ErrClosed is returned by calls on a client that was shut down
	// without a more specific reason.
	ErrClosed = errors.New("tele daemon rpc client closed")
)

// RemoteError is a failure reported by the daemon in a response with
// ok=false.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "unknown rpc error"
	}
	return e.Message
}

// ClientConfig holds the parameters for NewClient.
type ClientConfig struct {
	// Writer is the daemon's stdin. Each request is written with a
	// single Write call.
	Writer io.Writer

	// Clock drives call deadlines and request ids. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Timeout overrides CallTimeout when positive.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client correlates requests written to the daemon with the responses
// read back from it. Safe for concurrent use.
type Client struct {
	writer  io.Writer
	clock   clock.Clock
	timeout time.Duration
	logger  *slog.Logger

	writeMu  sync.Mutex
	sequence atomic.Uint64

	mu       sync.Mutex
	pending  map[string]*pendingCall
	shutdown error
}

type pendingCall struct {
	method string
	timer  *clock.Timer
	done   chan callResult
}

type callResult struct {
	result json.RawMessage
	err    error
}

type request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// NewClient returns a client writing to cfg.Writer.
func NewClient(cfg ClientConfig) *Client {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = CallTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		writer:  cfg.Writer,
		clock:   clk,
		timeout: timeout,
		logger:  logger,
		pending: make(map[string]*pendingCall),
	}
}

// nextID returns "<unix millis>-<sequence>".
func (c *Client) nextID() string {
	return fmt.Sprintf("%d-%d", c.clock.Now().UnixMilli(), c.sequence.Add(1))
}

// Call sends method with params and waits for the matching response.
// Nil params are sent as an empty object.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if params == nil {
		params = struct{}{}
	}
	id := c.nextID()
	line, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}
	line = append(line, '\n')

	call := &pendingCall{method: method, done: make(chan callResult, 1)}
	c.mu.Lock()
	if c.shutdown != nil {
		err := c.shutdown
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = call
	c.mu.Unlock()

	timer := c.clock.AfterFunc(c.timeout, func() {
		c.settle(id, callResult{err: fmt.Errorf("%w: %s", ErrTimeout, method)})
	})
	c.mu.Lock()
	if _, stillPending := c.pending[id]; stillPending {
		call.timer = timer
	} else {
		timer.Stop()
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	_, writeErr := c.writer.Write(line)
	c.writeMu.Unlock()
	if writeErr != nil {
		c.settle(id, callResult{err: fmt.Errorf("writing %s request: %w", method, writeErr)})
	}

	select {
	case outcome := <-call.done:
		return outcome.result, outcome.err
	case <-ctx.Done():
		c.settle(id, callResult{err: ctx.Err()})
		outcome := <-call.done
		return outcome.result, outcome.err
	}
}

// settle delivers result to the pending call and removes it. Returns
// false if no call with that id is pending.
func (c *Client) settle(id string, result callResult) bool {
	call := c.take(id)
	if call == nil {
		return false
	}
	call.done <- result
	return true
}

func (c *Client) take(id string) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	if call.timer != nil {
		call.timer.Stop()
	}
	return call
}

// Resolve completes the pending call named by a response packet.
// Returns false when the id is unknown or already settled; the packet
// is then ignored.
func (c *Client) Resolve(packet Packet) bool {
	call := c.take(packet.ID)
	if call == nil {
		c.logger.Debug("response for unknown rpc id", "id", packet.ID)
		return false
	}
	if packet.OK {
		call.done <- callResult{result: packet.Result}
	} else {
		call.done <- callResult{err: &RemoteError{Method: call.method, Message: packet.Error}}
	}
	return true
}

// RejectAll fails every pending call with err and makes future calls
// fail with it immediately. A nil err means ErrClosed.
func (c *Client) RejectAll(err error) {
	if err == nil {
		err = ErrClosed
	}
	c.mu.Lock()
	if c.shutdown == nil {
		c.shutdown = err
	}
	calls := c.pending
	c.pending = make(map[string]*pendingCall)
	c.mu.Unlock()

	for _, call := range calls {
		if call.timer != nil {
			call.timer.Stop()
		}
		call.done <- callResult{err: err}
	}
}

// Pending returns the number of calls awaiting a response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// shutdownRequest is written by Close.
var shutdownRequest = []byte(`{"id":"shutdown","method":"stop","params":{}}` + "\n")

// Close asks the daemon to stop. Write failures are ignored: the
// daemon may already be gone.
func (c *Client) Close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.writer.Write(shutdownRequest); err != nil {
		c.logger.Debug("shutdown request not delivered", "error", err)
	}
}
