// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/bureau-foundation/telecli/lib/config"
	"github.com/bureau-foundation/telecli/lib/inbound"
	"github.com/bureau-foundation/telecli/lib/linescan"
	"github.com/bureau-foundation/telecli/lib/outbound"
)

// maxStderr bounds the stderr kept for error messages.
const maxStderr = 4096

// maxLineSize bounds one stdout line. Longer lines are dropped.
const maxLineSize = 1024 * 1024

// Config holds the parameters for New.
type Config struct {
	// Source returns the live configuration. The agent section is read
	// on every dispatch. Required.
	Source func() *config.Config

	// Environ is appended to the agent's inherited environment.
	Environ []string

	Logger *slog.Logger
}

// Dispatcher implements inbound.Dispatcher by running a command.
type Dispatcher struct {
	source  func() *config.Config
	environ []string
	logger  *slog.Logger
}

var _ inbound.Dispatcher = (*Dispatcher)(nil)

// New returns a Dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{source: cfg.Source, environ: cfg.Environ, logger: logger}
}

// Dispatch runs the agent for request.Envelope. A missing agent
// command is not an error: the message has already been recorded and
// simply gets no reply. Reply delivery failures are reported by reply
// itself and do not stop the agent.
func (d *Dispatcher) Dispatch(ctx context.Context, request inbound.DispatchRequest, reply inbound.ReplyFunc) error {
	agent := d.source().Agent
	if len(agent.Command) == 0 {
		d.logger.Debug("no agent command configured", "session_key", request.Envelope.SessionKey)
		return nil
	}

	input, err := json.Marshal(request.Envelope)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	if agent.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, agent.Timeout)
		defer cancel()
	}

	command := exec.CommandContext(ctx, agent.Command[0], agent.Command[1:]...)
	command.Dir = agent.WorkingDirectory
	command.Env = append(os.Environ(), d.environ...)
	command.Stdin = bytes.NewReader(append(input, '\n'))
	stderr := &tailBuffer{limit: maxStderr}
	command.Stderr = stderr

	stdout, err := command.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating agent stdout pipe: %w", err)
	}
	if err := command.Start(); err != nil {
		return fmt.Errorf("starting agent %s: %w", agent.Command[0], err)
	}

	blocks := &collector{
		stream: !request.DisableBlockStreaming,
		logger: d.logger,
		deliver: func(payload outbound.Payload) {
			if err := reply(ctx, payload); err != nil {
				d.logger.Debug("agent reply block not delivered", "error", err)
			}
		},
	}
	readErr := blocks.read(stdout)
	waitErr := command.Wait()
	blocks.finish()

	if ctxErr := ctx.Err(); ctxErr != nil && waitErr != nil {
		return fmt.Errorf("agent %s: %w", agent.Command[0], ctxErr)
	}
	if waitErr != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return fmt.Errorf("agent %s: %w: %s", agent.Command[0], waitErr, detail)
		}
		return fmt.Errorf("agent %s: %w", agent.Command[0], waitErr)
	}
	if readErr != nil {
		return fmt.Errorf("reading agent output: %w", readErr)
	}
	return nil
}

// collector turns stdout lines into reply blocks.
type collector struct {
	stream  bool
	deliver func(outbound.Payload)
	logger  *slog.Logger

	plain    []string
	buffered []outbound.Payload
}

func (c *collector) read(stdout io.Reader) error {
	return linescan.Scan(stdout, linescan.Options{
		MaxLineSize: maxLineSize,
		Oversized: func(length int) {
			c.logger.Debug("agent output line too long, dropped", "bytes", length)
		},
	}, func(raw []byte) {
		line := string(raw)
		if payload, ok := decodeBlock(line); ok {
			c.flushPlain()
			c.emit(payload)
			return
		}
		c.plain = append(c.plain, line)
	})
}

// finish flushes pending text and, when buffering, delivers the merged
// reply.
func (c *collector) finish() {
	c.flushPlain()
	if c.stream || len(c.buffered) == 0 {
		return
	}
	merged := Merge(c.buffered)
	if merged.Text != "" || len(merged.Media()) > 0 {
		c.deliver(merged)
	}
}

func (c *collector) flushPlain() {
	text := strings.TrimSpace(strings.Join(c.plain, "\n"))
	c.plain = c.plain[:0]
	if text == "" {
		return
	}
	c.emit(outbound.Payload{Text: text})
}

func (c *collector) emit(payload outbound.Payload) {
	if c.stream {
		c.deliver(payload)
		return
	}
	c.buffered = append(c.buffered, payload)
}

// decodeBlock reports whether line is a JSON reply block. Objects
// without any reply field are treated as plain text.
func decodeBlock(line string) (outbound.Payload, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return outbound.Payload{}, false
	}
	var wire struct {
		Text      *string  `json:"text"`
		MediaURL  string   `json:"media_url"`
		MediaURLs []string `json:"media_urls"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return outbound.Payload{}, false
	}
	if wire.Text == nil && wire.MediaURL == "" && len(wire.MediaURLs) == 0 {
		return outbound.Payload{}, false
	}
	payload := outbound.Payload{MediaURL: wire.MediaURL, MediaURLs: wire.MediaURLs}
	if wire.Text != nil {
		payload.Text = *wire.Text
	}
	return payload, true
}

// Merge joins blocks into one payload: texts separated by a blank
// line, media in order.
func Merge(blocks []outbound.Payload) outbound.Payload {
	var texts []string
	var media []string
	for _, block := range blocks {
		if text := strings.TrimSpace(block.Text); text != "" {
			texts = append(texts, text)
		}
		media = append(media, block.Media()...)
	}
	return outbound.Payload{Text: strings.Join(texts, "\n\n"), MediaURLs: media}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if overflow := len(b.data) - b.limit; overflow > 0 {
		b.data = b.data[overflow:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
