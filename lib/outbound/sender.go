// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outbound

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/telecli/lib/account"
	"github.com/bureau-foundation/telecli/lib/clock"
	"github.com/bureau-foundation/telecli/lib/rpc"
)

// DefaultCLITimeout bounds a one-shot tele-cli send.
const DefaultCLITimeout = 30 * time.Second

// Message id prefixes for the two delivery paths.
const (
	rpcMessagePrefix = "tele-rpc-"
	cliMessagePrefix = "tele-"
)

// Activity receives a timestamp for every successful delivery.
type Activity interface {
	RecordOutbound(accountID string, at time.Time)
}

// Config holds the parameters for NewSender.
type Config struct {
	// Registry locates the live daemon for an account. Nil means
	// every send takes the CLI path.
	Registry *rpc.Registry

	// Runner executes the CLI fallback. Defaults to ExecRunner.
	Runner CommandRunner

	// Activity may be nil.
	Activity Activity

	// Timeout bounds CLI sends. Defaults to DefaultCLITimeout.
	Timeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Sender delivers messages for any account.
type Sender struct {
	registry *rpc.Registry
	runner   CommandRunner
	activity Activity
	timeout  time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// NewSender returns a Sender with defaults applied.
func NewSender(cfg Config) *Sender {
	sender := &Sender{
		registry: cfg.Registry,
		runner:   cfg.Runner,
		activity: cfg.Activity,
		timeout:  cfg.Timeout,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
	if sender.runner == nil {
		sender.runner = ExecRunner{}
	}
	if sender.timeout <= 0 {
		sender.timeout = DefaultCLITimeout
	}
	if sender.clock == nil {
		sender.clock = clock.Real()
	}
	if sender.logger == nil {
		sender.logger = slog.New(slog.DiscardHandler)
	}
	return sender
}

// SendOptions are per-message delivery options.
type SendOptions struct {
	// ReplyTo threads the message under an earlier message id. Only
	// the daemon path supports it.
	ReplyTo *int64

	// Files are local paths to attach. Only the daemon path supports
	// them.
	Files []string

	// Timeout overrides the Sender's CLI timeout when positive.
	Timeout time.Duration
}

// Result identifies a delivered message.
type Result struct {
	MessageID string
	To        string
}

// Send delivers text to target through the account's daemon when one
// is registered, otherwise through the CLI.
func (s *Sender) Send(ctx context.Context, acct account.Account, target, text string, options SendOptions) (Result, error) {
	target = NormalizeTarget(target)
	if target == "" {
		return Result{}, fmt.Errorf("telecli send: empty target")
	}

	var (
		result Result
		err    error
	)
	if client, ok := s.lookup(acct.ID); ok {
		result, err = s.sendRPC(ctx, client, target, text, options)
	} else {
		result, err = s.sendCLI(ctx, acct, target, text, options)
	}
	if err != nil {
		return Result{}, err
	}
	if s.activity != nil {
		s.activity.RecordOutbound(acct.ID, s.clock.Now())
	}
	return result, nil
}

func (s *Sender) lookup(accountID string) (*rpc.Client, bool) {
	if s.registry == nil {
		return nil, false
	}
	return s.registry.Lookup(accountID)
}

func (s *Sender) sendRPC(ctx context.Context, client *rpc.Client, target, text string, options SendOptions) (Result, error) {
	params := rpc.SendMessageParams{
		Receiver: target,
		Message:  text,
		ReplyTo:  options.ReplyTo,
		File:     options.Files,
	}
	if IsNumericTarget(target) {
		params.EntityType = rpc.EntityPeerID
	}
	sent, err := client.SendMessage(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("tele daemon send_message: %w", err)
	}
	to := target
	if receiver := receiverText(sent.Receiver); receiver != "" {
		to = receiver
	}
	return Result{MessageID: s.messageID(rpcMessagePrefix), To: to}, nil
}

func receiverText(receiver any) string {
	switch value := receiver.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

func (s *Sender) sendCLI(ctx context.Context, acct account.Account, target, text string, options SendOptions) (Result, error) {
	if len(options.Files) > 0 {
		s.logger.Warn("tele-cli send cannot attach files; sending text only",
			"account_id", acct.ID,
			"files", len(options.Files),
		)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("telecli send: nothing to send without a running daemon")
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	runContext, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := acct.SendArgs(target, text, IsNumericTarget(target))
	outcome, err := s.runner.Run(runContext, acct.TelePath, args)
	if err != nil {
		if runContext.Err() != nil && ctx.Err() == nil {
			return Result{}, fmt.Errorf("tele-cli send timed out after %s: %w", timeout, err)
		}
		return Result{}, fmt.Errorf("running %s: %w", acct.TelePath, err)
	}
	if outcome.ExitCode != 0 {
		return Result{}, &DeliveryError{
			ExitCode: outcome.ExitCode,
			Stdout:   string(outcome.Stdout),
			Stderr:   string(outcome.Stderr),
		}
	}
	return Result{MessageID: s.messageID(cliMessagePrefix), To: target}, nil
}

// messageID returns a collision-resistant synthetic id. Falls back to
// the clock only if the system random source fails.
func (s *Sender) messageID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		return prefix + strconv.FormatInt(s.clock.Now().UnixMilli(), 10)
	}
	return prefix + id.String()
}

// Deliver formats payload and sends it to target. Local media travel
// as file attachments and remote media as Attachment lines. Returns
// false with no error when the payload has nothing to send.
func (s *Sender) Deliver(ctx context.Context, acct account.Account, target string, payload Payload, replyTo *int64) (Result, bool, error) {
	files, links := PartitionMedia(payload.Media())
	text := ComposeText(payload.Text, links)
	if text == "" && len(files) == 0 {
		return Result{}, false, nil
	}
	result, err := s.Send(ctx, acct, target, text, SendOptions{ReplyTo: replyTo, Files: files})
	if err != nil {
		return Result{}, false, err
	}
	return result, true, nil
}

// DeliverReply sends one agent reply block, applying the account's
// response prefix and chunk limit. Files and the reply-to id ride on
// the first chunk.
func (s *Sender) DeliverReply(ctx context.Context, acct account.Account, target string, payload Payload, replyTo *int64) ([]Result, error) {
	files, links := PartitionMedia(payload.Media())
	text := ComposeText(payload.Text, links)
	if text != "" && acct.ResponsePrefix != "" {
		text = acct.ResponsePrefix + " " + text
	}
	if text == "" && len(files) == 0 {
		return nil, nil
	}

	chunks := ChunkText(text, acct.TextChunkLimit, acct.ChunkMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	var results []Result
	for index, chunk := range chunks {
		options := SendOptions{}
		if index == 0 {
			options.ReplyTo = replyTo
			options.Files = files
		}
		result, err := s.Send(ctx, acct, target, chunk, options)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}
