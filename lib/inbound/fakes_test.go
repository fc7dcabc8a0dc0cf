// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inbound

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bureau-foundation/telecli/lib/access"
	"github.com/bureau-foundation/telecli/lib/account"
	"github.com/bureau-foundation/telecli/lib/clock"
	"github.com/bureau-foundation/telecli/lib/config"
	"github.com/bureau-foundation/telecli/lib/outbound"
	"github.com/bureau-foundation/telecli/lib/sessionstore"
)

type memoryPairing struct {
	mu       sync.Mutex
	allowed  []string
	requests map[string]string
	readErr  error
}

func (m *memoryPairing) ReadAllowFrom(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]string(nil), m.allowed...), nil
}

func (m *memoryPairing) UpsertRequest(_ context.Context, senderID, _ string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requests == nil {
		m.requests = make(map[string]string)
	}
	if code, ok := m.requests[senderID]; ok {
		return code, false, nil
	}
	code := "CODE" + senderID
	m.requests[senderID] = code
	return code, true, nil
}

func (m *memoryPairing) approve(senderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requests, senderID)
	m.allowed = append(m.allowed, senderID)
}

type recordingSessions struct {
	mu      sync.Mutex
	updates []sessionstore.Update
	err     error

	// block, when set, is received from before each write returns.
	block chan struct{}
}

func (r *recordingSessions) RecordInbound(ctx context.Context, update sessionstore.Update) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
	return r.err
}

type sentMessage struct {
	target  string
	text    string
	payload outbound.Payload
	replyTo *int64
}

type recordingDeliverer struct {
	mu      sync.Mutex
	sends   []sentMessage
	replies []sentMessage
	err     error
}

func (r *recordingDeliverer) Send(_ context.Context, _ account.Account, target, text string, _ outbound.SendOptions) (outbound.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, sentMessage{target: target, text: text})
	return outbound.Result{MessageID: "tele-test", To: target}, r.err
}

func (r *recordingDeliverer) DeliverReply(_ context.Context, _ account.Account, target string, payload outbound.Payload, replyTo *int64) ([]outbound.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, sentMessage{target: target, payload: payload, replyTo: replyTo})
	return []outbound.Result{{MessageID: "tele-test", To: target}}, r.err
}

type recordingDispatcher struct {
	mu       sync.Mutex
	requests []DispatchRequest
	replies  []outbound.Payload
	err      error
	started  chan string
	// panicOn makes Dispatch panic for this body.
	panicOn string
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, request DispatchRequest, reply ReplyFunc) error {
	if r.started != nil {
		r.started <- request.Envelope.RawBody
	}
	if r.panicOn != "" && request.Envelope.RawBody == r.panicOn {
		panic("dispatcher exploded")
	}
	r.mu.Lock()
	r.requests = append(r.requests, request)
	replies := r.replies
	err := r.err
	r.mu.Unlock()
	for _, payload := range replies {
		if replyErr := reply(ctx, payload); replyErr != nil {
			return replyErr
		}
	}
	return err
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

type recordingActivity struct {
	mu       sync.Mutex
	inbound  int
	handled  int
	drops    []string
	failures []string
}

func (r *recordingActivity) RecordInbound(string, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbound++
}

func (r *recordingActivity) RecordDrop(_ string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drops = append(r.drops, reason)
}

func (r *recordingActivity) RecordFailure(_ string, stage string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, stage)
}

func (r *recordingActivity) MarkInboundHandled(string, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handled++
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	cfg        *config.Config
	pairing    *memoryPairing
	sessions   *recordingSessions
	deliverer  *recordingDeliverer
	dispatcher *recordingDispatcher
	activity   *recordingActivity
	pipeline   *Pipeline
}

func ptr[T any](value T) *T { return &value }

// newHarness returns a pipeline over in-memory collaborators. The
// config has no command name list, so every slash command counts as
// a control command.
func newHarness(settings account.Settings) *harness {
	cfg := config.Default()
	cfg.Commands.Names = nil
	cfg.Channels.Telecli.Settings = settings
	h := &harness{
		cfg:        cfg,
		pairing:    &memoryPairing{},
		sessions:   &recordingSessions{},
		deliverer:  &recordingDeliverer{},
		dispatcher: &recordingDispatcher{},
		activity:   &recordingActivity{},
	}
	h.pipeline = NewPipeline(Config{
		AccountID:  account.DefaultAccountID,
		Source:     func() *config.Config { return h.cfg },
		Pairing:    h.pairing,
		Sessions:   h.sessions,
		Deliverer:  h.deliverer,
		Dispatcher: h.dispatcher,
		Activity:   h.activity,
		Clock:      clock.Fake(testNow),
	})
	return h
}

func openDM() account.Settings {
	return account.Settings{DMPolicy: ptr(access.DMOpen)}
}

var errTest = errors.New("test failure")
