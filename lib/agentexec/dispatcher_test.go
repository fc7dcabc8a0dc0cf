// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentexec

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/telecli/lib/config"
	"github.com/bureau-foundation/telecli/lib/inbound"
	"github.com/bureau-foundation/telecli/lib/outbound"
)

// newDispatcher returns a dispatcher running script under sh.
func newDispatcher(script string, adjust func(*config.AgentConfig)) *Dispatcher {
	cfg := config.Default()
	cfg.Agent.Command = []string{"sh", "-c", script}
	if adjust != nil {
		adjust(&cfg.Agent)
	}
	return New(Config{Source: func() *config.Config { return cfg }})
}

type replies struct {
	blocks []outbound.Payload
	fail   int
}

func (r *replies) reply(ctx context.Context, payload outbound.Payload) error {
	r.blocks = append(r.blocks, payload)
	if r.fail > 0 {
		r.fail--
		return errors.New("delivery refused")
	}
	return nil
}

func request(streaming bool) inbound.DispatchRequest {
	return inbound.DispatchRequest{
		Envelope:              inbound.Envelope{Body: "hi", SessionKey: "agent:main:main"},
		DisableBlockStreaming: !streaming,
	}
}

const mixedOutput = `cat >/dev/null
echo '{"text":"one"}'
echo plain
echo '{"text":"two","media_urls":["https://example.com/a.png"]}'
echo tail`

func TestStreamingDeliversEachBlock(t *testing.T) {
	t.Parallel()
	sink := &replies{}
	if err := newDispatcher(mixedOutput, nil).Dispatch(context.Background(), request(true), sink.reply); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	want := []outbound.Payload{
		{Text: "one"},
		{Text: "plain"},
		{Text: "two", MediaURLs: []string{"https://example.com/a.png"}},
		{Text: "tail"},
	}
	if !reflect.DeepEqual(sink.blocks, want) {
		t.Errorf("blocks = %+v, want %+v", sink.blocks, want)
	}
}

func TestBufferedMergesBlocks(t *testing.T) {
	t.Parallel()
	sink := &replies{}
	if err := newDispatcher(mixedOutput, nil).Dispatch(context.Background(), request(false), sink.reply); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sink.blocks) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(sink.blocks))
	}
	got := sink.blocks[0]
	if got.Text != "one\n\nplain\n\ntwo\n\ntail" {
		t.Errorf("text = %q", got.Text)
	}
	if !reflect.DeepEqual(got.Media(), []string{"https://example.com/a.png"}) {
		t.Errorf("media = %v", got.Media())
	}
}

func TestPlainLinesFormOneBlock(t *testing.T) {
	t.Parallel()
	sink := &replies{}
	script := "cat >/dev/null; echo hello; echo; echo world"
	if err := newDispatcher(script, nil).Dispatch(context.Background(), request(true), sink.reply); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sink.blocks) != 1 || sink.blocks[0].Text != "hello\n\nworld" {
		t.Errorf("blocks = %+v, want one block hello/world", sink.blocks)
	}
}

func TestOversizedLineIsDropped(t *testing.T) {
	t.Parallel()
	sink := &replies{}
	script := `cat >/dev/null; head -c 1100000 /dev/zero | tr '\0' x; echo; echo '{"text":"after"}'`
	if err := newDispatcher(script, nil).Dispatch(context.Background(), request(true), sink.reply); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	want := []outbound.Payload{{Text: "after"}}
	if !reflect.DeepEqual(sink.blocks, want) {
		t.Errorf("blocks = %+v, want %+v", sink.blocks, want)
	}
}

func TestEnvelopeOnStdin(t *testing.T) {
	t.Parallel()
	sink := &replies{}
	if err := newDispatcher("cat", nil).Dispatch(context.Background(), request(true), sink.reply); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sink.blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(sink.blocks))
	}
	var envelope inbound.Envelope
	if err := json.Unmarshal([]byte(sink.blocks[0].Text), &envelope); err != nil {
		t.Fatalf("echoed envelope is not JSON: %v", err)
	}
	if envelope.SessionKey != "agent:main:main" || envelope.Body != "hi" {
		t.Errorf("envelope = %+v", envelope)
	}
}

func TestWorkingDirectory(t *testing.T) {
	t.Parallel()
	directory := t.TempDir()
	sink := &replies{}
	dispatcher := newDispatcher("cat >/dev/null; pwd", func(agent *config.AgentConfig) {
		agent.WorkingDirectory = directory
	})
	if err := dispatcher.Dispatch(context.Background(), request(true), sink.reply); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	want, _ := filepath.EvalSymlinks(directory)
	if len(sink.blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(sink.blocks))
	}
	got, _ := filepath.EvalSymlinks(sink.blocks[0].Text)
	if got != want {
		t.Errorf("working directory = %q, want %q", got, want)
	}
}

func TestNoCommandIsNotAnError(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	dispatcher := New(Config{Source: func() *config.Config { return cfg }})
	sink := &replies{}
	if err := dispatcher.Dispatch(context.Background(), request(true), sink.reply); err != nil {
		t.Fatalf("Dispatch = %v, want nil", err)
	}
	if len(sink.blocks) != 0 {
		t.Errorf("got %d blocks, want 0", len(sink.blocks))
	}
}

func TestFailingAgentReportsStderr(t *testing.T) {
	t.Parallel()
	sink := &replies{}
	script := "cat >/dev/null; echo partial; echo boom >&2; exit 4"
	err := newDispatcher(script, nil).Dispatch(context.Background(), request(true), sink.reply)
	if err == nil {
		t.Fatal("Dispatch succeeded for a failing agent")
	}
	if !strings.Contains(err.Error(), "exit status 4") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("error = %q, want exit status and stderr", err)
	}
	if len(sink.blocks) != 1 || sink.blocks[0].Text != "partial" {
		t.Errorf("blocks = %+v, want the partial output delivered", sink.blocks)
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()
	dispatcher := newDispatcher("exec sleep 5", func(agent *config.AgentConfig) {
		agent.Timeout = 50 * time.Millisecond
	})
	sink := &replies{}
	err := dispatcher.Dispatch(context.Background(), request(true), sink.reply)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Dispatch error = %v, want deadline exceeded", err)
	}
}

func TestReplyFailureDoesNotStopAgent(t *testing.T) {
	t.Parallel()
	sink := &replies{fail: 1}
	script := `cat >/dev/null; echo '{"text":"a"}'; echo '{"text":"b"}'`
	if err := newDispatcher(script, nil).Dispatch(context.Background(), request(true), sink.reply); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sink.blocks) != 2 {
		t.Errorf("got %d reply attempts, want 2", len(sink.blocks))
	}
}

func TestDecodeBlock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		want outbound.Payload
		ok   bool
	}{
		{`{"text":"hi"}`, outbound.Payload{Text: "hi"}, true},
		{`{"text":""}`, outbound.Payload{}, true},
		{`{"media_url":"/tmp/a.png"}`, outbound.Payload{MediaURL: "/tmp/a.png"}, true},
		{`{"other":1}`, outbound.Payload{}, false},
		{`{broken`, outbound.Payload{}, false},
		{`hello`, outbound.Payload{}, false},
	}
	for _, test := range tests {
		got, ok := decodeBlock(test.line)
		if ok != test.ok || !reflect.DeepEqual(got, test.want) {
			t.Errorf("decodeBlock(%q) = %+v, %v; want %+v, %v", test.line, got, ok, test.want, test.ok)
		}
	}
}
