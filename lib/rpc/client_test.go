// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/telecli/lib/clock"
	"github.com/bureau-foundation/telecli/lib/testutil"
)

// lineRecorder captures written request lines and publishes each one.
type lineRecorder struct {
	mu    sync.Mutex
	lines []string
	fail  error
	sent  chan string
}

func newLineRecorder() *lineRecorder {
	return &lineRecorder{sent: make(chan string, 16)}
}

func (r *lineRecorder) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}
	line := string(data)
	r.lines = append(r.lines, line)
	r.sent <- line
	return len(data), nil
}

func decodeRequest(t *testing.T, line string) request {
	t.Helper()
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("request line %q is not newline-terminated", line)
	}
	var decoded struct {
		ID     string          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("decoding request %q: %v", line, err)
	}
	return request{ID: decoded.ID, Method: decoded.Method, Params: decoded.Params}
}

type callOutcome struct {
	result json.RawMessage
	err    error
}

func startCall(client *Client, method string, params any) <-chan callOutcome {
	outcomes := make(chan callOutcome, 1)
	go func() {
		result, err := client.Call(context.Background(), method, params)
		outcomes <- callOutcome{result, err}
	}()
	return outcomes
}

var epoch = time.UnixMilli(1_700_000_000_000)

func TestCallResolvesByID(t *testing.T) {
	t.Parallel()
	recorder := newLineRecorder()
	client := NewClient(ClientConfig{Writer: recorder, Clock: clock.Fake(epoch)})

	outcomes := startCall(client, "send_message", map[string]string{"receiver": "42"})
	sent := decodeRequest(t, testutil.RequireReceive(t, recorder.sent, 5*time.Second, "request line"))
	if sent.Method != "send_message" {
		t.Errorf("method = %q, want send_message", sent.Method)
	}
	if sent.ID != "1700000000000-1" {
		t.Errorf("id = %q, want 1700000000000-1", sent.ID)
	}

	if client.Resolve(Packet{Kind: PacketResponse, ID: "other", OK: true}) {
		t.Error("Resolve with unknown id returned true")
	}
	if !client.Resolve(Packet{Kind: PacketResponse, ID: sent.ID, OK: true, Result: []byte(`{"sent":true}`)}) {
		t.Fatal("Resolve with pending id returned false")
	}
	outcome := testutil.RequireReceive(t, outcomes, 5*time.Second, "call outcome")
	if outcome.err != nil {
		t.Fatalf("Call error: %v", outcome.err)
	}
	if string(outcome.result) != `{"sent":true}` {
		t.Errorf("result = %s, want {\"sent\":true}", outcome.result)
	}
	if client.Resolve(Packet{Kind: PacketResponse, ID: sent.ID, OK: true}) {
		t.Error("second Resolve for the same id returned true")
	}
	if client.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", client.Pending())
	}
}

func TestRequestIDsIncrease(t *testing.T) {
	t.Parallel()
	recorder := newLineRecorder()
	client := NewClient(ClientConfig{Writer: recorder, Clock: clock.Fake(epoch)})

	startCall(client, "a", nil)
	first := decodeRequest(t, testutil.RequireReceive(t, recorder.sent, 5*time.Second, "first"))
	startCall(client, "b", nil)
	second := decodeRequest(t, testutil.RequireReceive(t, recorder.sent, 5*time.Second, "second"))
	if first.ID == second.ID {
		t.Fatalf("request ids collide: %q", first.ID)
	}
	if string(first.Params.(json.RawMessage)) != "{}" {
		t.Errorf("nil params encoded as %s, want {}", first.Params)
	}
	client.RejectAll(nil)
}

func TestCallRemoteError(t *testing.T) {
	t.Parallel()
	recorder := newLineRecorder()
	client := NewClient(ClientConfig{Writer: recorder, Clock: clock.Fake(epoch)})

	outcomes := startCall(client, "send_message", nil)
	sent := decodeRequest(t, testutil.RequireReceive(t, recorder.sent, 5*time.Second, "request line"))
	client.Resolve(Packet{Kind: PacketResponse, ID: sent.ID, OK: false})

	outcome := testutil.RequireReceive(t, outcomes, 5*time.Second, "call outcome")
	var remote *RemoteError
	if !errors.As(outcome.err, &remote) {
		t.Fatalf("error = %v, want *RemoteError", outcome.err)
	}
	if remote.Error() != "unknown rpc error" {
		t.Errorf("message = %q, want %q", remote.Error(), "unknown rpc error")
	}
	if remote.Method != "send_message" {
		t.Errorf("method = %q, want send_message", remote.Method)
	}
}

func TestCallTimeout(t *testing.T) {
	t.Parallel()
	recorder := newLineRecorder()
	fake := clock.Fake(epoch)
	client := NewClient(ClientConfig{Writer: recorder, Clock: fake})

	outcomes := startCall(client, "send_message", nil)
	sent := decodeRequest(t, testutil.RequireReceive(t, recorder.sent, 5*time.Second, "request line"))
	fake.WaitForTimers(1)
	fake.Advance(CallTimeout - time.Millisecond)
	select {
	case outcome := <-outcomes:
		t.Fatalf("call settled before its deadline: %v", outcome.err)
	default:
	}
	fake.Advance(time.Millisecond)

	outcome := testutil.RequireReceive(t, outcomes, 5*time.Second, "call outcome")
	if !errors.Is(outcome.err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", outcome.err)
	}
	if outcome.err.Error() != "tele daemon rpc timeout: send_message" {
		t.Errorf("error text = %q", outcome.err.Error())
	}
	// A late response for the timed-out id is ignored.
	if client.Resolve(Packet{Kind: PacketResponse, ID: sent.ID, OK: true}) {
		t.Error("late response resolved a timed-out call")
	}
}

func TestResolveClearsTimer(t *testing.T) {
	t.Parallel()
	recorder := newLineRecorder()
	fake := clock.Fake(epoch)
	client := NewClient(ClientConfig{Writer: recorder, Clock: fake})

	outcomes := startCall(client, "x", nil)
	sent := decodeRequest(t, testutil.RequireReceive(t, recorder.sent, 5*time.Second, "request line"))
	fake.WaitForTimers(1)
	client.Resolve(Packet{Kind: PacketResponse, ID: sent.ID, OK: true})
	testutil.RequireReceive(t, outcomes, 5*time.Second, "call outcome")
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after resolve, want 0", fake.PendingCount())
	}
}

func TestWriteFailureRejectsCall(t *testing.T) {
	t.Parallel()
	recorder := newLineRecorder()
	recorder.fail = errors.New("broken pipe")
	fake := clock.Fake(epoch)
	client := NewClient(ClientConfig{Writer: recorder, Clock: fake})

	_, err := client.Call(context.Background(), "send_message", nil)
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Fatalf("error = %v, want write failure", err)
	}
	if client.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", client.Pending())
	}
	if fake.PendingCount() != 0 {
		t.Errorf("timer still armed after write failure")
	}
}

func TestRejectAll(t *testing.T) {
	t.Parallel()
	recorder := newLineRecorder()
	client := NewClient(ClientConfig{Writer: recorder, Clock: clock.Fake(epoch)})

	first := startCall(client, "a", nil)
	second := startCall(client, "b", nil)
	testutil.RequireReceive(t, recorder.sent, 5*time.Second, "first line")
	testutil.RequireReceive(t, recorder.sent, 5*time.Second, "second line")

	exitErr := errors.New("tele-cli daemon exited (code=1, signal=null)")
	client.RejectAll(exitErr)
	for _, outcomes := range []<-chan callOutcome{first, second} {
		outcome := testutil.RequireReceive(t, outcomes, 5*time.Second, "rejected call")
		if !errors.Is(outcome.err, exitErr) {
			t.Errorf("error = %v, want exit error", outcome.err)
		}
	}
	if _, err := client.Call(context.Background(), "c", nil); !errors.Is(err, exitErr) {
		t.Errorf("Call after RejectAll = %v, want exit error", err)
	}
}

func TestCallContextCancel(t *testing.T) {
	t.Parallel()
	recorder := newLineRecorder()
	client := NewClient(ClientConfig{Writer: recorder, Clock: clock.Fake(epoch)})

	ctx, cancel := context.WithCancel(context.Background())
	outcomes := make(chan error, 1)
	go func() {
		_, err := client.Call(ctx, "a", nil)
		outcomes <- err
	}()
	testutil.RequireReceive(t, recorder.sent, 5*time.Second, "request line")
	cancel()
	if err := testutil.RequireReceive(t, outcomes, 5*time.Second, "call outcome"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if client.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", client.Pending())
	}
}

func TestClose(t *testing.T) {
	t.Parallel()
	recorder := newLineRecorder()
	client := NewClient(ClientConfig{Writer: recorder})
	client.Close()
	line := testutil.RequireReceive(t, recorder.sent, 5*time.Second, "shutdown line")
	if line != `{"id":"shutdown","method":"stop","params":{}}`+"\n" {
		t.Errorf("shutdown line = %q", line)
	}

	recorder.fail = errors.New("closed")
	client.Close() // must not panic or block
}

func TestSendMessage(t *testing.T) {
	t.Parallel()
	recorder := newLineRecorder()
	client := NewClient(ClientConfig{Writer: recorder, Clock: clock.Fake(epoch)})

	replyTo := int64(99)
	results := make(chan SendMessageResult, 1)
	go func() {
		result, err := client.SendMessage(context.Background(), SendMessageParams{
			Receiver:   "42",
			Message:    "hello",
			EntityType: EntityPeerID,
			ReplyTo:    &replyTo,
		})
		if err != nil {
			t.Errorf("SendMessage: %v", err)
		}
		results <- result
	}()

	line := testutil.RequireReceive(t, recorder.sent, 5*time.Second, "request line")
	var sent struct {
		ID     string            `json:"id"`
		Params SendMessageParams `json:"params"`
	}
	if err := json.Unmarshal([]byte(line), &sent); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	if sent.Params.Receiver != "42" || sent.Params.EntityType != "peer_id" || sent.Params.ReplyTo == nil || *sent.Params.ReplyTo != 99 {
		t.Errorf("params = %+v", sent.Params)
	}
	if strings.Contains(line, `"file"`) {
		t.Errorf("empty file list was serialized: %s", line)
	}
	client.Resolve(Packet{Kind: PacketResponse, ID: sent.ID, OK: true, Result: []byte(`{"sent":true,"receiver":42}`)})
	result := testutil.RequireReceive(t, results, 5*time.Second, "send result")
	if !result.Sent {
		t.Error("Sent = false, want true")
	}
}
