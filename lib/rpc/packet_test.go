// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import "testing"

func TestParsePacket(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		line   string
		wantOK bool
		want   Packet
	}{
		{
			name:   "ready",
			line:   `{"type":"ready"}`,
			wantOK: true,
			want:   Packet{Kind: PacketReady},
		},
		{
			name:   "event",
			line:   `{"type":"event","event":"new_message","payload":{"message":"hi"}}`,
			wantOK: true,
			want:   Packet{Kind: PacketEvent, Event: EventNewMessage, Payload: []byte(`{"message":"hi"}`)},
		},
		{
			name:   "ok response",
			line:   `{"type":"response","id":"1-1","ok":true,"result":{"sent":true}}`,
			wantOK: true,
			want:   Packet{Kind: PacketResponse, ID: "1-1", OK: true, Result: []byte(`{"sent":true}`)},
		},
		{
			name:   "error response string",
			line:   `{"type":"response","id":"1-2","ok":false,"error":"peer not found"}`,
			wantOK: true,
			want:   Packet{Kind: PacketResponse, ID: "1-2", Error: "peer not found"},
		},
		{
			name:   "error response object",
			line:   `{"type":"response","id":"1-3","ok":false,"error":{"message":"flood wait"}}`,
			wantOK: true,
			want:   Packet{Kind: PacketResponse, ID: "1-3", Error: "flood wait"},
		},
		{
			name:   "numeric response id",
			line:   `{"type":"response","id":17,"ok":true}`,
			wantOK: true,
			want:   Packet{Kind: PacketResponse, ID: "17", OK: true},
		},
		{
			name:   "legacy array",
			line:   `  [{"message":"a"},{"message":"b"}]  `,
			wantOK: true,
			want:   Packet{Kind: PacketLegacy, Payload: []byte(`[{"message":"a"},{"message":"b"}]`)},
		},
		{
			name:   "legacy object",
			line:   `{"message":"hi","peer_id":{"user_id":1}}`,
			wantOK: true,
			want:   Packet{Kind: PacketLegacy, Payload: []byte(`{"message":"hi","peer_id":{"user_id":1}}`)},
		},
		{name: "blank", line: "   "},
		{name: "malformed", line: `{"type":`},
		{name: "plain text", line: `daemon starting up`},
		{name: "scalar", line: `42`},
		{name: "unknown type", line: `{"type":"heartbeat"}`},
		{name: "non-string type", line: `{"type":5}`},
		{name: "response without id", line: `{"type":"response","ok":true}`},
		{name: "malformed array", line: `[1,2`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParsePacket([]byte(test.line))
			if ok != test.wantOK {
				t.Fatalf("ParsePacket ok = %v, want %v", ok, test.wantOK)
			}
			if !ok {
				return
			}
			if got.Kind != test.want.Kind {
				t.Errorf("Kind = %v, want %v", got.Kind, test.want.Kind)
			}
			if got.Event != test.want.Event {
				t.Errorf("Event = %q, want %q", got.Event, test.want.Event)
			}
			if string(got.Payload) != string(test.want.Payload) {
				t.Errorf("Payload = %s, want %s", got.Payload, test.want.Payload)
			}
			if got.ID != test.want.ID || got.OK != test.want.OK || got.Error != test.want.Error {
				t.Errorf("response = (%q, %v, %q), want (%q, %v, %q)",
					got.ID, got.OK, got.Error, test.want.ID, test.want.OK, test.want.Error)
			}
			if string(got.Result) != string(test.want.Result) {
				t.Errorf("Result = %s, want %s", got.Result, test.want.Result)
			}
		})
	}
}

func TestParsePacketDoesNotAliasLine(t *testing.T) {
	t.Parallel()
	for _, input := range []string{`[{"message":"hi"}]`, `{"message":"hi"}`, `{"type":"event","event":"new_message","payload":{"message":"hi"}}`} {
		line := []byte(input)
		packet, ok := ParsePacket(line)
		if !ok {
			t.Fatalf("ParsePacket(%s) rejected", input)
		}
		before := string(packet.Payload)
		for index := range line {
			line[index] = 'x'
		}
		if got := string(packet.Payload); got != before {
			t.Errorf("payload of %s changed to %q after the line buffer was reused", input, got)
		}
	}
}
