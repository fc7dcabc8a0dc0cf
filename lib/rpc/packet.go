// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"bytes"
	"encoding/json"
	"strings"
)

// PacketKind discriminates the Packet variants.
type PacketKind int

const (
	// PacketReady announces that the daemon has connected to Telegram.
	PacketReady PacketKind = iota + 1

	// PacketEvent carries an unsolicited event such as new_message.
	PacketEvent

	// PacketResponse answers a request by id.
	PacketResponse

	// PacketLegacy is a line from an older daemon that writes inbound
	// messages directly: a bare array of messages, or a single message
	// object with no type field. Payload holds the whole line.
	PacketLegacy
)

func (k PacketKind) String() string {
	switch k {
	case PacketReady:
		return "ready"
	case PacketEvent:
		return "event"
	case PacketResponse:
		return "response"
	case PacketLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// EventNewMessage is the event name for inbound Telegram messages.
const EventNewMessage = "new_message"

// Packet is one parsed daemon output line. Which fields are meaningful
// depends on Kind.
type Packet struct {
	Kind PacketKind

	// Event and Payload are set for PacketEvent. Payload is the whole
	// line for PacketLegacy.
	Event   string
	Payload json.RawMessage

	// ID, OK, Result, and Error are set for PacketResponse.
	ID     string
	OK     bool
	Result json.RawMessage
	Error  string
}

type wirePacket struct {
	Type    *json.RawMessage `json:"type"`
	Event   string           `json:"event"`
	Payload json.RawMessage  `json:"payload"`
	ID      json.RawMessage  `json:"id"`
	OK      bool             `json:"ok"`
	Result  json.RawMessage  `json:"result"`
	Error   json.RawMessage  `json:"error"`
}

// ParsePacket decodes one output line. Returns false for blank lines,
// malformed JSON, non-object non-array values, and objects whose type
// is not one of ready, event, or response. The packet never aliases
// line, so the caller may reuse its buffer.
func ParsePacket(line []byte) (Packet, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Packet{}, false
	}
	if line[0] == '[' {
		if !json.Valid(line) {
			return Packet{}, false
		}
		return Packet{Kind: PacketLegacy, Payload: json.RawMessage(bytes.Clone(line))}, true
	}
	if line[0] != '{' {
		return Packet{}, false
	}

	var wire wirePacket
	if err := json.Unmarshal(line, &wire); err != nil {
		return Packet{}, false
	}
	if wire.Type == nil {
		return Packet{Kind: PacketLegacy, Payload: json.RawMessage(bytes.Clone(line))}, true
	}
	var packetType string
	if err := json.Unmarshal(*wire.Type, &packetType); err != nil {
		return Packet{}, false
	}

	switch packetType {
	case "ready":
		return Packet{Kind: PacketReady}, true
	case "event":
		return Packet{Kind: PacketEvent, Event: wire.Event, Payload: wire.Payload}, true
	case "response":
		id := rawText(wire.ID)
		if id == "" {
			return Packet{}, false
		}
		return Packet{
			Kind:   PacketResponse,
			ID:     id,
			OK:     wire.OK,
			Result: wire.Result,
			Error:  errorText(wire.Error),
		}, true
	default:
		return Packet{}, false
	}
}

// rawText returns a JSON string's contents, or the literal text of any
// other scalar.
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

// errorText accepts an error reported as a string or as an object with
// a message field.
func errorText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var object struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &object); err == nil && object.Message != "" {
			return object.Message
		}
	}
	return strings.TrimSpace(rawText(raw))
}
