// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inbound

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/bureau-foundation/telecli/lib/peer"
)

// Message is a new_message payload from the daemon. Fields of the
// wrong JSON type decode as absent rather than failing the message.
type Message struct {
	// ID is the platform message id as text, or "" when absent.
	ID string

	// Out is true for messages the account itself sent.
	Out bool

	Text string

	// Date is kept raw; see ParseTimestamp.
	Date json.RawMessage

	PeerID   peer.Identifier
	FromID   peer.Identifier
	SenderID peer.Identifier

	SenderName     string
	SenderUsername string
	ChatTitle      string
	ChatUsername   string

	// SelfOnline reports that the account's own user was online when
	// the message arrived.
	SelfOnline bool
}

type wireMessage struct {
	ID             json.RawMessage `json:"id"`
	Out            json.RawMessage `json:"out"`
	Message        json.RawMessage `json:"message"`
	Date           json.RawMessage `json:"date"`
	PeerID         peer.Identifier `json:"peer_id"`
	FromID         peer.Identifier `json:"from_id"`
	SenderID       peer.Identifier `json:"sender_id"`
	SenderName     json.RawMessage `json:"sender_name"`
	SenderUsername json.RawMessage `json:"sender_username"`
	ChatTitle      json.RawMessage `json:"chat_title"`
	ChatUsername   json.RawMessage `json:"chat_username"`
	SelfOnline     json.RawMessage `json:"self_online"`
}

// UnmarshalJSON decodes a payload object leniently.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*m = Message{
		ID:             scalarText(wire.ID),
		Out:            isTrue(wire.Out),
		Text:           stringValue(wire.Message),
		Date:           wire.Date,
		PeerID:         wire.PeerID,
		FromID:         wire.FromID,
		SenderID:       wire.SenderID,
		SenderName:     stringValue(wire.SenderName),
		SenderUsername: stringValue(wire.SenderUsername),
		ChatTitle:      stringValue(wire.ChatTitle),
		ChatUsername:   stringValue(wire.ChatUsername),
		SelfOnline:     isTrue(wire.SelfOnline),
	}
	return nil
}

// DecodeMessage decodes one payload. Returns false for anything that
// is not a JSON object.
func DecodeMessage(raw json.RawMessage) (Message, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Message{}, false
	}
	var message Message
	if err := json.Unmarshal(raw, &message); err != nil {
		return Message{}, false
	}
	return message, true
}

// NumericID returns the message id as an integer, for threading a
// reply under it. Nil when absent or not an integer.
func (m Message) NumericID() *int64 {
	if m.ID == "" {
		return nil
	}
	value, err := strconv.ParseInt(m.ID, 10, 64)
	if err != nil {
		return nil
	}
	return &value
}

func stringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return ""
	}
	return text
}

// scalarText returns a string's contents or a number's literal text.
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		return strings.TrimSpace(stringValue(raw))
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return ""
	}
	return number.String()
}

func isTrue(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "true"
}
