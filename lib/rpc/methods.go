// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// MethodSendMessage delivers a message to a Telegram peer.
const MethodSendMessage = "send_message"

// EntityPeerID marks a receiver as a signed peer id rather than a
// username or phone number.
const EntityPeerID = "peer_id"

// SendMessageParams are the parameters of send_message.
type SendMessageParams struct {
	Receiver   string   `json:"receiver"`
	Message    string   `json:"message"`
	EntityType string   `json:"entity_type,omitempty"`
	ReplyTo    *int64   `json:"reply_to,omitempty"`
	File       []string `json:"file,omitempty"`
}

// SendMessageResult is the daemon's answer to send_message. Receiver is
// echoed in whatever form the daemon resolved it to.
type SendMessageResult struct {
	Sent     bool `json:"sent"`
	Receiver any  `json:"receiver"`
}

// SendMessage calls send_message.
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (SendMessageResult, error) {
	raw, err := c.Call(ctx, MethodSendMessage, params)
	if err != nil {
		return SendMessageResult{}, err
	}
	var result SendMessageResult
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &result); err != nil {
			return SendMessageResult{}, fmt.Errorf("decoding %s result: %w", MethodSendMessage, err)
		}
	}
	return result, nil
}
