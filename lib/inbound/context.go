// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inbound

import (
	"strings"

	"github.com/bureau-foundation/telecli/lib/peer"
)

// PeerContextInput is the raw material for BuildPeerContext.
type PeerContextInput struct {
	Peer   peer.Identifier
	From   peer.Identifier
	Sender peer.Identifier
	Direct bool

	SenderName     string
	SenderUsername string
	ChatTitle      string
	ChatUsername   string
}

// PeerContext is the conversation metadata carried on an envelope.
type PeerContext struct {
	// Peer is the conversation, From and Sender the author as reported
	// by from_id and sender_id. Each is nil when absent.
	Peer *peer.Normalized
	From *peer.Normalized

	// Sender is the resolved author: sender_id when it has a known
	// kind, else from_id, else (for direct conversations) the peer
	// itself as a user.
	Sender *peer.Normalized

	SenderLabel       string
	SenderUsername    string
	GroupSubject      string
	ConversationLabel string
}

func normalized(id peer.Identifier) *peer.Normalized {
	value, ok := peer.Normalize(id)
	if !ok {
		return nil
	}
	return &value
}

// BuildPeerContext resolves the sender and labels for a message.
func BuildPeerContext(input PeerContextInput) PeerContext {
	conversation := normalized(input.Peer)
	from := normalized(input.From)
	rawSender := normalized(input.Sender)

	sender := rawSender
	if sender == nil || sender.Kind == peer.KindUnknown {
		sender = from
	}
	if sender == nil && input.Direct {
		id := "unknown"
		if conversation != nil {
			id = conversation.ID
		}
		synthesized := peer.Normalized{ID: id, Kind: peer.KindUser}
		if conversation != nil {
			synthesized.UserID = conversation.ID
		}
		sender = &synthesized
	}

	result := PeerContext{
		Peer:           conversation,
		From:           from,
		Sender:         sender,
		SenderUsername: strings.TrimSpace(strings.TrimPrefix(input.SenderUsername, "@")),
	}
	chatTitle := strings.TrimSpace(input.ChatTitle)
	chatUsername := strings.TrimSpace(strings.TrimPrefix(input.ChatUsername, "@"))

	senderID, senderKind := "unknown", peer.KindUnknown
	if sender != nil {
		senderID, senderKind = sender.ID, sender.Kind
	}
	result.SenderLabel = strings.TrimSpace(input.SenderName)
	if result.SenderLabel == "" {
		switch senderKind {
		case peer.KindUser:
			result.SenderLabel = "Telegram user " + senderID
		case peer.KindChannel:
			result.SenderLabel = "Telegram channel " + senderID
		default:
			result.SenderLabel = "Telegram peer " + senderID
		}
	}

	peerID := "unknown"
	if conversation != nil {
		peerID = conversation.ID
	}
	switch {
	case input.Direct:
		result.ConversationLabel = result.SenderLabel
	case chatTitle != "":
		result.ConversationLabel = chatTitle + " id:" + peerID
	case chatUsername != "":
		result.ConversationLabel = "@" + chatUsername + " id:" + peerID
	case conversation != nil && conversation.Kind == peer.KindChannel:
		result.ConversationLabel = "Telegram channel " + peerID
	default:
		result.ConversationLabel = "Telegram chat " + peerID
	}
	if !input.Direct {
		result.GroupSubject = chatTitle
	}
	return result
}
