// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inbound

import (
	"strings"
	"time"

	"github.com/bureau-foundation/telecli/lib/peer"
)

// Envelope is the agent-facing form of an admitted message. The JSON
// field names are the agent protocol's.
type Envelope struct {
	Body         string `json:"Body"`
	BodyForAgent string `json:"BodyForAgent"`
	RawBody      string `json:"RawBody"`
	CommandBody  string `json:"CommandBody"`

	From string `json:"From"`
	To   string `json:"To"`

	SessionKey        string `json:"SessionKey"`
	AccountID         string `json:"AccountId"`
	ChatType          string `json:"ChatType"`
	ConversationLabel string `json:"ConversationLabel"`
	GroupSubject      string `json:"GroupSubject,omitempty"`

	SenderID       string `json:"SenderId"`
	SenderName     string `json:"SenderName"`
	SenderUsername string `json:"SenderUsername,omitempty"`

	Provider   string `json:"Provider"`
	Surface    string `json:"Surface"`
	MessageSid string `json:"MessageSid"`

	// Timestamp is Unix milliseconds.
	Timestamp int64 `json:"Timestamp"`

	// WasMentioned is nil for direct messages.
	WasMentioned      *bool `json:"WasMentioned,omitempty"`
	CommandAuthorized bool  `json:"CommandAuthorized"`

	OriginatingChannel string `json:"OriginatingChannel"`
	OriginatingTo      string `json:"OriginatingTo"`

	PeerID        string `json:"PeerId,omitempty"`
	PeerType      string `json:"PeerType,omitempty"`
	PeerUserID    string `json:"PeerUserId,omitempty"`
	PeerChatID    string `json:"PeerChatId,omitempty"`
	PeerChannelID string `json:"PeerChannelId,omitempty"`

	FromPeerID        string `json:"FromPeerId,omitempty"`
	FromPeerType      string `json:"FromPeerType,omitempty"`
	FromPeerUserID    string `json:"FromPeerUserId,omitempty"`
	FromPeerChatID    string `json:"FromPeerChatId,omitempty"`
	FromPeerChannelID string `json:"FromPeerChannelId,omitempty"`

	SenderPeerID        string `json:"SenderPeerId,omitempty"`
	SenderPeerType      string `json:"SenderPeerType,omitempty"`
	SenderPeerUserID    string `json:"SenderPeerUserId,omitempty"`
	SenderPeerChatID    string `json:"SenderPeerChatId,omitempty"`
	SenderPeerChannelID string `json:"SenderPeerChannelId,omitempty"`
}

// ChatType values.
const (
	ChatDirect = "direct"
	ChatGroup  = "group"
)

// applyPeers copies the peer descriptors from a PeerContext.
func (e *Envelope) applyPeers(peers PeerContext) {
	fill := func(source *peer.Normalized, id, kind, userID, chatID, channelID *string) {
		if source == nil {
			return
		}
		*id, *kind = source.ID, string(source.Kind)
		*userID, *chatID, *channelID = source.UserID, source.ChatID, source.ChannelID
	}
	fill(peers.Peer, &e.PeerID, &e.PeerType, &e.PeerUserID, &e.PeerChatID, &e.PeerChannelID)
	fill(peers.From, &e.FromPeerID, &e.FromPeerType, &e.FromPeerUserID, &e.FromPeerChatID, &e.FromPeerChannelID)
	fill(peers.Sender, &e.SenderPeerID, &e.SenderPeerType, &e.SenderPeerUserID, &e.SenderPeerChatID, &e.SenderPeerChannelID)
}

// FormatBody renders the human-readable body line the agent sees:
// "[Telegram <conversation> <time>] <body>", with the sender label
// before the body in group conversations.
func FormatBody(conversationLabel, senderLabel string, timestamp time.Time, chatType, body string) string {
	var builder strings.Builder
	builder.WriteString("[Telegram ")
	builder.WriteString(conversationLabel)
	builder.WriteString(" ")
	builder.WriteString(timestamp.UTC().Format("2006-01-02 15:04 UTC"))
	builder.WriteString("] ")
	if chatType == ChatGroup && senderLabel != "" {
		builder.WriteString(senderLabel)
		builder.WriteString(": ")
	}
	builder.WriteString(body)
	return builder.String()
}
