// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inbound

import "strings"

// ChannelID names this channel in session keys, envelope addresses,
// and activity records.
const ChannelID = "telecli"

// DefaultAgentID is used when the configuration names no agent.
const DefaultAgentID = "main"

// Route binds a conversation to an agent session.
type Route struct {
	AgentID   string
	AccountID string

	// SessionKey is where the message is recorded and dispatched.
	SessionKey string

	// MainSessionKey is the agent's shared session. Direct messages
	// move its last route to the sender.
	MainSessionKey string
}

// MainSessionKey returns the agent's shared session key.
func MainSessionKey(agentID string) string {
	return "agent:" + agentID + ":main"
}

// ResolveRoute returns the default route for a conversation. Direct
// conversations share the agent's main session; each group gets its
// own session keyed by peer id.
func ResolveRoute(agentID, accountID string, direct bool, peerID string) Route {
	if agentID = strings.TrimSpace(agentID); agentID == "" {
		agentID = DefaultAgentID
	}
	route := Route{
		AgentID:        agentID,
		AccountID:      accountID,
		MainSessionKey: MainSessionKey(agentID),
	}
	if direct {
		route.SessionKey = route.MainSessionKey
	} else {
		route.SessionKey = "agent:" + agentID + ":" + ChannelID + ":group:" + strings.ToLower(peerID)
	}
	return route
}

// IsolatedDirectSessionKey returns a session key private to one
// sender. A blank sender falls back to the agent's main session.
func IsolatedDirectSessionKey(agentID, channelID, accountID, senderID string) string {
	sender := strings.ToLower(strings.TrimSpace(senderID))
	if sender == "" {
		return MainSessionKey(agentID)
	}
	return "agent:" + agentID + ":" + channelID + ":" + accountID + ":direct:" + sender
}
