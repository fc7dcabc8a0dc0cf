// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package access

// Drop reasons, logged by the inbound pipeline.
const (
	ReasonIgnored             = "ignored peer"
	ReasonDMDisabled          = "dm policy disabled"
	ReasonNotPaired           = "sender not paired"
	ReasonDMNotAllowed        = "dm sender not allowlisted"
	ReasonGroupDisabled       = "group policy disabled"
	ReasonGroupNotAllowed     = "group sender not allowlisted"
	ReasonUnauthorizedCommand = "control command (unauthorized)"
	ReasonMentionRequired     = "mention required"
	ReasonUnknownGroupPolicy  = "unknown group policy"
)

// Outcome is what the caller must do with a message.
type Outcome int

const (
	// Admit forwards the message to routing and dispatch.
	Admit Outcome = iota

	// Drop discards the message silently.
	Drop

	// Pair discards the message and asks the caller to run the
	// pairing flow for the sender.
	Pair
)

func (o Outcome) String() string {
	switch o {
	case Admit:
		return "admit"
	case Drop:
		return "drop"
	case Pair:
		return "pair"
	default:
		return "unknown"
	}
}

// Input is everything Evaluate needs about one message. Allow lists
// must be the effective, normalized lists (see EffectiveAllowLists).
type Input struct {
	Direct bool

	// UserDialog is true for direct messages and for group messages
	// whose sender is a user. The ignore list applies only to user
	// dialogs.
	UserDialog bool

	PeerID   string
	SenderID string

	DMPolicy    DMPolicy
	GroupPolicy GroupPolicy

	AllowFrom      []string
	GroupAllowFrom []string
	IgnorePeerIDs  []string

	UseAccessGroups   bool
	AllowTextCommands bool
	HasControlCommand bool
}

// Decision is the result of Evaluate.
type Decision struct {
	Outcome Outcome

	// Reason names the rule that rejected the message. Empty when
	// admitted.
	Reason string

	// CommandAuthorized reports whether a control command in this
	// message would be honored. Direct senders are authorized under
	// an open dm policy or when allow-listed; group senders follow
	// the command gate.
	CommandAuthorized bool
}

// Evaluate applies the ignore list, dm policy, group policy, and
// command gate in that order.
func Evaluate(input Input) Decision {
	if input.UserDialog && (Contains(input.IgnorePeerIDs, input.PeerID) || Contains(input.IgnorePeerIDs, input.SenderID)) {
		return Decision{Outcome: Drop, Reason: ReasonIgnored}
	}

	dmPolicy := input.DMPolicy
	if dmPolicy == "" {
		dmPolicy = DefaultDMPolicy
	}
	groupPolicy := input.GroupPolicy
	if groupPolicy == "" {
		groupPolicy = DefaultGroupPolicy
	}

	activeList := input.GroupAllowFrom
	if input.Direct {
		activeList = input.AllowFrom
	}
	senderAllowed := IsSenderAllowed(input.SenderID, activeList)
	gate := ResolveCommandGate(CommandGateInput{
		UseAccessGroups:   input.UseAccessGroups,
		Authorizers:       []Authorizer{{Configured: len(activeList) > 0, Allowed: senderAllowed}},
		AllowTextCommands: input.AllowTextCommands,
		HasControlCommand: input.HasControlCommand,
	})

	if input.Direct {
		authorized := dmPolicy == DMOpen || senderAllowed
		switch {
		case dmPolicy == DMDisabled:
			return Decision{Outcome: Drop, Reason: ReasonDMDisabled}
		case authorized:
			return Decision{Outcome: Admit, CommandAuthorized: true}
		case dmPolicy == DMPairing:
			return Decision{Outcome: Pair, Reason: ReasonNotPaired}
		default:
			return Decision{Outcome: Drop, Reason: ReasonDMNotAllowed}
		}
	}

	switch groupPolicy {
	case GroupDisabled:
		return Decision{Outcome: Drop, Reason: ReasonGroupDisabled}
	case GroupAllowlist:
		if len(input.GroupAllowFrom) == 0 || !senderAllowed {
			reason := ReasonGroupNotAllowed
			if gate.ShouldBlock {
				reason = ReasonUnauthorizedCommand
			}
			return Decision{Outcome: Drop, Reason: reason}
		}
	case GroupOpen:
	default:
		return Decision{Outcome: Drop, Reason: ReasonUnknownGroupPolicy}
	}

	if gate.ShouldBlock {
		return Decision{Outcome: Drop, Reason: ReasonUnauthorizedCommand}
	}
	return Decision{Outcome: Admit, CommandAuthorized: gate.CommandAuthorized}
}

// CheckMention applies the group mention gate. A group message that
// requires a mention passes only when it mentions the agent or carries
// an authorized control command. Direct messages always pass.
func CheckMention(direct, requireMention, wasMentioned, hasControlCommand, commandAuthorized bool) bool {
	if direct || !requireMention || wasMentioned {
		return true
	}
	return hasControlCommand && commandAuthorized
}
