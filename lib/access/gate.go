// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package access

// Authorizer is one source of command authority: an allow list that is
// either configured (non-empty) or not, and whether the sender is on it.
type Authorizer struct {
	Configured bool
	Allowed    bool
}

// CommandGateInput describes a message for control-command gating.
type CommandGateInput struct {
	// UseAccessGroups restricts commands to senders admitted by at
	// least one configured authorizer. When false, every sender may
	// issue commands.
	UseAccessGroups bool

	Authorizers []Authorizer

	// AllowTextCommands reports whether this surface handles text
	// commands at all. When false the gate never blocks.
	AllowTextCommands bool

	HasControlCommand bool
}

// CommandGate is the outcome of ResolveCommandGate.
type CommandGate struct {
	CommandAuthorized bool
	ShouldBlock       bool
}

// ResolveCommandGate decides whether the sender may issue control
// commands and whether a message carrying one must be blocked.
func ResolveCommandGate(input CommandGateInput) CommandGate {
	authorized := true
	if input.UseAccessGroups {
		authorized = false
		for _, authorizer := range input.Authorizers {
			if authorizer.Configured && authorizer.Allowed {
				authorized = true
				break
			}
		}
	}
	return CommandGate{
		CommandAuthorized: authorized,
		ShouldBlock:       input.AllowTextCommands && input.HasControlCommand && !authorized,
	}
}
