// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package access decides whether an inbound Telegram message may reach
// an agent session.
//
// [Evaluate] is a pure function over an [Input] describing the message
// (direct or group, peer and sender ids) and the account's policy
// (dm and group policies, effective allow lists, ignore list, command
// gate settings). Checks run in a fixed order and the first one that
// rejects wins:
//
//  1. ignore list (user dialogs only)
//  2. direct-message policy: disabled drops, open admits, pairing
//     admits allow-listed senders and asks the caller to run the
//     pairing flow for everyone else
//  3. group policy: disabled drops, allowlist requires a non-empty
//     effective group list containing the sender
//  4. control-command gate (groups): unauthorized commands are
//     dropped with a logged reason
//
// The mention gate ([CheckMention]) runs separately, after routing,
// because mention patterns depend on the routed agent.
//
// Allow-list entries are compared after [NormalizeAllowEntry], which
// strips channel prefixes, a user: marker, and a leading @, and lower
// cases the rest, so "TELE: @Foo" in configuration matches the sender
// "foo".
package access
