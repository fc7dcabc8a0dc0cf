// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pairing persists the direct-message pairing flow: pending
// requests keyed by sender, each carrying a short one-time code, and
// the allow list of senders whose codes were approved.
//
// The inbound pipeline reads the approved list on every message and
// unions it with the configured allow_from list. Approval happens out
// of band, through the pairing approve subcommand.
package pairing
