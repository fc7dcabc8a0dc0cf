// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessionstore records per-session metadata for inbound
// traffic: which account and peer a session last heard from, how many
// messages it has seen, and where replies for the session should be
// routed. Records are CBOR blobs in a single SQLite table keyed by
// session key.
package sessionstore
