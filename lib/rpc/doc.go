// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpc implements the line-delimited JSON-RPC protocol spoken by
// the tele-cli daemon over its standard streams.
//
// Requests flow supervisor to daemon, one JSON object per line:
//
//	{"id":"1700000000000-1","method":"send_message","params":{...}}
//
// The daemon writes one packet per line in the other direction.
// [ParsePacket] classifies each line as ready, event, response, or a
// legacy message batch, and reports false for anything it cannot
// interpret so the caller can drop it without tearing down the stream.
//
// [Client] owns the pending-call table. Each [Client.Call] registers a
// pending entry with a fixed deadline and blocks until the daemon
// answers, the deadline passes, the context is cancelled, or the
// client is shut down with [Client.RejectAll]. Responses are delivered
// through [Client.Resolve], which the stdout reader calls inline for
// every response packet; they never wait behind inbound event
// processing.
//
// [Registry] maps account ids to the live client for that account, so
// outbound delivery can find the daemon without holding a reference to
// the supervisor. It is an ordinary value: tests create their own.
package rpc
