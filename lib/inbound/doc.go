// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package inbound turns tele-cli daemon events into agent envelopes.
//
// A [Pipeline] handles one message at a time. For each message it
// decodes the peer identifiers, applies the account's access policy,
// derives the session key, records session metadata, and hands the
// [Envelope] to a [Dispatcher]. The dispatcher's reply blocks are
// delivered back to the conversation through the outbound package.
//
// The pipeline itself does not serialize work. The daemon supervisor
// feeds it from a single-consumer queue, which is what makes message
// N+1 wait for message N.
package inbound
