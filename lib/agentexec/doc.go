// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentexec is the default reply dispatcher. It runs the
// configured agent command once per admitted message, writes the
// inbound envelope to the command's stdin as one JSON document, and
// turns each line the command prints into reply blocks.
//
// A stdout line that decodes as a JSON object with text, media_url, or
// media_urls fields is one block. Consecutive plain-text lines collect
// into a single block, flushed when a JSON block arrives or the command
// exits. With block streaming enabled each block is delivered as soon
// as it is complete; otherwise all blocks are merged and delivered once
// after the command exits.
package agentexec
