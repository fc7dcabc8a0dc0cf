// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package peer folds Telegram's three identifier namespaces into the
// single signed-decimal address space used for routing, allow-list
// matching, and delivery targets.
//
// The daemon reports peers either as a bare identifier or as a
// descriptor carrying one of user_id, chat_id, or channel_id. Each
// kind maps to a disjoint range:
//
//	user     user_id                 positive
//	chat     -chat_id                -1 .. -10^12
//	channel  -(10^12 + channel_id)   below -10^12
//
// Zero-valued and absent descriptor fields are equivalent, and a
// descriptor with no field set is no peer at all. When a descriptor
// carries more than one field, user outranks chat, which outranks
// channel.
package peer
