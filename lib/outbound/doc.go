// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package outbound delivers agent replies to Telegram.
//
// A reply is text plus optional media references. [PartitionMedia]
// splits the references into local files (sent as attachments) and
// remote links (appended to the text as "Attachment: <url>" lines), and
// [ComposeText] joins the pieces.
//
// [Sender] prefers the account's live daemon, found through an
// [rpc.Registry], and calls send_message on it. When no daemon is
// registered for the account it runs the tele-cli binary once:
//
//	tele [--session S] [--config F] message send [--entity peer_id] <target> <text>
//
// bounded by a timeout. A non-zero exit becomes a [*DeliveryError]
// carrying whatever the binary printed. Every successful delivery is
// reported to the [Activity] recorder.
package outbound
