// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pairing

import "strings"

// ApprovalMessage is sent to a sender once their code is approved.
const ApprovalMessage = "Your access has been approved."

// BuildPairingReply returns the message sent to an unrecognized direct
// sender. idLine identifies the sender in the channel's own terms, for
// example "Your Telegram user id: 12345".
func BuildPairingReply(idLine, code string) string {
	var builder strings.Builder
	builder.WriteString("Access to this assistant requires approval.\n\n")
	if idLine = strings.TrimSpace(idLine); idLine != "" {
		builder.WriteString(idLine)
		builder.WriteString("\n")
	}
	builder.WriteString("Pairing code: ")
	builder.WriteString(code)
	builder.WriteString("\n\nAsk the owner to run:\n  telecli-monitor pairing approve ")
	builder.WriteString(code)
	return builder.String()
}
