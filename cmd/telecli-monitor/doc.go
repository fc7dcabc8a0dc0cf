// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Telecli-monitor connects Telegram to an agent through the tele-cli
// daemon.
//
// The run command supervises one tele-cli daemon per enabled account,
// applies the configured access policy to every inbound message, and
// hands admitted messages to the agent command. The remaining commands
// are operator tools: send delivers a one-off message, pairing lists
// and approves pending direct-message senders, and accounts shows how
// each account resolves.
//
// Configuration comes from the file named by --config or
// TELECLI_CONFIG.
package main
