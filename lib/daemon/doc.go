// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon supervises one tele-cli RPC daemon per account.
//
// [Start] spawns the daemon with stdio piped, registers an [rpc.Client]
// writing to its stdin, and reads its stdout line by line. Response
// packets resolve pending calls directly on the reading goroutine, so
// a reply never waits behind inbound work. Ready packets flip the
// handle's connected flag. Event and legacy packets go onto an
// unbounded single-consumer queue and reach the configured handler in
// arrival order, one at a time.
//
// Cancelling the start context sends SIGTERM. A daemon that exits 0,
// dies of SIGTERM, or exits after cancellation stopped cleanly; any
// other exit is an [*ExitError], which is also what every pending call
// fails with.
package daemon
