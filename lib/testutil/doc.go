// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the channel-wait helpers shared by tests that
// block on goroutines: daemon readers, the inbound worker, RPC callers.
// They are the only wall-clock timeouts in the test suite and fail the
// test with t.Fatalf instead of returning errors.
package testutil
