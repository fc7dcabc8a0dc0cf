// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint error handler for telecli
// binaries. It writes to stderr directly because a failure may happen
// before the structured logger exists.
package process
