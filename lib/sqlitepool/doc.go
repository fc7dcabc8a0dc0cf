// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite databases behind the pairing and
// session stores.
//
// Every connection gets the same pragmas (WAL journal, NORMAL sync, a
// five second busy timeout) and then runs the caller's schema script,
// so a store never observes a connection without its tables. Stores
// use [Pool.With] for a borrowed connection scoped to one function
// call.
package sqlitepool
