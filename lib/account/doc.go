// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package account resolves a telecli account from the channel
// configuration.
//
// The channel section and each entry under its accounts map share one
// [Settings] shape. Every field is optional: a nil pointer or nil list
// means "not set here", so [Merge] can layer an account over the
// channel section field by field. The default account reads the
// channel section directly; a named account reads its own entry merged
// over the channel section.
//
// [Resolve] turns the merged settings into an [Account] with every
// default applied. It is pure and cheap, and callers resolve fresh for
// each operation instead of caching, so configuration reloads take
// effect without restarting anything.
package account
