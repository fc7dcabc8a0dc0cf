// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"io"
	"testing"
)

func TestRegistry(t *testing.T) {
	t.Parallel()
	registry := NewRegistry()
	first := NewClient(ClientConfig{Writer: io.Discard})
	second := NewClient(ClientConfig{Writer: io.Discard})

	if _, ok := registry.Lookup("default"); ok {
		t.Fatal("empty registry has a client")
	}
	registry.Register("default", first)
	registry.Register("default", second)
	if got, _ := registry.Lookup("default"); got != second {
		t.Fatal("later registration did not replace earlier one")
	}

	// A replaced client deregistering must not evict its successor.
	registry.Unregister("default", first)
	if got, _ := registry.Lookup("default"); got != second {
		t.Fatal("stale Unregister evicted the current client")
	}
	registry.Unregister("default", second)
	if _, ok := registry.Lookup("default"); ok {
		t.Fatal("Unregister left the client reachable")
	}
}

func TestRegistriesAreIsolated(t *testing.T) {
	t.Parallel()
	a, b := NewRegistry(), NewRegistry()
	a.Register("work", NewClient(ClientConfig{Writer: io.Discard}))
	if _, ok := b.Lookup("work"); ok {
		t.Fatal("registration leaked across registries")
	}
}
