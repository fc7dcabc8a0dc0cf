// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import "sync"

// Registry maps account ids to the live daemon client for each
// account. At most one client is reachable per account. Safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register makes client reachable for accountID. A client previously
// registered for the account becomes unreachable but is not closed.
func (r *Registry) Register(accountID string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[accountID] = client
}

// Lookup returns the client registered for accountID.
func (r *Registry) Lookup(accountID string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[accountID]
	return client, ok
}

// Unregister removes client from accountID, but only if it is still
// the registered one. A supervisor that exits after being replaced
// does not evict its successor.
func (r *Registry) Unregister(accountID string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[accountID] == client {
		delete(r.clients, accountID)
	}
}
