// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package access

import "fmt"

// DMPolicy governs direct messages.
type DMPolicy string

const (
	DMOpen     DMPolicy = "open"
	DMPairing  DMPolicy = "pairing"
	DMDisabled DMPolicy = "disabled"
)

// DefaultDMPolicy applies when an account does not set one.
const DefaultDMPolicy = DMPairing

// Validate reports an error for values outside the enum. The empty
// string is valid and means "use the default".
func (p DMPolicy) Validate() error {
	switch p {
	case "", DMOpen, DMPairing, DMDisabled:
		return nil
	}
	return fmt.Errorf("invalid dm_policy %q (want open, pairing, or disabled)", string(p))
}

// GroupPolicy governs group and channel messages.
type GroupPolicy string

const (
	GroupOpen      GroupPolicy = "open"
	GroupAllowlist GroupPolicy = "allowlist"
	GroupDisabled  GroupPolicy = "disabled"
)

// DefaultGroupPolicy applies when neither the account nor the channel
// defaults set one.
const DefaultGroupPolicy = GroupAllowlist

// Validate reports an error for values outside the enum. The empty
// string is valid and means "use the default".
func (p GroupPolicy) Validate() error {
	switch p {
	case "", GroupOpen, GroupAllowlist, GroupDisabled:
		return nil
	}
	return fmt.Errorf("invalid group_policy %q (want open, allowlist, or disabled)", string(p))
}
