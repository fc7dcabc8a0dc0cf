// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bureau-foundation/telecli/lib/access"
)

// DefaultAccountID names the account configured directly in the
// channel section.
const DefaultAccountID = "default"

const (
	DefaultTelePath       = "tele"
	DefaultTextChunkLimit = 4000
	DefaultChunkMode      = ChunkLength
)

// ErrNotConfigured is wrapped by RequireConfigured.
var ErrNotConfigured = errors.New("not configured")

// Account is a fully resolved account: every default applied, every
// session name filled in.
type Account struct {
	ID      string
	Name    string
	Enabled bool

	// Configured is true when TelePath is non-empty.
	Configured bool

	TelePath      string
	Session       string
	DaemonSession string
	SendSession   string
	ConfigFile    string

	// DMPolicy is never empty. GroupPolicy is empty when neither the
	// account nor the channel sets one, so the caller can fall back to
	// channels.defaults; see EffectiveGroupPolicy.
	DMPolicy    access.DMPolicy
	GroupPolicy access.GroupPolicy

	// Lists are as configured, not normalized.
	AllowFrom      []string
	GroupAllowFrom []string
	IgnorePeerIDs  []string

	TextChunkLimit     int
	ChunkMode          ChunkMode
	BlockStreaming     bool
	ResponsePrefix     string
	SessionIsolate     bool
	DropWhenSelfOnline bool
}

// NormalizeAccountID trims and lower-cases an account id. Blank ids
// name the default account.
func NormalizeAccountID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return DefaultAccountID
	}
	return id
}

// ListAccountIDs returns the default account followed by every named
// account, normalized and deduplicated, in sorted order.
func ListAccountIDs(channel ChannelConfig) []string {
	ids := []string{DefaultAccountID}
	var named []string
	for key := range channel.Accounts {
		id := NormalizeAccountID(key)
		if id != DefaultAccountID && !slices.Contains(named, id) {
			named = append(named, id)
		}
	}
	slices.Sort(named)
	return append(ids, named...)
}

// accountSettings finds the entry for a normalized id, tolerating keys
// written with different case or padding.
func accountSettings(channel ChannelConfig, id string) Settings {
	if settings, ok := channel.Accounts[id]; ok {
		return settings
	}
	for key, settings := range channel.Accounts {
		if NormalizeAccountID(key) == id {
			return settings
		}
	}
	return Settings{}
}

// Resolve resolves accountID against the channel configuration.
func Resolve(channel ChannelConfig, accountID string) Account {
	id := NormalizeAccountID(accountID)
	own := channel.Settings
	if id != DefaultAccountID {
		own = accountSettings(channel, id)
	}
	merged := Merge(own, channel.Settings)

	telePath := strings.TrimSpace(valueOr(merged.TelePath, DefaultTelePath))
	session := strings.TrimSpace(valueOr(merged.Session, ""))
	sessionOr := func(override *string) string {
		if value := strings.TrimSpace(valueOr(override, "")); value != "" {
			return value
		}
		return session
	}

	resolved := Account{
		ID:                 id,
		Name:               strings.TrimSpace(valueOr(own.Name, "")),
		Enabled:            valueOr(channel.Enabled, true) && valueOr(own.Enabled, true),
		Configured:         telePath != "",
		TelePath:           telePath,
		Session:            session,
		DaemonSession:      sessionOr(merged.DaemonSession),
		SendSession:        sessionOr(merged.SendSession),
		ConfigFile:         strings.TrimSpace(valueOr(merged.ConfigFile, "")),
		DMPolicy:           valueOr(merged.DMPolicy, access.DefaultDMPolicy),
		GroupPolicy:        valueOr(merged.GroupPolicy, ""),
		AllowFrom:          slices.Clone(merged.AllowFrom),
		GroupAllowFrom:     slices.Clone(merged.GroupAllowFrom),
		IgnorePeerIDs:      slices.Clone(merged.IgnorePeerIDs),
		TextChunkLimit:     valueOr(merged.TextChunkLimit, DefaultTextChunkLimit),
		ChunkMode:          valueOr(merged.ChunkMode, DefaultChunkMode),
		BlockStreaming:     valueOr(merged.BlockStreaming, true),
		ResponsePrefix:     valueOr(merged.ResponsePrefix, ""),
		SessionIsolate:     valueOr(merged.SessionIsolate, false),
		DropWhenSelfOnline: valueOr(merged.DropWhenSelfOnline, true),
	}
	if resolved.DMPolicy == "" {
		resolved.DMPolicy = access.DefaultDMPolicy
	}
	if resolved.TextChunkLimit <= 0 {
		resolved.TextChunkLimit = DefaultTextChunkLimit
	}
	return resolved
}

func valueOr[T any](pointer *T, fallback T) T {
	if pointer == nil {
		return fallback
	}
	return *pointer
}

// EffectiveGroupPolicy applies the channels.defaults fallback chain:
// the account's policy, then the shared default, then allowlist.
func (a Account) EffectiveGroupPolicy(defaults Defaults) access.GroupPolicy {
	if a.GroupPolicy != "" {
		return a.GroupPolicy
	}
	if defaults.GroupPolicy != "" {
		return defaults.GroupPolicy
	}
	return access.DefaultGroupPolicy
}

// RequireConfigured returns an error wrapping ErrNotConfigured when the
// account has no binary path.
func (a Account) RequireConfigured() error {
	if !a.Configured {
		return fmt.Errorf("telecli account %s is %w", a.ID, ErrNotConfigured)
	}
	return nil
}

// GlobalArgs returns the tele-cli flags that precede every subcommand:
// --session and --config, each only when non-empty.
func GlobalArgs(session, configFile string) []string {
	var args []string
	if session = strings.TrimSpace(session); session != "" {
		args = append(args, "--session", session)
	}
	if configFile = strings.TrimSpace(configFile); configFile != "" {
		args = append(args, "--config", configFile)
	}
	return args
}

// DaemonArgs returns the arguments (excluding the binary) that start
// the RPC daemon for this account.
func (a Account) DaemonArgs() []string {
	return append(GlobalArgs(a.DaemonSession, a.ConfigFile),
		"--format", "json", "daemon", "start", "--rpc-stdio")
}

// SendArgs returns the arguments (excluding the binary) for a one-shot
// send to target. Numeric targets are tagged as peer ids.
func (a Account) SendArgs(target, text string, numericTarget bool) []string {
	args := append(GlobalArgs(a.SendSession, a.ConfigFile), "message", "send")
	if numericTarget {
		args = append(args, "--entity", "peer_id")
	}
	return append(args, target, text)
}

// CollectWarnings reports risky but valid settings.
func (a Account) CollectWarnings(defaults Defaults) []string {
	var warnings []string
	if a.EffectiveGroupPolicy(defaults) == access.GroupOpen {
		warnings = append(warnings, fmt.Sprintf(
			"telecli account %s: group_policy=open lets any group member reach the agent; "+
				"set group_policy=allowlist and group_allow_from to restrict senders", a.ID))
	}
	if a.DMPolicy == access.DMOpen {
		warnings = append(warnings, fmt.Sprintf(
			"telecli account %s: dm_policy=open lets any Telegram user reach the agent", a.ID))
	}
	return warnings
}
