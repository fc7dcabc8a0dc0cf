// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/telecli/lib/access"
)

// ChunkMode selects how long replies are split.
type ChunkMode string

const (
	// ChunkLength splits at the character limit.
	ChunkLength ChunkMode = "length"

	// ChunkNewline prefers line boundaries, falling back to the
	// character limit for lines that are too long on their own.
	ChunkNewline ChunkMode = "newline"
)

// EntryList is an allow or ignore list. Configuration may write
// entries as numbers ("12345") or strings ("tg:@alice"); both decode
// to their text. A single scalar is accepted as a one-entry list.
type EntryList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *EntryList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = EntryList{node.Value}
		return nil
	case yaml.SequenceNode:
		entries := make(EntryList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list entries must be strings or numbers", item.Line)
			}
			entries = append(entries, item.Value)
		}
		*l = entries
		return nil
	default:
		return fmt.Errorf("line %d: expected a list of ids", node.Line)
	}
}

// Settings is one layer of account configuration.
type Settings struct {
	Name    *string `yaml:"name"`
	Enabled *bool   `yaml:"enabled"`

	// TelePath is the tele-cli binary. Defaults to "tele".
	TelePath *string `yaml:"tele_path"`

	// Session is shared by the daemon and one-shot sends unless
	// DaemonSession or SendSession override it.
	Session       *string `yaml:"session"`
	DaemonSession *string `yaml:"daemon_session"`
	SendSession   *string `yaml:"send_session"`
	ConfigFile    *string `yaml:"config_file"`

	DMPolicy       *access.DMPolicy    `yaml:"dm_policy"`
	AllowFrom      EntryList           `yaml:"allow_from"`
	GroupPolicy    *access.GroupPolicy `yaml:"group_policy"`
	GroupAllowFrom EntryList           `yaml:"group_allow_from"`
	IgnorePeerIDs  EntryList           `yaml:"ignore_peer_ids"`

	TextChunkLimit *int       `yaml:"text_chunk_limit"`
	ChunkMode      *ChunkMode `yaml:"chunk_mode"`
	ResponsePrefix *string    `yaml:"response_prefix"`

	// BlockStreaming delivers each agent reply block as it is produced.
	// Unset means on; false buffers the blocks into one reply.
	BlockStreaming *bool `yaml:"block_streaming"`

	// SessionIsolate gives each direct sender their own session key.
	SessionIsolate *bool `yaml:"session_isolate"`

	// DropWhenSelfOnline discards messages the daemon flags as
	// arriving while this account is online on another client.
	// Defaults to true.
	DropWhenSelfOnline *bool `yaml:"drop_when_self_online"`
}

// ChannelConfig is the channels.telecli configuration section.
type ChannelConfig struct {
	Settings `yaml:",inline"`

	// Accounts holds named accounts, keyed by account id.
	Accounts map[string]Settings `yaml:"accounts"`
}

// Defaults is the channels.defaults section, shared across channel
// integrations.
type Defaults struct {
	GroupPolicy access.GroupPolicy `yaml:"group_policy"`
}

// Merge layers override over base: each field takes the override's
// value when set, otherwise the base's.
func Merge(override, base Settings) Settings {
	return Settings{
		Name:               pick(override.Name, base.Name),
		Enabled:            pick(override.Enabled, base.Enabled),
		TelePath:           pick(override.TelePath, base.TelePath),
		Session:            pick(override.Session, base.Session),
		DaemonSession:      pick(override.DaemonSession, base.DaemonSession),
		SendSession:        pick(override.SendSession, base.SendSession),
		ConfigFile:         pick(override.ConfigFile, base.ConfigFile),
		DMPolicy:           pick(override.DMPolicy, base.DMPolicy),
		AllowFrom:          pickList(override.AllowFrom, base.AllowFrom),
		GroupPolicy:        pick(override.GroupPolicy, base.GroupPolicy),
		GroupAllowFrom:     pickList(override.GroupAllowFrom, base.GroupAllowFrom),
		IgnorePeerIDs:      pickList(override.IgnorePeerIDs, base.IgnorePeerIDs),
		TextChunkLimit:     pick(override.TextChunkLimit, base.TextChunkLimit),
		ChunkMode:          pick(override.ChunkMode, base.ChunkMode),
		BlockStreaming:     pick(override.BlockStreaming, base.BlockStreaming),
		ResponsePrefix:     pick(override.ResponsePrefix, base.ResponsePrefix),
		SessionIsolate:     pick(override.SessionIsolate, base.SessionIsolate),
		DropWhenSelfOnline: pick(override.DropWhenSelfOnline, base.DropWhenSelfOnline),
	}
}

func pick[T any](override, base *T) *T {
	if override != nil {
		return override
	}
	return base
}

func pickList(override, base EntryList) EntryList {
	if override != nil {
		return override
	}
	return base
}

// Validate reports every invalid value in the layer.
func (s Settings) Validate() []error {
	var problems []error
	if s.DMPolicy != nil {
		if err := s.DMPolicy.Validate(); err != nil {
			problems = append(problems, err)
		}
	}
	if s.GroupPolicy != nil {
		if err := s.GroupPolicy.Validate(); err != nil {
			problems = append(problems, err)
		}
	}
	if s.TextChunkLimit != nil && *s.TextChunkLimit <= 0 {
		problems = append(problems, fmt.Errorf("text_chunk_limit must be positive, got %d", *s.TextChunkLimit))
	}
	if s.ChunkMode != nil {
		switch *s.ChunkMode {
		case ChunkLength, ChunkNewline:
		default:
			problems = append(problems, fmt.Errorf("invalid chunk_mode %q (want length or newline)", string(*s.ChunkMode)))
		}
	}
	return problems
}
