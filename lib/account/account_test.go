// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"errors"
	"slices"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/telecli/lib/access"
)

func ptr[T any](value T) *T { return &value }

func TestResolveDefaults(t *testing.T) {
	t.Parallel()
	resolved := Resolve(ChannelConfig{}, "")
	if resolved.ID != DefaultAccountID {
		t.Errorf("ID = %q, want %q", resolved.ID, DefaultAccountID)
	}
	if !resolved.Enabled || !resolved.Configured {
		t.Errorf("Enabled=%v Configured=%v, want both true", resolved.Enabled, resolved.Configured)
	}
	if resolved.TelePath != "tele" {
		t.Errorf("TelePath = %q, want tele", resolved.TelePath)
	}
	if resolved.DMPolicy != access.DMPairing {
		t.Errorf("DMPolicy = %q, want pairing", resolved.DMPolicy)
	}
	if resolved.TextChunkLimit != 4000 || resolved.ChunkMode != ChunkLength {
		t.Errorf("chunking = (%d, %q), want (4000, length)", resolved.TextChunkLimit, resolved.ChunkMode)
	}
	if !resolved.DropWhenSelfOnline {
		t.Error("DropWhenSelfOnline defaulted to false")
	}
	if !resolved.BlockStreaming {
		t.Error("BlockStreaming defaulted to false")
	}
	if resolved.SessionIsolate {
		t.Error("SessionIsolate defaulted to true")
	}
}

func TestResolveSessionsFallBackToShared(t *testing.T) {
	t.Parallel()
	channel := ChannelConfig{Settings: Settings{Session: ptr("main"), SendSession: ptr("sender")}}
	resolved := Resolve(channel, DefaultAccountID)
	if resolved.DaemonSession != "main" {
		t.Errorf("DaemonSession = %q, want main", resolved.DaemonSession)
	}
	if resolved.SendSession != "sender" {
		t.Errorf("SendSession = %q, want sender", resolved.SendSession)
	}
}

func TestResolveNamedAccountMergesOverChannel(t *testing.T) {
	t.Parallel()
	channel := ChannelConfig{
		Settings: Settings{
			TelePath:  ptr("/usr/bin/tele"),
			Session:   ptr("shared"),
			DMPolicy:  ptr(access.DMOpen),
			AllowFrom: EntryList{"1", "2"},
		},
		Accounts: map[string]Settings{
			"Work": {
				Name:      ptr("Work phone"),
				Session:   ptr("work"),
				AllowFrom: EntryList{},
			},
		},
	}
	resolved := Resolve(channel, " WORK ")
	if resolved.ID != "work" {
		t.Errorf("ID = %q, want work", resolved.ID)
	}
	if resolved.Name != "Work phone" {
		t.Errorf("Name = %q, want Work phone", resolved.Name)
	}
	if resolved.TelePath != "/usr/bin/tele" {
		t.Errorf("TelePath = %q, want channel value", resolved.TelePath)
	}
	if resolved.DaemonSession != "work" {
		t.Errorf("DaemonSession = %q, want work", resolved.DaemonSession)
	}
	if resolved.DMPolicy != access.DMOpen {
		t.Errorf("DMPolicy = %q, want inherited open", resolved.DMPolicy)
	}
	if len(resolved.AllowFrom) != 0 {
		t.Errorf("AllowFrom = %v, want explicit empty override", resolved.AllowFrom)
	}

	unknown := Resolve(channel, "missing")
	if unknown.Name != "" || unknown.Session != "shared" {
		t.Errorf("unknown account = %+v, want channel settings only", unknown)
	}
}

func TestResolveEnabledRequiresChannelAndAccount(t *testing.T) {
	t.Parallel()
	channel := ChannelConfig{
		Settings: Settings{Enabled: ptr(false)},
		Accounts: map[string]Settings{"work": {Enabled: ptr(true)}},
	}
	if Resolve(channel, "work").Enabled {
		t.Error("account enabled while channel disabled")
	}
	channel.Enabled = nil
	channel.Accounts["work"] = Settings{Enabled: ptr(false)}
	if Resolve(channel, "work").Enabled {
		t.Error("disabled account reported enabled")
	}
}

func TestResolveBlankTelePathIsUnconfigured(t *testing.T) {
	t.Parallel()
	resolved := Resolve(ChannelConfig{Settings: Settings{TelePath: ptr("   ")}}, "")
	if resolved.Configured {
		t.Fatal("blank tele_path reported configured")
	}
	err := resolved.RequireConfigured()
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("RequireConfigured = %v, want ErrNotConfigured", err)
	}
	if err.Error() != "telecli account default is not configured" {
		t.Errorf("error text = %q", err.Error())
	}
}

func TestEffectiveGroupPolicy(t *testing.T) {
	t.Parallel()
	resolved := Resolve(ChannelConfig{}, "")
	if got := resolved.EffectiveGroupPolicy(Defaults{}); got != access.GroupAllowlist {
		t.Errorf("no policy anywhere = %q, want allowlist", got)
	}
	if got := resolved.EffectiveGroupPolicy(Defaults{GroupPolicy: access.GroupOpen}); got != access.GroupOpen {
		t.Errorf("channel default = %q, want open", got)
	}
	resolved.GroupPolicy = access.GroupDisabled
	if got := resolved.EffectiveGroupPolicy(Defaults{GroupPolicy: access.GroupOpen}); got != access.GroupDisabled {
		t.Errorf("account policy = %q, want disabled", got)
	}
}

func TestListAccountIDs(t *testing.T) {
	t.Parallel()
	channel := ChannelConfig{Accounts: map[string]Settings{"Zeta": {}, "alpha": {}, "DEFAULT": {}, " zeta": {}}}
	got := ListAccountIDs(channel)
	want := []string{"default", "alpha", "zeta"}
	if !slices.Equal(got, want) {
		t.Errorf("ListAccountIDs = %v, want %v", got, want)
	}
}

func TestDaemonAndSendArgs(t *testing.T) {
	t.Parallel()
	resolved := Resolve(ChannelConfig{Settings: Settings{
		Session:       ptr("s"),
		DaemonSession: ptr("d"),
		ConfigFile:    ptr("/etc/tele.toml"),
	}}, "")
	wantDaemon := []string{"--session", "d", "--config", "/etc/tele.toml", "--format", "json", "daemon", "start", "--rpc-stdio"}
	if got := resolved.DaemonArgs(); !slices.Equal(got, wantDaemon) {
		t.Errorf("DaemonArgs = %v, want %v", got, wantDaemon)
	}
	wantSend := []string{"--session", "s", "--config", "/etc/tele.toml", "message", "send", "--entity", "peer_id", "-42", "hi"}
	if got := resolved.SendArgs("-42", "hi", true); !slices.Equal(got, wantSend) {
		t.Errorf("SendArgs = %v, want %v", got, wantSend)
	}

	bare := Resolve(ChannelConfig{}, "")
	if got := bare.DaemonArgs(); !slices.Equal(got, []string{"--format", "json", "daemon", "start", "--rpc-stdio"}) {
		t.Errorf("DaemonArgs without session = %v", got)
	}
	if got := bare.SendArgs("alice", "hi", false); !slices.Equal(got, []string{"message", "send", "alice", "hi"}) {
		t.Errorf("SendArgs for username = %v", got)
	}
}

func TestEntryListYAML(t *testing.T) {
	t.Parallel()
	var settings Settings
	document := `
allow_from: [12345, "tg:@alice", "user:bob"]
ignore_peer_ids: 777
group_allow_from: []
`
	if err := yaml.Unmarshal([]byte(document), &settings); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !slices.Equal(settings.AllowFrom, []string{"12345", "tg:@alice", "user:bob"}) {
		t.Errorf("AllowFrom = %v", settings.AllowFrom)
	}
	if !slices.Equal(settings.IgnorePeerIDs, []string{"777"}) {
		t.Errorf("IgnorePeerIDs = %v", settings.IgnorePeerIDs)
	}
	if settings.GroupAllowFrom == nil || len(settings.GroupAllowFrom) != 0 {
		t.Errorf("GroupAllowFrom = %#v, want empty non-nil", settings.GroupAllowFrom)
	}

	if err := yaml.Unmarshal([]byte("allow_from: {a: 1}"), &settings); err == nil {
		t.Error("mapping accepted as allow list")
	}
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()
	settings := Settings{
		DMPolicy:       ptr(access.DMPolicy("everyone")),
		GroupPolicy:    ptr(access.GroupPolicy("some")),
		TextChunkLimit: ptr(0),
		ChunkMode:      ptr(ChunkMode("words")),
	}
	if problems := settings.Validate(); len(problems) != 4 {
		t.Errorf("Validate found %d problems, want 4: %v", len(problems), problems)
	}
	if problems := (Settings{}).Validate(); len(problems) != 0 {
		t.Errorf("empty settings: %v", problems)
	}
}

func TestCollectWarnings(t *testing.T) {
	t.Parallel()
	resolved := Resolve(ChannelConfig{Settings: Settings{GroupPolicy: ptr(access.GroupOpen)}}, "")
	if warnings := resolved.CollectWarnings(Defaults{}); len(warnings) != 1 {
		t.Errorf("warnings = %v, want one group_policy warning", warnings)
	}
}
