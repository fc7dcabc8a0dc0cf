// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"slices"
	"testing"
)

func TestNormalizeAllowEntry(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  string
	}{
		{"12345", "12345"},
		{"  Alice ", "alice"},
		{"TELE:  @Foo ", "foo"},
		{"telecli:user:99", "99"},
		{"tg:@Bob", "bob"},
		{"USER:Carol", "carol"},
		{"*", "*"},
		{" tg:* ", "*"},
		{"", ""},
		{"   ", ""},
		{"tg:", ""},
		{"-100123", "-100123"},
	}
	for _, test := range tests {
		if got := NormalizeAllowEntry(test.input); got != test.want {
			t.Errorf("NormalizeAllowEntry(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestNormalizeAllowEntryIdempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"TELE:  @Foo ", "tg:tg:x", "user:@user:Y", "Telecli: TELE: 5", "@@double", "*", "tg:user:tele:z",
	}
	for _, input := range inputs {
		once := NormalizeAllowEntry(input)
		twice := NormalizeAllowEntry(once)
		if once != twice {
			t.Errorf("NormalizeAllowEntry not idempotent for %q: once %q, twice %q", input, once, twice)
		}
	}
	if NormalizeAllowEntry("TELE:  @Foo ") != NormalizeAllowEntry("foo") {
		t.Error(`NormalizeAllowEntry("TELE:  @Foo ") != NormalizeAllowEntry("foo")`)
	}
}

func TestNormalizeAllowListDeduplicates(t *testing.T) {
	t.Parallel()
	got := NormalizeAllowList([]string{"tg:Alice", "alice", "", "42", "user:42", "bob"})
	want := []string{"alice", "42", "bob"}
	if !slices.Equal(got, want) {
		t.Errorf("NormalizeAllowList = %v, want %v", got, want)
	}
}

func TestIsSenderAllowed(t *testing.T) {
	t.Parallel()
	list := NormalizeAllowList([]string{"tg:@Alice", "42"})
	if !IsSenderAllowed("ALICE", list) {
		t.Error("IsSenderAllowed(ALICE) = false, want true")
	}
	if !IsSenderAllowed("tele:42", list) {
		t.Error("IsSenderAllowed(tele:42) = false, want true")
	}
	if IsSenderAllowed("43", list) {
		t.Error("IsSenderAllowed(43) = true, want false")
	}
	if IsSenderAllowed("42", nil) {
		t.Error("empty allow list admitted a sender")
	}
	if !IsSenderAllowed("anyone", []string{Wildcard}) {
		t.Error("wildcard did not admit sender")
	}
}

func TestEffectiveAllowLists(t *testing.T) {
	t.Parallel()
	direct, group := EffectiveAllowLists([]string{"1", "2"}, nil, []string{"2", "3"})
	if !slices.Equal(direct, []string{"1", "2", "3"}) {
		t.Errorf("direct = %v, want [1 2 3]", direct)
	}
	if !slices.Equal(group, []string{"1", "2", "3"}) {
		t.Errorf("group without group config = %v, want fallback [1 2 3]", group)
	}

	_, group = EffectiveAllowLists([]string{"1"}, []string{"9"}, []string{"3"})
	if !slices.Equal(group, []string{"9", "3"}) {
		t.Errorf("group with group config = %v, want [9 3]", group)
	}
}
