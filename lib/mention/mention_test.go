// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mention

import "testing"

func TestMatches(t *testing.T) {
	t.Parallel()
	matcher, err := Compile([]string{`@helperbot\b`, `^{agent}[,:]`, "  "}, "ops.bot")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	tests := []struct {
		text string
		want bool
	}{
		{"hey @HelperBot can you look", true},
		{"@helperbotx is someone else", false},
		{"ops.bot: deploy please", true},
		{"opsxbot: deploy please", false},
		{"nothing to see", false},
	}
	for _, test := range tests {
		if got := matcher.Matches(test.text); got != test.want {
			t.Errorf("Matches(%q) = %v, want %v", test.text, got, test.want)
		}
	}
}

func TestEmptyMatcher(t *testing.T) {
	t.Parallel()
	matcher, err := Compile(nil, "main")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !matcher.Empty() || matcher.Matches("anything") {
		t.Error("empty matcher should match nothing")
	}
}

func TestCompileRejectsBadPattern(t *testing.T) {
	t.Parallel()
	if _, err := Compile([]string{"(unclosed"}, "main"); err == nil {
		t.Error("Compile accepted an invalid pattern")
	}
}
