// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mention detects whether a message addresses the agent.
//
// Patterns are case-insensitive regular expressions. The placeholder
// {agent} is replaced by the quoted agent id, so one configured list
// can serve several agents:
//
//	patterns: ["@mybot\\b", "^{agent}[,:]"]
package mention

import (
	"fmt"
	"regexp"
	"strings"
)

// AgentPlaceholder is substituted with the agent id before compiling.
const AgentPlaceholder = "{agent}"

// Matcher holds compiled mention patterns for one agent.
type Matcher struct {
	patterns []*regexp.Regexp
}

// Compile builds a Matcher for agentID.
func Compile(patterns []string, agentID string) (*Matcher, error) {
	matcher := &Matcher{}
	for index, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		pattern = strings.ReplaceAll(pattern, AgentPlaceholder, regexp.QuoteMeta(agentID))
		compiled, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("mention pattern %d: %w", index, err)
		}
		matcher.patterns = append(matcher.patterns, compiled)
	}
	return matcher, nil
}

// Matches reports whether text matches any pattern. A Matcher with no
// patterns matches nothing.
func (m *Matcher) Matches(text string) bool {
	for _, pattern := range m.patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Empty reports whether the Matcher has no patterns.
func (m *Matcher) Empty() bool { return len(m.patterns) == 0 }
