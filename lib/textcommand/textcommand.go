// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package textcommand recognizes control commands in message text.
//
// A control command is a message whose first token is a slash
// followed by a command name, optionally addressed to a bot
// ("/reset@mybot"). Only the leading token counts: "please /reset"
// is conversation, not a command.
package textcommand

import (
	"strings"
	"unicode"
)

// Detector recognizes a fixed set of command names.
type Detector struct {
	names map[string]struct{}
}

// New returns a Detector for names, compared case-insensitively. With
// no names, every well-formed slash command is recognized.
func New(names []string) *Detector {
	detector := &Detector{}
	for _, name := range names {
		name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
		if name == "" {
			continue
		}
		if detector.names == nil {
			detector.names = make(map[string]struct{})
		}
		detector.names[name] = struct{}{}
	}
	return detector
}

// Parse returns the command name at the start of text, lower-cased,
// or "" if text does not start with a slash command.
func Parse(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	token := text[1:]
	if end := strings.IndexFunc(token, unicode.IsSpace); end >= 0 {
		token = token[:end]
	}
	if at := strings.IndexByte(token, '@'); at >= 0 {
		token = token[:at]
	}
	if token == "" {
		return ""
	}
	for _, r := range token {
		if r != '_' && r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return ""
		}
	}
	return strings.ToLower(token)
}

// HasControlCommand reports whether text starts with a recognized
// command.
func (d *Detector) HasControlCommand(text string) bool {
	name := Parse(text)
	if name == "" {
		return false
	}
	if d.names == nil {
		return true
	}
	_, ok := d.names[name]
	return ok
}
