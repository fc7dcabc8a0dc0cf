// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outbound

import (
	"strconv"
	"strings"
)

var targetPrefixes = []string{"telecli:", "tele:", "tg:"}

// NormalizeTarget strips a channel prefix and surrounding space from a
// delivery target, so "telecli:-42" and "-42" address the same chat.
func NormalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	lower := strings.ToLower(target)
	for _, prefix := range targetPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(target[len(prefix):])
		}
	}
	return target
}

// IsNumericTarget reports whether target is a signed peer id.
func IsNumericTarget(target string) bool {
	_, err := strconv.ParseInt(target, 10, 64)
	return err == nil
}

// LooksLikeID reports whether a raw target string is plausibly a
// telecli address: a signed integer or a channel-prefixed value.
func LooksLikeID(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	lower := strings.ToLower(raw)
	for _, prefix := range targetPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return IsNumericTarget(raw)
}
