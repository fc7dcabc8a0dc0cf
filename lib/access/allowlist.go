// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package access

import "strings"

// Wildcard in an allow list admits every sender.
const Wildcard = "*"

var channelPrefixes = []string{"telecli:", "tele:", "tg:"}

// NormalizeAllowEntry canonicalizes one allow-list or ignore-list
// entry. The result is stable under repeated application.
func NormalizeAllowEntry(raw string) string {
	entry := strings.TrimSpace(raw)
	for {
		before := entry
		entry = trimPrefixFold(entry, channelPrefixes...)
		entry = trimPrefixFold(entry, "user:")
		entry = strings.TrimSpace(strings.TrimPrefix(entry, "@"))
		if entry == before {
			break
		}
	}
	return strings.ToLower(entry)
}

func trimPrefixFold(value string, prefixes ...string) string {
	for _, prefix := range prefixes {
		if len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return strings.TrimSpace(value[len(prefix):])
		}
	}
	return value
}

// NormalizeAllowList normalizes every entry, drops empties, and removes
// duplicates while keeping first-seen order.
func NormalizeAllowList(values []string) []string {
	return Union(values)
}

// Union normalizes and merges several lists into one deduplicated list.
func Union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, list := range lists {
		for _, value := range list {
			entry := NormalizeAllowEntry(value)
			if entry == "" {
				continue
			}
			if _, duplicate := seen[entry]; duplicate {
				continue
			}
			seen[entry] = struct{}{}
			merged = append(merged, entry)
		}
	}
	return merged
}

// Contains reports whether the normalized form of id appears in list.
// The list must already be normalized. Wildcards are not honored; use
// IsSenderAllowed for allow lists.
func Contains(list []string, id string) bool {
	entry := NormalizeAllowEntry(id)
	if entry == "" {
		return false
	}
	for _, candidate := range list {
		if candidate == entry {
			return true
		}
	}
	return false
}

// IsSenderAllowed reports whether senderID passes the normalized allow
// list. An empty list allows nobody.
func IsSenderAllowed(senderID string, allowFrom []string) bool {
	for _, entry := range allowFrom {
		if entry == Wildcard {
			return true
		}
	}
	return Contains(allowFrom, senderID)
}

// EffectiveAllowLists unions the configured lists with approvals from
// the pairing store. The group list falls back to the direct list when
// no group-specific entries are configured.
func EffectiveAllowLists(configAllowFrom, configGroupAllowFrom, storeAllowFrom []string) (direct, group []string) {
	direct = Union(configAllowFrom, storeAllowFrom)
	groupBase := NormalizeAllowList(configGroupAllowFrom)
	if len(groupBase) == 0 {
		groupBase = NormalizeAllowList(configAllowFrom)
	}
	group = Union(groupBase, storeAllowFrom)
	return direct, group
}
