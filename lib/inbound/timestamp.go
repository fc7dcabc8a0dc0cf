// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inbound

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// millisecondThreshold separates Unix seconds from Unix milliseconds.
// 10^12 seconds is tens of thousands of years away; 10^12 milliseconds
// is September 2001.
const millisecondThreshold = 1_000_000_000_000

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp interprets a message date. Numbers below 10^12 are
// Unix seconds, larger numbers Unix milliseconds. Strings are parsed as
// calendar timestamps. Anything else, or anything unparseable, yields
// now.
func ParseTimestamp(raw json.RawMessage, now time.Time) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return now
	}
	if raw[0] == '"' {
		text := stringValue(raw)
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, text); err == nil {
				return parsed
			}
		}
		return now
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return now
	}
	if value < millisecondThreshold {
		value *= 1000
	}
	return time.UnixMilli(int64(value))
}
