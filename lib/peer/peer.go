// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ChannelOffset separates the channel range from the chat range.
const ChannelOffset int64 = 1_000_000_000_000

// Kind classifies a normalized peer.
type Kind string

const (
	KindUser    Kind = "user"
	KindChat    Kind = "chat"
	KindChannel Kind = "channel"

	// KindUnknown is a bare identifier whose namespace the daemon did
	// not report.
	KindUnknown Kind = "unknown"
)

// Descriptor is the structured form of a peer reference. A zero field
// is absent.
type Descriptor struct {
	UserID    int64 `json:"user_id,omitempty"`
	ChatID    int64 `json:"chat_id,omitempty"`
	ChannelID int64 `json:"channel_id,omitempty"`
}

// IsZero reports whether no field is set.
func (d Descriptor) IsZero() bool {
	return d.UserID == 0 && d.ChatID == 0 && d.ChannelID == 0
}

// Identifier is a peer reference exactly as the daemon sent it: a bare
// number or string, or a Descriptor. The zero Identifier is absent.
type Identifier struct {
	// Bare holds the trimmed text of a bare number or string.
	Bare string

	// Descriptor is set when the daemon sent an object.
	Descriptor *Descriptor
}

// User returns a descriptor Identifier for a user id.
func User(id int64) Identifier { return Identifier{Descriptor: &Descriptor{UserID: id}} }

// Chat returns a descriptor Identifier for a basic group id.
func Chat(id int64) Identifier { return Identifier{Descriptor: &Descriptor{ChatID: id}} }

// Channel returns a descriptor Identifier for a channel or supergroup id.
func Channel(id int64) Identifier { return Identifier{Descriptor: &Descriptor{ChannelID: id}} }

// Bare returns an Identifier for an already-encoded or opaque id.
func Bare(id string) Identifier { return Identifier{Bare: strings.TrimSpace(id)} }

// UnmarshalJSON accepts a number, a string, an object, or null.
// Descriptor fields that are not JSON numbers are ignored, matching how
// an absent field is treated. Any other shape leaves the Identifier
// absent rather than failing the surrounding message.
func (i *Identifier) UnmarshalJSON(data []byte) error {
	*i = Identifier{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return nil
		}
		i.Bare = strings.TrimSpace(text)
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil
		}
		descriptor := Descriptor{
			UserID:    numericField(fields["user_id"]),
			ChatID:    numericField(fields["chat_id"]),
			ChannelID: numericField(fields["channel_id"]),
		}
		i.Descriptor = &descriptor
	default:
		var number json.Number
		if err := json.Unmarshal(data, &number); err != nil {
			return nil
		}
		i.Bare = number.String()
	}
	return nil
}

// MarshalJSON writes a Descriptor as an object and a bare id as a
// string.
func (i Identifier) MarshalJSON() ([]byte, error) {
	switch {
	case i.Descriptor != nil:
		return json.Marshal(i.Descriptor)
	case i.Bare != "":
		return json.Marshal(i.Bare)
	default:
		return []byte("null"), nil
	}
}

func numericField(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0
	}
	value, err := number.Int64()
	if err != nil {
		return 0
	}
	return value
}

// descriptor returns the non-empty descriptor, or nil.
func (i Identifier) descriptor() *Descriptor {
	if i.Descriptor == nil || i.Descriptor.IsZero() {
		return nil
	}
	return i.Descriptor
}

// Encode maps an Identifier to its signed-decimal id. Returns false
// when the Identifier is absent: no bare text and no descriptor field.
func Encode(id Identifier) (string, bool) {
	if id.Descriptor != nil {
		d := id.descriptor()
		switch {
		case d == nil:
			return "", false
		case d.UserID != 0:
			return strconv.FormatInt(d.UserID, 10), true
		case d.ChatID != 0:
			return strconv.FormatInt(-d.ChatID, 10), true
		default:
			return strconv.FormatInt(-(ChannelOffset + d.ChannelID), 10), true
		}
	}
	if id.Bare == "" {
		return "", false
	}
	return id.Bare, true
}

// IsDirect reports whether the Identifier names a user, which makes the
// conversation a direct message.
func IsDirect(id Identifier) bool {
	d := id.descriptor()
	return d != nil && d.UserID != 0
}

// Normalized is a peer mapped into the shared id space, with the
// namespace-local id of whichever kind it is.
type Normalized struct {
	ID        string
	Kind      Kind
	UserID    string
	ChatID    string
	ChannelID string
}

// Normalize encodes id and records its kind. Bare identifiers have
// KindUnknown.
func Normalize(id Identifier) (Normalized, bool) {
	encoded, ok := Encode(id)
	if !ok {
		return Normalized{}, false
	}
	d := id.descriptor()
	switch {
	case d == nil:
		return Normalized{ID: encoded, Kind: KindUnknown}, true
	case d.UserID != 0:
		return Normalized{ID: encoded, Kind: KindUser, UserID: strconv.FormatInt(d.UserID, 10)}, true
	case d.ChatID != 0:
		return Normalized{ID: encoded, Kind: KindChat, ChatID: strconv.FormatInt(d.ChatID, 10)}, true
	default:
		return Normalized{ID: encoded, Kind: KindChannel, ChannelID: strconv.FormatInt(d.ChannelID, 10)}, true
	}
}

// Decode inverts Encode for ids in the shared space. Positive ids are
// users, ids down to -10^12 are chats, and anything lower is a
// channel. Returns false for zero or non-numeric input.
func Decode(id string) (Normalized, bool) {
	value, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || value == 0 {
		return Normalized{}, false
	}
	encoded := strconv.FormatInt(value, 10)
	switch {
	case value > 0:
		return Normalized{ID: encoded, Kind: KindUser, UserID: encoded}, true
	case value >= -ChannelOffset:
		return Normalized{ID: encoded, Kind: KindChat, ChatID: strconv.FormatInt(-value, 10)}, true
	default:
		return Normalized{ID: encoded, Kind: KindChannel, ChannelID: strconv.FormatInt(-value-ChannelOffset, 10)}, true
	}
}

// Identifier returns the descriptor form of a decoded peer. Unknown
// peers come back as bare identifiers.
func (n Normalized) Identifier() Identifier {
	parse := func(s string) int64 {
		value, _ := strconv.ParseInt(s, 10, 64)
		return value
	}
	switch n.Kind {
	case KindUser:
		return User(parse(n.UserID))
	case KindChat:
		return Chat(parse(n.ChatID))
	case KindChannel:
		return Channel(parse(n.ChannelID))
	default:
		return Bare(n.ID)
	}
}
