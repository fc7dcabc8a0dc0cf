// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/telecli/lib/clock"
	"github.com/bureau-foundation/telecli/lib/codec"
	"github.com/bureau-foundation/telecli/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_key TEXT PRIMARY KEY,
	updated_at  INTEGER NOT NULL,
	record      BLOB NOT NULL
);
`

// Route is where a session's next reply would be delivered.
type Route struct {
	Channel   string `json:"channel" cbor:"channel"`
	To        string `json:"to" cbor:"to"`
	AccountID string `json:"account_id" cbor:"account_id"`
}

// Record is the stored metadata for one session.
type Record struct {
	SessionKey        string `json:"session_key" cbor:"session_key"`
	AccountID         string `json:"account_id,omitempty" cbor:"account_id,omitempty"`
	Channel           string `json:"channel,omitempty" cbor:"channel,omitempty"`
	ChatType          string `json:"chat_type,omitempty" cbor:"chat_type,omitempty"`
	ConversationLabel string `json:"conversation_label,omitempty" cbor:"conversation_label,omitempty"`
	From              string `json:"from,omitempty" cbor:"from,omitempty"`
	To                string `json:"to,omitempty" cbor:"to,omitempty"`
	LastMessageSid    string `json:"last_message_sid,omitempty" cbor:"last_message_sid,omitempty"`
	MessageCount      int64  `json:"message_count" cbor:"message_count"`

	// Unix milliseconds.
	CreatedAt     int64 `json:"created_at" cbor:"created_at"`
	UpdatedAt     int64 `json:"updated_at" cbor:"updated_at"`
	LastInboundAt int64 `json:"last_inbound_at,omitempty" cbor:"last_inbound_at,omitempty"`

	LastRoute *Route `json:"last_route,omitempty" cbor:"last_route,omitempty"`
}

// Update is one inbound message's contribution to the store.
type Update struct {
	SessionKey        string
	AccountID         string
	Channel           string
	ChatType          string
	ConversationLabel string
	From              string
	To                string
	MessageSid        string

	// At is the message timestamp.
	At time.Time

	// LastRouteKey and LastRoute, when both set, replace the route on
	// the record named by LastRouteKey. That may be a different
	// session than SessionKey: an isolated direct session still moves
	// the agent's main route.
	LastRouteKey string
	LastRoute    *Route
}

// Config holds the parameters for Open.
type Config struct {
	Path   string
	Clock  clock.Clock
	Logger *slog.Logger
}

// Store is the SQLite-backed session store. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open opens or creates the store at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Schema: schema,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return &Store{pool: pool, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// RecordInbound folds update into the session's record and, when
// requested, moves the last route. Both writes share one transaction.
func (s *Store) RecordInbound(ctx context.Context, update Update) error {
	update.SessionKey = strings.TrimSpace(update.SessionKey)
	if update.SessionKey == "" {
		return fmt.Errorf("session store: empty session key")
	}
	now := s.clock.Now().UnixMilli()

	err := s.pool.With(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer endTransaction(&err)

		record, _, err := load(conn, update.SessionKey)
		if err != nil {
			return err
		}
		applyUpdate(&record, update, now)
		if err := save(conn, record); err != nil {
			return err
		}

		routeKey := strings.TrimSpace(update.LastRouteKey)
		if routeKey == "" || update.LastRoute == nil {
			return nil
		}
		target := record
		if routeKey != update.SessionKey {
			target, _, err = load(conn, routeKey)
			if err != nil {
				return err
			}
			if target.SessionKey == "" {
				target.SessionKey = routeKey
				target.CreatedAt = now
			}
		}
		route := *update.LastRoute
		target.LastRoute = &route
		target.UpdatedAt = now
		return save(conn, target)
	})
	if err != nil {
		return fmt.Errorf("session store: recording %s: %w", update.SessionKey, err)
	}
	return nil
}

func applyUpdate(record *Record, update Update, now int64) {
	if record.SessionKey == "" {
		record.SessionKey = update.SessionKey
		record.CreatedAt = now
	}
	record.AccountID = update.AccountID
	record.Channel = update.Channel
	record.ChatType = update.ChatType
	record.ConversationLabel = update.ConversationLabel
	record.From = update.From
	record.To = update.To
	record.LastMessageSid = update.MessageSid
	record.MessageCount++
	record.UpdatedAt = now
	if !update.At.IsZero() {
		record.LastInboundAt = update.At.UnixMilli()
	}
}

// Get returns the record for sessionKey. The boolean is false when no
// record exists.
func (s *Store) Get(ctx context.Context, sessionKey string) (Record, bool, error) {
	var (
		record Record
		found  bool
	)
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		var err error
		record, found, err = load(conn, sessionKey)
		return err
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("session store: reading %s: %w", sessionKey, err)
	}
	return record, found, nil
}

// List returns every record, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT record FROM sessions ORDER BY updated_at DESC, session_key",
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					record, err := decode(stmt)
					if err != nil {
						return err
					}
					records = append(records, record)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("session store: listing: %w", err)
	}
	return records, nil
}

func load(conn *sqlite.Conn, sessionKey string) (Record, bool, error) {
	var (
		record Record
		found  bool
	)
	err := sqlitex.Execute(conn, "SELECT record FROM sessions WHERE session_key = ?",
		&sqlitex.ExecOptions{
			Args: []any{sessionKey},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				decoded, err := decode(stmt)
				if err != nil {
					return err
				}
				record, found = decoded, true
				return nil
			},
		})
	return record, found, err
}

func decode(stmt *sqlite.Stmt) (Record, error) {
	data := make([]byte, stmt.ColumnLen(0))
	stmt.ColumnBytes(0, data)
	var record Record
	if err := codec.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decoding session record: %w", err)
	}
	return record, nil
}

func save(conn *sqlite.Conn, record Record) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}
	return sqlitex.Execute(conn,
		"INSERT OR REPLACE INTO sessions (session_key, updated_at, record) VALUES (?, ?, ?)",
		&sqlitex.ExecOptions{Args: []any{record.SessionKey, record.UpdatedAt, data}})
}
