// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pairing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/telecli/lib/clock"
	"github.com/bureau-foundation/telecli/lib/sqlitepool"
)

// RequestTTL is how long a pending code stays valid. A sender who
// writes again after expiry receives a fresh code.
const RequestTTL = time.Hour

// codeLength and codeAlphabet shape pairing codes. The alphabet omits
// characters that are easy to misread (0/O, 1/I).
const (
	codeLength   = 8
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// codeAttempts bounds how many fresh codes UpsertRequest draws when a
// generated code is already held by another sender.
const codeAttempts = 5

// ErrUnknownCode is returned by Approve for a code that matches no
// pending request.
var ErrUnknownCode = errors.New("pairing: unknown or expired code")

const schema = `
CREATE TABLE IF NOT EXISTS pairing_requests (
	sender_id  TEXT PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS allow_from (
	sender_id   TEXT PRIMARY KEY,
	approved_at INTEGER NOT NULL
);
`

// Config holds the parameters for Open.
type Config struct {
	// Path is the SQLite database file. The parent directory must
	// exist.
	Path string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Store is the SQLite-backed pairing store. Safe for concurrent use.
type Store struct {
	pool     *sqlitepool.Pool
	clock    clock.Clock
	logger   *slog.Logger
	generate func() (string, error)
}

// Request is a pending pairing request.
type Request struct {
	SenderID  string
	Name      string
	Code      string
	CreatedAt time.Time
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
		return nil, fmt.Errorf("pairing store: %w", err)
	}
	return &Store{pool: pool, clock: cfg.Clock, logger: cfg.Logger, generate: generateCode}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// ReadAllowFrom returns every approved sender id, oldest approval
// first.
func (s *Store) ReadAllowFrom(ctx context.Context) ([]string, error) {
	var senders []string
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT sender_id FROM allow_from ORDER BY approved_at, sender_id",
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					senders = append(senders, stmt.ColumnText(0))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("pairing store: reading allow list: %w", err)
	}
	return senders, nil
}

// UpsertRequest returns the pending code for senderID, creating a
// request when none exists or the existing one has expired. created
// reports whether a new code was issued, which is when the sender
// should be told about it.
func (s *Store) UpsertRequest(ctx context.Context, senderID, name string) (code string, created bool, err error) {
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return "", false, fmt.Errorf("pairing store: empty sender id")
	}
	now := s.clock.Now()
	err = s.pool.With(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer endTransaction(&err)

		var existing string
		var createdAt int64
		err = sqlitex.Execute(conn,
			"SELECT code, created_at FROM pairing_requests WHERE sender_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{senderID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					existing = stmt.ColumnText(0)
					createdAt = stmt.ColumnInt64(1)
					return nil
				},
			})
		if err != nil {
			return err
		}
		if existing != "" && now.Sub(time.UnixMilli(createdAt)) < RequestTTL {
			code = existing
			return nil
		}

		code, err = s.uniqueCode(conn, senderID)
		if err != nil {
			return err
		}
		created = true
		return sqlitex.Execute(conn,
			`INSERT INTO pairing_requests (sender_id, code, name, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(sender_id) DO UPDATE SET code = excluded.code, name = excluded.name, created_at = excluded.created_at`,
			&sqlitex.ExecOptions{Args: []any{senderID, code, name, now.UnixMilli()}})
	})
	if err != nil {
		return "", false, fmt.Errorf("pairing store: upserting request for %s: %w", senderID, err)
	}
	if created {
		s.logger.Info("pairing request created", "sender_id", senderID)
	}
	return code, created, nil
}

// Approve moves the request holding code onto the allow list and
// returns its sender id. Codes are matched case-insensitively.
func (s *Store) Approve(ctx context.Context, code string) (senderID string, err error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	now := s.clock.Now()
	err = s.pool.With(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer endTransaction(&err)

		var createdAt int64
		err = sqlitex.Execute(conn,
			"SELECT sender_id, created_at FROM pairing_requests WHERE code = ?",
			&sqlitex.ExecOptions{
				Args: []any{code},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					senderID = stmt.ColumnText(0)
					createdAt = stmt.ColumnInt64(1)
					return nil
				},
			})
		if err != nil {
			return err
		}
		if senderID == "" || now.Sub(time.UnixMilli(createdAt)) >= RequestTTL {
			senderID = ""
			return ErrUnknownCode
		}
		if err := sqlitex.Execute(conn,
			"INSERT OR REPLACE INTO allow_from (sender_id, approved_at) VALUES (?, ?)",
			&sqlitex.ExecOptions{Args: []any{senderID, now.UnixMilli()}}); err != nil {
			return err
		}
		return sqlitex.Execute(conn,
			"DELETE FROM pairing_requests WHERE sender_id = ?",
			&sqlitex.ExecOptions{Args: []any{senderID}})
	})
	if err != nil {
		if errors.Is(err, ErrUnknownCode) {
			return "", err
		}
		return "", fmt.Errorf("pairing store: approving %s: %w", code, err)
	}
	s.logger.Info("pairing request approved", "sender_id", senderID)
	return senderID, nil
}

// List returns the unexpired pending requests, oldest first.
func (s *Store) List(ctx context.Context) ([]Request, error) {
	cutoff := s.clock.Now().Add(-RequestTTL).UnixMilli()
	var requests []Request
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT sender_id, name, code, created_at FROM pairing_requests
			 WHERE created_at > ? ORDER BY created_at, sender_id`,
			&sqlitex.ExecOptions{
				Args: []any{cutoff},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					requests = append(requests, Request{
						SenderID:  stmt.ColumnText(0),
						Name:      stmt.ColumnText(1),
						Code:      stmt.ColumnText(2),
						CreatedAt: time.UnixMilli(stmt.ColumnInt64(3)),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("pairing store: listing requests: %w", err)
	}
	return requests, nil
}

// uniqueCode draws codes until one is not held by a sender other than
// senderID.
func (s *Store) uniqueCode(conn *sqlite.Conn, senderID string) (string, error) {
	for range codeAttempts {
		code, err := s.generate()
		if err != nil {
			return "", err
		}
		taken := false
		err = sqlitex.Execute(conn,
			"SELECT 1 FROM pairing_requests WHERE code = ? AND sender_id != ?",
			&sqlitex.ExecOptions{
				Args: []any{code, senderID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					taken = true
					return nil
				},
			})
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		s.logger.Debug("pairing code collision, drawing another", "sender_id", senderID)
	}
	return "", fmt.Errorf("no unused pairing code after %d attempts", codeAttempts)
}

func generateCode() (string, error) {
	random := make([]byte, codeLength)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("generating pairing code: %w", err)
	}
	code := make([]byte, codeLength)
	for index, value := range random {
		code[index] = codeAlphabet[int(value)%len(codeAlphabet)]
	}
	return string(code), nil
}
