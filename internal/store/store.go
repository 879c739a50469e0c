// Package store persists the client's session state in a single-file local
// database. Slots are independent records: writes are full replacements and
// there is no transaction spanning two slots. The restore path treats partial
// state as logged out.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
	"github.com/journeyapp/journey-client-go/internal/model"
)

// Durable slot names. The legacy authToken slot is still probed by sibling
// tooling as a logged-in indicator, so it is written alongside the session
// token and removed on Clear.
const (
	SlotIdentityToken = "googleToken"
	SlotSessionToken  = "backendToken"
	SlotAuthTimestamp = "auth_timestamp"
	SlotLegacyAuth    = "authToken"
)

const schema = `
CREATE TABLE IF NOT EXISTS slots (
	slot       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
	id         TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
`

// Store is the durable key/value session store.
type Store interface {
	Put(ctx context.Context, slot, value string) error
	Get(ctx context.Context, slot string) (string, bool, error)
	Clear(ctx context.Context) error
	PutSessionToken(ctx context.Context, token *model.SessionToken) error
	GetSessionToken(ctx context.Context) (*model.SessionToken, bool, error)
	AppendAudit(ctx context.Context, record AuditRecord) error
	ListAudit(ctx context.Context, limit int) ([]AuditRecord, error)
	Close() error
}

type sqlStore struct {
	db *sqlx.DB
}

// Open creates the database file (and its parent directory) if needed and
// applies the schema.
func Open(path string) (Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, apperrors.Store(fmt.Errorf("create store directory: %w", err))
		}
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, apperrors.Store(fmt.Errorf("open store: %w", err))
	}
	// The store is single-process; one connection avoids sqlite write contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, apperrors.Store(fmt.Errorf("configure store: %w", err))
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Store(fmt.Errorf("migrate store: %w", err))
	}

	return &sqlStore{db: db}, nil
}

func (s *sqlStore) Put(ctx context.Context, slot, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (slot, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, slot, value, time.Now().UTC())
	if err != nil {
		return apperrors.Store(err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, slot string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `
		SELECT value FROM slots WHERE slot = ?
	`, slot)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Store(err)
	}
	return value, true, nil
}

func (s *sqlStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM slots`)
	if err != nil {
		return apperrors.Store(err)
	}
	return nil
}

// PutSessionToken serializes the token and replaces the durable record, and
// refreshes the legacy logged-in marker.
func (s *sqlStore) PutSessionToken(ctx context.Context, token *model.SessionToken) error {
	encoded, err := json.Marshal(token)
	if err != nil {
		return apperrors.Store(err)
	}
	if err := s.Put(ctx, SlotSessionToken, string(encoded)); err != nil {
		return err
	}
	return s.Put(ctx, SlotLegacyAuth, token.AccessToken)
}

func (s *sqlStore) GetSessionToken(ctx context.Context) (*model.SessionToken, bool, error) {
	raw, present, err := s.Get(ctx, SlotSessionToken)
	if err != nil || !present {
		return nil, false, err
	}
	var token model.SessionToken
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, false, apperrors.Store(fmt.Errorf("corrupt session token record: %w", err))
	}
	return &token, true, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
