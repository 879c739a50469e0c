package store

import (
	"context"
	"time"

	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
)

// AuditRecord is a locally persisted security audit event.
type AuditRecord struct {
	ID        string    `db:"id"`
	EventType string    `db:"event_type"`
	Detail    string    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *sqlStore) AppendAudit(ctx context.Context, record AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, event_type, detail, created_at)
		VALUES (?, ?, ?, ?)
	`, record.ID, record.EventType, record.Detail, record.CreatedAt)
	if err != nil {
		return apperrors.Store(err)
	}
	return nil
}

func (s *sqlStore) ListAudit(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []AuditRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, event_type, detail, created_at FROM audit_events
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, apperrors.Store(err)
	}
	return records, nil
}
