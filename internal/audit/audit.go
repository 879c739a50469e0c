// Package audit keeps a local security audit trail. Events are logged as
// structured zerolog records and persisted to the session store so the CLI
// can list them offline.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/journeyapp/journey-client-go/internal/store"
)

type EventType string

const (
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailure    EventType = "login_failure"
	EventRegisterSuccess EventType = "register_success"
	EventRegisterFailure EventType = "register_failure"
	EventLogout          EventType = "logout"
	EventRestoreExpired  EventType = "restore_expired"
	EventVoiceSet        EventType = "voice_set"
	EventVoiceSetFailure EventType = "voice_set_failure"
)

type Event struct {
	Type    EventType
	Email   string
	Detail  string
	Details map[string]interface{}
}

// Trail records events to the log and, when a store is attached, durably.
type Trail struct {
	store store.Store
}

func NewTrail(s store.Store) *Trail {
	return &Trail{store: s}
}

func (t *Trail) Record(ctx context.Context, event Event) {
	logEvent(event)

	if t == nil || t.store == nil {
		return
	}
	err := t.store.AppendAudit(ctx, store.AuditRecord{
		ID:        uuid.NewString(),
		EventType: string(event.Type),
		Detail:    event.Detail,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		// The trail is advisory; a persistence failure must not break the flow.
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to persist audit event")
	}
}

func logEvent(event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.Email != "" {
		logger = logger.With().Str("email", event.Email).Logger()
	}
	if event.Detail != "" {
		logger = logger.With().Str("detail", event.Detail).Logger()
	}

	entry := logger.Info()
	for k, v := range event.Details {
		entry = addField(entry, k, v)
	}
	entry.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
