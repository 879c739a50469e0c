// Package auth owns the authentication lifecycle: session restoration,
// Google login and registration, logout, and voice submission. It is the
// single owner of the auth state; observers get immutable snapshots and
// bus notifications.
package auth

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/journeyapp/journey-client-go/internal/audit"
	"github.com/journeyapp/journey-client-go/internal/bus"
	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
	"github.com/journeyapp/journey-client-go/internal/gateway"
	"github.com/journeyapp/journey-client-go/internal/identity"
	"github.com/journeyapp/journey-client-go/internal/model"
	"github.com/journeyapp/journey-client-go/internal/store"
)

const voiceSetStatus = "Voice successfully set for your agent!"

// Gateway is the slice of the backend client the manager needs.
type Gateway interface {
	GoogleRegister(ctx context.Context, claims *model.IdentityClaims) (*gateway.RegisterResult, error)
	GoogleLogin(ctx context.Context, claims *model.IdentityClaims) (*model.SessionToken, error)
	AgentSignedURL(ctx context.Context, token *model.SessionToken) (*gateway.SignedURLResult, error)
	SetAgentVoice(ctx context.Context, token *model.SessionToken, audio []byte) (*gateway.VoiceResult, error)
}

type state struct {
	claims        *model.IdentityClaims
	token         *model.SessionToken
	authenticated bool
	loading       bool
	authErr       string
	voiceStatus   string
	voiceErr      string
	hasVoiceSet   bool
	signedURL     string
}

// Manager composes the gateway, session store, and broker.
type Manager struct {
	gw     Gateway
	store  store.Store
	broker *bus.Broker
	trail  *audit.Trail

	mu    sync.Mutex
	state state

	restoreOnce sync.Once
	now         func() time.Time
}

func NewManager(gw Gateway, st store.Store, broker *bus.Broker, trail *audit.Trail) *Manager {
	return &Manager{
		gw:     gw,
		store:  st,
		broker: broker,
		trail:  trail,
		state:  state{loading: true},
		now:    time.Now,
	}
}

// Snapshot returns an immutable copy of the current auth state.
func (m *Manager) Snapshot() model.AuthSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() model.AuthSnapshot {
	snap := model.AuthSnapshot{
		Authenticated: m.state.authenticated,
		Loading:       m.state.loading,
		AuthError:     m.state.authErr,
		VoiceStatus:   m.state.voiceStatus,
		VoiceError:    m.state.voiceErr,
		HasVoiceSet:   m.state.hasVoiceSet,
		SignedURL:     m.state.signedURL,
	}
	if m.state.claims != nil {
		claims := *m.state.claims
		snap.Claims = &claims
	}
	if m.state.token != nil {
		token := *m.state.token
		snap.Token = &token
	}
	return snap
}

// Subscribe registers an observer for auth status changes.
func (m *Manager) Subscribe() *bus.Subscriber {
	return m.broker.Subscribe()
}

// Unsubscribe releases an observer.
func (m *Manager) Unsubscribe(sub *bus.Subscriber) {
	m.broker.Unsubscribe(sub)
}

// Restore attempts to resume a persisted session. It runs at most once per
// process and leaves loading=false on every exit path.
func (m *Manager) Restore(ctx context.Context) {
	m.restoreOnce.Do(func() {
		m.restore(ctx)
	})
}

func (m *Manager) restore(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.state.loading = false
		m.mu.Unlock()
	}()

	raw, present, err := m.store.Get(ctx, store.SlotIdentityToken)
	if err != nil {
		log.Error().Err(err).Msg("failed to read identity token from store")
		return
	}
	if !present {
		return
	}

	claims, err := identity.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Msg("stored identity token is undecodable, clearing session")
		m.clearStore(ctx)
		return
	}
	if claims.Expired(m.now()) {
		log.Info().Str("email", claims.Email).Msg("stored identity token expired, clearing session")
		m.trail.Record(ctx, audit.Event{Type: audit.EventRestoreExpired, Email: claims.Email})
		m.clearStore(ctx)
		return
	}

	token, present, err := m.store.GetSessionToken(ctx)
	if err != nil || !present {
		// A crash between the two slot writes can leave the identity token
		// without a session token; partial state means logged out.
		if err != nil {
			log.Error().Err(err).Msg("failed to read session token from store")
		}
		m.clearStore(ctx)
		return
	}

	m.mu.Lock()
	m.state.claims = claims
	m.state.token = token
	m.state.authenticated = true
	m.mu.Unlock()

	// Connectivity to the voice subsystem is not required for a valid session.
	result, err := m.gw.AgentSignedURL(ctx, token)
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh agent signed URL during restore")
		return
	}

	m.mu.Lock()
	m.state.signedURL = result.SignedURL
	m.state.hasVoiceSet = true
	m.mu.Unlock()
}

// Register decodes the assertion and registers the identity with the backend.
// A CONFLICT keeps the persisted identity token so the caller can redirect to
// login; any other failure reverts to a clean unauthenticated state.
func (m *Manager) Register(ctx context.Context, rawAssertion string) error {
	claims, err := identity.Decode(rawAssertion)
	if err != nil {
		m.failAuth(ctx, "Failed to authenticate with Google. Please try again.", true)
		return err
	}

	if err := m.store.Put(ctx, store.SlotIdentityToken, rawAssertion); err != nil {
		m.failAuth(ctx, "Failed to persist session.", true)
		return err
	}
	m.mu.Lock()
	m.state.claims = claims
	m.mu.Unlock()

	result, err := m.gw.GoogleRegister(ctx, claims)
	if err != nil {
		m.trail.Record(ctx, audit.Event{Type: audit.EventRegisterFailure, Email: claims.Email, Detail: err.Error()})
		if apperrors.HasCode(err, apperrors.ErrCodeConflict) {
			// Identity token stays persisted; the caller is expected to
			// redirect the user to the login path.
			m.mu.Lock()
			m.state.authErr = err.Error()
			m.mu.Unlock()
			return err
		}
		m.failAuth(ctx, err.Error(), true)
		return err
	}

	token := result.Token
	if err := m.establishSession(ctx, &token); err != nil {
		m.failAuth(ctx, err.Error(), true)
		return err
	}
	m.trail.Record(ctx, audit.Event{Type: audit.EventRegisterSuccess, Email: claims.Email})

	m.enrichSignedURL(ctx, &token)
	if result.AgentID != "" {
		m.mu.Lock()
		m.state.token.AgentID = result.AgentID
		merged := *m.state.token
		m.mu.Unlock()
		if err := m.store.PutSessionToken(ctx, &merged); err != nil {
			log.Error().Err(err).Msg("failed to persist agent id on session token")
		}
	}
	return nil
}

// Login decodes the assertion and exchanges it for a backend session token.
// Every failure reverts to a clean unauthenticated state.
func (m *Manager) Login(ctx context.Context, rawAssertion string) error {
	claims, err := identity.Decode(rawAssertion)
	if err != nil {
		m.failAuth(ctx, "Failed to authenticate with Google. Please try again.", true)
		return err
	}

	if err := m.store.Put(ctx, store.SlotIdentityToken, rawAssertion); err != nil {
		m.failAuth(ctx, "Failed to persist session.", true)
		return err
	}
	m.mu.Lock()
	m.state.claims = claims
	m.mu.Unlock()

	token, err := m.gw.GoogleLogin(ctx, claims)
	if err != nil {
		m.trail.Record(ctx, audit.Event{Type: audit.EventLoginFailure, Email: claims.Email, Detail: err.Error()})
		m.failAuth(ctx, err.Error(), true)
		return err
	}

	if err := m.establishSession(ctx, token); err != nil {
		m.failAuth(ctx, err.Error(), true)
		return err
	}
	m.trail.Record(ctx, audit.Event{Type: audit.EventLoginSuccess, Email: claims.Email})

	m.mu.Lock()
	m.state.signedURL = token.SignedURL
	m.mu.Unlock()
	return nil
}

// establishSession persists the session token, then publishes the
// authenticated state. The durable write always completes before the
// transition is observable.
func (m *Manager) establishSession(ctx context.Context, token *model.SessionToken) error {
	if err := m.store.PutSessionToken(ctx, token); err != nil {
		return err
	}
	ts := strconv.FormatInt(m.now().UnixMilli(), 10)
	if err := m.store.Put(ctx, store.SlotAuthTimestamp, ts); err != nil {
		log.Error().Err(err).Msg("failed to persist auth timestamp")
	}

	m.mu.Lock()
	m.state.token = token
	m.state.authenticated = true
	m.state.authErr = ""
	// Voice is treated as configured as soon as any session exists; the
	// setup flow remains reachable but is never forced.
	m.state.hasVoiceSet = true
	m.mu.Unlock()

	m.publishAuthChanged(true)
	return nil
}

// Logout clears the auth state and the session store. Idempotent.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	loading := m.state.loading
	m.state = state{loading: loading}
	m.mu.Unlock()

	m.clearStore(ctx)
	m.trail.Record(ctx, audit.Event{Type: audit.EventLogout})
	m.publishAuthChanged(false)
}

// SetVoice uploads a recorded voice sample for the agent. Requires an
// authenticated session; failure never changes authentication status.
func (m *Manager) SetVoice(ctx context.Context, audio []byte) error {
	m.mu.Lock()
	if !m.state.authenticated || m.state.token == nil {
		m.mu.Unlock()
		return apperrors.Unauthenticated()
	}
	token := *m.state.token
	m.state.voiceStatus = ""
	m.state.voiceErr = ""
	m.mu.Unlock()

	if _, err := m.gw.SetAgentVoice(ctx, &token, audio); err != nil {
		m.trail.Record(ctx, audit.Event{Type: audit.EventVoiceSetFailure, Detail: err.Error()})
		m.mu.Lock()
		m.state.voiceErr = err.Error()
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.state.voiceStatus = voiceSetStatus
	m.state.hasVoiceSet = true
	m.state.token.HasVoiceSet = true
	merged := *m.state.token
	m.mu.Unlock()

	if err := m.store.PutSessionToken(ctx, &merged); err != nil {
		log.Error().Err(err).Msg("failed to persist voice flag on session token")
	}
	m.trail.Record(ctx, audit.Event{Type: audit.EventVoiceSet})

	m.enrichSignedURL(ctx, &merged)
	return nil
}

// enrichSignedURL refreshes the signed connection URL and persists it on the
// token. Non-fatal: a failure leaves the primary operation's outcome intact.
func (m *Manager) enrichSignedURL(ctx context.Context, token *model.SessionToken) {
	result, err := m.gw.AgentSignedURL(ctx, token)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch agent signed URL")
		return
	}

	m.mu.Lock()
	m.state.signedURL = result.SignedURL
	if m.state.token != nil {
		m.state.token.SignedURL = result.SignedURL
	}
	merged := m.state.token
	var copyToken model.SessionToken
	if merged != nil {
		copyToken = *merged
	}
	m.mu.Unlock()

	if merged != nil {
		if err := m.store.PutSessionToken(ctx, &copyToken); err != nil {
			log.Error().Err(err).Msg("failed to persist signed URL on session token")
		}
	}
}

// failAuth records the error and, when clear is set, reverts to a clean
// unauthenticated state.
func (m *Manager) failAuth(ctx context.Context, message string, clear bool) {
	if clear {
		m.clearStore(ctx)
	}
	m.mu.Lock()
	loading := m.state.loading
	m.state = state{loading: loading, authErr: message}
	m.mu.Unlock()
}

func (m *Manager) clearStore(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("failed to clear session store")
	}
}

func (m *Manager) publishAuthChanged(authenticated bool) {
	data, _ := json.Marshal(map[string]any{
		"isAuthenticated": authenticated,
		"timestamp":       m.now().UnixMilli(),
	})
	m.broker.Publish(bus.Event{Type: bus.EventAuthStatusChanged, Data: data})
}
