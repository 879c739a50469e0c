package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
	"github.com/journeyapp/journey-client-go/internal/model"
)

// RegisterResult is the outcome of a Google registration. The agent id, when
// the backend provisions one inline, is returned separately so the caller can
// merge it into the persisted token.
type RegisterResult struct {
	Token   model.SessionToken
	AgentID string
}

// registerResponse tolerates both response schemas the backend has shipped:
// flat token fields, or a token object nested under "token". The flat form
// wins when both are present; this is the only place the fallback is applied.
type registerResponse struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	SignedURL   string              `json:"signed_url"`
	HasVoiceSet bool                `json:"has_voice_set"`
	AgentID     string              `json:"agent_id"`
	Message     string              `json:"message"`
	Token       *model.SessionToken `json:"token"`
}

func (r registerResponse) sessionToken() model.SessionToken {
	if r.AccessToken != "" {
		return model.SessionToken{
			AccessToken: r.AccessToken,
			TokenType:   r.TokenType,
			SignedURL:   r.SignedURL,
			HasVoiceSet: r.HasVoiceSet,
		}
	}
	if r.Token != nil {
		return *r.Token
	}
	return model.SessionToken{}
}

// Register creates a user with explicit credentials.
func (c *Client) Register(ctx context.Context, username, password string) (*model.SessionToken, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	status, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusConflict {
		return nil, apperrors.Conflict("User already registered. Please use login instead.")
	}
	if !ok(status) {
		return nil, apperrors.Backend(errorDetail(status, body))
	}

	var payload registerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.Backend("unexpected registration response").WithCause(err)
	}
	token := payload.sessionToken()
	return &token, nil
}

// Token issues a session token for an existing user with explicit credentials.
func (c *Client) Token(ctx context.Context, username, password string) (*model.SessionToken, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := c.newFormRequest(ctx, "/auth/token", form)
	if err != nil {
		return nil, err
	}

	status, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, apperrors.Backend(errorDetail(status, body))
	}

	var token model.SessionToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, apperrors.Backend("unexpected token response").WithCause(err)
	}
	return &token, nil
}

// GoogleRegister registers a Google identity. The identity's email becomes the
// username and its subject id the password, matching the backend's credential
// scheme for federated users. A 400/409 means the identity already exists.
func (c *Client) GoogleRegister(ctx context.Context, claims *model.IdentityClaims) (*RegisterResult, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/register", map[string]string{
		"username": claims.Email,
		"password": claims.Subject,
	})
	if err != nil {
		return nil, err
	}

	status, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusConflict {
		return nil, apperrors.Conflict("User already registered. Please use login instead.")
	}
	if !ok(status) {
		return nil, apperrors.Backend(errorDetail(status, body))
	}

	var payload registerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.Backend("unexpected registration response").WithCause(err)
	}
	if payload.AgentID == "" {
		log.Warn().Str("email", claims.Email).Msg("no agent id in registration response")
	}
	return &RegisterResult{Token: payload.sessionToken(), AgentID: payload.AgentID}, nil
}

// GoogleLogin issues a session token for a registered Google identity.
// A 400/404 means the identity is unknown to the backend.
func (c *Client) GoogleLogin(ctx context.Context, claims *model.IdentityClaims) (*model.SessionToken, error) {
	form := url.Values{}
	form.Set("username", claims.Email)
	form.Set("password", claims.Subject)

	req, err := c.newFormRequest(ctx, "/auth/token", form)
	if err != nil {
		return nil, err
	}

	status, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusNotFound {
		return nil, apperrors.NotFound("User not found. Please register first.")
	}
	if !ok(status) {
		return nil, apperrors.Backend(errorDetail(status, body))
	}

	var token model.SessionToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, apperrors.Backend("unexpected login response").WithCause(err)
	}
	return &token, nil
}
