// Package oauth implements the Google sign-in code flow for a native client:
// a browser is pointed at the consent screen and the grant comes back on a
// loopback callback server.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/journeyapp/journey-client-go/internal/config"
	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
)

const (
	googleAuthEndpoint  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenEndpoint = "https://oauth2.googleapis.com/token"

	// The identity assertion only needs the basic profile.
	googleScopes = "openid email profile"
)

// Flow drives the authorization code exchange against Google.
type Flow struct {
	clientID      string
	clientSecret  string
	redirectURL   string
	httpClient    *http.Client
	authEndpoint  string
	tokenEndpoint string
}

func NewFlow(cfg *config.Config) *Flow {
	return &Flow{
		clientID:     cfg.GoogleClientID,
		clientSecret: cfg.GoogleClientSecret,
		redirectURL:  cfg.RedirectURL(),
		httpClient: &http.Client{
			Timeout: config.OAuthExchangeTimeout,
		},
		authEndpoint:  googleAuthEndpoint,
		tokenEndpoint: googleTokenEndpoint,
	}
}

// NewState returns an unguessable state parameter for a single flow.
func NewState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", apperrors.Internal("failed to generate state token").WithCause(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// AuthURL builds the consent screen URL for the given state.
func (f *Flow) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", f.clientID)
	q.Set("redirect_uri", f.redirectURL)
	q.Set("response_type", "code")
	q.Set("scope", googleScopes)
	q.Set("state", state)
	return f.authEndpoint + "?" + q.Encode()
}

type tokenResponse struct {
	IDToken string `json:"id_token"`
}

// Exchange trades the authorization code for tokens and returns the raw
// id_token, the signed identity assertion the backend expects.
func (f *Flow) Exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", f.clientID)
	form.Set("client_secret", f.clientSecret)
	form.Set("redirect_uri", f.redirectURL)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.Internal("failed to build token request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Network(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Network(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Backend(fmt.Sprintf("token exchange failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", apperrors.Decode(err)
	}
	if parsed.IDToken == "" {
		return "", apperrors.Backend("token exchange response carried no id_token")
	}
	return parsed.IDToken, nil
}
