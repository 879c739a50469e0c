package model

import (
	"net/url"
	"strings"
)

// SessionToken is the backend-issued bearer credential. Later calls enrich it
// (agent id after registration, signed URL after voice setup); every mutation
// is persisted as a full replacement of the durable record.
type SessionToken struct {
	AccessToken   string `json:"access_token"`
	TokenType     string `json:"token_type,omitempty"`
	AgentID       string `json:"agent_id,omitempty"`
	VendorAgentID string `json:"elevenlabs_agent_id,omitempty"`
	HasVoiceSet   bool   `json:"has_voice_set,omitempty"`
	SignedURL     string `json:"signed_url,omitempty"`
}

// Valid reports whether the token carries a usable bearer credential.
func (t SessionToken) Valid() bool {
	return t.AccessToken != ""
}

// pathSegments that can never be an agent id in a signed conversation URL.
var genericURLSegments = map[string]bool{
	"conversation": true,
	"convai":       true,
	"v1":           true,
}

// ResolveAgentID returns the agent identifier for the token's conversational
// persona. The explicit vendor field wins, then the generic field, then the
// signed URL's agent_id query parameter, then the URL's final path segment
// when it is not a generic endpoint segment. This is the single fallback rule
// for all call sites.
func (t SessionToken) ResolveAgentID() string {
	if t.VendorAgentID != "" {
		return t.VendorAgentID
	}
	if t.AgentID != "" {
		return t.AgentID
	}
	return ExtractAgentIDFromURL(t.SignedURL)
}

// ExtractAgentIDFromURL parses an agent identifier out of a signed connection
// URL, e.g. "wss://api.elevenlabs.io/v1/convai/conversation?agent_id=agent_123"
// or ".../conversation/agent_123".
func ExtractAgentIDFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("agent_id"); id != "" {
		return id
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	last := parts[len(parts)-1]
	if last == "" || strings.Contains(last, ".") || genericURLSegments[last] {
		return ""
	}
	return last
}
