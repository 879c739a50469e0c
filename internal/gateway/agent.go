package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"

	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
	"github.com/journeyapp/journey-client-go/internal/model"
)

const voiceSampleFilename = "voice-sample.webm"

// SignedURLResult is the agent connection grant returned by the backend.
type SignedURLResult struct {
	SignedURL   string `json:"signed_url"`
	HasVoiceSet bool   `json:"has_voice_set"`
}

// VoiceResult is the backend's acknowledgement of a voice sample upload.
type VoiceResult struct {
	Message string `json:"message"`
	VoiceID string `json:"voice_id"`
}

// AgentSignedURL fetches a short-lived signed connection URL for the user's
// conversational agent, plus the voice-configured flag.
func (c *Client) AgentSignedURL(ctx context.Context, token *model.SessionToken) (*SignedURLResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/agent/signed_url", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	status, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, apperrors.Backend(errorDetail(status, body))
	}

	var result SignedURLResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.Backend("unexpected signed URL response").WithCause(err)
	}
	return &result, nil
}

// SetAgentVoice uploads a recorded voice sample as a multipart form with the
// field name the backend expects.
func (c *Client) SetAgentVoice(ctx context.Context, token *model.SessionToken, audio []byte) (*VoiceResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio_file", voiceSampleFilename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/agent/voice", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	status, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, apperrors.Backend(errorDetail(status, body))
	}

	var result VoiceResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.Backend("unexpected voice response").WithCause(err)
	}
	return &result, nil
}
