package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
	"github.com/journeyapp/journey-client-go/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, HTTPClient: server.Client()})
	require.NoError(t, err)
	return client, server
}

func testClaims() *model.IdentityClaims {
	return &model.IdentityClaims{
		Subject: "108234567890",
		Email:   "ada@example.com",
		Name:    "Ada Lovelace",
	}
}

func TestNewClient(t *testing.T) {
	t.Run("rejects empty base URL", func(t *testing.T) {
		_, err := NewClient(Config{})
		assert.Error(t, err)
	})

	t.Run("rejects base URL without scheme", func(t *testing.T) {
		_, err := NewClient(Config{BaseURL: "localhost:8000"})
		assert.Error(t, err)
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		client, err := NewClient(Config{BaseURL: "http://localhost:8000/"})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000", client.baseURL)
	})
}

func TestGoogleRegister(t *testing.T) {
	t.Run("success returns token and agent id", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/auth/register", r.URL.Path)
			assert.Equal(t, "true", r.Header.Get("ngrok-skip-browser-warning"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ada@example.com", body["username"])
			assert.Equal(t, "108234567890", body["password"])

			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "backend-token",
				"token_type":   "bearer",
				"agent_id":     "agent_42",
				"signed_url":   "wss://api.elevenlabs.io/v1/convai/conversation?agent_id=agent_42",
			})
		})

		result, err := client.GoogleRegister(context.Background(), testClaims())
		require.NoError(t, err)
		assert.Equal(t, "backend-token", result.Token.AccessToken)
		assert.Equal(t, "agent_42", result.AgentID)
		assert.Equal(t, "wss://api.elevenlabs.io/v1/convai/conversation?agent_id=agent_42", result.Token.SignedURL)
	})

	t.Run("nested token object is adopted when flat fields absent", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"message": "User registered successfully",
				"token": map[string]any{
					"access_token": "nested-token",
					"token_type":   "bearer",
				},
			})
		})

		result, err := client.GoogleRegister(context.Background(), testClaims())
		require.NoError(t, err)
		assert.Equal(t, "nested-token", result.Token.AccessToken)
	})

	t.Run("409 yields CONFLICT", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"Username already registered"}`, http.StatusConflict)
		})

		_, err := client.GoogleRegister(context.Background(), testClaims())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))
	})

	t.Run("400 yields CONFLICT", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := client.GoogleRegister(context.Background(), testClaims())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))
	})

	t.Run("500 yields BACKEND with detail", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"agent provisioning failed"}`, http.StatusInternalServerError)
		})

		_, err := client.GoogleRegister(context.Background(), testClaims())
		require.Error(t, err)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeBackend, appErr.Code)
		assert.Equal(t, "agent provisioning failed", appErr.Message)
	})
}

func TestGoogleLogin(t *testing.T) {
	t.Run("success posts form credentials", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/auth/token", r.URL.Path)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

			require.NoError(t, r.ParseForm())
			assert.Equal(t, "ada@example.com", r.PostForm.Get("username"))
			assert.Equal(t, "108234567890", r.PostForm.Get("password"))

			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "login-token",
				"token_type":    "bearer",
				"signed_url":    "wss://api.elevenlabs.io/v1/convai/conversation/agent_7",
				"has_voice_set": true,
			})
		})

		token, err := client.GoogleLogin(context.Background(), testClaims())
		require.NoError(t, err)
		assert.Equal(t, "login-token", token.AccessToken)
		assert.True(t, token.HasVoiceSet)
		assert.Equal(t, "agent_7", token.ResolveAgentID())
	})

	t.Run("404 yields NOT_FOUND", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"Incorrect username or password"}`, http.StatusNotFound)
		})

		_, err := client.GoogleLogin(context.Background(), testClaims())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("400 yields NOT_FOUND", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := client.GoogleLogin(context.Background(), testClaims())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("non-JSON error body falls back to status text", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "<html>bad gateway</html>", http.StatusBadGateway)
		})

		_, err := client.GoogleLogin(context.Background(), testClaims())
		require.Error(t, err)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, "Bad Gateway", appErr.Message)
	})

	t.Run("transport failure yields NETWORK", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		client, err := NewClient(Config{BaseURL: server.URL})
		require.NoError(t, err)
		server.Close()

		_, err = client.GoogleLogin(context.Background(), testClaims())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNetwork))
	})
}

func TestRegisterAndToken(t *testing.T) {
	t.Run("Register posts JSON credentials", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "user1", body["username"])

			json.NewEncoder(w).Encode(map[string]any{"access_token": "t", "token_type": "bearer"})
		})

		token, err := client.Register(context.Background(), "user1", "pass1")
		require.NoError(t, err)
		assert.Equal(t, "t", token.AccessToken)
	})

	t.Run("Token posts form credentials", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "user1", r.PostForm.Get("username"))

			json.NewEncoder(w).Encode(map[string]any{"access_token": "t2", "token_type": "bearer"})
		})

		token, err := client.Token(context.Background(), "user1", "pass1")
		require.NoError(t, err)
		assert.Equal(t, "t2", token.AccessToken)
	})

	t.Run("Token non-2xx yields BACKEND", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.Token(context.Background(), "user1", "pass1")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBackend))
	})
}

func TestAgentSignedURL(t *testing.T) {
	token := &model.SessionToken{AccessToken: "backend-token"}

	t.Run("sends bearer header and decodes grant", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/agent/signed_url", r.URL.Path)
			assert.Equal(t, "Bearer backend-token", r.Header.Get("Authorization"))

			json.NewEncoder(w).Encode(map[string]any{
				"signed_url":    "wss://api.elevenlabs.io/v1/convai/conversation?agent_id=agent_9",
				"has_voice_set": true,
			})
		})

		result, err := client.AgentSignedURL(context.Background(), token)
		require.NoError(t, err)
		assert.True(t, result.HasVoiceSet)
		assert.Contains(t, result.SignedURL, "agent_9")
	})

	t.Run("non-2xx yields BACKEND", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"No agent found for user"}`, http.StatusNotFound)
		})

		_, err := client.AgentSignedURL(context.Background(), token)
		require.Error(t, err)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeBackend, appErr.Code)
		assert.Equal(t, "No agent found for user", appErr.Message)
	})
}

func TestSetAgentVoice(t *testing.T) {
	token := &model.SessionToken{AccessToken: "backend-token"}
	audio := []byte("webm-audio-bytes")

	t.Run("uploads multipart audio_file", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "/agent/voice", r.URL.Path)
			assert.Equal(t, "Bearer backend-token", r.Header.Get("Authorization"))

			file, header, err := r.FormFile("audio_file")
			require.NoError(t, err)
			defer file.Close()
			assert.Equal(t, "voice-sample.webm", header.Filename)

			data, err := io.ReadAll(file)
			require.NoError(t, err)
			assert.Equal(t, audio, data)

			json.NewEncoder(w).Encode(map[string]any{"message": "Voice set", "voice_id": "v_1"})
		})

		result, err := client.SetAgentVoice(context.Background(), token, audio)
		require.NoError(t, err)
		assert.Equal(t, "v_1", result.VoiceID)
	})

	t.Run("non-2xx yields BACKEND", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"voice creation failed"}`, http.StatusBadGateway)
		})

		_, err := client.SetAgentVoice(context.Background(), token, audio)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBackend))
	})
}
