package oauth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/journeyapp/journey-client-go/internal/config"
	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
)

const closePage = `<!DOCTYPE html>
<html>
<head><title>Journey</title></head>
<body>
<p>Sign-in complete. You can close this window and return to the terminal.</p>
</body>
</html>
`

// CallbackServer receives a single authorization code on the loopback
// interface and then shuts down.
type CallbackServer struct {
	srv      *http.Server
	listener net.Listener
	state    string
	result   chan callbackResult
	once     sync.Once
}

type callbackResult struct {
	code string
	err  error
}

// StartCallback binds the loopback listener and begins serving. The caller
// must Shutdown the server after Wait returns.
func StartCallback(addr, state string) (*CallbackServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, apperrors.Internal(fmt.Sprintf("failed to bind callback listener on %s", addr)).WithCause(err)
	}

	s := &CallbackServer{
		listener: listener,
		state:    state,
		result:   make(chan callbackResult, 1),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/oauth/callback", s.handleCallback)

	s.srv = &http.Server{
		Handler:     r,
		ReadTimeout: config.CallbackReadTimeout,
	}

	go func() {
		if err := s.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.deliver(callbackResult{err: apperrors.Internal("callback server failed").WithCause(err)})
		}
	}()

	log.Debug().Str("addr", addr).Msg("oauth callback server listening")
	return s, nil
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Sign-in was not completed.", http.StatusBadRequest)
		s.deliver(callbackResult{err: apperrors.Backend(fmt.Sprintf("authorization denied: %s", errParam))})
		return
	}
	if q.Get("state") != s.state {
		// A mismatched state is either a stale tab or a forged request;
		// neither may complete the flow.
		http.Error(w, "Invalid state.", http.StatusForbidden)
		s.deliver(callbackResult{err: apperrors.Internal("oauth state mismatch")})
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code.", http.StatusBadRequest)
		s.deliver(callbackResult{err: apperrors.Backend("callback carried no authorization code")})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, closePage)
	s.deliver(callbackResult{code: code})
}

func (s *CallbackServer) deliver(res callbackResult) {
	s.once.Do(func() {
		s.result <- res
	})
}

// Addr reports the bound listener address.
func (s *CallbackServer) Addr() string {
	return s.listener.Addr().String()
}

// Wait blocks until a code arrives, the flow fails, or the wait times out.
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.CallbackWaitTimeout)
	defer cancel()

	select {
	case res := <-s.result:
		return res.code, res.err
	case <-ctx.Done():
		return "", apperrors.Internal("timed out waiting for the sign-in callback").WithCause(ctx.Err())
	}
}

// Shutdown stops the listener.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, config.CallbackShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
