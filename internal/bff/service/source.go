package service

import (
	"context"
	"errors"
	"sync"

	"github.com/envention/union/internal/session"
)

var errNoAccessToken = errors.New("session has no access token")

// SessionSource hands out the access token of one browser session and
// refreshes it on demand. It backs the API interceptor for a single proxied
// request and remembers whether a refresh happened so the new cookie can be
// sent back.
type SessionSource struct {
	svc *AuthService

	mu        sync.Mutex
	token     string
	data      session.Data
	refreshed *Result
	err       error
}

// Source binds a SessionSource to an already-read session.
func (s *AuthService) Source(sessionToken string, data session.Data) *SessionSource {
	return &SessionSource{svc: s, token: sessionToken, data: data}
}

// Token returns the session's current access token.
func (src *SessionSource) Token(context.Context) (string, error) {
	src.mu.Lock()
	defer src.mu.Unlock()

	if src.data.AccessToken == "" {
		return "", errNoAccessToken
	}
	return src.data.AccessToken, nil
}

// Refresh refreshes the session and returns the new access token.
func (src *SessionSource) Refresh(ctx context.Context) (string, error) {
	src.mu.Lock()
	token := src.token
	src.mu.Unlock()

	res, err := src.svc.Refresh(ctx, token)

	src.mu.Lock()
	defer src.mu.Unlock()
	if err != nil {
		src.err = err
		return "", err
	}
	src.token = res.Token
	src.data = res.Data
	src.refreshed = res
	src.err = nil
	return res.Data.AccessToken, nil
}

// Refreshed returns the new session if Refresh succeeded.
func (src *SessionSource) Refreshed() *Result {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.refreshed
}

// Err returns the last refresh error.
func (src *SessionSource) Err() error {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.err
}
