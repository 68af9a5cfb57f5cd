package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/envention/union/pkg/keycloak"
	"github.com/envention/union/pkg/slogx"
)

// Login exchanges credentials for a new session.
//
// Returns:
//   - KindCredentialsRequired when either value is blank; the IdP is not called
//   - KindInvalidCredentials when the IdP rejects the password grant
//   - KindLoginFailed for anything else (IdP unreachable, token rejected, signing)
func (s *AuthService) Login(ctx context.Context, username, password string) (*Result, error) {
	l := slogx.FromContext(ctx)

	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		s.observer().ObserveLogin(KindCredentialsRequired.String())
		return nil, newError(KindCredentialsRequired, nil)
	}

	tokens, err := s.IdP.AuthenticateUser(ctx, username, password)
	if err != nil {
		var authErr *keycloak.AuthenticationError
		if errors.As(err, &authErr) {
			l.Info("login rejected by idp", slog.String("username", username), slog.Any("error", authErr.Err))
			s.observer().ObserveLogin(KindInvalidCredentials.String())
			return nil, newError(KindInvalidCredentials, err)
		}
		l.Error("login failed", slog.String("username", username), slog.Any("error", err))
		s.observer().ObserveLogin(KindLoginFailed.String())
		return nil, newError(KindLoginFailed, err)
	}

	res, err := s.issue(ctx, tokens)
	if err != nil {
		l.Error("login failed after authentication", slog.String("username", username), slog.Any("error", err))
		s.observer().ObserveLogin(KindLoginFailed.String())
		return nil, newError(KindLoginFailed, err)
	}

	l.Info("login", slog.String("user_id", res.Data.User.ID), slog.Int64("expires_at", res.Data.ExpiresAt))
	s.observer().ObserveLogin("ok")
	return res, nil
}
