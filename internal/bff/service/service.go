package service

import (
	"context"
	"fmt"
	"time"

	"github.com/envention/union/internal/session"
	"github.com/envention/union/pkg/jwtx"
	"github.com/envention/union/pkg/keycloak"
	"golang.org/x/sync/singleflight"
)

// IdentityProvider is the part of keycloak.Client the service depends on.
type IdentityProvider interface {
	AuthenticateUser(ctx context.Context, username, password string) (*keycloak.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*keycloak.TokenResponse, error)
	ValidateToken(ctx context.Context, accessToken string) (*jwtx.Claims, error)
	LogoutUser(ctx context.Context, refreshToken string)
}

// Observer receives auth outcomes, typically for metrics.
type Observer interface {
	ObserveLogin(outcome string)
	ObserveRefresh(outcome string)
	ObserveLogout()
}

type nopObserver struct{}

func (nopObserver) ObserveLogin(string)   {}
func (nopObserver) ObserveRefresh(string) {}
func (nopObserver) ObserveLogout()        {}

// Result is a freshly signed session and the Set-Cookie header carrying it.
type Result struct {
	Data   session.Data
	Token  string
	Cookie string
}

// AuthService runs the session lifecycle: login, read, refresh, logout.
// It keeps no per-session state; everything lives in the signed cookie.
type AuthService struct {
	IdP     IdentityProvider
	Codec   *session.Codec
	Cookies *session.CookieTransport

	// RefreshWindow is how close to expiry EnsureFresh starts refreshing.
	// Defaults to session.DefaultRefreshWindow.
	RefreshWindow time.Duration

	Observer Observer

	// Now defaults to time.Now.
	Now func() time.Time

	refreshes singleflight.Group
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) window() time.Duration {
	if s.RefreshWindow > 0 {
		return s.RefreshWindow
	}
	return session.DefaultRefreshWindow
}

func (s *AuthService) observer() Observer {
	if s.Observer != nil {
		return s.Observer
	}
	return nopObserver{}
}

// issue validates a token response and folds it into a signed session.
func (s *AuthService) issue(ctx context.Context, tokens *keycloak.TokenResponse) (*Result, error) {
	claims, err := s.IdP.ValidateToken(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	user := keycloak.ToSessionUser(claims)
	data := session.NewData(
		session.User(user),
		tokens.AccessToken,
		tokens.RefreshToken,
		time.Duration(tokens.ExpiresIn)*time.Second,
		s.now(),
	)

	token, err := s.Codec.Sign(data)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	return &Result{
		Data:   data,
		Token:  token,
		Cookie: s.Cookies.BuildSetCookie(token),
	}, nil
}
