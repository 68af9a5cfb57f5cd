package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/envention/union/internal/session"
	"github.com/envention/union/pkg/slogx"
)

// ReadSession returns the live session behind sessionToken, or nil. It
// never fails: an absent token is an anonymous visitor, and a bad or expired
// one is logged and treated the same way. Expiry is routine and only logged
// at debug level.
func (s *AuthService) ReadSession(ctx context.Context, sessionToken string) *session.Data {
	if sessionToken == "" {
		return nil
	}

	data, err := s.Codec.VerifyStrict(sessionToken)
	if err != nil {
		log := slogx.FromContext(ctx)
		if errors.Is(err, session.ErrSessionExpired) {
			log.Debug("session expired", slog.Any("error", err))
		} else {
			log.Warn("invalid session token", slog.Any("error", err))
		}
		return nil
	}
	return &data
}

// SessionToken pulls the raw session token out of r's cookies.
func (s *AuthService) SessionToken(r *http.Request) string {
	token, _ := s.Cookies.Extract(r)
	return token
}

// StateOf classifies d against the service clock and refresh window.
func (s *AuthService) StateOf(d *session.Data) session.State {
	return session.Classify(d, s.now(), s.window())
}

// Current is what EnsureFresh found, and what it did about it.
type Current struct {
	Data  session.Data
	State session.State // before any refresh
	Token string        // the session token now in force

	// Set when a refresh happened; Cookie must reach the browser.
	Refreshed bool
	Cookie    string
}

// EnsureFresh reads the session and refreshes it when it is expiring soon or
// already expired.
//
//   - no or unverifiable token: (nil, nil)
//   - fresh: returned as is
//   - expiring soon or expired, refresh ok: the new session, Refreshed set
//   - expiring soon, refresh failed: the old session; retried next time
//   - expired, refresh failed: a KindRefreshFailed or KindNoRefreshToken error;
//     the caller should clear the cookie
func (s *AuthService) EnsureFresh(ctx context.Context, sessionToken string) (*Current, error) {
	if sessionToken == "" {
		return nil, nil
	}

	data := s.ReadSession(ctx, sessionToken)
	if data == nil {
		// An expired session still carries a usable refresh token. Anything
		// else was already logged by ReadSession.
		expired, err := s.Codec.VerifyAllowExpired(sessionToken)
		if err != nil {
			return nil, nil
		}
		data = &expired
	}

	state := session.Classify(data, s.now(), s.window())
	cur := &Current{Data: *data, State: state, Token: sessionToken}
	if state == session.Fresh {
		return cur, nil
	}

	res, err := s.refreshData(ctx, *data)
	if err != nil {
		if state == session.Expired {
			return nil, err
		}
		// Access token still works; try again on the next read.
		return cur, nil
	}

	cur.Data = res.Data
	cur.Token = res.Token
	cur.Refreshed = true
	cur.Cookie = res.Cookie
	return cur, nil
}

// Logout ends the session at the IdP when possible and returns the
// Set-Cookie header that clears it locally. It cannot fail.
func (s *AuthService) Logout(ctx context.Context, sessionToken string) string {
	if sessionToken != "" {
		if data, err := s.Codec.VerifyAllowExpired(sessionToken); err == nil {
			s.IdP.LogoutUser(ctx, data.RefreshToken)
			slogx.FromContext(ctx).Info("logout", slog.String("user_id", data.User.ID))
		}
	}

	s.observer().ObserveLogout()
	return s.Cookies.BuildClearCookie()
}
