package service

import (
	"context"
	"log/slog"

	"github.com/envention/union/internal/session"
	"github.com/envention/union/pkg/slogx"
)

// Refresh trades the refresh token inside a session token for a new session.
// The session token may have expired as long as its signature is good.
//
// Returns KindNoRefreshToken without calling the IdP when there is no usable
// session or it carries no refresh token, and KindRefreshFailed for anything
// that goes wrong after that. On either, the caller should clear the cookie.
func (s *AuthService) Refresh(ctx context.Context, sessionToken string) (*Result, error) {
	if sessionToken == "" {
		s.observer().ObserveRefresh(KindNoRefreshToken.String())
		return nil, newError(KindNoRefreshToken, nil)
	}

	data, err := s.Codec.VerifyAllowExpired(sessionToken)
	if err != nil {
		slogx.FromContext(ctx).Warn("refresh with unverifiable session", slog.Any("error", err))
		s.observer().ObserveRefresh(KindNoRefreshToken.String())
		return nil, newError(KindNoRefreshToken, err)
	}

	return s.refreshData(ctx, data)
}

func (s *AuthService) refreshData(ctx context.Context, data session.Data) (*Result, error) {
	l := slogx.FromContext(ctx)

	if data.RefreshToken == "" {
		s.observer().ObserveRefresh(KindNoRefreshToken.String())
		return nil, newError(KindNoRefreshToken, nil)
	}

	// Concurrent requests holding the same session share one IdP round trip.
	// The flight outlives any single caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := s.refreshes.Do(data.RefreshToken, func() (any, error) {
		tokens, err := s.IdP.RefreshToken(flightCtx, data.RefreshToken)
		if err != nil {
			return nil, err
		}
		return s.issue(flightCtx, tokens)
	})
	if err != nil {
		l.Warn("session refresh failed", slog.String("user_id", data.User.ID), slog.Any("error", err))
		s.observer().ObserveRefresh(KindRefreshFailed.String())
		return nil, newError(KindRefreshFailed, err)
	}

	res := v.(*Result)
	l.Debug("session refreshed",
		slog.String("user_id", res.Data.User.ID),
		slog.Int64("expires_at", res.Data.ExpiresAt),
		slog.Bool("shared", shared),
	)
	s.observer().ObserveRefresh("ok")
	return res, nil
}
