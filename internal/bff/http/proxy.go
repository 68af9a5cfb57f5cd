package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/envention/union/internal/bff/service"
	"github.com/envention/union/pkg/apiclient"
	"github.com/envention/union/pkg/authsdk"
	"github.com/envention/union/pkg/httpx"
	"github.com/envention/union/pkg/slogx"
)

type ctxKey struct{}

func withCurrent(ctx context.Context, cur *service.Current) context.Context {
	return context.WithValue(ctx, ctxKey{}, cur)
}

func currentFrom(ctx context.Context) (*service.Current, bool) {
	cur, ok := ctx.Value(ctxKey{}).(*service.Current)
	return cur, ok && cur != nil
}

// RequireSession resolves the session cookie, refreshing it when it is close
// to expiry, and rejects requests without one. The user id is recorded for
// per-user rate limiting.
func RequireSession(auth *service.AuthService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cur, err := auth.EnsureFresh(r.Context(), auth.SessionToken(r))
			if err != nil {
				slogx.FromContext(r.Context()).Warn("session expired and refresh failed", slog.Any("error", err))
				auth.Cookies.ClearCookie(w)
				authsdk.ErrRefreshFailed.WriteError(w)
				return
			}
			if cur == nil {
				authsdk.ErrUnauthenticated.WriteError(w)
				return
			}

			if cur.Refreshed {
				w.Header().Add("Set-Cookie", cur.Cookie)
			}

			ctx := httpx.WithUserID(r.Context(), cur.Data.User.ID)
			ctx = slogx.With(ctx, "user_id", cur.Data.User.ID)
			next.ServeHTTP(w, r.WithContext(withCurrent(ctx, cur)))
		})
	}
}

// ProxyHandler forwards /api/v1/ to the business API with the session's
// access token. An upstream 401 gets one refresh and one replay through
// apiclient.Transport; a refreshed session goes back to the browser as a new
// cookie, and a refresh that fails clears it.
type ProxyHandler struct {
	Auth      *service.AuthService
	Upstream  *url.URL
	Transport http.RoundTripper
	Observer  apiclient.RetryObserver
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cur, ok := currentFrom(r.Context())
	if !ok {
		authsdk.ErrUnauthenticated.WriteError(w)
		return
	}

	src := h.Auth.Source(cur.Token, cur.Data)

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(h.Upstream)
			pr.SetXForwarded()
			// The upstream sees the bearer token, never the session cookie.
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("X-User-ID")
			if id, ok := httpx.UserIDFromContext(pr.In.Context()); ok {
				pr.Out.Header.Set("X-User-ID", id)
			}
		},
		Transport: &apiclient.Transport{
			Base:     h.Transport,
			Source:   src,
			Observer: h.Observer,
		},
		ModifyResponse: func(resp *http.Response) error {
			// Cookies are the BFF's business.
			resp.Header.Del("Set-Cookie")

			switch {
			case src.Refreshed() != nil:
				resp.Header.Add("Set-Cookie", src.Refreshed().Cookie)
			case src.Err() != nil:
				slogx.FromContext(resp.Request.Context()).Warn("refresh after upstream 401 failed",
					slog.Any("error", src.Err()))
				resp.Header.Add("Set-Cookie", h.Auth.Cookies.BuildClearCookie())
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slogx.FromContext(r.Context()).Error("upstream request failed", slog.Any("error", err))
			authsdk.ErrBadGateway.WriteError(w)
		},
	}

	proxy.ServeHTTP(w, r)
}
