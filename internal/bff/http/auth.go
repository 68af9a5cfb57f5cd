package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/envention/union/internal/bff/service"
	"github.com/envention/union/internal/session"
	"github.com/envention/union/pkg/authsdk"
	"github.com/envention/union/pkg/httpx"
	"github.com/envention/union/pkg/slogx"
)

// maxLoginBody is far more than any username/password pair needs.
const maxLoginBody = 4 << 10

// AuthHandler serves the /api/auth endpoints. None of them return tokens;
// the session travels only in the cookie.
type AuthHandler struct {
	Auth *service.AuthService
}

// HandleLogin serves POST /api/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, maxLoginBody, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logFailure(r, "login failed", err)
		apiError(err).WriteError(w)
		return
	}

	w.Header().Add("Set-Cookie", res.Cookie)
	httpx.WriteJSON(w, http.StatusOK, h.sessionResponse(&res.Data))
}

// HandleLogout serves POST /api/auth/logout. It always succeeds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	cookie := h.Auth.Logout(r.Context(), h.Auth.SessionToken(r))

	w.Header().Add("Set-Cookie", cookie)
	httpx.WriteJSON(w, http.StatusOK, authsdk.SessionResponse{})
}

// HandleRefresh serves POST /api/auth/refresh. The cookie may hold an
// expired session; only its signature has to check out.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.Auth.Refresh(r.Context(), h.Auth.SessionToken(r))
	if err != nil {
		h.logFailure(r, "refresh failed", err)
		h.Auth.Cookies.ClearCookie(w)
		apiError(err).WriteError(w)
		return
	}

	w.Header().Add("Set-Cookie", res.Cookie)
	httpx.WriteJSON(w, http.StatusOK, h.sessionResponse(&res.Data))
}

// HandleSession serves GET /api/auth/session. Anonymous and broken sessions
// are a normal answer here, not an error. A session close to expiry is
// refreshed on the way through.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	token := h.Auth.SessionToken(r)

	cur, err := h.Auth.EnsureFresh(r.Context(), token)
	switch {
	case err != nil:
		h.logFailure(r, "session expired and refresh failed", err)
		h.Auth.Cookies.ClearCookie(w)
		httpx.WriteJSON(w, http.StatusOK, authsdk.SessionResponse{})
		return
	case cur == nil:
		if token != "" {
			// Unverifiable cookie; drop it so it stops being sent.
			h.Auth.Cookies.ClearCookie(w)
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.SessionResponse{})
		return
	}

	if cur.Refreshed {
		w.Header().Add("Set-Cookie", cur.Cookie)
	}
	httpx.WriteJSON(w, http.StatusOK, h.sessionResponse(&cur.Data))
}

func (h *AuthHandler) sessionResponse(d *session.Data) authsdk.SessionResponse {
	return authsdk.SessionResponse{
		Authenticated: true,
		User:          toAPIUser(d.User),
		ExpiresAt:     d.ExpiresAt,
		ExpiringSoon:  h.Auth.StateOf(d) != session.Fresh,
	}
}

func (h *AuthHandler) logFailure(r *http.Request, msg string, err error) {
	log := slogx.FromContext(r.Context())
	kind := service.KindOf(err)

	// Bad passwords and dead sessions are routine.
	if kind == service.KindUnknown || errors.Is(err, service.ErrLoginFailed) {
		log.Error(msg, slog.String("kind", kind.String()), slog.Any("error", err))
		return
	}
	log.Warn(msg, slog.String("kind", kind.String()), slog.Any("error", err))
}

func toAPIUser(u session.User) *authsdk.User {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return &authsdk.User{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Username: u.Username,
		Roles:    roles,
	}
}
