package session

import (
	"net/http"
)

const (
	DefaultCookieName = "union-session"
	DefaultMaxAge     = 86400
)

type CookieConfig struct {
	Name   string
	MaxAge int  // seconds
	Secure bool // production deployments only
}

// CookieTransport builds and reads the session cookie. It does no crypto.
//
// Max-Age is independent of the token's exp: an expired token stays in the
// browser so the refresh path can still read its refresh token.
type CookieTransport struct {
	name   string
	maxAge int
	secure bool
}

func NewCookieTransport(cfg CookieConfig) *CookieTransport {
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	return &CookieTransport{
		name:   cfg.Name,
		maxAge: cfg.MaxAge,
		secure: cfg.Secure,
	}
}

func (t *CookieTransport) Name() string { return t.name }

// BuildSetCookie returns the Set-Cookie header value carrying token.
func (t *CookieTransport) BuildSetCookie(token string) string {
	return t.cookie(token, t.maxAge).String()
}

// BuildClearCookie returns a Set-Cookie header value that deletes the cookie.
func (t *CookieTransport) BuildClearCookie() string {
	// A negative MaxAge is rendered as Max-Age=0.
	return t.cookie("", -1).String()
}

// SetCookie adds the session cookie to the response.
func (t *CookieTransport) SetCookie(w http.ResponseWriter, token string) {
	w.Header().Add("Set-Cookie", t.BuildSetCookie(token))
}

// ClearCookie adds a deleting Set-Cookie to the response.
func (t *CookieTransport) ClearCookie(w http.ResponseWriter) {
	w.Header().Add("Set-Cookie", t.BuildClearCookie())
}

// Extract returns the raw session token from r. An empty value counts as
// absent.
func (t *CookieTransport) Extract(r *http.Request) (string, bool) {
	c, err := r.Cookie(t.name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// ExtractHeader is Extract for a raw Cookie header value.
func (t *CookieTransport) ExtractHeader(cookieHeader string) (string, bool) {
	if cookieHeader == "" {
		return "", false
	}
	r := &http.Request{Header: http.Header{"Cookie": {cookieHeader}}}
	return t.Extract(r)
}

func (t *CookieTransport) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     t.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteStrictMode,
	}
}
