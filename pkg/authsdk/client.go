package authsdk

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Auth endpoint paths.
const (
	PathLogin   = "/api/auth/login"
	PathLogout  = "/api/auth/logout"
	PathRefresh = "/api/auth/refresh"
	PathSession = "/api/auth/session"
)

// SDKClient talks to the BFF the way a browser does: the session cookie
// lives in HTTPClient's jar.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client with an empty cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil) // never fails without options
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// Login exchanges credentials for a session cookie.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*SessionResponse, error) {
	return c.session(ctx, http.MethodPost, PathLogin, LoginRequest{Username: username, Password: password})
}

// Refresh forces a token refresh.
func (c *SDKClient) Refresh(ctx context.Context) (*SessionResponse, error) {
	return c.session(ctx, http.MethodPost, PathRefresh, nil)
}

// Session asks whether the cookie is still a live session. The server may
// refresh it along the way.
func (c *SDKClient) Session(ctx context.Context) (*SessionResponse, error) {
	return c.session(ctx, http.MethodGet, PathSession, nil)
}

// Logout ends the session. The server clears the cookie even when the IdP
// can't be reached.
func (c *SDKClient) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, PathLogout, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

func (c *SDKClient) session(ctx context.Context, method, path string, body any) (*SessionResponse, error) {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Do sends an arbitrary request through the BFF, e.g. to the API proxy.
// The caller closes the response body.
func (c *SDKClient) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.HTTPClient.Do(req)
}

// SessionCookie returns the session cookie currently held in the jar.
func (c *SDKClient) SessionCookie(name string) (*http.Cookie, bool) {
	if c.HTTPClient.Jar == nil {
		return nil, false
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, false
	}
	for _, ck := range c.HTTPClient.Jar.Cookies(u) {
		if ck.Name == name {
			return ck, true
		}
	}
	return nil, false
}

// GetLiveness calls /livez.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness calls /readyz.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}
