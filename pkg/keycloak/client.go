package keycloak

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/envention/union/pkg/jwtx"
)

// DefaultScope is requested on the password grant.
const DefaultScope = "openid profile email"

// Keycloak's default audience for tokens issued to a realm client.
const DefaultAudience = "account"

// Config holds everything needed to talk to one realm.
type Config struct {
	BaseURL      string // e.g. https://sso.example.com (no /realms suffix)
	Realm        string
	ClientID     string
	ClientSecret string

	// Audiences accepted when validating access tokens. Defaults to
	// "account" and ClientID; Keycloak issues either depending on the flow
	// and the client's mappers.
	Audiences []string

	// Timeout for a single IdP request. Defaults to 10s. Ignored when
	// HTTPClient is set.
	Timeout    time.Duration
	HTTPClient *http.Client

	// MinJWKSRefetch bounds how often an unknown kid triggers a JWKS fetch.
	MinJWKSRefetch time.Duration

	// Leeway tolerated on exp/nbf when validating access tokens.
	Leeway time.Duration
}

// Client talks to the OpenID Connect endpoints of a single Keycloak realm.
type Client struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	Audiences    []string
	HTTPClient   *http.Client

	keys     *jwtx.RemoteKeySet
	verifier *jwtx.TokenVerifier
}

// NewClient creates a realm client. No network calls are made until first use.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	audiences := cfg.Audiences
	if len(audiences) == 0 {
		audiences = []string{DefaultAudience}
		if cfg.ClientID != "" && cfg.ClientID != DefaultAudience {
			audiences = append(audiences, cfg.ClientID)
		}
	}

	c := &Client{
		BaseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		Realm:        cfg.Realm,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Audiences:    audiences,
		HTTPClient:   httpClient,
	}

	c.keys = jwtx.NewRemoteKeySet(c.GetJWKS, cfg.MinJWKSRefetch)
	c.verifier = jwtx.NewVerifier(c.keys, jwtx.VerifyOptions{
		Issuer:   c.IssuerURL(),
		Audience: audiences,
		Leeway:   cfg.Leeway,
	})

	return c
}

// IssuerURL is the "iss" value Keycloak puts in tokens for this realm.
func (c *Client) IssuerURL() string {
	return c.BaseURL + "/realms/" + url.PathEscape(c.Realm)
}

func (c *Client) endpoint(name string) string {
	return c.IssuerURL() + "/protocol/openid-connect/" + name
}

// clientCredentials adds client_id and, for confidential clients, client_secret.
func (c *Client) clientCredentials(data url.Values) url.Values {
	data.Set("client_id", c.ClientID)
	if c.ClientSecret != "" {
		data.Set("client_secret", c.ClientSecret)
	}
	return data
}
