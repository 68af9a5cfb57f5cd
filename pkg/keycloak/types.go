package keycloak

// TokenResponse is the token endpoint response for the password and
// refresh_token grants.
type TokenResponse struct {
	AccessToken string `json:"access_token"`

	// Opaque to us; only ever sent back to the IdP
	RefreshToken string `json:"refresh_token,omitempty"`

	TokenType string `json:"token_type"`

	// Lifetime of the access token in seconds
	ExpiresIn int `json:"expires_in"`

	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
	Scope            string `json:"scope,omitempty"`
	SessionState     string `json:"session_state,omitempty"`
}

// errorResponse is the RFC 6749 error body Keycloak returns.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
