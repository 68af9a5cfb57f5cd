package authsdk

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the session user as the browser sees it.
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles"`
}

// SessionResponse is returned by login, refresh and the session probe.
// Tokens never leave the server; only their expiry does.
type SessionResponse struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`

	// ExpiresAt is the access token expiry in Unix seconds.
	ExpiresAt    int64 `json:"expiresAt,omitempty"`
	ExpiringSoon bool  `json:"expiringSoon,omitempty"`
}

// HealthResponse is served by /livez and /readyz.
type HealthResponse struct {
	// Status is "ok" or "degraded"
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	Version string `json:"version,omitempty"`

	// Checks is only filled in by /readyz.
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the dependencies /readyz looks at.
type HealthChecks struct {
	// JWKS is "ok" once IdP signing keys are loaded.
	JWKS string `json:"jwks"`
}
