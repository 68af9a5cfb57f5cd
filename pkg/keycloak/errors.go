package keycloak

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidTokenResponse is returned when the IdP answers 200 but the body
// cannot be turned into a usable session.
var ErrInvalidTokenResponse = errors.New("keycloak: invalid token response")

// OAuth2Error is an error body returned by the IdP. The description often
// names internals (disabled accounts, client setup) so it is for logs only.
type OAuth2Error struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *OAuth2Error) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("keycloak: HTTP %d: %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("keycloak: HTTP %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// AuthenticationError means the IdP rejected a password grant.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string { return "keycloak: authentication failed" }
func (e *AuthenticationError) Unwrap() error { return e.Err }

// RefreshError means the IdP rejected a refresh_token grant. The refresh token
// should be considered unusable.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return "keycloak: token refresh failed" }
func (e *RefreshError) Unwrap() error { return e.Err }

// TokenValidationError means an access token failed signature, issuer,
// audience or expiry checks.
type TokenValidationError struct {
	Err error
}

func (e *TokenValidationError) Error() string {
	return fmt.Sprintf("keycloak: token validation failed: %v", e.Err)
}
func (e *TokenValidationError) Unwrap() error { return e.Err }

// parseErrorResponse turns a non-2xx response into an *OAuth2Error.
// Returns nil for 2xx.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &OAuth2Error{
		StatusCode: resp.StatusCode,
		Code:       "server_error",
		Description: fmt.Sprintf("HTTP %d: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
