package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/envention/union/pkg/httpx"
)

// Error codes written in the "error" field of BFF responses.
const (
	ErrorCodeCredentialsRequired = "credentials_required"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeLoginFailed         = "login_failed"
	ErrorCodeNoRefreshToken      = "no_refresh_token"
	ErrorCodeRefreshFailed       = "refresh_failed"
	ErrorCodeUnauthenticated     = "unauthenticated"
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeBadGateway          = "bad_gateway"
	ErrorCodeServerError         = "server_error"
)

// APIError is an error response of the BFF. Servers write it with
// WriteError; the client parses it back.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on status and code so a parsed response equals the predefined
// value it was written from.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// WriteError writes e as the response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Code, e.Description)
}

var (
	ErrCredentialsRequired = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeCredentialsRequired,
		Description: "username and password are required",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid username or password",
	}

	// ErrLoginFailed hides what went wrong after the IdP accepted the
	// password.
	ErrLoginFailed = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeLoginFailed,
		Description: "login failed",
	}

	ErrNoRefreshToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeNoRefreshToken,
		Description: "no session to refresh",
	}

	ErrRefreshFailed = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeRefreshFailed,
		Description: "session could not be refreshed, log in again",
	}

	// ErrUnauthenticated is returned by the API proxy when there is no
	// usable session cookie.
	ErrUnauthenticated = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeUnauthenticated,
		Description: "not logged in",
	}

	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request body is malformed",
	}

	ErrBadGateway = &APIError{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeBadGateway,
		Description: "upstream API unavailable",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse turns a non-2xx response body into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp httpx.ErrorBody
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
