package http

import (
	"github.com/envention/union/internal/bff/service"
	"github.com/envention/union/pkg/authsdk"
)

// apiError maps a service error onto the response written for it.
func apiError(err error) *authsdk.APIError {
	switch service.KindOf(err) {
	case service.KindCredentialsRequired:
		return authsdk.ErrCredentialsRequired
	case service.KindInvalidCredentials:
		return authsdk.ErrInvalidCredentials
	case service.KindLoginFailed:
		return authsdk.ErrLoginFailed
	case service.KindNoRefreshToken:
		return authsdk.ErrNoRefreshToken
	case service.KindRefreshFailed:
		return authsdk.ErrRefreshFailed
	default:
		return authsdk.ErrServerError
	}
}
