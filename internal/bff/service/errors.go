package service

import (
	"errors"
)

var (
	ErrCredentialsRequired = errors.New("credentials_required")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrLoginFailed         = errors.New("login_failed")
	ErrNoRefreshToken      = errors.New("no_refresh_token")
	ErrRefreshFailed       = errors.New("refresh_failed")
)

// ErrorKind tags every failure the AuthService returns.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindCredentialsRequired
	KindInvalidCredentials
	KindLoginFailed
	KindNoRefreshToken
	KindRefreshFailed
)

var kindSentinels = map[ErrorKind]error{
	KindCredentialsRequired: ErrCredentialsRequired,
	KindInvalidCredentials:  ErrInvalidCredentials,
	KindLoginFailed:         ErrLoginFailed,
	KindNoRefreshToken:      ErrNoRefreshToken,
	KindRefreshFailed:       ErrRefreshFailed,
}

// String returns the snake_case code used on the wire.
func (k ErrorKind) String() string {
	if s, ok := kindSentinels[k]; ok {
		return s.Error()
	}
	return "unknown"
}

// Error is what AuthService returns: a Kind plus the underlying cause.
// errors.Is matches both the kind's sentinel and anything in Err.
type Error struct {
	Kind ErrorKind
	Err  error
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the ErrorKind carried by err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}
