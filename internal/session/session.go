// Package session holds the signed, stateless session carried in the
// browser cookie: its shape, the HMAC codec, the cookie transport and the
// expiry classification used to decide when to refresh.
package session

import (
	"errors"
	"time"
)

var (
	ErrInvalidSessionToken = errors.New("session: invalid session token")
	ErrSessionExpired      = errors.New("session: expired")
	ErrWeakSecret          = errors.New("session: secret must be at least 32 bytes")
)

// User is the identity kept in the session.
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Data is the session envelope. It is immutable once signed; refresh and
// logout produce a new envelope and a new cookie.
type Data struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`

	// Unix seconds. Always now + expires_in at issuance, and doubles as the
	// session token's exp.
	ExpiresAt int64 `json:"expiresAt"`
}

// ExpiresAtTime returns ExpiresAt as a time.Time.
func (d Data) ExpiresAtTime() time.Time {
	return time.Unix(d.ExpiresAt, 0)
}

// NewData builds an envelope whose expiry is now + expiresIn.
func NewData(user User, accessToken, refreshToken string, expiresIn time.Duration, now time.Time) Data {
	return Data{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(expiresIn).Unix(),
	}
}
