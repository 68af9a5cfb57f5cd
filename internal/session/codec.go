package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret NewCodec accepts.
const MinSecretLength = 32

// tokenClaims is the JWT payload: the session fields at the top level next
// to the registered claims.
type tokenClaims struct {
	Data
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with HS256.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewCodec returns a Codec bound to one secret, issuer and audience.
func NewCodec(secret []byte, issuer, audience string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &Codec{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}, nil
}

// Sign returns a compact token for d. exp is d.ExpiresAt, so the token dies
// with the access token it carries.
func (c *Codec) Sign(d Data) (string, error) {
	claims := tokenClaims{
		Data: d,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(d.ExpiresAtTime()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign: %w", err)
	}
	return token, nil
}

// VerifyStrict checks signature, issuer, audience and expiry. An authentic
// but expired token fails with ErrSessionExpired.
func (c *Codec) VerifyStrict(token string) (Data, error) {
	return c.verify(token, c.now)
}

// VerifyAllowExpired checks signature, issuer and audience but not liveness.
// The token is verified as if it were one second before its own exp; a token
// without exp is checked against the real clock.
func (c *Codec) VerifyAllowExpired(token string) (Data, error) {
	var peek tokenClaims
	if _, _, err := jwt.NewParser(jwt.WithStrictDecoding()).ParseUnverified(token, &peek); err != nil {
		return Data{}, fmt.Errorf("%w: %w", ErrInvalidSessionToken, err)
	}

	clock := c.now
	if exp := peek.RegisteredClaims.ExpiresAt; exp != nil {
		at := exp.Add(-time.Second)
		clock = func() time.Time { return at }
	}

	return c.verify(token, clock)
}

func (c *Codec) verify(token string, clock func() time.Time) (Data, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithTimeFunc(clock),
		jwt.WithStrictDecoding(),
	)

	var claims tokenClaims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		// The signature is checked before the claims, so an expired
		// token is also an authentic one.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Data{}, fmt.Errorf("%w: %w: %w", ErrInvalidSessionToken, ErrSessionExpired, err)
		}
		return Data{}, fmt.Errorf("%w: %w", ErrInvalidSessionToken, err)
	}

	return claims.Data, nil
}
