package jwtx

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// KeyResolver looks up a public verification key by kid.
type KeyResolver interface {
	Resolve(ctx context.Context, kid string) (any, error)
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience values, at least one of which the token must contain
	// (claims.aud). Empty means "don't care".
	Audience []string

	// Algorithms accepted in the token header. Defaults to RS256, ES256, EdDSA.
	Algorithms []string

	// Leeway allows small clock skew when validating exp/nbf/iat.
	Leeway time.Duration
}

// Supported JWT signing algorithms
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

var defaultAlgorithms = []string{AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrMissingKID  = errors.New("jwtx: missing kid")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// TokenVerifier validates asymmetric JWTs issued by an identity provider.
// The key is chosen by the kid header and must match the header's algorithm.
type TokenVerifier struct {
	keys   KeyResolver
	issuer string
	aud    []string
	algs   []string
	leeway time.Duration
}

// NewVerifier creates a verifier that resolves keys through keys.
func NewVerifier(keys KeyResolver, opts VerifyOptions) *TokenVerifier {
	algs := opts.Algorithms
	if len(algs) == 0 {
		algs = defaultAlgorithms
	}
	return &TokenVerifier{
		keys:   keys,
		issuer: opts.Issuer,
		aud:    opts.Audience,
		algs:   algs,
		leeway: opts.Leeway,
	}
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *TokenVerifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(v.algs),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMissingKID
		}

		pub, err := v.keys.Resolve(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrUnknownKID, kid, err)
		}

		return keyForAlg(t.Method.Alg(), pub)
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaim
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.aud); err != nil {
		return nil, err
	}

	return claims, nil
}

// keyForAlg makes sure the resolved key is of the type the header promised,
// otherwise an RSA key could be fed to an HMAC check and so on.
func keyForAlg(alg string, pub any) (any, error) {
	switch alg {
	case AlgorithmRS256:
		if k, ok := pub.(*rsa.PublicKey); ok {
			return k, nil
		}
	case AlgorithmES256:
		if k, ok := pub.(*ecdsa.PublicKey); ok {
			return k, nil
		}
	case AlgorithmEdDSA:
		if k, ok := pub.(ed25519.PublicKey); ok {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: key does not match %s", ErrAlgMismatch, alg)
}

// classify maps golang-jwt errors onto our sentinels while keeping the cause.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrMissingKID),
		errors.Is(err, ErrUnknownKID),
		errors.Is(err, ErrAlgMismatch):
		return fmt.Errorf("jwtx: parse or verify: %w", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return fmt.Errorf("%w: %w", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrAlgMismatch, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidClaim, err)
	}
}
