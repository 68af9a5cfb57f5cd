package keycloak

import (
	"context"
	"fmt"

	"github.com/envention/union/pkg/jwtx"
)

// ValidateToken verifies an access token against the realm keys and checks
// issuer, audience and expiry.
func (c *Client) ValidateToken(ctx context.Context, accessToken string) (*jwtx.Claims, error) {
	claims, err := c.verifier.Verify(ctx, accessToken)
	if err != nil {
		return nil, &TokenValidationError{Err: err}
	}
	return claims, nil
}

// GetJWKS downloads the realm's JSON Web Key Set.
func (c *Client) GetJWKS(ctx context.Context) (jwtx.JWKS, error) {
	resp, err := c.get(ctx, c.endpoint("certs"), "")
	if err != nil {
		return jwtx.JWKS{}, err
	}

	var jwks jwtx.JWKS
	if err := decodeJSON(resp, &jwks); err != nil {
		return jwtx.JWKS{}, err
	}

	return jwks, nil
}

// PrefetchKeys loads the realm keys ahead of the first login.
func (c *Client) PrefetchKeys(ctx context.Context) error {
	return c.keys.Refresh(ctx)
}

// KeysReady reports whether at least one realm key is cached.
func (c *Client) KeysReady() bool {
	return c.keys.IsReady()
}

// GetUserInfo fetches the userinfo document for an access token. Keycloak
// only includes role claims here when the client's mappers add them.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (*jwtx.Claims, error) {
	resp, err := c.get(ctx, c.endpoint("userinfo"), accessToken)
	if err != nil {
		return nil, err
	}

	var claims jwtx.Claims
	if err := decodeJSON(resp, &claims); err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("userinfo: %w: missing sub", ErrInvalidTokenResponse)
	}

	return &claims, nil
}
