package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// AuthenticateUser performs the resource owner password grant.
//
// Any non-2xx answer is returned as *AuthenticationError, whatever the IdP's
// reason; the cause is kept for logging.
func (c *Client) AuthenticateUser(ctx context.Context, username, password string) (*TokenResponse, error) {
	data := c.clientCredentials(url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
		"scope":      {DefaultScope},
	})

	tokenResp, err := c.requestToken(ctx, data)
	if err != nil {
		var oauthErr *OAuth2Error
		if errors.As(err, &oauthErr) {
			return nil, &AuthenticationError{Err: err}
		}
		return nil, err
	}

	return tokenResp, nil
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := c.clientCredentials(url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})

	tokenResp, err := c.requestToken(ctx, data)
	if err != nil {
		var oauthErr *OAuth2Error
		if errors.As(err, &oauthErr) {
			return nil, &RefreshError{Err: err}
		}
		return nil, err
	}

	return tokenResp, nil
}

func (c *Client) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, c.endpoint("token"), data)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp); err != nil {
		return nil, err
	}

	// A session can't be built without a token or a lifetime.
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access_token", ErrInvalidTokenResponse)
	}
	if tokenResp.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: expires_in must be positive, got %d",
			ErrInvalidTokenResponse, tokenResp.ExpiresIn)
	}

	return &tokenResp, nil
}
