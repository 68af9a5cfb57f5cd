package keycloak

import (
	"context"
	"io"
	"net/url"

	"github.com/envention/union/pkg/slogx"
)

// LogoutUser ends the IdP session behind refreshToken. It is best effort:
// failures are logged and dropped, the local session is cleared regardless.
func (c *Client) LogoutUser(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}

	logger := slogx.FromContext(ctx)

	data := c.clientCredentials(url.Values{
		"refresh_token": {refreshToken},
	})

	resp, err := c.postForm(ctx, c.endpoint("logout"), data)
	if err != nil {
		logger.Warn("idp logout failed", "error", err)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := parseErrorResponse(resp, body); err != nil {
		logger.Warn("idp logout rejected", "error", err)
	}
}
