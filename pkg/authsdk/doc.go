/*
Package authsdk is a Go client for the union BFF auth endpoints, and the home
of the request, response and error shapes those endpoints speak.

The BFF keeps the session in an HttpOnly cookie, so the client carries a
cookie jar and behaves like a browser tab:

	c := authsdk.NewSDKClient("http://localhost:8080")

	sess, err := c.Login(ctx, "test_user1", "envention")
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// wrong password
	}

	// Proxied API calls reuse the cookie.
	resp, err := c.Do(ctx, http.MethodGet, "/api/v1/members", nil)

	_ = c.Logout(ctx)

Handlers use the predefined *APIError values to write error responses, and
the client turns those bodies back into the same values, so errors.Is works
on both sides.
*/
package authsdk
