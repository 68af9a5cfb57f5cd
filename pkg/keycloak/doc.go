/*
Package keycloak is a small client for the Keycloak OpenID Connect endpoints
the BFF depends on.

# Overview

A Client is bound to one realm and one confidential client. It exchanges
user credentials for tokens, refreshes them, verifies access tokens against
the realm's published keys and ends IdP sessions:

	kc := keycloak.NewClient(keycloak.Config{
		BaseURL:      "https://sso.example.com",
		Realm:        "union",
		ClientID:     "union-app",
		ClientSecret: secret,
	})

	tokens, err := kc.AuthenticateUser(ctx, username, password)
	claims, err := kc.ValidateToken(ctx, tokens.AccessToken)
	user := keycloak.ToSessionUser(claims)

# Key handling

The realm JWKS is fetched lazily on the first ValidateToken call and kept for
the life of the Client. A token signed with a kid that is not in the cache
triggers one refetch, at most once per Config.MinJWKSRefetch, so key rotation
is picked up without restarting.

# Errors

Failures from the token endpoint are returned as *AuthenticationError or
*RefreshError; failed verification as *TokenValidationError. Each wraps the
underlying cause, usually an *OAuth2Error holding the IdP's error body, which
is meant for logs and never for end users:

	var authErr *keycloak.AuthenticationError
	if errors.As(err, &authErr) {
		// wrong username or password, or the account is disabled
	}

Transport failures (IdP unreachable, timeouts) are returned as plain wrapped
errors so callers can tell them apart from a rejected grant.

LogoutUser is best effort and never returns an error.
*/
package keycloak
