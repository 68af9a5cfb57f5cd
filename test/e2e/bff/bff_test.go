package bff_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/envention/union/pkg/authsdk"
	"github.com/envention/union/pkg/keycloak"
	"github.com/stretchr/testify/require"
)

// TestLoginSessionLogout walks one browser session from login to logout.
func TestLoginSessionLogout(t *testing.T) {
	client := startBFF(t, "")
	ctx := t.Context()

	start := time.Now()
	sess, err := client.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)
	require.True(t, sess.Authenticated)
	require.Equal(t, testUsername, sess.User.Username)
	require.Equal(t, "Test User", sess.User.Name)
	require.Contains(t, sess.User.Roles, "admin")
	require.Contains(t, sess.User.Roles, "manage-account")
	require.NotContains(t, sess.User.Roles, "default-roles-union")
	require.NotContains(t, sess.User.Roles, "offline_access")
	require.InDelta(t, start.Add(300*time.Second).Unix(), sess.ExpiresAt, 2)

	ck, ok := client.SessionCookie("union-session")
	require.True(t, ok)
	require.NotEmpty(t, ck.Value)

	probe, err := client.Session(ctx)
	require.NoError(t, err)
	require.True(t, probe.Authenticated)

	require.NoError(t, client.Logout(ctx))

	probe, err = client.Session(ctx)
	require.NoError(t, err)
	require.False(t, probe.Authenticated)

	// The cookie is gone, so there is nothing left to refresh.
	_, err = client.Refresh(ctx)
	require.ErrorIs(t, err, authsdk.ErrNoRefreshToken)
}

func TestLoginRejected(t *testing.T) {
	client := startBFF(t, "")

	_, err := client.Login(t.Context(), testUsername, "not-the-password")
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

	_, err = client.Login(t.Context(), "", testPassword)
	require.ErrorIs(t, err, authsdk.ErrCredentialsRequired)
}

func TestRefreshRotatesSession(t *testing.T) {
	client := startBFF(t, "")
	ctx := t.Context()

	_, err := client.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)
	before, _ := client.SessionCookie("union-session")

	// Keycloak timestamps have second resolution.
	time.Sleep(1100 * time.Millisecond)

	sess, err := client.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, sess.Authenticated)

	after, ok := client.SessionCookie("union-session")
	require.True(t, ok)
	require.NotEqual(t, before.Value, after.Value)
}

// TestProxyWithRealTokens puts an upstream in front of the proxy that
// verifies bearer tokens against the realm's JWKS, as a real API would.
func TestProxyWithRealTokens(t *testing.T) {
	kcURL := requireKeycloak(t)
	verifier := keycloak.NewClient(keycloak.Config{
		BaseURL:  kcURL,
		Realm:    realm,
		ClientID: clientID,
	})

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims, err := verifier.ValidateToken(r.Context(), token)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":      claims.Subject,
			"username": claims.PreferredUsername,
			"userId":   r.Header.Get("X-User-ID"),
		})
	}))
	t.Cleanup(api.Close)

	client := startBFF(t, api.URL)
	ctx := t.Context()

	resp, err := client.Do(ctx, http.MethodGet, "/api/v1/me", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	sess, err := client.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)

	resp, err = client.Do(ctx, http.MethodGet, "/api/v1/me", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	require.Equal(t, testUsername, me["username"])
	require.Equal(t, sess.User.ID, me["sub"])
	require.Equal(t, sess.User.ID, me["userId"])
}

func TestHealth(t *testing.T) {
	client := startBFF(t, "")
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.JWKS)
}
