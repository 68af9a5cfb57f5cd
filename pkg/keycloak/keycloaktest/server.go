// Package keycloaktest runs an in-process stand-in for a Keycloak realm.
//
// The server implements the token (password and refresh_token grants),
// certs, logout and userinfo endpoints closely enough to drive
// keycloak.Client, and counts the calls it receives so tests can assert on
// IdP traffic.
package keycloaktest

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/envention/union/pkg/jwtx"
	"github.com/envention/union/pkg/keycloak"
)

const (
	Realm        = "union"
	ClientID     = "union-app"
	ClientSecret = "union-app-secret"

	TestUsername = "test_user1"
	TestPassword = "envention"
)

// User is an account known to the stub realm.
type User struct {
	Username   string
	Password   string
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	RealmRoles []string
	Clients    jwtx.ResourceAccess
}

// DefaultUser mirrors a freshly created realm user with one application role.
func DefaultUser() User {
	return User{
		Username:   TestUsername,
		Password:   TestPassword,
		Subject:    "5b0f7c5e-2d8e-4b8a-9a55-3f1f2c0e0001",
		Email:      "test_user1@envention.test",
		GivenName:  "Test",
		FamilyName: "User",
		RealmRoles: []string{"default-roles-union", "offline_access", "uma_authorization", "admin"},
		Clients: jwtx.ResourceAccess{
			{Client: "account", Roles: []string{"manage-account"}},
		},
	}
}

// Server is a fake Keycloak realm backed by httptest.Server.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	signer        jwtx.Signer
	users         map[string]User
	refreshTokens map[string]string // refresh token -> username
	accessTokens  map[string]string // access token -> username
	expiresIn     int
	audience      []string
	refreshDelay  time.Duration
	refreshStatus int

	passwordGrants atomic.Int64
	refreshGrants  atomic.Int64
	logouts        atomic.Int64
	certsFetches   atomic.Int64
	userinfoCalls  atomic.Int64
}

// NewServer starts a stub realm seeded with DefaultUser. It is closed when
// the test ends.
func NewServer(tb testing.TB) *Server {
	tb.Helper()

	signer, err := jwtx.GenerateSigner(newOpaque(8), jwtx.AlgorithmRS256)
	if err != nil {
		tb.Fatalf("keycloaktest: generate signer: %v", err)
	}

	s := &Server{
		signer:        signer,
		users:         map[string]User{},
		refreshTokens: map[string]string{},
		accessTokens:  map[string]string{},
		expiresIn:     300,
		audience:      []string{keycloak.DefaultAudience},
	}
	s.AddUser(DefaultUser())

	base := "/realms/" + Realm + "/protocol/openid-connect/"
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+base+"token", s.handleToken)
	mux.HandleFunc("GET "+base+"certs", s.handleCerts)
	mux.HandleFunc("POST "+base+"logout", s.handleLogout)
	mux.HandleFunc("GET "+base+"userinfo", s.handleUserInfo)

	s.Server = httptest.NewServer(mux)
	tb.Cleanup(s.Close)

	return s
}

// Config returns a keycloak.Config pointing at this server.
func (s *Server) Config() keycloak.Config {
	return keycloak.Config{
		BaseURL:      s.URL,
		Realm:        Realm,
		ClientID:     ClientID,
		ClientSecret: ClientSecret,
		Timeout:      5 * time.Second,
	}
}

// Issuer is the iss claim the server puts in access tokens.
func (s *Server) Issuer() string {
	return s.URL + "/realms/" + Realm
}

func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
}

// SetExpiresIn changes expires_in on subsequent token responses.
func (s *Server) SetExpiresIn(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresIn = seconds
}

// SetAudience changes the aud claim on subsequent access tokens.
func (s *Server) SetAudience(aud ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audience = aud
}

// SetRefreshDelay makes every refresh_token grant sleep before answering.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// FailRefresh makes refresh_token grants answer with status. Zero restores
// normal behaviour.
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
}

// RotateKey replaces the signing key. Tokens signed before the rotation no
// longer verify once clients pick up the new JWKS.
func (s *Server) RotateKey(tb testing.TB) {
	tb.Helper()
	signer, err := jwtx.GenerateSigner(newOpaque(8), jwtx.AlgorithmRS256)
	if err != nil {
		tb.Fatalf("keycloaktest: rotate key: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signer = signer
}

// IssueTokens mints a token pair for username without going through the
// token endpoint.
func (s *Server) IssueTokens(tb testing.TB, username string) keycloak.TokenResponse {
	tb.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		tb.Fatalf("keycloaktest: unknown user %q", username)
	}
	resp, err := s.issueLocked(u)
	if err != nil {
		tb.Fatalf("keycloaktest: issue tokens: %v", err)
	}
	return resp
}

func (s *Server) PasswordGrants() int { return int(s.passwordGrants.Load()) }
func (s *Server) RefreshGrants() int  { return int(s.refreshGrants.Load()) }
func (s *Server) Logouts() int        { return int(s.logouts.Load()) }
func (s *Server) CertsFetches() int   { return int(s.certsFetches.Load()) }
func (s *Server) UserInfoCalls() int  { return int(s.userinfoCalls.Load()) }

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
		return
	}
	if r.PostForm.Get("client_id") != ClientID || r.PostForm.Get("client_secret") != ClientSecret {
		writeError(w, http.StatusUnauthorized, "unauthorized_client", "Invalid client or Invalid client credentials")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "password":
		s.passwordGrants.Add(1)
		s.passwordGrant(w, r)
	case "refresh_token":
		s.refreshGrants.Add(1)
		s.refreshGrant(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unsupported_grant_type", "Unsupported grant_type")
	}
}

func (s *Server) passwordGrant(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[r.PostForm.Get("username")]
	if !ok || u.Password != r.PostForm.Get("password") {
		writeError(w, http.StatusUnauthorized, "invalid_grant", "Invalid user credentials")
		return
	}

	resp, err := s.issueLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) refreshGrant(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delay, status := s.refreshDelay, s.refreshStatus
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		writeError(w, status, "invalid_grant", "Token is not active")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.refreshTokens[r.PostForm.Get("refresh_token")]
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_grant", "Token is not active")
		return
	}

	resp, err := s.issueLocked(s.users[username])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) issueLocked(u User) (keycloak.TokenResponse, error) {
	now := time.Now()
	claims := jwtx.NewAccessClaims(u.Subject, s.URL+"/realms/"+Realm, s.audience,
		time.Duration(s.expiresIn)*time.Second, now)
	claims.AZP = ClientID
	claims.Scope = keycloak.DefaultScope
	claims.SID = newOpaque(12)
	claims.Email = u.Email
	claims.GivenName = u.GivenName
	claims.FamilyName = u.FamilyName
	claims.Name = strings.TrimSpace(u.GivenName + " " + u.FamilyName)
	claims.PreferredUsername = u.Username
	claims.RealmAccess.Roles = u.RealmRoles
	claims.ResourceAccess = u.Clients

	access, err := s.signer.Sign(claims)
	if err != nil {
		return keycloak.TokenResponse{}, err
	}
	refresh := newOpaque(32)

	s.accessTokens[access] = u.Username
	s.refreshTokens[refresh] = u.Username

	return keycloak.TokenResponse{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        s.expiresIn,
		RefreshExpiresIn: 1800,
		Scope:            keycloak.DefaultScope,
		SessionState:     claims.SID,
	}, nil
}

func (s *Server) handleCerts(w http.ResponseWriter, _ *http.Request) {
	s.certsFetches.Add(1)

	s.mu.Lock()
	jwk := s.signer.PublicJWK()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, jwtx.JWKS{Keys: []jwtx.JWK{jwk}})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logouts.Add(1)

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	token := r.PostForm.Get("refresh_token")
	if _, ok := s.refreshTokens[token]; !ok {
		writeError(w, http.StatusBadRequest, "invalid_grant", "Invalid refresh token")
		return
	}
	delete(s.refreshTokens, token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	s.userinfoCalls.Add(1)

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	username, known := s.accessTokens[token]
	u := s.users[username]
	s.mu.Unlock()

	if !ok || !known {
		writeError(w, http.StatusUnauthorized, "invalid_token", "Token verification failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sub":                u.Subject,
		"email":              u.Email,
		"name":               strings.TrimSpace(u.GivenName + " " + u.FamilyName),
		"given_name":         u.GivenName,
		"family_name":        u.FamilyName,
		"preferred_username": u.Username,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": desc,
	})
}

func newOpaque(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
