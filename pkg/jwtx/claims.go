package jwtx

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleSet is the {"roles": [...]} object Keycloak nests under realm_access
// and under each resource_access client.
type RoleSet struct {
	Roles []string `json:"roles,omitempty"`
}

// ClientRoles is one entry of resource_access.
type ClientRoles struct {
	Client string
	Roles  []string
}

// ResourceAccess holds resource_access.<client>.roles in the order the clients
// appear in the token. A map would lose that order, and role lists are
// expected to come back in source order.
type ResourceAccess []ClientRoles

// UnmarshalJSON walks the object token by token so client order survives.
func (ra *ResourceAccess) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ra = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("jwtx: resource_access must be an object")
	}

	var out ResourceAccess
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		client, _ := keyTok.(string)

		var rs RoleSet
		if err := dec.Decode(&rs); err != nil {
			return fmt.Errorf("jwtx: resource_access.%s: %w", client, err)
		}
		out = append(out, ClientRoles{Client: client, Roles: rs.Roles})
	}

	*ra = out
	return nil
}

// MarshalJSON writes the entries back as an object, keeping order.
func (ra ResourceAccess) MarshalJSON() ([]byte, error) {
	if ra == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cr := range ra {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cr.Client)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(RoleSet{Roles: cr.Roles})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Claims is the decoded payload of an IdP access token. Only the fields this
// service reads are mapped; everything else in the token is ignored.
type Claims struct {
	jwt.RegisteredClaims

	// Session ID at the IdP
	SID          string `json:"sid,omitempty"`
	SessionState string `json:"session_state,omitempty"`

	// Authorized party, the client the token was issued to
	AZP   string `json:"azp,omitempty"`
	Typ   string `json:"typ,omitempty"`
	Scope string `json:"scope,omitempty"`

	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`

	RealmAccess    RoleSet        `json:"realm_access"`
	ResourceAccess ResourceAccess `json:"resource_access,omitempty"`
}

// NewAccessClaims builds minimally-correct claims. Mostly useful for stub
// identity providers.
func NewAccessClaims(
	subject string,
	issuer string,
	audience []string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Typ: "Bearer",
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}
