package keycloak

import (
	"strings"

	"github.com/envention/union/pkg/jwtx"
)

// SessionUser is the slice of identity the application keeps in its session.
type SessionUser struct {
	ID       string
	Email    string
	Name     string
	Username string
	Roles    []string
}

// Roles every Keycloak user carries that mean nothing to the application.
var platformRoles = map[string]struct{}{
	"offline_access":    {},
	"uma_authorization": {},
}

// IsPlatformRole reports whether role is one of Keycloak's built-in realm
// roles (default-roles-<realm>, offline_access, uma_authorization).
func IsPlatformRole(role string) bool {
	if strings.HasPrefix(role, "default-roles-") {
		return true
	}
	_, ok := platformRoles[role]
	return ok
}

// ToSessionUser maps token claims to a SessionUser. Roles are realm roles
// followed by each client's roles, in token order, with platform roles dropped.
func ToSessionUser(c *jwtx.Claims) SessionUser {
	name := c.Name
	if name == "" {
		name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}
	if name == "" {
		name = c.PreferredUsername
	}

	return SessionUser{
		ID:       c.Subject,
		Email:    c.Email,
		Name:     name,
		Username: c.PreferredUsername,
		Roles:    FlattenRoles(c),
	}
}

// FlattenRoles returns realm and client roles as one list. Duplicates across
// clients are kept.
func FlattenRoles(c *jwtx.Claims) []string {
	roles := make([]string, 0, len(c.RealmAccess.Roles))

	for _, r := range c.RealmAccess.Roles {
		if !IsPlatformRole(r) {
			roles = append(roles, r)
		}
	}
	for _, client := range c.ResourceAccess {
		for _, r := range client.Roles {
			if !IsPlatformRole(r) {
				roles = append(roles, r)
			}
		}
	}

	return roles
}
