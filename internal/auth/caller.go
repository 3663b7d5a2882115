package auth

import "strings"

// Role is the account role used by authorization predicates.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleUmum     Role = "UMUM"
	RoleDesainer Role = "DESAINER"
)

// ParseRole normalizes raw into a known Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUmum:
		return RoleUmum, true
	case RoleDesainer:
		return RoleDesainer, true
	}
	return "", false
}

// Caller is the authenticated identity an operation runs on behalf of.
// The zero value is an anonymous caller.
type Caller struct {
	ID   int64
	Role Role
}

// Authenticated reports whether the caller carries an identity.
func (c Caller) Authenticated() bool {
	return c.ID > 0
}

// CanPostChallenges reports whether the caller may create challenges.
func (c Caller) CanPostChallenges() bool {
	return c.Authenticated() && (c.Role == RoleUmum || c.Role == RoleAdmin)
}

// HasRole reports whether the caller holds one of roles.
func (c Caller) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
