package session

import (
	"fmt"
	"slices"
	"strings"
)

// Role is the closed set of roles a subject can hold.
type Role uint8

const (
	// RoleMember is a regular site member.
	RoleMember Role = iota + 1
	// RoleAdmin can manage a site and its members.
	RoleAdmin
)

// String returns the wire name of r.
func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole maps a wire name to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "member":
		return RoleMember, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("session: unknown role %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("session: cannot marshal %s", r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// NormalizeRoles drops invalid entries and duplicates and returns the roles in a stable order.
func NormalizeRoles(in []Role) []Role {
	out := make([]Role, 0, len(in))
	for _, r := range in {
		if r.Valid() && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return out
}

// HasRole reports whether roles contains want.
func HasRole(roles []Role, want Role) bool {
	return slices.Contains(roles, want)
}

func rolesToStrings(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range NormalizeRoles(roles) {
		out = append(out, r.String())
	}
	return out
}

func rolesFromStrings(in []string) ([]Role, error) {
	out := make([]Role, 0, len(in))
	for _, s := range in {
		r, err := ParseRole(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return NormalizeRoles(out), nil
}
