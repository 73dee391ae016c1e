// Package members implements the member lookup used by the guard pipeline.
//
// PostgresDirectory reads <schema>.site_members. MemoryDirectory serves
// seeded members for local development and tests.
package members

import (
	"errors"
	"fmt"
	"strings"

	"portal/cmd/internal/auth/guard"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/ids"
)

// ErrInvalidMember is returned when a member record is incomplete.
var ErrInvalidMember = errors.New("members: invalid member")

func validate(m guard.Member) (guard.Member, error) {
	m.UID = strings.TrimSpace(m.UID)
	m.SiteID = strings.TrimSpace(m.SiteID)
	m.DisplayName = strings.TrimSpace(m.DisplayName)
	if m.UID == "" || m.SiteID == "" || !m.Role.Valid() {
		return guard.Member{}, ErrInvalidMember
	}
	if strings.TrimSpace(m.ID) == "" {
		id, err := ids.NewULID(timeNow())
		if err != nil {
			return guard.Member{}, err
		}
		m.ID = id
	}
	return m, nil
}

// ParseSeed parses "uid:siteId:role[:displayName]" entries separated by commas.
//
//	PORTAL_DEV_MEMBERS="u1:s1:admin:Ada,u2:s1:member"
func ParseSeed(raw string) ([]guard.Member, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var out []guard.Member
	for i, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 3 {
			return nil, fmt.Errorf("%w: entry %d: want uid:siteId:role[:displayName]", ErrInvalidMember, i)
		}
		role, err := session.ParseRole(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidMember, i, err)
		}
		m := guard.Member{UID: parts[0], SiteID: parts[1], Role: role}
		if len(parts) == 4 {
			m.DisplayName = parts[3]
		}
		m, err = validate(m)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
