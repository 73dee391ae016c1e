package members

import (
	"context"
	"strings"
	"sync"
	"time"

	"portal/cmd/internal/auth/guard"
)

var timeNow = time.Now

type memberKey struct {
	uid  string
	site string
}

// MemoryDirectory is an in-process member directory.
type MemoryDirectory struct {
	mu      sync.RWMutex
	members map[memberKey]guard.Member
}

// NewMemoryDirectory returns a directory seeded with members.
func NewMemoryDirectory(seed ...guard.Member) (*MemoryDirectory, error) {
	d := &MemoryDirectory{members: make(map[memberKey]guard.Member, len(seed))}
	for _, m := range seed {
		if err := d.Put(context.Background(), m); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Put inserts or replaces a membership.
func (d *MemoryDirectory) Put(ctx context.Context, m guard.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := validate(m)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[memberKey{uid: m.UID, site: m.SiteID}] = m
	return nil
}

// GetMember implements guard.MemberLookup.
func (d *MemoryDirectory) GetMember(ctx context.Context, subjectID, siteID string) (guard.Member, error) {
	if err := ctx.Err(); err != nil {
		return guard.Member{}, err
	}
	k := memberKey{uid: strings.TrimSpace(subjectID), site: strings.TrimSpace(siteID)}

	d.mu.RLock()
	m, ok := d.members[k]
	d.mu.RUnlock()

	if !ok {
		return guard.Member{}, guard.ErrMemberNotFound
	}
	return m, nil
}
