package domain

import (
	"slices"
	"time"
)

// AnonymousID is the principal id of a caller without a user account.
const AnonymousID int64 = 0

type Principal struct {
	ID          int64
	Name        string
	Blocked     bool
	Permissions []string // Parsed from space-delimited storage
	Groups      []string // Group ids the principal is a member of
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p Principal) IsAnonymous() bool { return p.ID <= AnonymousID }

func (p Principal) HasPermission(permission string) bool {
	return slices.Contains(p.Permissions, permission)
}

func (p Principal) MemberOf(groupID string) bool {
	return slices.Contains(p.Groups, groupID)
}
