package domain

import "time"

// DefaultPermission is required to view pages of a restricted subsystem
// when the subsystem does not name its own permission.
const DefaultPermission = "view wdb gallery pages"

type Subsystem struct {
	Name           string
	AllowAnonymous bool
	Permission     string // Optional: overrides DefaultPermission
	GroupID        string // Optional: restricts access to members of this group
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RequiredPermission returns the permission a principal needs to view the
// subsystem's images.
func (s Subsystem) RequiredPermission() string {
	if s.Permission != "" {
		return s.Permission
	}
	return DefaultPermission
}
