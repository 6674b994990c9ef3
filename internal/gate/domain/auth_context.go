package domain

import "time"

// AuthContext is what a viewer needs to request tiles for one page.
type AuthContext struct {
	Token      string
	Param      string
	TTL        time.Duration
	RefreshURL string
}
