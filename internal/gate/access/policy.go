// Package access implements the subsystem access policy consulted by the
// decision engine and the token refresh endpoint.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wdb/iiifgate/internal/gate/domain"
	"github.com/wdb/iiifgate/internal/gate/store"
)

var (
	ErrUnknownSubsystem  = errors.New("unknown subsystem")
	ErrLoginRequired     = errors.New("login required for restricted subsystem")
	ErrNotMember         = errors.New("user is not a member of the subsystem group")
	ErrBlocked           = errors.New("user is blocked")
	ErrMissingPermission = errors.New("user lacks the required permission")
)

// Checker is the capability the authorization pipeline consumes.
type Checker interface {
	AllowsAnonymous(ctx context.Context, subsystem string) bool
	UserHasAccess(ctx context.Context, subsystem string, p domain.Principal, permission string) bool
	SubsystemConfig(ctx context.Context, subsystem string) (domain.Subsystem, error)
}

// Policy is the default Checker. Subsystem lookups are cached for the
// lifetime of the value, so build one per request.
type Policy struct {
	subsystems store.Subsystems

	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	sub domain.Subsystem
	err error
}

var _ Checker = (*Policy)(nil)

func New(subsystems store.Subsystems) *Policy {
	return &Policy{subsystems: subsystems, cache: map[string]cached{}}
}

// SubsystemConfig returns the configuration for subsystem, or an error
// wrapping ErrUnknownSubsystem when none exists.
func (p *Policy) SubsystemConfig(ctx context.Context, subsystem string) (domain.Subsystem, error) {
	key := strings.ToLower(strings.TrimSpace(subsystem))
	if key == "" {
		return domain.Subsystem{}, ErrUnknownSubsystem
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.cache[key]; ok {
		return c.sub, c.err
	}

	sub, err := p.subsystems.GetSubsystemByName(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		err = fmt.Errorf("%w: %s", ErrUnknownSubsystem, key)
	case err != nil:
		// Transient failures are not cached.
		return domain.Subsystem{}, fmt.Errorf("load subsystem %s: %w", key, err)
	}
	p.cache[key] = cached{sub: sub, err: err}
	return sub, err
}

func (p *Policy) AllowsAnonymous(ctx context.Context, subsystem string) bool {
	sub, err := p.SubsystemConfig(ctx, subsystem)
	return err == nil && sub.AllowAnonymous
}

// Check evaluates access and returns nil when it is granted, or the reason
// it is not. An empty permission means the subsystem's own requirement.
func (p *Policy) Check(ctx context.Context, subsystem string, principal domain.Principal, permission string) error {
	sub, err := p.SubsystemConfig(ctx, subsystem)
	if err != nil {
		return err
	}

	if sub.AllowAnonymous {
		return nil
	}

	if sub.GroupID != "" {
		if principal.IsAnonymous() {
			return ErrLoginRequired
		}
		if !principal.MemberOf(sub.GroupID) {
			return ErrNotMember
		}
	}

	if principal.Blocked {
		return ErrBlocked
	}

	if permission == "" {
		permission = sub.RequiredPermission()
	}
	if !principal.HasPermission(permission) {
		return ErrMissingPermission
	}
	return nil
}

func (p *Policy) UserHasAccess(ctx context.Context, subsystem string, principal domain.Principal, permission string) bool {
	return p.Check(ctx, subsystem, principal, permission) == nil
}
