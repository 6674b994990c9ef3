package store

import (
	"context"
	"errors"
	"time"

	"github.com/wdb/iiifgate/internal/gate/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so a transaction can hand out the same repos
// scoped to itself.
type Store interface {
	Subsystems() Subsystems
	Principals() Principals
	Pages() Pages
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Subsystems interface {
	// GetSubsystemByName looks a subsystem up by name, ignoring case.
	GetSubsystemByName(ctx context.Context, name string) (domain.Subsystem, error)

	// ListSubsystems returns all subsystems ordered by name.
	ListSubsystems(ctx context.Context) ([]domain.Subsystem, error)

	// UpsertSubsystem creates the subsystem or replaces its settings.
	UpsertSubsystem(ctx context.Context, s domain.Subsystem) error
}

type Principals interface {
	// GetPrincipalByID returns a principal together with its group memberships.
	GetPrincipalByID(ctx context.Context, id int64) (domain.Principal, error)

	// UpsertPrincipal creates the principal or replaces its fields and
	// group memberships.
	UpsertPrincipal(ctx context.Context, p domain.Principal) error
}

type Pages interface {
	// GetPageByID returns the page with the subsystem of its source filled
	// in. Subsystem is empty when the page has no source or the source no
	// subsystem.
	GetPageByID(ctx context.Context, id int64) (domain.Page, error)

	// UpsertSource links a source document to a subsystem. An empty
	// subsystem leaves the source unassigned.
	UpsertSource(ctx context.Context, id int64, subsystem string) error

	UpsertPage(ctx context.Context, p domain.Page) error
}

type Sessions interface {
	// GetSession returns the raw session row for sid.
	GetSession(ctx context.Context, sid string) (domain.RawSession, error)

	PutSession(ctx context.Context, s domain.RawSession) error

	// DeleteSessionsBefore removes sessions last written before t and
	// returns how many were removed.
	DeleteSessionsBefore(ctx context.Context, t time.Time) (int64, error)
}
