package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wdb/iiifgate/internal/gate/domain"
	"github.com/wdb/iiifgate/internal/gate/store"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// RawStore gives direct access to the raw session table, bypassing the
// session handler. store.Sessions satisfies it.
type RawStore interface {
	GetSession(ctx context.Context, sid string) (domain.RawSession, error)
}

// Drivers accepted by OpenSQLTable.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
)

// SQLTable reads the host application's sessions table over database/sql.
type SQLTable struct {
	db    *sql.DB
	query string
}

// NewSQLTable wraps an open handle. driver selects the placeholder style.
func NewSQLTable(db *sql.DB, driver string) (*SQLTable, error) {
	var placeholder string
	switch driver {
	case DriverMySQL:
		placeholder = "?"
	case DriverPostgres:
		placeholder = "$1"
	default:
		return nil, fmt.Errorf("session: unsupported driver %q", driver)
	}

	return &SQLTable{
		db:    db,
		query: "SELECT uid, session FROM sessions WHERE sid = " + placeholder + " LIMIT 1",
	}, nil
}

// OpenSQLTable opens dsn with the given driver and wraps it.
func OpenSQLTable(driver, dsn string) (*SQLTable, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open session table: %w", err)
	}
	t, err := NewSQLTable(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return t, nil
}

func (t *SQLTable) GetSession(ctx context.Context, sid string) (domain.RawSession, error) {
	var (
		uid     sql.NullInt64
		payload []byte
	)
	err := t.db.QueryRowContext(ctx, t.query, sid).Scan(&uid, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RawSession{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RawSession{}, fmt.Errorf("read session row: %w", err)
	}
	return domain.RawSession{SID: sid, UID: uid.Int64, Payload: payload}, nil
}

func (t *SQLTable) Ping(ctx context.Context) error { return t.db.PingContext(ctx) }

func (t *SQLTable) Close() error { return t.db.Close() }
