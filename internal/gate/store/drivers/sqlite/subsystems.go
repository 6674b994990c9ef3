package sqlite

import (
	"context"
	"strings"

	"github.com/wdb/iiifgate/internal/gate/domain"
)

type subsystemsRepo struct {
	q querier
}

const subsystemColumns = `name, allow_anonymous, permission, group_id, created_at, updated_at`

func (r *subsystemsRepo) GetSubsystemByName(ctx context.Context, name string) (domain.Subsystem, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+subsystemColumns+` FROM subsystems WHERE name = ? COLLATE NOCASE`,
		strings.TrimSpace(name),
	)

	s, err := scanSubsystem(row)
	if err != nil {
		return domain.Subsystem{}, mapNotFound(err)
	}
	return s, nil
}

func (r *subsystemsRepo) ListSubsystems(ctx context.Context) ([]domain.Subsystem, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+subsystemColumns+` FROM subsystems ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Subsystem
	for rows.Next() {
		s, err := scanSubsystem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *subsystemsRepo) UpsertSubsystem(ctx context.Context, s domain.Subsystem) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO subsystems (name, allow_anonymous, permission, group_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			allow_anonymous = excluded.allow_anonymous,
			permission      = excluded.permission,
			group_id        = excluded.group_id,
			updated_at      = CURRENT_TIMESTAMP`,
		strings.TrimSpace(s.Name),
		boolToInt(s.AllowAnonymous),
		s.Permission,
		s.GroupID,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubsystem(row rowScanner) (domain.Subsystem, error) {
	var (
		s         domain.Subsystem
		anonymous int
	)
	err := row.Scan(&s.Name, &anonymous, &s.Permission, &s.GroupID, &s.CreatedAt, &s.UpdatedAt)
	s.AllowAnonymous = anonymous != 0
	return s, err
}
