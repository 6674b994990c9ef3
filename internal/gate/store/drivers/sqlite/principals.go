package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/wdb/iiifgate/internal/gate/domain"
)

type principalsRepo struct {
	q querier
}

func (r *principalsRepo) GetPrincipalByID(ctx context.Context, id int64) (domain.Principal, error) {
	var (
		p           domain.Principal
		blocked     int
		permissions string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, blocked, permissions, created_at, updated_at
		FROM principals WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &blocked, &permissions, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	p.Blocked = blocked != 0
	p.Permissions = splitFields(permissions)

	rows, err := r.q.QueryContext(ctx,
		`SELECT group_id FROM group_members WHERE principal_id = ? ORDER BY group_id`, id)
	if err != nil {
		return domain.Principal{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var group string
		if err := rows.Scan(&group); err != nil {
			return domain.Principal{}, err
		}
		p.Groups = append(p.Groups, group)
	}
	return p, rows.Err()
}

func (r *principalsRepo) UpsertPrincipal(ctx context.Context, p domain.Principal) error {
	if p.ID <= domain.AnonymousID {
		return fmt.Errorf("principal id must be positive, got %d", p.ID)
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO principals (id, name, blocked, permissions)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name        = excluded.name,
			blocked     = excluded.blocked,
			permissions = excluded.permissions,
			updated_at  = CURRENT_TIMESTAMP`,
		p.ID, p.Name, boolToInt(p.Blocked), strings.Join(p.Permissions, " "),
	)
	if err != nil {
		return err
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM group_members WHERE principal_id = ?`, p.ID); err != nil {
		return err
	}
	for _, group := range p.Groups {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO group_members (group_id, principal_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING`, group, p.ID); err != nil {
			return err
		}
	}
	return nil
}
