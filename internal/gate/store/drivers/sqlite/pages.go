package sqlite

import (
	"context"
	"database/sql"

	"github.com/wdb/iiifgate/internal/gate/domain"
)

type pagesRepo struct {
	q querier
}

func (r *pagesRepo) GetPageByID(ctx context.Context, id int64) (domain.Page, error) {
	var (
		p         domain.Page
		sourceID  sql.NullInt64
		subsystem sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT p.id, p.source_id, s.subsystem, p.image_identifier
		FROM pages p
		LEFT JOIN sources s ON s.id = p.source_id
		WHERE p.id = ?`, id,
	).Scan(&p.ID, &sourceID, &subsystem, &p.ImageIdentifier)
	if err != nil {
		return domain.Page{}, mapNotFound(err)
	}

	p.SourceID = sourceID.Int64
	p.Subsystem = mapNullString(subsystem)
	return p, nil
}

func (r *pagesRepo) UpsertSource(ctx context.Context, id int64, subsystem string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sources (id, subsystem) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET subsystem = excluded.subsystem`,
		id, mapStringNull(subsystem),
	)
	return err
}

func (r *pagesRepo) UpsertPage(ctx context.Context, p domain.Page) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO pages (id, source_id, image_identifier) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			source_id        = excluded.source_id,
			image_identifier = excluded.image_identifier`,
		p.ID, mapIntNull(p.SourceID), p.ImageIdentifier,
	)
	return err
}
