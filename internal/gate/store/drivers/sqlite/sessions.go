package sqlite

import (
	"context"
	"time"

	"github.com/wdb/iiifgate/internal/gate/domain"
)

type sessionsRepo struct {
	q querier
}

func (r *sessionsRepo) GetSession(ctx context.Context, sid string) (domain.RawSession, error) {
	var (
		s         domain.RawSession
		timestamp int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT sid, uid, session, timestamp FROM sessions WHERE sid = ? LIMIT 1`, sid,
	).Scan(&s.SID, &s.UID, &s.Payload, &timestamp)
	if err != nil {
		return domain.RawSession{}, mapNotFound(err)
	}
	s.Timestamp = time.Unix(timestamp, 0).UTC()
	return s, nil
}

func (r *sessionsRepo) PutSession(ctx context.Context, s domain.RawSession) error {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (sid, uid, session, timestamp) VALUES (?, ?, ?, ?)
		ON CONFLICT (sid) DO UPDATE SET
			uid       = excluded.uid,
			session   = excluded.session,
			timestamp = excluded.timestamp`,
		s.SID, s.UID, s.Payload, ts.Unix(),
	)
	return err
}

func (r *sessionsRepo) DeleteSessionsBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE timestamp < ?`, t.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
