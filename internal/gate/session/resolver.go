package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/wdb/iiifgate/pkg/slogx"
	"golang.org/x/sync/singleflight"
)

// Resolver maps a session id to the principal that owns it. It consults the
// session handler first and falls back to the raw sessions table. Lookup
// failures are never surfaced; they resolve to "no principal".
type Resolver struct {
	reader Reader
	raw    RawStore
	group  singleflight.Group
}

// NewResolver builds a Resolver. Either source may be nil.
func NewResolver(reader Reader, raw RawStore) *Resolver {
	return &Resolver{reader: reader, raw: raw}
}

// Resolve returns the principal id for sid and whether it is a real
// (positive) principal. Concurrent lookups of the same sid share one read.
func (r *Resolver) Resolve(ctx context.Context, sid string) (int64, bool) {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return 0, false
	}

	// The shared read must not end when the first caller goes away.
	v, _, _ := r.group.Do(sid, func() (any, error) {
		return r.lookup(context.WithoutCancel(ctx), sid), nil
	})
	id, _ := v.(int64)
	return id, id > 0
}

// ResolveFirst tries each sid in order and returns the first positive
// principal.
func (r *Resolver) ResolveFirst(ctx context.Context, sids []string) (int64, bool) {
	for _, sid := range sids {
		if id, ok := r.Resolve(ctx, sid); ok {
			return id, true
		}
	}
	return 0, false
}

func (r *Resolver) lookup(ctx context.Context, sid string) int64 {
	l := slogx.FromContext(ctx)

	if r.reader != nil {
		blob, err := r.reader.Read(ctx, sid)
		switch {
		case err != nil:
			l.Debug("session handler read failed", slog.Any("err", err))
		case len(blob) > 0:
			if id, ok := ExtractPrincipalID(blob); ok && id > 0 {
				return id
			}
		}
	}

	if r.raw == nil {
		return 0
	}

	row, err := r.raw.GetSession(ctx, sid)
	if err != nil {
		l.Debug("session table lookup failed", slog.Any("err", err))
		return 0
	}
	if row.UID > 0 {
		return row.UID
	}
	if id, ok := ExtractPrincipalID(row.Payload); ok && id > 0 {
		return id
	}
	return 0
}
