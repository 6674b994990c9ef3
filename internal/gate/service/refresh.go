package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/wdb/iiifgate/internal/gate/access"
	"github.com/wdb/iiifgate/internal/gate/domain"
	"github.com/wdb/iiifgate/internal/gate/store"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
	"github.com/wdb/iiifgate/pkg/slogx"
)

// DefaultRefreshPath is the refresh endpoint pattern; {page} is replaced by
// the page id.
const DefaultRefreshPath = "/wdb/api/iiif_token/{page}"

// RefreshService builds the token context a viewer needs to load (and keep
// loading) the tiles of one page.
type RefreshService struct {
	Store   store.Store
	Codec   *iiiftoken.Codec
	TTL     time.Duration
	Param   string
	Metrics *Metrics

	// RefreshPath is DefaultRefreshPath when empty.
	RefreshPath string

	// NewPolicy builds the access policy for one request. Defaults to
	// access.New over Store.
	NewPolicy func() access.Checker
}

// AuthContext returns a fresh token for the image of page pageID, scoped to
// principal.
func (s *RefreshService) AuthContext(ctx context.Context, pageID int64, principal domain.Principal) (domain.AuthContext, error) {
	l := slogx.FromContext(ctx)

	page, err := s.Store.Pages().GetPageByID(ctx, pageID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AuthContext{}, fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	if err != nil {
		return domain.AuthContext{}, fmt.Errorf("load page %d: %w", pageID, err)
	}

	if page.Subsystem == "" {
		l.Debug("page has no subsystem", slog.Int64("page", pageID))
		return domain.AuthContext{}, fmt.Errorf("%w: page %d has no subsystem", ErrPageNotFound, pageID)
	}

	// Same requirement as the decision engine: the subsystem's own permission.
	policy := s.policy()
	if !policy.UserHasAccess(ctx, page.Subsystem, principal, "") {
		l.Warn("token refresh denied",
			slog.Int64("page", pageID),
			slog.String("subsystem", page.Subsystem),
			slog.Int64("principal", principal.ID),
		)
		return domain.AuthContext{}, ErrForbidden
	}

	if strings.TrimSpace(page.ImageIdentifier) == "" {
		return domain.AuthContext{}, fmt.Errorf("%w: page %d has no image identifier", ErrPageNotFound, pageID)
	}

	authCtx, err := s.IssueContext(page.Subsystem, page.ImageIdentifier, principal.ID, s.Codec.NewIssuer(s.TTL))
	if err != nil {
		return domain.AuthContext{}, err
	}
	authCtx.RefreshURL = s.refreshURL(pageID)
	return authCtx, nil
}

// IssueContext issues a token through issuer and wraps it with the
// parameter name and lifetime a client needs to use it.
func (s *RefreshService) IssueContext(subsystem, identifier string, principalID int64, issuer *iiiftoken.Issuer) (domain.AuthContext, error) {
	token, err := issuer.Issue(subsystem, identifier, principalID)
	if err != nil {
		return domain.AuthContext{}, fmt.Errorf("issue token: %w", err)
	}
	s.Metrics.observeTokenIssued()

	return domain.AuthContext{
		Token: token,
		Param: iiiftoken.ParamName(s.Param),
		TTL:   issuer.TTL(),
	}, nil
}

func (s *RefreshService) refreshURL(pageID int64) string {
	path := s.RefreshPath
	if path == "" {
		path = DefaultRefreshPath
	}
	return strings.ReplaceAll(path, "{page}", strconv.FormatInt(pageID, 10))
}

func (s *RefreshService) policy() access.Checker {
	if s.NewPolicy != nil {
		return s.NewPolicy()
	}
	return access.New(s.Store.Subsystems())
}
