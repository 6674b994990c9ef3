package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wdb/iiifgate/internal/gate/domain"
	"github.com/wdb/iiifgate/internal/gate/service"
	"github.com/wdb/iiifgate/internal/gate/session"
	"github.com/wdb/iiifgate/internal/gate/store"
	"github.com/wdb/iiifgate/pkg/gatesdk"
	"github.com/wdb/iiifgate/pkg/httpx"
	"github.com/wdb/iiifgate/pkg/slogx"
)

// SessionMiddleware identifies the caller from the host application's
// session cookie. Requests without a resolvable session continue as
// anonymous.
func SessionMiddleware(resolver *session.Resolver, cookieName string) httpx.Middleware {
	return httpx.PrincipalMiddleware(func(r *http.Request) (int64, bool) {
		if resolver == nil {
			return 0, false
		}
		sids := session.Candidates(r.Header.Values("Cookie"), cookieName)
		if len(sids) == 0 {
			return 0, false
		}
		return resolver.ResolveFirst(r.Context(), sids)
	})
}

// TokenHandler serves GET /wdb/api/iiif_token/{page}: a fresh token for the
// image of one page, issued to the calling session's principal.
type TokenHandler struct {
	RefreshService *service.RefreshService
	Store          store.Store
}

// ServeHTTP issues the token.
//
//	@Summary		Issue a viewer token
//	@Description	Returns a token bound to the page's image and the calling session's principal.
//	@Tags			token
//	@Produce		json
//	@Param			page	path		int							true	"Page ID"
//	@Success		200		{object}	gatesdk.AuthContextResponse	"Token and refresh settings"
//	@Failure		403		{object}	gatesdk.ErrorResponse		"No permission for the page"
//	@Failure		404		{object}	gatesdk.ErrorResponse		"Unknown page or no image"
//	@Failure		429		{object}	gatesdk.ErrorResponse		"Rate limited"
//	@Failure		500		{object}	gatesdk.ErrorResponse		"Issuing failed"
//	@Router			/wdb/api/iiif_token/{page} [get].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	pageID, err := strconv.ParseInt(r.PathValue("page"), 10, 64)
	if err != nil || pageID <= 0 {
		gatesdk.ErrPageNotFound.WriteError(w)
		return
	}

	principal, err := h.principal(r)
	if err != nil {
		log.Error("failed to load principal", slog.Any("err", err))
		gatesdk.ErrServerError.WriteError(w)
		return
	}

	ac, err := h.RefreshService.AuthContext(ctx, pageID, principal)
	switch {
	case errors.Is(err, service.ErrPageNotFound):
		gatesdk.ErrPageNotFound.WriteError(w)
		return
	case errors.Is(err, service.ErrForbidden):
		gatesdk.ErrForbidden.WriteError(w)
		return
	case err != nil:
		log.Error("failed to issue token", slog.Int64("page", pageID), slog.Any("err", err))
		gatesdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gatesdk.AuthContextResponse{
		Token:      ac.Token,
		Param:      ac.Param,
		TTL:        int64(ac.TTL.Seconds()),
		RefreshURL: ac.RefreshURL,
	})
}

// principal loads the caller identified by SessionMiddleware. Anonymous and
// unknown callers get a principal without permissions.
func (h *TokenHandler) principal(r *http.Request) (domain.Principal, error) {
	id, _ := httpx.PrincipalIDFromContext(r.Context())
	if id <= domain.AnonymousID {
		return domain.Principal{ID: domain.AnonymousID}, nil
	}

	p, err := h.Store.Principals().GetPrincipalByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Principal{ID: id}, nil
	}
	return p, err
}
