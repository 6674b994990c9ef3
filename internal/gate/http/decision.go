package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/wdb/iiifgate/internal/gate/service"
	"github.com/wdb/iiifgate/pkg/gatesdk"
	"github.com/wdb/iiifgate/pkg/httpx"
	"github.com/wdb/iiifgate/pkg/slogx"
)

const reasonInvalidRequest = "Invalid request."

// DecisionHandler serves POST /wdb/api/cantaloupe_auth for the image
// server's delegate hook.
//
// The body always carries a verdict. The status is 200 when a decision was
// reached, 404 when the subsystem has no configuration, 400 for a malformed
// body and 500 when the check itself failed.
type DecisionHandler struct {
	DecisionService *service.DecisionService
}

// ServeHTTP decides one tile request.
//
//	@Summary		Authorize a tile request
//	@Description	Called by the image server delegate for every tile. Tokens are checked before session cookies.
//	@Tags			decision
//	@Accept			json
//	@Produce		json
//	@Param			request	body		gatesdk.DecisionRequest		true	"Tile request context"
//	@Success		200		{object}	gatesdk.DecisionResponse	"Verdict"
//	@Failure		400		{object}	gatesdk.DecisionResponse	"Malformed body"
//	@Failure		404		{object}	gatesdk.DecisionResponse	"Subsystem not configured"
//	@Failure		429		{object}	gatesdk.ErrorResponse		"Rate limited"
//	@Failure		500		{object}	gatesdk.DecisionResponse	"Check failed"
//	@Router			/wdb/api/cantaloupe_auth [post].
func (h *DecisionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req gatesdk.DecisionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		log.Warn("malformed decision request", slog.Any("err", err))
		httpx.WriteJSON(w, http.StatusBadRequest, gatesdk.DecisionResponse{Reason: reasonInvalidRequest})
		return
	}

	d := h.DecisionService.Decide(ctx, service.DecisionRequest{
		Identifier: req.Identifier,
		RequestURI: req.RequestURI,
		ClientIP:   req.ClientIP,
		Headers:    req.RequestHeaders,
		Cookies:    req.Cookies,
		Token:      req.Token,
	})

	log.Debug("authorization decision",
		slog.String("identifier", req.Identifier),
		slog.Bool("authorized", d.Authorized),
		slog.String("path", string(d.Path)),
		slog.String("reason", d.Reason),
	)

	httpx.WriteJSON(w, decisionStatus(d), gatesdk.DecisionResponse{
		Authorized: d.Authorized,
		Reason:     d.Reason,
	})
}

func decisionStatus(d service.Decision) int {
	switch {
	case d.Authorized:
		return http.StatusOK
	case errors.Is(d.Err, service.ErrSubsystemNotFound):
		return http.StatusNotFound
	case errors.Is(d.Err, service.ErrInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
