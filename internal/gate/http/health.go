package http

import (
	"net/http"
	"time"

	"github.com/wdb/iiifgate/internal/gate/store"
	"github.com/wdb/iiifgate/pkg/gatesdk"
	"github.com/wdb/iiifgate/pkg/httpx"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
)

// LivezHandler always answers 200 while the process is serving.
//
//	@Summary	Liveness probe
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	gatesdk.HealthResponse
//	@Router		/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, gatesdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports 503 when the store, the signing secret or a session
// backend is unavailable.
//
//	@Summary	Readiness probe
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	gatesdk.HealthResponse
//	@Failure	503	{object}	gatesdk.HealthResponse	"A dependency is unavailable"
//	@Router		/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	codec *iiiftoken.Codec,
	sessions ...Pinger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &gatesdk.HealthChecks{
			Database: "ok",
			Secret:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		degrade := func(field *string, err error) {
			*field = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := st.Ping(r.Context()); err != nil {
			degrade(&checks.Database, err)
		}

		if err := codec.Ready(); err != nil {
			degrade(&checks.Secret, err)
		}

		if len(sessions) > 0 {
			checks.Sessions = "ok"
			for _, p := range sessions {
				if err := p.Ping(r.Context()); err != nil {
					degrade(&checks.Sessions, err)
					break
				}
			}
		}

		httpx.WriteJSON(w, statusCode, gatesdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
