package httpx

import (
	"context"
	"net/http"
)

type ctxKey string

const CtxKeyPrincipalID ctxKey = "principal_id"

// WithPrincipalID stores the caller's principal id. 0 is anonymous.
func WithPrincipalID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, CtxKeyPrincipalID, id)
}

// PrincipalIDFromContext returns the id set by PrincipalMiddleware. ok is
// false when no middleware ran.
func PrincipalIDFromContext(ctx context.Context) (id int64, ok bool) {
	id, ok = ctx.Value(CtxKeyPrincipalID).(int64)
	return id, ok
}

// PrincipalResolver identifies the caller of a request. It returns false for
// anonymous callers.
type PrincipalResolver func(r *http.Request) (int64, bool)

// PrincipalMiddleware resolves the caller once per request and stores the
// result in the context. Anonymous callers pass through with id 0.
func PrincipalMiddleware(resolve PrincipalResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := resolve(r)
			if !ok {
				id = 0
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipalID(r.Context(), id)))
		})
	}
}
