// Package admin guards operator endpoints (refresh, tenant listing, cleanup
// audits) behind a shared token.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"regexp"

	dErrors "tenantgate/pkg/domain-errors"
	"tenantgate/pkg/platform/httputil"
)

const (
	// TokenHeader carries the shared admin token.
	TokenHeader = "X-Admin-Token"
	// ActorHeader optionally names the operator for log attribution.
	ActorHeader = "X-Admin-Actor-ID"

	maxActorIDLength = 64
)

// Actor ids end up in logs, so only a conservative alphabet is kept.
var actorPattern = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)

type ctxKey int

const (
	adminKey ctxKey = iota
	actorKey
)

// WithActorID returns ctx marked as an admin request made by actorID.
func WithActorID(ctx context.Context, actorID string) context.Context {
	ctx = context.WithValue(ctx, adminKey, true)
	if actorID != "" {
		ctx = context.WithValue(ctx, actorKey, actorID)
	}
	return ctx
}

// ActorID returns the operator named by X-Admin-Actor-ID, or "".
func ActorID(ctx context.Context) string {
	v, _ := ctx.Value(actorKey).(string)
	return v
}

// IsAdminRequest reports whether the request passed RequireAdminToken.
func IsAdminRequest(ctx context.Context) bool {
	ok, _ := ctx.Value(adminKey).(bool)
	return ok
}

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expectedToken. An empty expectedToken rejects everything, so admin
// endpoints stay closed until a token is configured.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	expected := []byte(expectedToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			given := []byte(r.Header.Get(TokenHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(given, expected) != 1 {
				logger.WarnContext(ctx, "admin_request_rejected",
					"method", r.Method,
					"path", r.URL.Path,
					"token_present", len(given) > 0,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			actor := r.Header.Get(ActorHeader)
			if !validActorID(actor) {
				actor = ""
			}
			next.ServeHTTP(w, r.WithContext(WithActorID(ctx, actor)))
		})
	}
}

func validActorID(id string) bool {
	return id != "" && len(id) <= maxActorIDLength && actorPattern.MatchString(id)
}
