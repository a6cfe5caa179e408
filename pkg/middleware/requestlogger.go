package middleware

import (
	"log/slog"
	"net/http"

	"github.com/suivie/storefront/pkg/logger"
)

// ProfileHeader selects the browser profile whose cart a request acts on.
const ProfileHeader = "X-Profile-ID"

// RequestLogger stores a logger enriched with correlation_id, profile_id,
// trace_id and span_id in the request context. Mount it after RequestLogging
// and Tracing so those values are already present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if profile := r.Header.Get(ProfileHeader); profile != "" {
				ctx = logger.WithProfileID(ctx, profile)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
