package credential

import (
	"log/slog"
	"net/http"

	"bookedge/pkg/platform/httputil"
	"bookedge/pkg/requestcontext"
)

// APIKeyHeader is the header first-party machine callers present.
const APIKeyHeader = "x-api-key"

// RequireAPIKey guards a route with a shared-secret check. GET requests pass
// unauthenticated so callers can probe route availability.
func RequireAPIKey(verifier *SharedSecret, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			if err := verifier.Verify(r.Header.Get(APIKeyHeader)); err != nil {
				logger.WarnContext(r.Context(), "api key rejected",
					"path", r.URL.Path,
					"ip", requestcontext.ClientIP(r.Context()),
					"device", requestcontext.DeviceLabel(r.Context()),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
