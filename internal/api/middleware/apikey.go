package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"

	"github.com/vibranic/central/internal/metrics"
	"github.com/vibranic/central/internal/models"
	"github.com/vibranic/central/internal/storage"
)

// Context keys for request-scoped values.
type contextKey string

const appKey contextKey = "app"

// jsonIngestError writes a flat error response in the ingestion wire
// format, which has no envelope.
func jsonIngestError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// APIKeyAuth returns middleware that resolves the X-API-Key header to a
// registered application and stores it in the request context.
func APIKeyAuth(apps storage.AppRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				metrics.AuthFailures.WithLabelValues("missing_key").Inc()
				jsonIngestError(w, http.StatusUnauthorized, "Missing API key")
				return
			}

			app, err := apps.GetByAPIKey(r.Context(), key)
			if err != nil {
				log.Printf("API key lookup failed: %v", err)
				jsonIngestError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if app == nil {
				metrics.AuthFailures.WithLabelValues("invalid_key").Inc()
				jsonIngestError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithApp(r.Context(), app)))
		})
	}
}

// WithApp returns a context carrying the authenticated application.
func WithApp(ctx context.Context, app *models.App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// GetApp returns the authenticated application from context.
func GetApp(ctx context.Context) *models.App {
	if v := ctx.Value(appKey); v != nil {
		if app, ok := v.(*models.App); ok {
			return app
		}
	}
	return nil
}

// ClientIP extracts the client IP from the request.
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP
		if ip, _, err := net.SplitHostPort(xff); err == nil {
			return ip
		}
		return xff
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
