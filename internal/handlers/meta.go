package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/inaiurai/whitelist/internal/region"
)

// --- GET /api/regions ---

// ListRegions handles GET /api/regions (public, no auth).
func ListRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"regions": region.All()})
}

// --- GET /healthz ---

// HealthCheck pings one backing dependency.
type HealthCheck func(ctx context.Context) error

// Health reports ok when every named check passes within two seconds.
func Health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failed": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
