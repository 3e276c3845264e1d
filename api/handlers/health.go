package handlers

import (
	"net/http"
	"time"

	"github.com/BaSui01/blockbench/session"
)

// HealthHandler reports service liveness and pool occupancy.
type HealthHandler struct {
	manager   *session.Manager
	startedAt time.Time
}

// NewHealthHandler builds the health endpoint handler.
func NewHealthHandler(manager *session.Manager) *HealthHandler {
	return &HealthHandler{manager: manager, startedAt: time.Now()}
}

// HandleHealth serves GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]any{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(h.startedAt).Seconds()),
		"active_sessions": h.manager.Active(),
		"max_sessions":    h.manager.Capacity(),
	})
}

// HandleVersion serves GET /version.
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]any{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}
