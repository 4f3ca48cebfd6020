package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/envelope"
)

// HealthHandler responds with service health information. When Ready is set the database is
// pinged as part of the check.
type HealthHandler struct {
	Ready func(ctx context.Context) error
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Ready != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.Ready(pingCtx); err != nil {
			envelope.WriteError(ctx, w, apperr.Dependency(err, "database unavailable"))
			return
		}
	}
	envelope.Write(ctx, w, http.StatusOK, map[string]string{"status": "ok"}, "Service is healthy")
}
