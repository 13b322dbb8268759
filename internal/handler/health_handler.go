package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string   `json:"status"`
	Database      string   `json:"database"`
	MissingTables []string `json:"missingTables,omitempty"`
	Clients       int      `json:"clients"`
}

// HealthHandler reports database reachability and schema completeness.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok"}
	if h.registry != nil {
		resp.Clients = h.registry.Len()
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			h.log.Error("база данных недоступна", slog.String("error", err.Error()))
			resp.Status = "unavailable"
			resp.Database = "unavailable"
			writeSuccess(w, resp, http.StatusServiceUnavailable)
			return
		}
	}

	if h.schema != nil {
		missing, err := h.schema.MissingTables(ctx)
		if err != nil {
			h.log.Error("ошибка проверки схемы", slog.String("error", err.Error()))
			writeError(w, "не удалось проверить схему базы данных", http.StatusServiceUnavailable)
			return
		}
		if len(missing) > 0 {
			resp.Status = "degraded"
			resp.MissingTables = missing
			writeSuccess(w, resp, http.StatusServiceUnavailable)
			return
		}
	}

	writeSuccess(w, resp, http.StatusOK)
}
