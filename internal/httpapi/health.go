package httpapi

import (
	"net/http"
	"time"

	"storefront-be/internal/utils"
)

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, "ok", map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"metrics":   h.metrics.Snapshot(),
	})
}
