package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	channels []string
}

// NewHealthHandler reports the delivery chain on /health-check/channels.
func NewHealthHandler(channels []string) *HealthHandler { return &HealthHandler{channels: channels} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "channels":
		writeJSON(w, http.StatusOK, map[string][]string{"channels": h.channels})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
