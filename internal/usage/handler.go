package usage

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// DefaultWindow is how far back a summary looks when no since is given.
const DefaultWindow = 24 * time.Hour

// Handler is the API layer for the usage ledger.
type Handler struct {
	service Service
}

// NewHandler is the constructor for the handler.
func NewHandler(s Service) *Handler {
	return &Handler{
		service: s,
	}
}

// RegisterRoutes sets up the API routes for this handler.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/usage/summary", h.handleSummary)
}

type summaryResponse struct {
	Since     time.Time  `json:"since"`
	Summaries []*Summary `json:"summaries"`
}

// handleSummary returns per mode and status aggregates. The window start is
// read from the RFC 3339 "since" query parameter.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-DefaultWindow).UTC()
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since format, want RFC 3339")
			return
		}
		if parsed.After(time.Now()) {
			writeError(w, http.StatusBadRequest, "since must not be in the future")
			return
		}
		since = parsed
	}

	summaries, err := h.service.Summary(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not summarize usage")
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{Since: since, Summaries: summaries})
}

// writeJSON is a helper function for sending json responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for sending a standardized json error.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}
