package history

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/aaronwang/auction-ledger/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Source reads archived bid events.
type Source interface {
	GetBidHistory(ctx context.Context, itemID uint64, limit int) ([]*models.Event, error)
}

// Handler serves read-only queries over the event archive.
type Handler struct {
	src Source
	log zerolog.Logger
}

// NewHandler creates a new archive query handler.
func NewHandler(src Source, logger zerolog.Logger) *Handler {
	return &Handler{src: src, log: logger}
}

// SetupRoutes configures the archive query routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/items/{id}/bids", h.GetBidHistory).Methods("GET")

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	return router
}

// GetBidHistory returns the archived bids for an item, newest first.
func (h *Handler) GetBidHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if parsed > maxLimit {
			parsed = maxLimit
		}
		limit = parsed
	}

	bids, err := h.src.GetBidHistory(r.Context(), id, limit)
	if err != nil {
		h.log.Error().Err(err).Uint64("item_id", id).Msg("failed to load bid history")
		respondError(w, http.StatusInternalServerError, "Failed to load bid history")
		return
	}
	if bids == nil {
		bids = []*models.Event{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item_id": id,
		"bids":    bids,
	})
}

// HealthCheck returns service health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "archiver",
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
