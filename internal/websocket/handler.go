package websocket

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client is served from another origin.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections.
type Handler struct {
	manager *Manager
	log     zerolog.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(manager *Manager, logger zerolog.Logger) *Handler {
	return &Handler{manager: manager, log: logger}
}

// SetupRoutes configures WebSocket routes. Items and voting topics share
// the manager; the path picks the channel key.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/ws/items/{id}", h.handleWebSocket("items")).Methods("GET")
	router.HandleFunc("/ws/topics/{id}", h.handleWebSocket("topics")).Methods("GET")

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/stats/items/{id}", h.statsHandler("items")).Methods("GET")
	router.HandleFunc("/stats/topics/{id}", h.statsHandler("topics")).Methods("GET")

	return router
}

func (h *Handler) handleWebSocket(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if id == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		key := kind + ":" + id

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("failed to upgrade connection")
			return
		}

		client := &Client{
			ID:   uuid.New().String(),
			Key:  key,
			Conn: conn,
			Send: make(chan []byte, 256),
		}

		h.manager.RegisterClient(client)
		client.StartReadPump(h.manager.unregister)

		welcome := fmt.Sprintf(`{"type":"connected","key":%q,"client_id":%q}`, key, client.ID)
		client.Send <- []byte(welcome)
	}
}

// HealthCheck returns service health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"broadcast"}`)
}

func (h *Handler) statsHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		key := kind + ":" + id
		count := h.manager.GetSubscriberCount(key)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"key":%q,"subscribers":%d}`, key, count)
	}
}
