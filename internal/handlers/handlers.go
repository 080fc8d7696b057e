// Package handlers exposes the auction ledger and voting registry over
// HTTP. The caller's identity arrives in the X-Account header; the
// gateway trusts it the way a chain node trusts a signed sender.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/aaronwang/auction-ledger/internal/bank"
	"github.com/aaronwang/auction-ledger/internal/ledger"
	"github.com/aaronwang/auction-ledger/internal/models"
	"github.com/aaronwang/auction-ledger/internal/service"
	"github.com/aaronwang/auction-ledger/internal/voting"
)

// AccountHeader carries the caller identity on every mutating request.
const AccountHeader = "X-Account"

// Handler contains the HTTP request handlers.
type Handler struct {
	svc *service.Service
	log zerolog.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc *service.Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: logger}
}

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/items", h.CreateItem).Methods("POST")
	api.HandleFunc("/items", h.GetAllItems).Methods("GET")
	api.HandleFunc("/items/active", h.GetActiveItems).Methods("GET")
	api.HandleFunc("/items/{id}", h.GetItem).Methods("GET")
	api.HandleFunc("/items/{id}/bid", h.PlaceBid).Methods("POST")
	api.HandleFunc("/items/{id}/withdraw", h.Withdraw).Methods("POST")
	api.HandleFunc("/items/{id}/end", h.EndAuction).Methods("POST")
	api.HandleFunc("/items/{id}/can-end", h.CanEndAuction).Methods("GET")
	api.HandleFunc("/items/{id}/pending/{account}", h.GetPendingReturn).Methods("GET")

	api.HandleFunc("/accounts/deposit", h.Deposit).Methods("POST")
	api.HandleFunc("/accounts/{account}/balance", h.GetBalance).Methods("GET")

	api.HandleFunc("/topics", h.CreateTopic).Methods("POST")
	api.HandleFunc("/topics", h.GetAllTopics).Methods("GET")
	api.HandleFunc("/topics/{id}", h.GetTopic).Methods("GET")
	api.HandleFunc("/topics/{id}/vote", h.Vote).Methods("POST")
	api.HandleFunc("/topics/{id}/voted/{account}", h.HasVoted).Methods("GET")

	router.Use(h.loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "gateway",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateItem lists a new item for auction.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	var req models.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.svc.CreateItem(caller, req.Name, req.DurationSeconds)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateItemResponse{
		ItemID:  item.ID,
		EndTime: item.EndTime.Unix(),
	})
}

// GetItem returns a snapshot of one item.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}

	item, found := h.svc.Ledger.GetItem(id)
	if !found {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// GetAllItems returns every item ever created.
func (h *Handler) GetAllItems(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Ledger.GetAllItems())
}

// GetActiveItems returns items still open for bidding.
func (h *Handler) GetActiveItems(w http.ResponseWriter, r *http.Request) {
	items := h.svc.Ledger.GetActiveItems()
	if items == nil {
		items = []ledger.Item{}
	}
	respondJSON(w, http.StatusOK, items)
}

// PlaceBid handles bid placement requests.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := itemID(r)
	if !ok {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}

	var req models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.PlaceBid(id, caller, req.Amount); err != nil {
		if errors.Is(err, ledger.ErrBidTooLow) {
			item, _ := h.svc.Ledger.GetItem(id)
			respondJSON(w, http.StatusConflict, models.BidResponse{
				Success:    false,
				Message:    "Bid too low. Current highest bid is " + item.HighestBid.String(),
				CurrentBid: item.HighestBid,
				YourBid:    req.Amount,
				IsHighest:  false,
			})
			return
		}
		h.respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, models.BidResponse{
		Success:    true,
		Message:    "Bid placed successfully!",
		CurrentBid: req.Amount,
		YourBid:    req.Amount,
		IsHighest:  true,
	})
}

// Withdraw pays out the caller's escrow balance for an item.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := itemID(r)
	if !ok {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}

	amount, err := h.svc.Withdraw(id, caller)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.WithdrawResponse{Amount: amount})
}

// EndAuction finalizes an item past its deadline.
func (h *Handler) EndAuction(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAccount(w, r); !ok {
		return
	}
	id, ok := itemID(r)
	if !ok {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}

	if err := h.svc.EndAuction(id); err != nil {
		h.respondLedgerError(w, err)
		return
	}

	item, _ := h.svc.Ledger.GetItem(id)
	respondJSON(w, http.StatusOK, item)
}

// CanEndAuction reports whether an item is ready to finalize.
func (h *Handler) CanEndAuction(w http.ResponseWriter, r *http.Request) {
	id, _ := itemID(r)
	respondJSON(w, http.StatusOK, map[string]bool{"can_end": h.svc.Ledger.CanEndAuction(id)})
}

// GetPendingReturn returns an account's refundable balance for an item.
func (h *Handler) GetPendingReturn(w http.ResponseWriter, r *http.Request) {
	id, _ := itemID(r)
	account := models.Account(mux.Vars(r)["account"])
	respondJSON(w, http.StatusOK, models.WithdrawResponse{
		Amount: h.svc.Ledger.GetPendingReturn(id, account),
	})
}

// Deposit funds the caller's account.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	var req models.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.Deposit(caller, req.Amount); err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.BalanceResponse{
		Account: caller,
		Balance: h.svc.Bank.Balance(caller),
	})
}

// GetBalance returns an account's spendable balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := models.Account(mux.Vars(r)["account"])
	respondJSON(w, http.StatusOK, models.BalanceResponse{
		Account: account,
		Balance: h.svc.Bank.Balance(account),
	})
}

// CreateTopic opens a new voting topic.
func (h *Handler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	var req models.CreateTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	topic, err := h.svc.CreateTopic(caller, req.Title, req.DurationSeconds)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.CreateTopicResponse{
		TopicID:  topic.ID,
		Deadline: topic.Deadline.Unix(),
	})
}

// GetAllTopics returns every topic ever created.
func (h *Handler) GetAllTopics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Voting.GetAllTopics())
}

// GetTopic returns a snapshot of one topic.
func (h *Handler) GetTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		respondError(w, http.StatusNotFound, "Topic not found")
		return
	}
	topic, found := h.svc.Voting.GetTopic(id)
	if !found {
		respondError(w, http.StatusNotFound, "Topic not found")
		return
	}
	respondJSON(w, http.StatusOK, topic)
}

// Vote casts the caller's vote on a topic.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := itemID(r)
	if !ok {
		respondError(w, http.StatusNotFound, "Topic not found")
		return
	}

	var req models.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.Vote(id, caller, req.Support); err != nil {
		h.respondLedgerError(w, err)
		return
	}
	topic, _ := h.svc.Voting.GetTopic(id)
	respondJSON(w, http.StatusOK, topic)
}

// HasVoted reports whether an account already voted on a topic.
func (h *Handler) HasVoted(w http.ResponseWriter, r *http.Request) {
	id, _ := itemID(r)
	account := models.Account(mux.Vars(r)["account"])
	respondJSON(w, http.StatusOK, models.HasVotedResponse{
		TopicID: id,
		Account: account,
		Voted:   h.svc.Voting.HasVoted(id, account),
	})
}

// requireAccount extracts the caller identity or writes a 401.
func (h *Handler) requireAccount(w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	account := models.Account(r.Header.Get(AccountHeader))
	if account.IsNone() {
		respondError(w, http.StatusUnauthorized, "Missing "+AccountHeader+" header")
		return models.None, false
	}
	return account, true
}

// itemID parses the {id} path variable.
func itemID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// respondLedgerError maps domain failures onto HTTP statuses.
func (h *Handler) respondLedgerError(w http.ResponseWriter, err error) {
	respondError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrItemNotFound),
		errors.Is(err, voting.ErrTopicNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrEmptyName),
		errors.Is(err, ledger.ErrInvalidDuration),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidAccount),
		errors.Is(err, voting.ErrEmptyTitle),
		errors.Is(err, voting.ErrInvalidDuration),
		errors.Is(err, voting.ErrInvalidAccount),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrInvalidAccount):
		return http.StatusBadRequest
	case errors.Is(err, bank.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrAuctionClosed),
		errors.Is(err, ledger.ErrAuctionAlreadyEnded),
		errors.Is(err, ledger.ErrAuctionNotYetEnded),
		errors.Is(err, ledger.ErrSelfBid),
		errors.Is(err, ledger.ErrBidTooLow),
		errors.Is(err, voting.ErrVotingClosed),
		errors.Is(err, voting.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
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

// loggingMiddleware logs all HTTP requests.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// corsMiddleware adds CORS headers for the web client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+AccountHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
