package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronwang/auction-ledger/internal/models"
)

type stubSource struct {
	itemID uint64
	limit  int
	events []*models.Event
	err    error
}

func (s *stubSource) GetBidHistory(_ context.Context, itemID uint64, limit int) ([]*models.Event, error) {
	s.itemID = itemID
	s.limit = limit
	return s.events, s.err
}

func get(t *testing.T, src Source, path string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewHandler(src, zerolog.Nop()).SetupRoutes()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetBidHistory(t *testing.T) {
	src := &stubSource{events: []*models.Event{
		{EventID: "e2", Type: models.EventHighestBidIncreased, ItemID: 7, Account: "0xbob", Amount: "15", Timestamp: time.Now().UTC()},
		{EventID: "e1", Type: models.EventHighestBidIncreased, ItemID: 7, Account: "0xalice", Amount: "10", Timestamp: time.Now().UTC()},
	}}

	rec := get(t, src, "/api/v1/items/7/bids")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(7), src.itemID)
	assert.Equal(t, defaultLimit, src.limit)

	var body struct {
		ItemID uint64          `json:"item_id"`
		Bids   []*models.Event `json:"bids"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, uint64(7), body.ItemID)
	require.Len(t, body.Bids, 2)
	assert.Equal(t, "15", body.Bids[0].Amount)
}

func TestGetBidHistory_EmptyIsNotNull(t *testing.T) {
	rec := get(t, &stubSource{}, "/api/v1/items/7/bids")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"bids":[]`)
}

func TestGetBidHistory_Limit(t *testing.T) {
	src := &stubSource{}
	rec := get(t, src, "/api/v1/items/7/bids?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, src.limit)

	rec = get(t, src, "/api/v1/items/7/bids?limit=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxLimit, src.limit)

	rec = get(t, src, "/api/v1/items/7/bids?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, src, "/api/v1/items/7/bids?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBidHistory_MalformedID(t *testing.T) {
	rec := get(t, &stubSource{}, "/api/v1/items/notanid/bids")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBidHistory_SourceError(t *testing.T) {
	rec := get(t, &stubSource{err: errors.New("connection refused")}, "/api/v1/items/7/bids")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
