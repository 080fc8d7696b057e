package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronwang/auction-ledger/internal/bank"
	"github.com/aaronwang/auction-ledger/internal/events"
	"github.com/aaronwang/auction-ledger/internal/ledger"
	"github.com/aaronwang/auction-ledger/internal/models"
	"github.com/aaronwang/auction-ledger/internal/service"
	"github.com/aaronwang/auction-ledger/internal/voting"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRouter(t *testing.T) (*mux.Router, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	accounts := bank.New()
	fan := service.NewFan(events.Nop{}, zerolog.Nop())
	l := ledger.New(accounts.Credit, ledger.WithClock(clock.Now), ledger.WithSink(fan))
	v := voting.New(voting.WithClock(clock.Now), voting.WithSink(fan))
	svc := service.New(l, v, accounts, zerolog.Nop())
	return NewHandler(svc, zerolog.Nop()).SetupRoutes(), clock
}

func doJSON(t *testing.T, router *mux.Router, method, path string, account string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if account != "" {
		req.Header.Set(AccountHeader, account)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestMutationsRequireAccountHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/items",
		"/api/v1/items/1/bid",
		"/api/v1/items/1/withdraw",
		"/api/v1/items/1/end",
		"/api/v1/accounts/deposit",
		"/api/v1/topics",
		"/api/v1/topics/1/vote",
	} {
		rec := doJSON(t, router, http.MethodPost, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestCreateItem(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/items", "0xseller", models.CreateItemRequest{
		Name:            "vase",
		DurationSeconds: 3600,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[models.CreateItemResponse](t, rec)
	assert.Equal(t, uint64(1), resp.ItemID)

	// Over the duration bound: rejected, and no id consumed.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/items", "0xseller", models.CreateItemRequest{
		Name:            "vase",
		DurationSeconds: int64((ledger.MaxDuration + time.Hour) / time.Second),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/items", "0xseller", models.CreateItemRequest{
		Name:            "sculpture",
		DurationSeconds: 3600,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(2), decode[models.CreateItemResponse](t, rec).ItemID)
}

func TestGetItem(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/items", "0xseller", models.CreateItemRequest{Name: "vase", DurationSeconds: 3600})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/items/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	item := decode[ledger.Item](t, rec)
	assert.Equal(t, "vase", item.Name)
	assert.False(t, item.Ended)

	// Unknown and malformed ids are both "not found", never an error page.
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/v1/items/99", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/v1/items/notanid", "", nil).Code)
}

func TestBidFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/items", "0xseller", models.CreateItemRequest{Name: "vase", DurationSeconds: 3600})

	// No funds yet.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/items/1/bid", "0xalice", models.BidRequest{Amount: decimal.NewFromInt(10)})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/accounts/deposit", "0xalice", models.DepositRequest{Amount: decimal.NewFromInt(100)})
	require.Equal(t, http.StatusOK, rec.Code)
	doJSON(t, router, http.MethodPost, "/api/v1/accounts/deposit", "0xbob", models.DepositRequest{Amount: decimal.NewFromInt(100)})

	rec = doJSON(t, router, http.MethodPost, "/api/v1/items/1/bid", "0xalice", models.BidRequest{Amount: decimal.NewFromInt(10)})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode[models.BidResponse](t, rec).Success)

	// Too low: conflict, with the current highest in the body.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/items/1/bid", "0xbob", models.BidRequest{Amount: decimal.NewFromInt(5)})
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[models.BidResponse](t, rec)
	assert.False(t, resp.Success)
	assert.True(t, resp.CurrentBid.Equal(decimal.NewFromInt(10)))

	// Seller cannot bid on their own item, funded or not.
	doJSON(t, router, http.MethodPost, "/api/v1/accounts/deposit", "0xseller", models.DepositRequest{Amount: decimal.NewFromInt(100)})
	rec = doJSON(t, router, http.MethodPost, "/api/v1/items/1/bid", "0xseller", models.BidRequest{Amount: decimal.NewFromInt(50)})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/items/1/bid", "0xbob", models.BidRequest{Amount: decimal.NewFromInt(15)})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Alice is outbid; her escrow shows up and can be withdrawn once.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/items/1/pending/0xalice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.WithdrawResponse](t, rec).Amount.Equal(decimal.NewFromInt(10)))

	rec = doJSON(t, router, http.MethodPost, "/api/v1/items/1/withdraw", "0xalice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.WithdrawResponse](t, rec).Amount.Equal(decimal.NewFromInt(10)))

	rec = doJSON(t, router, http.MethodPost, "/api/v1/items/1/withdraw", "0xalice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.WithdrawResponse](t, rec).Amount.IsZero())
}

func TestEndAuctionFlow(t *testing.T) {
	router, clock := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/items", "0xseller", models.CreateItemRequest{Name: "vase", DurationSeconds: 3600})
	doJSON(t, router, http.MethodPost, "/api/v1/accounts/deposit", "0xalice", models.DepositRequest{Amount: decimal.NewFromInt(100)})
	doJSON(t, router, http.MethodPost, "/api/v1/items/1/bid", "0xalice", models.BidRequest{Amount: decimal.NewFromInt(40)})

	// Too early.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/items/1/end", "0xanyone", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/api/v1/items/1/can-end", "", nil)
	assert.False(t, decode[map[string]bool](t, rec)["can_end"])

	clock.Advance(2 * time.Hour)
	rec = doJSON(t, router, http.MethodGet, "/api/v1/items/1/can-end", "", nil)
	assert.True(t, decode[map[string]bool](t, rec)["can_end"])

	rec = doJSON(t, router, http.MethodPost, "/api/v1/items/1/end", "0xanyone", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[ledger.Item](t, rec).Ended)

	// Exactly once.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/items/1/end", "0xanyone", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/accounts/0xseller/balance", "", nil)
	assert.True(t, decode[models.BalanceResponse](t, rec).Balance.Equal(decimal.NewFromInt(40)))
}

func TestActiveItems(t *testing.T) {
	router, clock := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/items", "0xseller", models.CreateItemRequest{Name: "short", DurationSeconds: 3600})
	doJSON(t, router, http.MethodPost, "/api/v1/items", "0xseller", models.CreateItemRequest{Name: "long", DurationSeconds: 7200})

	clock.Advance(time.Hour)
	rec := doJSON(t, router, http.MethodGet, "/api/v1/items/active", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]ledger.Item](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "long", items[0].Name)
}

func TestTopicFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/topics", "0xcreator", models.CreateTopicRequest{Title: "proposal", DurationSeconds: 3600})
	require.Equal(t, http.StatusCreated, rec.Code)
	topicID := decode[models.CreateTopicResponse](t, rec).TopicID
	assert.Equal(t, uint64(1), topicID)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/topics/1/vote", "0xvoter", models.VoteRequest{Support: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/topics/1/vote", "0xvoter", models.VoteRequest{Support: false})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/topics/1/voted/0xvoter", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.HasVotedResponse](t, rec).Voted)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/topics/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	topic := decode[voting.Topic](t, rec)
	assert.Equal(t, uint64(1), topic.YesCount)

	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/v1/topics/99", "", nil).Code)
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}
