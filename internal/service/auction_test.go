package service

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronwang/auction-ledger/internal/bank"
	"github.com/aaronwang/auction-ledger/internal/events"
	"github.com/aaronwang/auction-ledger/internal/ledger"
	"github.com/aaronwang/auction-ledger/internal/models"
	"github.com/aaronwang/auction-ledger/internal/voting"
)

const (
	seller = models.Account("0xseller")
	alice  = models.Account("0xalice")
	bob    = models.Account("0xbob")
)

func amt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

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

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	accounts := bank.New()
	fan := NewFan(events.Nop{}, zerolog.Nop())
	l := ledger.New(accounts.Credit, ledger.WithClock(clock.Now), ledger.WithSink(fan))
	v := voting.New(voting.WithClock(clock.Now), voting.WithSink(fan))
	return New(l, v, accounts, zerolog.Nop()), clock
}

// conserved returns the total value the system currently accounts for:
// spendable balances, escrowed refunds, and live leading bids.
func conserved(s *Service) decimal.Decimal {
	total := s.Bank.Total().Add(s.Ledger.EscrowTotal())
	for _, item := range s.Ledger.GetAllItems() {
		if !item.Ended {
			total = total.Add(item.HighestBid)
		}
	}
	return total
}

func TestPlaceBid_MovesFunds(t *testing.T) {
	s, _ := newTestService(t)
	require.NoError(t, s.Deposit(alice, amt(100)))

	item, err := s.CreateItem(seller, "vase", 3600)
	require.NoError(t, err)

	require.NoError(t, s.PlaceBid(item.ID, alice, amt(40)))
	assert.True(t, s.Bank.Balance(alice).Equal(amt(60)), "accepted bid debits the bidder")

	// Deposits are never created or destroyed by bidding.
	assert.True(t, conserved(s).Equal(amt(100)))
}

func TestPlaceBid_RejectionRefunds(t *testing.T) {
	s, _ := newTestService(t)
	require.NoError(t, s.Deposit(alice, amt(100)))
	require.NoError(t, s.Deposit(bob, amt(100)))

	item, err := s.CreateItem(seller, "vase", 3600)
	require.NoError(t, err)

	require.NoError(t, s.PlaceBid(item.ID, alice, amt(40)))

	// Too-low bid: debit must be returned in full.
	assert.ErrorIs(t, s.PlaceBid(item.ID, bob, amt(30)), ledger.ErrBidTooLow)
	assert.True(t, s.Bank.Balance(bob).Equal(amt(100)))

	// Unfunded bid never reaches the ledger.
	assert.ErrorIs(t, s.PlaceBid(item.ID, bob, amt(500)), bank.ErrInsufficientFunds)

	snapshot, _ := s.Ledger.GetItem(item.ID)
	assert.Equal(t, alice, snapshot.HighestBidder)
	assert.True(t, conserved(s).Equal(amt(200)))
}

func TestSettlementFlow(t *testing.T) {
	s, clock := newTestService(t)
	require.NoError(t, s.Deposit(alice, amt(100)))
	require.NoError(t, s.Deposit(bob, amt(100)))

	item, err := s.CreateItem(seller, "vase", 3600)
	require.NoError(t, err)

	require.NoError(t, s.PlaceBid(item.ID, alice, amt(10)))
	require.NoError(t, s.PlaceBid(item.ID, bob, amt(15)))

	assert.ErrorIs(t, s.EndAuction(item.ID), ledger.ErrAuctionNotYetEnded)

	clock.Advance(time.Hour)
	require.NoError(t, s.EndAuction(item.ID))
	assert.True(t, s.Bank.Balance(seller).Equal(amt(15)))

	withdrawn, err := s.Withdraw(item.ID, alice)
	require.NoError(t, err)
	assert.True(t, withdrawn.Equal(amt(10)))
	assert.True(t, s.Bank.Balance(alice).Equal(amt(100)), "outbid funds come back in full")
	assert.True(t, s.Bank.Balance(bob).Equal(amt(85)))

	// All 200 deposited units are still in spendable balances.
	assert.True(t, s.Bank.Total().Equal(amt(200)))
	assert.True(t, s.Ledger.EscrowTotal().IsZero())
}

func TestVotingFlow(t *testing.T) {
	s, clock := newTestService(t)

	topic, err := s.CreateTopic(alice, "proposal", 3600)
	require.NoError(t, err)

	require.NoError(t, s.Vote(topic.ID, bob, true))
	assert.ErrorIs(t, s.Vote(topic.ID, bob, false), voting.ErrAlreadyVoted)

	clock.Advance(time.Hour)
	assert.ErrorIs(t, s.Vote(topic.ID, seller, true), voting.ErrVotingClosed)

	snapshot, ok := s.Voting.GetTopic(topic.ID)
	require.True(t, ok)
	assert.Equal(t, uint64(1), snapshot.YesCount)
	assert.Equal(t, uint64(0), snapshot.NoCount)
}
