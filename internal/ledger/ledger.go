package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aaronwang/auction-ledger/internal/models"
)

// MaxDuration is the upper bound on an item's auction duration. It is a
// fixed policy value, not runtime-configurable.
const MaxDuration = 30 * 24 * time.Hour

// Item is one auction lot. HighestBidder is models.None and HighestBid
// is zero until a first bid is accepted.
type Item struct {
	ID            uint64          `json:"id"`
	Name          string          `json:"name"`
	Seller        models.Account  `json:"seller"`
	EndTime       time.Time       `json:"end_time"`
	HighestBidder models.Account  `json:"highest_bidder,omitempty"`
	HighestBid    decimal.Decimal `json:"highest_bid"`
	Ended         bool            `json:"ended"`
}

// TransferFunc delivers value out of the ledger to an account. It is
// provided by the host and must fail if the value is undeliverable.
type TransferFunc func(to models.Account, amount decimal.Decimal) error

// EventSink receives notifications as operations commit. Implementations
// must not call back into the ledger; they run inside its critical
// section.
type EventSink interface {
	ItemCreated(item Item)
	HighestBidIncreased(item Item, bidder models.Account, amount decimal.Decimal)
	AuctionEnded(item Item, winner models.Account, amount decimal.Decimal)
}

// NopSink discards all notifications.
type NopSink struct{}

func (NopSink) ItemCreated(Item) {}

func (NopSink) HighestBidIncreased(Item, models.Account, decimal.Decimal) {}

func (NopSink) AuctionEnded(Item, models.Account, decimal.Decimal) {}

type pendingKey struct {
	itemID  uint64
	account models.Account
}

// Ledger owns all items and refundable escrow balances. Every operation
// takes the ledger mutex, so mutations are fully serialized and queries
// observe a single consistent snapshot; the host gets its atomicity
// guarantee from this lock. The outbound transfer during Withdraw and
// EndAuction happens inside the same critical section, so the cleared
// balance is never observable as non-zero mid-transfer.
type Ledger struct {
	mu       sync.Mutex
	items    map[uint64]*Item
	nextID   uint64
	pending  map[pendingKey]decimal.Decimal
	transfer TransferFunc
	sink     EventSink
	now      func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSink sets the notification sink.
func WithSink(sink EventSink) Option {
	return func(l *Ledger) { l.sink = sink }
}

// WithClock overrides the time source (used by tests to cross deadlines).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates an empty ledger. transfer is the host's funds-out
// primitive and must be non-nil.
func New(transfer TransferFunc, opts ...Option) *Ledger {
	l := &Ledger{
		items:    make(map[uint64]*Item),
		nextID:   1,
		pending:  make(map[pendingKey]decimal.Decimal),
		transfer: transfer,
		sink:     NopSink{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateItem lists a new item ending duration from now. Validation runs
// before the id is allocated, so a rejected request consumes nothing.
func (l *Ledger) CreateItem(seller models.Account, name string, duration time.Duration) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if seller.IsNone() {
		return 0, ErrInvalidAccount
	}
	if name == "" {
		return 0, ErrEmptyName
	}
	if duration <= 0 || duration > MaxDuration {
		return 0, ErrInvalidDuration
	}

	id := l.nextID
	l.nextID++

	item := &Item{
		ID:      id,
		Name:    name,
		Seller:  seller,
		EndTime: l.now().Add(duration),
	}
	l.items[id] = item

	l.sink.ItemCreated(*item)
	return id, nil
}

// Bid installs bidder as the new leader if amount strictly exceeds the
// current highest bid. The previous leader's full bid is credited to
// their escrow entry before the new bid takes effect, so no accepted bid
// is ever silently dropped. The new amount itself is not escrowed; it
// becomes refundable only if a later bid supersedes it.
func (l *Ledger) Bid(itemID uint64, bidder models.Account, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	if bidder.IsNone() {
		return ErrInvalidAccount
	}
	if !l.now().Before(item.EndTime) {
		return ErrAuctionClosed
	}
	if item.Ended {
		return ErrAuctionAlreadyEnded
	}
	if bidder == item.Seller {
		return ErrSelfBid
	}
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if amount.Cmp(item.HighestBid) <= 0 {
		return ErrBidTooLow
	}

	// Refund accounting for the outgoing leader happens first.
	if !item.HighestBidder.IsNone() {
		key := pendingKey{itemID, item.HighestBidder}
		l.pending[key] = l.pending[key].Add(item.HighestBid)
	}

	item.HighestBidder = bidder
	item.HighestBid = amount

	l.sink.HighestBidIncreased(*item, bidder, amount)
	return nil
}

// Withdraw pays out the caller's accumulated escrow for an item and
// returns the amount transferred. A zero balance is a successful no-op.
// The stored entry is zeroed before the transfer; if the transfer fails
// the entry is restored, so value is neither lost nor double-paid.
func (l *Ledger) Withdraw(itemID uint64, account models.Account) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.items[itemID]; !ok {
		return decimal.Zero, ErrItemNotFound
	}
	if account.IsNone() {
		return decimal.Zero, ErrInvalidAccount
	}

	key := pendingKey{itemID, account}
	owed := l.pending[key]
	if owed.Sign() == 0 {
		return decimal.Zero, nil
	}

	delete(l.pending, key)
	if err := l.transfer(account, owed); err != nil {
		l.pending[key] = owed
		return decimal.Zero, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return owed, nil
}

// EndAuction finalizes an item once its deadline has passed, paying the
// final highest bid to the seller. The ended flag flips before the
// payout (and rolls back if the payout fails), so the item can never be
// finalized twice. Items with no bids finalize with no payout.
func (l *Ledger) EndAuction(itemID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	if l.now().Before(item.EndTime) {
		return ErrAuctionNotYetEnded
	}
	if item.Ended {
		return ErrAuctionAlreadyEnded
	}

	item.Ended = true
	if item.HighestBid.Sign() > 0 {
		if err := l.transfer(item.Seller, item.HighestBid); err != nil {
			item.Ended = false
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	l.sink.AuctionEnded(*item, item.HighestBidder, item.HighestBid)
	return nil
}

// GetItem returns a snapshot of one item.
func (l *Ledger) GetItem(itemID uint64) (Item, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemID]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// GetAllItems returns snapshots of every item in creation order.
func (l *Ledger) GetAllItems() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Item, 0, len(l.items))
	for id := uint64(1); id < l.nextID; id++ {
		out = append(out, *l.items[id])
	}
	return out
}

// GetActiveItems returns items that are not ended and whose deadline has
// not passed, in creation order.
func (l *Ledger) GetActiveItems() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var out []Item
	for id := uint64(1); id < l.nextID; id++ {
		item := l.items[id]
		if !item.Ended && now.Before(item.EndTime) {
			out = append(out, *item)
		}
	}
	return out
}

// CanEndAuction reports whether an item exists, is not ended, and has
// reached its deadline.
func (l *Ledger) CanEndAuction(itemID uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemID]
	return ok && !item.Ended && !l.now().Before(item.EndTime)
}

// GetPendingReturn returns the refundable escrow balance an account holds
// for an item. Unknown items or accounts report zero.
func (l *Ledger) GetPendingReturn(itemID uint64, account models.Account) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.pending[pendingKey{itemID, account}]
}

// EscrowTotal returns the sum of all refundable balances currently held.
func (l *Ledger) EscrowTotal() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, amount := range l.pending {
		total = total.Add(amount)
	}
	return total
}
