// Package bank models the host environment's value-transfer capability:
// per-account spendable balances the gateway debits when a bid attaches
// funds and credits when the ledger pays out escrow or sale proceeds.
package bank

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/aaronwang/auction-ledger/internal/models"
)

var (
	ErrInvalidAccount    = errors.New("account must not be empty")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Bank holds account balances. All operations are atomic.
type Bank struct {
	mu       sync.Mutex
	balances map[models.Account]decimal.Decimal
}

// New creates an empty bank.
func New() *Bank {
	return &Bank{balances: make(map[models.Account]decimal.Decimal)}
}

// Deposit adds external funds to an account.
func (b *Bank) Deposit(account models.Account, amount decimal.Decimal) error {
	return b.Credit(account, amount)
}

// Credit adds funds to an account, creating it if needed.
func (b *Bank) Credit(account models.Account, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if account.IsNone() {
		return ErrInvalidAccount
	}
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.balances[account] = b.balances[account].Add(amount)
	return nil
}

// Debit removes funds from an account; fails without effect if the
// balance does not cover the amount.
func (b *Bank) Debit(account models.Account, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if account.IsNone() {
		return ErrInvalidAccount
	}
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance := b.balances[account]
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	b.balances[account] = balance.Sub(amount)
	return nil
}

// Balance returns an account's spendable balance.
func (b *Bank) Balance(account models.Account) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.balances[account]
}

// Total returns the sum of all balances. Together with the ledger's
// escrow total and unsettled highest bids it accounts for every unit
// ever deposited.
func (b *Bank) Total() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := decimal.Zero
	for _, balance := range b.balances {
		total = total.Add(balance)
	}
	return total
}
