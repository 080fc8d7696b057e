package bank

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronwang/auction-ledger/internal/models"
)

const account = models.Account("0xaccount")

func amt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestDepositAndBalance(t *testing.T) {
	b := New()

	assert.True(t, b.Balance(account).IsZero())

	require.NoError(t, b.Deposit(account, amt(100)))
	require.NoError(t, b.Deposit(account, amt(50)))
	assert.True(t, b.Balance(account).Equal(amt(150)))

	assert.ErrorIs(t, b.Deposit(models.None, amt(1)), ErrInvalidAccount)
	assert.ErrorIs(t, b.Deposit(account, amt(0)), ErrInvalidAmount)
	assert.ErrorIs(t, b.Deposit(account, amt(-5)), ErrInvalidAmount)
}

func TestDebit(t *testing.T) {
	b := New()
	require.NoError(t, b.Deposit(account, amt(100)))

	require.NoError(t, b.Debit(account, amt(60)))
	assert.True(t, b.Balance(account).Equal(amt(40)))

	// Insufficient funds fail without effect.
	assert.ErrorIs(t, b.Debit(account, amt(41)), ErrInsufficientFunds)
	assert.True(t, b.Balance(account).Equal(amt(40)))

	assert.ErrorIs(t, b.Debit(account, amt(0)), ErrInvalidAmount)
	assert.ErrorIs(t, b.Debit(models.None, amt(1)), ErrInvalidAccount)
}

func TestTotal(t *testing.T) {
	b := New()
	require.NoError(t, b.Deposit("0xone", amt(10)))
	require.NoError(t, b.Deposit("0xtwo", amt(20)))
	require.NoError(t, b.Credit("0xthree", amt(30)))
	require.NoError(t, b.Debit("0xtwo", amt(5)))

	assert.True(t, b.Total().Equal(amt(55)))
}
