package models

import "github.com/shopspring/decimal"

// CreateItemRequest is the incoming request to list a new item.
type CreateItemRequest struct {
	Name            string `json:"name"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// CreateItemResponse is returned after a successful listing.
type CreateItemResponse struct {
	ItemID  uint64 `json:"item_id"`
	EndTime int64  `json:"end_time"`
}

// BidRequest is the incoming bid request. Amount accepts a JSON number
// or a decimal string.
type BidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BidResponse is the API response after placing a bid.
type BidResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	CurrentBid decimal.Decimal `json:"current_bid"`
	YourBid    decimal.Decimal `json:"your_bid"`
	IsHighest  bool            `json:"is_highest"`
}

// WithdrawResponse reports the escrow amount returned to the caller.
type WithdrawResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

// DepositRequest funds an account at the gateway bank.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BalanceResponse reports an account's spendable balance.
type BalanceResponse struct {
	Account Account         `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}
