package ledger

import "errors"

// Failure values returned by ledger operations. Callers match them with
// errors.Is; TransferFailed wraps the underlying delivery error.
var (
	// not found
	ErrItemNotFound = errors.New("item not found")

	// invalid input
	ErrInvalidAccount  = errors.New("account must not be empty")
	ErrEmptyName       = errors.New("item name must not be empty")
	ErrInvalidDuration = errors.New("duration must be positive and at most the maximum")
	ErrInvalidAmount   = errors.New("amount must be positive")

	// state conflicts
	ErrAuctionClosed       = errors.New("auction deadline has passed")
	ErrAuctionAlreadyEnded = errors.New("auction already ended")
	ErrAuctionNotYetEnded  = errors.New("auction has not reached its deadline")
	ErrSelfBid             = errors.New("seller cannot bid on own item")
	ErrBidTooLow           = errors.New("bid must exceed current highest bid")

	// external transfer could not be delivered
	ErrTransferFailed = errors.New("transfer failed")
)
