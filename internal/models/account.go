package models

// Account identifies a participant (a wallet-style address string).
// The empty Account is the "nobody" sentinel; the API layer rejects
// requests without a caller identity so no real account is ever empty.
type Account string

// None is the absent-identity sentinel used for items with no bids yet.
const None Account = ""

// IsNone reports whether the account is the absent-identity sentinel.
func (a Account) IsNone() bool {
	return a == None
}
