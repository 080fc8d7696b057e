// Package service orchestrates the auction ledger against the host
// capabilities the gateway provides: the account bank for value movement
// and the event publisher for downstream consumers.
package service

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aaronwang/auction-ledger/internal/bank"
	"github.com/aaronwang/auction-ledger/internal/ledger"
	"github.com/aaronwang/auction-ledger/internal/models"
	"github.com/aaronwang/auction-ledger/internal/voting"
)

// Service is the gateway's business layer. Queries go straight to the
// exported Ledger and Voting fields; mutations go through the methods
// below so funds movement stays consistent with ledger state.
type Service struct {
	Ledger *ledger.Ledger
	Voting *voting.Registry
	Bank   *bank.Bank

	log zerolog.Logger
}

// New assembles the service around an already-wired ledger and registry.
func New(l *ledger.Ledger, v *voting.Registry, b *bank.Bank, logger zerolog.Logger) *Service {
	return &Service{Ledger: l, Voting: v, Bank: b, log: logger}
}

// CreateItem lists a new item for the seller.
func (s *Service) CreateItem(seller models.Account, name string, durationSeconds int64) (ledger.Item, error) {
	id, err := s.Ledger.CreateItem(seller, name, time.Duration(durationSeconds)*time.Second)
	if err != nil {
		return ledger.Item{}, err
	}
	item, _ := s.Ledger.GetItem(id)
	s.log.Info().Uint64("item_id", id).Str("seller", string(seller)).Msg("item created")
	return item, nil
}

// PlaceBid attaches funds to a bid the way a payable call would: the
// bidder's balance is debited up front and credited back in full if the
// ledger rejects the bid.
func (s *Service) PlaceBid(itemID uint64, bidder models.Account, amount decimal.Decimal) error {
	if err := s.Bank.Debit(bidder, amount); err != nil {
		return err
	}
	if err := s.Ledger.Bid(itemID, bidder, amount); err != nil {
		if refundErr := s.Bank.Credit(bidder, amount); refundErr != nil {
			// Unreachable for amounts the debit accepted; logged in case
			// that ever changes.
			s.log.Error().Err(refundErr).Str("bidder", string(bidder)).Msg("refund after rejected bid failed")
		}
		return err
	}
	s.log.Info().Uint64("item_id", itemID).Str("bidder", string(bidder)).Str("amount", amount.String()).Msg("bid accepted")
	return nil
}

// Withdraw pays out the caller's escrow for an item.
func (s *Service) Withdraw(itemID uint64, account models.Account) (decimal.Decimal, error) {
	amount, err := s.Ledger.Withdraw(itemID, account)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.Sign() > 0 {
		s.log.Info().Uint64("item_id", itemID).Str("account", string(account)).Str("amount", amount.String()).Msg("escrow withdrawn")
	}
	return amount, nil
}

// EndAuction finalizes an item and pays the seller.
func (s *Service) EndAuction(itemID uint64) error {
	if err := s.Ledger.EndAuction(itemID); err != nil {
		return err
	}
	s.log.Info().Uint64("item_id", itemID).Msg("auction ended")
	return nil
}

// Deposit funds an account at the bank.
func (s *Service) Deposit(account models.Account, amount decimal.Decimal) error {
	return s.Bank.Deposit(account, amount)
}

// CreateTopic opens a new voting topic.
func (s *Service) CreateTopic(creator models.Account, title string, durationSeconds int64) (voting.Topic, error) {
	id, err := s.Voting.CreateTopic(creator, title, time.Duration(durationSeconds)*time.Second)
	if err != nil {
		return voting.Topic{}, err
	}
	topic, _ := s.Voting.GetTopic(id)
	s.log.Info().Uint64("topic_id", id).Str("creator", string(creator)).Msg("topic created")
	return topic, nil
}

// Vote casts a yes/no vote on a topic.
func (s *Service) Vote(topicID uint64, voter models.Account, support bool) error {
	return s.Voting.Vote(topicID, voter, support)
}
