package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aaronwang/auction-ledger/internal/events"
	"github.com/aaronwang/auction-ledger/internal/ledger"
	"github.com/aaronwang/auction-ledger/internal/models"
	"github.com/aaronwang/auction-ledger/internal/voting"
)

// Fan adapts ledger and voting notifications into wire events and hands
// them to the publisher off the caller's goroutine, so the ledger's
// critical section never waits on delivery.
type Fan struct {
	pub events.Publisher
	log zerolog.Logger
}

// NewFan creates a notification fan backed by the given publisher.
func NewFan(pub events.Publisher, logger zerolog.Logger) *Fan {
	return &Fan{pub: pub, log: logger}
}

var _ ledger.EventSink = (*Fan)(nil)
var _ voting.EventSink = (*Fan)(nil)

func (f *Fan) ItemCreated(item ledger.Item) {
	f.send(models.Event{
		EventID:   uuid.New().String(),
		Type:      models.EventItemCreated,
		ItemID:    item.ID,
		Name:      item.Name,
		Seller:    item.Seller,
		EndTime:   item.EndTime.Unix(),
		Timestamp: time.Now().UTC(),
	})
}

func (f *Fan) HighestBidIncreased(item ledger.Item, bidder models.Account, amount decimal.Decimal) {
	f.send(models.Event{
		EventID:   uuid.New().String(),
		Type:      models.EventHighestBidIncreased,
		ItemID:    item.ID,
		Account:   bidder,
		Amount:    amount.String(),
		Timestamp: time.Now().UTC(),
	})
}

func (f *Fan) AuctionEnded(item ledger.Item, winner models.Account, amount decimal.Decimal) {
	f.send(models.Event{
		EventID:   uuid.New().String(),
		Type:      models.EventAuctionEnded,
		ItemID:    item.ID,
		Account:   winner,
		Amount:    amount.String(),
		Timestamp: time.Now().UTC(),
	})
}

func (f *Fan) TopicCreated(topic voting.Topic) {
	f.send(models.Event{
		EventID:   uuid.New().String(),
		Type:      models.EventTopicCreated,
		TopicID:   topic.ID,
		Name:      topic.Title,
		Seller:    topic.Creator,
		EndTime:   topic.Deadline.Unix(),
		Timestamp: time.Now().UTC(),
	})
}

func (f *Fan) Voted(topic voting.Topic, voter models.Account, support bool) {
	f.send(models.Event{
		EventID:   uuid.New().String(),
		Type:      models.EventVoted,
		TopicID:   topic.ID,
		Account:   voter,
		Support:   &support,
		Timestamp: time.Now().UTC(),
	})
}

func (f *Fan) send(event models.Event) {
	go f.pub.Publish(context.Background(), event)
}
