package models

import (
	"fmt"
	"time"
)

// Event type constants
const (
	EventItemCreated         = "item_created"
	EventHighestBidIncreased = "highest_bid_increased"
	EventAuctionEnded        = "auction_ended"
	EventTopicCreated        = "topic_created"
	EventVoted               = "voted"
)

// Event is the wire form of a ledger notification. It is sent to:
// 1. Redis Pub/Sub (for real-time WebSocket broadcast)
// 2. NATS JetStream (for archival to PostgreSQL)
// Consumers switch on Type; unused fields are omitted from the JSON.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	ItemID    uint64    `json:"item_id,omitempty"`
	TopicID   uint64    `json:"topic_id,omitempty"`
	Name      string    `json:"name,omitempty"`    // item name or topic title
	Seller    Account   `json:"seller,omitempty"`  // creator for topic events
	Account   Account   `json:"account,omitempty"` // bidder, winner or voter
	Amount    string    `json:"amount,omitempty"`  // decimal string
	Support   *bool     `json:"support,omitempty"` // voted events only
	EndTime   int64     `json:"end_time,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChannelKey returns the routing key for this event, e.g. "items:42" or
// "topics:7". Redis channels and NATS subjects are derived from it.
func (e Event) ChannelKey() string {
	switch e.Type {
	case EventTopicCreated, EventVoted:
		return fmt.Sprintf("topics:%d", e.TopicID)
	default:
		return fmt.Sprintf("items:%d", e.ItemID)
	}
}

// Subject returns the NATS subject suffix ("items.42", "topics.7").
func (e Event) Subject() string {
	switch e.Type {
	case EventTopicCreated, EventVoted:
		return fmt.Sprintf("topics.%d", e.TopicID)
	default:
		return fmt.Sprintf("items.%d", e.ItemID)
	}
}
