// Package broadcast bridges the gateway's Redis Pub/Sub channels to the
// WebSocket fanout.
package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "auction_events:"

// Subscriber wraps Redis Pub/Sub functionality.
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
}

// Message is a parsed Pub/Sub message.
type Message struct {
	Key     string // channel key, e.g. "items:42"
	Payload string // raw JSON event
}

// NewSubscriber creates a new Redis Pub/Sub subscriber.
func NewSubscriber(addr, password string, db int) (*Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Subscriber{client: rdb}, nil
}

// SubscribeAll subscribes to every event channel the gateway publishes.
func (s *Subscriber) SubscribeAll(ctx context.Context) error {
	s.pubsub = s.client.PSubscribe(ctx, channelPrefix+"*")
	return nil
}

// Listen forwards messages to the provided channel until the context is
// cancelled. Blocking; run in a goroutine.
func (s *Subscriber) Listen(ctx context.Context, messages chan<- *Message) error {
	if s.pubsub == nil {
		return fmt.Errorf("not subscribed to any channel")
	}

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			messages <- &Message{
				Key:     strings.TrimPrefix(msg.Channel, channelPrefix),
				Payload: msg.Payload,
			}
		}
	}
}

// Close closes the subscriber.
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	return s.client.Close()
}
