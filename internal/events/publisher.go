// Package events fans ledger notifications out to the channels external
// consumers watch: Redis Pub/Sub for the broadcast service, a core NATS
// subject for low-latency listeners, and a JetStream stream for the
// archival worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aaronwang/auction-ledger/internal/models"
)

// StreamName is the JetStream stream the archival worker consumes.
const StreamName = "AUCTION_EVENTS"

// Publisher delivers events to external consumers. Delivery is best
// effort; the write path never depends on it.
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(context.Context, models.Event) {}

// Fanout publishes each event to Redis Pub/Sub, a live NATS subject and
// the durable JetStream stream.
type Fanout struct {
	redis *redis.Client
	nats  *nats.Conn
	js    jetstream.JetStream
	log   zerolog.Logger
}

// NewFanout wires the publisher and ensures the archival stream exists.
func NewFanout(redisClient *redis.Client, natsConn *nats.Conn, logger zerolog.Logger) (*Fanout, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Stream for auction and voting events archival",
		Subjects:    []string{"auction.events.>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy, // each message consumed once
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &Fanout{
		redis: redisClient,
		nats:  natsConn,
		js:    js,
		log:   logger,
	}, nil
}

// Publish sends the event everywhere. Individual failures are logged and
// do not affect the other channels.
func (f *Fanout) Publish(ctx context.Context, event models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		f.log.Warn().Err(err).Str("event_id", event.EventID).Msg("failed to marshal event")
		return
	}

	channel := "auction_events:" + event.ChannelKey()
	if err := f.redis.Publish(ctx, channel, data).Err(); err != nil {
		f.log.Warn().Err(err).Str("channel", channel).Msg("redis publish failed")
	}

	live := "auction.live." + event.Subject()
	if err := f.nats.Publish(live, data); err != nil {
		f.log.Warn().Err(err).Str("subject", live).Msg("nats publish failed")
	}

	durable := "auction.events." + event.Subject()
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ack, err := f.js.Publish(pubCtx, durable, data)
	if err != nil {
		f.log.Warn().Err(err).Str("subject", durable).Msg("jetstream publish failed")
		return
	}
	f.log.Debug().Str("subject", durable).Uint64("seq", ack.Sequence).Msg("event archived")
}
