// Package consumer drains the durable event stream into PostgreSQL.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/aaronwang/auction-ledger/internal/database"
	"github.com/aaronwang/auction-ledger/internal/events"
	"github.com/aaronwang/auction-ledger/internal/models"
)

// Consumer consumes events from JetStream and persists them.
type Consumer struct {
	conn *nats.Conn
	js   jetstream.JetStream
	db   *database.PostgresClient
	log  zerolog.Logger
}

// New connects to NATS and prepares the JetStream context.
func New(natsURL string, db *database.PostgresClient, logger zerolog.Logger) (*Consumer, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Consumer{conn: conn, js: js, db: db, log: logger}, nil
}

// Start consumes the archival stream until the context is cancelled.
// Messages are acknowledged only after the database write succeeds, so
// a crashed worker replays rather than drops events; the event-id keyed
// inserts make the replay harmless.
func (c *Consumer) Start(ctx context.Context) error {
	stream, err := c.js.Stream(ctx, events.StreamName)
	if err != nil {
		return fmt.Errorf("failed to look up stream %s: %w", events.StreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       "archiver",
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: "auction.events.>",
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	c.log.Info().Str("stream", events.StreamName).Msg("consuming events")

	<-ctx.Done()
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var event models.Event
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		c.log.Warn().Err(err).Msg("failed to unmarshal event, dropping")
		msg.Term()
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.db.ArchiveEvent(dbCtx, &event); err != nil {
		c.log.Error().Err(err).Str("event_id", event.EventID).Msg("failed to persist event")
		msg.Nak()
		return
	}

	c.log.Debug().Str("event_id", event.EventID).Str("type", event.Type).Msg("event archived")
	msg.Ack()
}

// Close closes the NATS connection.
func (c *Consumer) Close() {
	c.conn.Close()
}
