package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/aaronwang/auction-ledger/internal/models"
)

// PostgresClient wraps the PostgreSQL event archive.
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient creates a new PostgreSQL client.
func NewPostgresClient(connStr string) (*PostgresClient, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresClient{db: db}, nil
}

// InitSchema creates the necessary database tables.
func (c *PostgresClient) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS auction_events (
		event_id VARCHAR(255) PRIMARY KEY,
		type VARCHAR(50) NOT NULL,
		item_id BIGINT,
		topic_id BIGINT,
		name TEXT,
		seller VARCHAR(255),
		account VARCHAR(255),
		amount DECIMAL(30, 10),
		support BOOLEAN,
		end_time BIGINT,
		timestamp TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS items (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		seller VARCHAR(255) NOT NULL,
		end_time BIGINT NOT NULL,
		highest_bidder VARCHAR(255),
		highest_bid DECIMAL(30, 10) DEFAULT 0,
		ended BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bids (
		event_id VARCHAR(255) PRIMARY KEY,
		item_id BIGINT NOT NULL,
		account VARCHAR(255) NOT NULL,
		amount DECIMAL(30, 10) NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS topics (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		creator VARCHAR(255) NOT NULL,
		deadline BIGINT NOT NULL,
		yes_count BIGINT DEFAULT 0,
		no_count BIGINT DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS votes (
		event_id VARCHAR(255) PRIMARY KEY,
		topic_id BIGINT NOT NULL,
		account VARCHAR(255) NOT NULL,
		support BOOLEAN NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bids_item_id ON bids(item_id);
	CREATE INDEX IF NOT EXISTS idx_votes_topic_id ON votes(topic_id);
	CREATE INDEX IF NOT EXISTS idx_events_item_id ON auction_events(item_id);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ArchiveEvent persists one event envelope plus its per-type projection.
// Inserts are keyed by event id, so redelivered messages are no-ops.
func (c *PostgresClient) ArchiveEvent(ctx context.Context, event *models.Event) error {
	if err := c.insertEnvelope(ctx, event); err != nil {
		return err
	}

	switch event.Type {
	case models.EventItemCreated:
		return c.recordItemCreated(ctx, event)
	case models.EventHighestBidIncreased:
		return c.recordBid(ctx, event)
	case models.EventAuctionEnded:
		return c.recordAuctionEnded(ctx, event)
	case models.EventTopicCreated:
		return c.recordTopicCreated(ctx, event)
	case models.EventVoted:
		return c.recordVote(ctx, event)
	default:
		return nil
	}
}

func (c *PostgresClient) insertEnvelope(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO auction_events (event_id, type, item_id, topic_id, name, seller, account, amount, support, end_time, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::DECIMAL, $9, $10, $11)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := c.db.ExecContext(ctx, query,
		event.EventID,
		event.Type,
		nullUint(event.ItemID),
		nullUint(event.TopicID),
		event.Name,
		string(event.Seller),
		string(event.Account),
		event.Amount,
		event.Support,
		event.EndTime,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (c *PostgresClient) recordItemCreated(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO items (id, name, seller, end_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := c.db.ExecContext(ctx, query, event.ItemID, event.Name, string(event.Seller), event.EndTime)
	return err
}

func (c *PostgresClient) recordBid(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO bids (event_id, item_id, account, amount, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`
	if _, err := c.db.ExecContext(ctx, query,
		event.EventID, event.ItemID, string(event.Account), event.Amount, event.Timestamp); err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}

	update := `
		UPDATE items
		SET highest_bid = $1,
		    highest_bidder = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`
	_, err := c.db.ExecContext(ctx, update, event.Amount, string(event.Account), event.ItemID)
	return err
}

func (c *PostgresClient) recordAuctionEnded(ctx context.Context, event *models.Event) error {
	query := `
		UPDATE items
		SET ended = TRUE,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := c.db.ExecContext(ctx, query, event.ItemID)
	return err
}

func (c *PostgresClient) recordTopicCreated(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO topics (id, title, creator, deadline)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := c.db.ExecContext(ctx, query, event.TopicID, event.Name, string(event.Seller), event.EndTime)
	return err
}

func (c *PostgresClient) recordVote(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO votes (event_id, topic_id, account, support, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`
	result, err := c.db.ExecContext(ctx, query,
		event.EventID, event.TopicID, string(event.Account), event.Support, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}

	// Only bump the tally when the vote row was actually new.
	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return err
	}

	update := `
		UPDATE topics
		SET yes_count = yes_count + CASE WHEN $1 THEN 1 ELSE 0 END,
		    no_count = no_count + CASE WHEN $1 THEN 0 ELSE 1 END
		WHERE id = $2
	`
	_, err = c.db.ExecContext(ctx, update, event.Support, event.TopicID)
	return err
}

// GetBidHistory retrieves the archived bid history for an item.
func (c *PostgresClient) GetBidHistory(ctx context.Context, itemID uint64, limit int) ([]*models.Event, error) {
	query := `
		SELECT event_id, item_id, account, amount, timestamp
		FROM bids
		WHERE item_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := c.db.QueryContext(ctx, query, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{Type: models.EventHighestBidIncreased}
		var account string
		if err := rows.Scan(&event.EventID, &event.ItemID, &account, &event.Amount, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		event.Account = models.Account(account)
		events = append(events, event)
	}
	return events, rows.Err()
}

// Close closes the database connection.
func (c *PostgresClient) Close() error {
	return c.db.Close()
}

// nullUint maps the zero id to NULL so envelope rows only reference the
// entity their event actually carries.
func nullUint(v uint64) interface{} {
	if v == 0 {
		return nil
	}
	return int64(v)
}
