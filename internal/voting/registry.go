// Package voting implements the topic registry that sits alongside the
// auction ledger: simple yes/no counting with one vote per account and a
// fixed deadline. No funds are at risk here.
package voting

import (
	"errors"
	"sync"
	"time"

	"github.com/aaronwang/auction-ledger/internal/ledger"
	"github.com/aaronwang/auction-ledger/internal/models"
)

var (
	ErrTopicNotFound   = errors.New("topic not found")
	ErrInvalidAccount  = errors.New("account must not be empty")
	ErrEmptyTitle      = errors.New("topic title must not be empty")
	ErrInvalidDuration = errors.New("duration must be positive and at most the maximum")
	ErrVotingClosed    = errors.New("voting deadline has passed")
	ErrAlreadyVoted    = errors.New("account already voted on this topic")
)

// Topic is one voting topic with running yes/no tallies.
type Topic struct {
	ID       uint64         `json:"id"`
	Title    string         `json:"title"`
	Creator  models.Account `json:"creator"`
	Deadline time.Time      `json:"deadline"`
	YesCount uint64         `json:"yes_count"`
	NoCount  uint64         `json:"no_count"`
}

// EventSink receives topic notifications as operations commit.
type EventSink interface {
	TopicCreated(topic Topic)
	Voted(topic Topic, voter models.Account, support bool)
}

// NopSink discards all notifications.
type NopSink struct{}

func (NopSink) TopicCreated(Topic) {}

func (NopSink) Voted(Topic, models.Account, bool) {}

type voteKey struct {
	topicID uint64
	account models.Account
}

// Registry owns all topics and the per-account vote records. The same
// serialization discipline as the auction ledger applies: one mutex, all
// operations atomic, queries snapshot under the lock.
type Registry struct {
	mu     sync.Mutex
	topics map[uint64]*Topic
	nextID uint64
	voted  map[voteKey]bool
	sink   EventSink
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithSink sets the notification sink.
func WithSink(sink EventSink) Option {
	return func(r *Registry) { r.sink = sink }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		topics: make(map[uint64]*Topic),
		nextID: 1,
		voted:  make(map[voteKey]bool),
		sink:   NopSink{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateTopic opens a new topic closing duration from now. The duration
// bound is the same policy constant the auction ledger uses.
func (r *Registry) CreateTopic(creator models.Account, title string, duration time.Duration) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if creator.IsNone() {
		return 0, ErrInvalidAccount
	}
	if title == "" {
		return 0, ErrEmptyTitle
	}
	if duration <= 0 || duration > ledger.MaxDuration {
		return 0, ErrInvalidDuration
	}

	id := r.nextID
	r.nextID++

	topic := &Topic{
		ID:       id,
		Title:    title,
		Creator:  creator,
		Deadline: r.now().Add(duration),
	}
	r.topics[id] = topic

	r.sink.TopicCreated(*topic)
	return id, nil
}

// Vote records a single yes/no vote. Each account votes at most once per
// topic; a second vote fails and changes nothing.
func (r *Registry) Vote(topicID uint64, voter models.Account, support bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	topic, ok := r.topics[topicID]
	if !ok {
		return ErrTopicNotFound
	}
	if voter.IsNone() {
		return ErrInvalidAccount
	}
	if !r.now().Before(topic.Deadline) {
		return ErrVotingClosed
	}
	key := voteKey{topicID, voter}
	if r.voted[key] {
		return ErrAlreadyVoted
	}

	r.voted[key] = true
	if support {
		topic.YesCount++
	} else {
		topic.NoCount++
	}

	r.sink.Voted(*topic, voter, support)
	return nil
}

// GetTopic returns a snapshot of one topic.
func (r *Registry) GetTopic(topicID uint64) (Topic, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	topic, ok := r.topics[topicID]
	if !ok {
		return Topic{}, false
	}
	return *topic, true
}

// GetAllTopics returns snapshots of every topic in creation order.
func (r *Registry) GetAllTopics() []Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Topic, 0, len(r.topics))
	for id := uint64(1); id < r.nextID; id++ {
		out = append(out, *r.topics[id])
	}
	return out
}

// HasVoted reports whether an account already voted on a topic.
func (r *Registry) HasVoted(topicID uint64, account models.Account) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.voted[voteKey{topicID, account}]
}
