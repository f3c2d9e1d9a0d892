// Package redis publishes model lifecycle events to Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/burugo/tombstone"
)

// DefaultChannel is used when no channel name is given.
const DefaultChannel = "tombstone:events"

// Message is the JSON body published for each event.
type Message struct {
	Event string                 `json:"event"`
	Table string                 `json:"table"`
	ID    int64                  `json:"id"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
	At    time.Time              `json:"at"`
}

// Options holds configuration for a Redis client the publisher creates itself.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Publisher turns events into Redis PUBLISH calls.
// The counters field tracks publishes per event name (thread-safe).
type Publisher struct {
	redisClient       *redis.Client
	channel           string
	logger            *zap.Logger
	now               func() time.Time
	mu                sync.Mutex
	counters          map[string]int
	createdInternally bool
}

var _ io.Closer = (*Publisher)(nil)

// NewPublisher wraps redisCli, or creates a client from opts when redisCli
// is nil.
func NewPublisher(redisCli *redis.Client, opts *Options, channel string, logger *zap.Logger) (*Publisher, error) {
	rdb := redisCli
	createdInternally := false
	if rdb == nil {
		if opts == nil {
			opts = &Options{}
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		createdInternally = true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		if createdInternally {
			_ = rdb.Close()
		}
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		redisClient:       rdb,
		channel:           channel,
		logger:            logger,
		now:               time.Now,
		counters:          make(map[string]int),
		createdInternally: createdInternally,
	}, nil
}

// Channel returns the pub/sub channel events are published on.
func (p *Publisher) Channel() string { return p.channel }

// Attach registers the publisher on bus for every name.
func (p *Publisher) Attach(bus *tombstone.EventBus, names ...tombstone.EventName) {
	for _, name := range names {
		bus.On(name, p.Listener())
	}
}

// Listener returns an EventListener publishing each event it receives.
// Publish failures are returned, so on pre-events they abort the operation.
func (p *Publisher) Listener() tombstone.EventListener {
	return func(ctx context.Context, ev *tombstone.Event) error {
		return p.Publish(ctx, ev)
	}
}

// Publish sends one event.
func (p *Publisher) Publish(ctx context.Context, ev *tombstone.Event) error {
	body, err := json.Marshal(Message{
		Event: string(ev.Name),
		Table: ev.Table,
		ID:    ev.ID,
		Attrs: ev.Attrs,
		At:    p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Name, err)
	}
	if err := p.redisClient.Publish(ctx, p.channel, body).Err(); err != nil {
		p.logger.Warn("publish failed", zap.String("event", string(ev.Name)), zap.Error(err))
		return fmt.Errorf("publish %s event: %w", ev.Name, err)
	}
	p.incrementCounter(string(ev.Name))
	return nil
}

// Published returns the number of events published under name.
func (p *Publisher) Published(name tombstone.EventName) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters[string(name)]
}

func (p *Publisher) incrementCounter(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[name]++
}

// Close implements io.Closer. Only a client created by NewPublisher is closed.
func (p *Publisher) Close() error {
	if p.createdInternally && p.redisClient != nil {
		return p.redisClient.Close()
	}
	return nil
}
