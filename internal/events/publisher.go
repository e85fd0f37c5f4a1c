// Package events publishes sync lifecycle events to a Redis stream so other
// services can react to portfolio changes without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pratamalabs/domaindesk/internal/logger"
)

const (
	streamName     = "domaindesk:sync-events"
	maxStreamLen   = 10000
	publishTimeout = 5 * time.Second
)

// SyncEvent describes one completed (or failed) sync run.
type SyncEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"` // completed | failed
	Checked   int       `json:"checked"`
	Updated   int       `json:"updated"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher writes events to Redis. A nil *Publisher is valid and drops
// everything, so event publishing stays optional.
type Publisher struct {
	client *redis.Client
	logger logger.Logger
}

func NewPublisher(client *redis.Client, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{
		client: client,
		logger: log,
	}
}

// Publish appends one event to the stream.
func (p *Publisher) Publish(ctx context.Context, event SyncEvent) error {
	if p == nil {
		return nil
	}

	event.ID = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{"event": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// PublishAsync fires Publish on its own goroutine with its own deadline.
// Failures are logged, never propagated; syncs do not fail because Redis is
// down.
func (p *Publisher) PublishAsync(event SyncEvent) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil {
			p.logger.Warn("Failed to publish sync event",
				logger.String("kind", event.Kind),
				logger.Error(err),
			)
		}
	}()
}
