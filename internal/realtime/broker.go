package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/evaclass/eva-api/internal/models"
)

// Event is the payload fanned out to connected class streams.
type Event struct {
	Type    string              `json:"type"`
	ClassID string              `json:"class_id"`
	Message *models.ChatMessage `json:"message,omitempty"`
	Thread  *models.ForumThread `json:"thread,omitempty"`
}

// Broker fans accepted messages out to per-class Redis channels so every
// connected stream, regardless of which instance accepted the message,
// sees it.
type Broker struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewBroker constructs a broker. A nil client disables publishing.
func NewBroker(client *redis.Client, prefix string, logger *zap.Logger) *Broker {
	if prefix == "" {
		prefix = "eva:class"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{client: client, prefix: prefix, logger: logger}
}

func (b *Broker) channel(classID string) string {
	return fmt.Sprintf("%s:%s", b.prefix, classID)
}

// Publish sends an event to the class channel. Failures are logged, not
// returned; realtime delivery is best effort and must never fail a write.
func (b *Broker) Publish(ctx context.Context, event Event) {
	if b == nil || b.client == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("marshal realtime event", zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, b.channel(event.ClassID), payload).Err(); err != nil {
		b.logger.Warn("publish realtime event",
			zap.String("class_id", event.ClassID),
			zap.Error(err))
	}
}

// Subscribe returns a channel of events for a class. The returned cancel
// function closes the underlying subscription.
func (b *Broker) Subscribe(ctx context.Context, classID string) (<-chan Event, func(), error) {
	if b == nil || b.client == nil {
		return nil, nil, fmt.Errorf("realtime broker disabled")
	}

	sub := b.client.Subscribe(ctx, b.channel(classID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe class %s: %w", classID, err)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("decode realtime event", zap.Error(err))
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return events, cancel, nil
}
