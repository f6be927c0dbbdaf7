package activitysink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel events are published to
const DefaultChannel = "accounts.activity"

// Publisher is the subset of redis.Cmdable used by Redis
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

var _ Publisher = (*redis.Client)(nil)

// Message is the JSON document published for every activity event
type Message struct {
	Type       string         `json:"type"`
	AccountID  string         `json:"account_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	ActorType  string         `json:"actor_type,omitempty"`
	FromStatus string         `json:"from_status,omitempty"`
	ToStatus   string         `json:"to_status,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Redis publishes account activity to a redis channel
type Redis struct {
	client  Publisher
	channel string
}

var _ accounts.ActivitySink = (*Redis)(nil)

// NewRedis creates a sink, an empty channel uses DefaultChannel
func NewRedis(client Publisher, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel}
}

// NewRedisClient builds the client used by NewRedis
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (r *Redis) Record(ctx context.Context, event accounts.ActivityEvent) error {
	data, err := json.Marshal(NewMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish activity event to redis: %w", err)
	}
	return nil
}

// NewMessage converts an event to its published form
func NewMessage(event accounts.ActivityEvent) Message {
	msg := Message{
		Type:       string(event.EventType),
		AccountID:  event.AccountID,
		ActorID:    event.Actor.ID,
		ActorType:  event.Actor.Type,
		Metadata:   event.Metadata,
		OccurredAt: event.OccurredAt.UTC(),
	}

	if event.FromStatus != event.ToStatus {
		msg.FromStatus = accounts.StatusName(event.FromStatus)
	}
	msg.ToStatus = accounts.StatusName(event.ToStatus)

	return msg
}
