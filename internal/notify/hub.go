// Package notify is the room broker: chat messages and notification events
// fan out to subscribers over Redis pub/sub. The hub is injected where
// needed and lives for the lifetime of the process.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one message published to a room.
type Event struct {
	Room     string    `json:"room"`
	Kind     string    `json:"kind"`
	SenderID string    `json:"sender_id,omitempty"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// Hub publishes and subscribes room events over Redis.
type Hub struct {
	client *redis.Client
	prefix string
}

func NewHub(redisURL string) (*Hub, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Hub{client: client, prefix: "room:"}, nil
}

func NewHubWithClient(client *redis.Client) *Hub {
	return &Hub{client: client, prefix: "room:"}
}

func (h *Hub) channel(room string) string {
	return h.prefix + room
}

// Publish sends the event to every subscriber of its room.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := h.client.Publish(ctx, h.channel(ev.Room), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", ev.Room, err)
	}
	return nil
}

// Subscribe delivers room events on the returned channel until ctx is done.
// The channel is closed when the subscription ends.
func (h *Hub) Subscribe(ctx context.Context, room string) (<-chan Event, error) {
	sub := h.client.Subscribe(ctx, h.channel(room))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", room, err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (h *Hub) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

func (h *Hub) Close() error {
	return h.client.Close()
}
