package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupHub(t *testing.T) *Hub {
	s := miniredis.RunT(t)
	hub, err := NewHub("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create hub: %v", err)
	}
	t.Cleanup(func() { _ = hub.Close() })
	return hub
}

func TestPublishSubscribe(t *testing.T) {
	hub := setupHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := hub.Subscribe(ctx, "req-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ev := Event{Room: "req-1", Kind: "chat", SenderID: "user-1", Body: "hello"}
	if err := hub.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-events:
		if got.Body != "hello" || got.SenderID != "user-1" {
			t.Errorf("unexpected event: %+v", got)
		}
		if got.SentAt.IsZero() {
			t.Error("expected SentAt to be stamped")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeRoomIsolation(t *testing.T) {
	hub := setupHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	roomA, err := hub.Subscribe(ctx, "room-a")
	if err != nil {
		t.Fatalf("Subscribe room-a failed: %v", err)
	}

	if err := hub.Publish(ctx, Event{Room: "room-b", Kind: "chat", Body: "other"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := hub.Publish(ctx, Event{Room: "room-a", Kind: "chat", Body: "mine"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-roomA:
		if got.Body != "mine" {
			t.Errorf("expected room-a event, got %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	hub := setupHub(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := hub.Subscribe(ctx, "req-2")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}
