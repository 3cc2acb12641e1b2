package broadcast

import (
	"context"
	"testing"
	"time"

	"portal_lead_distribution/internal/notification/sse"
	"portal_lead_distribution/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestPublishedEventReachesSubscribedHub(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := sse.New(logger.New("test"))
	user := uuid.New()
	events, cancel := hub.Subscribe(user)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	ready := make(chan struct{})
	sub := NewSubscriber(client, "test:notifications", hub, logger.New("test"))
	go func() { _ = sub.Run(ctx, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never became ready")
	}

	leadID := uuid.New()
	pub := NewPublisher(client, "test:notifications")
	if err := pub.Push(context.Background(), user, sse.Event{Type: sse.EventLeadAvailable, LeadID: leadID, Message: "New lead available"}); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != sse.EventLeadAvailable || ev.LeadID != leadID {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected event delivered through redis")
	}
}

func TestDeliverDropsMalformedMessages(t *testing.T) {
	hub := sse.New(nil)
	user := uuid.New()
	events, cancel := hub.Subscribe(user)
	defer cancel()

	sub := NewSubscriber(nil, "", hub, nil)
	sub.deliver("{not json")
	sub.deliver(`{"event":{"type":"lead_assigned"}}`)

	select {
	case ev := <-events:
		t.Fatalf("expected nothing delivered, got %+v", ev)
	default:
	}
}

func TestPublisherWithoutClientFails(t *testing.T) {
	var pub *Publisher
	if err := pub.Push(context.Background(), uuid.New(), sse.Event{}); err == nil {
		t.Fatal("expected error from nil publisher")
	}
}
