// Package broadcast fans live notification events out across processes over
// redis pub/sub, so a lead escalated by the scheduler reaches the API
// instance that holds the user's SSE connection.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"portal_lead_distribution/internal/notification/sse"
	"portal_lead_distribution/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "portal:notifications"

// Envelope is the wire message on the channel.
type Envelope struct {
	UserID uuid.UUID `json:"userId"`
	Event  sse.Event `json:"event"`
}

// Publisher sends events to the channel.
type Publisher struct {
	client  redis.UniversalClient
	channel string
}

func NewPublisher(client redis.UniversalClient, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Push publishes one event for userID.
func (p *Publisher) Push(ctx context.Context, userID uuid.UUID, event sse.Event) error {
	if p == nil || p.client == nil {
		return errors.New("broadcast publisher not configured")
	}
	data, err := json.Marshal(Envelope{UserID: userID, Event: event})
	if err != nil {
		return fmt.Errorf("encode broadcast envelope: %w", err)
	}
	return p.client.Publish(ctx, p.channel, data).Err()
}

// Subscriber delivers channel messages into the local SSE hub.
type Subscriber struct {
	client  redis.UniversalClient
	channel string
	hub     *sse.Service
	log     *logger.Logger
}

func NewSubscriber(client redis.UniversalClient, channel string, hub *sse.Service, log *logger.Logger) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Subscriber{client: client, channel: channel, hub: hub, log: log}
}

// Run blocks until ctx is cancelled. ready, if non-nil, is closed once the
// subscription is confirmed.
func (s *Subscriber) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	s.log.Info("notification broadcast subscribed", "channel", s.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.deliver(msg.Payload)
		}
	}
}

func (s *Subscriber) deliver(payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		s.log.Warn("dropping malformed broadcast message", "error", err)
		return
	}
	if env.UserID == uuid.Nil {
		s.log.Warn("dropping broadcast message without user")
		return
	}
	s.hub.Publish(env.UserID, env.Event)
}
