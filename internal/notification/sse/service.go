// Package sse provides Server-Sent Events support for real-time notifications.
package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"portal_lead_distribution/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventInAppNotification EventType = "in_app_notification"
	EventLeadAvailable     EventType = "lead_available"
	EventLeadAssigned      EventType = "lead_assigned"
)

// Event represents an SSE event payload
type Event struct {
	Type    EventType `json:"type"`
	LeadID  uuid.UUID `json:"leadId,omitempty"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	userID uuid.UUID
	events chan Event
}

// Service manages SSE connections and event delivery
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.userID] = append(s.clients[c.userID], c)
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			close(c.events)
			break
		}
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
}

// Publish sends an event to every open connection of a user. Slow clients
// drop events instead of blocking the publisher.
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := s.clients[userID]
	for _, c := range clients {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full, dropping event", "userId", userID, "type", event.Type)
		}
	}
	s.log.Debug("sse event published", "userId", userID, "type", event.Type, "clients", len(clients))
}

// Push is Publish with the signature expected by notification senders.
func (s *Service) Push(_ context.Context, userID uuid.UUID, event Event) error {
	s.Publish(userID, event)
	return nil
}

// Subscribe registers a listener for userID. The returned cancel func
// unregisters it and closes the channel.
func (s *Service) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	cl := &client{
		userID: userID,
		events: make(chan Event, 32),
	}
	s.addClient(cl)
	var once sync.Once
	return cl.events, func() { once.Do(func() { s.removeClient(cl) }) }
}

// Connected reports how many open connections a user has.
func (s *Service) Connected(userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Handler returns a Gin handler for SSE connections
func (s *Service) Handler(getUserID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		events, cancel := s.Subscribe(userID)
		defer cancel()

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()
		s.log.Debug("sse client connected", "userId", userID)

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "userId", userID)
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close disconnects every client.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}
