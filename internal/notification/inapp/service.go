package inapp

import (
	"context"

	"portal_lead_distribution/internal/notification/sse"
	"portal_lead_distribution/platform/apperr"
	"portal_lead_distribution/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

// Pusher delivers a live event to a user's open connections, locally or
// through the cross-process broadcast.
type Pusher interface {
	Push(ctx context.Context, userID uuid.UUID, event sse.Event) error
}

type Service struct {
	repo   Store
	pusher Pusher
	log    *logger.Logger
}

func NewService(repo Store, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// SetPusher injects the live delivery channel.
func (s *Service) SetPusher(p Pusher) {
	s.pusher = p
}

type SendParams struct {
	OrgID        uuid.UUID
	UserID       uuid.UUID
	Title        string
	Content      string
	ActionRef    string
	ResourceID   *uuid.UUID
	ResourceType string
	Category     string // "info", "lead", "warning"
	LiveType     sse.EventType
}

// Send persists the notification and pushes it live. A failed push is
// logged; the stored notification is still there on next page load.
func (s *Service) Send(ctx context.Context, p SendParams) error {
	if s == nil || s.repo == nil {
		return apperr.Internal("in-app notification service not configured")
	}

	if p.Category == "" {
		p.Category = "info"
	}

	var resourceType, actionRef *string
	if p.ResourceType != "" {
		resourceType = &p.ResourceType
	}
	if p.ActionRef != "" {
		actionRef = &p.ActionRef
	}

	notif, err := s.repo.Create(ctx, CreateParams{
		OrganizationID: p.OrgID,
		UserID:         p.UserID,
		Title:          p.Title,
		Content:        p.Content,
		ActionRef:      actionRef,
		ResourceID:     p.ResourceID,
		ResourceType:   resourceType,
		Category:       p.Category,
	})
	if err != nil {
		if s.log != nil {
			s.log.Error("failed to persist in-app notification", "error", err, "userId", p.UserID)
		}
		return err
	}

	if s.pusher != nil {
		liveType := p.LiveType
		if liveType == "" {
			liveType = sse.EventInAppNotification
		}
		event := sse.Event{Type: liveType, Message: p.Title, Data: notif}
		if p.ResourceID != nil {
			event.LeadID = *p.ResourceID
		}
		if err := s.pusher.Push(ctx, p.UserID, event); err != nil && s.log != nil {
			s.log.Warn("live notification push failed", "error", err, "userId", p.UserID)
		}
	}

	return nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, userID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}
