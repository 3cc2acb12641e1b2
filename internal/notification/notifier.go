package notification

import (
	"context"
	"errors"

	"portal_lead_distribution/internal/distribution/ports"
	"portal_lead_distribution/internal/notification/inapp"
	"portal_lead_distribution/internal/notification/sse"
)

// Sender is the in-app send operation.
type Sender interface {
	Send(ctx context.Context, p inapp.SendParams) error
}

// LeadNotifier turns distribution notifications into one in-app
// notification per recipient.
type LeadNotifier struct {
	sender Sender
}

var _ ports.Notifier = (*LeadNotifier)(nil)

func NewLeadNotifier(sender Sender) *LeadNotifier {
	return &LeadNotifier{sender: sender}
}

// Notify sends to every recipient and joins the failures; one bad recipient
// does not stop the rest.
func (n *LeadNotifier) Notify(ctx context.Context, msg ports.Notification) error {
	liveType := sse.EventLeadAssigned
	if msg.Kind == ports.NotificationLeadAvailable {
		liveType = sse.EventLeadAvailable
	}

	leadID := msg.LeadID
	var errs []error
	for _, userID := range msg.UserIDs {
		err := n.sender.Send(ctx, inapp.SendParams{
			OrgID:        msg.OrganizationID,
			UserID:       userID,
			Title:        msg.Title,
			Content:      msg.Message,
			ActionRef:    msg.ActionRef,
			ResourceID:   &leadID,
			ResourceType: "lead",
			Category:     "lead",
			LiveType:     liveType,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
