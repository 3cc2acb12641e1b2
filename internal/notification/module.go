// Package notification delivers lead notifications: persisted in-app rows,
// live SSE pushes and the redis fan-out between processes.
package notification

import (
	"context"

	apphttp "portal_lead_distribution/internal/http"
	"portal_lead_distribution/internal/notification/broadcast"
	"portal_lead_distribution/internal/notification/handler"
	"portal_lead_distribution/internal/notification/inapp"
	"portal_lead_distribution/internal/notification/sse"
	"portal_lead_distribution/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Module is the notification bounded context implementing http.Module.
type Module struct {
	inapp    *inapp.Service
	hub      *sse.Service
	notifier *LeadNotifier
	handler  *handler.HTTPHandler
	log      *logger.Logger
}

// New wires the in-app service with pushes going to the local SSE hub.
// Call UseBroadcast to route pushes through redis instead.
func New(store inapp.Store, log *logger.Logger) *Module {
	hub := sse.New(log)
	svc := inapp.NewService(store, log)
	svc.SetPusher(hub)

	return &Module{
		inapp:    svc,
		hub:      hub,
		notifier: NewLeadNotifier(svc),
		handler:  handler.NewHTTPHandler(svc, hub),
		log:      log,
	}
}

// UseBroadcast publishes live events on the redis channel. Processes that
// serve SSE also call Subscribe to receive them.
func (m *Module) UseBroadcast(client redis.UniversalClient, channel string) {
	m.inapp.SetPusher(broadcast.NewPublisher(client, channel))
}

// Subscribe feeds channel messages into the local SSE hub until ctx ends.
func (m *Module) Subscribe(ctx context.Context, client redis.UniversalClient, channel string) error {
	return broadcast.NewSubscriber(client, channel, m.hub, m.log).Run(ctx, nil)
}

// Notifier returns the distribution notification adapter.
func (m *Module) Notifier() *LeadNotifier {
	return m.notifier
}

// SSE returns the live event hub.
func (m *Module) SSE() *sse.Service {
	return m.hub
}

// Close disconnects SSE clients.
func (m *Module) Close() {
	m.hub.Close()
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes mounts /api/v1/notifications.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}
