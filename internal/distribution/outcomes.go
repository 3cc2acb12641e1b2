package distribution

import (
	"context"

	"portal_lead_distribution/internal/events"
)

// OutcomeRecorder counts distribution outcomes by label.
type OutcomeRecorder interface {
	IncOutcome(outcome string)
}

// SubscribeOutcomes counts every distribution event on rec.
func SubscribeOutcomes(bus events.Bus, rec OutcomeRecorder) {
	count := events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if outcome := outcomeOf(event); outcome != "" {
			rec.IncOutcome(outcome)
		}
		return nil
	})
	bus.Subscribe(events.LeadReserved{}.EventName(), count)
	bus.Subscribe(events.LeadAssigned{}.EventName(), count)
	bus.Subscribe(events.LeadEscalated{}.EventName(), count)
	bus.Subscribe(events.ReservationCleared{}.EventName(), count)
}

func outcomeOf(event events.Event) string {
	switch e := event.(type) {
	case events.LeadReserved:
		return "reserved"
	case events.LeadAssigned:
		return "assigned_" + string(e.Source)
	case events.LeadEscalated:
		return "escalated_" + e.Fallback
	case events.ReservationCleared:
		return "cleared_" + e.Reason
	default:
		return ""
	}
}
