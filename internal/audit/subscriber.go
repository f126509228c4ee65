package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ocupmed/platform/internal/shared/events"
	"github.com/ocupmed/platform/internal/shared/metrics"
	"github.com/ocupmed/platform/internal/shared/types"
)

// Subscriber listens to workflow events and records audit entries
type Subscriber struct {
	repo *Repository
	bus  events.EventBus
}

// NewSubscriber creates a new audit subscriber
func NewSubscriber(repo *Repository, bus events.EventBus) *Subscriber {
	return &Subscriber{repo: repo, bus: bus}
}

// Start subscribes to every event family the workflow publishes
func (s *Subscriber) Start(ctx context.Context) error {
	patterns := []struct {
		pattern      string
		consumerName string
	}{
		{"consultation.*", "audit-consultation-subscriber"},
		{"appointment.*", "audit-appointment-subscriber"},
		{"claim.*", "audit-claim-subscriber"},
		{"patient.*", "audit-patient-subscriber"},
	}

	for _, p := range patterns {
		if err := s.bus.Subscribe(ctx, p.pattern, p.consumerName, s.handleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", p.pattern, err)
		}
	}

	return nil
}

func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	entry := s.eventToEntry(event)
	if entry == nil {
		return nil
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	metrics.RecordAuditEntry()
	return nil
}

// eventToEntry maps a domain event to an audit entry. The event type's
// prefix names the resource; the resource ID is read from the payload.
func (s *Subscriber) eventToEntry(event events.Event) *Entry {
	parts := strings.SplitN(event.Type, ".", 2)
	if len(parts) < 2 {
		return nil
	}

	resourceType := parts[0]

	var resourceID *types.ID
	data, _ := event.Data.(map[string]any)
	if data != nil {
		for _, field := range []string{resourceType + "_id", "id"} {
			if idVal, ok := data[field]; ok {
				if idStr, ok := idVal.(string); ok {
					id := types.ID(idStr)
					resourceID = &id
					break
				}
				if id, ok := idVal.(types.ID); ok {
					resourceID = &id
					break
				}
			}
		}
	}

	actorType := ActorTypeDoctor
	switch event.ActorType {
	case "assistant":
		actorType = ActorTypeAssistant
	case "admin":
		actorType = ActorTypeAdmin
	case "system":
		actorType = ActorTypeSystem
	}

	entry := &Entry{
		ID:            types.NewID(),
		Timestamp:     event.Timestamp.UTC().Truncate(time.Microsecond),
		ActorType:     actorType,
		ActorID:       event.ActorID,
		Action:        event.Type,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		CorrelationID: event.CorrelationID,
		Details:       data,
	}

	return entry
}
