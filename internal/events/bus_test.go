package events

import (
	"context"
	"testing"

	"leadengine_backend/platform/logger"

	"github.com/google/uuid"
)

// The composition roots construct the bus through this package, so the
// re-export has to produce a working bus for domain events.
func TestNewInMemoryBusDeliversDomainEvents(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	orgID := uuid.New()
	var received ScoresRefreshed
	bus.Subscribe(ScoresRefreshed{}.EventName(), HandlerFunc(func(_ context.Context, e Event) error {
		received = e.(ScoresRefreshed)
		return nil
	}))

	err := bus.PublishSync(context.Background(), ScoresRefreshed{
		BaseEvent:      NewBaseEvent(),
		OrganizationID: orgID,
		LeadCount:      3,
	})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}
	if received.OrganizationID != orgID || received.LeadCount != 3 {
		t.Errorf("handler received %+v, want org %s with 3 leads", received, orgID)
	}
}
