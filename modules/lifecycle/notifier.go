package lifecycle

import (
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/viral32111/LiveChat/events"
)

// busNotifier publishes lifecycle events on the mono event bus. A failed
// publish is logged; the transition it reports has already happened.
type busNotifier struct {
	bus    mono.EventBus
	logger types.Logger
}

func (n *busNotifier) RoomCreated(ev events.RoomCreatedEvent) {
	if err := events.RoomCreatedV1.Publish(n.bus, ev, nil); err != nil {
		n.logger.Warn("Failed to publish RoomCreated event", "roomID", ev.RoomID, "error", err)
	}
}

func (n *busNotifier) RoomDeleted(ev events.RoomDeletedEvent) {
	if err := events.RoomDeletedV1.Publish(n.bus, ev, nil); err != nil {
		n.logger.Warn("Failed to publish RoomDeleted event", "roomID", ev.RoomID, "error", err)
	}
}

func (n *busNotifier) MembershipChanged(ev events.MembershipChangedEvent) {
	if err := events.MembershipChangedV1.Publish(n.bus, ev, nil); err != nil {
		n.logger.Warn("Failed to publish MembershipChanged event", "roomID", ev.RoomID, "error", err)
	}
}

func (n *busNotifier) MessagePosted(ev events.MessagePostedEvent) {
	if err := events.MessagePostedV1.Publish(n.bus, ev, nil); err != nil {
		n.logger.Warn("Failed to publish MessagePosted event", "messageID", ev.MessageID, "error", err)
	}
}
