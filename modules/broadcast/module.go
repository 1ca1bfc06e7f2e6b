package broadcast

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/viral32111/LiveChat/events"
)

// Module owns the connection registry and the broadcast engine.
type Module struct {
	registry *Registry
	engine   *Engine
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new broadcast module.
func NewModule(logger types.Logger) *Module {
	registry := NewRegistry(logger)
	return &Module{
		registry: registry,
		engine:   NewEngine(registry, logger),
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Broadcast module started")
	return nil
}

// Stop closes every remaining connection.
func (m *Module) Stop(_ context.Context) error {
	closed := m.registry.CloseAll(CloseGoingAway, ReasonShutdown)
	m.logger.Info("Broadcast module stopped", "closedConnections", closed)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	delivered, failed := m.engine.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections":  m.registry.Size(),
			"active_rooms": m.registry.RoomCount(),
			"delivered":    delivered,
			"failed":       failed,
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomDeletedV1, m.handleRoomDeleted, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomDeleted consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "RoomDeleted")
	return nil
}

// handleRoomDeleted closes connections still registered for a deleted room.
// Normally there are none: the room is only deleted once nobody is left.
func (m *Module) handleRoomDeleted(_ context.Context, event events.RoomDeletedEvent, _ *mono.Msg) error {
	stale := m.registry.DropRoom(event.RoomID)
	for _, entry := range stale {
		_ = entry.Peer.CloseWith(CloseNormal, ReasonRoomDeleted)
	}
	if len(stale) > 0 {
		m.logger.Warn("Closed connections of deleted room",
			"roomID", event.RoomID,
			"count", len(stale))
	}
	return nil
}

// Registry returns the connection registry.
func (m *Module) Registry() *Registry {
	return m.registry
}

// Engine returns the broadcast engine.
func (m *Module) Engine() *Engine {
	return m.engine
}
