package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/viral32111/LiveChat/domain/guest"
	"github.com/viral32111/LiveChat/domain/room"
	"github.com/viral32111/LiveChat/events"
	"github.com/viral32111/LiveChat/modules/broadcast"
	"github.com/viral32111/LiveChat/modules/cache"
	"gorm.io/gorm"
)

// Config holds lifecycle module configuration.
type Config struct {
	DBPath       string
	DBDebug      bool
	HistoryLimit int
}

// Module owns the identity and room stores and runs every room transition.
type Module struct {
	cfg       Config
	db        *gorm.DB
	manager   *Manager
	broadcast *broadcast.Module
	cache     *cache.Module
	eventBus  mono.EventBus
	logger    types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)

	_ DirectoryCache = (*cache.Cache)(nil)
)

// NewModule creates a new lifecycle module.
func NewModule(cfg Config, logger types.Logger) *Module {
	if cfg.DBPath == "" {
		cfg.DBPath = "livechat.db"
	}
	return &Module{cfg: cfg, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "lifecycle"
}

// SetBroadcastModule sets the module that owns live connections.
func (m *Module) SetBroadcastModule(b *broadcast.Module) {
	m.broadcast = b
}

// SetCacheModule sets the cache used for the public room directory.
func (m *Module) SetCacheModule(c *cache.Module) {
	m.cache = c
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.RoomDeletedV1.ToBase(),
		events.MembershipChangedV1.ToBase(),
		events.MessagePostedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceChooseName, json.Unmarshal, json.Marshal, m.chooseName,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceChooseName, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetName, json.Unmarshal, json.Marshal, m.getName,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetName, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.createRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceJoinRoom, json.Unmarshal, json.Marshal, m.joinRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceJoinRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLeaveRoom, json.Unmarshal, json.Marshal, m.leaveRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLeaveRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceEndSession, json.Unmarshal, json.Marshal, m.endSession,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceEndSession, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRoom, json.Unmarshal, json.Marshal, m.getRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCurrentRoom, json.Unmarshal, json.Marshal, m.currentRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCurrentRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServicePostMessage, json.Unmarshal, json.Marshal, m.postMessage,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServicePostMessage, err)
	}

	m.logger.Info("Registered lifecycle services",
		"services", "choose-name,get-name,create-room,join-room,leave-room,end-session,get-room,current-room,list-rooms,post-message")
	return nil
}

// Start opens the database, builds the manager and sweeps rooms left empty
// by a previous run.
func (m *Module) Start(ctx context.Context) error {
	if m.broadcast == nil {
		return fmt.Errorf("broadcast module not set")
	}

	db, err := OpenDatabase(m.cfg.DBPath, m.cfg.DBDebug)
	if err != nil {
		return err
	}
	m.db = db

	opts := []Option{WithNotifier(&busNotifier{bus: m.eventBus, logger: m.logger})}
	if m.cfg.HistoryLimit > 0 {
		opts = append(opts, WithHistoryLimit(m.cfg.HistoryLimit))
	}
	if m.cache != nil {
		if c := m.cache.Cache(); c != nil {
			opts = append(opts, WithDirectoryCache(c))
		}
	}

	manager, err := NewManager(
		guest.NewRepository(db),
		room.NewRepository(db),
		room.NewMessageRepository(db),
		m.broadcast.Registry(),
		m.broadcast.Engine(),
		m.logger,
		opts...,
	)
	if err != nil {
		return err
	}
	m.manager = manager

	if _, err := m.manager.SweepEmptyRooms(ctx); err != nil {
		m.logger.Warn("Failed to sweep empty rooms", "error", err)
	}

	m.logger.Info("Lifecycle module started", "database", m.cfg.DBPath)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.logger.Info("Lifecycle module stopped")
	return nil
}

// Health performs a health check on the lifecycle module.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver":          "sqlite",
			"path":            m.cfg.DBPath,
			"directory_cache": m.manager != nil && m.manager.directory != nil,
		},
	}
}

// Manager returns the lifecycle manager. It is nil until the module has started.
func (m *Module) Manager() *Manager {
	return m.manager
}
