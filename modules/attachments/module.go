package attachments

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/viral32111/LiveChat/events"
)

// BucketName is the fs-jetstream bucket holding attachments.
const BucketName = "attachments"

// Module stores uploaded attachments using the fs-jetstream plugin.
type Module struct {
	storage *fsjetstream.PluginModule
	bucket  fsjetstream.FileStoragePort
	service *Service
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.UsePluginModule     = (*Module)(nil)
	_ mono.EventConsumerModule = (*Module)(nil)
)

// NewModule creates a new attachments module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "attachments"
}

// SetPlugin receives the storage plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	storage, ok := plugin.(*fsjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for storage",
			"alias", alias,
			"expected", "*fsjetstream.PluginModule")
		return
	}
	m.storage = storage
	m.logger.Info("Received storage plugin", "alias", alias)
}

// Start initializes the module and its service.
func (m *Module) Start(_ context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("required plugin 'storage' not registered")
	}

	m.bucket = m.storage.Bucket(BucketName)
	if m.bucket == nil {
		return fmt.Errorf("bucket '%s' not found in storage plugin", BucketName)
	}
	m.service = NewService(m.bucket)

	m.logger.Info("Attachments module started", "bucket", BucketName)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Attachments module stopped")
	return nil
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomDeletedV1, m.handleRoomDeleted, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomDeleted consumer: %w", err)
	}
	return nil
}

// handleRoomDeleted removes the files attached to a deleted room's messages.
func (m *Module) handleRoomDeleted(ctx context.Context, event events.RoomDeletedEvent, _ *mono.Msg) error {
	if len(event.AttachmentPaths) == 0 || m.service == nil {
		return nil
	}
	deleted, err := m.service.Delete(ctx, event.AttachmentPaths)
	if err != nil {
		m.logger.Warn("Failed to delete some attachments of deleted room",
			"roomID", event.RoomID,
			"error", err)
	}
	m.logger.Info("Deleted attachments of deleted room",
		"roomID", event.RoomID,
		"count", deleted)
	return nil
}

// Service returns the attachment service instance.
func (m *Module) Service() *Service {
	return m.service
}
