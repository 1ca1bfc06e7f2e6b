package api

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis/v3"
	"github.com/viral32111/LiveChat/domain/room"
	"github.com/viral32111/LiveChat/modules/attachments"
	"github.com/viral32111/LiveChat/modules/broadcast"
	"github.com/viral32111/LiveChat/modules/lifecycle"
	chatsession "github.com/viral32111/LiveChat/modules/session"
)

// SessionCookieName is the cookie carrying the session identifier.
const SessionCookieName = "sessionIdentifier"

const (
	defaultPort              = "3000"
	defaultSessionExpiration = 24 * time.Hour
	drainTimeout             = 10 * time.Second
)

// Config holds api module configuration.
type Config struct {
	Port              string
	ClientDir         string
	CookieDomain      string
	CookieSecure      bool
	SessionExpiration time.Duration
	RedisAddr         string
	RedisPassword     string
	Chat              chatsession.Config
}

// AttachmentStore stores uploaded files and serves them back.
type AttachmentStore interface {
	Store(ctx context.Context, uploads []attachments.Upload) ([]room.Attachment, error)
	Open(ctx context.Context, key string) (io.ReadCloser, *attachments.FileInfo, error)
}

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	cfg         Config
	app         *fiber.App
	lifecycle   lifecycle.LifecyclePort
	broadcast   *broadcast.Module
	attachments *attachments.Module
	registry    *broadcast.Registry
	files       AttachmentStore
	sessions    *session.Store
	storage     *redis.Storage
	logger      types.Logger

	mu       sync.Mutex
	active   map[*chatsession.Session]struct{}
	wg       sync.WaitGroup
	stopping bool
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*APIModule)(nil)
	_ mono.DependentModule       = (*APIModule)(nil)
	_ mono.HealthCheckableModule = (*APIModule)(nil)
)

// NewModule creates a new APIModule.
func NewModule(cfg Config, logger types.Logger) *APIModule {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.SessionExpiration <= 0 {
		cfg.SessionExpiration = defaultSessionExpiration
	}
	return &APIModule{
		cfg:    cfg,
		logger: logger,
		active: make(map[*chatsession.Session]struct{}),
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"lifecycle"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "lifecycle":
		m.lifecycle = lifecycle.NewLifecycleAdapter(container)
	}
}

// SetBroadcastModule sets the module owning live connections (called from main.go).
func (m *APIModule) SetBroadcastModule(b *broadcast.Module) {
	m.broadcast = b
}

// SetAttachmentsModule sets the attachment storage module (called from main.go).
func (m *APIModule) SetAttachmentsModule(a *attachments.Module) {
	m.attachments = a
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.lifecycle == nil {
		return fmt.Errorf("lifecycle adapter dependency not set")
	}
	if m.broadcast == nil {
		return fmt.Errorf("broadcast module not set")
	}
	if m.attachments == nil || m.attachments.Service() == nil {
		return fmt.Errorf("attachments module not set or not started")
	}
	m.registry = m.broadcast.Registry()
	m.files = m.attachments.Service()

	m.setupApp()

	go func() {
		if err := m.app.Listen(":" + m.cfg.Port); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started",
		"port", m.cfg.Port,
		"sessionStorage", m.sessionStorageName())
	return nil
}

// setupApp builds the Fiber app, its middleware and routes.
func (m *APIModule) setupApp() {
	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		BodyLimit:             attachments.MaxFiles*attachments.MaxFileSize + 1<<20,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	storeCfg := session.Config{
		Expiration:     m.cfg.SessionExpiration,
		KeyLookup:      "cookie:" + SessionCookieName,
		CookieDomain:   m.cfg.CookieDomain,
		CookiePath:     "/",
		CookieSecure:   m.cfg.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: "Strict",
	}
	if m.cfg.RedisAddr != "" {
		host, port := parseRedisAddr(m.cfg.RedisAddr)
		m.storage = redis.New(redis.Config{
			Host:     host,
			Port:     port,
			Password: m.cfg.RedisPassword,
			PoolSize: 10,
		})
		storeCfg.Storage = m.storage
	}
	m.sessions = session.New(storeCfg)

	m.app.Use(recover.New())
	m.app.Use(fiberlogger.New(fiberlogger.Config{
		Next: websocket.IsWebSocketUpgrade,
	}))
	m.app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,DELETE",
	}))

	m.setupRoutes()
}

// Stop closes every chat session, waits for their close paths and shuts
// down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}

	m.mu.Lock()
	m.stopping = true
	sessions := make([]*chatsession.Session, 0, len(m.active))
	for s := range m.active {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Shutdown()
	}

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		m.logger.Warn("Shutdown interrupted before chat sessions closed")
	case <-time.After(drainTimeout):
		m.logger.Warn("Timed out waiting for chat sessions to close")
	}

	m.logger.Info("Shutting down HTTP server", "closedSessions", len(sessions))
	err := m.app.ShutdownWithContext(ctx)
	if m.storage != nil {
		if closeErr := m.storage.Close(); closeErr != nil {
			m.logger.Warn("Failed to close session storage", "error", closeErr)
		}
	}
	return err
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	connections := 0
	if m.registry != nil {
		connections = m.registry.Size()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":            m.cfg.Port,
			"connections":     connections,
			"chat_sessions":   m.activeSessions(),
			"session_storage": m.sessionStorageName(),
		},
	}
}

// track adds a chat session to the set closed on shutdown. It refuses once
// the module is stopping.
func (m *APIModule) track(s *chatsession.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return false
	}
	m.active[s] = struct{}{}
	m.wg.Add(1)
	return true
}

func (m *APIModule) untrack(s *chatsession.Session) {
	m.mu.Lock()
	delete(m.active, s)
	m.mu.Unlock()
	m.wg.Done()
}

func (m *APIModule) activeSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *APIModule) sessionStorageName() string {
	if m.cfg.RedisAddr != "" {
		return "redis"
	}
	return "memory"
}

// parseRedisAddr parses "host:port" into host and port.
// Returns defaults (127.0.0.1:6379) for invalid or missing values.
func parseRedisAddr(addr string) (string, int) {
	const defaultHost = "127.0.0.1"
	const defaultPort = 6379

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}
	if host == "" {
		host = defaultHost
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = defaultPort
	}
	return host, port
}
