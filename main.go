package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viral32111/LiveChat/config"
	"github.com/viral32111/LiveChat/modules/api"
	"github.com/viral32111/LiveChat/modules/attachments"
	"github.com/viral32111/LiveChat/modules/broadcast"
	"github.com/viral32111/LiveChat/modules/cache"
	"github.com/viral32111/LiveChat/modules/lifecycle"
	"github.com/viral32111/LiveChat/modules/session"
)

const attachmentsBucketMaxBytes = 1024 * 1024 * 1024

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:          "livechat",
		Short:        "Anonymous guest chat rooms over websockets",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file (yaml, json, toml or .env)")
	cmd.Flags().Int("port", 3000, "HTTP port to listen on")
	cmd.Flags().String("db-path", "livechat.db", "SQLite database file")
	_ = v.BindPFlag(config.KeyHTTPPort, cmd.Flags().Lookup("port"))
	_ = v.BindPFlag(config.KeyDBPath, cmd.Flags().Lookup("db-path"))

	return cmd
}

func run(cfg *config.Config) error {
	log.Println("=== LiveChat - Fiber + WebSocket + GORM SQLite ===")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DBPath)
	log.Printf("Storage Path: %s", cfg.StorageDir)

	logLevel := mono.LogLevelInfo
	if cfg.LogLevel == "error" {
		logLevel = mono.LogLevelError
	}

	// Create mono application with embedded NATS JetStream
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(logLevel),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(cfg.StorageDir),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Attachments live in a file-backed bucket of the embedded JetStream
	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        attachments.BucketName,
				Description: "Chat message attachments",
				MaxBytes:    attachmentsBucketMaxBytes,
				Storage:     fsjetstream.FileStorage,
				Compression: true,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create storage plugin: %w", err)
	}
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		return fmt.Errorf("failed to register storage plugin: %w", err)
	}

	// Create modules
	cacheModule := cache.NewModule(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TTL:      cfg.CacheTTL,
	}, app.Logger())
	broadcastModule := broadcast.NewModule(app.Logger())
	lifecycleModule := lifecycle.NewModule(lifecycle.Config{
		DBPath:       cfg.DBPath,
		DBDebug:      cfg.DBDebug,
		HistoryLimit: cfg.HistoryLimit,
	}, app.Logger())
	attachmentsModule := attachments.NewModule(app.Logger())
	apiModule := api.NewModule(api.Config{
		Port:              strconv.Itoa(cfg.HTTPPort),
		ClientDir:         cfg.ClientDir,
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		SessionExpiration: cfg.SessionExpiration,
		RedisAddr:         cfg.RedisAddr,
		RedisPassword:     cfg.RedisPassword,
		Chat: session.Config{
			IdleTimeout:  cfg.WSIdleTimeout,
			PingInterval: cfg.WSPingInterval,
			WriteTimeout: cfg.WSWriteTimeout,
		},
	}, app.Logger())

	// Wire up dependencies that are not exposed via ServiceContainer
	lifecycleModule.SetBroadcastModule(broadcastModule)
	lifecycleModule.SetCacheModule(cacheModule)
	apiModule.SetBroadcastModule(broadcastModule)
	apiModule.SetAttachmentsModule(attachmentsModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - cache: optional Redis directory cache
	// - broadcast: connection registry and fan-out
	// - lifecycle: stores and room transitions (ServiceProviderModule + EventEmitterModule)
	// - attachments: upload storage (UsePluginModule + EventConsumerModule)
	// - api: driving adapter (Fiber HTTP/WebSocket server, depends on lifecycle)
	app.Register(cacheModule)
	app.Register(broadcastModule)
	app.Register(lifecycleModule)
	app.Register(attachmentsModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
	return nil
}

func printStartupInfo(cfg *config.Config) {
	cacheState := "disabled"
	if cfg.RedisAddr != "" {
		cacheState = cfg.RedisAddr
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("Redis (room directory cache, sessions): %s", cacheState)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", cfg.HTTPPort)
	log.Println("  GET    /health            - Health check")
	log.Println("  POST   /api/name          - Choose a display name")
	log.Println("  GET    /api/name          - Get the chosen name")
	log.Println("  DELETE /api/session       - End the session")
	log.Println("  GET    /api/rooms         - List public rooms")
	log.Println("  POST   /api/room          - Create a room")
	log.Println("  GET    /api/room          - Get the current room")
	log.Println("  GET    /api/room/:code    - Join a room by code")
	log.Println("  DELETE /api/room          - Leave the current room")
	log.Println("  POST   /api/upload        - Upload attachments")
	log.Println("  GET    /attachments/:key  - Download an attachment")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%d/api/chat)", cfg.HTTPPort)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
