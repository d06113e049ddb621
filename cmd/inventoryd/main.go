// Package main provides the inventoryd binary entry point.
// Inventoryd consumes SBOM ingestion work from NATS and reconciles
// software components, licenses, copyrights and file trees into a
// persistent inventory database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/componentregistry"
	ssconfig "github.com/c360studio/semstreams/config"
	"github.com/c360studio/semstreams/metric"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/c360studio/semstreams/service"
	"github.com/c360studio/semstreams/types"
	"github.com/spf13/cobra"

	"github.com/oscomply/inventoryd/config"
	reportwatcher "github.com/oscomply/inventoryd/processor/report-watcher"
	workdispatcher "github.com/oscomply/inventoryd/processor/work-dispatcher"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "inventoryd"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "inventoryd",
		Short: "SBOM ingestion and inventory reconciliation service",
		Long: `Inventoryd ingests software bills of materials and scan reports
into a persistent component inventory.

It provides:
- SPDX document ingestion with license expression handling
- Tabular scan-report row ingestion
- Artifact download, extraction and file tree scanning
- Vulnerability lookups against the OSV database

All components communicate via NATS using the semstreams framework.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	// Init command writes a starter user config
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default user configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.NewLoader(nil).EnsureUserConfig(); err != nil {
				return err
			}
			fmt.Printf("User configuration ready under ~/%s\n", config.UserConfigDir)
			return nil
		},
	})

	return cmd
}

func run(configPath, logLevel string) error {
	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Connect to NATS
	ctx := context.Background()
	natsClient, err := connectToNATS(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	// Build the platform configuration carrying streams and component
	// settings
	platformCfg := buildPlatformConfig(cfg)

	// Ensure JetStream streams exist
	if err := ensureStreams(ctx, platformCfg, natsClient, logger); err != nil {
		return err
	}

	slog.Info("Inventoryd ready",
		"version", Version,
		"database", cfg.Storage.DatabasePath)

	// Create remaining infrastructure
	metricsRegistry := metric.NewMetricsRegistry()
	platform := extractPlatformMeta(platformCfg)

	// Create and start config manager (required for component-manager to access component configs)
	configManager, err := ssconfig.NewConfigManager(platformCfg, natsClient, logger)
	if err != nil {
		return fmt.Errorf("create config manager: %w", err)
	}
	if err := configManager.Start(ctx); err != nil {
		return fmt.Errorf("start config manager: %w", err)
	}
	defer configManager.Stop(5 * time.Second)

	// Create and populate component registry
	componentRegistry := component.NewRegistry()

	// Register all semstreams components
	slog.Debug("Registering semstreams component factories")
	if err := componentregistry.Register(componentRegistry); err != nil {
		return fmt.Errorf("register semstreams components: %w", err)
	}

	// Register inventoryd-specific components
	slog.Debug("Registering inventoryd component factories")
	if err := workdispatcher.Register(componentRegistry); err != nil {
		return fmt.Errorf("register work-dispatcher: %w", err)
	}
	if err := reportwatcher.Register(componentRegistry); err != nil {
		return fmt.Errorf("register report-watcher: %w", err)
	}

	factories := componentRegistry.ListFactories()
	slog.Info("Component factories registered", "count", len(factories))

	// Create service registry and manager (semstreams pattern)
	serviceRegistry := service.NewServiceRegistry()
	if err := service.RegisterAll(serviceRegistry); err != nil {
		return fmt.Errorf("register services: %w", err)
	}

	manager := service.NewServiceManager(serviceRegistry)
	ensureServiceManagerConfig(platformCfg)

	// Create service dependencies
	svcDeps := &service.Dependencies{
		NATSClient:        natsClient,
		MetricsRegistry:   metricsRegistry,
		Logger:            logger,
		Platform:          platform,
		Manager:           configManager,
		ComponentRegistry: componentRegistry,
	}

	// Configure and create services
	if err := configureAndCreateServices(platformCfg, manager, svcDeps); err != nil {
		return err
	}

	slog.Info("All services configured")

	// Setup signal handling
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	// Start all services (includes HTTP server with health endpoints)
	slog.Info("Starting all services")
	if err := manager.StartAll(signalCtx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	slog.Info("All services started successfully")

	// Block until shutdown signal
	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	// Stop all services
	shutdownTimeout := 30 * time.Second
	if err := manager.StopAll(shutdownTimeout); err != nil {
		slog.Error("Error stopping services", "error", err)
	}

	slog.Info("Inventoryd shutdown complete")
	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	// Layered lookup: defaults, user config, project config, environment
	return config.NewLoader(nil).Load()
}

// buildPlatformConfig translates application settings into the
// semstreams platform configuration the service manager consumes.
func buildPlatformConfig(cfg *config.Config) *ssconfig.Config {
	channels := make(map[string]string)
	for _, name := range []string{"license_matcher", "copyright_filter", "vulnerability"} {
		if subject, ok := cfg.Channels.Subject(name); ok {
			channels[name] = subject
		}
	}
	dispatcherConfig := map[string]any{
		"stream_name":              "WORK",
		"consumer_name":            "work-dispatcher",
		"database_path":            cfg.Storage.DatabasePath,
		"download_dir":             cfg.Download.Dir,
		"channels":                 channels,
		"send_to_license_matcher":  cfg.Publish.SendToLicenseMatcher,
		"send_to_copyright_filter": cfg.Publish.SendToCopyrightFilter,
	}
	if cfg.Download.ConnectTimeout > 0 {
		dispatcherConfig["connect_timeout"] = cfg.Download.ConnectTimeout.String()
	}
	if cfg.Download.ReadTimeout > 0 {
		dispatcherConfig["read_timeout"] = cfg.Download.ReadTimeout.String()
	}
	dispatcherJSON, _ := json.Marshal(dispatcherConfig)

	watcherConfig := map[string]any{
		"drop_dir":            cfg.Watch.DropDir,
		"database_path":       cfg.Storage.DatabasePath,
		"use_license_matcher": cfg.Publish.SendToLicenseMatcher,
		"use_copyright_ai":    cfg.Publish.SendToCopyrightFilter,
	}
	watcherJSON, _ := json.Marshal(watcherConfig)

	return &ssconfig.Config{
		Version: "1.0.0",
		Platform: ssconfig.PlatformConfig{
			Org:         "oscomply",
			ID:          "inventoryd-local",
			Environment: "dev",
		},
		NATS: ssconfig.NATSConfig{
			URLs:          []string{cfg.NATS.URL},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			JetStream: ssconfig.JetStreamConfig{
				Enabled: true,
			},
		},
		Services: types.ServiceConfigs{},
		Components: ssconfig.ComponentConfigs{
			"work-dispatcher": types.ComponentConfig{
				Name:    "work-dispatcher",
				Type:    types.ComponentTypeProcessor,
				Enabled: true,
				Config:  dispatcherJSON,
			},
			"report-watcher": types.ComponentConfig{
				Name:    "report-watcher",
				Type:    types.ComponentTypeProcessor,
				Enabled: cfg.Watch.Enabled,
				Config:  watcherJSON,
			},
		},
		Streams: ssconfig.StreamConfigs{
			"WORK": ssconfig.StreamConfig{
				Subjects: []string{
					"work.>",
				},
				MaxAge:   "168h",
				Storage:  "file",
				Replicas: 1,
			},
			"INVENTORY": ssconfig.StreamConfig{
				Subjects: []string{
					"inventory.>",
				},
				MaxAge:   "168h",
				Storage:  "file",
				Replicas: 1,
			},
		},
	}
}

func connectToNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	natsURL := cfg.NATS.URL

	logger.Info("Connecting to NATS", "url", natsURL)

	client, err := natsclient.NewClient(natsURL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	logger.Info("Connected to NATS", "url", natsURL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

func ensureStreams(ctx context.Context, cfg *ssconfig.Config, natsClient *natsclient.Client, logger *slog.Logger) error {
	logger.Debug("Creating JetStream streams")
	streamsManager := ssconfig.NewStreamsManager(natsClient, logger)

	if err := streamsManager.EnsureStreams(ctx, cfg); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	logger.Debug("JetStream streams ready")
	return nil
}

func extractPlatformMeta(cfg *ssconfig.Config) types.PlatformMeta {
	platformID := cfg.Platform.InstanceID
	if platformID == "" {
		platformID = cfg.Platform.ID
	}

	return types.PlatformMeta{
		Org:      cfg.Platform.Org,
		Platform: platformID,
	}
}

// ensureServiceManagerConfig ensures service-manager config exists with defaults
func ensureServiceManagerConfig(cfg *ssconfig.Config) {
	if cfg.Services == nil {
		cfg.Services = make(types.ServiceConfigs)
	}

	if _, exists := cfg.Services["service-manager"]; !exists {
		slog.Debug("Adding default service-manager config")
		defaultConfig := map[string]any{
			"http_port":  8080,
			"swagger_ui": false,
			"server_info": map[string]string{
				"title":       "Inventoryd API",
				"description": "SBOM ingestion and inventory reconciliation service",
				"version":     Version,
			},
		}
		defaultConfigJSON, _ := json.Marshal(defaultConfig)
		cfg.Services["service-manager"] = types.ServiceConfig{
			Name:    "service-manager",
			Enabled: true,
			Config:  defaultConfigJSON,
		}
	}
}

// configureAndCreateServices configures the manager and creates all services
func configureAndCreateServices(
	cfg *ssconfig.Config,
	manager *service.Manager,
	svcDeps *service.Dependencies,
) error {
	slog.Debug("Configuring Manager")
	if err := manager.ConfigureFromServices(cfg.Services, svcDeps); err != nil {
		return fmt.Errorf("configure service manager: %w", err)
	}

	slog.Debug("Creating services from config", "count", len(cfg.Services))
	for name, svcConfig := range cfg.Services {
		if name == "service-manager" {
			continue
		}

		if !svcConfig.Enabled {
			slog.Info("Service disabled in config", "name", name)
			continue
		}
		if !manager.HasConstructor(name) {
			slog.Warn("Service configured but not registered", "key", name)
			continue
		}

		if _, err := manager.CreateService(name, svcConfig.Config, svcDeps); err != nil {
			return fmt.Errorf("create service %s: %w", name, err)
		}
		slog.Info("Created service", "name", name)
	}

	return nil
}
