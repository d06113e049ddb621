// Package reportwatcher provides the processor that watches a drop
// directory and enqueues dropped SBOM documents and scan reports as
// ingestion work.
package reportwatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/oscomply/inventoryd/inventory"
	"github.com/oscomply/inventoryd/objectstore"
)

// reportWatcherSchema defines the configuration schema.
var reportWatcherSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Component implements the report-watcher processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger
	platform   component.PlatformMeta

	store    *inventory.Store
	enqueuer *Enqueuer
	watcher  *DropWatcher

	// Lifecycle management
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	filesEnqueued  atomic.Int64
	workPublished  atomic.Int64
	errors         atomic.Int64
	lastActivityMu sync.RWMutex
	lastActivity   time.Time
}

// NewComponent creates a new report-watcher processor component.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Use default config if ports not set
	if config.Ports == nil {
		config = DefaultConfig()
		// Re-unmarshal to get user-provided values
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Component{
		name:       "report-watcher",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
		platform:   deps.Platform,
	}

	return c, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	return nil
}

// Start opens the inventory database and begins watching the drop
// directory.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}
	c.running = true
	c.startTime = time.Now()
	c.mu.Unlock()

	fail := func(err error) error {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return err
	}

	store, err := inventory.Open(c.config.DatabasePath)
	if err != nil {
		return fail(fmt.Errorf("open inventory store: %w", err))
	}
	c.store = store

	js, err := c.natsClient.JetStream()
	if err != nil {
		store.Close()
		return fail(fmt.Errorf("get JetStream context: %w", err))
	}

	c.enqueuer = NewEnqueuer(
		inventory.NewReconciler(store),
		objectstore.New(js, c.logger),
		c.natsClient,
		c.config,
		c.logger,
	)

	watcher, err := NewDropWatcher(c.config.DropDir, c.config.GetDebounceDelay(), c.logger)
	if err != nil {
		store.Close()
		return fail(fmt.Errorf("create drop watcher: %w", err))
	}
	c.watcher = watcher

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := watcher.Start(runCtx); err != nil {
		cancel()
		store.Close()
		return fail(fmt.Errorf("start drop watcher: %w", err))
	}

	go c.processWatchEvents(runCtx)

	c.logger.Info("Report watcher started",
		"drop_dir", c.config.DropDir,
		"bucket", c.config.Bucket)

	return nil
}

// processWatchEvents handles settled files from the drop watcher.
func (c *Component) processWatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-c.watcher.Events():
			if !ok {
				return
			}
			c.handleFile(ctx, path)
		}
	}
}

// handleFile enqueues one dropped file and moves it out of the drop
// directory. A file that fails to enqueue stays put and is logged; the
// operator can fix and re-drop it.
func (c *Component) handleFile(ctx context.Context, path string) {
	c.updateLastActivity()

	published, err := c.enqueuer.EnqueueFile(ctx, path)
	if err != nil {
		c.logger.Error("Failed to enqueue dropped file",
			"path", path,
			"error", err)
		c.errors.Add(1)
		return
	}

	if err := MarkProcessed(path); err != nil {
		c.logger.Warn("Failed to move processed file",
			"path", path,
			"error", err)
	}

	c.filesEnqueued.Add(1)
	c.workPublished.Add(int64(published))
	c.logger.Info("Dropped file enqueued",
		"path", path,
		"messages", published)
}

// updateLastActivity safely updates the last activity timestamp.
func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

// getLastActivity safely retrieves the last activity timestamp.
func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}

// Stop gracefully stops the component within the given timeout.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.watcher != nil {
		if err := c.watcher.Stop(); err != nil {
			c.logger.Error("Failed to stop drop watcher", "error", err)
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("Failed to close inventory store", "error", err)
		}
	}

	c.running = false
	c.logger.Info("Report watcher stopped",
		"files_enqueued", c.filesEnqueued.Load(),
		"work_published", c.workPublished.Load(),
		"errors", c.errors.Load())

	return nil
}

// Discoverable interface implementation

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "report-watcher",
		Type:        "processor",
		Description: "Drop directory watcher enqueuing SBOM documents and scan reports as ingestion work",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = buildPort(portDef, component.DirectionInput)
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = buildPort(portDef, component.DirectionOutput)
	}
	return ports
}

// buildPort creates a component.Port from a PortDefinition.
func buildPort(portDef component.PortDefinition, direction component.Direction) component.Port {
	port := component.Port{
		Name:        portDef.Name,
		Direction:   direction,
		Required:    portDef.Required,
		Description: portDef.Description,
	}
	if portDef.Type == "jetstream" {
		port.Config = component.JetStreamPort{
			StreamName: portDef.StreamName,
			Subjects:   []string{portDef.Subject},
		}
	} else {
		port.Config = component.NATSPort{
			Subject: portDef.Subject,
		}
	}
	return port
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return reportWatcherSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errors.Load()),
		Uptime:     time.Since(startTime),
		Status:     c.getStatusString(running),
	}
}

// getStatusString returns a status string based on running state.
func (c *Component) getStatusString(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}
