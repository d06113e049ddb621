// Package workdispatcher provides the processor that consumes
// ingestion work messages and reconciles their contents into the
// inventory database.
package workdispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/oscomply/inventoryd/archive"
	"github.com/oscomply/inventoryd/download"
	"github.com/oscomply/inventoryd/filetree"
	"github.com/oscomply/inventoryd/inventory"
	"github.com/oscomply/inventoryd/objectstore"
	"github.com/oscomply/inventoryd/report"
	"github.com/oscomply/inventoryd/spdx"
	"github.com/oscomply/inventoryd/tasklog"
)

// workDispatcherSchema defines the configuration schema.
var workDispatcherSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Component implements the work-dispatcher processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger
	platform   component.PlatformMeta

	store    *inventory.Store
	handler  *Handler
	feedback *tasklog.Store

	// Lifecycle management
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	processed      atomic.Int64
	failed         atomic.Int64
	errors         atomic.Int64
	lastActivityMu sync.RWMutex
	lastActivity   time.Time
}

// NewComponent creates a new work-dispatcher processor component.
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
		name:       "work-dispatcher",
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

// Start opens the inventory database and begins consuming work
// messages.
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
	rec := inventory.NewReconciler(store)

	js, err := c.natsClient.JetStream()
	if err != nil {
		store.Close()
		return fail(fmt.Errorf("get JetStream context: %w", err))
	}
	feedback, err := tasklog.NewStore(ctx, js)
	if err != nil {
		store.Close()
		return fail(fmt.Errorf("create feedback store: %w", err))
	}
	c.feedback = feedback

	client := download.NewClient(c.config.GetConnectTimeout(), c.config.GetReadTimeout())
	publisher := NewPublisher(c.natsClient, c.config.Channels, PublishToggles{
		LicenseMatcher:  c.config.SendToLicenseMatcher,
		CopyrightFilter: c.config.SendToCopyrightFilter,
	}, c.logger)

	c.handler = NewHandler(
		rec,
		download.NewResolver(client, c.logger),
		archive.NewExtractor(filepath.Join(c.config.DownloadDir, "work")),
		filetree.NewScanner(c.config.SkipPatterns, c.logger),
		objectstore.New(js, c.logger),
		publisher,
		NewVulnScanner(client, c.logger),
		c.config.DownloadDir,
		c.logger,
	)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.consumeMessages(runCtx)

	c.logger.Info("Work dispatcher started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"database", c.config.DatabasePath)

	return nil
}

// consumeMessages processes incoming work messages.
func (c *Component) consumeMessages(ctx context.Context) {
	js, err := c.natsClient.JetStream()
	if err != nil {
		c.logger.Error("Failed to get JetStream context", "error", err)
		return
	}

	stream, err := js.Stream(ctx, c.config.StreamName)
	if err != nil {
		c.logger.Error("Failed to get stream", "error", err, "stream", c.config.StreamName)
		return
	}

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: "work.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       60 * time.Second,
		MaxDeliver:    3,
	}
	consumer, err := stream.CreateOrUpdateConsumer(ctx, consumerConfig)
	if err != nil {
		c.logger.Error("Failed to create consumer", "error", err, "stream", c.config.StreamName, "consumer", c.config.ConsumerName)
		return
	}

	c.logger.Info("Consumer connected", "stream", c.config.StreamName, "consumer", c.config.ConsumerName)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue // Timeout, try again
		}

		for msg := range msgs.Messages() {
			select {
			case <-ctx.Done():
				// NAK the message so it can be redelivered
				_ = msg.Nak()
				return
			default:
				c.handleMessage(ctx, msg)
			}
		}
	}
}

// handleMessage routes one work message to its handler and acknowledges
// it according to the outcome. Business failures are recorded as task
// feedback and acked; infrastructure failures are nacked for
// redelivery.
func (c *Component) handleMessage(ctx context.Context, msg jetstream.Msg) {
	c.updateLastActivity()

	var baseMsg message.BaseMessage
	if err := json.Unmarshal(msg.Data(), &baseMsg); err != nil {
		c.logger.Warn("Failed to parse work message", "error", err)
		c.errors.Add(1)
		_ = msg.Ack()
		return
	}

	taskID, err := c.dispatch(ctx, &baseMsg)
	if err == nil {
		c.processed.Add(1)
		c.appendFeedback(ctx, taskID, tasklog.LevelInfo, "work completed")
		_ = msg.Ack()
		return
	}

	c.errors.Add(1)
	if isTerminal(err) {
		c.failed.Add(1)
		c.logger.Warn("Work failed terminally",
			"type", baseMsg.Type(),
			"task_id", taskID,
			"error", err)
		c.appendFeedback(ctx, taskID, tasklog.LevelError, err.Error())
		_ = msg.Ack()
		return
	}

	c.logger.Error("Work failed, requesting redelivery",
		"type", baseMsg.Type(),
		"task_id", taskID,
		"error", err)
	_ = msg.Nak()
}

// errUnknownType marks a work message of a type this processor does not
// handle. Redelivery cannot fix it.
var errUnknownType = errors.New("unknown work message type")

// dispatch decodes the payload for the message type and runs the
// matching handler. It returns the task id even on failure so the
// outcome can be recorded as feedback.
func (c *Component) dispatch(ctx context.Context, baseMsg *message.BaseMessage) (string, error) {
	payloadBytes, err := json.Marshal(baseMsg.Payload())
	if err != nil {
		return "", fmt.Errorf("%w: re-marshal payload: %v", errUnknownType, err)
	}

	switch baseMsg.Type() {
	case DownloadWorkType:
		var work DownloadWork
		if err := json.Unmarshal(payloadBytes, &work); err != nil {
			return "", fmt.Errorf("%w: decode download work: %v", errUnknownType, err)
		}
		return work.TaskID, c.handler.HandleDownload(ctx, &work)

	case SpdxWorkType:
		var work SpdxWork
		if err := json.Unmarshal(payloadBytes, &work); err != nil {
			return "", fmt.Errorf("%w: decode spdx work: %v", errUnknownType, err)
		}
		return work.TaskID, c.handler.HandleSpdx(ctx, &work)

	case ReportWorkType:
		var work ReportWork
		if err := json.Unmarshal(payloadBytes, &work); err != nil {
			return "", fmt.Errorf("%w: decode report work: %v", errUnknownType, err)
		}
		return work.TaskID, c.handler.HandleReport(ctx, &work)

	case VulnerabilityWorkType:
		var work VulnerabilityWork
		if err := json.Unmarshal(payloadBytes, &work); err != nil {
			return "", fmt.Errorf("%w: decode vulnerability work: %v", errUnknownType, err)
		}
		return work.TaskID, c.handler.HandleVulnerability(ctx, &work)
	}

	return "", fmt.Errorf("%w: %v", errUnknownType, baseMsg.Type())
}

// isTerminal reports whether the error describes a failure of the work
// itself rather than of the infrastructure around it. Terminal failures
// are recorded and acked; everything else is redelivered.
func isTerminal(err error) bool {
	return errors.Is(err, errUnknownType) ||
		errors.Is(err, download.ErrResolutionFailed) ||
		errors.Is(err, download.ErrLegacyScheme) ||
		errors.Is(err, archive.ErrUnsupportedFormat) ||
		errors.Is(err, spdx.ErrParse) ||
		errors.Is(err, report.ErrBadRow) ||
		errors.Is(err, inventory.ErrNotFound)
}

// appendFeedback records a task outcome, tolerating feedback store
// failures.
func (c *Component) appendFeedback(ctx context.Context, taskID string, level tasklog.Level, text string) {
	if taskID == "" || c.feedback == nil {
		return
	}
	if err := c.feedback.Append(ctx, taskID, level, text); err != nil {
		c.logger.Warn("Failed to record task feedback", "task_id", taskID, "error", err)
	}
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

	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("Failed to close inventory store", "error", err)
		}
	}

	c.running = false
	c.logger.Info("Work dispatcher stopped",
		"processed", c.processed.Load(),
		"failed", c.failed.Load(),
		"errors", c.errors.Load())

	return nil
}

// Discoverable interface implementation

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "work-dispatcher",
		Type:        "processor",
		Description: "Ingestion work consumer reconciling artifacts, SPDX documents and scan reports into the inventory",
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
	return workDispatcherSchema
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
