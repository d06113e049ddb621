package workdispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/google/uuid"

	"github.com/oscomply/inventoryd/inventory"
)

// StreamPublisher is the minimal publishing surface the Publisher
// needs. The NATS client satisfies it.
type StreamPublisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// Publisher emits the follow-up messages after a successful ingestion:
// license matcher and copyright filter requests per the configuration
// toggles, plus an unconditional vulnerability request per component.
type Publisher struct {
	nats     StreamPublisher
	channels ChannelConfig
	config   PublishToggles
	logger   *slog.Logger
}

// PublishToggles gates the optional follow-up messages.
type PublishToggles struct {
	LicenseMatcher  bool
	CopyrightFilter bool
}

// NewPublisher creates a Publisher.
func NewPublisher(nats StreamPublisher, channels ChannelConfig, toggles PublishToggles, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nats: nats, channels: channels, config: toggles, logger: logger}
}

// Gates narrows the configured toggles with message-level flags, as an
// SPDX work message may switch its own follow-ups off.
type Gates struct {
	LicenseMatcher  bool
	CopyrightFilter bool
}

// AllGates enables every optional follow-up, leaving the configuration
// toggles as the only gate.
func AllGates() Gates {
	return Gates{LicenseMatcher: true, CopyrightFilter: true}
}

// PublishResults emits follow-up messages for each ingested component
// and its inventory item. Items and components are matched by index;
// items may be shorter.
func (p *Publisher) PublishResults(ctx context.Context, taskID string, components []*inventory.SoftwareComponent, items []*inventory.InventoryItem, gates Gates) error {
	for i, comp := range components {
		itemID := ""
		if i < len(items) && items[i] != nil {
			itemID = items[i].ID
		}

		if p.config.LicenseMatcher && gates.LicenseMatcher {
			req := &LicenseMatchRequest{TaskID: taskID, ComponentID: comp.ID, InventoryItemID: itemID}
			if err := p.publish(ctx, p.channels.LicenseMatcher, req.Schema(), req); err != nil {
				return fmt.Errorf("publish license match request: %w", err)
			}
		}
		if p.config.CopyrightFilter && gates.CopyrightFilter {
			req := &CopyrightFilterRequest{TaskID: taskID, ComponentID: comp.ID, InventoryItemID: itemID}
			if err := p.publish(ctx, p.channels.CopyrightFilter, req.Schema(), req); err != nil {
				return fmt.Errorf("publish copyright filter request: %w", err)
			}
		}

		if err := p.PublishVulnerabilityRequest(ctx, comp.ID); err != nil {
			return err
		}
	}
	return nil
}

// PublishVulnerabilityRequest emits the unconditional vulnerability
// lookup request for one component.
func (p *Publisher) PublishVulnerabilityRequest(ctx context.Context, componentID string) error {
	work := &VulnerabilityWork{
		TaskID:              uuid.New().String(),
		Timestamp:           time.Now().Unix(),
		SoftwareComponentID: componentID,
	}
	if err := p.publish(ctx, p.channels.Vulnerability, work.Schema(), work); err != nil {
		return fmt.Errorf("publish vulnerability request: %w", err)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, subject string, msgType message.Type, payload message.Payload) error {
	if subject == "" {
		return fmt.Errorf("no subject configured for %s", msgType)
	}
	baseMsg := message.NewBaseMessage(msgType, payload, "work-dispatcher")
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msgType, err)
	}
	if err := p.nats.PublishToStream(ctx, subject, data); err != nil {
		return err
	}
	p.logger.Debug("published follow-up message", "subject", subject)
	return nil
}
