package workdispatcher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscomply/inventoryd/inventory"
)

type recordingPublisher struct {
	subjects []string
	payloads []map[string]any
}

func (r *recordingPublisher) PublishToStream(_ context.Context, subject string, data []byte) error {
	var envelope map[string]any
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, envelope)
	return nil
}

func testChannels() ChannelConfig {
	return ChannelConfig{
		LicenseMatcher:  "inventory.license.match",
		CopyrightFilter: "inventory.copyright.filter",
		Vulnerability:   "work.vulnerability.request",
	}
}

func TestPublishResultsEmitsAllChannels(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewPublisher(rec, testChannels(), PublishToggles{LicenseMatcher: true, CopyrightFilter: true}, nil)

	components := []*inventory.SoftwareComponent{
		{ID: "c1", Name: "zlib", Version: "1.2.13"},
		{ID: "c2", Name: "openssl", Version: "3.0.8"},
	}
	items := []*inventory.InventoryItem{{ID: "i1"}, {ID: "i2"}}

	require.NoError(t, p.PublishResults(context.Background(), "task-1", components, items, AllGates()))

	// Three messages per component.
	require.Len(t, rec.subjects, 6)
	counts := map[string]int{}
	for _, s := range rec.subjects {
		counts[s]++
	}
	assert.Equal(t, 2, counts["inventory.license.match"])
	assert.Equal(t, 2, counts["inventory.copyright.filter"])
	assert.Equal(t, 2, counts["work.vulnerability.request"])
}

func TestPublishResultsConfigTogglesOff(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewPublisher(rec, testChannels(), PublishToggles{}, nil)

	components := []*inventory.SoftwareComponent{{ID: "c1", Name: "zlib", Version: "1.2.13"}}
	require.NoError(t, p.PublishResults(context.Background(), "task-1", components, nil, AllGates()))

	// Only the vulnerability request is unconditional.
	require.Len(t, rec.subjects, 1)
	assert.Equal(t, "work.vulnerability.request", rec.subjects[0])
}

func TestPublishResultsMessageGates(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewPublisher(rec, testChannels(), PublishToggles{LicenseMatcher: true, CopyrightFilter: true}, nil)

	components := []*inventory.SoftwareComponent{{ID: "c1", Name: "zlib", Version: "1.2.13"}}
	gates := Gates{LicenseMatcher: true, CopyrightFilter: false}
	require.NoError(t, p.PublishResults(context.Background(), "task-1", components, nil, gates))

	require.Len(t, rec.subjects, 2)
	assert.Contains(t, rec.subjects, "inventory.license.match")
	assert.Contains(t, rec.subjects, "work.vulnerability.request")
	assert.NotContains(t, rec.subjects, "inventory.copyright.filter")
}

func TestPublishResultsCarriesIdentifiers(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewPublisher(rec, testChannels(), PublishToggles{LicenseMatcher: true}, nil)

	components := []*inventory.SoftwareComponent{{ID: "c1", Name: "zlib", Version: "1.2.13"}}
	items := []*inventory.InventoryItem{{ID: "i1"}}
	require.NoError(t, p.PublishResults(context.Background(), "task-1", components, items, AllGates()))

	var match map[string]any
	for i, s := range rec.subjects {
		if s == "inventory.license.match" {
			match = rec.payloads[i]
		}
	}
	require.NotNil(t, match)

	payload, ok := match["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "task-1", payload["task_id"])
	assert.Equal(t, "c1", payload["component_id"])
	assert.Equal(t, "i1", payload["inventory_item_id"])
}

func TestPublishVulnerabilityRequestRequiresSubject(t *testing.T) {
	rec := &recordingPublisher{}
	channels := testChannels()
	channels.Vulnerability = ""
	p := NewPublisher(rec, channels, PublishToggles{}, nil)

	err := p.PublishVulnerabilityRequest(context.Background(), "c1")
	require.Error(t, err)
	assert.Empty(t, rec.subjects)
}
