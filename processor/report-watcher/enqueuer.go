package reportwatcher

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/google/uuid"

	"github.com/oscomply/inventoryd/inventory"
	workdispatcher "github.com/oscomply/inventoryd/processor/work-dispatcher"
	"github.com/oscomply/inventoryd/spdx"
)

// ObjectPutter stores an uploaded document. The object store wrapper
// satisfies it.
type ObjectPutter interface {
	Put(ctx context.Context, bucket, key string, data []byte) error
}

// StreamPublisher is the minimal publishing surface the Enqueuer needs.
type StreamPublisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// Enqueuer turns a dropped file into work messages. CSV files become
// one report work message per row; SPDX JSON documents are parked in
// the object store and referenced by a single SPDX work message.
type Enqueuer struct {
	rec     *inventory.Reconciler
	objects ObjectPutter
	nats    StreamPublisher
	config  Config
	logger  *slog.Logger
}

// NewEnqueuer creates an Enqueuer.
func NewEnqueuer(rec *inventory.Reconciler, objects ObjectPutter, nats StreamPublisher, config Config, logger *slog.Logger) *Enqueuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enqueuer{rec: rec, objects: objects, nats: nats, config: config, logger: logger}
}

// EnqueueFile publishes work for one dropped file and returns the
// number of messages emitted.
func (e *Enqueuer) EnqueueFile(ctx context.Context, path string) (int, error) {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return e.enqueueReport(ctx, path)
	}
	return e.enqueueSpdx(ctx, path)
}

// enqueueReport reads a CSV report and publishes one work message per
// data row. The header row supplies the column names.
func (e *Enqueuer) enqueueReport(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open report %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse report %s: %w", path, err)
	}
	if len(records) < 2 {
		return 0, fmt.Errorf("report %s has no data rows", path)
	}

	header := records[0]
	scannerID := fileStem(path)
	published := 0
	for _, record := range records[1:] {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}

		work := &workdispatcher.ReportWork{
			TaskID:               uuid.New().String(),
			Timestamp:            time.Now().Unix(),
			ScannerInitializerID: scannerID,
			Row:                  row,
		}
		if err := e.publish(ctx, e.config.ReportSubject, work.Schema(), work); err != nil {
			return published, err
		}
		published++
	}

	e.logger.Info("Report enqueued",
		"path", path,
		"scanner_id", scannerID,
		"rows", published)
	return published, nil
}

// enqueueSpdx parks the document in the object store and publishes one
// SPDX work message referencing it. The project and its root inventory
// item are resolved from the file name.
func (e *Enqueuer) enqueueSpdx(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read document %s: %w", path, err)
	}
	// Reject malformed documents here so they never occupy the bucket.
	if _, err := spdx.ParseDocument(data); err != nil {
		return 0, err
	}

	projectName := fileStem(path)
	tx, err := e.rec.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	project, _, err := e.rec.GetOrCreateProject(tx, projectName, "")
	if err != nil {
		return 0, fmt.Errorf("resolve project %s: %w", projectName, err)
	}
	root, _, err := e.rec.GetOrCreateItemByName(tx, project.ID, projectName)
	if err != nil {
		return 0, fmt.Errorf("resolve root item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	key := uuid.New().String() + "-" + filepath.Base(path)
	if err := e.objects.Put(ctx, e.config.Bucket, key, data); err != nil {
		return 0, err
	}

	work := &workdispatcher.SpdxWork{
		TaskID:              uuid.New().String(),
		Timestamp:           time.Now().Unix(),
		ProjectID:           project.ID,
		RootInventoryItemID: root.ID,
		Bucket:              e.config.Bucket,
		ObjectKey:           key,
		UseLicenseMatcher:   e.config.UseLicenseMatcher,
		UseCopyrightAI:      e.config.UseCopyrightAI,
	}
	if err := e.publish(ctx, e.config.SpdxSubject, work.Schema(), work); err != nil {
		return 0, err
	}

	e.logger.Info("SPDX document enqueued",
		"path", path,
		"project", projectName,
		"object_key", key)
	return 1, nil
}

func (e *Enqueuer) publish(ctx context.Context, subject string, msgType message.Type, payload message.Payload) error {
	baseMsg := message.NewBaseMessage(msgType, payload, "report-watcher")
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal %v message: %w", msgType, err)
	}
	return e.nats.PublishToStream(ctx, subject, data)
}

// fileStem returns the base name without its recognized extensions.
func fileStem(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".spdx.json"):
		return name[:len(name)-len(".spdx.json")]
	case strings.HasSuffix(lower, ".json"):
		return name[:len(name)-len(".json")]
	case strings.HasSuffix(lower, ".csv"):
		return name[:len(name)-len(".csv")]
	}
	return name
}
