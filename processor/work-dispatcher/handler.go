package workdispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/oscomply/inventoryd/archive"
	"github.com/oscomply/inventoryd/download"
	"github.com/oscomply/inventoryd/filetree"
	"github.com/oscomply/inventoryd/inventory"
	"github.com/oscomply/inventoryd/report"
	"github.com/oscomply/inventoryd/spdx"
)

// ArtifactResolver turns a component reference into a downloaded
// artifact path. *download.Resolver satisfies it.
type ArtifactResolver interface {
	Resolve(ctx context.Context, req download.Request) (string, error)
}

// ObjectTaker fetches and removes one object from a bucket. The NATS
// object store wrapper satisfies it.
type ObjectTaker interface {
	Take(ctx context.Context, bucket, key string) ([]byte, error)
}

// ResultPublisher emits the follow-up messages after an ingestion.
// *Publisher satisfies it.
type ResultPublisher interface {
	PublishResults(ctx context.Context, taskID string, components []*inventory.SoftwareComponent, items []*inventory.InventoryItem, gates Gates) error
}

// Handler executes the four work message kinds. Each handler method
// wraps its database writes in a single transaction so a redelivered
// message never observes a half-applied predecessor.
type Handler struct {
	rec         *inventory.Reconciler
	resolver    ArtifactResolver
	extractor   *archive.Extractor
	scanner     *filetree.Scanner
	spdx        *spdx.Ingestor
	report      *report.Ingestor
	objects     ObjectTaker
	publisher   ResultPublisher
	vulns       *VulnScanner
	downloadDir string
	logger      *slog.Logger
}

// NewHandler wires a Handler from its collaborators.
func NewHandler(
	rec *inventory.Reconciler,
	resolver ArtifactResolver,
	extractor *archive.Extractor,
	scanner *filetree.Scanner,
	objects ObjectTaker,
	publisher ResultPublisher,
	vulns *VulnScanner,
	downloadDir string,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		rec:         rec,
		resolver:    resolver,
		extractor:   extractor,
		scanner:     scanner,
		spdx:        spdx.NewIngestor(rec, logger),
		report:      report.NewIngestor(rec, logger),
		objects:     objects,
		publisher:   publisher,
		vulns:       vulns,
		downloadDir: downloadDir,
		logger:      logger,
	}
}

// HandleDownload resolves the referenced artifact, extracts it and
// scans the resulting file tree into the inventory item.
func (h *Handler) HandleDownload(ctx context.Context, work *DownloadWork) error {
	tx, err := h.rec.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	project, err := tx.GetProject(work.ProjectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", work.ProjectID, err)
	}
	item, err := tx.GetItem(work.InventoryItemID)
	if err != nil {
		return fmt.Errorf("load item %s: %w", work.InventoryItemID, err)
	}

	artifactPath, err := h.resolver.Resolve(ctx, download.Request{
		DetailsURL: work.URL,
		Purl:       work.Purl,
		Name:       work.Name,
		Version:    work.Version,
		TargetDir:  filepath.Join(h.downloadDir, "artifacts", item.ID),
	})
	if err != nil {
		return err
	}

	target := work.Location
	if target == "" {
		target = filepath.Join(h.downloadDir, "trees", project.ID, item.ID)
	}
	if err := h.extractor.Extract(artifactPath, target); err != nil {
		return err
	}

	files, err := h.scanner.Scan(tx, project, item, target)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	h.logger.Info("download work complete",
		"task_id", work.TaskID,
		"item_id", item.ID,
		"files", files)
	return nil
}

// HandleSpdx takes the SPDX document from the object store, folds it
// into the inventory graph and emits the follow-up messages the work
// message allows.
func (h *Handler) HandleSpdx(ctx context.Context, work *SpdxWork) error {
	data, err := h.objects.Take(ctx, work.Bucket, work.ObjectKey)
	if err != nil {
		return fmt.Errorf("take %s/%s: %w", work.Bucket, work.ObjectKey, err)
	}

	doc, err := spdx.ParseDocument(data)
	if err != nil {
		return err
	}

	tx, err := h.rec.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := h.spdx.Ingest(tx, doc, work.ProjectID, work.RootInventoryItemID)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	h.logger.Info("spdx work complete",
		"task_id", work.TaskID,
		"project_id", work.ProjectID,
		"packages", len(result.Components))

	gates := Gates{
		LicenseMatcher:  work.UseLicenseMatcher,
		CopyrightFilter: work.UseCopyrightAI,
	}
	return h.publisher.PublishResults(ctx, work.TaskID, result.Components, result.Items, gates)
}

// HandleReport folds one scan-report row into the project named by the
// scanner initializer and emits follow-up messages for the component.
func (h *Handler) HandleReport(ctx context.Context, work *ReportWork) error {
	tx, err := h.rec.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	project, _, err := h.rec.GetOrCreateProject(tx, work.ScannerInitializerID, "")
	if err != nil {
		return fmt.Errorf("resolve project %s: %w", work.ScannerInitializerID, err)
	}

	comp, item, err := h.report.IngestRow(tx, project.ID, work.Row)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	h.logger.Info("report work complete",
		"task_id", work.TaskID,
		"component", comp.Name,
		"version", comp.Version)

	return h.publisher.PublishResults(ctx, work.TaskID,
		[]*inventory.SoftwareComponent{comp},
		[]*inventory.InventoryItem{item},
		AllGates())
}

// HandleVulnerability looks up known vulnerabilities for one component
// and records them. Recording is additive; a rescan never removes
// previously found identifiers.
func (h *Handler) HandleVulnerability(ctx context.Context, work *VulnerabilityWork) error {
	tx, err := h.rec.Begin(ctx)
	if err != nil {
		return err
	}
	comp, err := tx.GetComponent(work.SoftwareComponentID)
	tx.Rollback()
	if err != nil {
		return fmt.Errorf("load component %s: %w", work.SoftwareComponentID, err)
	}

	// The network lookup runs outside any transaction.
	vulns, err := h.vulns.Scan(ctx, comp)
	if err != nil {
		return err
	}
	if len(vulns) == 0 {
		h.logger.Debug("no vulnerabilities found",
			"component", comp.Name, "version", comp.Version)
		return nil
	}

	tx, err = h.rec.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, v := range vulns {
		if err := tx.RecordVulnerability(v); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	h.logger.Info("vulnerability scan complete",
		"component", comp.Name,
		"version", comp.Version,
		"found", len(vulns))
	return nil
}
