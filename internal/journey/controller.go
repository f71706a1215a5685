package journey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/NHSDigital/ndr-upload-client/internal/batch"
	"github.com/NHSDigital/ndr-upload-client/internal/gateway"
	"github.com/NHSDigital/ndr-upload-client/internal/lgname"
	"github.com/NHSDigital/ndr-upload-client/internal/model"
	"github.com/NHSDigital/ndr-upload-client/internal/pdfkit"
	"github.com/NHSDigital/ndr-upload-client/internal/uploader"
	"github.com/NHSDigital/ndr-upload-client/internal/validate"
)

// Watch is the slice of the status poll handle the controller uses. Cancel
// must be safe to call on every exit path.
type Watch interface {
	Cancel()
	Wait() (gateway.UploadState, error)
}

// Orchestrator runs the upload protocol for a prepared batch.
type Orchestrator interface {
	Do(ctx context.Context, patient model.PatientDetails, docs []*model.UploadDocument) error
	WatchStatus(ctx context.Context, patientID string) Watch
}

// NewOrchestrator adapts an Uploader to the Orchestrator interface.
func NewOrchestrator(u *uploader.Uploader) Orchestrator {
	return uploaderOrchestrator{u}
}

type uploaderOrchestrator struct {
	u *uploader.Uploader
}

func (o uploaderOrchestrator) Do(ctx context.Context, patient model.PatientDetails, docs []*model.UploadDocument) error {
	return o.u.Do(ctx, patient, docs)
}

func (o uploaderOrchestrator) WatchStatus(ctx context.Context, patientID string) Watch {
	return o.u.WatchStatus(ctx, patientID)
}

// Config wires a Controller.
type Config struct {
	Patient model.PatientDetails
	Checker *validate.Checker
	Merger  pdfkit.Merger
	Orch    Orchestrator
	// WorkDir receives the merged Lloyd George artifact before upload.
	WorkDir string
	// ExistingCount is non-zero for update journeys, where the stored record
	// already occupies the leading positions.
	ExistingCount int
}

// Controller is the journey state machine. It owns the document selection and
// transitions through stages on user actions and orchestrator outcomes.
// It is not safe for concurrent use; drive it from one goroutine.
type Controller struct {
	patient   model.PatientDetails
	selection *batch.Selection
	checker   *validate.Checker
	merger    pdfkit.Merger
	orch      Orchestrator
	workDir   string

	stage      Stage
	issues     map[string]*model.FileIssue
	uploadDocs []*model.UploadDocument
	infected   []string
	watch      Watch
}

// New creates a Controller in the select stage.
func New(cfg Config) (*Controller, error) {
	if cfg.Orch == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.Checker == nil {
		return nil, errors.New("checker is required")
	}
	if cfg.Merger == nil {
		cfg.Merger = pdfkit.NewMerger()
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Controller{
		patient:   cfg.Patient,
		selection: batch.NewSelection(cfg.ExistingCount),
		checker:   cfg.Checker,
		merger:    cfg.Merger,
		orch:      cfg.Orch,
		workDir:   cfg.WorkDir,
		stage:     StageSelect,
	}, nil
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	return c.stage
}

// Selection exposes the document selection for listing and removal.
func (c *Controller) Selection() *batch.Selection {
	return c.selection
}

// Issues returns the validation issues from the last submission attempt,
// keyed by document id.
func (c *Controller) Issues() map[string]*model.FileIssue {
	return c.issues
}

// InfectedFiles lists the infected filenames after an infected outcome.
func (c *Controller) InfectedFiles() []string {
	return c.infected
}

// AddFiles adds files to the selection. Allowed from the select stage and
// from the file-errors stage, which returns to select so the user can fix
// the batch.
func (c *Controller) AddFiles(files []batch.FileMeta, docType model.DocType) ([]*model.UploadDocument, error) {
	if c.stage != StageSelect && c.stage != StageFileErrors {
		return nil, fmt.Errorf("cannot add files during the %s stage", c.stage)
	}
	c.stage = StageSelect
	c.issues = nil
	return c.selection.Add(files, docType), nil
}

// Submit validates the batch and advances to ordering, or straight to
// confirmation when ordering is meaningless. A batch with any blocking issue
// routes to the file-errors stage with every failing file listed.
func (c *Controller) Submit() error {
	if c.stage != StageSelect && c.stage != StageFileErrors {
		return fmt.Errorf("cannot submit from the %s stage", c.stage)
	}
	docs := c.selection.All()
	if len(docs) == 0 {
		return errors.New("no files selected")
	}

	issues := c.checker.CheckBatch(docs)
	lgDocs := c.selection.Documents(model.DocTypeLloydGeorge)
	for id, issue := range lgname.MatchBatch(lgDocs, c.patient) {
		if _, exists := issues[id]; !exists {
			issues[id] = issue
		}
	}
	for _, doc := range docs {
		doc.Issue = issues[doc.ID]
	}

	blocking := false
	for _, issue := range issues {
		if issue.Blocking() {
			blocking = true
			break
		}
	}
	if blocking {
		c.issues = issues
		c.stage = StageFileErrors
		slog.Info("batch blocked by validation", "files_with_issues", len(issues))
		return fmt.Errorf("%d file(s) failed validation", len(issues))
	}
	c.issues = issues

	// Ordering only matters when several Lloyd George files must be merged.
	if len(lgDocs) > 1 {
		c.stage = StageOrder
		return nil
	}
	c.selection.AutoAssign(model.DocTypeLloydGeorge, lloydGeorgeIndex)
	c.stage = StageConfirm
	return nil
}

func lloydGeorgeIndex(doc *model.UploadDocument) int {
	parts, err := lgname.Parse(doc.Filename)
	if err != nil {
		return 0
	}
	return parts.Index
}

// SetPosition assigns a document's merge position during ordering.
func (c *Controller) SetPosition(id string, position int) error {
	if c.stage != StageOrder {
		return fmt.Errorf("cannot reposition during the %s stage", c.stage)
	}
	return c.selection.SetPosition(id, position)
}

// ConfirmOrder checks the assigned positions form a dense range and advances
// to confirmation.
func (c *Controller) ConfirmOrder() error {
	if c.stage != StageOrder {
		return fmt.Errorf("cannot confirm ordering from the %s stage", c.stage)
	}
	if err := c.selection.ValidatePositions(model.DocTypeLloydGeorge); err != nil {
		return err
	}
	c.stage = StageConfirm
	return nil
}

// Preview merges the currently ordered Lloyd George files into outPath for
// review. Safe to call repeatedly; concurrent invocations are suppressed by
// the preview merger.
func (c *Controller) Preview(preview *pdfkit.PreviewMerger, outPath string) (bool, error) {
	ordered, err := c.selection.Ordered(model.DocTypeLloydGeorge)
	if err != nil {
		return false, err
	}
	paths := make([]string, 0, len(ordered))
	for _, doc := range ordered {
		paths = append(paths, doc.Path)
	}
	return preview.TryMerge(paths, outPath)
}

// Upload runs the whole upload protocol and routes to the outcome stage. For
// Lloyd George batches the ordered files are first merged into a single
// artifact, which is what gets uploaded; the per-file selection never reaches
// storage individually.
func (c *Controller) Upload(ctx context.Context) error {
	if c.stage != StageConfirm {
		return fmt.Errorf("cannot upload from the %s stage", c.stage)
	}

	docs, err := c.prepareUploadDocs()
	if err != nil {
		c.stage = StageServerError
		return err
	}
	c.uploadDocs = docs
	return c.run(ctx)
}

// Retry replays the whole batch after a retryable failure.
func (c *Controller) Retry(ctx context.Context) error {
	if c.stage != StageFailed {
		return fmt.Errorf("cannot retry from the %s stage", c.stage)
	}
	for _, doc := range c.uploadDocs {
		doc.State = model.DocStateSelected
		doc.Progress = 0
	}
	return c.run(ctx)
}

func (c *Controller) run(ctx context.Context) error {
	c.stage = StageUploading

	err := c.orch.Do(ctx, c.patient, c.uploadDocs)
	if err != nil {
		var vErr *uploader.VirusFoundError
		switch {
		case errors.As(err, &vErr):
			c.infected = vErr.Filenames
			c.stage = StageInfected
		case errors.Is(err, gateway.ErrExpiredSession):
			c.stage = StageSessionExpired
		default:
			c.stage = StageFailed
		}
		return err
	}

	return c.awaitProcessing(ctx)
}

// awaitProcessing polls the server-side processing state until it settles.
// The watch is cancelled on every exit path so no poll outlives the journey.
func (c *Controller) awaitProcessing(ctx context.Context) error {
	watch := c.orch.WatchStatus(ctx, c.patient.NHSNumber)
	c.watch = watch
	defer func() {
		watch.Cancel()
		c.watch = nil
	}()

	state, err := watch.Wait()
	if err != nil {
		if errors.Is(err, gateway.ErrExpiredSession) {
			c.stage = StageSessionExpired
		} else {
			c.stage = StageServerError
		}
		return err
	}

	switch state {
	case gateway.UploadStateFinal:
		c.stage = StageComplete
		return nil
	case gateway.UploadStateInfected:
		for _, doc := range c.uploadDocs {
			c.infected = append(c.infected, doc.Filename)
			doc.State = model.DocStateInfected
		}
		c.stage = StageInfected
		return fmt.Errorf("%w: reported during processing", gateway.ErrVirusFound)
	default:
		c.stage = StageFailed
		return fmt.Errorf("record processing ended in state %q", state)
	}
}

// prepareUploadDocs merges the ordered Lloyd George selection into one
// artifact named by the record filename convention, and passes ARF files
// through unchanged.
func (c *Controller) prepareUploadDocs() ([]*model.UploadDocument, error) {
	var docs []*model.UploadDocument

	lgDocs, err := c.selection.Ordered(model.DocTypeLloydGeorge)
	if err != nil {
		return nil, err
	}
	if len(lgDocs) > 0 {
		merged, err := c.mergeArtifact(lgDocs)
		if err != nil {
			return nil, err
		}
		docs = append(docs, merged)
	}
	docs = append(docs, c.selection.Documents(model.DocTypeARF)...)
	return docs, nil
}

func (c *Controller) mergeArtifact(lgDocs []*model.UploadDocument) (*model.UploadDocument, error) {
	name := lgname.Build(1, 1, c.patient)
	outPath := filepath.Join(c.workDir, name)

	paths := make([]string, 0, len(lgDocs))
	pages := 0
	for _, doc := range lgDocs {
		paths = append(paths, doc.Path)
		pages += doc.NumPages
	}
	if err := c.merger.Merge(paths, outPath); err != nil {
		return nil, fmt.Errorf("merging record files: %w", err)
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("reading merged record: %w", err)
	}

	slog.Info("merged record artifact built",
		"filename", name,
		"source_files", len(lgDocs),
		"size", info.Size(),
	)
	return &model.UploadDocument{
		ID:          lgDocs[0].ID,
		Path:        outPath,
		Filename:    name,
		Size:        info.Size(),
		ContentType: "application/pdf",
		DocType:     model.DocTypeLloydGeorge,
		State:       model.DocStateSelected,
		Position:    1,
		NumPages:    pages,
	}, nil
}

// UploadedDocuments returns the documents the orchestrator actually ran.
func (c *Controller) UploadedDocuments() []*model.UploadDocument {
	return c.uploadDocs
}

// VerifyComplete guards the completion stage against stale state: it returns
// true only when every uploaded document reached the succeeded state. On any
// other finding it resets the journey to the select stage.
func (c *Controller) VerifyComplete() bool {
	if c.stage != StageComplete {
		return false
	}
	for _, doc := range c.uploadDocs {
		if doc.State != model.DocStateSucceeded {
			slog.Warn("completion reached with unsettled document, restarting journey",
				"filename", doc.Filename,
				"state", doc.State,
			)
			c.stage = StageSelect
			return false
		}
	}
	return true
}

// Close releases journey resources. Any in-flight status watch is cancelled
// so timers never outlive navigation away from the journey.
func (c *Controller) Close() {
	if c.watch != nil {
		c.watch.Cancel()
		c.watch = nil
	}
}
