// Package uploader orchestrates the upload of a document batch: document
// reference creation, parallel presigned storage uploads with per-document
// retry, virus scanning, and the single batch confirmation issued once every
// document is clean.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NHSDigital/ndr-upload-client/internal/gateway"
	"github.com/NHSDigital/ndr-upload-client/internal/metrics"
	"github.com/NHSDigital/ndr-upload-client/internal/model"
)

// Batch-level errors returned by Do.
var (
	// ErrUploadFailed means at least one document exhausted its upload
	// attempts. The user may retry the whole batch.
	ErrUploadFailed = errors.New("upload failed")
	// ErrConfirmFailed means the batch confirmation request failed with a
	// retryable error. The whole batch is replayed on retry.
	ErrConfirmFailed = errors.New("confirmation failed")
)

// VirusFoundError reports the infected documents in an abandoned batch.
type VirusFoundError struct {
	// Filenames lists the infected files, sorted.
	Filenames []string
}

// Error implements the error interface.
func (e *VirusFoundError) Error() string {
	return fmt.Sprintf("virus found in %d file(s)", len(e.Filenames))
}

// Unwrap returns gateway.ErrVirusFound for errors.Is support.
func (e *VirusFoundError) Unwrap() error {
	return gateway.ErrVirusFound
}

// Gateway is the slice of the gateway client the orchestrator depends on.
type Gateway interface {
	CreateDocumentReference(ctx context.Context, nhsNumber string, files []gateway.FileReference) (model.UploadSession, error)
	PushToTarget(ctx context.Context, target model.UploadTarget, path string, onProgress func(int)) error
	RequestVirusScan(ctx context.Context, documentReference string) error
	ConfirmUpload(ctx context.Context, patientID string, documents map[model.DocType][]string) error
	UploadState(ctx context.Context, patientID string) (gateway.UploadState, error)
}

// Options configures an Uploader.
type Options struct {
	// MaxAttempts is how many upload attempts each document gets before the
	// batch is treated as terminally failed. Default 3.
	MaxAttempts int
	// PollInterval is the fixed status polling interval. Default 5s.
	PollInterval time.Duration
	// PollCeiling is the maximum total wait for status polling. Default 120s.
	PollCeiling time.Duration
	// Recorder receives pipeline metrics. Default: Prometheus.
	Recorder metrics.Recorder
	// Observer, when non-nil, receives a snapshot of every document state
	// transition and progress update.
	Observer func(model.UploadDocument)
}

// Uploader drives a batch of documents through the upload protocol.
type Uploader struct {
	gw           Gateway
	maxAttempts  int
	pollInterval time.Duration
	pollCeiling  time.Duration
	rec          metrics.Recorder
	observer     func(model.UploadDocument)
	tracker      *Tracker
}

// New creates an Uploader over the given gateway.
func New(gw Gateway, opts Options) *Uploader {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.PollCeiling <= 0 {
		opts.PollCeiling = 120 * time.Second
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NewPrometheusRecorder()
	}
	return &Uploader{
		gw:           gw,
		maxAttempts:  opts.MaxAttempts,
		pollInterval: opts.PollInterval,
		pollCeiling:  opts.PollCeiling,
		rec:          opts.Recorder,
		observer:     opts.Observer,
		tracker:      NewTracker(),
	}
}

// Tracker exposes the in-flight upload tracker, e.g. for graceful shutdown.
func (u *Uploader) Tracker() *Tracker {
	return u.tracker
}

// Do uploads the batch for the given patient. Per-document uploads run
// concurrently; confirmation is a synchronisation barrier issued exactly
// once, only after every document has independently reached the clean state.
//
// On return every document carries its final state. Do never retries a
// session expiry (gateway.ErrExpiredSession); it surfaces it unchanged so the
// caller can route to the session-expired destination.
func (u *Uploader) Do(ctx context.Context, patient model.PatientDetails, docs []*model.UploadDocument) error {
	if len(docs) == 0 {
		return errors.New("no documents to upload")
	}
	start := time.Now()

	refs := make([]gateway.FileReference, 0, len(docs))
	for _, doc := range docs {
		refs = append(refs, gateway.FileReference{
			ID:          doc.ID,
			FileName:    doc.Filename,
			ContentType: doc.ContentType,
			DocType:     doc.DocType,
		})
	}

	session, err := u.gw.CreateDocumentReference(ctx, patient.NHSNumber, refs)
	if err != nil {
		if errors.Is(err, gateway.ErrExpiredSession) {
			return err
		}
		u.failAll(docs)
		u.finish(start, "failed")
		return fmt.Errorf("%w: creating document reference: %v", ErrUploadFailed, err)
	}
	for _, doc := range docs {
		doc.Ref = session[doc.ID].Key()
	}

	var mu sync.Mutex
	var infected []string

	g, gctx := errgroup.WithContext(ctx)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			return u.processOne(gctx, doc, session[doc.ID], func(name string) {
				mu.Lock()
				infected = append(infected, name)
				mu.Unlock()
			})
		})
	}
	groupErr := g.Wait()

	if len(infected) > 0 {
		// Security gate: the whole batch is abandoned. Every document is
		// treated as failed and confirmation is never sent; the user must
		// resubmit from scratch.
		for _, doc := range docs {
			if doc.State != model.DocStateInfected {
				u.setState(doc, model.DocStateFailed, doc.Progress)
			}
			u.rec.RecordDocument(string(doc.State))
		}
		sort.Strings(infected)
		u.finish(start, "infected")
		slog.Warn("batch abandoned after virus detection", "infected_files", len(infected))
		return &VirusFoundError{Filenames: infected}
	}

	if groupErr != nil {
		if errors.Is(groupErr, gateway.ErrExpiredSession) {
			return groupErr
		}
		u.finish(start, "failed")
		return groupErr
	}

	keys := make(map[model.DocType][]string)
	for _, doc := range docs {
		keys[doc.DocType] = append(keys[doc.DocType], doc.Ref)
	}
	if err := u.gw.ConfirmUpload(ctx, patient.NHSNumber, keys); err != nil {
		if errors.Is(err, gateway.ErrExpiredSession) {
			return err
		}
		u.failAll(docs)
		u.finish(start, "failed")
		return fmt.Errorf("%w: %v", ErrConfirmFailed, err)
	}

	for _, doc := range docs {
		doc.Progress = 100
		u.setState(doc, model.DocStateSucceeded, 100)
		u.rec.RecordDocument(string(model.DocStateSucceeded))
	}
	u.finish(start, "succeeded")
	slog.Info("batch upload confirmed",
		"nhs_number", patient.NHSNumber,
		"documents", len(docs),
	)
	return nil
}

// processOne pushes a single document to storage, retrying failed attempts
// up to the configured maximum, then submits it for scanning. A session
// expiry aborts immediately and is never retried.
func (u *Uploader) processOne(ctx context.Context, doc *model.UploadDocument, target model.UploadTarget, markInfected func(string)) error {
	if !u.tracker.Start(doc.ID, doc.Filename, doc.Size) {
		return fmt.Errorf("upload rejected: shutting down")
	}
	defer u.tracker.Finish(doc.ID)

	u.setState(doc, model.DocStateUploading, 0)
	for {
		err := u.gw.PushToTarget(ctx, target, doc.Path, func(p int) {
			doc.Progress = p
			u.notify(doc)
		})
		if err == nil {
			break
		}
		if errors.Is(err, gateway.ErrExpiredSession) {
			return err
		}
		doc.Attempts++
		if doc.Attempts >= u.maxAttempts {
			u.setState(doc, model.DocStateFailed, doc.Progress)
			u.rec.RecordDocument(string(model.DocStateFailed))
			slog.Error("document upload failed permanently",
				"filename", doc.Filename,
				"attempts", doc.Attempts,
				"error", err,
			)
			return fmt.Errorf("%w: %s after %d attempts", ErrUploadFailed, doc.Filename, doc.Attempts)
		}
		u.rec.RecordRetry()
		slog.Warn("document upload attempt failed, retrying",
			"filename", doc.Filename,
			"attempt", doc.Attempts,
			"error", err,
		)
	}

	u.setState(doc, model.DocStateScanning, model.ProgressScanning)
	if err := u.gw.RequestVirusScan(ctx, doc.Ref); err != nil {
		if errors.Is(err, gateway.ErrExpiredSession) {
			return err
		}
		u.setState(doc, model.DocStateInfected, model.ProgressScanning)
		u.rec.RecordScanResult("infected")
		markInfected(doc.Filename)
		return nil
	}
	u.setState(doc, model.DocStateClean, model.ProgressScanning)
	u.rec.RecordScanResult("clean")
	return nil
}

func (u *Uploader) setState(doc *model.UploadDocument, state model.DocState, progress int) {
	doc.State = state
	doc.Progress = progress
	u.notify(doc)
}

func (u *Uploader) notify(doc *model.UploadDocument) {
	if u.observer != nil {
		u.observer(*doc)
	}
}

func (u *Uploader) failAll(docs []*model.UploadDocument) {
	for _, doc := range docs {
		if doc.State != model.DocStateSucceeded {
			u.setState(doc, model.DocStateFailed, doc.Progress)
		}
	}
}

func (u *Uploader) finish(start time.Time, outcome string) {
	u.rec.RecordBatchDuration(outcome, time.Since(start))
}
