// Package validate classifies selected files before any network activity:
// size and type limits, structural PDF soundness, and duplicate detection
// within the active selection.
package validate

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
	"github.com/NHSDigital/ndr-upload-client/internal/pdfkit"
)

// MaxFileSize is the default upload ceiling for a single file: 5 GiB.
const MaxFileSize int64 = 5 << 30

// Checker validates selected files. It is pure over the current selection:
// the only document fields it writes are NumPages (on successful inspection)
// and nothing else; callers apply the returned issues to selection state.
type Checker struct {
	inspector pdfkit.Inspector
	maxSize   int64
}

// New creates a Checker using the given PDF inspector. maxSize is the
// per-file size ceiling in bytes; zero or negative means MaxFileSize.
func New(inspector pdfkit.Inspector, maxSize int64) *Checker {
	if maxSize <= 0 {
		maxSize = MaxFileSize
	}
	return &Checker{inspector: inspector, maxSize: maxSize}
}

// CheckFile validates a single document in isolation and returns nil or the
// one issue that applies. Checks run in order: size, type, PDF structure.
func (c *Checker) CheckFile(doc *model.UploadDocument) *model.FileIssue {
	if doc.Size > c.maxSize {
		return &model.FileIssue{
			Code:     model.IssueTooLarge,
			Severity: model.SeverityError,
			Message:  fmt.Sprintf("file is larger than the %d GB limit", c.maxSize>>30),
		}
	}

	isPDF := doc.ContentType == "application/pdf"
	if mt, err := mimetype.DetectFile(doc.Path); err == nil {
		isPDF = mt.Is("application/pdf")
	}

	if doc.DocType == model.DocTypeLloydGeorge && !isPDF {
		return &model.FileIssue{
			Code:     model.IssueWrongType,
			Severity: model.SeverityError,
			Message:  "Lloyd George files must be PDFs",
		}
	}

	if isPDF {
		info, err := c.inspector.Inspect(doc.Path)
		switch {
		case errors.Is(err, pdfkit.ErrEncryptedPDF):
			return &model.FileIssue{
				Code:     model.IssuePasswordPDF,
				Severity: model.SeverityError,
				Message:  "the PDF is password protected",
			}
		case errors.Is(err, pdfkit.ErrEmptyPDF):
			return &model.FileIssue{
				Code:     model.IssueEmptyPDF,
				Severity: model.SeverityError,
				Message:  "the PDF contains no pages",
			}
		case err != nil:
			return &model.FileIssue{
				Code:     model.IssueInvalidPDF,
				Severity: model.SeverityError,
				Message:  "the PDF could not be read; it may be corrupt",
			}
		}
		doc.NumPages = info.Pages
	}
	return nil
}

// CheckBatch validates every document plus the cross-file duplicate rule and
// returns a map from document ID to its issue. Two documents with identical
// name and size are both flagged: a blocking error for Lloyd George batches,
// a proceedable warning for ARF.
func (c *Checker) CheckBatch(docs []*model.UploadDocument) map[string]*model.FileIssue {
	issues := make(map[string]*model.FileIssue)

	for _, doc := range docs {
		if issue := c.CheckFile(doc); issue != nil {
			issues[doc.ID] = issue
		}
	}

	type key struct {
		name string
		size int64
	}
	byKey := make(map[key][]*model.UploadDocument, len(docs))
	for _, doc := range docs {
		k := key{doc.Filename, doc.Size}
		byKey[k] = append(byKey[k], doc)
	}
	for _, group := range byKey {
		if len(group) < 2 {
			continue
		}
		for _, doc := range group {
			if _, exists := issues[doc.ID]; exists {
				continue
			}
			severity := model.SeverityWarning
			if doc.DocType == model.DocTypeLloydGeorge {
				severity = model.SeverityError
			}
			issues[doc.ID] = &model.FileIssue{
				Code:     model.IssueDuplicate,
				Severity: severity,
				Message:  fmt.Sprintf("%q has the same name and size as another selected file", doc.Filename),
			}
		}
	}
	return issues
}
