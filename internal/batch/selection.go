// Package batch holds the authoritative ordered collection of documents
// selected for upload, and the position bookkeeping rules that keep the
// ordering dense.
package batch

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
)

// FileMeta describes one selected file before it becomes a document.
type FileMeta struct {
	Path        string
	Filename    string
	Size        int64
	ContentType string
}

// PositionConflictError reports an attempt to assign a position another
// document already holds. Both colliding documents are listed so the same
// message can be surfaced next to every affected field.
type PositionConflictError struct {
	Position int
	DocIDs   []string
}

// Error implements the error interface. The message is identical regardless
// of which pair collides.
func (e *PositionConflictError) Error() string {
	return fmt.Sprintf("position %d is already in use; every file needs a unique position", e.Position)
}

// Selection is the mutable set of documents for the active upload batch.
// All mutations go through its methods; callers never reorder the backing
// slice directly, so updates are expressed as replace-by-id rather than
// positional mutation.
type Selection struct {
	mu   sync.RWMutex
	docs []*model.UploadDocument

	// existing is the number of documents already stored in the record when
	// appending to an existing Lloyd George record. The existing record
	// occupies the leading positions and is immutable; new documents are
	// numbered from existing+1.
	existing int
}

// NewSelection creates an empty selection. existingCount is non-zero for
// update journeys, where it offsets all new position numbering.
func NewSelection(existingCount int) *Selection {
	return &Selection{existing: existingCount}
}

// ExistingCount returns the pre-existing document count for update journeys.
func (s *Selection) ExistingCount() int {
	return s.existing
}

// Add creates documents for the given files in state selected and prepends
// them, so the most recently added files list first. It returns the created
// documents.
func (s *Selection) Add(files []FileMeta, docType model.DocType) []*model.UploadDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]*model.UploadDocument, 0, len(files))
	for _, f := range files {
		doc := &model.UploadDocument{
			ID:          uuid.NewString(),
			Path:        f.Path,
			Filename:    f.Filename,
			Size:        f.Size,
			ContentType: f.ContentType,
			DocType:     docType,
			State:       model.DocStateSelected,
			AddedAt:     time.Now(),
		}
		added = append(added, doc)
	}
	s.docs = append(added, s.docs...)
	return added
}

// Remove deletes the document with the given id. If it held a position,
// every remaining document with a higher position is decremented so the
// numbering stays dense.
func (s *Selection) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, doc := range s.docs {
		if doc.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	removed := s.docs[idx]
	s.docs = append(s.docs[:idx], s.docs[idx+1:]...)

	if removed.Position > 0 {
		for _, doc := range s.docs {
			if doc.DocType == removed.DocType && doc.Position > removed.Position {
				doc.Position--
			}
		}
	}
	return true
}

// SetPosition assigns a 1-based position (offset by the existing-document
// count in update journeys) to the document with the given id. It fails with
// a PositionConflictError when another document of the same type already
// holds that position.
func (s *Selection) SetPosition(id string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *model.UploadDocument
	for _, doc := range s.docs {
		if doc.ID == id {
			target = doc
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no document with id %s", id)
	}

	min := s.existing + 1
	max := s.existing + s.countLocked(target.DocType)
	if position < min || position > max {
		return fmt.Errorf("position must be between %d and %d", min, max)
	}

	for _, doc := range s.docs {
		if doc.ID != id && doc.DocType == target.DocType && doc.Position == position {
			return &PositionConflictError{
				Position: position,
				DocIDs:   []string{doc.ID, id},
			}
		}
	}
	target.Position = position
	return nil
}

// RemoveAll clears every document of the given type.
func (s *Selection) RemoveAll(docType model.DocType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.docs[:0]
	for _, doc := range s.docs {
		if doc.DocType != docType {
			kept = append(kept, doc)
		}
	}
	s.docs = kept
}

// Documents returns the documents of the given type in selection order.
func (s *Selection) Documents(docType model.DocType) []*model.UploadDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.UploadDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		if doc.DocType == docType {
			out = append(out, doc)
		}
	}
	return out
}

// All returns every document in selection order.
func (s *Selection) All() []*model.UploadDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.UploadDocument(nil), s.docs...)
}

// Len returns the number of documents of the given type.
func (s *Selection) Len(docType model.DocType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(docType)
}

func (s *Selection) countLocked(docType model.DocType) int {
	n := 0
	for _, doc := range s.docs {
		if doc.DocType == docType {
			n++
		}
	}
	return n
}

// ValidatePositions checks that the assigned positions of the given type
// form exactly the range existing+1 .. existing+N, with no duplicates, gaps
// or unassigned documents.
func (s *Selection) ValidatePositions(docType model.DocType) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []int
	for _, doc := range s.docs {
		if doc.DocType != docType {
			continue
		}
		if doc.Position == 0 {
			return fmt.Errorf("file %q has no position", doc.Filename)
		}
		positions = append(positions, doc.Position)
	}
	sort.Ints(positions)
	for i, p := range positions {
		want := s.existing + i + 1
		if p != want {
			return fmt.Errorf("positions must run from %d to %d without gaps or repeats",
				s.existing+1, s.existing+len(positions))
		}
	}
	return nil
}

// Ordered returns the documents of the given type sorted by position,
// failing if the positions do not form a dense range. The result is the
// merge order for the combined artifact.
func (s *Selection) Ordered(docType model.DocType) ([]*model.UploadDocument, error) {
	if err := s.ValidatePositions(docType); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.UploadDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		if doc.DocType == docType {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// AutoAssign numbers unpositioned documents of the given type by their
// Lloyd George filename index when available, falling back to selection
// order. It is used by non-interactive callers that have no ordering screen.
func (s *Selection) AutoAssign(docType model.DocType, indexOf func(*model.UploadDocument) int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []*model.UploadDocument
	for _, doc := range s.docs {
		if doc.DocType == docType {
			docs = append(docs, doc)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool { return indexOf(docs[i]) < indexOf(docs[j]) })
	for i, doc := range docs {
		doc.Position = s.existing + i + 1
	}
}
