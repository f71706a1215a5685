package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
	"github.com/NHSDigital/ndr-upload-client/internal/pdfkit"
)

// fakeInspector returns a canned result per path.
type fakeInspector struct {
	pages map[string]int
	errs  map[string]error
}

func (f *fakeInspector) Inspect(path string) (pdfkit.Info, error) {
	if err, ok := f.errs[path]; ok {
		return pdfkit.Info{}, err
	}
	return pdfkit.Info{Pages: f.pages[path]}, nil
}

// writeFile creates a file whose content makes mimetype detection land on
// the wanted type: a PDF header for PDFs, plain text otherwise.
func writeFile(t *testing.T, dir, name string, pdf bool) string {
	t.Helper()
	content := "just some text"
	if pdf {
		content = "%PDF-1.7\nstub"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func lgDoc(id, path string, size int64) *model.UploadDocument {
	return &model.UploadDocument{
		ID:       id,
		Path:     path,
		Filename: filepath.Base(path),
		Size:     size,
		DocType:  model.DocTypeLloydGeorge,
		State:    model.DocStateSelected,
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	goodPDF := writeFile(t, dir, "good.pdf", true)
	textFile := writeFile(t, dir, "notes.txt", false)
	badPDF := writeFile(t, dir, "bad.pdf", true)
	emptyPDF := writeFile(t, dir, "empty.pdf", true)
	lockedPDF := writeFile(t, dir, "locked.pdf", true)

	ins := &fakeInspector{
		pages: map[string]int{goodPDF: 3},
		errs: map[string]error{
			badPDF:    pdfkit.ErrNotPDF,
			emptyPDF:  pdfkit.ErrEmptyPDF,
			lockedPDF: pdfkit.ErrEncryptedPDF,
		},
	}
	checker := New(ins, 0)

	tests := []struct {
		name     string
		doc      *model.UploadDocument
		wantCode model.IssueCode // empty means no issue
	}{
		{"valid pdf", lgDoc("1", goodPDF, 1024), ""},
		{"oversize", lgDoc("2", goodPDF, MaxFileSize+1), model.IssueTooLarge},
		{"size exactly at limit passes", lgDoc("3", goodPDF, MaxFileSize), ""},
		{"wrong type for lloyd george", lgDoc("4", textFile, 100), model.IssueWrongType},
		{"corrupt pdf", lgDoc("5", badPDF, 100), model.IssueInvalidPDF},
		{"empty pdf", lgDoc("6", emptyPDF, 100), model.IssueEmptyPDF},
		{"password protected pdf", lgDoc("7", lockedPDF, 100), model.IssuePasswordPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := checker.CheckFile(tt.doc)
			if tt.wantCode == "" {
				if issue != nil {
					t.Fatalf("unexpected issue: %v", issue)
				}
				return
			}
			if issue == nil {
				t.Fatalf("expected issue %s, got none", tt.wantCode)
			}
			if issue.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", issue.Code, tt.wantCode)
			}
			if !issue.Blocking() {
				t.Error("single-file validation issues must block submission")
			}
		})
	}
}

func TestCheckFileConfiguredSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "r.pdf", true)
	checker := New(&fakeInspector{pages: map[string]int{path: 1}}, 1024)

	if issue := checker.CheckFile(lgDoc("1", path, 1024)); issue != nil {
		t.Fatalf("file at the configured limit should pass, got %v", issue)
	}
	issue := checker.CheckFile(lgDoc("2", path, 1025))
	if issue == nil || issue.Code != model.IssueTooLarge {
		t.Fatalf("file over the configured limit not rejected, got %v", issue)
	}
}

func TestCheckFileRecordsPageCount(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "r.pdf", true)
	checker := New(&fakeInspector{pages: map[string]int{path: 12}}, 0)

	doc := lgDoc("1", path, 500)
	if issue := checker.CheckFile(doc); issue != nil {
		t.Fatalf("unexpected issue: %v", issue)
	}
	if doc.NumPages != 12 {
		t.Errorf("NumPages = %d, want 12", doc.NumPages)
	}
}

func TestCheckFileARFAllowsNonPDF(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.txt", false)
	checker := New(&fakeInspector{}, 0)

	doc := lgDoc("1", path, 100)
	doc.DocType = model.DocTypeARF
	if issue := checker.CheckFile(doc); issue != nil {
		t.Errorf("ARF non-PDF should pass, got %v", issue)
	}
}

func TestCheckBatchDuplicateSymmetry(t *testing.T) {
	dir := t.TempDir()
	pathA := writeFile(t, dir, "dup.pdf", true)

	ins := &fakeInspector{pages: map[string]int{pathA: 1}}
	checker := New(ins, 0)

	// Two documents with the same name and size but different ids: both
	// must be flagged, not just one.
	a := lgDoc("a", pathA, 100)
	b := lgDoc("b", pathA, 100)
	issues := checker.CheckBatch([]*model.UploadDocument{a, b})

	for _, id := range []string{"a", "b"} {
		issue, ok := issues[id]
		if !ok {
			t.Fatalf("document %s not flagged as duplicate", id)
		}
		if issue.Code != model.IssueDuplicate {
			t.Errorf("document %s code = %s, want %s", id, issue.Code, model.IssueDuplicate)
		}
		if !issue.Blocking() {
			t.Error("duplicates in a Lloyd George batch must block submission")
		}
	}
}

func TestCheckBatchDuplicateARFIsWarning(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dup.bin", false)
	checker := New(&fakeInspector{}, 0)

	a := lgDoc("a", path, 100)
	b := lgDoc("b", path, 100)
	a.DocType = model.DocTypeARF
	b.DocType = model.DocTypeARF

	issues := checker.CheckBatch([]*model.UploadDocument{a, b})
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(issues))
	}
	for id, issue := range issues {
		if issue.Blocking() {
			t.Errorf("document %s: ARF duplicate should be a proceedable warning", id)
		}
	}
}

func TestCheckBatchDifferentSizesNotDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "same-name.pdf", true)
	checker := New(&fakeInspector{pages: map[string]int{path: 1}}, 0)

	a := lgDoc("a", path, 100)
	b := lgDoc("b", path, 200)
	if issues := checker.CheckBatch([]*model.UploadDocument{a, b}); len(issues) != 0 {
		t.Errorf("same name with different sizes should not be flagged: %v", issues)
	}
}
