package pdfkit

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// blockingMerger blocks inside Merge until released, so tests can observe
// the in-flight guard.
type blockingMerger struct {
	started chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
	err     error
}

func (m *blockingMerger) Merge(paths []string, outPath string) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.started != nil {
		close(m.started)
	}
	if m.release != nil {
		<-m.release
	}
	return m.err
}

func TestPreviewMergerSuppressesConcurrentMerge(t *testing.T) {
	inner := &blockingMerger{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	pm := NewPreviewMerger(inner)

	done := make(chan error, 1)
	go func() {
		ran, err := pm.TryMerge([]string{"a.pdf"}, "out.pdf")
		if !ran {
			t.Error("first TryMerge should run")
		}
		done <- err
	}()

	<-inner.started

	// Second invocation while the first is in flight must be suppressed.
	ran, err := pm.TryMerge([]string{"a.pdf"}, "out.pdf")
	if ran {
		t.Error("second TryMerge should be suppressed while one is in flight")
	}
	if err != nil {
		t.Errorf("suppressed TryMerge returned error: %v", err)
	}

	close(inner.release)
	if err := <-done; err != nil {
		t.Errorf("first TryMerge error: %v", err)
	}

	inner.mu.Lock()
	calls := inner.calls
	inner.mu.Unlock()
	if calls != 1 {
		t.Errorf("inner merger called %d times, want 1", calls)
	}
}

func TestPreviewMergerGuardResetsAfterError(t *testing.T) {
	inner := &blockingMerger{err: errors.New("merge failed")}
	pm := NewPreviewMerger(inner)

	ran, err := pm.TryMerge([]string{"a.pdf"}, "out.pdf")
	if !ran || err == nil {
		t.Fatalf("TryMerge = (%v, %v), want (true, error)", ran, err)
	}

	// The guard must reset even after a failed merge.
	ran, _ = pm.TryMerge([]string{"a.pdf"}, "out.pdf")
	if !ran {
		t.Error("guard did not reset after failed merge")
	}
}

func TestInspectRejectsNonPDF(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content []byte
		wantErr error
	}{
		{"plain text", []byte("hello, not a pdf"), ErrNotPDF},
		{"empty file", nil, ErrNotPDF},
		{"truncated header", []byte("%PD"), ErrNotPDF},
		{"header only garbage", []byte("%PDF-1.7 but nothing else"), ErrNotPDF},
	}

	ins := NewInspector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "f.bin")
			if err := os.WriteFile(path, tt.content, 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := ins.Inspect(path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Inspect error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInspectMissingFile(t *testing.T) {
	ins := NewInspector()
	if _, err := ins.Inspect(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}
