package uploader

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker counts in-flight document uploads so the process can drain them
// before exiting instead of abandoning half-pushed batches.
type Tracker struct {
	mu           sync.RWMutex
	active       map[string]*activeUpload
	wg           sync.WaitGroup
	shuttingDown atomic.Bool
	shutdownCh   chan struct{}
}

// activeUpload represents an in-flight document upload.
type activeUpload struct {
	ID        string
	StartTime time.Time
	Filename  string
	Size      int64
}

// NewTracker creates a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		active:     make(map[string]*activeUpload),
		shutdownCh: make(chan struct{}),
	}
}

// Start registers a document upload as in-flight.
// Returns false if shutdown has begun and new uploads are not accepted.
func (t *Tracker) Start(id, filename string, size int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Read under the lock so a Start racing BeginShutdown cannot slip in.
	if t.shuttingDown.Load() {
		return false
	}

	t.active[id] = &activeUpload{
		ID:        id,
		StartTime: time.Now(),
		Filename:  filename,
		Size:      size,
	}
	t.wg.Add(1)

	slog.Debug("upload started",
		"document_id", id,
		"filename", filename,
		"size", size,
		"active_uploads", len(t.active),
	)

	return true
}

// Finish marks a document upload as completed.
func (t *Tracker) Finish(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.active[id]; exists {
		delete(t.active, id)
		t.wg.Done()

		slog.Debug("upload finished",
			"document_id", id,
			"active_uploads", len(t.active),
		)
	} else {
		slog.Warn("Finish called for unknown upload",
			"document_id", id,
			"active_uploads", len(t.active),
		)
	}
}

// ActiveCount returns the number of in-flight uploads.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}

// IsShuttingDown returns true once shutdown has begun.
func (t *Tracker) IsShuttingDown() bool {
	return t.shuttingDown.Load()
}

// ShutdownCh returns a channel that is closed when shutdown begins.
func (t *Tracker) ShutdownCh() <-chan struct{} {
	return t.shutdownCh
}

// BeginShutdown signals that the process is exiting.
// New uploads will be rejected after this call.
func (t *Tracker) BeginShutdown() {
	if t.shuttingDown.CompareAndSwap(false, true) {
		close(t.shutdownCh)
		slog.Info("upload tracker: draining, new uploads rejected",
			"active_uploads", t.ActiveCount(),
		)
	}
}

// Wait blocks until all in-flight uploads complete, respecting context
// cancellation. Returns true if every upload completed, false if the context
// was cancelled first.
func (t *Tracker) Wait(ctx context.Context) bool {
	t.BeginShutdown()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("upload tracker: all uploads drained")
		return true
	case <-ctx.Done():
		t.mu.RLock()
		for _, u := range t.active {
			slog.Warn("upload tracker: abandoned upload",
				"document_id", u.ID,
				"filename", u.Filename,
				"duration", time.Since(u.StartTime),
			)
		}
		t.mu.RUnlock()
		return false
	}
}
