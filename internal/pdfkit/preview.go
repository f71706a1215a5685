package pdfkit

import "sync/atomic"

// PreviewMerger serialises merge invocations for a live ordering preview.
// Only one merge may run at a time per instance; a re-invocation while one is
// in flight is suppressed rather than queued, so a stale result can never
// overwrite a newer one. The guard resets whether the merge succeeds or fails.
type PreviewMerger struct {
	merger  Merger
	running atomic.Bool
}

// NewPreviewMerger wraps merger with the single-flight guard.
func NewPreviewMerger(merger Merger) *PreviewMerger {
	return &PreviewMerger{merger: merger}
}

// TryMerge runs the merge unless one is already in flight. It returns false
// without error when the invocation was suppressed.
func (p *PreviewMerger) TryMerge(paths []string, outPath string) (bool, error) {
	if !p.running.CompareAndSwap(false, true) {
		return false, nil
	}
	defer p.running.Store(false)
	return true, p.merger.Merge(paths, outPath)
}
