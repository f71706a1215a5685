package uploader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/NHSDigital/ndr-upload-client/internal/gateway"
)

// ErrPollTimeout means the server never reported a terminal processing state
// within the polling ceiling.
var ErrPollTimeout = errors.New("timed out waiting for the record to finish processing")

// StatusWatch is a handle over a background status poll. Cancel stops the
// poll early; Wait blocks for the outcome. Both are safe to call more than
// once, so callers can defer Cancel unconditionally.
type StatusWatch struct {
	cancel context.CancelFunc
	done   chan struct{}
	state  gateway.UploadState
	err    error
}

// Cancel stops the poll. Idempotent.
func (w *StatusWatch) Cancel() {
	w.cancel()
}

// Wait blocks until the poll finishes and returns the terminal state, or an
// error: ErrPollTimeout when the ceiling elapsed, the context error when
// cancelled, or gateway.ErrExpiredSession when the session lapsed mid-poll.
func (w *StatusWatch) Wait() (gateway.UploadState, error) {
	<-w.done
	return w.state, w.err
}

// WatchStatus starts polling the patient's upload processing state in the
// background at a fixed interval, giving up after the configured ceiling.
// Transient polling errors are swallowed and the next tick retries; only a
// session expiry aborts early.
func (u *Uploader) WatchStatus(ctx context.Context, patientID string) *StatusWatch {
	wctx, cancel := context.WithCancel(ctx)
	w := &StatusWatch{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		defer cancel()
		w.state, w.err = u.pollStatus(wctx, patientID)
	}()
	return w
}

func (u *Uploader) pollStatus(ctx context.Context, patientID string) (gateway.UploadState, error) {
	deadline := time.NewTimer(u.pollCeiling)
	defer deadline.Stop()
	ticker := time.NewTicker(u.pollInterval)
	defer ticker.Stop()

	for {
		state, err := u.gw.UploadState(ctx, patientID)
		switch {
		case err == nil:
			switch state {
			case gateway.UploadStateFinal, gateway.UploadStateInfected, gateway.UploadStateCancelled:
				slog.Info("record processing reached terminal state",
					"nhs_number", patientID,
					"state", state,
				)
				return state, nil
			}
			// processing and not_found mean the server is still working
		case errors.Is(err, gateway.ErrExpiredSession):
			return "", err
		default:
			slog.Warn("status poll failed, will retry", "error", err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", ErrPollTimeout
		case <-ticker.C:
		}
	}
}
