// Package journey drives the upload workflow as a page-level state machine:
// select files, order them, confirm, upload, then land on the outcome stage.
package journey

// Stage identifies where the user is in the upload journey.
type Stage string

// Journey stages. Select through Uploading are the forward path; the rest
// are outcome destinations.
const (
	StageSelect         Stage = "select"
	StageOrder          Stage = "order"
	StageConfirm        Stage = "confirm"
	StageUploading      Stage = "uploading"
	StageComplete       Stage = "complete"
	StageInfected       Stage = "infected"
	StageFailed         Stage = "failed"
	StageFileErrors     Stage = "file_errors"
	StageSessionExpired Stage = "session_expired"
	StageServerError    Stage = "server_error"
)

// Terminal reports whether the stage ends the journey.
func (s Stage) Terminal() bool {
	switch s {
	case StageComplete, StageInfected, StageSessionExpired, StageServerError:
		return true
	}
	return false
}
