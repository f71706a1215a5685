// Package model defines the core types shared across the upload pipeline:
// documents, their lifecycle states, validation issues, patient details and
// upload sessions.
package model

import "time"

// DocType identifies the category of a patient document.
type DocType string

const (
	// DocTypeARF is an electronic health record attachment.
	DocTypeARF DocType = "ARF"
	// DocTypeLloydGeorge is a digitised Lloyd George record part.
	DocTypeLloydGeorge DocType = "LG"
)

// DocState is the lifecycle state of a document within an upload batch.
type DocState string

const (
	// DocStateSelected means the file has been chosen but not yet uploaded.
	DocStateSelected DocState = "selected"
	// DocStateUploading means bytes are being pushed to the storage target.
	DocStateUploading DocState = "uploading"
	// DocStateScanning means the upload finished and a virus scan is pending.
	DocStateScanning DocState = "scanning"
	// DocStateClean means the virus scan passed.
	DocStateClean DocState = "clean"
	// DocStateInfected means the virus scan flagged the document.
	DocStateInfected DocState = "infected"
	// DocStateSucceeded means the backend confirmed the document.
	DocStateSucceeded DocState = "succeeded"
	// DocStateFailed means the upload or confirmation failed.
	DocStateFailed DocState = "failed"
	// DocStateErrored means an unrecoverable client-side error occurred.
	DocStateErrored DocState = "errored"
)

// Terminal reports whether the state is final for the batch.
func (s DocState) Terminal() bool {
	switch s {
	case DocStateSucceeded, DocStateInfected, DocStateFailed, DocStateErrored:
		return true
	}
	return false
}

// ProgressScanning is the sentinel progress value used while a document is
// being scanned. There is no byte-level progress for the scan phase.
const ProgressScanning = -1

// UploadDocument represents one file the user intends to upload.
type UploadDocument struct {
	// ID is a client-generated UUID identifying the document within a batch.
	ID string
	// Path is the location of the file on disk.
	Path string
	// Filename is the base name of the file as selected.
	Filename string
	// Size is the file size in bytes.
	Size int64
	// ContentType is the detected MIME type.
	ContentType string
	// DocType is the document category.
	DocType DocType
	// State is the current lifecycle state.
	State DocState
	// Progress is the upload completion percentage (0-100), or
	// ProgressScanning while the virus scan runs.
	Progress int
	// Attempts counts failed upload attempts for this document.
	Attempts int
	// Position is the 1-based ordering index within the record. Zero means
	// no position has been assigned yet.
	Position int
	// NumPages is the PDF page count, populated during validation.
	NumPages int
	// Issue classifies a validation failure, if any.
	Issue *FileIssue
	// Ref is the backend-assigned storage key once a target was issued.
	Ref string
	// AddedAt is when the file was selected.
	AddedAt time.Time
}
