// Package gateway implements the REST client for the national document
// repository gateway: document reference creation, presigned storage uploads,
// virus scanning, upload confirmation, status polling, and the read and
// delete paths.
package gateway

import (
	"time"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
)

// FileReference describes one file in a document reference request.
type FileReference struct {
	// ID is the client-generated document ID the issued target is keyed by.
	ID string
	// FileName is the name the artifact will be stored under.
	FileName string
	// ContentType is the MIME type of the artifact.
	ContentType string
	// DocType is the document category.
	DocType model.DocType
}

// UploadState is the asynchronous processing status reported by the gateway.
type UploadState string

const (
	// UploadStateProcessing means the record is still being processed.
	UploadStateProcessing UploadState = "processing"
	// UploadStateFinal means the record reached its terminal stored state.
	UploadStateFinal UploadState = "final"
	// UploadStateInfected means the virus scanner rejected the record.
	UploadStateInfected UploadState = "infected"
	// UploadStateNotFound means the gateway has no record yet.
	UploadStateNotFound UploadState = "not_found"
	// UploadStateCancelled means the upload was cancelled server-side.
	UploadStateCancelled UploadState = "cancelled"
)

// StitchResult describes a pre-merged existing Lloyd George record.
type StitchResult struct {
	// PresignedURL serves the stitched PDF.
	PresignedURL string
	// NumberOfFiles is how many stored parts were stitched.
	NumberOfFiles int
	// TotalFileSizeInBytes is the stitched record size.
	TotalFileSizeInBytes int64
	// LastUpdated is when the stored record last changed.
	LastUpdated time.Time
}

// ClientConfig contains configuration for creating a gateway Client.
type ClientConfig struct {
	// BaseURL is the gateway URL (required).
	BaseURL string
	// AuthToken is the bearer token for the authenticated session.
	AuthToken string
	// Timeout is the request timeout (default: 5 minutes).
	Timeout time.Duration
}

// apiCreateReferenceRequest is the raw DocumentReference request body.
type apiCreateReferenceRequest struct {
	NHSNumber string             `json:"subject"`
	Content   []apiFileReference `json:"content"`
}

type apiFileReference struct {
	ID          string `json:"reference"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	DocType     string `json:"docType"`
}

// apiUploadTarget is the raw per-file presigned target.
type apiUploadTarget struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

type apiScanRequest struct {
	DocumentReference string `json:"documentReference"`
}

type apiConfirmRequest struct {
	PatientID string              `json:"patientId"`
	Documents map[string][]string `json:"documents"`
}

type apiUploadStateResponse struct {
	Status string `json:"status"`
}

type apiStitchResponse struct {
	PresignedURL         string `json:"presignedUrl"`
	NumberOfFiles        int    `json:"numberOfFiles"`
	TotalFileSizeInBytes int64  `json:"totalFileSizeInBytes"`
	LastUpdated          string `json:"lastUpdated"`
}

type apiManifestResponse struct {
	URL string `json:"url"`
}
