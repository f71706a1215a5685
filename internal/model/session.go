package model

// UploadTarget is a storage destination issued by the gateway for one
// document: a presigned POST URL plus the form fields that must accompany
// the file bytes.
type UploadTarget struct {
	// URL is the storage destination.
	URL string
	// Fields are the form fields required by the presigned policy.
	Fields map[string]string
}

// Key returns the storage object key embedded in the presigned fields.
func (t UploadTarget) Key() string {
	return t.Fields["key"]
}

// UploadSession maps document IDs to their issued upload targets. It is
// created once per batch after the document reference request succeeds and
// discarded after all documents resolve.
type UploadSession map[string]UploadTarget
