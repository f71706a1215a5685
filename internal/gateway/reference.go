package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
)

// CreateDocumentReference registers the batch with the gateway and returns
// the upload session: one presigned storage target per file, keyed by the
// client-side document ID supplied in the request.
func (c *Client) CreateDocumentReference(ctx context.Context, nhsNumber string, files []FileReference) (model.UploadSession, error) {
	if err := validateNHSNumber(nhsNumber); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &ValidationError{Field: "files", Message: "at least one file is required"}
	}

	reqBody := apiCreateReferenceRequest{
		NHSNumber: nhsNumber,
		Content:   make([]apiFileReference, 0, len(files)),
	}
	for _, f := range files {
		if f.ID == "" {
			return nil, &ValidationError{Field: "files", Message: "every file needs a reference id"}
		}
		reqBody.Content = append(reqBody.Content, apiFileReference{
			ID:          f.ID,
			FileName:    f.FileName,
			ContentType: f.ContentType,
			DocType:     string(f.DocType),
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling document reference request: %w", err)
	}

	resp, err := c.request(ctx, http.MethodPost, "/DocumentReference", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	var apiResp map[string]apiUploadTarget
	if err := handleResponse(resp, &apiResp); err != nil {
		return nil, err
	}

	session := make(model.UploadSession, len(apiResp))
	for id, target := range apiResp {
		session[id] = model.UploadTarget{
			URL:    target.URL,
			Fields: target.Fields,
		}
	}

	// Every requested file must have been issued a target; a partial
	// session would stall the batch barrier later.
	for _, f := range files {
		if _, ok := session[f.ID]; !ok {
			return nil, fmt.Errorf("gateway issued no upload target for %q", f.FileName)
		}
	}
	return session, nil
}
