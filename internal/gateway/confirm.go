package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
)

// ConfirmUpload finalises the batch: one request carrying the per-type lists
// of storage keys, issued only after every document in the batch is clean.
// A 403 maps to ErrExpiredSession; any other failure is retryable at the
// user's discretion.
func (c *Client) ConfirmUpload(ctx context.Context, patientID string, documents map[model.DocType][]string) error {
	if err := validateNHSNumber(patientID); err != nil {
		return err
	}
	if len(documents) == 0 {
		return &ValidationError{Field: "documents", Message: "at least one document key is required"}
	}

	body := apiConfirmRequest{
		PatientID: patientID,
		Documents: make(map[string][]string, len(documents)),
	}
	for docType, keys := range documents {
		body.Documents[string(docType)] = keys
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling confirm request: %w", err)
	}

	resp, err := c.request(ctx, http.MethodPost, "/UploadConfirm", bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	return handleResponse(resp, nil)
}
