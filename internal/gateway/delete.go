package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
)

// DeleteDocuments removes the patient's stored records of the given type.
func (c *Client) DeleteDocuments(ctx context.Context, patientID string, docType model.DocType) error {
	if err := validateNHSNumber(patientID); err != nil {
		return err
	}

	path := "/DocumentDelete?patientId=" + url.QueryEscape(patientID) +
		"&docType=" + url.QueryEscape(string(docType))
	resp, err := c.request(ctx, http.MethodDelete, path, nil, "")
	if err != nil {
		return err
	}
	return handleResponse(resp, nil)
}
