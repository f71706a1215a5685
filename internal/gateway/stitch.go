package gateway

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Stitch fetches the pre-merged view of a patient's stored Lloyd George
// record: a presigned URL for the combined PDF plus record metadata. This is
// the read path; it never touches upload state.
func (c *Client) Stitch(ctx context.Context, patientID string) (*StitchResult, error) {
	if err := validateNHSNumber(patientID); err != nil {
		return nil, err
	}

	path := "/LloydGeorgeStitch?patientId=" + url.QueryEscape(patientID)
	resp, err := c.request(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var apiResp apiStitchResponse
	if err := handleResponse(resp, &apiResp); err != nil {
		return nil, err
	}

	result := &StitchResult{
		PresignedURL:         apiResp.PresignedURL,
		NumberOfFiles:        apiResp.NumberOfFiles,
		TotalFileSizeInBytes: apiResp.TotalFileSizeInBytes,
	}
	if t, err := time.Parse(time.RFC3339, apiResp.LastUpdated); err == nil {
		result.LastUpdated = t
	}
	return result, nil
}
