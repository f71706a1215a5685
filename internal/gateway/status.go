package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// UploadState fetches the asynchronous processing status of a patient's
// upload. Pollers map the returned state onto document lifecycle states.
func (c *Client) UploadState(ctx context.Context, patientID string) (UploadState, error) {
	if err := validateNHSNumber(patientID); err != nil {
		return "", err
	}

	path := "/UploadState?patientId=" + url.QueryEscape(patientID)
	resp, err := c.request(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", err
	}

	var apiResp apiUploadStateResponse
	if err := handleResponse(resp, &apiResp); err != nil {
		return "", err
	}

	switch state := UploadState(apiResp.Status); state {
	case UploadStateProcessing, UploadStateFinal, UploadStateInfected, UploadStateNotFound, UploadStateCancelled:
		return state, nil
	default:
		return "", fmt.Errorf("gateway returned unknown upload state %q", apiResp.Status)
	}
}
