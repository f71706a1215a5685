package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
)

// Manifest requests a presigned URL for a zip bundle of the patient's stored
// documents of the given types.
func (c *Client) Manifest(ctx context.Context, patientID string, docTypes []model.DocType) (string, error) {
	if err := validateNHSNumber(patientID); err != nil {
		return "", err
	}
	if len(docTypes) == 0 {
		return "", &ValidationError{Field: "docTypes", Message: "at least one document type is required"}
	}

	types := make([]string, len(docTypes))
	for i, t := range docTypes {
		types[i] = string(t)
	}
	path := fmt.Sprintf("/DocumentManifest?patientId=%s&docTypes=%s",
		url.QueryEscape(patientID), url.QueryEscape(strings.Join(types, ",")))

	resp, err := c.request(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", err
	}

	var apiResp apiManifestResponse
	if err := handleResponse(resp, &apiResp); err != nil {
		return "", err
	}
	if apiResp.URL == "" {
		return "", fmt.Errorf("gateway returned an empty manifest URL")
	}
	return apiResp.URL, nil
}

// FetchBundle streams the zip bundle behind a manifest URL to destPath.
// onProgress, when non-nil, receives the completion percentage where the
// response declares a length, or -1 when unknown. Cancelling ctx stops the
// client acting on the result; the partially written file is removed.
func (c *Client) FetchBundle(ctx context.Context, bundleURL, destPath string, onProgress func(int)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bundleURL, nil)
	if err != nil {
		return fmt.Errorf("creating bundle request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}

	total := resp.ContentLength
	progress := &progressReader{
		reader: resp.Body,
		onProgress: func(read int64) {
			if onProgress == nil {
				return
			}
			if total > 0 {
				onProgress(int(float64(read) / float64(total) * 100))
			} else {
				onProgress(-1)
			}
		},
	}

	if _, err := io.Copy(out, progress); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("writing bundle: %w", err)
	}
	return out.Close()
}
