package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrVirusFound indicates the scanner rejected a document. The batch it
// belongs to must be abandoned and resubmitted from scratch.
var ErrVirusFound = errors.New("virus found")

// RequestVirusScan submits a stored object key for scanning. A 200 response
// means the document is clean. A 403 is reported as session expiry; any
// other failure means the document must be treated as infected.
func (c *Client) RequestVirusScan(ctx context.Context, documentReference string) error {
	if documentReference == "" {
		return &ValidationError{Field: "documentReference", Message: "is required"}
	}

	payload, err := json.Marshal(apiScanRequest{DocumentReference: documentReference})
	if err != nil {
		return fmt.Errorf("marshaling scan request: %w", err)
	}

	resp, err := c.request(ctx, http.MethodPost, "/VirusScan", bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}

	if err := handleResponse(resp, nil); err != nil {
		if errors.Is(err, ErrExpiredSession) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrVirusFound, err)
	}
	return nil
}
