package gateway

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
)

// PushToTarget performs the direct multipart form upload of one file to its
// issued storage target: the presigned policy fields first, then the file
// bytes. onProgress, when non-nil, receives the completion percentage
// (0-100) as bytes are read.
func (c *Client) PushToTarget(ctx context.Context, target model.UploadTarget, path string, onProgress func(int)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("getting file info: %w", err)
	}
	fileSize := info.Size()

	// Stream the multipart body through a pipe so a large record never has
	// to be buffered in memory.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		// Form fields must precede the file part for presigned policies.
		for key, value := range target.Fields {
			if err := writer.WriteField(key, value); err != nil {
				pw.CloseWithError(fmt.Errorf("writing field %q: %w", key, err))
				return
			}
		}

		part, err := writer.CreateFormFile("file", info.Name())
		if err != nil {
			pw.CloseWithError(fmt.Errorf("creating form file: %w", err))
			return
		}

		progress := &progressReader{
			reader: file,
			onProgress: func(read int64) {
				if onProgress != nil && fileSize > 0 {
					onProgress(int(float64(read) / float64(fileSize) * 100))
				}
			},
		}
		if _, err := io.Copy(part, progress); err != nil {
			pw.CloseWithError(fmt.Errorf("copying file: %w", err))
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, pr)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return newAPIError(resp.StatusCode, string(body))
	}
	return nil
}

// progressReader wraps an io.Reader to track read progress.
type progressReader struct {
	reader     io.Reader
	read       int64
	onProgress func(int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		if pr.onProgress != nil {
			pr.onProgress(pr.read)
		}
	}
	return n, err
}
