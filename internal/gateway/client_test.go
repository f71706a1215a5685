package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{BaseURL: server.URL, AuthToken: "token123"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid HTTPS URL",
			cfg:     ClientConfig{BaseURL: "https://gateway.example.com"},
			wantErr: false,
		},
		{
			name:    "valid HTTP URL",
			cfg:     ClientConfig{BaseURL: "http://localhost:8080"},
			wantErr: false,
		},
		{
			name:    "empty URL",
			cfg:     ClientConfig{},
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name:    "invalid protocol",
			cfg:     ClientConfig{BaseURL: "ftp://gateway.example.com"},
			wantErr: true,
			errMsg:  "http or https",
		},
		{
			name:    "missing host",
			cfg:     ClientConfig{BaseURL: "http://"},
			wantErr: true,
			errMsg:  "host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				} else if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if client == nil {
				t.Error("expected client but got nil")
			}
		})
	}
}

func TestClientStringRedactsToken(t *testing.T) {
	client, _ := NewClient(ClientConfig{BaseURL: "https://gateway.example.com", AuthToken: "secret123"})
	str := client.String()
	if strings.Contains(str, "secret123") {
		t.Error("token should be redacted")
	}
	if !strings.Contains(str, "***redacted***") {
		t.Errorf("string %q should mark the token redacted", str)
	}
}

func TestCreateDocumentReference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/DocumentReference" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token123" {
			t.Errorf("Authorization = %q", auth)
		}

		var req apiCreateReferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.NHSNumber != "9730211914" {
			t.Errorf("subject = %q", req.NHSNumber)
		}
		if len(req.Content) != 1 || req.Content[0].DocType != "LG" {
			t.Errorf("content = %+v", req.Content)
		}

		json.NewEncoder(w).Encode(map[string]apiUploadTarget{
			req.Content[0].ID: {
				URL:    "https://bucket.example.com",
				Fields: map[string]string{"key": "9730211914/doc-1", "policy": "abc"},
			},
		})
	})

	session, err := client.CreateDocumentReference(context.Background(), "9730211914", []FileReference{
		{ID: "doc-1", FileName: "1of1.pdf", ContentType: "application/pdf", DocType: model.DocTypeLloydGeorge},
	})
	if err != nil {
		t.Fatalf("CreateDocumentReference: %v", err)
	}

	target, ok := session["doc-1"]
	if !ok {
		t.Fatal("session missing doc-1")
	}
	if target.Key() != "9730211914/doc-1" {
		t.Errorf("Key() = %q", target.Key())
	}
}

func TestCreateDocumentReferenceMissingTarget(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Gateway issues a target for a different id than requested.
		json.NewEncoder(w).Encode(map[string]apiUploadTarget{
			"other-id": {URL: "https://bucket.example.com"},
		})
	})

	_, err := client.CreateDocumentReference(context.Background(), "9730211914", []FileReference{
		{ID: "doc-1", FileName: "a.pdf", ContentType: "application/pdf", DocType: model.DocTypeLloydGeorge},
	})
	if err == nil {
		t.Fatal("expected error for missing upload target")
	}
}

func TestCreateDocumentReferenceValidation(t *testing.T) {
	client, _ := NewClient(ClientConfig{BaseURL: "https://gateway.example.com"})

	if _, err := client.CreateDocumentReference(context.Background(), "123", []FileReference{{ID: "x"}}); !errors.Is(err, ErrValidation) {
		t.Errorf("short NHS number: error = %v, want ErrValidation", err)
	}
	if _, err := client.CreateDocumentReference(context.Background(), "9730211914", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("empty file list: error = %v, want ErrValidation", err)
	}
}

func TestCreateDocumentReferenceExpiredSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "session expired"})
	})

	_, err := client.CreateDocumentReference(context.Background(), "9730211914", []FileReference{
		{ID: "doc-1", FileName: "a.pdf", ContentType: "application/pdf", DocType: model.DocTypeLloydGeorge},
	})
	if !errors.Is(err, ErrExpiredSession) {
		t.Errorf("error = %v, want ErrExpiredSession", err)
	}
}

func TestRequestVirusScan(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantErr    error
		wantClean  bool
	}{
		{"clean", http.StatusOK, nil, true},
		{"infected on server error", http.StatusInternalServerError, ErrVirusFound, false},
		{"infected on bad request", http.StatusBadRequest, ErrVirusFound, false},
		{"session expiry is not infection", http.StatusForbidden, ErrExpiredSession, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/VirusScan" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				var req apiScanRequest
				json.NewDecoder(r.Body).Decode(&req)
				if req.DocumentReference != "bucket/key-1" {
					t.Errorf("documentReference = %q", req.DocumentReference)
				}
				w.WriteHeader(tt.status)
			})

			err := client.RequestVirusScan(context.Background(), "bucket/key-1")
			if tt.wantClean {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfirmUpload(t *testing.T) {
	var gotBody apiConfirmRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/UploadConfirm" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.ConfirmUpload(context.Background(), "9730211914", map[model.DocType][]string{
		model.DocTypeLloydGeorge: {"key-1", "key-2"},
	})
	if err != nil {
		t.Fatalf("ConfirmUpload: %v", err)
	}
	if gotBody.PatientID != "9730211914" {
		t.Errorf("patientId = %q", gotBody.PatientID)
	}
	if keys := gotBody.Documents["LG"]; len(keys) != 2 {
		t.Errorf("LG keys = %v", keys)
	}
}

func TestConfirmUploadErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"expired session", http.StatusForbidden, ErrExpiredSession},
		{"server failure", http.StatusInternalServerError, ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			err := client.ConfirmUpload(context.Background(), "9730211914", map[model.DocType][]string{
				model.DocTypeLloydGeorge: {"key-1"},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUploadState(t *testing.T) {
	tests := []struct {
		status  string
		want    UploadState
		wantErr bool
	}{
		{"processing", UploadStateProcessing, false},
		{"final", UploadStateFinal, false},
		{"infected", UploadStateInfected, false},
		{"not_found", UploadStateNotFound, false},
		{"cancelled", UploadStateCancelled, false},
		{"weird", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/UploadState" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("patientId"); got != "9730211914" {
					t.Errorf("patientId = %q", got)
				}
				json.NewEncoder(w).Encode(apiUploadStateResponse{Status: tt.status})
			})

			state, err := client.UploadState(context.Background(), "9730211914")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error for unknown state")
				}
				return
			}
			if err != nil {
				t.Fatalf("UploadState: %v", err)
			}
			if state != tt.want {
				t.Errorf("state = %q, want %q", state, tt.want)
			}
		})
	}
}

func TestStitch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/LloydGeorgeStitch" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(apiStitchResponse{
			PresignedURL:         "https://bucket.example.com/stitched.pdf",
			NumberOfFiles:        3,
			TotalFileSizeInBytes: 12345,
			LastUpdated:          "2024-05-01T10:30:00Z",
		})
	})

	result, err := client.Stitch(context.Background(), "9730211914")
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if result.NumberOfFiles != 3 {
		t.Errorf("NumberOfFiles = %d, want 3", result.NumberOfFiles)
	}
	if result.TotalFileSizeInBytes != 12345 {
		t.Errorf("TotalFileSizeInBytes = %d", result.TotalFileSizeInBytes)
	}
	if result.LastUpdated.IsZero() {
		t.Error("LastUpdated not parsed")
	}
}

func TestStitchNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no record"})
	})

	_, err := client.Stitch(context.Background(), "9730211914")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestManifest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/DocumentManifest" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("docTypes"); got != "LG,ARF" {
			t.Errorf("docTypes = %q", got)
		}
		json.NewEncoder(w).Encode(apiManifestResponse{URL: "https://bucket.example.com/bundle.zip"})
	})

	url, err := client.Manifest(context.Background(), "9730211914",
		[]model.DocType{model.DocTypeLloydGeorge, model.DocTypeARF})
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if url != "https://bucket.example.com/bundle.zip" {
		t.Errorf("url = %q", url)
	}
}

func TestDeleteDocuments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if r.URL.Path != "/DocumentDelete" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("docType"); got != "LG" {
			t.Errorf("docType = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.DeleteDocuments(context.Background(), "9730211914", model.DocTypeLloydGeorge); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
}
