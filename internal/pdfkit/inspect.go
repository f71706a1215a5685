// Package pdfkit wraps pdfcpu behind small interfaces for structural PDF
// inspection and page-level merging of Lloyd George record parts.
package pdfkit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Structural inspection failures, distinguished so each maps to its own
// validation error code.
var (
	// ErrNotPDF means the file is not a structurally valid PDF.
	ErrNotPDF = errors.New("not a valid PDF")
	// ErrEmptyPDF means the PDF contains no pages.
	ErrEmptyPDF = errors.New("PDF has no pages")
	// ErrEncryptedPDF means the PDF is password protected.
	ErrEncryptedPDF = errors.New("PDF is password protected")
)

// Info describes the outcome of a successful structural inspection.
type Info struct {
	// Pages is the page count.
	Pages int
}

// Inspector performs structural validation of a PDF file.
type Inspector interface {
	Inspect(path string) (Info, error)
}

// CPUInspector inspects PDFs using pdfcpu.
type CPUInspector struct {
	conf *pdfmodel.Configuration
}

// NewInspector returns an Inspector backed by pdfcpu with relaxed validation,
// matching what scanned Lloyd George PDFs tend to need.
func NewInspector() *CPUInspector {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return &CPUInspector{conf: conf}
}

// Inspect opens the file and classifies it as valid, corrupt, empty or
// password protected.
func (i *CPUInspector) Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	// Cheap header check before handing the file to the parser so that
	// arbitrary non-PDF uploads fail fast with a clean classification.
	header := make([]byte, 5)
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, []byte("%PDF-")) {
		return Info{}, ErrNotPDF
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Info{}, fmt.Errorf("rewinding file: %w", err)
	}

	pages, err := api.PageCount(f, i.conf)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "password") {
			return Info{}, ErrEncryptedPDF
		}
		return Info{}, ErrNotPDF
	}
	if pages == 0 {
		return Info{}, ErrEmptyPDF
	}
	return Info{Pages: pages}, nil
}
