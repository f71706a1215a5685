package pdfkit

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Merger concatenates the pages of several PDF files, in input order, into a
// single output document.
type Merger interface {
	Merge(paths []string, outPath string) error
}

// CPUMerger merges PDFs using pdfcpu.
type CPUMerger struct {
	conf *pdfmodel.Configuration
}

// NewMerger returns a Merger backed by pdfcpu.
func NewMerger() *CPUMerger {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return &CPUMerger{conf: conf}
}

// Merge writes the concatenation of paths to outPath. The inputs must
// already be position-sorted; Merge preserves input order.
func (m *CPUMerger) Merge(paths []string, outPath string) error {
	if len(paths) == 0 {
		return fmt.Errorf("merge: no input files")
	}
	if err := api.MergeCreateFile(paths, outPath, false, m.conf); err != nil {
		return fmt.Errorf("merging %d files: %w", len(paths), err)
	}
	return nil
}
