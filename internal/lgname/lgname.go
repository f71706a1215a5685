// Package lgname implements the Lloyd George filename grammar:
//
//	{index}of{total}_Lloyd_George_Record_[{name}]_[{nhsNumber}]_[{DD-MM-YYYY}].pdf
//
// and the batch-level consistency and patient-match rules applied to a set
// of candidate files before upload.
package lgname

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/NHSDigital/ndr-upload-client/internal/model"
)

// dobLayout is the date format embedded in filenames.
const dobLayout = "02-01-2006"

// pattern matches the full grammar. The name segment allows letters, spaces
// and combining marks so diacritics survive; the NHS number is exactly ten
// digits.
var pattern = regexp.MustCompile(`^(\d+)of(\d+)_Lloyd_George_Record_\[([\p{L}\p{M} ]+)\]_\[(\d{10})\]_\[(\d{2}-\d{2}-\d{4})\]\.pdf$`)

// Parts is the decomposition of a conforming filename.
type Parts struct {
	Index       int
	Total       int
	PatientName string
	NHSNumber   string
	BirthDate   time.Time
}

// Parse decomposes a filename, returning an error when it does not conform
// to the grammar.
func Parse(filename string) (Parts, error) {
	m := pattern.FindStringSubmatch(filename)
	if m == nil {
		return Parts{}, fmt.Errorf("filename %q does not match the Lloyd George naming format", filename)
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		return Parts{}, fmt.Errorf("filename %q: bad index: %w", filename, err)
	}
	total, err := strconv.Atoi(m[2])
	if err != nil {
		return Parts{}, fmt.Errorf("filename %q: bad total: %w", filename, err)
	}
	dob, err := time.Parse(dobLayout, m[5])
	if err != nil {
		return Parts{}, fmt.Errorf("filename %q: bad date of birth: %w", filename, err)
	}
	return Parts{
		Index:       index,
		Total:       total,
		PatientName: m[3],
		NHSNumber:   m[4],
		BirthDate:   dob,
	}, nil
}

// Build produces a conforming filename for the given patient and position.
// It is also used to name the merged artifact that is actually uploaded.
func Build(index, total int, patient model.PatientDetails) string {
	return fmt.Sprintf("%dof%d_Lloyd_George_Record_[%s]_[%s]_[%s].pdf",
		index, total, patient.FullName(), patient.NHSNumber, patient.BirthDate.Format(dobLayout))
}

// normalizeName applies Unicode NFD and lowercasing so that composed and
// decomposed spellings of the same name compare equal.
func normalizeName(s string) string {
	return norm.NFD.String(strings.ToLower(s))
}

// MatchBatch validates a candidate Lloyd George batch against the grammar,
// its own internal consistency, and the verified patient's demographics.
// It returns a map from document ID to the issue found for that document;
// an empty map means the batch passed.
//
// Patient-level checks only run once the whole-batch structural checks pass,
// so a user fixing filenames is not also shown misleading mismatch errors.
func MatchBatch(docs []*model.UploadDocument, patient model.PatientDetails) map[string]*model.FileIssue {
	issues := make(map[string]*model.FileIssue)
	if len(docs) == 0 {
		return issues
	}

	parsed := make(map[string]Parts, len(docs))
	for _, doc := range docs {
		parts, err := Parse(doc.Filename)
		if err != nil {
			issues[doc.ID] = &model.FileIssue{
				Code:     model.IssueBadFilename,
				Severity: model.SeverityError,
				Message:  err.Error(),
			}
			continue
		}
		parsed[doc.ID] = parts
	}
	if len(issues) > 0 {
		return issues
	}

	flag := func(doc *model.UploadDocument, format string, args ...any) {
		if _, dup := issues[doc.ID]; dup {
			return
		}
		issues[doc.ID] = &model.FileIssue{
			Code:     model.IssueBadFilename,
			Severity: model.SeverityError,
			Message:  fmt.Sprintf(format, args...),
		}
	}

	first := parsed[docs[0].ID]

	// Every file must declare the same total, and that total must equal the
	// batch size.
	for _, doc := range docs {
		p := parsed[doc.ID]
		if p.Total != first.Total {
			flag(doc, "file declares a total of %d but other files declare %d", p.Total, first.Total)
		}
	}
	if len(issues) == 0 && first.Total != len(docs) {
		for _, doc := range docs {
			flag(doc, "filenames declare %d files but %d were selected", first.Total, len(docs))
		}
	}

	// Indexes must be unique integers in [1, total].
	seen := make(map[int]*model.UploadDocument, len(docs))
	for _, doc := range docs {
		p := parsed[doc.ID]
		switch {
		case p.Index == 0:
			flag(doc, "file index 0 is not valid; numbering starts at 1")
		case p.Index > p.Total:
			flag(doc, "file index %d exceeds the declared total of %d", p.Index, p.Total)
		default:
			if prev, ok := seen[p.Index]; ok {
				flag(prev, "file index %d appears more than once", p.Index)
				flag(doc, "file index %d appears more than once", p.Index)
			} else {
				seen[p.Index] = doc
			}
		}
	}

	// All files must carry identical patient segments.
	for _, doc := range docs {
		p := parsed[doc.ID]
		if p.PatientName != first.PatientName || p.NHSNumber != first.NHSNumber || !p.BirthDate.Equal(first.BirthDate) {
			for _, d := range docs {
				flag(d, "files disagree about the patient name, NHS number or date of birth")
			}
			break
		}
	}
	if len(issues) > 0 {
		return issues
	}

	// Structural rules passed; cross-check the shared segments against the
	// verified patient.
	mismatch := ""
	switch {
	case first.NHSNumber != patient.NHSNumber:
		mismatch = "the NHS number in the filenames does not match the patient"
	case !first.BirthDate.Equal(patient.BirthDate):
		mismatch = "the date of birth in the filenames does not match the patient"
	case normalizeName(first.PatientName) != normalizeName(patient.FullName()):
		mismatch = "the patient name in the filenames does not match the patient"
	}
	if mismatch != "" {
		for _, doc := range docs {
			issues[doc.ID] = &model.FileIssue{
				Code:     model.IssuePatientMismatch,
				Severity: model.SeverityError,
				Message:  mismatch,
			}
		}
	}
	return issues
}
