package model

import "fmt"

// IssueCode classifies a client-side validation failure.
type IssueCode string

const (
	// IssueTooLarge means the file exceeds the maximum upload size.
	IssueTooLarge IssueCode = "too_large"
	// IssueWrongType means the file is not a PDF.
	IssueWrongType IssueCode = "wrong_type"
	// IssueInvalidPDF means the PDF structure is corrupt.
	IssueInvalidPDF IssueCode = "invalid_pdf"
	// IssueEmptyPDF means the PDF contains no pages.
	IssueEmptyPDF IssueCode = "empty_pdf"
	// IssuePasswordPDF means the PDF is password protected.
	IssuePasswordPDF IssueCode = "password_pdf"
	// IssueBadFilename means the filename does not match the Lloyd George
	// naming grammar, or the batch is internally inconsistent.
	IssueBadFilename IssueCode = "bad_filename"
	// IssuePatientMismatch means the filename segments do not match the
	// verified patient.
	IssuePatientMismatch IssueCode = "patient_mismatch"
	// IssueDuplicate means another selected file shares this file's name
	// and size.
	IssueDuplicate IssueCode = "duplicate"
	// IssueDuplicatePosition means another document already holds the
	// requested position.
	IssueDuplicatePosition IssueCode = "duplicate_position"
)

// IssueSeverity distinguishes blocking failures from proceedable warnings.
type IssueSeverity int

const (
	// SeverityWarning lets the user proceed after acknowledgement.
	SeverityWarning IssueSeverity = iota
	// SeverityError blocks submission until resolved.
	SeverityError
)

// FileIssue describes why a selected file cannot, or should not, be uploaded.
type FileIssue struct {
	Code     IssueCode
	Severity IssueSeverity
	Message  string
}

// Error implements the error interface.
func (i *FileIssue) Error() string {
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// Blocking reports whether the issue prevents submission.
func (i *FileIssue) Blocking() bool {
	return i.Severity == SeverityError
}
