// Package domain holds the submission record aggregate: the uploaded files
// and per-document review statuses for one student in one term.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	surveydomain "github.com/slpk/loandocs/internal/survey/domain"
)

// Status is the review state of one required document.
type Status string

const (
	StatusPending           Status = "pending"
	StatusUploadedToStorage Status = "uploaded_to_storage"
	StatusUnderReview       Status = "under_review"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
)

// Valid reports whether s is one of the known review states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUploadedToStorage, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// open reports whether the document still awaits a review decision.
func (s Status) open() bool {
	return s == StatusPending || s == StatusUploadedToStorage || s == StatusUnderReview
}

// AggregateStatus summarizes a whole submission for the processing gate.
type AggregateStatus string

const (
	AggregateInReview AggregateStatus = "in_review"
	AggregateApproved AggregateStatus = "approved"
	AggregateRejected AggregateStatus = "rejected"
)

// File is one stored file belonging to a requirement.
type File struct {
	Name        string    `bson:"name" json:"name"`
	Key         string    `bson:"key" json:"key"`
	URL         string    `bson:"url,omitempty" json:"url,omitempty"`
	ContentType string    `bson:"contentType,omitempty" json:"contentType,omitempty"`
	Size        int64     `bson:"size,omitempty" json:"size,omitempty"`
	UploadedAt  time.Time `bson:"uploadedAt" json:"uploadedAt"`
}

// Upload groups the files submitted for one requirement, in upload order.
type Upload struct {
	RequirementID string `bson:"requirementId" json:"requirementId"`
	Files         []File `bson:"files" json:"files"`
}

// DocumentStatus is the review state of one requirement on a record.
type DocumentStatus struct {
	Status     Status     `bson:"status" json:"status"`
	Comments   string     `bson:"comments,omitempty" json:"comments,omitempty"`
	ReviewedBy string     `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	FileCount  int        `bson:"fileCount" json:"fileCount"`
	UpdatedAt  time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// Record is the submission aggregate, stored once per student per term.
type Record struct {
	StudentID    string                    `bson:"studentId" json:"studentId"`
	StudentName  string                    `bson:"studentName,omitempty" json:"studentName,omitempty"`
	AcademicYear string                    `bson:"academicYear" json:"academicYear"`
	Term         string                    `bson:"term" json:"term"`
	SurveyAnswer surveydomain.Answer       `bson:"surveyAnswer" json:"surveyAnswer"`
	Uploads      []Upload                  `bson:"uploads" json:"uploads"`
	Statuses     map[string]DocumentStatus `bson:"documentStatuses" json:"documentStatuses"`
	SubmittedAt  time.Time                 `bson:"submittedAt" json:"submittedAt"`
	UpdatedAt    time.Time                 `bson:"updatedAt" json:"updatedAt"`
}

// Upload returns the upload for the given requirement, or nil.
func (r *Record) Upload(reqID string) *Upload {
	for i := range r.Uploads {
		if r.Uploads[i].RequirementID == reqID {
			return &r.Uploads[i]
		}
	}
	return nil
}

// AggregateStatus folds the per-document statuses into one value. Approved
// requires a non-empty status set with every document approved. Rejected
// requires at least one rejection and no document still open. Anything else
// is still in review.
func (r *Record) AggregateStatus() AggregateStatus {
	if len(r.Statuses) == 0 {
		return AggregateInReview
	}

	allApproved := true
	anyRejected := false
	anyOpen := false
	for _, ds := range r.Statuses {
		if ds.Status != StatusApproved {
			allApproved = false
		}
		if ds.Status == StatusRejected {
			anyRejected = true
		}
		if ds.Status.open() {
			anyOpen = true
		}
	}

	switch {
	case allApproved:
		return AggregateApproved
	case anyRejected && !anyOpen:
		return AggregateRejected
	default:
		return AggregateInReview
	}
}

// MissingRequiredError reports the required documents a submit attempt did
// not cover. The ids keep their derivation order.
type MissingRequiredError struct {
	Missing []string
}

func (e *MissingRequiredError) Error() string {
	return fmt.Sprintf("%d required documents missing: %s", len(e.Missing), strings.Join(e.Missing, ", "))
}

// FileError ties an upload failure to the file that caused it.
type FileError struct {
	RequirementID string `json:"requirementId"`
	FileName      string `json:"fileName"`
	Reason        string `json:"reason"`
}

// SubmitError aborts a whole submit attempt. No record is created and no
// partial upload survives when it is returned.
type SubmitError struct {
	Failures []FileError
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit aborted, %d file transfers failed", len(e.Failures))
}

var (
	// ErrRecordNotFound is returned when no submission exists for the term.
	ErrRecordNotFound = errors.New("submission record not found")
	// ErrAlreadySubmitted rejects a second submit within the same term.
	ErrAlreadySubmitted = errors.New("documents already submitted for this term")
	// ErrWindowClosed rejects submits outside the configured window.
	ErrWindowClosed = errors.New("document submission window is closed")
	// ErrNotRejected rejects a re-upload for a document that was not rejected.
	ErrNotRejected = errors.New("document is not in rejected state")
	// ErrSurveyIncomplete rejects a submit before the questionnaire is done.
	ErrSurveyIncomplete = errors.New("questionnaire has not been completed")
)
