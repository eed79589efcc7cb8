package domain

import (
	"context"
	"time"

	surveydomain "github.com/slpk/loandocs/internal/survey/domain"
	termdomain "github.com/slpk/loandocs/internal/term/domain"
)

// User is the applicant profile document. Draft uploads live here until the
// final submit promotes them into a term record.
type User struct {
	StudentID             string              `bson:"studentId" json:"studentId"`
	Name                  string              `bson:"name,omitempty" json:"name,omitempty"`
	SurveyAnswer          surveydomain.Answer `bson:"surveyAnswer" json:"surveyAnswer"`
	Drafts                map[string][]File   `bson:"uploads,omitempty" json:"uploads,omitempty"`
	HasSubmittedDocuments bool                `bson:"hasSubmittedDocuments" json:"hasSubmittedDocuments"`
	LastSubmissionTerm    string              `bson:"lastSubmissionTerm,omitempty" json:"lastSubmissionTerm,omitempty"`
	KnownTerms            []string            `bson:"knownTerms,omitempty" json:"knownTerms,omitempty"`
}

// Repository persists submission records in their term-partitioned
// collections.
type Repository interface {
	Create(ctx context.Context, t termdomain.Term, rec Record) error
	Get(ctx context.Context, t termdomain.Term, studentID string) (*Record, error)
	GetLegacy(ctx context.Context, studentID string) (*Record, error)
	ListByTerm(ctx context.Context, t termdomain.Term) ([]Record, error)
	Exists(ctx context.Context, t termdomain.Term, studentID string) (bool, error)
	LegacyExists(ctx context.Context, studentID string) (bool, error)
	// UpdateStatuses overwrites the given per-document statuses on the record.
	UpdateStatuses(ctx context.Context, t termdomain.Term, studentID string, statuses map[string]DocumentStatus) error
	// ReplaceUpload swaps the files and status of one requirement.
	ReplaceUpload(ctx context.Context, t termdomain.Term, studentID string, up Upload, ds DocumentStatus) error
	Delete(ctx context.Context, t termdomain.Term, studentID string) error
	// Watch streams the record each time it changes, until ctx is done.
	Watch(ctx context.Context, t termdomain.Term, studentID string) (<-chan Record, error)
}

// UserRepository persists the applicant profile.
type UserRepository interface {
	Get(ctx context.Context, studentID string) (*User, error)
	SaveDrafts(ctx context.Context, studentID string, drafts map[string][]File) error
	// MarkSubmitted flips the submission flags, records the term in the
	// known-terms index and clears the drafts, in one update.
	MarkSubmitted(ctx context.Context, studentID, termKey string) error
	// ClearSubmission reverts the submission flags after a reset.
	ClearSubmission(ctx context.Context, studentID string) error
	KnownTerms(ctx context.Context, studentID string) ([]string, error)
}

// BlobStore is the object store holding the document files.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	Copy(ctx context.Context, srcKey, dstKey string) (url string, err error)
	Delete(ctx context.Context, key string) error
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// OCRResult is the verification collaborator's reply.
type OCRResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// OCRClient extracts text from a document image. Errors mean the
// collaborator is unavailable and the check should be skipped, never that
// the document is wrong.
type OCRClient interface {
	Extract(ctx context.Context, fileName string, data []byte) (*OCRResult, error)
}

// EventPublisher emits domain events. Implementations must be safe to call
// with a nil-equivalent no-op when eventing is disabled.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
}
