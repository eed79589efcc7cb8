// Package application drives the post-approval processing workflow for the
// loan office: reading, advancing and bulk-advancing stages behind the
// fully-approved gate.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slpk/loandocs/internal/processing/domain"
	submissiondomain "github.com/slpk/loandocs/internal/submission/domain"
	termdomain "github.com/slpk/loandocs/internal/term/domain"
	"github.com/slpk/loandocs/pkg/logger"
)

// TopicStageAdvanced is the event emitted after every stage change.
const TopicStageAdvanced = "loandocs.processing.stage_advanced"

// ApprovalGate answers whether a student's submission is fully approved.
// Implemented by the submission service.
type ApprovalGate interface {
	FullyApproved(ctx context.Context, studentID string) (bool, error)
}

// SubmissionSource lists the current term and its submissions for the
// officer processing board.
type SubmissionSource interface {
	CurrentTerm(ctx context.Context) termdomain.Term
	ListByTerm(ctx context.Context, t termdomain.Term) ([]submissiondomain.Record, error)
}

// EventPublisher emits domain events.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// ErrNotApproved guards the workflow behind full document approval.
var ErrNotApproved = errors.New("submission is not fully approved")

// Service is the processing workflow application service.
type Service struct {
	workflows   domain.Repository
	gate        ApprovalGate
	submissions SubmissionSource
	events      EventPublisher
}

// NewService wires the processing service.
func NewService(workflows domain.Repository, gate ApprovalGate, submissions SubmissionSource, events EventPublisher) *Service {
	return &Service{workflows: workflows, gate: gate, submissions: submissions, events: events}
}

// Get returns the student's workflow. An approved student with no stored
// workflow gets the default all-pending one; it is not persisted until the
// first advance.
func (s *Service) Get(ctx context.Context, studentID string) (*domain.Workflow, error) {
	w, err := s.workflows.Get(ctx, studentID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, domain.ErrWorkflowNotFound) {
		return nil, err
	}

	approved, gerr := s.gate.FullyApproved(ctx, studentID)
	if gerr != nil {
		return nil, fmt.Errorf("check approval for %s: %w", studentID, gerr)
	}
	if !approved {
		return nil, domain.ErrWorkflowNotFound
	}
	t := s.submissions.CurrentTerm(ctx)
	return domain.NewWorkflow(studentID, t.AcademicYear, t.Number), nil
}

// AdvanceInput is one stage change requested by an officer.
type AdvanceInput struct {
	StageID domain.StageID     `json:"stage"`
	Status  domain.StageStatus `json:"status"`
	Note    string             `json:"note"`
}

// AdvanceStage applies one stage change to one student's workflow.
func (s *Service) AdvanceStage(ctx context.Context, studentID, officer string, in AdvanceInput) (*domain.Workflow, error) {
	approved, err := s.gate.FullyApproved(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("check approval for %s: %w", studentID, err)
	}
	if !approved {
		return nil, ErrNotApproved
	}

	w, err := s.workflows.Get(ctx, studentID)
	if errors.Is(err, domain.ErrWorkflowNotFound) {
		t := s.submissions.CurrentTerm(ctx)
		w = domain.NewWorkflow(studentID, t.AcademicYear, t.Number)
	} else if err != nil {
		return nil, err
	}

	if err := w.Advance(in.StageID, in.Status, in.Note, time.Now()); err != nil {
		return nil, err
	}
	if err := s.workflows.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save workflow for %s: %w", studentID, err)
	}

	s.publish(ctx, studentID, officer, w, in)
	logger.Info(ctx, "processing stage advanced",
		"student_id", studentID,
		"stage", in.StageID,
		"status", in.Status,
		"officer", officer,
	)
	return w, nil
}

// BulkFailure names one student a bulk advance could not update.
type BulkFailure struct {
	StudentID string `json:"studentId"`
	Reason    string `json:"reason"`
}

// BulkResult partitions a bulk advance into the students that were updated
// and those that were not.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// AdvanceStageForMany applies the same stage change to many students. One
// failure never aborts the rest; the caller gets the full partition.
func (s *Service) AdvanceStageForMany(ctx context.Context, studentIDs []string, officer string, in AdvanceInput) *BulkResult {
	res := &BulkResult{}
	for _, id := range studentIDs {
		if _, err := s.AdvanceStage(ctx, id, officer, in); err != nil {
			res.Failed = append(res.Failed, BulkFailure{StudentID: id, Reason: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res
}

// BoardEntry is one row of the officer processing board.
type BoardEntry struct {
	StudentID   string           `json:"studentId"`
	StudentName string           `json:"studentName,omitempty"`
	Workflow    *domain.Workflow `json:"workflow"`
}

// Board lists every fully approved submission of the current term with its
// workflow, defaulting missing workflows to all-pending.
func (s *Service) Board(ctx context.Context) ([]BoardEntry, error) {
	t := s.submissions.CurrentTerm(ctx)
	records, err := s.submissions.ListByTerm(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("list submissions for %s: %w", t.Key(), err)
	}

	var approved []submissiondomain.Record
	var ids []string
	for _, r := range records {
		if r.AggregateStatus() == submissiondomain.AggregateApproved {
			approved = append(approved, r)
			ids = append(ids, r.StudentID)
		}
	}
	if len(approved) == 0 {
		return []BoardEntry{}, nil
	}

	stored, err := s.workflows.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load workflows: %w", err)
	}

	entries := make([]BoardEntry, 0, len(approved))
	for _, r := range approved {
		w := stored[r.StudentID]
		if w == nil {
			w = domain.NewWorkflow(r.StudentID, t.AcademicYear, t.Number)
		}
		entries = append(entries, BoardEntry{
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			Workflow:    w,
		})
	}
	return entries, nil
}

// Watch streams the student's workflow as officers advance it.
func (s *Service) Watch(ctx context.Context, studentID string) (<-chan domain.Workflow, error) {
	if _, err := s.Get(ctx, studentID); err != nil {
		return nil, err
	}
	return s.workflows.Watch(ctx, studentID)
}

func (s *Service) publish(ctx context.Context, studentID, officer string, w *domain.Workflow, in AdvanceInput) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, TopicStageAdvanced, studentID, map[string]any{
		"studentId":    studentID,
		"stage":        in.StageID,
		"status":       in.Status,
		"currentStage": w.CurrentStage,
		"overall":      w.Overall,
		"officer":      officer,
	})
	if err != nil {
		logger.Warn(ctx, "event publish failed", "topic", TopicStageAdvanced, "student_id", studentID, "error", err)
	}
}
