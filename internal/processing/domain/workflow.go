// Package domain models the post-approval processing workflow: three fixed
// stages the loan office walks each approved submission through.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// StageID identifies one workflow stage.
type StageID string

const (
	StageDocumentCollection   StageID = "document_collection"
	StageDocumentOrganization StageID = "document_organization"
	StageBankSubmission       StageID = "bank_submission"
)

// StageOrder is the fixed progression of the workflow.
var StageOrder = []StageID{
	StageDocumentCollection,
	StageDocumentOrganization,
	StageBankSubmission,
}

// StageStatus is the state of one stage.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
)

// Valid reports whether s is a known stage status.
func (s StageStatus) Valid() bool {
	return s == StagePending || s == StageInProgress || s == StageCompleted
}

// OverallStatus summarizes the whole workflow.
type OverallStatus string

const (
	OverallProcessing OverallStatus = "processing"
	OverallCompleted  OverallStatus = "completed"
)

var (
	// ErrUnknownStage rejects updates to a stage id outside the fixed set.
	ErrUnknownStage = errors.New("unknown workflow stage")
	// ErrWorkflowNotFound is returned when no workflow exists for a student.
	ErrWorkflowNotFound = errors.New("processing workflow not found")
)

// Stage is one step of the workflow with its officer-visible state.
type Stage struct {
	ID        StageID     `bson:"id" json:"id"`
	Status    StageStatus `bson:"status" json:"status"`
	Note      string      `bson:"note,omitempty" json:"note,omitempty"`
	UpdatedAt *time.Time  `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Workflow is the processing record of one approved submission.
type Workflow struct {
	StudentID    string        `bson:"studentId" json:"studentId"`
	AcademicYear string        `bson:"academicYear" json:"academicYear"`
	Term         string        `bson:"term" json:"term"`
	CurrentStage StageID       `bson:"currentStage" json:"currentStage"`
	Overall      OverallStatus `bson:"overallStatus" json:"overallStatus"`
	Stages       []Stage       `bson:"stages" json:"stages"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// NewWorkflow starts a workflow at the first stage with everything pending.
func NewWorkflow(studentID, academicYear, term string) *Workflow {
	stages := make([]Stage, len(StageOrder))
	for i, id := range StageOrder {
		stages[i] = Stage{ID: id, Status: StagePending}
	}
	return &Workflow{
		StudentID:    studentID,
		AcademicYear: academicYear,
		Term:         term,
		CurrentStage: StageDocumentCollection,
		Overall:      OverallProcessing,
		Stages:       stages,
	}
}

// Stage returns the stage with the given id, or nil.
func (w *Workflow) Stage(id StageID) *Stage {
	for i := range w.Stages {
		if w.Stages[i].ID == id {
			return &w.Stages[i]
		}
	}
	return nil
}

// Advance records a status change on one stage. Completing a stage moves
// the current stage forward to the next one; any other update parks the
// current stage on the stage just touched. The workflow is completed
// overall, pinned at the last stage, only once every stage is completed.
func (w *Workflow) Advance(id StageID, status StageStatus, note string, now time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid stage status %q", status)
	}
	st := w.Stage(id)
	if st == nil {
		return fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}

	st.Status = status
	st.Note = note
	t := now
	st.UpdatedAt = &t
	w.UpdatedAt = now

	allCompleted := true
	for _, s := range w.Stages {
		if s.Status != StageCompleted {
			allCompleted = false
			break
		}
	}
	if allCompleted {
		w.CurrentStage = StageOrder[len(StageOrder)-1]
		w.Overall = OverallCompleted
		return nil
	}

	w.Overall = OverallProcessing
	w.CurrentStage = id
	if status == StageCompleted {
		for i, sid := range StageOrder {
			if sid == id && i < len(StageOrder)-1 {
				w.CurrentStage = StageOrder[i+1]
				break
			}
		}
	}
	return nil
}
