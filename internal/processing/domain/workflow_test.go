package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflow(t *testing.T) {
	w := NewWorkflow("s1", "2568", "1")

	assert.Equal(t, StageDocumentCollection, w.CurrentStage)
	assert.Equal(t, OverallProcessing, w.Overall)
	require.Len(t, w.Stages, 3)
	for i, id := range StageOrder {
		assert.Equal(t, id, w.Stages[i].ID)
		assert.Equal(t, StagePending, w.Stages[i].Status)
	}
}

func TestAdvanceMovesCurrentStageOnCompletion(t *testing.T) {
	w := NewWorkflow("s1", "2568", "1")
	now := time.Now()

	require.NoError(t, w.Advance(StageDocumentCollection, StageInProgress, "checking", now))
	assert.Equal(t, StageDocumentCollection, w.CurrentStage)
	assert.Equal(t, OverallProcessing, w.Overall)

	require.NoError(t, w.Advance(StageDocumentCollection, StageCompleted, "", now))
	assert.Equal(t, StageDocumentOrganization, w.CurrentStage)
	assert.Equal(t, OverallProcessing, w.Overall)
}

func TestAdvanceCompletesWorkflow(t *testing.T) {
	w := NewWorkflow("s1", "2568", "1")
	now := time.Now()

	for _, id := range StageOrder {
		require.NoError(t, w.Advance(id, StageCompleted, "", now))
	}

	assert.Equal(t, OverallCompleted, w.Overall)
	// Stays pinned at the last stage once everything is done.
	assert.Equal(t, StageBankSubmission, w.CurrentStage)
}

func TestAdvanceReopeningAStageRewindsCurrent(t *testing.T) {
	w := NewWorkflow("s1", "2568", "1")
	now := time.Now()
	for _, id := range StageOrder {
		require.NoError(t, w.Advance(id, StageCompleted, "", now))
	}

	require.NoError(t, w.Advance(StageDocumentOrganization, StageInProgress, "missing folder", now))
	assert.Equal(t, StageDocumentOrganization, w.CurrentStage)
	assert.Equal(t, OverallProcessing, w.Overall)
}

func TestAdvanceValidation(t *testing.T) {
	w := NewWorkflow("s1", "2568", "1")
	now := time.Now()

	err := w.Advance(StageID("shipping"), StageCompleted, "", now)
	assert.ErrorIs(t, err, ErrUnknownStage)

	err = w.Advance(StageDocumentCollection, StageStatus("done"), "", now)
	assert.Error(t, err)

	// Workflow untouched after rejected updates.
	assert.Equal(t, StagePending, w.Stage(StageDocumentCollection).Status)
	assert.Equal(t, StageDocumentCollection, w.CurrentStage)
}

func TestAdvanceRecordsNoteAndTimestamp(t *testing.T) {
	w := NewWorkflow("s1", "2568", "1")
	now := time.Now()

	require.NoError(t, w.Advance(StageBankSubmission, StageInProgress, "sent batch 3", now))
	st := w.Stage(StageBankSubmission)
	assert.Equal(t, "sent batch 3", st.Note)
	require.NotNil(t, st.UpdatedAt)
	assert.Equal(t, now, *st.UpdatedAt)
	// A non-completed update parks the current stage on the touched stage.
	assert.Equal(t, StageBankSubmission, w.CurrentStage)
}

func TestAdvanceOutOfOrderCompletionMovesForward(t *testing.T) {
	w := NewWorkflow("s1", "2568", "1")
	now := time.Now()

	// Completing the middle stage moves the current stage to the next one
	// even though the first stage is still pending.
	require.NoError(t, w.Advance(StageDocumentOrganization, StageCompleted, "", now))
	assert.Equal(t, StageBankSubmission, w.CurrentStage)
	assert.Equal(t, OverallProcessing, w.Overall)
	assert.Equal(t, StagePending, w.Stage(StageDocumentCollection).Status)
}

func TestAdvanceLastStageCompletionDoesNotCompleteWorkflow(t *testing.T) {
	w := NewWorkflow("s1", "2568", "1")
	now := time.Now()

	require.NoError(t, w.Advance(StageBankSubmission, StageCompleted, "", now))
	// The first stage is still pending, so the workflow is not done.
	assert.Equal(t, OverallProcessing, w.Overall)
	assert.Equal(t, StageBankSubmission, w.CurrentStage)

	require.NoError(t, w.Advance(StageDocumentCollection, StageCompleted, "", now))
	require.NoError(t, w.Advance(StageDocumentOrganization, StageCompleted, "", now))
	assert.Equal(t, OverallCompleted, w.Overall)
	assert.Equal(t, StageBankSubmission, w.CurrentStage)
}
