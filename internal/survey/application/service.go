// Package application persists the questionnaire state and exposes the
// derived document requirements.
package application

import (
	"context"
	"fmt"

	"github.com/slpk/loandocs/internal/survey/domain"
)

// StateRepository persists the questionnaire answer and current node on the
// applicant profile.
type StateRepository interface {
	Get(ctx context.Context, studentID string) (domain.Answer, domain.NodeID, error)
	Save(ctx context.Context, studentID string, a domain.Answer, node domain.NodeID) error
	Clear(ctx context.Context, studentID string) error
}

// Service runs the questionnaire wizard for one applicant at a time. The
// flow itself is stateless; the stored answer plus node is the whole state.
type Service struct {
	states  StateRepository
	variant domain.RuleVariant
}

// NewService builds the survey service with the given rule variant.
func NewService(states StateRepository, variant domain.RuleVariant) *Service {
	return &Service{states: states, variant: variant}
}

// State is the wizard view returned to the client after every step.
type State struct {
	Node     domain.NodeID   `json:"node"`
	Prompt   string          `json:"prompt"`
	Options  []domain.Option `json:"options"`
	Answer   domain.Answer   `json:"answer"`
	Complete bool            `json:"complete"`
}

func stateOf(f *domain.Flow) *State {
	return &State{
		Node:     f.Current(),
		Prompt:   f.Prompt(),
		Options:  f.Options(),
		Answer:   f.Answer(),
		Complete: f.Complete(),
	}
}

func (s *Service) load(ctx context.Context, studentID string) (*domain.Flow, error) {
	answer, node, err := s.states.Get(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load survey state for %s: %w", studentID, err)
	}
	if node == "" {
		return domain.NewFlow(), nil
	}
	flow, err := domain.Resume(answer, node)
	if err != nil {
		// Stored state no longer matches the question graph; start over
		// rather than trap the applicant.
		return domain.NewFlow(), nil
	}
	return flow, nil
}

func (s *Service) save(ctx context.Context, studentID string, f *domain.Flow) error {
	if err := s.states.Save(ctx, studentID, f.Answer(), f.Current()); err != nil {
		return fmt.Errorf("save survey state for %s: %w", studentID, err)
	}
	return nil
}

// State returns the applicant's current wizard position.
func (s *Service) State(ctx context.Context, studentID string) (*State, error) {
	flow, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return stateOf(flow), nil
}

// Answer records a choice at the current question and advances.
func (s *Service) Answer(ctx context.Context, studentID string, opt domain.Option) (*State, error) {
	flow, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if _, err := flow.Advance(opt); err != nil {
		return nil, err
	}
	if err := s.save(ctx, studentID, flow); err != nil {
		return nil, err
	}
	return stateOf(flow), nil
}

// Back steps to the previous question, discarding the answers given at and
// after it.
func (s *Service) Back(ctx context.Context, studentID string) (*State, error) {
	flow, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	flow.Back()
	if err := s.save(ctx, studentID, flow); err != nil {
		return nil, err
	}
	return stateOf(flow), nil
}

// Reset discards every answer and returns to the first question.
func (s *Service) Reset(ctx context.Context, studentID string) (*State, error) {
	if err := s.states.Clear(ctx, studentID); err != nil {
		return nil, fmt.Errorf("clear survey state for %s: %w", studentID, err)
	}
	return stateOf(domain.NewFlow()), nil
}

// Requirements derives the document list from the answers given so far.
// Incomplete answers yield the baseline documents only.
func (s *Service) Requirements(ctx context.Context, studentID string) ([]domain.Requirement, error) {
	answer, _, err := s.states.Get(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load survey state for %s: %w", studentID, err)
	}
	return domain.DeriveRequirementsVariant(answer, s.variant), nil
}
