package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slpk/loandocs/internal/term/domain"
)

var fallback = domain.Term{AcademicYear: "2568", Number: "1"}

type fakeConfigs struct {
	cfg *domain.Config
	err error
}

func (f *fakeConfigs) Get(context.Context) (*domain.Config, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cfg, nil
}

func (f *fakeConfigs) Save(_ context.Context, cfg domain.Config) error {
	f.cfg = &cfg
	return nil
}

type fakeLookup struct {
	existing map[string]bool
	legacy   bool
	probes   []string
}

func (f *fakeLookup) Exists(_ context.Context, t domain.Term, _ string) (bool, error) {
	f.probes = append(f.probes, t.Key())
	return f.existing[t.Key()], nil
}

func (f *fakeLookup) LegacyExists(context.Context, string) (bool, error) {
	return f.legacy, nil
}

type fakeStudents struct {
	terms []string
	err   error
}

func (f *fakeStudents) KnownTerms(context.Context, string) ([]string, error) {
	return f.terms, f.err
}

func newTestResolver(configs domain.ConfigRepository, lookup SubmissionLookup, students StudentTerms) *Resolver {
	return NewResolver(configs, lookup, students, fallback)
}

func TestCurrentTermFromConfig(t *testing.T) {
	r := newTestResolver(&fakeConfigs{cfg: &domain.Config{AcademicYear: "2569", Term: "2"}}, nil, nil)
	assert.Equal(t, domain.Term{AcademicYear: "2569", Number: "2"}, r.CurrentTerm(context.Background()))
}

func TestCurrentTermFallsBack(t *testing.T) {
	r := newTestResolver(&fakeConfigs{err: errors.New("store down")}, nil, nil)
	assert.Equal(t, fallback, r.CurrentTerm(context.Background()))
}

func TestWindowOpen(t *testing.T) {
	now := time.Now()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		cfg  domain.Config
		want bool
	}{
		{"disabled", domain.Config{IsEnabled: false, ImmediateAccess: true}, false},
		{"immediate access", domain.Config{IsEnabled: true, ImmediateAccess: true}, true},
		{"inside window", domain.Config{IsEnabled: true, StartDate: &past, EndDate: &future}, true},
		{"before window", domain.Config{IsEnabled: true, StartDate: &future}, false},
		{"after window", domain.Config{IsEnabled: true, EndDate: &past}, false},
		{"no dates", domain.Config{IsEnabled: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(&fakeConfigs{cfg: &tt.cfg}, nil, nil)
			assert.Equal(t, tt.want, r.WindowOpen(context.Background()))
		})
	}
}

func TestWindowOpenWithoutConfig(t *testing.T) {
	r := newTestResolver(&fakeConfigs{err: domain.ErrConfigNotFound}, nil, nil)
	assert.True(t, r.WindowOpen(context.Background()))
}

func currentConfig() *fakeConfigs {
	return &fakeConfigs{cfg: &domain.Config{AcademicYear: "2568", Term: "2"}}
}

func TestFindSubmissionPrefersCurrentTerm(t *testing.T) {
	lookup := &fakeLookup{existing: map[string]bool{"2568_2": true, "2568_1": true}}
	r := newTestResolver(currentConfig(), lookup, &fakeStudents{terms: []string{"2568_1"}})

	loc, err := r.FindSubmission(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "2568_2", loc.Term.Key())
	assert.False(t, loc.Legacy)
	assert.Equal(t, []string{"2568_2"}, lookup.probes)
}

func TestFindSubmissionUsesKnownTermsFirst(t *testing.T) {
	lookup := &fakeLookup{existing: map[string]bool{"2566_3": true}}
	r := newTestResolver(currentConfig(), lookup, &fakeStudents{terms: []string{"2566_3"}})

	loc, err := r.FindSubmission(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "2566_3", loc.Term.Key())
	// The known term is probed right after the current term.
	assert.Equal(t, []string{"2568_2", "2566_3"}, lookup.probes)
}

func TestFindSubmissionProbesMostRecentFirst(t *testing.T) {
	lookup := &fakeLookup{existing: map[string]bool{"2567_3": true, "2566_1": true}}
	r := newTestResolver(currentConfig(), lookup, &fakeStudents{})

	loc, err := r.FindSubmission(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "2567_3", loc.Term.Key())
}

func TestFindSubmissionFallsBackToLegacy(t *testing.T) {
	lookup := &fakeLookup{legacy: true}
	r := newTestResolver(currentConfig(), lookup, &fakeStudents{})

	loc, err := r.FindSubmission(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.True(t, loc.Legacy)
	assert.True(t, loc.Term.IsZero())
}

func TestFindSubmissionNotFound(t *testing.T) {
	lookup := &fakeLookup{}
	r := newTestResolver(currentConfig(), lookup, &fakeStudents{})

	loc, err := r.FindSubmission(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, loc)
	// Bounded probe: current term plus two years either side, three terms each.
	assert.Len(t, lookup.probes, 15)
}

func TestFindSubmissionSurvivesKnownTermsFailure(t *testing.T) {
	lookup := &fakeLookup{existing: map[string]bool{"2567_2": true}}
	r := newTestResolver(currentConfig(), lookup, &fakeStudents{err: errors.New("index down")})

	loc, err := r.FindSubmission(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "2567_2", loc.Term.Key())
}
