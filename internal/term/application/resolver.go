// Package application implements term resolution: which term is active,
// whether the submission window is open, and where a student's submission
// record lives across term-partitioned collections.
package application

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/slpk/loandocs/internal/term/domain"
	"github.com/slpk/loandocs/pkg/logger"
)

// nowFunc is replaced in tests.
var nowFunc = time.Now

// SubmissionLookup answers existence probes against the term-partitioned
// submission collections and the legacy unpartitioned one.
type SubmissionLookup interface {
	Exists(ctx context.Context, t domain.Term, studentID string) (bool, error)
	LegacyExists(ctx context.Context, studentID string) (bool, error)
}

// StudentTerms exposes the per-student index of term keys the student has
// ever submitted under.
type StudentTerms interface {
	KnownTerms(ctx context.Context, studentID string) ([]string, error)
}

// Location names the collection a submission record was found in. Legacy
// marks the unpartitioned collection from before term partitioning.
type Location struct {
	Term   domain.Term
	Legacy bool
}

// Resolver decides the active term and finds submission records. The
// configured fallback term keeps the service usable when the configuration
// singleton is missing or the store is briefly unreachable.
type Resolver struct {
	configs  domain.ConfigRepository
	lookup   SubmissionLookup
	students StudentTerms
	fallback domain.Term
}

// NewResolver builds a resolver around the configuration repository.
func NewResolver(configs domain.ConfigRepository, lookup SubmissionLookup, students StudentTerms, fallback domain.Term) *Resolver {
	return &Resolver{configs: configs, lookup: lookup, students: students, fallback: fallback}
}

// CurrentTerm returns the active term from the service configuration,
// falling back to the configured default when the singleton is unavailable.
func (r *Resolver) CurrentTerm(ctx context.Context) domain.Term {
	cfg, err := r.configs.Get(ctx)
	if err != nil {
		logger.Warn(ctx, "service configuration unavailable, using fallback term",
			"fallback", r.fallback.Key(),
			"error", err,
		)
		return r.fallback
	}
	return cfg.ActiveTerm()
}

// Config returns the configuration singleton.
func (r *Resolver) Config(ctx context.Context) (*domain.Config, error) {
	return r.configs.Get(ctx)
}

// SaveConfig replaces the configuration singleton.
func (r *Resolver) SaveConfig(ctx context.Context, cfg domain.Config) error {
	if cfg.AcademicYear == "" || cfg.Term == "" {
		return fmt.Errorf("academic year and term are required")
	}
	return r.configs.Save(ctx, cfg)
}

// WindowOpen reports whether documents are currently accepted. A missing
// configuration leaves the window open, matching the behavior before the
// window feature existed.
func (r *Resolver) WindowOpen(ctx context.Context) bool {
	cfg, err := r.configs.Get(ctx)
	if err != nil {
		logger.Warn(ctx, "service configuration unavailable, treating window as open", "error", err)
		return true
	}
	return cfg.WindowOpen(nowFunc())
}

// FindSubmission locates the student's submission record. The current term
// wins; otherwise the student's known-terms index is consulted, then a
// bounded probe over nearby terms, then the legacy collection. Returns nil
// when no record exists anywhere.
func (r *Resolver) FindSubmission(ctx context.Context, studentID string) (*Location, error) {
	current := r.CurrentTerm(ctx)

	found, err := r.lookup.Exists(ctx, current, studentID)
	if err != nil {
		return nil, fmt.Errorf("probe current term %s: %w", current.Key(), err)
	}
	if found {
		return &Location{Term: current}, nil
	}

	candidates := r.candidateTerms(ctx, studentID, current)
	for _, t := range candidates {
		found, err := r.lookup.Exists(ctx, t, studentID)
		if err != nil {
			return nil, fmt.Errorf("probe term %s: %w", t.Key(), err)
		}
		if found {
			return &Location{Term: t}, nil
		}
	}

	found, err = r.lookup.LegacyExists(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("probe legacy collection: %w", err)
	}
	if found {
		return &Location{Legacy: true}, nil
	}
	return nil, nil
}

// candidateTerms merges the known-terms index with a probe window of two
// years either side of the current year, most recent first, current term
// excluded since it was already probed.
func (r *Resolver) candidateTerms(ctx context.Context, studentID string, current domain.Term) []domain.Term {
	seen := map[string]bool{current.Key(): true}
	var out []domain.Term

	if r.students != nil {
		keys, err := r.students.KnownTerms(ctx, studentID)
		if err != nil {
			logger.Warn(ctx, "known terms index unavailable", "student_id", studentID, "error", err)
		}
		var known []domain.Term
		for _, k := range keys {
			t, ok := parseTermKey(k)
			if !ok || seen[t.Key()] {
				continue
			}
			seen[t.Key()] = true
			known = append(known, t)
		}
		sort.SliceStable(known, func(i, j int) bool {
			if known[i].AcademicYear != known[j].AcademicYear {
				return known[i].AcademicYear > known[j].AcademicYear
			}
			return known[i].Number > known[j].Number
		})
		out = append(out, known...)
	}

	// The probe window is generated most recent first already.
	year, err := strconv.Atoi(current.AcademicYear)
	if err == nil {
		for y := year + 2; y >= year-2; y-- {
			for n := 3; n >= 1; n-- {
				t := domain.Term{AcademicYear: strconv.Itoa(y), Number: strconv.Itoa(n)}
				if seen[t.Key()] {
					continue
				}
				seen[t.Key()] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func parseTermKey(key string) (domain.Term, bool) {
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.Term{}, false
	}
	return domain.Term{AcademicYear: parts[0], Number: parts[1]}, true
}
