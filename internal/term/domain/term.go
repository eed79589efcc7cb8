// Package domain holds the academic term model and the live service
// configuration that decides which term is currently accepting documents.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConfigNotFound is returned when the service configuration singleton
// does not exist yet.
var ErrConfigNotFound = errors.New("service configuration not found")

// Term identifies one academic term. Years are Buddhist calendar years as
// used by the loan office, e.g. "2568".
type Term struct {
	AcademicYear string `bson:"academicYear" json:"academicYear"`
	Number       string `bson:"term" json:"term"`
}

// Key returns the canonical "{year}_{term}" form used in collection names
// and user bookkeeping.
func (t Term) Key() string {
	return t.AcademicYear + "_" + t.Number
}

// Collection returns the name of the per-term submission collection.
func (t Term) Collection() string {
	return "document_submissions_" + t.Key()
}

// IsZero reports whether the term is unset.
func (t Term) IsZero() bool {
	return t.AcademicYear == "" && t.Number == ""
}

func (t Term) String() string {
	return fmt.Sprintf("%s/%s", t.Number, t.AcademicYear)
}

// Config is the service configuration singleton managed by the loan office.
// It names the active term and the submission window.
type Config struct {
	AcademicYear string `bson:"academicYear" json:"academicYear"`
	Term         string `bson:"term" json:"term"`
	// IsEnabled switches document submission on or off globally.
	IsEnabled bool `bson:"isEnabled" json:"isEnabled"`
	// ImmediateAccess opens the window regardless of the dates below.
	ImmediateAccess bool       `bson:"immediateAccess" json:"immediateAccess"`
	StartDate       *time.Time `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate         *time.Time `bson:"endDate,omitempty" json:"endDate,omitempty"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`
	UpdatedBy       string     `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

// ActiveTerm returns the term the configuration points at.
func (c Config) ActiveTerm() Term {
	return Term{AcademicYear: c.AcademicYear, Number: c.Term}
}

// WindowOpen reports whether documents are accepted at the given instant.
func (c Config) WindowOpen(now time.Time) bool {
	if !c.IsEnabled {
		return false
	}
	if c.ImmediateAccess {
		return true
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return false
	}
	return true
}

// ConfigRepository persists the configuration singleton.
type ConfigRepository interface {
	Get(ctx context.Context) (*Config, error)
	Save(ctx context.Context, cfg Config) error
}
