package domain

import "context"

// Repository persists processing workflows, keyed by student id.
type Repository interface {
	Get(ctx context.Context, studentID string) (*Workflow, error)
	Save(ctx context.Context, w *Workflow) error
	// GetMany returns the workflows that exist for the given students,
	// keyed by student id. Missing students are simply absent.
	GetMany(ctx context.Context, studentIDs []string) (map[string]*Workflow, error)
	// Watch streams the workflow each time it changes, until ctx is done.
	Watch(ctx context.Context, studentID string) (<-chan Workflow, error)
}
