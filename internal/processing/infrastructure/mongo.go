// Package infrastructure persists processing workflows in the
// loan_process_status collection.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/slpk/loandocs/internal/processing/domain"
	"github.com/slpk/loandocs/pkg/logger"
)

const workflowCollection = "loan_process_status"

// MongoWorkflowRepository stores workflows keyed by student id.
type MongoWorkflowRepository struct {
	db        *mongo.Database
	opTimeout time.Duration
}

// NewMongoWorkflowRepository builds the repository.
func NewMongoWorkflowRepository(db *mongo.Database, opTimeout time.Duration) *MongoWorkflowRepository {
	return &MongoWorkflowRepository{db: db, opTimeout: opTimeout}
}

func (r *MongoWorkflowRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout > 0 {
		return context.WithTimeout(ctx, r.opTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *MongoWorkflowRepository) coll() *mongo.Collection {
	return r.db.Collection(workflowCollection)
}

// Get loads one workflow.
func (r *MongoWorkflowRepository) Get(ctx context.Context, studentID string) (*domain.Workflow, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var w domain.Workflow
	err := r.coll().FindOne(ctx, bson.M{"studentId": studentID}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find workflow: %w", err)
	}
	return &w, nil
}

// Save upserts the workflow.
func (r *MongoWorkflowRepository) Save(ctx context.Context, w *domain.Workflow) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.coll().ReplaceOne(ctx,
		bson.M{"studentId": w.StudentID},
		w,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

// GetMany loads the workflows that exist for the given students.
func (r *MongoWorkflowRepository) GetMany(ctx context.Context, studentIDs []string) (map[string]*domain.Workflow, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cur, err := r.coll().Find(ctx, bson.M{"studentId": bson.M{"$in": studentIDs}})
	if err != nil {
		return nil, fmt.Errorf("find workflows: %w", err)
	}
	defer cur.Close(ctx)

	out := make(map[string]*domain.Workflow, len(studentIDs))
	for cur.Next(ctx) {
		var w domain.Workflow
		if err := cur.Decode(&w); err != nil {
			return nil, fmt.Errorf("decode workflow: %w", err)
		}
		out[w.StudentID] = &w
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflows: %w", err)
	}
	return out, nil
}

// Watch streams the workflow via a change stream whenever it changes.
func (r *MongoWorkflowRepository) Watch(ctx context.Context, studentID string) (<-chan domain.Workflow, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"fullDocument.studentId": studentID}}},
	}
	stream, err := r.coll().Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", err)
	}

	out := make(chan domain.Workflow)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var event struct {
				FullDocument domain.Workflow `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				logger.Warn(ctx, "change stream decode failed", "student_id", studentID, "error", err)
				continue
			}
			select {
			case out <- event.FullDocument:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn(ctx, "change stream closed with error", "student_id", studentID, "error", err)
		}
	}()
	return out, nil
}
