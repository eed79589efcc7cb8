// Package infrastructure stores questionnaire state on the applicant
// profile in the users collection.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/slpk/loandocs/internal/survey/domain"
)

const usersCollection = "users"

// MongoStateRepository persists the survey answer and current node.
type MongoStateRepository struct {
	db        *mongo.Database
	opTimeout time.Duration
}

// NewMongoStateRepository builds the repository.
func NewMongoStateRepository(db *mongo.Database, opTimeout time.Duration) *MongoStateRepository {
	return &MongoStateRepository{db: db, opTimeout: opTimeout}
}

func (r *MongoStateRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout > 0 {
		return context.WithTimeout(ctx, r.opTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *MongoStateRepository) coll() *mongo.Collection {
	return r.db.Collection(usersCollection)
}

type surveyState struct {
	Answer domain.Answer `bson:"surveyAnswer"`
	Node   domain.NodeID `bson:"surveyNode"`
}

// Get loads the stored state. A student with no profile yet gets the zero
// state.
func (r *MongoStateRepository) Get(ctx context.Context, studentID string) (domain.Answer, domain.NodeID, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var st surveyState
	err := r.coll().FindOne(ctx, bson.M{"studentId": studentID},
		options.FindOne().SetProjection(bson.M{"surveyAnswer": 1, "surveyNode": 1}),
	).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Answer{}, "", nil
	}
	if err != nil {
		return domain.Answer{}, "", fmt.Errorf("find survey state: %w", err)
	}
	return st.Answer, st.Node, nil
}

// Save upserts the state onto the profile.
func (r *MongoStateRepository) Save(ctx context.Context, studentID string, a domain.Answer, node domain.NodeID) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.coll().UpdateOne(ctx,
		bson.M{"studentId": studentID},
		bson.M{"$set": bson.M{"surveyAnswer": a, "surveyNode": node}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save survey state: %w", err)
	}
	return nil
}

// Clear removes the state from the profile.
func (r *MongoStateRepository) Clear(ctx context.Context, studentID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.coll().UpdateOne(ctx,
		bson.M{"studentId": studentID},
		bson.M{"$unset": bson.M{"surveyAnswer": "", "surveyNode": ""}},
	)
	if err != nil {
		return fmt.Errorf("clear survey state: %w", err)
	}
	return nil
}
