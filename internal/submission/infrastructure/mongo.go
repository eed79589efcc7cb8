// Package infrastructure provides the MongoDB, S3 and OCR adapters for the
// submission module.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/slpk/loandocs/internal/submission/domain"
	termdomain "github.com/slpk/loandocs/internal/term/domain"
	"github.com/slpk/loandocs/pkg/logger"
)

const (
	// legacyCollection held submissions before term partitioning.
	legacyCollection = "document_submissions"
	usersCollection  = "users"
)

// MongoSubmissionRepository stores submission records in per-term
// collections named document_submissions_{year}_{term}.
type MongoSubmissionRepository struct {
	db        *mongo.Database
	opTimeout time.Duration
}

// NewMongoSubmissionRepository builds the repository. opTimeout bounds each
// store operation.
func NewMongoSubmissionRepository(db *mongo.Database, opTimeout time.Duration) *MongoSubmissionRepository {
	return &MongoSubmissionRepository{db: db, opTimeout: opTimeout}
}

func (r *MongoSubmissionRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout > 0 {
		return context.WithTimeout(ctx, r.opTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *MongoSubmissionRepository) coll(t termdomain.Term) *mongo.Collection {
	return r.db.Collection(t.Collection())
}

// Create inserts a new record. A unique index on studentId makes a
// concurrent double submit fail instead of duplicating.
func (r *MongoSubmissionRepository) Create(ctx context.Context, t termdomain.Term, rec domain.Record) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := r.coll(t).InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadySubmitted
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *MongoSubmissionRepository) getFrom(ctx context.Context, coll *mongo.Collection, studentID string) (*domain.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rec domain.Record
	err := coll.FindOne(ctx, bson.M{"studentId": studentID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &rec, nil
}

// Get loads the record for one student in one term.
func (r *MongoSubmissionRepository) Get(ctx context.Context, t termdomain.Term, studentID string) (*domain.Record, error) {
	return r.getFrom(ctx, r.coll(t), studentID)
}

// GetLegacy loads from the unpartitioned pre-migration collection.
func (r *MongoSubmissionRepository) GetLegacy(ctx context.Context, studentID string) (*domain.Record, error) {
	return r.getFrom(ctx, r.db.Collection(legacyCollection), studentID)
}

// ListByTerm returns every record of the term, newest first.
func (r *MongoSubmissionRepository) ListByTerm(ctx context.Context, t termdomain.Term) ([]domain.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cur, err := r.coll(t).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer cur.Close(ctx)

	var recs []domain.Record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	return recs, nil
}

func (r *MongoSubmissionRepository) existsIn(ctx context.Context, coll *mongo.Collection, studentID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	// A probe against a collection that was never created just counts zero.
	n, err := coll.CountDocuments(ctx, bson.M{"studentId": studentID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count submissions: %w", err)
	}
	return n > 0, nil
}

// Exists probes one term collection for the student.
func (r *MongoSubmissionRepository) Exists(ctx context.Context, t termdomain.Term, studentID string) (bool, error) {
	return r.existsIn(ctx, r.coll(t), studentID)
}

// LegacyExists probes the unpartitioned collection.
func (r *MongoSubmissionRepository) LegacyExists(ctx context.Context, studentID string) (bool, error) {
	return r.existsIn(ctx, r.db.Collection(legacyCollection), studentID)
}

// UpdateStatuses overwrites the given document statuses on the record.
func (r *MongoSubmissionRepository) UpdateStatuses(ctx context.Context, t termdomain.Term, studentID string, statuses map[string]domain.DocumentStatus) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	set := bson.M{"updatedAt": time.Now()}
	for reqID, ds := range statuses {
		set["documentStatuses."+reqID] = ds
	}

	res, err := r.coll(t).UpdateOne(ctx, bson.M{"studentId": studentID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update statuses: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// ReplaceUpload swaps the file list and status of one requirement.
func (r *MongoSubmissionRepository) ReplaceUpload(ctx context.Context, t termdomain.Term, studentID string, up domain.Upload, ds domain.DocumentStatus) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := time.Now()
	res, err := r.coll(t).UpdateOne(ctx,
		bson.M{"studentId": studentID, "uploads.requirementId": up.RequirementID},
		bson.M{"$set": bson.M{
			"uploads.$.files":                      up.Files,
			"documentStatuses." + up.RequirementID: ds,
			"updatedAt":                            now,
		}},
	)
	if err != nil {
		return fmt.Errorf("replace upload: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// The requirement had no upload entry yet; append one.
	res, err = r.coll(t).UpdateOne(ctx,
		bson.M{"studentId": studentID},
		bson.M{
			"$push": bson.M{"uploads": up},
			"$set": bson.M{
				"documentStatuses." + up.RequirementID: ds,
				"updatedAt":                            now,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("append upload: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// Delete removes the record.
func (r *MongoSubmissionRepository) Delete(ctx context.Context, t termdomain.Term, studentID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll(t).DeleteOne(ctx, bson.M{"studentId": studentID})
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// Watch streams the record via a change stream whenever it is updated. The
// channel closes when ctx is done or the stream breaks.
func (r *MongoSubmissionRepository) Watch(ctx context.Context, t termdomain.Term, studentID string) (<-chan domain.Record, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"fullDocument.studentId": studentID}}},
	}
	stream, err := r.coll(t).Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", err)
	}

	out := make(chan domain.Record)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var event struct {
				FullDocument domain.Record `bson:"fullDocument"`
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

// MongoUserRepository stores applicant profiles in the users collection.
type MongoUserRepository struct {
	db        *mongo.Database
	opTimeout time.Duration
}

// NewMongoUserRepository builds the repository.
func NewMongoUserRepository(db *mongo.Database, opTimeout time.Duration) *MongoUserRepository {
	return &MongoUserRepository{db: db, opTimeout: opTimeout}
}

func (r *MongoUserRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout > 0 {
		return context.WithTimeout(ctx, r.opTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *MongoUserRepository) coll() *mongo.Collection {
	return r.db.Collection(usersCollection)
}

// Get loads the profile, returning an empty one for a first-time student.
func (r *MongoUserRepository) Get(ctx context.Context, studentID string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var u domain.User
	err := r.coll().FindOne(ctx, bson.M{"studentId": studentID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &domain.User{StudentID: studentID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// SaveDrafts replaces the staged uploads on the profile.
func (r *MongoUserRepository) SaveDrafts(ctx context.Context, studentID string, drafts map[string][]domain.File) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.coll().UpdateOne(ctx,
		bson.M{"studentId": studentID},
		bson.M{"$set": bson.M{"uploads": drafts}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save drafts: %w", err)
	}
	return nil
}

// MarkSubmitted flips the submission flags, indexes the term and clears the
// drafts in one update.
func (r *MongoUserRepository) MarkSubmitted(ctx context.Context, studentID, termKey string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.coll().UpdateOne(ctx,
		bson.M{"studentId": studentID},
		bson.M{
			"$set": bson.M{
				"hasSubmittedDocuments": true,
				"lastSubmissionTerm":    termKey,
			},
			"$addToSet": bson.M{"knownTerms": termKey},
			"$unset":    bson.M{"uploads": ""},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	return nil
}

// ClearSubmission reverts the submission flags after a reset. The
// known-terms index keeps the term so old records stay findable.
func (r *MongoUserRepository) ClearSubmission(ctx context.Context, studentID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.coll().UpdateOne(ctx,
		bson.M{"studentId": studentID},
		bson.M{
			"$set":   bson.M{"hasSubmittedDocuments": false},
			"$unset": bson.M{"lastSubmissionTerm": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("clear submission flags: %w", err)
	}
	return nil
}

// KnownTerms returns the term keys the student has submitted under.
func (r *MongoUserRepository) KnownTerms(ctx context.Context, studentID string) ([]string, error) {
	u, err := r.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return u.KnownTerms, nil
}
