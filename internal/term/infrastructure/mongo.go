// Package infrastructure persists the service configuration singleton.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/slpk/loandocs/internal/term/domain"
)

const (
	configCollection = "service_config"
	configDocID      = "document_service"
)

// MongoConfigRepository stores the configuration singleton under a fixed id.
type MongoConfigRepository struct {
	db        *mongo.Database
	opTimeout time.Duration
}

// NewMongoConfigRepository builds the repository.
func NewMongoConfigRepository(db *mongo.Database, opTimeout time.Duration) *MongoConfigRepository {
	return &MongoConfigRepository{db: db, opTimeout: opTimeout}
}

func (r *MongoConfigRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout > 0 {
		return context.WithTimeout(ctx, r.opTimeout)
	}
	return context.WithCancel(ctx)
}

// Get loads the singleton.
func (r *MongoConfigRepository) Get(ctx context.Context) (*domain.Config, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var cfg domain.Config
	err := r.db.Collection(configCollection).FindOne(ctx, bson.M{"_id": configDocID}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find service config: %w", err)
	}
	return &cfg, nil
}

// Save upserts the singleton.
func (r *MongoConfigRepository) Save(ctx context.Context, cfg domain.Config) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cfg.UpdatedAt = time.Now()
	_, err := r.db.Collection(configCollection).ReplaceOne(ctx,
		bson.M{"_id": configDocID},
		cfg,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save service config: %w", err)
	}
	return nil
}
