package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const settingsCollectionName = "settings"

type mongoSettingsRepository struct {
	collection *mongo.Collection
}

// NewMongoSettingsRepository creates a new settings repository. Documents are
// keyed by user id.
func NewMongoSettingsRepository(db *mongo.Database) repository.SettingsRepository {
	return &mongoSettingsRepository{
		collection: db.Collection(settingsCollectionName),
	}
}

func (r *mongoSettingsRepository) Get(ctx context.Context, userID primitive.ObjectID) (*domain.Settings, error) {
	var settings domain.Settings
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&settings)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

func (r *mongoSettingsRepository) Save(ctx context.Context, settings *domain.Settings) error {
	if settings.UserID == primitive.NilObjectID {
		return errors.New("settings require a userId")
	}
	settings.UpdatedAt = time.Now().UTC()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": settings.UserID}, settings, options.Replace().SetUpsert(true))
	return err
}
