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

const activityCollectionName = "activities"

type mongoActivityRepository struct {
	collection *mongo.Collection
}

// NewMongoActivityRepository creates a new activity repository.
func NewMongoActivityRepository(db *mongo.Database) repository.ActivityRepository {
	return &mongoActivityRepository{
		collection: db.Collection(activityCollectionName),
	}
}

// Upsert replaces each activity by id in a single unordered bulk write.
func (r *mongoActivityRepository) Upsert(ctx context.Context, activities []domain.Activity) (int, error) {
	if len(activities) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(activities))
	for i := range activities {
		a := activities[i]
		if a.UserID == primitive.NilObjectID || a.Date == "" {
			return 0, errors.New("activity requires userId and date")
		}
		a.UpdatedAt = now
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": a.ID, "userId": a.UserID}).
			SetReplacement(a).
			SetUpsert(true))
	}

	result, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		// An id owned by another user collides on _id.
		if mongo.IsDuplicateKeyError(err) {
			return 0, repository.ErrConflict
		}
		return 0, err
	}
	return int(result.MatchedCount + result.UpsertedCount), nil
}

// GetByID retrieves one activity of a user.
func (r *mongoActivityRepository) GetByID(ctx context.Context, userID primitive.ObjectID, id int64) (*domain.Activity, error) {
	var activity domain.Activity
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&activity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &activity, nil
}

// ListByUserRange lists a user's activities by date ascending.
func (r *mongoActivityRepository) ListByUserRange(ctx context.Context, userID primitive.ObjectID, from, to string) ([]domain.Activity, error) {
	filter := bson.M{"userId": userID}
	dateRange := bson.M{}
	if from != "" {
		dateRange["$gte"] = from
	}
	if to != "" {
		dateRange["$lte"] = to
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}

	activities := []domain.Activity{}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "startTime", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	return activities, cursor.Err()
}

// EnsureActivityIndexes creates necessary indexes for the activities collection.
func EnsureActivityIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
