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

const planCollectionName = "plans"

// mongoPlanRepository implements repository.PlanRepository
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new plan repository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

// Create inserts a new plan record at version 1.
func (r *mongoPlanRepository) Create(ctx context.Context, plan *domain.PlanRecord) (primitive.ObjectID, error) {
	if plan.UserID == primitive.NilObjectID || plan.Title == "" {
		return primitive.NilObjectID, errors.New("plan requires userId and title")
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	plan.Version = 1

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single plan record by its ID.
func (r *mongoPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanRecord, error) {
	var plan domain.PlanRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// ListByUser retrieves all plans of a user, newest first.
func (r *mongoPlanRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanRecord, error) {
	plans := []domain.PlanRecord{}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

// GetActive returns the user's active plan, the most recently activated one if
// a concurrent activation ever left two flagged.
func (r *mongoPlanRepository) GetActive(ctx context.Context, userID primitive.ObjectID) (*domain.PlanRecord, error) {
	var plan domain.PlanRecord
	filter := bson.M{"userId": userID, "isActive": true}
	findOptions := options.FindOne().SetSort(bson.D{{Key: "activeAt", Value: -1}, {Key: "createdAt", Value: -1}})

	err := r.collection.FindOne(ctx, filter, findOptions).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// Update writes the plan document and metadata guarded by the version the caller read.
func (r *mongoPlanRepository) Update(ctx context.Context, plan *domain.PlanRecord, expectedVersion int64) (int64, error) {
	if plan == nil || plan.ID == primitive.NilObjectID {
		return 0, errors.New("plan ID is required for update")
	}
	id := plan.ID

	filter := bson.M{"_id": id, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{
			"data":          plan.Data,
			"title":         plan.Title,
			"description":   plan.Description,
			"distanceLabel": plan.DistanceLabel,
			"startDate":     plan.StartDate,
			"updatedAt":     time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	if result.MatchedCount == 0 {
		// Either the plan is gone or someone else wrote first.
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, repository.ErrNotFound
		}
		return 0, repository.ErrConflict
	}
	return expectedVersion + 1, nil
}

// Activate flags planID as the user's active plan and clears the flag on the others.
func (r *mongoPlanRepository) Activate(ctx context.Context, userID, planID primitive.ObjectID) error {
	now := time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": planID, "userId": userID},
		bson.M{"$set": bson.M{"isActive": true, "activeAt": now, "updatedAt": now}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}

	filter := bson.M{
		"userId":   userID,
		"isActive": true,
		"_id":      bson.M{"$ne": planID}, // Don't deactivate the plan we just activated
	}
	_, err = r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"isActive": false, "updatedAt": now}})
	return err
}

// EnsurePlanIndexes creates necessary indexes. Call during startup.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			// Finding the active plan of a user
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "isActive", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
