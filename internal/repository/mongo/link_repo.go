package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const linkCollectionName = "session_links"

type mongoLinkRepository struct {
	collection *mongo.Collection
}

// NewMongoLinkRepository creates a new session link repository.
func NewMongoLinkRepository(db *mongo.Database) repository.LinkRepository {
	return &mongoLinkRepository{
		collection: db.Collection(linkCollectionName),
	}
}

// Upsert points the link's session at its activity. The activity is first
// detached from any other session, then the session's link is created or
// repointed in one atomic FindOneAndUpdate.
func (r *mongoLinkRepository) Upsert(ctx context.Context, link *domain.SessionLink) (*domain.SessionLink, error) {
	if link.PlanID == primitive.NilObjectID || link.SessionDate == "" || link.SessionType == "" {
		return nil, errors.New("link requires planId, sessionDate and sessionType")
	}

	sameSession := bson.M{
		"planId":      link.PlanID,
		"sessionDate": link.SessionDate,
		"sessionType": link.SessionType,
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{
		"activityId": link.ActivityID,
		"$nor":       bson.A{sameSession},
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"userId":     link.UserID,
			"activityId": link.ActivityID,
			"matchScore": link.MatchScore,
			"source":     link.Source,
			"updatedAt":  now,
		},
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID(),
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved domain.SessionLink
	err = r.collection.FindOneAndUpdate(ctx, sameSession, update, opts).Decode(&saved)
	if err != nil {
		// Lost a race against another writer on one of the unique indexes.
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return &saved, nil
}

// ListByPlan returns the links of a plan ordered by session date.
func (r *mongoLinkRepository) ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.SessionLink, error) {
	links := []domain.SessionLink{}
	findOptions := options.Find().SetSort(bson.D{{Key: "sessionDate", Value: 1}, {Key: "sessionType", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"planId": planID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &links); err != nil {
		return nil, err
	}
	return links, cursor.Err()
}

// DeleteBySession removes the link of one session.
func (r *mongoLinkRepository) DeleteBySession(ctx context.Context, planID primitive.ObjectID, key planner.SessionKey) error {
	filter := bson.M{"planId": planID, "sessionDate": key.Date, "sessionType": key.Type}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByActivity removes the link of one activity within a plan.
func (r *mongoLinkRepository) DeleteByActivity(ctx context.Context, planID primitive.ObjectID, activityID int64) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"planId": planID, "activityId": activityID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureLinkIndexes creates the unique indexes links rely on.
func EnsureLinkIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "sessionDate", Value: 1}, {Key: "sessionType", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "activityId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
