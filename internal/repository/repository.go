package repository

import (
	"context"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/planner"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
	// ErrConflict covers unique-index violations and stale optimistic writes.
	ErrConflict = RepositoryError("conflict")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	SetStravaAthleteID(ctx context.Context, id primitive.ObjectID, athleteID int64) error
}

// PlanRepository stores plan records.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.PlanRecord) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanRecord, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanRecord, error)
	GetActive(ctx context.Context, userID primitive.ObjectID) (*domain.PlanRecord, error)
	// Update writes the plan document and its editable metadata (title,
	// description, distance label, start date) only if the stored version still
	// equals expectedVersion, and returns the new version. A stale version
	// yields ErrConflict.
	Update(ctx context.Context, plan *domain.PlanRecord, expectedVersion int64) (int64, error)
	// Activate marks one plan active and deactivates every other plan of the user.
	Activate(ctx context.Context, userID, planID primitive.ObjectID) error
}

// LinkRepository stores session-activity links.
type LinkRepository interface {
	// Upsert links the session key of link to its activity. An existing link for the
	// same session is repointed; a link elsewhere for the same activity is removed.
	Upsert(ctx context.Context, link *domain.SessionLink) (*domain.SessionLink, error)
	ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.SessionLink, error)
	DeleteBySession(ctx context.Context, planID primitive.ObjectID, key planner.SessionKey) error
	DeleteByActivity(ctx context.Context, planID primitive.ObjectID, activityID int64) error
}

// ActivityRepository stores recorded runs.
type ActivityRepository interface {
	// Upsert inserts or replaces activities by id and returns how many were written.
	Upsert(ctx context.Context, activities []domain.Activity) (int, error)
	GetByID(ctx context.Context, userID primitive.ObjectID, id int64) (*domain.Activity, error)
	// ListByUserRange returns activities with from <= date <= to; empty bounds are open.
	ListByUserRange(ctx context.Context, userID primitive.ObjectID, from, to string) ([]domain.Activity, error)
}

// SettingsRepository stores per-user preferences.
type SettingsRepository interface {
	Get(ctx context.Context, userID primitive.ObjectID) (*domain.Settings, error)
	Save(ctx context.Context, settings *domain.Settings) error
}
