package domain

import (
	"time"

	"alcyxob/run-planner/internal/planner"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanSource records where a stored plan document came from.
type PlanSource string

const (
	PlanSourceGenerated PlanSource = "generated" // Built by the plan generator
	PlanSourceImported  PlanSource = "imported"  // Supplied by an external generator
)

// PlanRecord is a stored training plan owned by one user.
// Only one plan per user is active at a time; older plans are deactivated, never deleted.
type PlanRecord struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID   `bson:"userId" json:"userId"`
	Title         string               `bson:"title" json:"title"`                                       // e.g., "Half Marathon 2025-03-09"
	Description   string               `bson:"description,omitempty" json:"description,omitempty"`
	DistanceLabel string               `bson:"distanceLabel,omitempty" json:"distanceLabel,omitempty"` // e.g., "21.1 km"
	StartDate     string               `bson:"startDate" json:"startDate"`                               // YYYY-MM-DD, schedule anchor
	IsActive      bool                 `bson:"isActive" json:"isActive"`
	ActiveAt      *time.Time           `bson:"activeAt,omitempty" json:"activeAt,omitempty"`
	Source        PlanSource           `bson:"source" json:"source"`
	Data          planner.PlanDocument `bson:"data" json:"data"`

	// Version is bumped on every write; updates carry the version they read.
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
