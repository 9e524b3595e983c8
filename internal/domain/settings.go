package domain

import (
	"time"

	"alcyxob/run-planner/internal/planner"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Settings holds per-user scheduling preferences.
type Settings struct {
	UserID    primitive.ObjectID `bson:"_id" json:"userId"`
	DayMap    planner.DayMap     `bson:"dayMap" json:"dayMap"` // session type -> weekday, 0=Monday
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
