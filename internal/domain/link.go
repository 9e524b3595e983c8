package domain

import (
	"time"

	"alcyxob/run-planner/internal/planner"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LinkSource distinguishes links a user made from links the auto-matcher made.
type LinkSource string

const (
	LinkSourceManual LinkSource = "manual"
	LinkSourceAuto   LinkSource = "auto"
)

// SessionLink associates a scheduled session of a plan with a recorded activity.
// At most one link exists per (plan, session date, session type) and per activity.
type SessionLink struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	PlanID      primitive.ObjectID  `bson:"planId" json:"planId"`
	UserID      primitive.ObjectID  `bson:"userId" json:"userId"`
	SessionDate string              `bson:"sessionDate" json:"session_date"`
	SessionType planner.SessionType `bson:"sessionType" json:"session_type"`
	ActivityID  int64               `bson:"activityId" json:"activity_id"`
	MatchScore  *float64            `bson:"matchScore,omitempty" json:"match_score,omitempty"`
	Source      LinkSource          `bson:"source" json:"source"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// SessionKey returns the session this link points at.
func (l *SessionLink) SessionKey() planner.SessionKey {
	return planner.SessionKey{Date: l.SessionDate, Type: l.SessionType}
}
