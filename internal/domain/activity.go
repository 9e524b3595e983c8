package domain

import (
	"time"

	"alcyxob/run-planner/internal/planner"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivitySource tells where an activity was recorded.
type ActivitySource string

const (
	ActivitySourceStrava ActivitySource = "strava"
	ActivitySourceManual ActivitySource = "manual"
)

// Activity is a recorded run. ID is the provider's activity id.
type Activity struct {
	ID               int64              `bson:"_id" json:"id"`
	UserID           primitive.ObjectID `bson:"userId" json:"userId"`
	Name             string             `bson:"name,omitempty" json:"name,omitempty"`
	Date             string             `bson:"date" json:"date"` // YYYY-MM-DD, local to the athlete
	StartTime        *time.Time         `bson:"startTime,omitempty" json:"startTime,omitempty"`
	DistanceKM       float64            `bson:"distanceKm" json:"distance_km"`
	DurationMin      float64            `bson:"durationMin" json:"duration_min"`
	PaceMinPerKM     *float64           `bson:"paceMinPerKm,omitempty" json:"pace_min_per_km,omitempty"`
	AverageHeartrate *float64           `bson:"averageHeartrate,omitempty" json:"average_heartrate,omitempty"`
	MaxHeartrate     *float64           `bson:"maxHeartrate,omitempty" json:"max_heartrate,omitempty"`
	ElevationGainM   *float64           `bson:"elevationGainM,omitempty" json:"elevation_gain_m,omitempty"`
	Calories         *float64           `bson:"calories,omitempty" json:"calories,omitempty"`
	Source           ActivitySource     `bson:"source" json:"source"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ToPlanner converts the activity into the shape the matcher scores.
// A missing pace is derived from duration and distance.
func (a *Activity) ToPlanner() planner.Activity {
	pace := a.PaceMinPerKM
	if pace == nil {
		pace = planner.DerivePace(a.DistanceKM, a.DurationMin)
	}
	return planner.Activity{
		ID:           a.ID,
		Date:         a.Date,
		DistanceKM:   a.DistanceKM,
		DurationMin:  a.DurationMin,
		PaceMinPerKM: pace,
	}
}
