package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/repository"
	"alcyxob/run-planner/internal/strava"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxPushWorkouts bounds a single push to Strava.
const MaxPushWorkouts = 50

const (
	pushStartTime      = "T07:00:00"
	defaultWorkoutSecs = 3600
)

// StravaAccount is the write side of the Strava API plus the token check.
type StravaAccount interface {
	Athlete(ctx context.Context) (*strava.Athlete, error)
	CreateActivity(ctx context.Context, a strava.NewActivity) (int64, error)
}

// StravaHealth reports whether the configured token is accepted.
type StravaHealth struct {
	OK        bool   `json:"ok"`
	AthleteID int64  `json:"athleteId,omitempty"`
	Name      string `json:"name,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PushedWorkout is one planned session created on Strava.
type PushedWorkout struct {
	SessionDate string              `json:"sessionDate"`
	SessionType planner.SessionType `json:"sessionType"`
	ActivityID  int64               `json:"activityId"`
}

type StravaService interface {
	// Health checks the token against the athlete endpoint and, when it is
	// accepted, records the athlete id on the caller's account.
	Health(ctx context.Context, userID primitive.ObjectID) (*StravaHealth, error)
	// PushPlan creates private Workout activities for the next planned
	// sessions of a plan (the active one when planID is nil), from today on.
	PushPlan(ctx context.Context, userID, planID primitive.ObjectID, limit int) ([]PushedWorkout, error)
}

type stravaService struct {
	account StravaAccount
	users   repository.UserRepository
	plans   PlanService
	now     func() time.Time
}

type StravaServiceOption func(*stravaService)

func WithStravaClock(now func() time.Time) StravaServiceOption {
	return func(s *stravaService) {
		s.now = now
	}
}

// NewStravaService builds the service; a nil account makes every call return
// ErrStravaDisabled.
func NewStravaService(account StravaAccount, users repository.UserRepository, plans PlanService, opts ...StravaServiceOption) StravaService {
	s := &stravaService{
		account: account,
		users:   users,
		plans:   plans,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *stravaService) Health(ctx context.Context, userID primitive.ObjectID) (*StravaHealth, error) {
	if s.account == nil {
		return nil, ErrStravaDisabled
	}
	athlete, err := s.account.Athlete(ctx)
	if err != nil {
		logrus.WithError(err).Warn("strava health check failed")
		return &StravaHealth{OK: false, Error: err.Error()}, nil
	}

	if err := s.users.SetStravaAthleteID(ctx, userID, athlete.ID); err != nil {
		return nil, fmt.Errorf("record strava athlete: %w", err)
	}
	return &StravaHealth{
		OK:        true,
		AthleteID: athlete.ID,
		Name:      athlete.Firstname + " " + athlete.Lastname,
	}, nil
}

func (s *stravaService) PushPlan(ctx context.Context, userID, planID primitive.ObjectID, limit int) ([]PushedWorkout, error) {
	if s.account == nil {
		return nil, ErrStravaDisabled
	}
	switch {
	case limit == 0:
		limit = MaxPushWorkouts
	case limit < 0 || limit > MaxPushWorkouts:
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxPushWorkouts)
	}

	_, schedule, err := s.plans.PlanWithSchedule(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	today := planner.FormatDate(s.now())
	pushed := make([]PushedWorkout, 0, limit)
	for _, entry := range schedule {
		if len(pushed) == limit {
			break
		}
		if entry.Date < today {
			continue
		}
		id, err := s.account.CreateActivity(ctx, toStravaWorkout(entry))
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"plan_id": planID.Hex(),
				"pushed":  len(pushed),
			}).Error("strava push stopped")
			return nil, fmt.Errorf("push %s %s: %w", entry.Date, entry.Type, err)
		}
		pushed = append(pushed, PushedWorkout{SessionDate: entry.Date, SessionType: entry.Type, ActivityID: id})
	}

	logrus.WithFields(logrus.Fields{"user_id": userID.Hex(), "pushed": len(pushed)}).Info("plan pushed to strava")
	return pushed, nil
}

func toStravaWorkout(entry planner.ScheduledSession) strava.NewActivity {
	name := entry.Title
	if name == "" {
		name = string(entry.Type)
	}
	desc := entry.Description
	if desc == "" {
		desc = "Planned workout"
	}
	a := strava.NewActivity{
		Name:           name,
		Type:           "Workout",
		StartDateLocal: entry.Date + pushStartTime,
		ElapsedTime:    workoutSeconds(entry),
		Description:    desc,
		Private:        true,
	}
	if entry.DistanceKM != nil {
		a.Distance = *entry.DistanceKM * 1000
	}
	return a
}

// workoutSeconds estimates the session length: the planned duration, else
// distance at the planned pace, else an hour.
func workoutSeconds(entry planner.ScheduledSession) int {
	if entry.DurationMin != nil && *entry.DurationMin > 0 {
		return int(math.Round(*entry.DurationMin * 60))
	}
	if pace, ok := entry.PaceMinPerKM.Minutes(); ok && entry.DistanceKM != nil && *entry.DistanceKM > 0 {
		return int(math.Round(pace * *entry.DistanceKM * 60))
	}
	return defaultWorkoutSecs
}
