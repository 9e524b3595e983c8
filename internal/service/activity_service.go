package service

import (
	"context"
	"fmt"
	"time"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/metrics"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/repository"
	"alcyxob/run-planner/internal/strava"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RunSource lists recorded runs from an external provider.
type RunSource interface {
	ListRuns(ctx context.Context, after time.Time) ([]strava.SummaryActivity, error)
}

type ActivityService interface {
	// Ingest stores a batch of runs for the user, replacing runs with the same id.
	Ingest(ctx context.Context, userID primitive.ObjectID, activities []domain.Activity) (int, error)
	List(ctx context.Context, userID primitive.ObjectID, from, to string) ([]domain.Activity, error)
	// Summary aggregates the weekly volume of the recent weeks.
	Summary(ctx context.Context, userID primitive.ObjectID) (planner.VolumeSummary, error)
	// SyncStrava pulls runs started after the given time; a zero time means
	// the start of the summary window.
	SyncStrava(ctx context.Context, userID primitive.ObjectID, after time.Time) (int, error)
}

type ActivityServiceOption func(*activityService)

// WithRunSource enables SyncStrava.
func WithRunSource(src RunSource) ActivityServiceOption {
	return func(s *activityService) {
		s.source = src
	}
}

func WithActivityClock(now func() time.Time) ActivityServiceOption {
	return func(s *activityService) {
		s.now = now
	}
}

type activityService struct {
	repo         repository.ActivityRepository
	source       RunSource
	summaryWeeks int
	now          func() time.Time
}

func NewActivityService(repo repository.ActivityRepository, summaryWeeks int, opts ...ActivityServiceOption) ActivityService {
	s := &activityService{
		repo:         repo,
		summaryWeeks: summaryWeeks,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.summaryWeeks <= 0 {
		s.summaryWeeks = 8
	}
	return s
}

func (s *activityService) Ingest(ctx context.Context, userID primitive.ObjectID, activities []domain.Activity) (int, error) {
	if len(activities) == 0 {
		return 0, nil
	}
	now := s.now()
	batch := make([]domain.Activity, 0, len(activities))
	for i, a := range activities {
		if a.ID <= 0 {
			return 0, fmt.Errorf("%w: activities[%d]: id is required", ErrInvalidInput, i)
		}
		if _, err := planner.ParseDate(a.Date); err != nil {
			return 0, fmt.Errorf("%w: activities[%d]: %v", ErrInvalidInput, i, err)
		}
		if a.DistanceKM < 0 || a.DurationMin < 0 {
			return 0, fmt.Errorf("%w: activities[%d]: distance and duration must not be negative", ErrInvalidInput, i)
		}
		a.UserID = userID
		if a.Source == "" {
			a.Source = domain.ActivitySourceManual
		}
		if a.PaceMinPerKM == nil {
			a.PaceMinPerKM = planner.DerivePace(a.DistanceKM, a.DurationMin)
		}
		a.UpdatedAt = now
		batch = append(batch, a)
	}
	return s.store(ctx, userID, batch, string(domain.ActivitySourceManual))
}

func (s *activityService) store(ctx context.Context, userID primitive.ObjectID, batch []domain.Activity, source string) (int, error) {
	n, err := s.repo.Upsert(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("store activities: %w", err)
	}
	metrics.RecordActivitiesIngested(source, n)
	logrus.WithFields(logrus.Fields{"user_id": userID.Hex(), "count": n, "source": source}).Info("activities stored")
	return n, nil
}

func (s *activityService) List(ctx context.Context, userID primitive.ObjectID, from, to string) ([]domain.Activity, error) {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := planner.ParseDate(d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return s.repo.ListByUserRange(ctx, userID, from, to)
}

func (s *activityService) Summary(ctx context.Context, userID primitive.ObjectID) (planner.VolumeSummary, error) {
	from := planner.FormatDate(planner.MondayOf(s.now()).AddDate(0, 0, -7*(s.summaryWeeks-1)))
	acts, err := s.repo.ListByUserRange(ctx, userID, from, "")
	if err != nil {
		return planner.VolumeSummary{}, err
	}
	return planner.SummarizeWeeks(toPlanner(acts)), nil
}

func (s *activityService) SyncStrava(ctx context.Context, userID primitive.ObjectID, after time.Time) (int, error) {
	if s.source == nil {
		return 0, ErrStravaDisabled
	}
	if after.IsZero() {
		after = s.now().AddDate(0, 0, -7*s.summaryWeeks)
	}

	runs, err := s.source.ListRuns(ctx, after)
	if err != nil {
		return 0, fmt.Errorf("list strava runs: %w", err)
	}

	now := s.now()
	batch := make([]domain.Activity, 0, len(runs))
	for _, r := range runs {
		a, ok := fromStrava(r)
		if !ok {
			logrus.WithField("strava_id", r.ID).Debug("skipping strava run without a start date")
			continue
		}
		a.UserID = userID
		a.UpdatedAt = now
		batch = append(batch, a)
	}
	if len(batch) == 0 {
		metrics.RecordActivitySynced(now)
		return 0, nil
	}

	n, err := s.store(ctx, userID, batch, string(domain.ActivitySourceStrava))
	if err != nil {
		return 0, err
	}
	metrics.RecordActivitySynced(now)
	return n, nil
}

// fromStrava converts metres and seconds into the stored kilometre/minute shape.
func fromStrava(r strava.SummaryActivity) (domain.Activity, bool) {
	date := r.LocalDate()
	if _, err := planner.ParseDate(date); err != nil {
		return domain.Activity{}, false
	}
	a := domain.Activity{
		ID:               r.ID,
		Name:             r.Name,
		Date:             date,
		DistanceKM:       r.Distance / 1000,
		DurationMin:      r.MovingTime / 60,
		AverageHeartrate: r.AverageHeartrate,
		MaxHeartrate:     r.MaxHeartrate,
		Calories:         r.Calories,
		Source:           domain.ActivitySourceStrava,
	}
	a.PaceMinPerKM = planner.DerivePace(a.DistanceKM, a.DurationMin)
	if r.TotalElevationGain > 0 {
		a.ElevationGainM = planner.Float(r.TotalElevationGain)
	}
	if ts, ok := r.StartTime(); ok {
		a.StartTime = &ts
	}
	return a, true
}
