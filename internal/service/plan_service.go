package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path"
	"reflect"
	"strconv"
	"strings"
	"time"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/metrics"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/repository"
	"alcyxob/run-planner/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeneratePlanInput is what a user supplies to build a new plan.
type GeneratePlanInput struct {
	Title         string
	StartDate     string // defaults to today
	RaceDate      string
	DistanceKM    float64
	SeedAvgKM     *float64 // defaults to the recent weekly average, if any runs are stored
	WeeklyDays    *int
	TargetTimeMin *float64
	Units         planner.Units
}

// ImportPlanInput carries a plan produced by an external generator.
type ImportPlanInput struct {
	Title       string
	Description string
	StartDate   string // defaults to the first week's start
	Plan        planner.PlanDocument
}

// UpdatePlanInput lists the editable parts of a stored plan; nil fields are
// left alone. Version, when set, must match the stored version.
type UpdatePlanInput struct {
	Title         *string
	Description   *string
	DistanceLabel *string
	StartDate     *string
	RaceDate      *string
	Plan          *planner.PlanDocument
	Version       *int64
}

func (in UpdatePlanInput) empty() bool {
	return in.Title == nil && in.Description == nil && in.DistanceLabel == nil &&
		in.StartDate == nil && in.RaceDate == nil && in.Plan == nil
}

// ReflowOutcome is the stored plan after a reflow plus what the reflow did.
type ReflowOutcome struct {
	Plan        *domain.PlanRecord
	CarriedFrom string
	CarriedTo   string
	Dropped     bool
	Demoted     int
}

// PlanExport points at an uploaded JSON copy of a plan.
type PlanExport struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PlanService interface {
	Generate(ctx context.Context, userID primitive.ObjectID, in GeneratePlanInput) (*domain.PlanRecord, error)
	Import(ctx context.Context, userID primitive.ObjectID, in ImportPlanInput) (*domain.PlanRecord, error)
	List(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanRecord, error)
	Get(ctx context.Context, userID, planID primitive.ObjectID) (*domain.PlanRecord, error)
	GetActive(ctx context.Context, userID primitive.ObjectID) (*domain.PlanRecord, error)
	Activate(ctx context.Context, userID, planID primitive.ObjectID) (*domain.PlanRecord, error)
	// Update edits a stored plan: metadata, race date and, when Plan is set, the
	// whole document. The embedded schedule is dropped whenever the weeks or
	// the dates it was built from change.
	Update(ctx context.Context, userID, planID primitive.ObjectID, in UpdatePlanInput) (*domain.PlanRecord, error)

	Reflow(ctx context.Context, userID, planID primitive.ObjectID, missedDate string) (*ReflowOutcome, error)
	MarkSessionDone(ctx context.Context, userID, planID primitive.ObjectID, sessionID string) (*domain.PlanRecord, error)
	AddHolidays(ctx context.Context, userID, planID primitive.ObjectID, dates []string) (*domain.PlanRecord, error)

	// Schedule resolves the dated schedule of a plan; endDate defaults to the race date.
	Schedule(ctx context.Context, userID, planID primitive.ObjectID, endDate string) ([]planner.ScheduledSession, error)
	// PlanWithSchedule loads a plan (the active one when planID is nil) with its schedule.
	PlanWithSchedule(ctx context.Context, userID, planID primitive.ObjectID) (*domain.PlanRecord, []planner.ScheduledSession, error)
	RebuildSchedule(ctx context.Context, userID, planID primitive.ObjectID, endDate string) (*domain.PlanRecord, error)
	MoveSession(ctx context.Context, userID, planID primitive.ObjectID, fromDate string, typ planner.SessionType, toDate string) (*domain.PlanRecord, error)

	Export(ctx context.Context, userID, planID primitive.ObjectID) (*PlanExport, error)
}

type PlanServiceOption func(*planService)

// WithPlanStorage enables plan exports to object storage.
func WithPlanStorage(store storage.FileStorage, prefix string, urlExpiry time.Duration) PlanServiceOption {
	return func(s *planService) {
		s.store = store
		s.exportPrefix = prefix
		s.urlExpiry = urlExpiry
	}
}

// WithPlanClock overrides the service clock.
func WithPlanClock(now func() time.Time) PlanServiceOption {
	return func(s *planService) {
		s.now = now
	}
}

type planService struct {
	plans        repository.PlanRepository
	activities   repository.ActivityRepository
	settings     SettingsService
	engine       *planner.Planner
	summaryWeeks int

	store        storage.FileStorage
	exportPrefix string
	urlExpiry    time.Duration

	now func() time.Time
}

// NewPlanService creates a PlanService. summaryWeeks is how far back stored
// activities are averaged when a plan is generated without a seed volume.
func NewPlanService(
	plans repository.PlanRepository,
	activities repository.ActivityRepository,
	settings SettingsService,
	engine *planner.Planner,
	summaryWeeks int,
	opts ...PlanServiceOption,
) PlanService {
	s := &planService{
		plans:        plans,
		activities:   activities,
		settings:     settings,
		engine:       engine,
		summaryWeeks: summaryWeeks,
		urlExpiry:    storage.DefaultPresignedURLExpiry,
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

// Generate builds a plan, stores it and makes it the user's active plan.
func (s *planService) Generate(ctx context.Context, userID primitive.ObjectID, in GeneratePlanInput) (*domain.PlanRecord, error) {
	if in.StartDate == "" {
		in.StartDate = planner.FormatDate(s.now())
	}

	seed := in.SeedAvgKM
	if seed == nil {
		avg, err := s.recentWeeklyAverage(ctx, userID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID.Hex()).Warn("could not derive seed volume, using default")
		} else if avg > 0 {
			seed = planner.Float(avg)
		}
	}

	doc, err := s.engine.Generate(planner.PlanParams{
		StartDate:     in.StartDate,
		RaceDate:      in.RaceDate,
		DistanceKM:    in.DistanceKM,
		SeedAvgKM:     seed,
		WeeklyDays:    in.WeeklyDays,
		TargetTimeMin: in.TargetTimeMin,
		Units:         in.Units,
	})
	if err != nil {
		return nil, err
	}

	label := distanceLabel(in.DistanceKM)
	title := in.Title
	if title == "" {
		title = fmt.Sprintf("%s %s", label, in.RaceDate)
	}
	rec := &domain.PlanRecord{
		UserID:        userID,
		Title:         title,
		DistanceLabel: label,
		StartDate:     doc.Weeks[0].Start,
		Source:        domain.PlanSourceGenerated,
		Data:          *doc,
	}
	return s.saveActive(ctx, rec)
}

// Import stores a plan from an external generator after normalizing and
// validating it.
func (s *planService) Import(ctx context.Context, userID primitive.ObjectID, in ImportPlanInput) (*domain.PlanRecord, error) {
	doc := planner.Normalize(&in.Plan)
	now := s.now()
	if doc.Meta.CreatedAt.IsZero() {
		doc.Meta.CreatedAt = now
	}
	if doc.Meta.UpdatedAt.IsZero() {
		doc.Meta.UpdatedAt = now
	}
	if err := planner.Validate(doc); err != nil {
		return nil, err
	}
	if len(doc.Weeks) == 0 {
		return nil, fmt.Errorf("%w: plan has no weeks", ErrInvalidInput)
	}

	start := in.StartDate
	if start == "" {
		start = doc.Weeks[0].Start
	}
	if start == "" {
		start = planner.FormatDate(now)
	}
	if _, err := planner.ParseDate(start); err != nil {
		return nil, fmt.Errorf("%w: start date: %v", ErrInvalidInput, err)
	}

	title := in.Title
	if title == "" {
		title = fmt.Sprintf("Imported %s %s", distanceLabel(doc.Goal.DistanceKM), doc.Goal.RaceDate)
	}
	rec := &domain.PlanRecord{
		UserID:        userID,
		Title:         title,
		Description:   in.Description,
		DistanceLabel: distanceLabel(doc.Goal.DistanceKM),
		StartDate:     start,
		Source:        domain.PlanSourceImported,
		Data:          *doc,
	}
	return s.saveActive(ctx, rec)
}

func (s *planService) saveActive(ctx context.Context, rec *domain.PlanRecord) (*domain.PlanRecord, error) {
	now := s.now()
	rec.IsActive = true
	rec.ActiveAt = &now

	id, err := s.plans.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	rec.ID = id
	if err := s.plans.Activate(ctx, rec.UserID, id); err != nil {
		return nil, fmt.Errorf("activate plan: %w", err)
	}

	metrics.RecordPlanCreated(string(rec.Source))
	logrus.WithFields(logrus.Fields{
		"user_id": rec.UserID.Hex(),
		"plan_id": id.Hex(),
		"source":  rec.Source,
		"weeks":   len(rec.Data.Weeks),
	}).Info("plan stored")
	return rec, nil
}

func (s *planService) recentWeeklyAverage(ctx context.Context, userID primitive.ObjectID) (float64, error) {
	from := planner.FormatDate(s.now().AddDate(0, 0, -7*s.summaryWeeks))
	acts, err := s.activities.ListByUserRange(ctx, userID, from, "")
	if err != nil {
		return 0, err
	}
	return planner.SummarizeWeeks(toPlanner(acts)).AvgWeekKM, nil
}

func (s *planService) List(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanRecord, error) {
	return s.plans.ListByUser(ctx, userID)
}

// Get loads a plan and checks that userID owns it.
func (s *planService) Get(ctx context.Context, userID, planID primitive.ObjectID) (*domain.PlanRecord, error) {
	rec, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrPlanAccessDenied
	}
	return rec, nil
}

func (s *planService) GetActive(ctx context.Context, userID primitive.ObjectID) (*domain.PlanRecord, error) {
	rec, err := s.plans.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActivePlan
		}
		return nil, err
	}
	return rec, nil
}

func (s *planService) Activate(ctx context.Context, userID, planID primitive.ObjectID) (*domain.PlanRecord, error) {
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return nil, err
	}
	if err := s.plans.Activate(ctx, userID, planID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return s.Get(ctx, userID, planID)
}

// mutate applies fn to the stored document and writes the result back, guarded
// by the version that was read.
func (s *planService) mutate(ctx context.Context, userID, planID primitive.ObjectID, fn func(*domain.PlanRecord) (*planner.PlanDocument, error)) (*domain.PlanRecord, error) {
	return s.mutateRecord(ctx, userID, planID, func(rec *domain.PlanRecord) error {
		next, err := fn(rec)
		if err != nil {
			return err
		}
		rec.Data = *next
		return nil
	})
}

// mutateRecord lets fn edit the loaded record in place, then writes document
// and metadata back under the version that was read.
func (s *planService) mutateRecord(ctx context.Context, userID, planID primitive.ObjectID, fn func(*domain.PlanRecord) error) (*domain.PlanRecord, error) {
	rec, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	read := rec.Version
	if err := fn(rec); err != nil {
		return nil, err
	}

	version, err := s.plans.Update(ctx, rec, read)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			metrics.RecordPlanConflict()
			return nil, ErrPlanConflict
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("update plan: %w", err)
	}
	rec.Version = version
	rec.UpdatedAt = s.now()
	return rec, nil
}

func (s *planService) Update(ctx context.Context, userID, planID primitive.ObjectID, in UpdatePlanInput) (*domain.PlanRecord, error) {
	if in.empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}
	for field, v := range map[string]*string{"start date": in.StartDate, "race date": in.RaceDate} {
		if v == nil {
			continue
		}
		if _, err := planner.ParseDate(*v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, field, err)
		}
	}

	rec, err := s.mutateRecord(ctx, userID, planID, func(rec *domain.PlanRecord) error {
		if in.Version != nil && *in.Version != rec.Version {
			return ErrPlanConflict
		}

		next := rec.Data.Clone()
		dropSchedule := false
		if in.Plan != nil {
			next = planner.Normalize(in.Plan)
			dropSchedule = !reflect.DeepEqual(next.Weeks, rec.Data.Weeks)
			if in.DistanceLabel == nil {
				rec.DistanceLabel = distanceLabel(next.Goal.DistanceKM)
			}
		}
		if in.RaceDate != nil {
			next.Goal.RaceDate = *in.RaceDate
		}
		if next.Goal.RaceDate != rec.Data.Goal.RaceDate {
			dropSchedule = true
		}
		if in.StartDate != nil && *in.StartDate != rec.StartDate {
			rec.StartDate = *in.StartDate
			dropSchedule = true
		}
		if dropSchedule {
			next.Schedule = nil
		}

		next.Meta.CreatedAt = rec.Data.Meta.CreatedAt
		next.Meta.UpdatedAt = s.now()
		if err := planner.Validate(next); err != nil {
			return err
		}
		if len(next.Weeks) == 0 {
			return fmt.Errorf("%w: plan has no weeks", ErrInvalidInput)
		}

		if in.Title != nil {
			rec.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			rec.Description = *in.Description
		}
		if in.DistanceLabel != nil {
			rec.DistanceLabel = *in.DistanceLabel
		}
		rec.Data = *next
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"plan_id":  planID.Hex(),
		"version":  rec.Version,
		"document": in.Plan != nil,
	}).Info("plan updated")
	return rec, nil
}

// Reflow runs the missed-session reflow. The embedded schedule is dropped so
// the next read re-derives it from the reflowed weeks.
func (s *planService) Reflow(ctx context.Context, userID, planID primitive.ObjectID, missedDate string) (*ReflowOutcome, error) {
	var res *planner.ReflowResult
	rec, err := s.mutate(ctx, userID, planID, func(rec *domain.PlanRecord) (*planner.PlanDocument, error) {
		r, err := s.engine.ReflowAfterMissed(&rec.Data, missedDate)
		if err != nil {
			return nil, err
		}
		r.Plan.Schedule = nil
		res = r
		return r.Plan, nil
	})
	if err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"plan_id":     planID.Hex(),
		"missed_date": missedDate,
		"demoted":     res.Demoted,
	})
	outcome := "none"
	switch {
	case res.Dropped:
		outcome = "dropped"
		log.WithField("session_id", res.CarriedFrom).Warn("reflow found no easy slot for the missed quality session")
	case res.CarriedTo != "":
		outcome = "carried"
		log.WithFields(logrus.Fields{"from": res.CarriedFrom, "to": res.CarriedTo}).Info("reflow carried quality session")
	default:
		log.Debug("reflow had nothing to carry")
	}
	metrics.RecordReflow(outcome)

	return &ReflowOutcome{
		Plan:        rec,
		CarriedFrom: res.CarriedFrom,
		CarriedTo:   res.CarriedTo,
		Dropped:     res.Dropped,
		Demoted:     res.Demoted,
	}, nil
}

func (s *planService) MarkSessionDone(ctx context.Context, userID, planID primitive.ObjectID, sessionID string) (*domain.PlanRecord, error) {
	return s.mutate(ctx, userID, planID, func(rec *domain.PlanRecord) (*planner.PlanDocument, error) {
		return s.engine.MarkSessionDone(&rec.Data, sessionID)
	})
}

func (s *planService) AddHolidays(ctx context.Context, userID, planID primitive.ObjectID, dates []string) (*domain.PlanRecord, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: at least one date is required", ErrInvalidInput)
	}
	return s.mutate(ctx, userID, planID, func(rec *domain.PlanRecord) (*planner.PlanDocument, error) {
		return s.engine.AddHoliday(&rec.Data, dates)
	})
}

func (s *planService) Schedule(ctx context.Context, userID, planID primitive.ObjectID, endDate string) ([]planner.ScheduledSession, error) {
	rec, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, rec, endDate)
}

func (s *planService) PlanWithSchedule(ctx context.Context, userID, planID primitive.ObjectID) (*domain.PlanRecord, []planner.ScheduledSession, error) {
	var (
		rec *domain.PlanRecord
		err error
	)
	if planID == primitive.NilObjectID {
		rec, err = s.GetActive(ctx, userID)
	} else {
		rec, err = s.Get(ctx, userID, planID)
	}
	if err != nil {
		return nil, nil, err
	}
	schedule, err := s.resolve(ctx, rec, "")
	if err != nil {
		return nil, nil, err
	}
	return rec, schedule, nil
}

func (s *planService) resolve(ctx context.Context, rec *domain.PlanRecord, endDate string) ([]planner.ScheduledSession, error) {
	dayMap, err := s.settings.GetDayMap(ctx, rec.UserID)
	if err != nil {
		return nil, err
	}
	if endDate == "" {
		endDate = rec.Data.Goal.RaceDate
	}
	return planner.ResolveSchedule(&rec.Data, rec.StartDate, dayMap, endDate)
}

// RebuildSchedule re-derives the schedule from the weeks and embeds it,
// discarding manual moves.
func (s *planService) RebuildSchedule(ctx context.Context, userID, planID primitive.ObjectID, endDate string) (*domain.PlanRecord, error) {
	return s.mutate(ctx, userID, planID, func(rec *domain.PlanRecord) (*planner.PlanDocument, error) {
		dayMap, err := s.settings.GetDayMap(ctx, userID)
		if err != nil {
			return nil, err
		}
		if endDate == "" {
			endDate = rec.Data.Goal.RaceDate
		}
		schedule, err := planner.BuildSchedule(&rec.Data, rec.StartDate, dayMap, endDate)
		if err != nil {
			return nil, err
		}
		next := rec.Data.Clone()
		next.Schedule = schedule
		return next, nil
	})
}

func (s *planService) MoveSession(ctx context.Context, userID, planID primitive.ObjectID, fromDate string, typ planner.SessionType, toDate string) (*domain.PlanRecord, error) {
	return s.mutate(ctx, userID, planID, func(rec *domain.PlanRecord) (*planner.PlanDocument, error) {
		schedule, err := s.resolve(ctx, rec, "")
		if err != nil {
			return nil, err
		}
		return planner.MoveScheduledSession(&rec.Data, schedule, fromDate, typ, toDate)
	})
}

// Export uploads the plan document as JSON and returns a presigned download URL.
func (s *planService) Export(ctx context.Context, userID, planID primitive.ObjectID) (*PlanExport, error) {
	if s.store == nil {
		return nil, ErrExportDisabled
	}
	rec, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	body, err := json.MarshalIndent(rec.Data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	key := path.Join(s.exportPrefix, userID.Hex(), fmt.Sprintf("%s-%s.json", rec.ID.Hex(), uuid.NewString()))
	if err := s.store.PutObject(ctx, key, "application/json", body); err != nil {
		return nil, fmt.Errorf("upload plan export: %w", err)
	}

	url, err := s.store.GeneratePresignedDownloadURL(ctx, key, s.urlExpiry)
	if err != nil {
		if delErr := s.store.DeleteObject(ctx, key); delErr != nil {
			logrus.WithError(delErr).WithField("key", key).Warn("could not remove orphaned plan export")
		}
		return nil, fmt.Errorf("presign plan export: %w", err)
	}

	logrus.WithFields(logrus.Fields{"plan_id": planID.Hex(), "key": key}).Info("plan exported")
	return &PlanExport{Key: key, URL: url, ExpiresAt: s.now().Add(s.urlExpiry)}, nil
}

// distanceLabel names the common race distances.
func distanceLabel(km float64) string {
	near := func(target float64) bool { return math.Abs(km-target) < 0.15 }
	switch {
	case near(5):
		return "5K"
	case near(10):
		return "10K"
	case near(21.1):
		return "Half Marathon"
	case near(42.2):
		return "Marathon"
	}
	return strconv.FormatFloat(km, 'f', -1, 64) + " km"
}
