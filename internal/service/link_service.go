package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/metrics"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/repository"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// LinkInput asks for a session to be linked to an activity. A nil MatchScore
// is computed from the session and the activity.
type LinkInput struct {
	Session    planner.SessionKey
	ActivityID int64
	MatchScore *float64
}

type LinkService interface {
	List(ctx context.Context, userID, planID primitive.ObjectID) ([]domain.SessionLink, error)
	// Link creates a link, or moves an existing one: the session's previous
	// activity and the activity's previous session are both released.
	Link(ctx context.Context, userID, planID primitive.ObjectID, in LinkInput) (*domain.SessionLink, error)
	// Unlink removes a link by session key or, when key is nil, by activity id.
	Unlink(ctx context.Context, userID, planID primitive.ObjectID, key *planner.SessionKey, activityID int64) error
	// SessionCandidates ranks the sessions of a plan (the active one when planID
	// is nil) that an activity could fulfil.
	SessionCandidates(ctx context.Context, userID, planID primitive.ObjectID, activityID int64) ([]planner.SessionCandidate, error)
	ActivityCandidates(ctx context.Context, userID, planID primitive.ObjectID, key planner.SessionKey) ([]planner.ActivityCandidate, error)
	// AutoMatch links every unlinked session to its best unlinked activity
	// scoring at least the configured threshold, and returns the new links.
	AutoMatch(ctx context.Context, userID, planID primitive.ObjectID) ([]domain.SessionLink, error)
}

type linkService struct {
	links      repository.LinkRepository
	activities repository.ActivityRepository
	plans      PlanService

	threshold  float64
	windowDays int

	locksMu   sync.Mutex
	planLocks map[primitive.ObjectID]*planLock
	now       func() time.Time
}

// planLock serializes auto-match runs on one plan. It is dropped from the map
// once the last holder releases it.
type planLock struct {
	mu   sync.Mutex
	refs int
}

func NewLinkService(
	links repository.LinkRepository,
	activities repository.ActivityRepository,
	plans PlanService,
	threshold float64,
	windowDays int,
) LinkService {
	if windowDays < 0 {
		windowDays = 0
	}
	return &linkService{
		links:      links,
		activities: activities,
		plans:      plans,
		threshold:  threshold,
		windowDays: windowDays,
		planLocks:  make(map[primitive.ObjectID]*planLock),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *linkService) List(ctx context.Context, userID, planID primitive.ObjectID) ([]domain.SessionLink, error) {
	if _, err := s.plans.Get(ctx, userID, planID); err != nil {
		return nil, err
	}
	return s.links.ListByPlan(ctx, planID)
}

func (s *linkService) Link(ctx context.Context, userID, planID primitive.ObjectID, in LinkInput) (*domain.SessionLink, error) {
	if planID == primitive.NilObjectID {
		return nil, ErrPlanNotFound
	}
	_, schedule, err := s.plans.PlanWithSchedule(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	session, ok := findScheduled(schedule, in.Session)
	if !ok {
		return nil, ErrSessionNotInPlan
	}
	activity, err := s.getActivity(ctx, userID, in.ActivityID)
	if err != nil {
		return nil, err
	}

	score := in.MatchScore
	if score == nil {
		score = planner.Float(planner.ComputeMatchScore(session, activity.ToPlanner()))
	}
	link, err := s.upsert(ctx, &domain.SessionLink{
		PlanID:      planID,
		UserID:      userID,
		SessionDate: session.Date,
		SessionType: session.Type,
		ActivityID:  activity.ID,
		MatchScore:  score,
		Source:      domain.LinkSourceManual,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordLinks(string(domain.LinkSourceManual), 1)
	return link, nil
}

func (s *linkService) upsert(ctx context.Context, link *domain.SessionLink) (*domain.SessionLink, error) {
	link.UpdatedAt = s.now()
	saved, err := s.links.Upsert(ctx, link)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrLinkConflict
		}
		return nil, fmt.Errorf("save link: %w", err)
	}
	return saved, nil
}

func (s *linkService) Unlink(ctx context.Context, userID, planID primitive.ObjectID, key *planner.SessionKey, activityID int64) error {
	if key == nil && activityID <= 0 {
		return fmt.Errorf("%w: a session key or an activity id is required", ErrInvalidInput)
	}
	if _, err := s.plans.Get(ctx, userID, planID); err != nil {
		return err
	}

	var err error
	if key != nil {
		err = s.links.DeleteBySession(ctx, planID, *key)
	} else {
		err = s.links.DeleteByActivity(ctx, planID, activityID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrLinkNotFound
	}
	return err
}

func (s *linkService) SessionCandidates(ctx context.Context, userID, planID primitive.ObjectID, activityID int64) ([]planner.SessionCandidate, error) {
	activity, err := s.getActivity(ctx, userID, activityID)
	if err != nil {
		return nil, err
	}
	_, schedule, err := s.plans.PlanWithSchedule(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	return planner.RankCandidates(schedule, activity.ToPlanner(), s.windowDays), nil
}

func (s *linkService) ActivityCandidates(ctx context.Context, userID, planID primitive.ObjectID, key planner.SessionKey) ([]planner.ActivityCandidate, error) {
	_, schedule, err := s.plans.PlanWithSchedule(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	session, ok := findScheduled(schedule, key)
	if !ok {
		return nil, ErrSessionNotInPlan
	}

	from, err := planner.AddDays(session.Date, -s.windowDays)
	if err != nil {
		return nil, err
	}
	to, err := planner.AddDays(session.Date, s.windowDays)
	if err != nil {
		return nil, err
	}
	acts, err := s.activities.ListByUserRange(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	return planner.RankActivities(session, toPlanner(acts), s.windowDays), nil
}

func (s *linkService) AutoMatch(ctx context.Context, userID, planID primitive.ObjectID) ([]domain.SessionLink, error) {
	if planID == primitive.NilObjectID {
		return nil, ErrPlanNotFound
	}
	unlock := s.lockPlan(planID)
	defer unlock()

	var (
		schedule []planner.ScheduledSession
		existing []domain.SessionLink
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		_, schedule, err = s.plans.PlanWithSchedule(gctx, userID, planID)
		return err
	})
	g.Go(func() error {
		var err error
		existing, err = s.links.ListByPlan(gctx, planID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(schedule) == 0 {
		return []domain.SessionLink{}, nil
	}

	from, to := scheduleSpan(schedule)
	acts, err := s.activities.ListByUserRange(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	linkedSessions := make(map[planner.SessionKey]bool, len(existing))
	linkedActivities := make(map[int64]bool, len(existing))
	for i := range existing {
		linkedSessions[existing[i].SessionKey()] = true
		linkedActivities[existing[i].ActivityID] = true
	}

	proposals := planner.ProposeLinks(schedule, toPlanner(acts), linkedSessions, linkedActivities, s.threshold)
	created := make([]domain.SessionLink, 0, len(proposals))
	for _, p := range proposals {
		link, err := s.upsert(ctx, &domain.SessionLink{
			PlanID:      planID,
			UserID:      userID,
			SessionDate: p.Session.Date,
			SessionType: p.Session.Type,
			ActivityID:  p.ActivityID,
			MatchScore:  planner.Float(p.Score),
			Source:      domain.LinkSourceAuto,
		})
		if err != nil {
			if errors.Is(err, ErrLinkConflict) {
				logrus.WithFields(logrus.Fields{
					"plan_id":     planID.Hex(),
					"activity_id": p.ActivityID,
					"session":     p.Session.Date + "/" + string(p.Session.Type),
				}).Warn("auto-match skipped a link taken concurrently")
				continue
			}
			return created, err
		}
		created = append(created, *link)
	}

	metrics.RecordLinks(string(domain.LinkSourceAuto), len(created))
	logrus.WithFields(logrus.Fields{
		"plan_id":   planID.Hex(),
		"proposed":  len(proposals),
		"linked":    len(created),
		"threshold": s.threshold,
	}).Info("auto-match finished")
	return created, nil
}

func (s *linkService) lockPlan(planID primitive.ObjectID) func() {
	s.locksMu.Lock()
	l, ok := s.planLocks[planID]
	if !ok {
		l = &planLock{}
		s.planLocks[planID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.planLocks, planID)
		}
		s.locksMu.Unlock()
	}
}

// scheduleSpan returns the earliest and latest dates of a schedule. Embedded
// schedules are not guaranteed to be sorted.
func scheduleSpan(schedule []planner.ScheduledSession) (from, to string) {
	from, to = schedule[0].Date, schedule[0].Date
	for _, e := range schedule[1:] {
		if e.Date < from {
			from = e.Date
		}
		if e.Date > to {
			to = e.Date
		}
	}
	return from, to
}

func (s *linkService) getActivity(ctx context.Context, userID primitive.ObjectID, id int64) (*domain.Activity, error) {
	activity, err := s.activities.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	return activity, nil
}

func findScheduled(schedule []planner.ScheduledSession, key planner.SessionKey) (planner.ScheduledSession, bool) {
	for _, s := range schedule {
		if s.Key() == key {
			return s, true
		}
	}
	return planner.ScheduledSession{}, false
}

func toPlanner(acts []domain.Activity) []planner.Activity {
	out := make([]planner.Activity, 0, len(acts))
	for i := range acts {
		out = append(out, acts[i].ToPlanner())
	}
	return out
}
