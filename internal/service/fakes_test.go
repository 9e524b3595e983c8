package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/repository"
	"alcyxob/run-planner/internal/strava"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testNow = time.Date(2025, time.January, 8, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]domain.User{}}
}

func (m *mockUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return primitive.NilObjectID, repository.ErrConflict
	}
	user.ID = primitive.NewObjectID()
	m.users[user.Email] = *user
	return user.ID, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) SetStravaAthleteID(_ context.Context, id primitive.ObjectID, athleteID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, u := range m.users {
		if u.ID == id {
			u.StravaAthleteID = &athleteID
			m.users[email] = u
			return nil
		}
	}
	return repository.ErrNotFound
}

type mockPlanRepo struct {
	mu    sync.Mutex
	plans map[primitive.ObjectID]domain.PlanRecord
	// bumpBeforeUpdate simulates a concurrent writer landing before the next update.
	bumpBeforeUpdate bool
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{plans: map[primitive.ObjectID]domain.PlanRecord{}}
}

func copyPlan(p domain.PlanRecord) domain.PlanRecord {
	p.Data = *p.Data.Clone()
	return p
}

func (m *mockPlanRepo) Create(_ context.Context, plan *domain.PlanRecord) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := primitive.NewObjectID()
	rec := copyPlan(*plan)
	rec.ID = id
	rec.Version = 1
	m.plans[id] = rec
	plan.Version = 1
	return id, nil
}

func (m *mockPlanRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.PlanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyPlan(p)
	return &out, nil
}

func (m *mockPlanRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.PlanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.PlanRecord{}
	for _, p := range m.plans {
		if p.UserID == userID {
			out = append(out, copyPlan(p))
		}
	}
	return out, nil
}

func (m *mockPlanRepo) GetActive(_ context.Context, userID primitive.ObjectID) (*domain.PlanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.plans {
		if p.UserID == userID && p.IsActive {
			out := copyPlan(p)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockPlanRepo) Update(_ context.Context, plan *domain.PlanRecord, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := plan.ID
	p, ok := m.plans[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if m.bumpBeforeUpdate {
		m.bumpBeforeUpdate = false
		p.Version++
		m.plans[id] = p
	}
	if p.Version != expectedVersion {
		return 0, repository.ErrConflict
	}
	p.Data = *plan.Data.Clone()
	p.Title = plan.Title
	p.Description = plan.Description
	p.DistanceLabel = plan.DistanceLabel
	p.StartDate = plan.StartDate
	p.Version++
	m.plans[id] = p
	return p.Version, nil
}

func (m *mockPlanRepo) Activate(_ context.Context, userID, planID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.plans[planID]
	if !ok || target.UserID != userID {
		return repository.ErrNotFound
	}
	for id, p := range m.plans {
		if p.UserID != userID {
			continue
		}
		p.IsActive = id == planID
		m.plans[id] = p
	}
	return nil
}

type mockActivityRepo struct {
	mu         sync.Mutex
	activities map[int64]domain.Activity
}

func newMockActivityRepo(acts ...domain.Activity) *mockActivityRepo {
	m := &mockActivityRepo{activities: map[int64]domain.Activity{}}
	for _, a := range acts {
		m.activities[a.ID] = a
	}
	return m
}

func (m *mockActivityRepo) Upsert(_ context.Context, activities []domain.Activity) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range activities {
		m.activities[a.ID] = a
	}
	return len(activities), nil
}

func (m *mockActivityRepo) GetByID(_ context.Context, userID primitive.ObjectID, id int64) (*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activities[id]
	if !ok || a.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (m *mockActivityRepo) ListByUserRange(_ context.Context, userID primitive.ObjectID, from, to string) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Activity{}
	for _, a := range m.activities {
		if a.UserID != userID || (from != "" && a.Date < from) || (to != "" && a.Date > to) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date || (out[i].Date == out[j].Date && out[i].ID < out[j].ID) })
	return out, nil
}

// mockLinkRepo mirrors the Mongo upsert: one link per session key per plan and
// one link per activity overall.
type mockLinkRepo struct {
	mu        sync.Mutex
	links     []domain.SessionLink
	upsertErr error
}

func (m *mockLinkRepo) Upsert(_ context.Context, link *domain.SessionLink) (*domain.SessionLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	kept := m.links[:0]
	var existing *domain.SessionLink
	for i := range m.links {
		l := m.links[i]
		sameSession := l.PlanID == link.PlanID && l.SessionKey() == link.SessionKey()
		if l.ActivityID == link.ActivityID && !sameSession {
			continue
		}
		kept = append(kept, l)
		if sameSession {
			existing = &kept[len(kept)-1]
		}
	}
	m.links = kept

	if existing != nil {
		id, created := existing.ID, existing.CreatedAt
		*existing = *link
		existing.ID, existing.CreatedAt = id, created
		out := *existing
		return &out, nil
	}
	out := *link
	out.ID = primitive.NewObjectID()
	out.CreatedAt = out.UpdatedAt
	m.links = append(m.links, out)
	return &out, nil
}

func (m *mockLinkRepo) ListByPlan(_ context.Context, planID primitive.ObjectID) ([]domain.SessionLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.SessionLink{}
	for _, l := range m.links {
		if l.PlanID == planID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLinkRepo) remove(match func(domain.SessionLink) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.links {
		if match(l) {
			m.links = append(m.links[:i], m.links[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *mockLinkRepo) DeleteBySession(_ context.Context, planID primitive.ObjectID, key planner.SessionKey) error {
	return m.remove(func(l domain.SessionLink) bool { return l.PlanID == planID && l.SessionKey() == key })
}

func (m *mockLinkRepo) DeleteByActivity(_ context.Context, planID primitive.ObjectID, activityID int64) error {
	return m.remove(func(l domain.SessionLink) bool { return l.PlanID == planID && l.ActivityID == activityID })
}

type mockSettingsRepo struct {
	mu       sync.Mutex
	settings map[primitive.ObjectID]domain.Settings
}

func newMockSettingsRepo() *mockSettingsRepo {
	return &mockSettingsRepo{settings: map[primitive.ObjectID]domain.Settings{}}
}

func (m *mockSettingsRepo) Get(_ context.Context, userID primitive.ObjectID) (*domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *mockSettingsRepo) Save(_ context.Context, settings *domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[settings.UserID] = *settings
	return nil
}

type mockStorage struct {
	objects    map[string][]byte
	presignErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: map[string][]byte{}}
}

func (m *mockStorage) PutObject(_ context.Context, key, _ string, body []byte) error {
	m.objects[key] = body
	return nil
}

func (m *mockStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if m.presignErr != nil {
		return "", m.presignErr
	}
	return "https://downloads.test/" + key, nil
}

func (m *mockStorage) DeleteObject(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type mockRunSource struct {
	runs  []strava.SummaryActivity
	err   error
	after time.Time
}

func (m *mockRunSource) ListRuns(_ context.Context, after time.Time) ([]strava.SummaryActivity, error) {
	m.after = after
	return m.runs, m.err
}

var errBoom = errors.New("boom")

// testEnv wires the services over in-memory repositories.
type testEnv struct {
	plansRepo  *mockPlanRepo
	actsRepo   *mockActivityRepo
	linksRepo  *mockLinkRepo
	settings   SettingsService
	plans      PlanService
	activities ActivityService
	links      LinkService
	store      *mockStorage
}

func newTestEnv(acts ...domain.Activity) *testEnv {
	env := &testEnv{
		plansRepo: newMockPlanRepo(),
		actsRepo:  newMockActivityRepo(acts...),
		linksRepo: &mockLinkRepo{},
		store:     newMockStorage(),
	}
	env.settings = NewSettingsService(newMockSettingsRepo())
	engine := planner.New(planner.WithClock(fixedClock))
	env.plans = NewPlanService(env.plansRepo, env.actsRepo, env.settings, engine, 8,
		WithPlanClock(fixedClock),
		WithPlanStorage(env.store, "exports", time.Minute),
	)
	env.activities = NewActivityService(env.actsRepo, 8, WithActivityClock(fixedClock))
	env.links = NewLinkService(env.linksRepo, env.actsRepo, env.plans, 60, 1)
	return env
}

// oneWeekPlan schedules by default as easy Mon 6th, tempo Tue 7th, easy Thu 9th,
// long Sat 11th, and a 10 km race on Sun 12th January 2025.
func oneWeekPlan() planner.PlanDocument {
	return planner.PlanDocument{
		Goal: planner.Goal{DistanceKM: 10, RaceDate: "2025-01-12"},
		Weeks: []planner.Week{{
			Start:   "2025-01-06",
			TotalKM: 26,
			Sessions: []planner.Session{
				{Type: planner.SessionEasy, Title: "Easy", DistanceKM: planner.Float(5), Planned: true},
				{Type: planner.SessionTempo, Title: "Tempo", DistanceKM: planner.Float(6), PaceMinPerKM: "4:30", Planned: true},
				{Type: planner.SessionEasy, Title: "Easy", DistanceKM: planner.Float(7), Planned: true},
				{Type: planner.SessionLong, Title: "Long", DistanceKM: planner.Float(8), Planned: true},
			},
		}},
	}
}

func run(userID primitive.ObjectID, id int64, date string, km, minutes float64) domain.Activity {
	return domain.Activity{
		ID:          id,
		UserID:      userID,
		Date:        date,
		DistanceKM:  km,
		DurationMin: minutes,
		Source:      domain.ActivitySourceManual,
	}
}
