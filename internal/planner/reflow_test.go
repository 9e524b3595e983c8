package planner_test

import (
	"testing"
	"time"

	"alcyxob/run-planner/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func halfMarathonPlan(t *testing.T) *planner.PlanDocument {
	t.Helper()
	plan, err := newTestPlanner().Generate(planner.PlanParams{
		StartDate:  "2025-01-06",
		RaceDate:   "2025-03-09",
		DistanceKM: 21.1,
		SeedAvgKM:  planner.Float(25),
		WeeklyDays: planner.Int(5),
	})
	require.NoError(t, err)
	return plan
}

func sessionByID(t *testing.T, plan *planner.PlanDocument, id string) planner.Session {
	t.Helper()
	_, s := plan.FindSession(id)
	require.NotNil(t, s, "session %s", id)
	return *s
}

func TestReflowAfterMissed_CarriesQualityToNextEasy(t *testing.T) {
	plan := halfMarathonPlan(t)
	later := time.Date(2025, time.January, 15, 18, 0, 0, 0, time.UTC)
	p := planner.New(planner.WithClock(func() time.Time { return later }))

	require.Equal(t, planner.SessionTempo, sessionByID(t, plan, "2-3").Type)
	require.Equal(t, "2025-01-15", sessionByID(t, plan, "2-3").Date)

	res, err := p.ReflowAfterMissed(plan, "2025-01-15")
	require.NoError(t, err)

	assert.Equal(t, "2-3", res.CarriedFrom)
	assert.Equal(t, "2-5", res.CarriedTo)
	assert.False(t, res.Dropped)
	assert.Equal(t, 7, res.Demoted, "five week-1 sessions plus Monday and Tuesday of week 2")

	missed := sessionByID(t, res.Plan, "2-3")
	assert.False(t, missed.Planned)

	carried := sessionByID(t, res.Plan, "2-5")
	assert.Equal(t, planner.SessionTempo, carried.Type)
	assert.Equal(t, "Tempo Run", carried.Title)
	assert.Equal(t, "2025-01-17", carried.Date, "the slot keeps its own date")
	require.NotNil(t, carried.DistanceKM)
	assert.Equal(t, float64(7), *carried.DistanceKM)

	demoted := sessionByID(t, res.Plan, "1-3")
	assert.Equal(t, planner.SessionEasy, demoted.Type)
	assert.Equal(t, "Easy 25-30 min", demoted.Title)
	assert.True(t, demoted.Missed)
	assert.Equal(t, float64(4), *demoted.DistanceKM)

	strength := sessionByID(t, res.Plan, "1-4")
	assert.Equal(t, planner.SessionStrength, strength.Type, "only hard run types change type")
	assert.Equal(t, float64(4), *strength.DistanceKM)

	untouched := sessionByID(t, res.Plan, "2-4")
	assert.Equal(t, planner.SessionStrength, untouched.Type)
	assert.False(t, untouched.Missed)

	assert.Equal(t, later, res.Plan.Meta.UpdatedAt)
	require.NoError(t, planner.Validate(res.Plan))
}

func TestReflowAfterMissed_LeavesInputUntouched(t *testing.T) {
	plan := halfMarathonPlan(t)
	before := plan.Clone()

	_, err := newTestPlanner().ReflowAfterMissed(plan, "2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, before, plan)
}

func TestReflowAfterMissed_Idempotent(t *testing.T) {
	plan := halfMarathonPlan(t)
	p := newTestPlanner()

	first, err := p.ReflowAfterMissed(plan, "2025-01-15")
	require.NoError(t, err)
	second, err := p.ReflowAfterMissed(first.Plan, "2025-01-15")
	require.NoError(t, err)

	assert.Equal(t, first.Plan.Weeks, second.Plan.Weeks)
	assert.Zero(t, second.Demoted)
	assert.Empty(t, second.CarriedFrom)
	assert.False(t, second.Dropped)
}

func TestReflowAfterMissed_DoneSessionsAreKept(t *testing.T) {
	plan := halfMarathonPlan(t)
	p := newTestPlanner()
	plan, err := p.MarkSessionDone(plan, "1-1")
	require.NoError(t, err)

	res, err := p.ReflowAfterMissed(plan, "2025-01-15")
	require.NoError(t, err)
	done := sessionByID(t, res.Plan, "1-1")
	assert.True(t, done.Done)
	assert.False(t, done.Missed)
	assert.Equal(t, "Easy Run", done.Title)
	assert.Equal(t, 6, res.Demoted)
}

func TestReflowAfterMissed_UpdatedAtNeverGoesBack(t *testing.T) {
	plan := halfMarathonPlan(t)
	earlier := fixedNow.Add(-48 * time.Hour)
	p := planner.New(planner.WithClock(func() time.Time { return earlier }))

	res, err := p.ReflowAfterMissed(plan, "2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, fixedNow, res.Plan.Meta.UpdatedAt)
}

func TestReflowAfterMissed_DropsWhenNoEasySlot(t *testing.T) {
	plan := &planner.PlanDocument{
		Goal: planner.Goal{DistanceKM: 10, RaceDate: "2025-01-12", Units: planner.UnitsMetric},
		Weeks: []planner.Week{{
			WeekNumber: 1,
			Start:      "2025-01-06",
			Focus:      planner.FocusBuild,
			TotalKM:    20,
			Sessions: []planner.Session{
				{ID: "1-1", Date: "2025-01-08", Type: planner.SessionInterval, Title: "Intervals", DistanceKM: planner.Float(6), Planned: true},
				{ID: "1-2", Date: "2025-01-10", Type: planner.SessionStrength, Title: "Strength", Planned: true},
				{ID: "1-3", Date: "2025-01-11", Type: planner.SessionLong, Title: "Long Run", DistanceKM: planner.Float(12), Planned: true},
			},
		}},
	}

	res, err := newTestPlanner().ReflowAfterMissed(plan, "2025-01-08")
	require.NoError(t, err)
	assert.Equal(t, "1-1", res.CarriedFrom)
	assert.Empty(t, res.CarriedTo)
	assert.True(t, res.Dropped)
	assert.False(t, sessionByID(t, res.Plan, "1-1").Planned)
	assert.Equal(t, planner.SessionLong, sessionByID(t, res.Plan, "1-3").Type)
}

func TestReflowAfterMissed_NothingOnDate(t *testing.T) {
	plan := halfMarathonPlan(t)
	res, err := newTestPlanner().ReflowAfterMissed(plan, "2025-01-14")
	require.NoError(t, err)
	assert.Empty(t, res.CarriedFrom)
	assert.False(t, res.Dropped)
	assert.Equal(t, 6, res.Demoted)
}

func TestReflowAfterMissed_InvalidInput(t *testing.T) {
	p := newTestPlanner()
	_, err := p.ReflowAfterMissed(nil, "2025-01-15")
	require.ErrorIs(t, err, planner.ErrInvalidParams)

	_, err = p.ReflowAfterMissed(halfMarathonPlan(t), "15.01.2025")
	require.ErrorIs(t, err, planner.ErrInvalidParams)
}
