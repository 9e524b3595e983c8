package planner_test

import (
	"testing"

	"alcyxob/run-planner/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeWeeks(t *testing.T) {
	activities := []planner.Activity{
		{ID: 1, Date: "2025-01-06", DistanceKM: 5.4},
		{ID: 2, Date: "2025-01-12", DistanceKM: 5},
		{ID: 3, Date: "2025-01-13", DistanceKM: 10.6},
		{ID: 4, Date: "not a date", DistanceKM: 50},
	}

	got := planner.SummarizeWeeks(activities)
	require.Len(t, got.Weeks, 2)
	assert.Equal(t, planner.WeekVolume{WeekStart: "2025-01-13", TotalKM: 11, Count: 1}, got.Weeks[0])
	assert.Equal(t, planner.WeekVolume{WeekStart: "2025-01-06", TotalKM: 10, Count: 2}, got.Weeks[1])
	assert.Equal(t, float64(21), got.TotalKM)
	assert.Equal(t, float64(11), got.AvgWeekKM)
}

func TestSummarizeWeeks_Empty(t *testing.T) {
	got := planner.SummarizeWeeks(nil)
	assert.Empty(t, got.Weeks)
	assert.Zero(t, got.AvgWeekKM)
}
