package service

import (
	"context"
	"testing"

	"alcyxob/run-planner/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSettingsService_DayMap(t *testing.T) {
	svc := NewSettingsService(newMockSettingsRepo())
	userID := primitive.NewObjectID()

	m, err := svc.GetDayMap(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = svc.SaveDayMap(context.Background(), userID, planner.DayMap{planner.SessionLong: 7})
	assert.ErrorIs(t, err, planner.ErrInvalidPlan)

	saved, err := svc.SaveWeekdays(context.Background(), userID, []int{1, 3, 5})
	require.NoError(t, err)
	assert.Equal(t, planner.DayMap{
		planner.SessionEasy:     1,
		planner.SessionTempo:    3,
		planner.SessionInterval: 5,
		planner.SessionLong:     5,
	}, saved)

	m, err = svc.GetDayMap(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, saved, m)

	_, err = svc.SaveWeekdays(context.Background(), userID, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
