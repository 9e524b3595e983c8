package service

import (
	"context"
	"errors"
	"fmt"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SettingsService manages the weekday preferences used to lay out schedules.
type SettingsService interface {
	// GetDayMap returns the stored map, or an empty one when none was saved.
	GetDayMap(ctx context.Context, userID primitive.ObjectID) (planner.DayMap, error)
	SaveDayMap(ctx context.Context, userID primitive.ObjectID, dayMap planner.DayMap) (planner.DayMap, error)
	// SaveWeekdays derives a day map from the weekdays the user wants to run on.
	SaveWeekdays(ctx context.Context, userID primitive.ObjectID, weekdays []int) (planner.DayMap, error)
}

type settingsService struct {
	repo repository.SettingsRepository
}

func NewSettingsService(repo repository.SettingsRepository) SettingsService {
	return &settingsService{repo: repo}
}

func (s *settingsService) GetDayMap(ctx context.Context, userID primitive.ObjectID) (planner.DayMap, error) {
	settings, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return planner.DayMap{}, nil
		}
		return nil, err
	}
	if settings.DayMap == nil {
		return planner.DayMap{}, nil
	}
	return settings.DayMap, nil
}

func (s *settingsService) SaveDayMap(ctx context.Context, userID primitive.ObjectID, dayMap planner.DayMap) (planner.DayMap, error) {
	if dayMap == nil {
		dayMap = planner.DayMap{}
	}
	if err := dayMap.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, &domain.Settings{UserID: userID, DayMap: dayMap}); err != nil {
		return nil, fmt.Errorf("save day map: %w", err)
	}
	return dayMap, nil
}

func (s *settingsService) SaveWeekdays(ctx context.Context, userID primitive.ObjectID, weekdays []int) (planner.DayMap, error) {
	if len(weekdays) == 0 {
		return nil, fmt.Errorf("%w: at least one weekday is required", ErrInvalidInput)
	}
	return s.SaveDayMap(ctx, userID, planner.DayMapFromWeekdays(weekdays))
}
