package service

import "errors"

var (
	ErrPlanNotFound     = errors.New("plan not found")
	ErrPlanAccessDenied = errors.New("access denied to this plan")
	ErrNoActivePlan     = errors.New("no active plan")
	ErrPlanConflict     = errors.New("plan was modified concurrently, reload and retry")
	ErrActivityNotFound = errors.New("activity not found")
	ErrLinkNotFound     = errors.New("link not found")
	ErrLinkConflict     = errors.New("session or activity is already linked elsewhere")
	ErrSessionNotInPlan = errors.New("no scheduled session with this date and type")
	ErrStravaDisabled   = errors.New("strava sync is not configured")
	ErrExportDisabled   = errors.New("plan export storage is not configured")
	ErrInvalidInput     = errors.New("invalid input")
)
