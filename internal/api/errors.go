package api

import (
	"errors"
	"net/http"

	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/service"
	"alcyxob/run-planner/internal/strava"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ValidationErrorResponse is returned for plan documents that break the schema.
type ValidationErrorResponse struct {
	Error      string              `json:"error"`
	Violations []planner.Violation `json:"violations"`
}

var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrInvalidInput, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusBadRequest},
	{service.ErrAuthenticationFailed, http.StatusUnauthorized},
	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrUserNotFound, http.StatusNotFound},
	{planner.ErrInvalidParams, http.StatusBadRequest},
	{service.ErrPlanAccessDenied, http.StatusForbidden},
	{service.ErrPlanNotFound, http.StatusNotFound},
	{service.ErrNoActivePlan, http.StatusNotFound},
	{service.ErrActivityNotFound, http.StatusNotFound},
	{service.ErrLinkNotFound, http.StatusNotFound},
	{service.ErrSessionNotInPlan, http.StatusNotFound},
	{planner.ErrSessionNotFound, http.StatusNotFound},
	{planner.ErrScheduleEntryNotFound, http.StatusNotFound},
	{planner.ErrSessionNotPlanned, http.StatusConflict},
	{service.ErrPlanConflict, http.StatusConflict},
	{service.ErrLinkConflict, http.StatusConflict},
	{service.ErrStravaDisabled, http.StatusServiceUnavailable},
	{service.ErrExportDisabled, http.StatusServiceUnavailable},
	{strava.ErrRateLimited, http.StatusTooManyRequests},
	{strava.ErrUnauthorized, http.StatusBadGateway},
}

// respondError maps service and engine errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var verr *planner.ValidationError
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:      planner.ErrInvalidPlan.Error(),
			Violations: verr.Violations,
		})
		return
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			abortWithError(c, m.status, err.Error())
			return
		}
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"route":  c.FullPath(),
	}).Error("unhandled error")
	abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
}
