package api

import (
	"net/http"
	"strconv"
	"time"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ActivityHandler struct {
	activityService service.ActivityService
	linkService     service.LinkService
}

func NewActivityHandler(activityService service.ActivityService, linkService service.LinkService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService, linkService: linkService}
}

// ActivityInput is one recorded run in an ingest batch.
type ActivityInput struct {
	ID               int64    `json:"id" binding:"required,gt=0"`
	Name             string   `json:"name"`
	Date             string   `json:"date" binding:"required"`
	DistanceKM       float64  `json:"distance_km" binding:"gte=0"`
	DurationMin      float64  `json:"duration_min" binding:"gte=0"`
	PaceMinPerKM     *float64 `json:"pace_min_per_km"`
	AverageHeartrate *float64 `json:"average_heartrate"`
	MaxHeartrate     *float64 `json:"max_heartrate"`
	ElevationGainM   *float64 `json:"elevation_gain_m"`
	Calories         *float64 `json:"calories"`
}

type IngestActivitiesRequest struct {
	Activities []ActivityInput `json:"activities" binding:"required,min=1,dive"`
}

type SyncRequest struct {
	After string `json:"after"` // YYYY-MM-DD
}

// IngestActivities godoc
// @Summary Store recorded runs
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body IngestActivitiesRequest true "Runs"
// @Success 201 {object} gin.H "Number of runs stored"
// @Router /activities [post]
func (h *ActivityHandler) IngestActivities(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req IngestActivitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	batch := make([]domain.Activity, 0, len(req.Activities))
	for _, a := range req.Activities {
		batch = append(batch, domain.Activity{
			ID:               a.ID,
			Name:             a.Name,
			Date:             a.Date,
			DistanceKM:       a.DistanceKM,
			DurationMin:      a.DurationMin,
			PaceMinPerKM:     a.PaceMinPerKM,
			AverageHeartrate: a.AverageHeartrate,
			MaxHeartrate:     a.MaxHeartrate,
			ElevationGainM:   a.ElevationGainM,
			Calories:         a.Calories,
			Source:           domain.ActivitySourceManual,
		})
	}
	n, err := h.activityService.Ingest(c.Request.Context(), userID, batch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stored": n})
}

// ListActivities godoc
// @Summary List my runs
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param from query string false "First date, YYYY-MM-DD"
// @Param to query string false "Last date, YYYY-MM-DD"
// @Success 200 {array} domain.Activity
// @Router /activities [get]
func (h *ActivityHandler) ListActivities(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	acts, err := h.activityService.List(c.Request.Context(), userID, c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acts)
}

// GetSummary godoc
// @Summary Weekly running volume of the recent weeks
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Success 200 {object} planner.VolumeSummary
// @Router /activities/summary [get]
func (h *ActivityHandler) GetSummary(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	summary, err := h.activityService.Summary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SyncStrava godoc
// @Summary Pull recent runs from Strava
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body SyncRequest false "Only runs after this date"
// @Success 200 {object} gin.H "Number of runs stored"
// @Failure 503 {object} gin.H "Strava is not configured"
// @Router /activities/sync [post]
func (h *ActivityHandler) SyncStrava(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	var after time.Time
	if req.After != "" {
		t, err := planner.ParseDate(req.After)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid after date, expected YYYY-MM-DD.")
			return
		}
		after = t
	}

	n, err := h.activityService.SyncStrava(c.Request.Context(), userID, after)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": n})
}

// GetSessionCandidates godoc
// @Summary Rank the plan sessions a run could fulfil
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param activityId path int true "Activity id"
// @Param planId query string false "Plan ObjectID Hex, defaults to the active plan"
// @Success 200 {array} planner.SessionCandidate
// @Router /activities/{activityId}/candidates [get]
func (h *ActivityHandler) GetSessionCandidates(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activityID, err := strconv.ParseInt(c.Param("activityId"), 10, 64)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid activityId format.")
		return
	}
	planID := primitive.NilObjectID
	if hex := c.Query("planId"); hex != "" {
		if planID, err = primitive.ObjectIDFromHex(hex); err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid planId format.")
			return
		}
	}

	candidates, err := h.linkService.SessionCandidates(c.Request.Context(), userID, planID, activityID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidates)
}
