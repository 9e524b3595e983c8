package api

import (
	"net/http"

	"alcyxob/run-planner/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StravaHandler struct {
	stravaService service.StravaService
}

func NewStravaHandler(stravaService service.StravaService) *StravaHandler {
	return &StravaHandler{stravaService: stravaService}
}

// PushPlanRequest selects the plan to push; the active plan when PlanID is empty.
type PushPlanRequest struct {
	PlanID string `json:"planId"`
	Limit  int    `json:"limit" binding:"omitempty,min=1,max=50"`
}

type PushPlanResponse struct {
	Pushed []service.PushedWorkout `json:"pushed"`
}

// Health godoc
// @Summary Check the Strava connection
// @Description Verifies the configured token against the athlete endpoint and records the athlete on the account.
// @Tags Strava
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.StravaHealth
// @Failure 503 {object} gin.H "Strava is not configured"
// @Router /strava/health [get]
func (h *StravaHandler) Health(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	health, err := h.stravaService.Health(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, health)
}

// PushPlan godoc
// @Summary Push upcoming sessions to Strava
// @Description Creates private Workout activities for the next planned sessions, at most 50.
// @Tags Strava
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body PushPlanRequest false "Plan and limit"
// @Success 200 {object} PushPlanResponse
// @Failure 404 {object} gin.H "Plan not found"
// @Failure 503 {object} gin.H "Strava is not configured"
// @Router /strava/push [post]
func (h *StravaHandler) PushPlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req PushPlanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	planID := primitive.NilObjectID
	if req.PlanID != "" {
		id, err := primitive.ObjectIDFromHex(req.PlanID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid planId format.")
			return
		}
		planID = id
	}

	pushed, err := h.stravaService.PushPlan(c.Request.Context(), userID, planID, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PushPlanResponse{Pushed: pushed})
}
