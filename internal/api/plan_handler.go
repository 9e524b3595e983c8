package api

import (
	"net/http"
	"time"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/service"

	"github.com/gin-gonic/gin"
)

type PlanHandler struct {
	planService service.PlanService
}

func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

// --- DTOs ---

type GeneratePlanRequest struct {
	Title         string        `json:"title"`
	StartDate     string        `json:"startDate"` // YYYY-MM-DD, defaults to today
	RaceDate      string        `json:"raceDate" binding:"required"`
	DistanceKM    float64       `json:"distanceKm" binding:"required,gt=0"`
	SeedAvgKM     *float64      `json:"seedAvgKm"`
	WeeklyDays    *int          `json:"weeklyDays" binding:"omitempty,min=3,max=7"`
	TargetTimeMin *float64      `json:"targetTimeMin"`
	Units         planner.Units `json:"units" binding:"omitempty,oneof=metric imperial"`
}

type ImportPlanRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	StartDate   string                `json:"startDate"`
	Plan        *planner.PlanDocument `json:"plan" binding:"required"`
}

// UpdatePlanRequest edits a stored plan; omitted fields are left unchanged.
// Plan replaces the whole document.
type UpdatePlanRequest struct {
	Title         *string               `json:"title"`
	Description   *string               `json:"description"`
	DistanceLabel *string               `json:"distanceLabel"`
	StartDate     *string               `json:"startDate"`
	RaceDate      *string               `json:"raceDate"`
	Plan          *planner.PlanDocument `json:"plan"`
	Version       *int64                `json:"version"`
}

type ReflowRequest struct {
	MissedDate string `json:"missedDate" binding:"required"`
}

type HolidaysRequest struct {
	Dates []string `json:"dates" binding:"required,min=1"`
}

type MoveSessionRequest struct {
	FromDate string              `json:"fromDate" binding:"required"`
	Type     planner.SessionType `json:"type" binding:"required"`
	ToDate   string              `json:"toDate" binding:"required"`
}

type RebuildScheduleRequest struct {
	EndDate string `json:"endDate"`
}

// PlanSummaryResponse is a plan without its document, for listings.
type PlanSummaryResponse struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	DistanceLabel string            `json:"distanceLabel,omitempty"`
	StartDate     string            `json:"startDate"`
	RaceDate      string            `json:"raceDate"`
	IsActive      bool              `json:"isActive"`
	Source        domain.PlanSource `json:"source"`
	Weeks         int               `json:"weeks"`
	Version       int64             `json:"version"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

type PlanResponse struct {
	PlanSummaryResponse
	Plan planner.PlanDocument `json:"plan"`
}

type ReflowResponse struct {
	Plan        PlanResponse `json:"plan"`
	CarriedFrom string       `json:"carried_from,omitempty"`
	CarriedTo   string       `json:"carried_to,omitempty"`
	Dropped     bool         `json:"dropped"`
	Demoted     int          `json:"demoted"`
}

type ScheduleResponse struct {
	PlanID   string                     `json:"planId"`
	Schedule []planner.ScheduledSession `json:"schedule"`
}

func MapPlanToSummary(p *domain.PlanRecord) PlanSummaryResponse {
	return PlanSummaryResponse{
		ID:            p.ID.Hex(),
		Title:         p.Title,
		Description:   p.Description,
		DistanceLabel: p.DistanceLabel,
		StartDate:     p.StartDate,
		RaceDate:      p.Data.Goal.RaceDate,
		IsActive:      p.IsActive,
		Source:        p.Source,
		Weeks:         len(p.Data.Weeks),
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func MapPlanToResponse(p *domain.PlanRecord) PlanResponse {
	return PlanResponse{PlanSummaryResponse: MapPlanToSummary(p), Plan: p.Data}
}

func MapPlansToSummaries(plans []domain.PlanRecord) []PlanSummaryResponse {
	out := make([]PlanSummaryResponse, 0, len(plans))
	for i := range plans {
		out = append(out, MapPlanToSummary(&plans[i]))
	}
	return out
}

// --- Handler Methods ---

// GeneratePlan godoc
// @Summary Generate a training plan
// @Description Builds a periodized plan up to the race date and makes it the active plan.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body GeneratePlanRequest true "Race goal"
// @Success 201 {object} PlanResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Router /plans/generate [post]
func (h *PlanHandler) GeneratePlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req GeneratePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	plan, err := h.planService.Generate(c.Request.Context(), userID, service.GeneratePlanInput{
		Title:         req.Title,
		StartDate:     req.StartDate,
		RaceDate:      req.RaceDate,
		DistanceKM:    req.DistanceKM,
		SeedAvgKM:     req.SeedAvgKM,
		WeeklyDays:    req.WeeklyDays,
		TargetTimeMin: req.TargetTimeMin,
		Units:         req.Units,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapPlanToResponse(plan))
}

// ImportPlan godoc
// @Summary Import a plan document
// @Description Stores a plan produced elsewhere after filling defaults and validating it.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body ImportPlanRequest true "Plan document"
// @Success 201 {object} PlanResponse
// @Failure 422 {object} ValidationErrorResponse "Plan violates the document schema"
// @Router /plans/import [post]
func (h *PlanHandler) ImportPlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req ImportPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	plan, err := h.planService.Import(c.Request.Context(), userID, service.ImportPlanInput{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		Plan:        *req.Plan,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapPlanToResponse(plan))
}

// ListPlans godoc
// @Summary List my plans
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 200 {array} PlanSummaryResponse
// @Router /plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	plans, err := h.planService.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlansToSummaries(plans))
}

// GetActivePlan godoc
// @Summary Get my active plan
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PlanResponse
// @Failure 404 {object} gin.H "No active plan"
// @Router /plans/active [get]
func (h *PlanHandler) GetActivePlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	plan, err := h.planService.GetActive(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// GetPlan godoc
// @Summary Get one plan
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Success 200 {object} PlanResponse
// @Failure 403 {object} gin.H "Plan belongs to someone else"
// @Failure 404 {object} gin.H "Plan not found"
// @Router /plans/{planId} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	plan, err := h.planService.Get(c.Request.Context(), userID, planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// ActivatePlan godoc
// @Summary Make a plan the active one
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Success 200 {object} PlanSummaryResponse
// @Router /plans/{planId}/activate [post]
func (h *PlanHandler) ActivatePlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	plan, err := h.planService.Activate(c.Request.Context(), userID, planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanToSummary(plan))
}

// UpdatePlan godoc
// @Summary Update a plan
// @Description Edits title, description, distance label, start or race date, or replaces the whole document. The embedded schedule is dropped when the weeks or dates change.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param body body UpdatePlanRequest true "Fields to change"
// @Success 200 {object} PlanResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 409 {object} gin.H "Plan changed concurrently"
// @Failure 422 {object} gin.H "Plan document failed validation"
// @Router /plans/{planId} [put]
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	var req UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	rec, err := h.planService.Update(c.Request.Context(), userID, planID, service.UpdatePlanInput{
		Title:         req.Title,
		Description:   req.Description,
		DistanceLabel: req.DistanceLabel,
		StartDate:     req.StartDate,
		RaceDate:      req.RaceDate,
		Plan:          req.Plan,
		Version:       req.Version,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(rec))
}

// Reflow godoc
// @Summary Reflow the plan after a missed session
// @Description Demotes past unfinished sessions to easy runs and carries a quality session planned on the missed date onto the next easy slot.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param body body ReflowRequest true "Missed date"
// @Success 200 {object} ReflowResponse
// @Failure 409 {object} gin.H "Plan changed concurrently"
// @Router /plans/{planId}/reflow [post]
func (h *PlanHandler) Reflow(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	var req ReflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	out, err := h.planService.Reflow(c.Request.Context(), userID, planID, req.MissedDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReflowResponse{
		Plan:        MapPlanToResponse(out.Plan),
		CarriedFrom: out.CarriedFrom,
		CarriedTo:   out.CarriedTo,
		Dropped:     out.Dropped,
		Demoted:     out.Demoted,
	})
}

// MarkSessionDone godoc
// @Summary Mark a session as done
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param sessionId path string true "Session id, e.g. 3-2"
// @Success 200 {object} PlanResponse
// @Failure 404 {object} gin.H "Session not found"
// @Failure 409 {object} gin.H "Session is not planned"
// @Router /plans/{planId}/sessions/{sessionId}/done [post]
func (h *PlanHandler) MarkSessionDone(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	plan, err := h.planService.MarkSessionDone(c.Request.Context(), userID, planID, c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// AddHolidays godoc
// @Summary Turn the sessions on some dates into rest
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param body body HolidaysRequest true "Holiday dates"
// @Success 200 {object} PlanResponse
// @Router /plans/{planId}/holidays [post]
func (h *PlanHandler) AddHolidays(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	var req HolidaysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	plan, err := h.planService.AddHolidays(c.Request.Context(), userID, planID, req.Dates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// GetSchedule godoc
// @Summary Get the dated schedule of a plan
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param endDate query string false "Race day marker date, defaults to the goal race date"
// @Success 200 {object} ScheduleResponse
// @Router /plans/{planId}/schedule [get]
func (h *PlanHandler) GetSchedule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	schedule, err := h.planService.Schedule(c.Request.Context(), userID, planID, c.Query("endDate"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ScheduleResponse{PlanID: planID.Hex(), Schedule: schedule})
}

// RebuildSchedule godoc
// @Summary Re-derive the schedule from the plan weeks
// @Description Discards manual moves and embeds a freshly built schedule.
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Success 200 {object} ScheduleResponse
// @Router /plans/{planId}/schedule/rebuild [post]
func (h *PlanHandler) RebuildSchedule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	var req RebuildScheduleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	plan, err := h.planService.RebuildSchedule(c.Request.Context(), userID, planID, req.EndDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ScheduleResponse{PlanID: planID.Hex(), Schedule: plan.Data.Schedule})
}

// MoveSession godoc
// @Summary Move a scheduled session to another date
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param body body MoveSessionRequest true "Session to move"
// @Success 200 {object} ScheduleResponse
// @Failure 404 {object} gin.H "No such scheduled session"
// @Router /plans/{planId}/schedule/move [post]
func (h *PlanHandler) MoveSession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	var req MoveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	plan, err := h.planService.MoveSession(c.Request.Context(), userID, planID, req.FromDate, req.Type, req.ToDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ScheduleResponse{PlanID: planID.Hex(), Schedule: plan.Data.Schedule})
}

// ExportPlan godoc
// @Summary Export a plan as JSON to object storage
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Success 200 {object} service.PlanExport
// @Failure 503 {object} gin.H "Export storage not configured"
// @Router /plans/{planId}/export [post]
func (h *PlanHandler) ExportPlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	export, err := h.planService.Export(c.Request.Context(), userID, planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, export)
}
