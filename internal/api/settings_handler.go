package api

import (
	"net/http"

	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/service"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	settingsService service.SettingsService
}

func NewSettingsHandler(settingsService service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// DayMapRequest carries either an explicit map or the weekdays to run on
// (0 = Monday).
type DayMapRequest struct {
	DayMap   planner.DayMap `json:"dayMap"`
	Weekdays []int          `json:"weekdays"`
}

type DayMapResponse struct {
	DayMap planner.DayMap `json:"dayMap"`
}

// GetDayMap godoc
// @Summary Get my weekday preferences
// @Tags Settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DayMapResponse
// @Router /settings/day-map [get]
func (h *SettingsHandler) GetDayMap(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	m, err := h.settingsService.GetDayMap(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DayMapResponse{DayMap: m})
}

// PutDayMap godoc
// @Summary Save my weekday preferences
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body DayMapRequest true "Day map or weekdays"
// @Success 200 {object} DayMapResponse
// @Failure 422 {object} ValidationErrorResponse "Unknown type or weekday out of range"
// @Router /settings/day-map [put]
func (h *SettingsHandler) PutDayMap(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req DayMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	var (
		m   planner.DayMap
		err error
	)
	switch {
	case req.DayMap != nil:
		m, err = h.settingsService.SaveDayMap(c.Request.Context(), userID, req.DayMap)
	case len(req.Weekdays) > 0:
		m, err = h.settingsService.SaveWeekdays(c.Request.Context(), userID, req.Weekdays)
	default:
		abortWithError(c, http.StatusBadRequest, "Either dayMap or weekdays is required.")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DayMapResponse{DayMap: m})
}
