package api

import (
	"net/http"
	"strconv"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/service"

	"github.com/gin-gonic/gin"
)

type LinkHandler struct {
	linkService service.LinkService
}

func NewLinkHandler(linkService service.LinkService) *LinkHandler {
	return &LinkHandler{linkService: linkService}
}

type CreateLinkRequest struct {
	SessionDate string              `json:"sessionDate" binding:"required"`
	SessionType planner.SessionType `json:"sessionType" binding:"required"`
	ActivityID  int64               `json:"activityId" binding:"required,gt=0"`
	MatchScore  *float64            `json:"matchScore" binding:"omitempty,gte=0,lte=100"`
}

type AutoMatchResponse struct {
	Created []domain.SessionLink `json:"created"`
}

// ListLinks godoc
// @Summary List the session links of a plan
// @Tags Links
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Success 200 {array} domain.SessionLink
// @Router /plans/{planId}/links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	links, err := h.linkService.List(c.Request.Context(), userID, planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// CreateLink godoc
// @Summary Link a scheduled session to a run
// @Description Creates the link, or moves it when the session or the run was linked before.
// @Tags Links
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param body body CreateLinkRequest true "Session key and activity"
// @Success 201 {object} domain.SessionLink
// @Failure 404 {object} gin.H "Session or activity not found"
// @Failure 409 {object} gin.H "Concurrent link"
// @Router /plans/{planId}/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	link, err := h.linkService.Link(c.Request.Context(), userID, planID, service.LinkInput{
		Session:    planner.SessionKey{Date: req.SessionDate, Type: req.SessionType},
		ActivityID: req.ActivityID,
		MatchScore: req.MatchScore,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// DeleteLink godoc
// @Summary Remove a link
// @Description Addressed either by sessionDate and sessionType or by activityId.
// @Tags Links
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param sessionDate query string false "Session date"
// @Param sessionType query string false "Session type"
// @Param activityId query int false "Activity id"
// @Success 204
// @Failure 404 {object} gin.H "Link not found"
// @Router /plans/{planId}/links [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}

	var key *planner.SessionKey
	var activityID int64
	switch {
	case c.Query("sessionDate") != "" && c.Query("sessionType") != "":
		key = &planner.SessionKey{Date: c.Query("sessionDate"), Type: planner.SessionType(c.Query("sessionType"))}
	case c.Query("activityId") != "":
		id, err := strconv.ParseInt(c.Query("activityId"), 10, 64)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid activityId format.")
			return
		}
		activityID = id
	}

	if err := h.linkService.Unlink(c.Request.Context(), userID, planID, key, activityID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetActivityCandidates godoc
// @Summary Rank the runs that could fulfil a scheduled session
// @Tags Links
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param sessionDate query string true "Session date"
// @Param sessionType query string true "Session type"
// @Success 200 {array} planner.ActivityCandidate
// @Router /plans/{planId}/candidates [get]
func (h *LinkHandler) GetActivityCandidates(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	date, typ := c.Query("sessionDate"), c.Query("sessionType")
	if date == "" || typ == "" {
		abortWithError(c, http.StatusBadRequest, "sessionDate and sessionType are required.")
		return
	}

	candidates, err := h.linkService.ActivityCandidates(c.Request.Context(), userID, planID,
		planner.SessionKey{Date: date, Type: planner.SessionType(typ)})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidates)
}

// AutoMatch godoc
// @Summary Link unlinked sessions to their best matching runs
// @Tags Links
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Success 200 {object} AutoMatchResponse
// @Router /plans/{planId}/auto-match [post]
func (h *LinkHandler) AutoMatch(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	created, err := h.linkService.AutoMatch(c.Request.Context(), userID, planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AutoMatchResponse{Created: created})
}
