package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alcyxob/run-planner/internal/domain"
	"alcyxob/run-planner/internal/planner"
	"alcyxob/run-planner/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "handler-secret"

// Stubs embed the service interfaces; calling a method a test did not
// override panics, which keeps each test honest about what it touches.
type stubAuthService struct {
	service.AuthService
}

func (s *stubAuthService) Profile(_ context.Context, userID primitive.ObjectID) (*domain.User, error) {
	return &domain.User{ID: userID, Name: "Sam", Email: "sam@example.com"}, nil
}

type stubPlanService struct {
	service.PlanService
	get    func(userID, planID primitive.ObjectID) (*domain.PlanRecord, error)
	reflow func(planID primitive.ObjectID, missed string) (*service.ReflowOutcome, error)
	imp    func(in service.ImportPlanInput) (*domain.PlanRecord, error)
	update func(planID primitive.ObjectID, in service.UpdatePlanInput) (*domain.PlanRecord, error)
	gen    func(in service.GeneratePlanInput) (*domain.PlanRecord, error)
}

func (s *stubPlanService) Generate(_ context.Context, _ primitive.ObjectID, in service.GeneratePlanInput) (*domain.PlanRecord, error) {
	return s.gen(in)
}

func (s *stubPlanService) Update(_ context.Context, _, planID primitive.ObjectID, in service.UpdatePlanInput) (*domain.PlanRecord, error) {
	return s.update(planID, in)
}

func (s *stubPlanService) Get(_ context.Context, userID, planID primitive.ObjectID) (*domain.PlanRecord, error) {
	return s.get(userID, planID)
}

func (s *stubPlanService) Reflow(_ context.Context, _, planID primitive.ObjectID, missed string) (*service.ReflowOutcome, error) {
	return s.reflow(planID, missed)
}

func (s *stubPlanService) Import(_ context.Context, _ primitive.ObjectID, in service.ImportPlanInput) (*domain.PlanRecord, error) {
	return s.imp(in)
}

type stubLinkService struct {
	service.LinkService
	unlinkKey      *planner.SessionKey
	unlinkActivity int64
	unlinkErr      error
}

func (s *stubLinkService) Unlink(_ context.Context, _, _ primitive.ObjectID, key *planner.SessionKey, activityID int64) error {
	s.unlinkKey, s.unlinkActivity = key, activityID
	return s.unlinkErr
}

type stubSettingsService struct {
	service.SettingsService
	saved []int
}

func (s *stubSettingsService) SaveWeekdays(_ context.Context, _ primitive.ObjectID, weekdays []int) (planner.DayMap, error) {
	s.saved = weekdays
	return planner.DayMapFromWeekdays(weekdays), nil
}

type stubStravaService struct {
	service.StravaService
	health     *service.StravaHealth
	err        error
	pushPlanID primitive.ObjectID
	pushLimit  int
}

func (s *stubStravaService) Health(context.Context, primitive.ObjectID) (*service.StravaHealth, error) {
	return s.health, s.err
}

func (s *stubStravaService) PushPlan(_ context.Context, _, planID primitive.ObjectID, limit int) ([]service.PushedWorkout, error) {
	s.pushPlanID, s.pushLimit = planID, limit
	if s.err != nil {
		return nil, s.err
	}
	return []service.PushedWorkout{{SessionDate: "2025-01-09", SessionType: planner.SessionEasy, ActivityID: 77}}, nil
}

func newTestRouter(plans service.PlanService, links service.LinkService, settings service.SettingsService) *gin.Engine {
	return newStravaTestRouter(plans, links, settings, nil)
}

func newStravaTestRouter(plans service.PlanService, links service.LinkService, settings service.SettingsService, strava service.StravaService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, testSecret, &stubAuthService{}, plans, nil, links, settings, strava)
	return router
}

func signedToken(t *testing.T, userID primitive.ObjectID, expires time.Time) string {
	t.Helper()
	claims := &service.JWTClaims{
		UserID: userID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware(t *testing.T) {
	userID := primitive.NewObjectID()
	router := newTestRouter(nil, nil, nil)

	rr := doRequest(t, router, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/api/v1/me", signedToken(t, userID, time.Now().Add(-time.Minute)), nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "expired")

	rr = doRequest(t, router, http.MethodGet, "/api/v1/me", signedToken(t, userID, time.Now().Add(time.Hour)), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var me UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, userID.Hex(), me.ID)
	assert.Equal(t, "sam@example.com", me.Email)
}

func TestPingAndMetrics(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	rr := doRequest(t, router, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "run_planner_http_request_duration_seconds")
}

func TestGetPlan_ErrorMapping(t *testing.T) {
	userID := primitive.NewObjectID()
	token := signedToken(t, userID, time.Now().Add(time.Hour))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", service.ErrPlanNotFound, http.StatusNotFound},
		{"other user", service.ErrPlanAccessDenied, http.StatusForbidden},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans := &stubPlanService{get: func(_, _ primitive.ObjectID) (*domain.PlanRecord, error) {
				return nil, tt.err
			}}
			router := newTestRouter(plans, nil, nil)
			rr := doRequest(t, router, http.MethodGet, "/api/v1/plans/"+primitive.NewObjectID().Hex(), token, nil)
			assert.Equal(t, tt.want, rr.Code)
		})
	}

	router := newTestRouter(&stubPlanService{}, nil, nil)
	rr := doRequest(t, router, http.MethodGet, "/api/v1/plans/not-an-id", token, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGeneratePlanHandler_RaceTooFarAway(t *testing.T) {
	plans := &stubPlanService{gen: func(in service.GeneratePlanInput) (*domain.PlanRecord, error) {
		assert.Equal(t, "2030-06-01", in.RaceDate)
		_, err := planner.New().Generate(planner.PlanParams{StartDate: "2025-01-06", RaceDate: in.RaceDate, DistanceKM: in.DistanceKM})
		return nil, err
	}}
	router := newTestRouter(plans, nil, nil)
	token := signedToken(t, primitive.NewObjectID(), time.Now().Add(time.Hour))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/plans/generate", token, GeneratePlanRequest{
		RaceDate:   "2030-06-01",
		DistanceKM: 42.2,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "limited to 52")
}

func TestReflowHandler(t *testing.T) {
	userID := primitive.NewObjectID()
	planID := primitive.NewObjectID()
	plans := &stubPlanService{reflow: func(id primitive.ObjectID, missed string) (*service.ReflowOutcome, error) {
		assert.Equal(t, planID, id)
		assert.Equal(t, "2025-01-15", missed)
		return &service.ReflowOutcome{
			Plan:    &domain.PlanRecord{ID: planID, UserID: userID, Version: 4},
			Dropped: true,
			Demoted: 3,
		}, nil
	}}
	router := newTestRouter(plans, nil, nil)
	token := signedToken(t, userID, time.Now().Add(time.Hour))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/plans/"+planID.Hex()+"/reflow", token, ReflowRequest{MissedDate: "2025-01-15"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp ReflowResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Dropped)
	assert.Equal(t, 3, resp.Demoted)
	assert.Equal(t, int64(4), resp.Plan.Version)

	rr = doRequest(t, router, http.MethodPost, "/api/v1/plans/"+planID.Hex()+"/reflow", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestImportHandler_ValidationFailure(t *testing.T) {
	plans := &stubPlanService{imp: func(service.ImportPlanInput) (*domain.PlanRecord, error) {
		return nil, planner.Validate(&planner.PlanDocument{Goal: planner.Goal{Units: planner.UnitsMetric}})
	}}
	router := newTestRouter(plans, nil, nil)
	token := signedToken(t, primitive.NewObjectID(), time.Now().Add(time.Hour))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/plans/import", token, map[string]any{
		"plan": map[string]any{"goal": map[string]any{"distance_km": 0}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var resp ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, "goal.distance_km", resp.Violations[0].Field)

	rr = doRequest(t, router, http.MethodPost, "/api/v1/plans/import", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteLinkHandler(t *testing.T) {
	links := &stubLinkService{}
	router := newTestRouter(nil, links, nil)
	token := signedToken(t, primitive.NewObjectID(), time.Now().Add(time.Hour))
	base := "/api/v1/plans/" + primitive.NewObjectID().Hex() + "/links"

	rr := doRequest(t, router, http.MethodDelete, base+"?sessionDate=2025-01-07&sessionType=tempo", token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, links.unlinkKey)
	assert.Equal(t, planner.SessionKey{Date: "2025-01-07", Type: planner.SessionTempo}, *links.unlinkKey)

	rr = doRequest(t, router, http.MethodDelete, base+"?activityId=42", token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Nil(t, links.unlinkKey)
	assert.Equal(t, int64(42), links.unlinkActivity)

	links.unlinkErr = service.ErrLinkNotFound
	rr = doRequest(t, router, http.MethodDelete, base+"?activityId=42", token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, router, http.MethodDelete, base+"?activityId=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPutDayMapHandler(t *testing.T) {
	settings := &stubSettingsService{}
	router := newTestRouter(nil, nil, settings)
	token := signedToken(t, primitive.NewObjectID(), time.Now().Add(time.Hour))

	rr := doRequest(t, router, http.MethodPut, "/api/v1/settings/day-map", token, DayMapRequest{Weekdays: []int{0, 2, 6}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []int{0, 2, 6}, settings.saved)
	var resp DayMapResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.DayMap[planner.SessionLong])

	rr = doRequest(t, router, http.MethodPut, "/api/v1/settings/day-map", token, DayMapRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdatePlanHandler(t *testing.T) {
	userID := primitive.NewObjectID()
	planID := primitive.NewObjectID()
	var got service.UpdatePlanInput
	plans := &stubPlanService{update: func(id primitive.ObjectID, in service.UpdatePlanInput) (*domain.PlanRecord, error) {
		assert.Equal(t, planID, id)
		got = in
		return &domain.PlanRecord{ID: planID, UserID: userID, Title: *in.Title, Version: 5}, nil
	}}
	router := newTestRouter(plans, nil, nil)
	token := signedToken(t, userID, time.Now().Add(time.Hour))
	path := "/api/v1/plans/" + planID.Hex()

	rr := doRequest(t, router, http.MethodPut, path, token, map[string]any{
		"title":    "Spring 10K",
		"raceDate": "2025-03-16",
		"version":  4,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, got.RaceDate)
	assert.Equal(t, "2025-03-16", *got.RaceDate)
	require.NotNil(t, got.Version)
	assert.Equal(t, int64(4), *got.Version)
	assert.Nil(t, got.Description)
	assert.Nil(t, got.Plan)
	var resp PlanResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Spring 10K", resp.Title)
	assert.Equal(t, int64(5), resp.Version)

	plans.update = func(primitive.ObjectID, service.UpdatePlanInput) (*domain.PlanRecord, error) {
		return nil, service.ErrPlanConflict
	}
	rr = doRequest(t, router, http.MethodPut, path, token, map[string]any{"title": "Late"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	plans.update = func(primitive.ObjectID, service.UpdatePlanInput) (*domain.PlanRecord, error) {
		return nil, service.ErrInvalidInput
	}
	rr = doRequest(t, router, http.MethodPut, path, token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, router, http.MethodPut, path, token, map[string]any{"version": "four"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStravaHandlers(t *testing.T) {
	strava := &stubStravaService{health: &service.StravaHealth{OK: true, AthleteID: 4242}}
	router := newStravaTestRouter(nil, nil, nil, strava)
	token := signedToken(t, primitive.NewObjectID(), time.Now().Add(time.Hour))

	rr := doRequest(t, router, http.MethodGet, "/api/v1/strava/health", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var health service.StravaHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.True(t, health.OK)
	assert.Equal(t, int64(4242), health.AthleteID)

	planID := primitive.NewObjectID()
	rr = doRequest(t, router, http.MethodPost, "/api/v1/strava/push", token, PushPlanRequest{PlanID: planID.Hex(), Limit: 10})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, planID, strava.pushPlanID)
	assert.Equal(t, 10, strava.pushLimit)
	var pushed PushPlanResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pushed))
	require.Len(t, pushed.Pushed, 1)
	assert.Equal(t, int64(77), pushed.Pushed[0].ActivityID)

	rr = doRequest(t, router, http.MethodPost, "/api/v1/strava/push", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, primitive.NilObjectID, strava.pushPlanID, "no body pushes the active plan")
	assert.Equal(t, 0, strava.pushLimit)

	rr = doRequest(t, router, http.MethodPost, "/api/v1/strava/push", token, PushPlanRequest{Limit: 51})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = doRequest(t, router, http.MethodPost, "/api/v1/strava/push", token, PushPlanRequest{PlanID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	strava.err = service.ErrStravaDisabled
	rr = doRequest(t, router, http.MethodGet, "/api/v1/strava/health", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	rr = doRequest(t, router, http.MethodPost, "/api/v1/strava/push", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
