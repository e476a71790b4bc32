package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymate/studyplan-api/internal/dto"
	internalmiddleware "github.com/studymate/studyplan-api/internal/middleware"
	"github.com/studymate/studyplan-api/internal/models"
	appErrors "github.com/studymate/studyplan-api/pkg/errors"
)

type planGeneratorMock struct {
	resp       *dto.GeneratePlanResponse
	infeasible *dto.InfeasiblePayload
	view       *dto.PlanView
	err        error
	capturedID string
}

func (m *planGeneratorMock) Generate(ctx context.Context, userID string, req dto.GeneratePlanRequest) (*dto.GeneratePlanResponse, *dto.InfeasiblePayload, error) {
	m.capturedID = userID
	return m.resp, m.infeasible, m.err
}

func (m *planGeneratorMock) CurrentPlan(ctx context.Context, userID string) (*dto.PlanView, error) {
	m.capturedID = userID
	return m.view, m.err
}

func authedContext(t *testing.T, method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent})
	return c, w
}

func TestPlanGenerateSuccess(t *testing.T) {
	mockSvc := &planGeneratorMock{resp: &dto.GeneratePlanResponse{Success: true, PlanVersion: 2}}
	handler := &PlanHandler{service: mockSvc}
	c, w := authedContext(t, http.MethodPost, "/plans/generate", []byte(`{"reschedule":true}`))

	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", mockSvc.capturedID)
	assert.Contains(t, w.Body.String(), `"plan_version":2`)
}

func TestPlanGenerateInfeasible(t *testing.T) {
	mockSvc := &planGeneratorMock{infeasible: &dto.InfeasiblePayload{
		Error:          "insufficient_time",
		ShortfallHours: 12.5,
		Suggestions:    []string{"increase daily study hours"},
	}}
	handler := &PlanHandler{service: mockSvc}
	c, w := authedContext(t, http.MethodPost, "/plans/generate", nil)

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var payload dto.InfeasiblePayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "insufficient_time", payload.Error)
	assert.Equal(t, 12.5, payload.ShortfallHours)
}

func TestPlanGenerateRateLimited(t *testing.T) {
	mockSvc := &planGeneratorMock{err: appErrors.ErrModelRateLimited}
	handler := &PlanHandler{service: mockSvc}
	c, w := authedContext(t, http.MethodPost, "/plans/generate", nil)

	handler.Generate(c)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "MODEL_RATE_LIMITED")
}

func TestPlanGenerateUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &PlanHandler{service: &planGeneratorMock{}}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/plans/generate", nil)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlanCurrent(t *testing.T) {
	mockSvc := &planGeneratorMock{view: &dto.PlanView{PlanVersion: 4}}
	handler := &PlanHandler{service: mockSvc}
	c, w := authedContext(t, http.MethodGet, "/plans/current", nil)

	handler.Current(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"plan_version":4`)
}

func TestPlanCurrentNotFound(t *testing.T) {
	mockSvc := &planGeneratorMock{err: appErrors.Clone(appErrors.ErrNotFound, "no study plan generated yet")}
	handler := &PlanHandler{service: mockSvc}
	c, w := authedContext(t, http.MethodGet, "/plans/current", nil)

	handler.Current(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}
