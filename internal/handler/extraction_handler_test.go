package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/models"
	appErrors "github.com/studymate/studyplan-api/pkg/errors"
)

type topicExtractorMock struct {
	resp       *dto.ExtractTopicsResponse
	inProgress *dto.ExtractionInProgress
	err        error
	courseID   string
	role       models.UserRole
}

func (m *topicExtractorMock) Extract(ctx context.Context, userID string, role models.UserRole, courseID string, req dto.ExtractTopicsRequest) (*dto.ExtractTopicsResponse, *dto.ExtractionInProgress, error) {
	m.courseID = courseID
	m.role = role
	return m.resp, m.inProgress, m.err
}

func TestExtractHandlerSuccess(t *testing.T) {
	mockSvc := &topicExtractorMock{resp: &dto.ExtractTopicsResponse{Success: true, TopicsCount: 12}}
	handler := &ExtractionHandler{service: mockSvc}
	c, w := authedContext(t, http.MethodPost, "/courses/course-1/extract-topics", []byte(`{"text":"Week 1: Limits"}`))
	c.Params = append(c.Params, gin.Param{Key: "id", Value: "course-1"})

	handler.Extract(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "course-1", mockSvc.courseID)
	assert.Equal(t, models.RoleStudent, mockSvc.role)
	assert.Contains(t, w.Body.String(), `"topics_count":12`)
}

func TestExtractHandlerInProgress(t *testing.T) {
	mockSvc := &topicExtractorMock{inProgress: &dto.ExtractionInProgress{Status: "in_progress", JobID: "run-1"}}
	handler := &ExtractionHandler{service: mockSvc}
	c, w := authedContext(t, http.MethodPost, "/courses/course-1/extract-topics", []byte(`{"text":"Week 1: Limits"}`))

	handler.Extract(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"job_id":"run-1"`)
}

func TestExtractHandlerQuotaExhausted(t *testing.T) {
	mockSvc := &topicExtractorMock{err: appErrors.ErrQuotaExhausted}
	handler := &ExtractionHandler{service: mockSvc}
	c, w := authedContext(t, http.MethodPost, "/courses/course-1/extract-topics", []byte(`{"text":"Week 1: Limits"}`))

	handler.Extract(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "QUOTA_EXHAUSTED")
}

func TestExtractHandlerBadPayload(t *testing.T) {
	handler := &ExtractionHandler{service: &topicExtractorMock{}}
	c, w := authedContext(t, http.MethodPost, "/courses/course-1/extract-topics", []byte(`{"text":`))

	handler.Extract(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
