package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/models"
	"github.com/studymate/studyplan-api/internal/service"
	appErrors "github.com/studymate/studyplan-api/pkg/errors"
	"github.com/studymate/studyplan-api/pkg/response"
)

type topicExtractor interface {
	Extract(ctx context.Context, userID string, role models.UserRole, courseID string, req dto.ExtractTopicsRequest) (*dto.ExtractTopicsResponse, *dto.ExtractionInProgress, error)
}

// ExtractionHandler exposes the topic extraction endpoint.
type ExtractionHandler struct {
	service topicExtractor
}

// NewExtractionHandler constructs the handler.
func NewExtractionHandler(svc *service.ExtractionService) *ExtractionHandler {
	return &ExtractionHandler{service: svc}
}

// Extract godoc
// @Summary Extract topics from syllabus text
// @Description Runs the extraction pipeline synchronously. Returns 202 with the running job when another extraction already holds the course lock.
// @Tags Extraction
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.ExtractTopicsRequest true "Syllabus payload"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/extract-topics [post]
func (h *ExtractionHandler) Extract(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ExtractTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid extraction payload"))
		return
	}

	result, inProgress, err := h.service.Extract(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if inProgress != nil {
		response.Accepted(c, inProgress)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
