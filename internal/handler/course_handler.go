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

type courseManager interface {
	CreateCourse(ctx context.Context, userID string, req dto.CreateCourseRequest) (*models.Course, error)
	GetCourse(ctx context.Context, userID, courseID string) (*models.Course, error)
	ListCourses(ctx context.Context, userID string, status models.CourseStatus) ([]models.Course, error)
	ArchiveCourse(ctx context.Context, userID, courseID string) error
	ListTopics(ctx context.Context, userID, courseID string) ([]models.Topic, error)
	UpdateTopic(ctx context.Context, userID, topicID string, req dto.UpdateTopicRequest) (*models.Topic, error)
	GetPreferences(ctx context.Context, userID string) (*models.SchedulePreferences, error)
	UpsertPreferences(ctx context.Context, userID string, req dto.UpsertPreferencesRequest) (*models.SchedulePreferences, error)
}

// CourseHandler exposes course, topic, and preference endpoints.
type CourseHandler struct {
	service courseManager
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// Create godoc
// @Summary Register a course with its exam date
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}
	course, err := h.service.CreateCourse(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// List godoc
// @Summary List the caller's courses
// @Tags Courses
// @Produce json
// @Param status query string false "Filter by status" Enums(active, archived)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	courses, err := h.service.ListCourses(c.Request.Context(), claims.UserID, models.CourseStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Get godoc
// @Summary Get one of the caller's courses
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	course, err := h.service.GetCourse(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Archive godoc
// @Summary Archive a course
// @Tags Courses
// @Param id path string true "Course ID"
// @Success 204
// @Security BearerAuth
// @Router /courses/{id} [delete]
func (h *CourseHandler) Archive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.ArchiveCourse(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Topics godoc
// @Summary List topics of a course
// @Tags Topics
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/topics [get]
func (h *CourseHandler) Topics(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	topics, err := h.service.ListTopics(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topics, nil)
}

// UpdateTopic godoc
// @Summary Update a topic's owner-mutable fields
// @Tags Topics
// @Accept json
// @Produce json
// @Param id path string true "Topic ID"
// @Param payload body dto.UpdateTopicRequest true "Topic patch"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /topics/{id} [patch]
func (h *CourseHandler) UpdateTopic(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid topic payload"))
		return
	}
	topic, err := h.service.UpdateTopic(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// Preferences godoc
// @Summary Get the caller's schedule preferences
// @Tags Preferences
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /preferences [get]
func (h *CourseHandler) Preferences(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	prefs, err := h.service.GetPreferences(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// UpsertPreferences godoc
// @Summary Set the caller's schedule preferences
// @Tags Preferences
// @Accept json
// @Produce json
// @Param payload body dto.UpsertPreferencesRequest true "Preferences payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /preferences [put]
func (h *CourseHandler) UpsertPreferences(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preferences payload"))
		return
	}
	prefs, err := h.service.UpsertPreferences(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}
