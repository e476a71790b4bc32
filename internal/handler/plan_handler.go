package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/service"
	appErrors "github.com/studymate/studyplan-api/pkg/errors"
	"github.com/studymate/studyplan-api/pkg/response"
)

type planGenerator interface {
	Generate(ctx context.Context, userID string, req dto.GeneratePlanRequest) (*dto.GeneratePlanResponse, *dto.InfeasiblePayload, error)
	CurrentPlan(ctx context.Context, userID string) (*dto.PlanView, error)
}

// PlanHandler exposes study plan endpoints.
type PlanHandler struct {
	service planGenerator
}

// NewPlanHandler constructs the handler.
func NewPlanHandler(svc *service.PlanService) *PlanHandler {
	return &PlanHandler{service: svc}
}

// Generate godoc
// @Summary Generate a new study plan version
// @Description Schedules all unfinished topics of the caller's active courses. When the workload cannot fit the available days the infeasible diagnosis is returned with status 400 and nothing is persisted.
// @Tags Plans
// @Accept json
// @Produce json
// @Param payload body dto.GeneratePlanRequest false "Generation options"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} dto.InfeasiblePayload
// @Failure 429 {object} response.Envelope
// @Security BearerAuth
// @Router /plans/generate [post]
func (h *PlanHandler) Generate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.GeneratePlanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
			return
		}
	}

	result, infeasible, err := h.service.Generate(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if infeasible != nil {
		// The diagnosis is the contract here, not the error envelope.
		c.JSON(http.StatusBadRequest, infeasible)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Current godoc
// @Summary Get the caller's current study plan
// @Tags Plans
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /plans/current [get]
func (h *PlanHandler) Current(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.service.CurrentPlan(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
