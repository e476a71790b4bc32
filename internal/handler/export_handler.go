package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/service"
	"github.com/studymate/studyplan-api/pkg/config"
	appErrors "github.com/studymate/studyplan-api/pkg/errors"
	"github.com/studymate/studyplan-api/pkg/export"
	"github.com/studymate/studyplan-api/pkg/response"
)

type planViewer interface {
	CurrentPlan(ctx context.Context, userID string) (*dto.PlanView, error)
}

// ExportHandler renders the current plan as CSV or PDF downloads.
type ExportHandler struct {
	plans planViewer
	csv   *export.CSVExporter
	pdf   *export.PDFExporter
	cfg   config.ExportConfig
}

// NewExportHandler constructs the handler.
func NewExportHandler(plans *service.PlanService, cfg config.ExportConfig) *ExportHandler {
	return &ExportHandler{
		plans: plans,
		csv:   export.NewCSVExporter(),
		pdf:   export.NewPDFExporter(),
		cfg:   cfg,
	}
}

// Export godoc
// @Summary Download the current study plan
// @Tags Plans
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "Export format" Enums(csv, pdf) default(csv)
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /plans/current/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if !h.cfg.Enabled {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "plan export is disabled"))
		return
	}

	view, err := h.plans.CurrentPlan(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		data, err := h.csv.RenderPlan(view)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=study-plan-v%d.csv", view.PlanVersion))
		c.Data(http.StatusOK, "text/csv", data)
	case "pdf":
		data, err := h.pdf.RenderPlan(view, "Study Plan")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=study-plan-v%d.pdf", view.PlanVersion))
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}
