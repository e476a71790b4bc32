package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/studymate/studyplan-api/internal/dto"
)

// PDFExporter renders a study plan into a day-by-day PDF document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderPlan creates a PDF with one section per plan day.
func (e *PDFExporter) RenderPlan(view *dto.PlanView, title string) ([]byte, error) {
	if view == nil {
		return nil, fmt.Errorf("plan view is nil")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Plan version %d", view.PlanVersion), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	widths := []float64{55, 95, 20, 20}
	headers := []string{"Course", "Topic", "Hours", "Review"}

	for _, day := range view.Days {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s  (%.1f h)", day.Date, day.TotalHours), "", 1, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 9)
		for i, header := range headers {
			pdf.CellFormat(widths[i], 7, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, item := range day.Items {
			review := ""
			if item.IsReview {
				review = "yes"
			}
			pdf.CellFormat(widths[0], 6, item.CourseTitle, "1", 0, "", false, 0, "")
			pdf.CellFormat(widths[1], 6, item.TopicTitle, "1", 0, "", false, 0, "")
			pdf.CellFormat(widths[2], 6, fmt.Sprintf("%.2f", item.Hours), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[3], 6, review, "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(3)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
