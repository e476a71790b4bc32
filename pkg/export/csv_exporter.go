package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/studymate/studyplan-api/internal/dto"
)

var planHeaders = []string{"date", "course", "topic", "hours", "order", "review"}

// CSVExporter renders a study plan into CSV bytes, one row per plan item.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// RenderPlan produces CSV encoded bytes for the plan view.
func (e *CSVExporter) RenderPlan(view *dto.PlanView) ([]byte, error) {
	if view == nil {
		return nil, fmt.Errorf("plan view is nil")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(planHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, day := range view.Days {
		for _, item := range day.Items {
			record := []string{
				day.Date,
				item.CourseTitle,
				item.TopicTitle,
				strconv.FormatFloat(item.Hours, 'f', 2, 64),
				strconv.Itoa(item.SequenceOrder),
				strconv.FormatBool(item.IsReview),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
