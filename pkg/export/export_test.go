package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymate/studyplan-api/internal/dto"
)

func samplePlan() *dto.PlanView {
	return &dto.PlanView{
		PlanVersion:      3,
		ValidationPassed: true,
		Days: []dto.PlanDayView{
			{
				Date:       "2026-08-27",
				TotalHours: 2.5,
				Items: []dto.PlanItemView{
					{TopicID: "t1", TopicTitle: "Limits", CourseID: "c1", CourseTitle: "Calculus", Hours: 1.5, SequenceOrder: 1},
					{TopicID: "t2", TopicTitle: "Derivatives", CourseID: "c1", CourseTitle: "Calculus", Hours: 1, SequenceOrder: 2, IsReview: true},
				},
			},
		},
	}
}

func TestCSVRenderPlan(t *testing.T) {
	data, err := NewCSVExporter().RenderPlan(samplePlan())

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,course,topic,hours,order,review", lines[0])
	assert.Equal(t, "2026-08-27,Calculus,Limits,1.50,1,false", lines[1])
	assert.Equal(t, "2026-08-27,Calculus,Derivatives,1.00,2,true", lines[2])
}

func TestCSVRenderPlanNil(t *testing.T) {
	_, err := NewCSVExporter().RenderPlan(nil)
	require.Error(t, err)
}

func TestPDFRenderPlan(t *testing.T) {
	data, err := NewPDFExporter().RenderPlan(samplePlan(), "Study Plan")

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}
