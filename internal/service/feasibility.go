package service

import (
	"fmt"
	"math"
	"time"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/models"
	"github.com/studymate/studyplan-api/pkg/dates"
)

const (
	minItemHours = 0.25
	maxItemHours = 3.0

	minCourseShareHours = 0.5
	courseShareCap      = 0.70
	dominantShareCap    = 0.80
)

// AnalyzeFeasibility computes the time-budget verdict for a set of pending
// topics against the enumerated eligible dates and daily capacity.
func AnalyzeFeasibility(topics []models.Topic, eligibleDates []time.Time, capacity float64) dto.FeasibilityReport {
	var required float64
	for _, topic := range topics {
		required += topic.EstimatedHours
	}
	minRequired := float64(len(topics)) * minItemHours
	available := float64(len(eligibleDates)) * capacity

	coverage := 1.0
	if required > 0 {
		coverage = available / required
	}

	report := dto.FeasibilityReport{
		TotalRequiredHours:  required,
		MinRequiredHours:    minRequired,
		TotalAvailableHours: available,
		CoverageRatio:       coverage,
		Feasible:            available >= minRequired,
		ShortfallHours:      math.Max(0, minRequired-available),
	}
	if !report.Feasible {
		report.Suggestions = []string{
			"reduce the number of topics to study",
			"extend the study horizon or move exam dates",
			"increase daily study hours in your preferences",
		}
	}
	return report
}

// CourseLoad aggregates the scheduling inputs of one course.
type CourseLoad struct {
	Course      models.Course
	Topics      []models.Topic
	DaysLeft    int
	HoursNeeded float64
	MissedCount int
	Urgency     float64
}

// missedBoost is added to a course's urgency per missed item when
// rescheduling.
const missedBoost = 8.0

// ComputeUrgency scores how urgently a course needs study time. Tuning
// constants are policy, tweakable without breaking callers.
func ComputeUrgency(load *CourseLoad) float64 {
	n := len(load.Topics)
	if n == 0 {
		load.Urgency = 0
		return 0
	}

	var impSum, diffSum int
	for _, topic := range load.Topics {
		impSum += topic.ExamImportance
		diffSum += topic.DifficultyWeight
	}
	avgImp := float64(impSum) / float64(n)
	avgDiff := float64(diffSum) / float64(n)

	score := 40*timePressure(load.DaysLeft) +
		25*(load.HoursNeeded/math.Max(1, float64(load.DaysLeft))) +
		20*((avgImp-1)/4) +
		3*(avgDiff-3) +
		15*math.Min(float64(n)/15, 1)
	score += missedBoost * float64(load.MissedCount)

	load.Urgency = score
	return score
}

// timePressure maps days-left onto a decreasing [0.1, 1.0] scale. Bands:
// under a week 0.7-1.0, one to two weeks 0.4-0.7, beyond 0.1-0.4.
func timePressure(daysLeft int) float64 {
	switch {
	case daysLeft < 1:
		return 1.0
	case daysLeft < 7:
		return 1.0 - 0.3*float64(daysLeft-1)/6
	case daysLeft <= 14:
		return 0.7 - 0.3*float64(daysLeft-7)/7
	case daysLeft <= 90:
		return 0.4 - 0.3*float64(daysLeft-14)/76
	default:
		return 0.1
	}
}

// AllocateDailyBudgets splits one day's capacity across courses in
// proportion to urgency. Every course gets at least half an hour; no
// course takes more than 70% of the day, relaxed to 80% when one course
// holds the majority of total urgency.
func AllocateDailyBudgets(loads []CourseLoad, capacity float64) map[string]float64 {
	budgets := make(map[string]float64, len(loads))
	if len(loads) == 0 || capacity <= 0 {
		return budgets
	}

	var total float64
	for _, load := range loads {
		total += load.Urgency
	}
	if total <= 0 {
		even := capacity / float64(len(loads))
		for _, load := range loads {
			budgets[load.Course.ID] = even
		}
		return budgets
	}

	shareCap := courseShareCap
	for _, load := range loads {
		if load.Urgency/total > 0.5 {
			shareCap = dominantShareCap
			break
		}
	}

	for _, load := range loads {
		share := capacity * load.Urgency / total
		if share < minCourseShareHours {
			share = minCourseShareHours
		}
		if len(loads) > 1 && share > capacity*shareCap {
			share = capacity * shareCap
		}
		if share > capacity {
			share = capacity
		}
		budgets[load.Course.ID] = share
	}
	return budgets
}

// OrderTopics sorts a course's topics by 2*importance + difficulty
// descending, ties broken by original position.
func OrderTopics(topics []models.Topic) []models.Topic {
	ordered := make([]models.Topic, len(topics))
	copy(ordered, topics)
	// Stable insertion keeps the incoming order on ties.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && topicPriority(ordered[j]) > topicPriority(ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

func topicPriority(t models.Topic) int {
	return 2*t.ExamImportance + t.DifficultyWeight
}

// CompressHours scales per-topic hours by the coverage ratio when the plan
// is overloaded, never below the quarter-hour floor.
func CompressHours(hours, coverageRatio float64) float64 {
	if coverageRatio >= 1 {
		return hours
	}
	compressed := hours * coverageRatio
	if compressed < minItemHours {
		compressed = minItemHours
	}
	return compressed
}

// BuildCourseFeasibility renders the per-course diagnostics attached to
// infeasible verdicts.
func BuildCourseFeasibility(loads []CourseLoad) []dto.CourseFeasibility {
	out := make([]dto.CourseFeasibility, 0, len(loads))
	for _, load := range loads {
		cf := dto.CourseFeasibility{
			CourseID:      load.Course.ID,
			Title:         load.Course.Title,
			DaysLeft:      load.DaysLeft,
			TopicCount:    len(load.Topics),
			RequiredHours: load.HoursNeeded,
		}
		if load.Course.ExamDate != nil {
			cf.ExamDate = dates.Format(*load.Course.ExamDate)
		}
		out = append(out, cf)
	}
	return out
}

// PlanningHorizonDays is the number of days the scheduler looks ahead:
// up to the latest exam, capped.
func PlanningHorizonDays(loads []CourseLoad, capDays int) int {
	horizon := 0
	for _, load := range loads {
		if load.DaysLeft > horizon {
			horizon = load.DaysLeft
		}
	}
	if capDays > 0 && horizon > capDays {
		horizon = capDays
	}
	return horizon
}

// DescribeLoad is a compact log line for one course load.
func DescribeLoad(load CourseLoad) string {
	return fmt.Sprintf("%s: %d topics, %.1fh over %dd, urgency %.1f",
		load.Course.Title, len(load.Topics), load.HoursNeeded, load.DaysLeft, load.Urgency)
}
