package service

import (
	"fmt"
	"time"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/models"
	"github.com/studymate/studyplan-api/pkg/dates"
)

// overloadWarningFactor flags days loaded beyond 1.5x the daily capacity.
const overloadWarningFactor = 1.5

// ValidationContext carries everything the validator needs, independent of
// how the proposal was produced.
type ValidationContext struct {
	EligibleDates map[string]bool
	ExamDates     map[string]time.Time
	TopicCourse   map[string]string
	Prerequisites map[string][]string
	Capacity      float64
	TopicCount    int
}

// NewValidationContext assembles a context from the scheduler's working
// set.
func NewValidationContext(loads []CourseLoad, eligible []time.Time, capacity float64) ValidationContext {
	ctx := ValidationContext{
		EligibleDates: make(map[string]bool, len(eligible)),
		ExamDates:     make(map[string]time.Time, len(loads)),
		TopicCourse:   map[string]string{},
		Prerequisites: map[string][]string{},
		Capacity:      capacity,
	}
	for _, day := range eligible {
		ctx.EligibleDates[dates.Format(day)] = true
	}
	for _, load := range loads {
		if load.Course.ExamDate != nil {
			ctx.ExamDates[load.Course.ID] = dates.Truncate(*load.Course.ExamDate)
		}
		for _, topic := range load.Topics {
			ctx.TopicCourse[topic.ID] = load.Course.ID
			if len(topic.Prerequisites) > 0 {
				ctx.Prerequisites[topic.ID] = topic.Prerequisites
			}
			ctx.TopicCount++
		}
	}
	return ctx
}

// ValidationResult separates hard failures from tolerated warnings.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the proposal passed.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

type placement struct {
	date     time.Time
	sequence int
}

// ValidateProposal checks a proposed schedule against the context. It never
// mutates the proposal.
func ValidateProposal(proposal *dto.ScheduleProposal, vctx ValidationContext) ValidationResult {
	var result ValidationResult

	// First-time placements keyed by topic and parsed civil date. The
	// proposal's day order is untrusted; only dates count.
	placed := map[string]placement{}
	for _, day := range proposal.Days {
		dayDate, err := dates.Parse(day.Date)
		if err != nil {
			continue
		}
		for _, item := range day.Items {
			if item.IsReview {
				continue
			}
			prev, ok := placed[item.TopicID]
			if !ok || dayDate.Before(prev.date) || (dayDate.Equal(prev.date) && item.SequenceOrder < prev.sequence) {
				placed[item.TopicID] = placement{date: dayDate, sequence: item.SequenceOrder}
			}
		}
	}

	for _, day := range proposal.Days {
		dayDate, err := dates.Parse(day.Date)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("day %q is not a valid date", day.Date))
			continue
		}
		if !vctx.EligibleDates[day.Date] {
			result.Errors = append(result.Errors, fmt.Sprintf("day %s is not an eligible study date", day.Date))
		}

		var dayHours float64
		for _, item := range day.Items {
			dayHours += item.Hours

			courseID, known := vctx.TopicCourse[item.TopicID]
			if !known {
				result.Errors = append(result.Errors, fmt.Sprintf("unknown topic %s on %s", item.TopicID, day.Date))
				continue
			}
			if _, ok := vctx.ExamDates[item.CourseID]; !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("unknown course %s on %s", item.CourseID, day.Date))
			} else if item.CourseID != courseID {
				result.Errors = append(result.Errors, fmt.Sprintf("topic %s placed under course %s but belongs to %s", item.TopicID, item.CourseID, courseID))
			}
			if exam, ok := vctx.ExamDates[courseID]; ok && !dayDate.Before(exam) {
				result.Errors = append(result.Errors, fmt.Sprintf("topic %s scheduled on %s, on or after its exam", item.TopicID, day.Date))
			}

			if item.IsReview {
				continue
			}
			for _, prereq := range vctx.Prerequisites[item.TopicID] {
				pre, ok := placed[prereq]
				if !ok {
					result.Errors = append(result.Errors, fmt.Sprintf("prerequisite %s of topic %s is missing from the schedule", prereq, item.TopicID))
					continue
				}
				if pre.date.After(dayDate) {
					result.Errors = append(result.Errors, fmt.Sprintf("prerequisite %s of topic %s scheduled on a later day", prereq, item.TopicID))
				} else if pre.date.Equal(dayDate) && pre.sequence >= item.SequenceOrder {
					result.Errors = append(result.Errors, fmt.Sprintf("prerequisite %s of topic %s must come earlier on %s", prereq, item.TopicID, day.Date))
				}
			}
		}

		if vctx.Capacity > 0 && dayHours > vctx.Capacity*overloadWarningFactor {
			result.Warnings = append(result.Warnings, fmt.Sprintf("day %s carries %.1fh against a %.1fh capacity", day.Date, dayHours, vctx.Capacity))
		}
	}

	if vctx.TopicCount > 0 && len(placed) < vctx.TopicCount {
		result.Warnings = append(result.Warnings, fmt.Sprintf("only %d of %d topics scheduled", len(placed), vctx.TopicCount))
	}

	return result
}

// CountScheduledTopics returns how many distinct topics got a non-review
// placement.
func CountScheduledTopics(proposal *dto.ScheduleProposal) int {
	seen := map[string]bool{}
	for _, day := range proposal.Days {
		for _, item := range day.Items {
			if !item.IsReview {
				seen[item.TopicID] = true
			}
		}
	}
	return len(seen)
}

type fallbackCourse struct {
	load    *CourseLoad
	ordered []models.Topic
	exam    time.Time
	hasExam bool
}

func (fc *fallbackCourse) open(day time.Time, done map[string]bool) bool {
	if fc.hasExam && !day.Before(fc.exam) {
		return false
	}
	for _, topic := range fc.ordered {
		if !done[topic.ID] {
			return true
		}
	}
	return false
}

func (fc *fallbackCourse) nextReady(done map[string]bool) (models.Topic, bool) {
	for _, topic := range fc.ordered {
		if done[topic.ID] {
			continue
		}
		ready := true
		for _, prereq := range topic.Prerequisites {
			if !done[prereq] {
				ready = false
				break
			}
		}
		if ready {
			return topic, true
		}
	}
	return models.Topic{}, false
}

// FallbackSchedule is the deterministic last-resort scheduler. It allocates
// daily budgets by urgency share, walks the eligible dates in order, and on
// each date places the highest-priority prerequisite-ready topic from the
// course with the largest remaining share until the day is full.
func FallbackSchedule(loads []CourseLoad, eligible []time.Time, capacity, coverageRatio float64) *dto.ScheduleProposal {
	courses := make([]*fallbackCourse, 0, len(loads))
	for i := range loads {
		fc := &fallbackCourse{
			load:    &loads[i],
			ordered: OrderTopics(loads[i].Topics),
		}
		if loads[i].Course.ExamDate != nil {
			fc.exam = dates.Truncate(*loads[i].Course.ExamDate)
			fc.hasExam = true
		}
		courses = append(courses, fc)
	}

	proposal := &dto.ScheduleProposal{}
	done := map[string]bool{}
	total := totalTopics(loads)

	for _, day := range eligible {
		if len(done) == total {
			break
		}

		var active []*fallbackCourse
		var activeLoads []CourseLoad
		for _, fc := range courses {
			if fc.open(day, done) {
				active = append(active, fc)
				activeLoads = append(activeLoads, *fc.load)
			}
		}
		if len(active) == 0 {
			continue
		}
		budgets := AllocateDailyBudgets(activeLoads, capacity)

		planDay := dto.ProposalDay{Date: dates.Format(day)}
		sequence := 1
		remaining := capacity
		blocked := map[string]bool{}

		for remaining >= minItemHours {
			// Course with the largest remaining share, stable on ties.
			var pick *fallbackCourse
			for _, fc := range active {
				id := fc.load.Course.ID
				if blocked[id] || budgets[id] < minItemHours {
					continue
				}
				if pick == nil || budgets[id] > budgets[pick.load.Course.ID] {
					pick = fc
				}
			}
			if pick == nil {
				break
			}

			topic, ok := pick.nextReady(done)
			if !ok {
				blocked[pick.load.Course.ID] = true
				continue
			}

			hours := CompressHours(topic.EstimatedHours, coverageRatio)
			if hours > maxItemHours {
				hours = maxItemHours
			}
			if hours > remaining {
				hours = remaining
			}
			if hours < minItemHours {
				break
			}

			planDay.Items = append(planDay.Items, dto.ProposalItem{
				TopicID:       topic.ID,
				CourseID:      pick.load.Course.ID,
				Hours:         hours,
				SequenceOrder: sequence,
			})
			sequence++
			remaining -= hours
			budgets[pick.load.Course.ID] -= hours
			done[topic.ID] = true
		}

		if len(planDay.Items) > 0 {
			proposal.Days = append(proposal.Days, planDay)
		}
	}

	if len(done) < total {
		proposal.Warnings = append(proposal.Warnings, fmt.Sprintf("only %d of %d topics fit the available days", len(done), total))
	}
	return proposal
}

func totalTopics(loads []CourseLoad) int {
	n := 0
	for _, load := range loads {
		n += len(load.Topics)
	}
	return n
}
