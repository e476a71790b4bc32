package dto

// GeneratePlanRequest triggers study-plan generation.
type GeneratePlanRequest struct {
	Reschedule         bool  `json:"reschedule"`
	IncludeMissedItems *bool `json:"includeMissedItems"`
}

// CourseFeasibility is the per-course slice of a feasibility verdict.
type CourseFeasibility struct {
	CourseID      string  `json:"course_id"`
	Title         string  `json:"title"`
	ExamDate      string  `json:"exam_date"`
	DaysLeft      int     `json:"days_left"`
	TopicCount    int     `json:"topic_count"`
	RequiredHours float64 `json:"required_hours"`
}

// FeasibilityReport is the up-front time-budget analysis. Infeasible plans
// are rejected before any model call.
type FeasibilityReport struct {
	TotalRequiredHours  float64             `json:"total_required_hours"`
	MinRequiredHours    float64             `json:"min_required_hours"`
	TotalAvailableHours float64             `json:"total_available_hours"`
	CoverageRatio       float64             `json:"coverage_ratio"`
	Feasible            bool                `json:"feasible"`
	ShortfallHours      float64             `json:"shortfall_hours"`
	Courses             []CourseFeasibility `json:"courses,omitempty"`
	Suggestions         []string            `json:"suggestions,omitempty"`
}

// ProposalItem is one topic placement inside a proposed schedule.
type ProposalItem struct {
	TopicID       string  `json:"topic_id"`
	CourseID      string  `json:"course_id"`
	Hours         float64 `json:"hours"`
	SequenceOrder int     `json:"sequence_order"`
	IsReview      bool    `json:"is_review"`
}

// ProposalDay groups placements on one calendar date (YYYY-MM-DD).
type ProposalDay struct {
	Date  string         `json:"date"`
	Items []ProposalItem `json:"items"`
}

// ScheduleProposal is the schema the scheduling prompt demands.
type ScheduleProposal struct {
	Days     []ProposalDay `json:"days"`
	Warnings []string      `json:"warnings,omitempty"`
}

// GeneratePlanResponse reports a persisted plan version.
type GeneratePlanResponse struct {
	Success             bool     `json:"success"`
	PlanDays            int      `json:"plan_days"`
	PlanItems           int      `json:"plan_items"`
	PlanVersion         int      `json:"plan_version"`
	Warnings            []string `json:"warnings,omitempty"`
	CoursesIncluded     int      `json:"courses_included"`
	CoverageRatio       float64  `json:"coverage_ratio"`
	TotalRequiredHours  float64  `json:"total_required_hours"`
	TotalAvailableHours float64  `json:"total_available_hours"`
	IsOverloaded        bool     `json:"is_overloaded"`
	TopicsScheduled     int      `json:"topics_scheduled"`
	TopicsProvided      int      `json:"topics_provided"`
	TopicsUnscheduled   int      `json:"topics_unscheduled"`
	ValidationPassed    bool     `json:"validation_passed"`
}

// InfeasiblePayload is the 400 body for plans that cannot fit.
type InfeasiblePayload struct {
	Error          string              `json:"error"`
	ShortfallHours float64             `json:"shortfall_hours"`
	Courses        []CourseFeasibility `json:"courses,omitempty"`
	Suggestions    []string            `json:"suggestions"`
}

// PlanItemView is one item of the current-plan read model.
type PlanItemView struct {
	TopicID       string  `json:"topic_id"`
	TopicTitle    string  `json:"topic_title"`
	CourseID      string  `json:"course_id"`
	CourseTitle   string  `json:"course_title"`
	Hours         float64 `json:"hours"`
	SequenceOrder int     `json:"sequence_order"`
	IsReview      bool    `json:"is_review"`
}

// PlanDayView is one day of the current-plan read model.
type PlanDayView struct {
	Date       string         `json:"date"`
	TotalHours float64        `json:"total_hours"`
	IsOffDay   bool           `json:"is_off_day"`
	Items      []PlanItemView `json:"items"`
}

// PlanView is the current-plan read model.
type PlanView struct {
	PlanVersion      int           `json:"plan_version"`
	ValidationPassed bool          `json:"validation_passed"`
	Days             []PlanDayView `json:"days"`
}
