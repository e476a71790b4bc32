package dto

// CreateCourseRequest registers a new course with its exam date.
type CreateCourseRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	ExamDate string `json:"examDate" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateTopicRequest patches the owner-mutable fields of a topic.
type UpdateTopicRequest struct {
	Title            *string `json:"title" validate:"omitempty,max=200"`
	Notes            *string `json:"notes" validate:"omitempty,max=200"`
	Status           *string `json:"status" validate:"omitempty,oneof=not_started in_progress done"`
	DifficultyWeight *int    `json:"difficultyWeight" validate:"omitempty,min=1,max=5"`
	ExamImportance   *int    `json:"examImportance" validate:"omitempty,min=1,max=5"`
}

// UpsertPreferencesRequest sets the user's study calendar constraints.
type UpsertPreferencesRequest struct {
	DailyHours    float64  `json:"dailyHours" validate:"omitempty,min=0.5,max=16"`
	WeeklyOffDays []string `json:"weeklyOffDays" validate:"omitempty,dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	BlackoutDates []string `json:"blackoutDates" validate:"omitempty,dive,datetime=2006-01-02"`
}
