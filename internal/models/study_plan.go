package models

import (
	"time"

	"github.com/lib/pq"
)

// StudyPlan is one generated plan version for a user. Versions increase
// monotonically; generating a new plan supersedes the future-dated days of
// previous versions while past days stay as history.
type StudyPlan struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	PlanVersion      int       `db:"plan_version" json:"plan_version"`
	ValidationPassed bool      `db:"validation_passed" json:"validation_passed"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// StudyPlanDay aggregates the items scheduled on one calendar date.
type StudyPlanDay struct {
	ID          string    `db:"id" json:"id"`
	PlanID      string    `db:"plan_id" json:"plan_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Date        time.Time `db:"date" json:"date"`
	TotalHours  float64   `db:"total_hours" json:"total_hours"`
	IsOffDay    bool      `db:"is_off_day" json:"is_off_day"`
	PlanVersion int       `db:"plan_version" json:"plan_version"`
}

// StudyPlanItem places one topic on one day. CourseID is denormalised for
// query convenience and must always match the topic's course.
type StudyPlanItem struct {
	ID            string  `db:"id" json:"id"`
	DayID         string  `db:"day_id" json:"day_id"`
	TopicID       string  `db:"topic_id" json:"topic_id"`
	CourseID      string  `db:"course_id" json:"course_id"`
	Hours         float64 `db:"hours" json:"hours"`
	SequenceOrder int     `db:"sequence_order" json:"sequence_order"`
	IsReview      bool    `db:"is_review" json:"is_review"`
}

// PlanItemRow is the denormalised read model of one plan item, joined with
// its topic and course titles.
type PlanItemRow struct {
	DayID         string    `db:"day_id"`
	Date          time.Time `db:"date"`
	TopicID       string    `db:"topic_id"`
	TopicTitle    string    `db:"topic_title"`
	CourseID      string    `db:"course_id"`
	CourseTitle   string    `db:"course_title"`
	Hours         float64   `db:"hours"`
	SequenceOrder int       `db:"sequence_order"`
	IsReview      bool      `db:"is_review"`
}

// SchedulePreferences captures the user's study calendar constraints.
// WeeklyOffDays holds lowercase weekday names, BlackoutDates YYYY-MM-DD
// strings.
type SchedulePreferences struct {
	UserID        string         `db:"user_id" json:"user_id"`
	DailyHours    float64        `db:"daily_hours" json:"daily_hours"`
	WeeklyOffDays pq.StringArray `db:"weekly_off_days" json:"weekly_off_days"`
	BlackoutDates pq.StringArray `db:"blackout_dates" json:"blackout_dates"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
