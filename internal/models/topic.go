package models

import (
	"time"

	"github.com/lib/pq"
)

// ConfidenceLevel grades how certain the extractor was about a topic's
// attributes.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// TopicStatus tracks study progress on a topic.
type TopicStatus string

const (
	TopicStatusNotStarted TopicStatus = "not_started"
	TopicStatusInProgress TopicStatus = "in_progress"
	TopicStatusDone       TopicStatus = "done"
)

// Topic is one study unit extracted from a syllabus. TopicKey is the short
// extraction-scoped key (t00..tNN) the model uses for cross references;
// Prerequisites holds system identifiers after resolution.
type Topic struct {
	ID               string          `db:"id" json:"id"`
	CourseID         string          `db:"course_id" json:"course_id"`
	ExtractionRunID  *string         `db:"extraction_run_id" json:"extraction_run_id,omitempty"`
	TopicKey         string          `db:"topic_key" json:"topic_key"`
	Title            string          `db:"title" json:"title"`
	DifficultyWeight int             `db:"difficulty_weight" json:"difficulty_weight"`
	ExamImportance   int             `db:"exam_importance" json:"exam_importance"`
	EstimatedHours   float64         `db:"estimated_hours" json:"estimated_hours"`
	Confidence       ConfidenceLevel `db:"confidence_level" json:"confidence_level"`
	Notes            *string         `db:"notes" json:"notes,omitempty"`
	SourcePage       *int            `db:"source_page" json:"source_page,omitempty"`
	SourceContext    *string         `db:"source_context" json:"source_context,omitempty"`
	Prerequisites    pq.StringArray  `db:"prerequisites" json:"prerequisites"`
	Status           TopicStatus     `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`

	// PrereqKeys carries the unresolved extraction-scoped keys between
	// sanitization and identifier assignment. Never persisted.
	PrereqKeys []string `db:"-" json:"-"`
}
