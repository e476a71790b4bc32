package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ExtractionRunStatus is the state machine of a topic-extraction job.
// Transitions: running -> completed | needs_review | failed. Terminal states
// never transition again.
type ExtractionRunStatus string

const (
	ExtractionRunStatusRunning     ExtractionRunStatus = "running"
	ExtractionRunStatusCompleted   ExtractionRunStatus = "completed"
	ExtractionRunStatusNeedsReview ExtractionRunStatus = "needs_review"
	ExtractionRunStatusFailed      ExtractionRunStatus = "failed"
)

// ExtractionRun records one invocation of the topic extractor, used both as
// provenance and as the database-backed lock that serialises extractions per
// user and course.
type ExtractionRun struct {
	ID           string              `db:"id" json:"id"`
	UserID       string              `db:"user_id" json:"user_id"`
	CourseID     string              `db:"course_id" json:"course_id"`
	SourceFileID *string             `db:"source_file_id" json:"source_file_id,omitempty"`
	InputHash    string              `db:"input_hash" json:"input_hash"`
	Status       ExtractionRunStatus `db:"status" json:"status"`
	Error        *string             `db:"error" json:"error,omitempty"`
	Result       types.JSONText      `db:"result" json:"result,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// ExtractionResult is the payload stored on a finished run.
type ExtractionResult struct {
	OriginalTopicCount  int      `json:"original_topic_count"`
	InsertedTopicCount  int      `json:"inserted_topic_count"`
	TruncatedDueToQuota bool     `json:"truncated_due_to_quota"`
	CyclesDetected      bool     `json:"cycles_detected"`
	Cycles              []string `json:"cycles,omitempty"`
	ValidationNotes     []string `json:"validation_notes,omitempty"`
	Questions           []string `json:"questions,omitempty"`
}
