package dto

// ExtractionMode controls what happens to topics already on the course.
const (
	ExtractionModeReplace = "replace"
	ExtractionModeAppend  = "append"
)

// ExtractTopicsRequest asks the pipeline to turn syllabus text into topics.
type ExtractTopicsRequest struct {
	Text            string  `json:"text" validate:"required"`
	FileID          *string `json:"fileId"`
	Mode            string  `json:"mode" validate:"omitempty,oneof=replace append"`
	ExtractionRunID *string `json:"extractionRunId"`
}

// RawTopic is one loosely-typed record as parsed from model output. Numeric
// fields arrive as any because models emit numbers, numeric strings, or
// nothing at all; the sanitizer owns the coercion.
type RawTopic struct {
	TopicKey         string   `json:"topic_key"`
	Title            string   `json:"title"`
	DifficultyWeight any      `json:"difficulty_weight"`
	ExamImportance   any      `json:"exam_importance"`
	EstimatedHours   any      `json:"estimated_hours"`
	Confidence       string   `json:"confidence_level"`
	Notes            string   `json:"notes"`
	SourcePage       any      `json:"source_page"`
	SourceContext    string   `json:"source_context"`
	Prerequisites    []string `json:"prerequisites"`
}

// ExtractionModelOutput is the schema the extraction prompt demands.
type ExtractionModelOutput struct {
	Topics    []RawTopic `json:"topics"`
	Questions []string   `json:"clarifying_questions"`
}

// ExtractTopicsResponse reports a finished extraction.
type ExtractTopicsResponse struct {
	Success             bool     `json:"success"`
	JobID               string   `json:"job_id"`
	TopicsCount         int      `json:"topics_count"`
	NeedsReview         bool     `json:"needs_review"`
	Questions           []string `json:"questions,omitempty"`
	CourseTitle         string   `json:"course_title"`
	Mode                string   `json:"mode"`
	ExtractionRunID     string   `json:"extraction_run_id"`
	TruncatedDueToQuota bool     `json:"truncated_due_to_quota"`
	CyclesDetected      bool     `json:"cycles_detected"`
}

// ExtractionInProgress is the 202 payload when the lock is held.
type ExtractionInProgress struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}
