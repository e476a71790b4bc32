package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/studymate/studyplan-api/internal/models"
)

// TopicRepository provides persistence for topics.
type TopicRepository struct {
	db *sqlx.DB
}

// NewTopicRepository creates a new topic repository.
func NewTopicRepository(db *sqlx.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

func (r *TopicRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const topicColumns = `id, course_id, extraction_run_id, topic_key, title, difficulty_weight, exam_importance, estimated_hours, confidence_level, notes, source_page, source_context, prerequisites, status, created_at, updated_at`

// InsertBatch stores a sanitized batch of topics in one statement per row
// inside the caller's transaction.
func (r *TopicRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, topics []models.Topic) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO topics (id, course_id, extraction_run_id, topic_key, title, difficulty_weight, exam_importance, estimated_hours, confidence_level, notes, source_page, source_context, prerequisites, status, created_at, updated_at)
VALUES (:id, :course_id, :extraction_run_id, :topic_key, :title, :difficulty_weight, :exam_importance, :estimated_hours, :confidence_level, :notes, :source_page, :source_context, :prerequisites, :status, :created_at, :updated_at)`
	for i := range topics {
		if topics[i].ID == "" {
			topics[i].ID = uuid.NewString()
		}
		if topics[i].Status == "" {
			topics[i].Status = models.TopicStatusNotStarted
		}
		if topics[i].Prerequisites == nil {
			topics[i].Prerequisites = pq.StringArray{}
		}
		topics[i].CreatedAt = now
		topics[i].UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, topics[i]); err != nil {
			return fmt.Errorf("insert topic %s: %w", topics[i].TopicKey, err)
		}
	}
	return nil
}

// UpdatePrerequisites replaces the prerequisite list of one topic.
func (r *TopicRepository) UpdatePrerequisites(ctx context.Context, exec sqlx.ExtContext, topicID string, prereqs []string) error {
	target := r.exec(exec)
	const query = `UPDATE topics SET prerequisites = $2, updated_at = $3 WHERE id = $1`
	if _, err := target.ExecContext(ctx, query, topicID, pq.StringArray(prereqs), time.Now().UTC()); err != nil {
		return fmt.Errorf("update topic prerequisites: %w", err)
	}
	return nil
}

// DeleteByCourse removes all topics of a course. Used by replace-mode
// extraction inside its transaction.
func (r *TopicRepository) DeleteByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) error {
	target := r.exec(exec)
	const query = `DELETE FROM topics WHERE course_id = $1`
	if _, err := target.ExecContext(ctx, query, courseID); err != nil {
		return fmt.Errorf("delete topics for course: %w", err)
	}
	return nil
}

// ListByCourse returns the topics of one course in key order.
func (r *TopicRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Topic, error) {
	query := fmt.Sprintf(`SELECT %s FROM topics WHERE course_id = $1 ORDER BY topic_key ASC`, topicColumns)
	var topics []models.Topic
	if err := r.db.SelectContext(ctx, &topics, query, courseID); err != nil {
		return nil, fmt.Errorf("list topics by course: %w", err)
	}
	return topics, nil
}

// ListUnfinishedByCourses returns the not-done topics across the given
// courses, the scheduler's working set.
func (r *TopicRepository) ListUnfinishedByCourses(ctx context.Context, courseIDs []string) ([]models.Topic, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		fmt.Sprintf(`SELECT %s FROM topics WHERE course_id IN (?) AND status <> 'done' ORDER BY course_id, topic_key`, topicColumns),
		courseIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("build unfinished topics query: %w", err)
	}
	query = r.db.Rebind(query)

	var topics []models.Topic
	if err := r.db.SelectContext(ctx, &topics, query, args...); err != nil {
		return nil, fmt.Errorf("list unfinished topics: %w", err)
	}
	return topics, nil
}

// FindByID loads a topic by id.
func (r *TopicRepository) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	query := fmt.Sprintf(`SELECT %s FROM topics WHERE id = $1`, topicColumns)
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, id); err != nil {
		return nil, err
	}
	return &topic, nil
}

// Update persists the owner-mutable fields of a topic.
func (r *TopicRepository) Update(ctx context.Context, topic *models.Topic) error {
	topic.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE topics
SET title = :title,
    difficulty_weight = :difficulty_weight,
    exam_importance = :exam_importance,
    estimated_hours = :estimated_hours,
    notes = :notes,
    status = :status,
    updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, topic)
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update topic rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("topic %s not found", topic.ID)
	}
	return nil
}

// CountByUser returns how many topics the user owns across all courses.
// Feeds the per-user quota check.
func (r *TopicRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	const query = `
SELECT COUNT(*)
FROM topics t
JOIN courses c ON c.id = t.course_id
WHERE c.user_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count user topics: %w", err)
	}
	return count, nil
}
