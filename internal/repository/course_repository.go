package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studymate/studyplan-api/internal/models"
)

// CourseRepository provides persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, user_id, title, exam_date, status, created_at, updated_at`

// Create inserts a course owned by the given user.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.Status == "" {
		course.Status = models.CourseStatusActive
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `
INSERT INTO courses (id, user_id, title, exam_date, status, created_at, updated_at)
VALUES (:id, :user_id, :title, :exam_date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// FindByID loads a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByUser returns the user's courses, optionally filtered by status.
func (r *CourseRepository) ListByUser(ctx context.Context, userID string, status models.CourseStatus) ([]models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE user_id = $1`, courseColumns)
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListSchedulable returns the user's active courses that have a future exam
// date and at least one unfinished topic.
func (r *CourseRepository) ListSchedulable(ctx context.Context, userID string, today time.Time) ([]models.Course, error) {
	const query = `
SELECT c.id, c.user_id, c.title, c.exam_date, c.status, c.created_at, c.updated_at
FROM courses c
WHERE c.user_id = $1
  AND c.status = 'active'
  AND c.exam_date IS NOT NULL
  AND c.exam_date > $2
  AND EXISTS (SELECT 1 FROM topics t WHERE t.course_id = c.id AND t.status <> 'done')
ORDER BY c.exam_date ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, userID, today); err != nil {
		return nil, fmt.Errorf("list schedulable courses: %w", err)
	}
	return courses, nil
}

// UpdateStatus archives or reactivates a course.
func (r *CourseRepository) UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error {
	const query = `UPDATE courses SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update course status rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("course %s not found", id)
	}
	return nil
}
