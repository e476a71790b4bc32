package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studymate/studyplan-api/internal/models"
)

// StudyPlanRepository persists versioned study plans with their days and
// items.
type StudyPlanRepository struct {
	db *sqlx.DB
}

// NewStudyPlanRepository creates a new study plan repository.
func NewStudyPlanRepository(db *sqlx.DB) *StudyPlanRepository {
	return &StudyPlanRepository{db: db}
}

func (r *StudyPlanRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a plan assigning the next version for the user.
func (r *StudyPlanRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, plan *models.StudyPlan) error {
	if plan == nil {
		return fmt.Errorf("plan payload is nil")
	}
	if plan.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(plan_version), 0) + 1 FROM study_plans WHERE user_id = $1`
	if err := sqlx.GetContext(ctx, target, &plan.PlanVersion, nextVersionQuery, plan.UserID); err != nil {
		return fmt.Errorf("compute next plan version: %w", err)
	}

	const insertQuery = `
INSERT INTO study_plans (id, user_id, plan_version, validation_passed, created_at)
VALUES (:id, :user_id, :plan_version, :validation_passed, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, plan); err != nil {
		return fmt.Errorf("insert study plan: %w", err)
	}
	return nil
}

// DeleteFutureDays removes days on or after the cutoff that belong to plan
// versions older than keepVersion. Past days stay as history; items cascade
// through the day foreign key.
func (r *StudyPlanRepository) DeleteFutureDays(ctx context.Context, exec sqlx.ExtContext, userID string, cutoff time.Time, keepVersion int) error {
	target := r.exec(exec)
	const query = `DELETE FROM study_plan_days WHERE user_id = $1 AND date >= $2 AND plan_version < $3`
	if _, err := target.ExecContext(ctx, query, userID, cutoff, keepVersion); err != nil {
		return fmt.Errorf("delete superseded plan days: %w", err)
	}
	return nil
}

// InsertDay stores one plan day.
func (r *StudyPlanRepository) InsertDay(ctx context.Context, exec sqlx.ExtContext, day *models.StudyPlanDay) error {
	if day.ID == "" {
		day.ID = uuid.NewString()
	}
	target := r.exec(exec)
	const query = `
INSERT INTO study_plan_days (id, plan_id, user_id, date, total_hours, is_off_day, plan_version)
VALUES (:id, :plan_id, :user_id, :date, :total_hours, :is_off_day, :plan_version)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, day); err != nil {
		return fmt.Errorf("insert plan day: %w", err)
	}
	return nil
}

// InsertItems stores the items of one plan day.
func (r *StudyPlanRepository) InsertItems(ctx context.Context, exec sqlx.ExtContext, items []models.StudyPlanItem) error {
	target := r.exec(exec)
	const query = `
INSERT INTO study_plan_items (id, day_id, topic_id, course_id, hours, sequence_order, is_review)
VALUES (:id, :day_id, :topic_id, :course_id, :hours, :sequence_order, :is_review)`
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, items[i]); err != nil {
			return fmt.Errorf("insert plan item: %w", err)
		}
	}
	return nil
}

// FindLatest returns the user's newest plan, or nil when none exists.
func (r *StudyPlanRepository) FindLatest(ctx context.Context, userID string) (*models.StudyPlan, error) {
	const query = `SELECT id, user_id, plan_version, validation_passed, created_at
FROM study_plans WHERE user_id = $1 ORDER BY plan_version DESC LIMIT 1`
	var plan models.StudyPlan
	err := r.db.GetContext(ctx, &plan, query, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find latest plan: %w", err)
	}
	return &plan, nil
}

// ListDays returns the days of one plan in date order.
func (r *StudyPlanRepository) ListDays(ctx context.Context, planID string) ([]models.StudyPlanDay, error) {
	const query = `SELECT id, plan_id, user_id, date, total_hours, is_off_day, plan_version
FROM study_plan_days WHERE plan_id = $1 ORDER BY date ASC`
	var days []models.StudyPlanDay
	if err := r.db.SelectContext(ctx, &days, query, planID); err != nil {
		return nil, fmt.Errorf("list plan days: %w", err)
	}
	return days, nil
}

// ListItemViews returns the plan's items joined with topic and course
// titles, in day then sequence order.
func (r *StudyPlanRepository) ListItemViews(ctx context.Context, planID string) ([]models.PlanItemRow, error) {
	const query = `
SELECT i.day_id, d.date, i.topic_id, t.title AS topic_title, i.course_id, c.title AS course_title,
       i.hours, i.sequence_order, i.is_review
FROM study_plan_items i
JOIN study_plan_days d ON d.id = i.day_id
JOIN topics t ON t.id = i.topic_id
JOIN courses c ON c.id = i.course_id
WHERE d.plan_id = $1
ORDER BY d.date ASC, i.sequence_order ASC`
	var rows []models.PlanItemRow
	if err := r.db.SelectContext(ctx, &rows, query, planID); err != nil {
		return nil, fmt.Errorf("list plan item views: %w", err)
	}
	return rows, nil
}

// ListMissedTopicIDs returns topic ids that were planned before the cutoff
// on the given version but whose topics are still unfinished.
func (r *StudyPlanRepository) ListMissedTopicIDs(ctx context.Context, userID string, cutoff time.Time, planVersion int) ([]string, error) {
	const query = `
SELECT DISTINCT i.topic_id
FROM study_plan_items i
JOIN study_plan_days d ON d.id = i.day_id
JOIN topics t ON t.id = i.topic_id
WHERE d.user_id = $1 AND d.plan_version = $2 AND d.date < $3
  AND i.is_review = false AND t.status <> 'done'`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID, planVersion, cutoff); err != nil {
		return nil, fmt.Errorf("list missed topics: %w", err)
	}
	return ids, nil
}
