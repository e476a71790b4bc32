package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/studymate/studyplan-api/internal/models"
)

// ErrRunningExists means another running extraction already holds the
// user-course lock.
var ErrRunningExists = errors.New("running extraction already exists")

// ExtractionRunRepository persists extraction runs. A run in status running
// doubles as the lock that serialises extractions per user and course.
type ExtractionRunRepository struct {
	db *sqlx.DB
}

// NewExtractionRunRepository creates a new extraction run repository.
func NewExtractionRunRepository(db *sqlx.DB) *ExtractionRunRepository {
	return &ExtractionRunRepository{db: db}
}

func (r *ExtractionRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const extractionRunColumns = `id, user_id, course_id, source_file_id, input_hash, status, error, result, created_at, updated_at`

// Create inserts a run in status running. The partial unique index
// extraction_runs_one_running_idx ON extraction_runs (user_id, course_id)
// WHERE status = 'running' makes the insert the lock acquisition: a
// concurrent running row turns the insert into a no-op and Create returns
// ErrRunningExists.
func (r *ExtractionRunRepository) Create(ctx context.Context, run *models.ExtractionRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.ExtractionRunStatusRunning
	}
	if len(run.Result) == 0 {
		run.Result = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	const query = `
INSERT INTO extraction_runs (id, user_id, course_id, source_file_id, input_hash, status, error, result, created_at, updated_at)
VALUES (:id, :user_id, :course_id, :source_file_id, :input_hash, :status, :error, :result, :created_at, :updated_at)
ON CONFLICT (user_id, course_id) WHERE status = 'running' DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("insert extraction run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert extraction run: %w", err)
	}
	if affected == 0 {
		return ErrRunningExists
	}
	return nil
}

// FindRunning returns the active run for the user-course pair, or nil when
// no lock is held.
func (r *ExtractionRunRepository) FindRunning(ctx context.Context, userID, courseID string) (*models.ExtractionRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM extraction_runs WHERE user_id = $1 AND course_id = $2 AND status = 'running' ORDER BY created_at DESC LIMIT 1`, extractionRunColumns)
	var run models.ExtractionRun
	err := r.db.GetContext(ctx, &run, query, userID, courseID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find running extraction: %w", err)
	}
	return &run, nil
}

// MarkFinished moves a run into a terminal status with its result payload.
func (r *ExtractionRunRepository) MarkFinished(ctx context.Context, exec sqlx.ExtContext, id string, status models.ExtractionRunStatus, result types.JSONText) error {
	target := r.exec(exec)
	if len(result) == 0 {
		result = types.JSONText(`{}`)
	}
	const query = `UPDATE extraction_runs SET status = $2, result = $3, updated_at = $4 WHERE id = $1`
	if _, err := target.ExecContext(ctx, query, id, status, result, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish extraction run: %w", err)
	}
	return nil
}

// MarkFailed moves a run into failed with an error message.
func (r *ExtractionRunRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE extraction_runs SET status = 'failed', error = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("fail extraction run: %w", err)
	}
	return nil
}

// CountRecentByUser returns how many runs the user started since the cutoff.
// Feeds per-user rate limiting on extraction starts.
func (r *ExtractionRunRepository) CountRecentByUser(ctx context.Context, userID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM extraction_runs WHERE user_id = $1 AND created_at >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, since); err != nil {
		return 0, fmt.Errorf("count recent extraction runs: %w", err)
	}
	return count, nil
}

// RecentOutcomes returns the statuses of the latest finished runs, newest
// first. The health probe derives model-gateway state from them.
func (r *ExtractionRunRepository) RecentOutcomes(ctx context.Context, limit int) ([]models.ExtractionRunStatus, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT status FROM extraction_runs WHERE status <> 'running' ORDER BY updated_at DESC LIMIT $1`
	var statuses []models.ExtractionRunStatus
	if err := r.db.SelectContext(ctx, &statuses, query, limit); err != nil {
		return nil, fmt.Errorf("list recent extraction outcomes: %w", err)
	}
	return statuses, nil
}
