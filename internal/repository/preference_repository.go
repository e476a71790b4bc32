package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/studymate/studyplan-api/internal/models"
)

// PreferenceRepository persists schedule preferences, one row per user.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository creates a new preference repository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// FindByUser returns the user's preferences, or nil when none were saved.
func (r *PreferenceRepository) FindByUser(ctx context.Context, userID string) (*models.SchedulePreferences, error) {
	const query = `SELECT user_id, daily_hours, weekly_off_days, blackout_dates, updated_at
FROM schedule_preferences WHERE user_id = $1`
	var prefs models.SchedulePreferences
	err := r.db.GetContext(ctx, &prefs, query, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find schedule preferences: %w", err)
	}
	return &prefs, nil
}

// Upsert stores the preferences, replacing any previous row.
func (r *PreferenceRepository) Upsert(ctx context.Context, prefs *models.SchedulePreferences) error {
	if prefs.WeeklyOffDays == nil {
		prefs.WeeklyOffDays = pq.StringArray{}
	}
	if prefs.BlackoutDates == nil {
		prefs.BlackoutDates = pq.StringArray{}
	}
	prefs.UpdatedAt = time.Now().UTC()

	const query = `
INSERT INTO schedule_preferences (user_id, daily_hours, weekly_off_days, blackout_dates, updated_at)
VALUES (:user_id, :daily_hours, :weekly_off_days, :blackout_dates, :updated_at)
ON CONFLICT (user_id) DO UPDATE
SET daily_hours = EXCLUDED.daily_hours,
    weekly_off_days = EXCLUDED.weekly_off_days,
    blackout_dates = EXCLUDED.blackout_dates,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, prefs); err != nil {
		return fmt.Errorf("upsert schedule preferences: %w", err)
	}
	return nil
}
