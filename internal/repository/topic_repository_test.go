package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymate/studyplan-api/internal/models"
)

func newTopicRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTopicRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newTopicRepoMock(t)
	defer cleanup()
	repo := NewTopicRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO topics")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO topics")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	topics := []models.Topic{
		{CourseID: "course-1", TopicKey: "t01", Title: "Limits", DifficultyWeight: 3, ExamImportance: 4, EstimatedHours: 2, Confidence: models.ConfidenceHigh},
		{CourseID: "course-1", TopicKey: "t02", Title: "Derivatives", DifficultyWeight: 4, ExamImportance: 5, EstimatedHours: 3, Confidence: models.ConfidenceMedium},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), nil, topics))
	assert.NotEmpty(t, topics[0].ID)
	assert.Equal(t, models.TopicStatusNotStarted, topics[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopicRepositoryUpdatePrerequisites(t *testing.T) {
	db, mock, cleanup := newTopicRepoMock(t)
	defer cleanup()
	repo := NewTopicRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE topics SET prerequisites = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("topic-1", pq.StringArray{"topic-2"}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePrerequisites(context.Background(), nil, "topic-1", []string{"topic-2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopicRepositoryDeleteByCourse(t *testing.T) {
	db, mock, cleanup := newTopicRepoMock(t)
	defer cleanup()
	repo := NewTopicRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM topics WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnResult(sqlmock.NewResult(0, 7))

	require.NoError(t, repo.DeleteByCourse(context.Background(), nil, "course-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopicRepositoryCountByUser(t *testing.T) {
	db, mock, cleanup := newTopicRepoMock(t)
	defer cleanup()
	repo := NewTopicRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(287))

	count, err := repo.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 287, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopicRepositoryListUnfinishedEmptyInput(t *testing.T) {
	db, _, cleanup := newTopicRepoMock(t)
	defer cleanup()
	repo := NewTopicRepository(db)

	topics, err := repo.ListUnfinishedByCourses(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, topics)
}
