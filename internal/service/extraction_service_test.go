package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/llm"
	"github.com/studymate/studyplan-api/internal/models"
	"github.com/studymate/studyplan-api/internal/repository"
	"github.com/studymate/studyplan-api/pkg/config"
	appErrors "github.com/studymate/studyplan-api/pkg/errors"
)

// --- shared fixtures ---

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type modelStub struct {
	responses []string
	err       error
	calls     int
}

func (m *modelStub) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return &llm.Completion{Content: m.responses[idx]}, nil
}

// --- extraction stubs ---

type courseReaderStub struct {
	course *models.Course
}

func (s courseReaderStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if s.course == nil || s.course.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.course, nil
}

type topicStoreStub struct {
	mu        sync.Mutex
	inserted  []models.Topic
	updates   map[string][]string
	deleted   []string
	userCount int
}

func (s *topicStoreStub) InsertBatch(ctx context.Context, exec sqlx.ExtContext, topics []models.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, topics...)
	return nil
}

func (s *topicStoreStub) UpdatePrerequisites(ctx context.Context, exec sqlx.ExtContext, topicID string, prereqs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = map[string][]string{}
	}
	s.updates[topicID] = prereqs
	return nil
}

func (s *topicStoreStub) DeleteByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, courseID)
	return nil
}

func (s *topicStoreStub) CountByUser(ctx context.Context, userID string) (int, error) {
	return s.userCount, nil
}

type runStoreStub struct {
	running      *models.ExtractionRun
	created      []*models.ExtractionRun
	finishedID   string
	finishedWith models.ExtractionRunStatus
	failedID     string
	failedMsg    string
	recentCount  int
	createErr    error
	raceWinner   *models.ExtractionRun
}

func (s *runStoreStub) Create(ctx context.Context, run *models.ExtractionRun) error {
	if s.createErr != nil {
		// A concurrent request won the insert; later lookups see its run.
		if s.raceWinner != nil {
			s.running = s.raceWinner
		}
		return s.createErr
	}
	run.ID = "run-new"
	run.CreatedAt = time.Now()
	s.created = append(s.created, run)
	return nil
}

func (s *runStoreStub) FindRunning(ctx context.Context, userID, courseID string) (*models.ExtractionRun, error) {
	return s.running, nil
}

func (s *runStoreStub) MarkFinished(ctx context.Context, exec sqlx.ExtContext, id string, status models.ExtractionRunStatus, result types.JSONText) error {
	s.finishedID = id
	s.finishedWith = status
	return nil
}

func (s *runStoreStub) MarkFailed(ctx context.Context, id, message string) error {
	s.failedID = id
	s.failedMsg = message
	if s.running != nil && s.running.ID == id {
		s.running = nil
	}
	return nil
}

func (s *runStoreStub) CountRecentByUser(ctx context.Context, userID string, since time.Time) (int, error) {
	return s.recentCount, nil
}

type recorderStub struct {
	statuses []string
}

func (r *recorderStub) RecordExtraction(status string) {
	r.statuses = append(r.statuses, status)
}

type extractionFixture struct {
	service  *ExtractionService
	topics   *topicStoreStub
	runs     *runStoreStub
	model    *modelStub
	recorder *recorderStub
	mock     sqlmock.Sqlmock
}

func newExtractionFixture(t *testing.T, model *modelStub, runs *runStoreStub) *extractionFixture {
	tx, mock := newTxProviderMock(t)
	topics := &topicStoreStub{}
	if runs == nil {
		runs = &runStoreStub{}
	}
	recorder := &recorderStub{}
	course := &models.Course{ID: "course-1", UserID: "user-1", Title: "Calculus I"}
	svc := NewExtractionService(
		courseReaderStub{course: course},
		topics,
		runs,
		model,
		tx,
		config.ExtractionConfig{
			StaleJobThreshold: 5 * time.Minute,
			MaxTopicsPerRun:   50,
			UserTopicQuota:    300,
			InputCharBudget:   30000,
			MaxRunsPerHour:    10,
		},
		recorder,
		nil,
	)
	return &extractionFixture{service: svc, topics: topics, runs: runs, model: model, recorder: recorder, mock: mock}
}

const extractionOutput = `{
	"topics": [
		{"topic_key": "t01", "title": "Limits", "difficulty_weight": 3, "exam_importance": 4, "estimated_hours": 2, "confidence_level": "high"},
		{"topic_key": "t02", "title": "Derivatives", "difficulty_weight": 4, "exam_importance": 5, "estimated_hours": 3, "confidence_level": "medium", "prerequisites": ["t01"]}
	],
	"clarifying_questions": []
}`

func TestExtractSuccess(t *testing.T) {
	f := newExtractionFixture(t, &modelStub{responses: []string{extractionOutput}}, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, inProgress, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{
		Text: "Week 1: limits. Week 2: derivatives.",
	})

	require.NoError(t, err)
	assert.Nil(t, inProgress)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.TopicsCount)
	assert.False(t, resp.NeedsReview)
	assert.Equal(t, dto.ExtractionModeReplace, resp.Mode)
	assert.Equal(t, "Calculus I", resp.CourseTitle)

	// Replace mode clears existing topics first.
	assert.Equal(t, []string{"course-1"}, f.topics.deleted)
	require.Len(t, f.topics.inserted, 2)
	// Edges land in the second pass, not the insert.
	assert.Empty(t, f.topics.inserted[1].Prerequisites)
	require.Len(t, f.topics.updates, 1)

	assert.Equal(t, models.ExtractionRunStatusCompleted, f.runs.finishedWith)
	assert.Equal(t, []string{"completed"}, f.recorder.statuses)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestExtractAppendModeKeepsTopics(t *testing.T) {
	f := newExtractionFixture(t, &modelStub{responses: []string{extractionOutput}}, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, _, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{
		Text: "syllabus",
		Mode: dto.ExtractionModeAppend,
	})

	require.NoError(t, err)
	assert.Empty(t, f.topics.deleted)
}

func TestExtractCycleForcesReview(t *testing.T) {
	cyclic := `{"topics": [
		{"topic_key": "t01", "title": "A", "prerequisites": ["t02"]},
		{"topic_key": "t02", "title": "B", "prerequisites": ["t03"]},
		{"topic_key": "t03", "title": "C", "prerequisites": ["t01"]}
	], "clarifying_questions": []}`
	f := newExtractionFixture(t, &modelStub{responses: []string{cyclic}}, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, _, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.NoError(t, err)
	assert.True(t, resp.CyclesDetected)
	assert.True(t, resp.NeedsReview)
	assert.Contains(t, resp.Questions, cycleQuestion)
	assert.Equal(t, models.ExtractionRunStatusNeedsReview, f.runs.finishedWith)
	// The metric carries the real terminal status, not a blanket completed.
	assert.Equal(t, []string{"needs_review"}, f.recorder.statuses)
}

func TestExtractInfersPrerequisitesWhenFlat(t *testing.T) {
	flat := `{"topics": [
		{"topic_key": "t01", "title": "Limits"},
		{"topic_key": "t02", "title": "Derivatives"}
	], "clarifying_questions": []}`
	inferred := `{"prerequisites": {"t02": ["t01"], "t02x": ["t01"]}}`
	model := &modelStub{responses: []string{flat, inferred}}
	f := newExtractionFixture(t, model, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, _, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, model.calls)

	var limitsID string
	for _, topic := range f.topics.inserted {
		if topic.TopicKey == "t01" {
			limitsID = topic.ID
		}
	}
	require.NotEmpty(t, limitsID)
	require.Len(t, f.topics.updates, 1)
	for _, prereqs := range f.topics.updates {
		assert.Equal(t, []string{limitsID}, prereqs)
	}
}

func TestExtractInferenceFailureIsNonFatal(t *testing.T) {
	flat := `{"topics": [
		{"topic_key": "t01", "title": "Limits"},
		{"topic_key": "t02", "title": "Derivatives"}
	], "clarifying_questions": []}`
	model := &modelStub{responses: []string{flat, "no json here"}}
	f := newExtractionFixture(t, model, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, _, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.TopicsCount)
	assert.Empty(t, f.topics.updates)
}

func TestHashInputUsesBoundedPrefix(t *testing.T) {
	long := strings.Repeat("a", 600)
	longer := long + "different tail"

	// Only the first 500 characters feed the digest.
	assert.Equal(t, hashInput(long), hashInput(longer))
	assert.NotEqual(t, hashInput("week 1"), hashInput("week 2"))
	assert.Len(t, hashInput("week 1"), 16)
}

func TestExtractConcurrentRunReturnsInProgress(t *testing.T) {
	runs := &runStoreStub{running: &models.ExtractionRun{
		ID:        "run-live",
		Status:    models.ExtractionRunStatusRunning,
		CreatedAt: time.Now().Add(-time.Minute),
	}}
	model := &modelStub{responses: []string{extractionOutput}}
	f := newExtractionFixture(t, model, runs)

	resp, inProgress, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.NoError(t, err)
	assert.Nil(t, resp)
	require.NotNil(t, inProgress)
	assert.Equal(t, "in_progress", inProgress.Status)
	assert.Equal(t, "run-live", inProgress.JobID)
	assert.Zero(t, model.calls)
}

func TestExtractLostInsertRaceReturnsInProgress(t *testing.T) {
	runs := &runStoreStub{
		createErr:  repository.ErrRunningExists,
		raceWinner: &models.ExtractionRun{ID: "run-winner", Status: models.ExtractionRunStatusRunning, CreatedAt: time.Now()},
	}
	model := &modelStub{responses: []string{extractionOutput}}
	f := newExtractionFixture(t, model, runs)

	resp, inProgress, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.NoError(t, err)
	assert.Nil(t, resp)
	require.NotNil(t, inProgress)
	assert.Equal(t, "in_progress", inProgress.Status)
	assert.Equal(t, "run-winner", inProgress.JobID)
	assert.Zero(t, model.calls)
}

func TestExtractSweepsStaleRun(t *testing.T) {
	runs := &runStoreStub{running: &models.ExtractionRun{
		ID:        "run-stale",
		Status:    models.ExtractionRunStatusRunning,
		CreatedAt: time.Now().Add(-10 * time.Minute),
	}}
	f := newExtractionFixture(t, &modelStub{responses: []string{extractionOutput}}, runs)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, inProgress, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.NoError(t, err)
	assert.Nil(t, inProgress)
	assert.True(t, resp.Success)
	assert.Equal(t, "run-stale", runs.failedID)
	assert.Equal(t, "Job timed out", runs.failedMsg)
}

func TestExtractQuotaExhausted(t *testing.T) {
	model := &modelStub{responses: []string{extractionOutput}}
	f := newExtractionFixture(t, model, nil)
	f.topics.userCount = 300

	_, _, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrQuotaExhausted.Code))
	assert.Zero(t, model.calls)
	assert.Empty(t, f.runs.created)
}

func TestExtractRunRateLimit(t *testing.T) {
	model := &modelStub{responses: []string{extractionOutput}}
	f := newExtractionFixture(t, model, &runStoreStub{recentCount: 10})

	_, _, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrRateLimited.Code))
	assert.Zero(t, model.calls)
	assert.Empty(t, f.runs.created)
}

func TestExtractAdminBypassesQuota(t *testing.T) {
	f := newExtractionFixture(t, &modelStub{responses: []string{extractionOutput}}, nil)
	f.topics.userCount = 300
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, _, err := f.service.Extract(context.Background(), "user-1", models.RoleAdmin, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestExtractOwnershipCheck(t *testing.T) {
	f := newExtractionFixture(t, &modelStub{responses: []string{extractionOutput}}, nil)

	_, _, err := f.service.Extract(context.Background(), "intruder", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestExtractRateLimitedFailsRun(t *testing.T) {
	model := &modelStub{err: appErrors.Clone(appErrors.ErrModelRateLimited, "")}
	f := newExtractionFixture(t, model, nil)

	_, _, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrModelRateLimited.Code))
	assert.Equal(t, "run-new", f.runs.failedID)
}

func TestExtractUnparseableOutputFailsRun(t *testing.T) {
	f := newExtractionFixture(t, &modelStub{responses: []string{"certainly! here is your JSON"}}, nil)

	_, _, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrModelInvalidOutput.Code))
	assert.Equal(t, "run-new", f.runs.failedID)
}

func TestExtractNoValidTopics(t *testing.T) {
	empty := `{"topics": [{"topic_key": "t01", "title": "   "}], "clarifying_questions": []}`
	f := newExtractionFixture(t, &modelStub{responses: []string{empty}}, nil)

	_, _, err := f.service.Extract(context.Background(), "user-1", models.RoleStudent, "course-1", dto.ExtractTopicsRequest{Text: "syllabus"})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNoValidTopics.Code))
}
