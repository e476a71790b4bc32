package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/llm"
	"github.com/studymate/studyplan-api/internal/models"
	"github.com/studymate/studyplan-api/internal/repository"
	"github.com/studymate/studyplan-api/pkg/config"
	appErrors "github.com/studymate/studyplan-api/pkg/errors"
)

type extractionCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type extractionTopicStore interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, topics []models.Topic) error
	UpdatePrerequisites(ctx context.Context, exec sqlx.ExtContext, topicID string, prereqs []string) error
	DeleteByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

type extractionRunStore interface {
	Create(ctx context.Context, run *models.ExtractionRun) error
	FindRunning(ctx context.Context, userID, courseID string) (*models.ExtractionRun, error)
	MarkFinished(ctx context.Context, exec sqlx.ExtContext, id string, status models.ExtractionRunStatus, result types.JSONText) error
	MarkFailed(ctx context.Context, id, message string) error
	CountRecentByUser(ctx context.Context, userID string, since time.Time) (int, error)
}

type extractionRecorder interface {
	RecordExtraction(status string)
}

// prereqBatchSize bounds the parallelism of the prerequisite second pass.
const prereqBatchSize = 5

// cycleQuestion is appended to the clarifying questions whenever cycle
// repair touched the graph.
const cycleQuestion = "Some prerequisite references formed a cycle and were adjusted automatically. Please review the prerequisites of the affected topics."

// ExtractionService orchestrates the topic-extraction pipeline: ownership
// and lock checks, quota, the model call, sanitization, cycle repair, and
// persistence with provenance.
type ExtractionService struct {
	courses extractionCourseReader
	topics  extractionTopicStore
	runs    extractionRunStore
	model   llm.Client
	tx      txProvider
	cfg     config.ExtractionConfig
	metrics extractionRecorder
	logger  *zap.Logger
	now     func() time.Time
}

// NewExtractionService constructs ExtractionService.
func NewExtractionService(
	courses extractionCourseReader,
	topics extractionTopicStore,
	runs extractionRunStore,
	model llm.Client,
	tx txProvider,
	cfg config.ExtractionConfig,
	metrics extractionRecorder,
	logger *zap.Logger,
) *ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StaleJobThreshold <= 0 {
		cfg.StaleJobThreshold = 5 * time.Minute
	}
	if cfg.MaxTopicsPerRun <= 0 {
		cfg.MaxTopicsPerRun = 50
	}
	if cfg.InputCharBudget <= 0 {
		cfg.InputCharBudget = 30000
	}
	return &ExtractionService{
		courses: courses,
		topics:  topics,
		runs:    runs,
		model:   model,
		tx:      tx,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Extract runs the pipeline for one course. When a younger concurrent run
// holds the lock the in-progress payload is returned instead of a result.
func (s *ExtractionService) Extract(ctx context.Context, userID string, role models.UserRole, courseID string, req dto.ExtractTopicsRequest) (*dto.ExtractTopicsResponse, *dto.ExtractionInProgress, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil || course == nil || course.UserID != userID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	if busy, err := s.acquireLock(ctx, userID, courseID); err != nil {
		return nil, nil, err
	} else if busy != nil {
		return nil, busy, nil
	}

	quota := -1
	if !role.Elevated() {
		if s.cfg.MaxRunsPerHour > 0 {
			recent, err := s.runs.CountRecentByUser(ctx, userID, s.now().Add(-time.Hour))
			if err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check extraction rate")
			}
			if recent >= s.cfg.MaxRunsPerHour {
				return nil, nil, appErrors.Clone(appErrors.ErrRateLimited, "")
			}
		}
		used, err := s.topics.CountByUser(ctx, userID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check topic quota")
		}
		quota = s.cfg.UserTopicQuota - used
		if quota <= 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrQuotaExhausted, "")
		}
	}

	mode := req.Mode
	if mode == "" {
		mode = dto.ExtractionModeReplace
	}

	run := &models.ExtractionRun{
		UserID:       userID,
		CourseID:     courseID,
		SourceFileID: req.FileID,
		InputHash:    hashInput(req.Text),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		// The insert doubles as the lock; losing the race to a concurrent
		// request is the in-progress case, not a failure.
		if errors.Is(err, repository.ErrRunningExists) {
			busy := &dto.ExtractionInProgress{Status: "in_progress"}
			if running, ferr := s.runs.FindRunning(ctx, userID, courseID); ferr == nil && running != nil {
				busy.JobID = running.ID
			}
			return nil, busy, nil
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start extraction run")
	}

	resp, status, err := s.run(ctx, course, run, mode, quota, req)
	if err != nil {
		s.fail(run.ID, err)
		return nil, nil, err
	}
	s.record(string(status))
	return resp, nil, nil
}

// acquireLock enforces one running extraction per user and course. Stale
// locks are swept opportunistically.
func (s *ExtractionService) acquireLock(ctx context.Context, userID, courseID string) (*dto.ExtractionInProgress, error) {
	running, err := s.runs.FindRunning(ctx, userID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check extraction lock")
	}
	if running == nil {
		return nil, nil
	}
	if s.now().Sub(running.CreatedAt) < s.cfg.StaleJobThreshold {
		return &dto.ExtractionInProgress{Status: "in_progress", JobID: running.ID}, nil
	}
	if err := s.runs.MarkFailed(ctx, running.ID, "Job timed out"); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep stale extraction")
	}
	s.logger.Warn("swept stale extraction run", zap.String("run_id", running.ID))
	return nil, nil
}

func (s *ExtractionService) run(ctx context.Context, course *models.Course, run *models.ExtractionRun, mode string, quota int, req dto.ExtractTopicsRequest) (*dto.ExtractTopicsResponse, models.ExtractionRunStatus, error) {
	system, user, truncated := llm.BuildExtractionPrompt(course.Title, req.Text, s.cfg.MaxTopicsPerRun, s.cfg.InputCharBudget)
	if truncated {
		s.logger.Info("syllabus truncated to input budget", zap.String("run_id", run.ID), zap.Int("budget", s.cfg.InputCharBudget))
	}

	completion, err := s.model.Complete(ctx, llm.CompletionRequest{
		System: system,
		User:   user,
		Event:  "topic_extraction",
	})
	if err != nil {
		return nil, "", err
	}

	var output dto.ExtractionModelOutput
	if err := llm.DecodeJSON(completion.Content, &output); err != nil {
		return nil, "", err
	}

	sanitized := SanitizeTopics(output.Topics, s.cfg.MaxTopicsPerRun, quota)
	if len(sanitized.Topics) == 0 {
		return nil, "", appErrors.Clone(appErrors.ErrNoValidTopics, "")
	}

	if len(sanitized.Topics) > 1 && !hasPrereqEdges(sanitized.Topics) {
		s.inferPrerequisites(ctx, sanitized.Topics)
	}

	cycles := DetectAndBreakCycles(sanitized.Topics)
	AssignStableIdentifiers(sanitized.Topics)

	questions := append([]string{}, output.Questions...)
	needsReview := cycles.Detected
	if cycles.Detected {
		questions = append(questions, cycleQuestion)
	}

	for i := range sanitized.Topics {
		sanitized.Topics[i].CourseID = course.ID
		sanitized.Topics[i].ExtractionRunID = &run.ID
	}

	if err := s.persistTopics(ctx, course.ID, mode, sanitized.Topics); err != nil {
		return nil, "", err
	}

	status := models.ExtractionRunStatusCompleted
	if needsReview {
		status = models.ExtractionRunStatusNeedsReview
	}
	result := models.ExtractionResult{
		OriginalTopicCount:  len(output.Topics),
		InsertedTopicCount:  len(sanitized.Topics),
		TruncatedDueToQuota: sanitized.TruncatedDueToQuota,
		CyclesDetected:      cycles.Detected,
		Cycles:              cycles.Cycles,
		ValidationNotes:     sanitized.Notes,
		Questions:           questions,
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run result")
	}
	if err := s.runs.MarkFinished(ctx, nil, run.ID, status, types.JSONText(payload)); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize extraction run")
	}

	s.logger.Info("extraction finished",
		zap.String("run_id", run.ID),
		zap.String("course_id", course.ID),
		zap.String("status", string(status)),
		zap.Int("topics", len(sanitized.Topics)),
		zap.Bool("cycles_detected", cycles.Detected),
	)

	return &dto.ExtractTopicsResponse{
		Success:             true,
		JobID:               run.ID,
		TopicsCount:         len(sanitized.Topics),
		NeedsReview:         needsReview,
		Questions:           questions,
		CourseTitle:         course.Title,
		Mode:                mode,
		ExtractionRunID:     run.ID,
		TruncatedDueToQuota: sanitized.TruncatedDueToQuota,
		CyclesDetected:      cycles.Detected,
	}, status, nil
}

// hasPrereqEdges reports whether any topic carries an unresolved
// prerequisite reference.
func hasPrereqEdges(topics []models.Topic) bool {
	for i := range topics {
		if len(topics[i].PrereqKeys) > 0 {
			return true
		}
	}
	return false
}

// inferPrerequisites is a best-effort second pass for batches that came
// back without any edges. Failures leave the batch flat rather than
// failing the run.
func (s *ExtractionService) inferPrerequisites(ctx context.Context, topics []models.Topic) {
	batch := make([]llm.PrereqTopic, len(topics))
	known := make(map[string]struct{}, len(topics))
	for i := range topics {
		batch[i] = llm.PrereqTopic{TopicKey: topics[i].TopicKey, Title: topics[i].Title}
		known[topics[i].TopicKey] = struct{}{}
	}

	system, user, err := llm.BuildPrereqPrompt(batch)
	if err != nil {
		s.logger.Warn("prerequisite prompt build failed", zap.Error(err))
		return
	}
	completion, err := s.model.Complete(ctx, llm.CompletionRequest{
		System: system,
		User:   user,
		Event:  "prereq_inference",
	})
	if err != nil {
		s.logger.Warn("prerequisite inference failed", zap.Error(err))
		return
	}
	var out llm.PrereqOutput
	if err := llm.DecodeJSON(completion.Content, &out); err != nil {
		s.logger.Warn("prerequisite inference returned unusable output", zap.Error(err))
		return
	}

	for i := range topics {
		for _, key := range out.Prerequisites[topics[i].TopicKey] {
			if _, ok := known[key]; ok && key != topics[i].TopicKey {
				topics[i].PrereqKeys = append(topics[i].PrereqKeys, key)
			}
		}
	}
}

// persistTopics inserts the batch transactionally, then resolves
// prerequisite edges in a bounded-parallelism second pass. Insertion always
// precedes edge updates.
func (s *ExtractionService) persistTopics(ctx context.Context, courseID, mode string, topics []models.Topic) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	// Edges go in on the second pass; keep them out of the insert.
	edges := make(map[string][]string, len(topics))
	for i := range topics {
		if len(topics[i].Prerequisites) > 0 {
			edges[topics[i].ID] = topics[i].Prerequisites
			topics[i].Prerequisites = nil
		}
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if mode == dto.ExtractionModeReplace {
		if err = s.topics.DeleteByCourse(ctx, tx, courseID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear previous topics")
		}
	}
	if err = s.topics.InsertBatch(ctx, tx, topics); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist topics")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit topics")
	}

	return s.updateEdges(ctx, edges)
}

// updateEdges applies prerequisite updates in batches of prereqBatchSize,
// awaiting each batch before starting the next.
func (s *ExtractionService) updateEdges(ctx context.Context, edges map[string][]string) error {
	ids := make([]string, 0, len(edges))
	for id := range edges {
		ids = append(ids, id)
	}

	for start := 0; start < len(ids); start += prereqBatchSize {
		end := start + prereqBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		var wg sync.WaitGroup
		errs := make([]error, len(batch))
		for i, id := range batch {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				errs[i] = s.topics.UpdatePrerequisites(ctx, nil, id, edges[id])
			}(i, id)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update prerequisites")
			}
		}
	}
	return nil
}

// fail stamps the run as failed with the terminal error's message before
// the response leaves the service.
func (s *ExtractionService) fail(runID string, cause error) {
	message := "internal error"
	if appErr := appErrors.FromError(cause); appErr != nil && appErr.Message != "" {
		message = appErr.Message
	}
	// Detached context: the run must record the failure even when the
	// request was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runs.MarkFailed(ctx, runID, message); err != nil {
		s.logger.Error("failed to mark extraction run failed", zap.String("run_id", runID), zap.Error(err))
	}
	s.record(string(models.ExtractionRunStatusFailed))
}

func (s *ExtractionService) record(status string) {
	if s.metrics != nil {
		s.metrics.RecordExtraction(status)
	}
}

// inputHashPrefixLen bounds how much of the syllabus feeds the provenance
// hash; inputHashDigestLen keeps the stored digest short.
const (
	inputHashPrefixLen = 500
	inputHashDigestLen = 16
)

func hashInput(text string) string {
	if len(text) > inputHashPrefixLen {
		text = text[:inputHashPrefixLen]
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:inputHashDigestLen]
}
