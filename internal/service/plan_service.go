package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/llm"
	"github.com/studymate/studyplan-api/internal/models"
	"github.com/studymate/studyplan-api/internal/repository"
	"github.com/studymate/studyplan-api/pkg/config"
	"github.com/studymate/studyplan-api/pkg/dates"
	appErrors "github.com/studymate/studyplan-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type planCourseReader interface {
	ListSchedulable(ctx context.Context, userID string, today time.Time) ([]models.Course, error)
}

type planTopicReader interface {
	ListUnfinishedByCourses(ctx context.Context, courseIDs []string) ([]models.Topic, error)
}

type preferenceReader interface {
	FindByUser(ctx context.Context, userID string) (*models.SchedulePreferences, error)
}

type planStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, plan *models.StudyPlan) error
	DeleteFutureDays(ctx context.Context, exec sqlx.ExtContext, userID string, cutoff time.Time, keepVersion int) error
	InsertDay(ctx context.Context, exec sqlx.ExtContext, day *models.StudyPlanDay) error
	InsertItems(ctx context.Context, exec sqlx.ExtContext, items []models.StudyPlanItem) error
	FindLatest(ctx context.Context, userID string) (*models.StudyPlan, error)
	ListDays(ctx context.Context, planID string) ([]models.StudyPlanDay, error)
	ListItemViews(ctx context.Context, planID string) ([]models.PlanItemRow, error)
	ListMissedTopicIDs(ctx context.Context, userID string, cutoff time.Time, planVersion int) ([]string, error)
}

type planCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, key string)
}

// PlanService orchestrates study-plan generation: feasibility, scheduling
// through the model, validation with one repair attempt, deterministic
// fallback, and versioned persistence.
type PlanService struct {
	courses planCourseReader
	topics  planTopicReader
	prefs   preferenceReader
	plans   planStore
	cache   planCache
	model   llm.Client
	tx      txProvider
	cfg     config.PlannerConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewPlanService constructs PlanService.
func NewPlanService(
	courses planCourseReader,
	topics planTopicReader,
	prefs preferenceReader,
	plans planStore,
	cache planCache,
	model llm.Client,
	tx txProvider,
	cfg config.PlannerConfig,
	logger *zap.Logger,
) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HorizonCapDays <= 0 {
		cfg.HorizonCapDays = 90
	}
	if cfg.DefaultDailyHours <= 0 {
		cfg.DefaultDailyHours = 3
	}
	if cfg.RepairAttempts < 0 {
		cfg.RepairAttempts = 1
	}
	return &PlanService{
		courses: courses,
		topics:  topics,
		prefs:   prefs,
		plans:   plans,
		cache:   cache,
		model:   model,
		tx:      tx,
		cfg:     cfg,
		logger:  logger,
		now:     dates.Today,
	}
}

// repairErrorLimit bounds how many validation errors are echoed back to the
// model on a repair attempt.
const repairErrorLimit = 10

// Generate produces and persists a new plan version. When the inputs cannot
// fit the available time the infeasible payload is returned instead and
// nothing is persisted.
func (s *PlanService) Generate(ctx context.Context, userID string, req dto.GeneratePlanRequest) (*dto.GeneratePlanResponse, *dto.InfeasiblePayload, error) {
	today := s.now()

	courses, err := s.courses.ListSchedulable(ctx, userID, today)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	if len(courses) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "no active courses with upcoming exam dates")
	}

	courseIDs := make([]string, 0, len(courses))
	for _, course := range courses {
		courseIDs = append(courseIDs, course.ID)
	}
	topics, err := s.topics.ListUnfinishedByCourses(ctx, courseIDs)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topics")
	}
	if len(topics) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "no unfinished topics to schedule")
	}

	prefs := s.loadPreferences(ctx, userID)
	loads := s.buildLoads(ctx, userID, today, courses, topics, req)

	horizon := PlanningHorizonDays(loads, s.cfg.HorizonCapDays)
	eligible := dates.Eligible(dates.AddDays(today, 1), horizon, prefs.WeeklyOffDays, prefs.BlackoutDates)
	capacity := prefs.DailyHours

	feasibility := AnalyzeFeasibility(topics, eligible, capacity)
	feasibility.Courses = BuildCourseFeasibility(loads)
	if !feasibility.Feasible {
		return nil, &dto.InfeasiblePayload{
			Error:          "insufficient_time",
			ShortfallHours: feasibility.ShortfallHours,
			Courses:        feasibility.Courses,
			Suggestions:    feasibility.Suggestions,
		}, nil
	}

	proposal, validation, usedFallback, err := s.propose(ctx, today, loads, eligible, capacity, feasibility.CoverageRatio)
	if err != nil {
		return nil, nil, err
	}

	plan, dayCount, itemCount, err := s.persist(ctx, userID, today, proposal, validation.Valid())
	if err != nil {
		return nil, nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, repository.PlanKey(userID))
	}

	warnings := append([]string{}, proposal.Warnings...)
	warnings = append(warnings, validation.Warnings...)
	if usedFallback {
		warnings = append(warnings, "schedule produced by the deterministic fallback planner")
	}

	scheduled := CountScheduledTopics(proposal)
	resp := &dto.GeneratePlanResponse{
		Success:             true,
		PlanDays:            dayCount,
		PlanItems:           itemCount,
		PlanVersion:         plan.PlanVersion,
		Warnings:            warnings,
		CoursesIncluded:     len(courses),
		CoverageRatio:       feasibility.CoverageRatio,
		TotalRequiredHours:  feasibility.TotalRequiredHours,
		TotalAvailableHours: feasibility.TotalAvailableHours,
		IsOverloaded:        feasibility.CoverageRatio < 1,
		TopicsScheduled:     scheduled,
		TopicsProvided:      len(topics),
		TopicsUnscheduled:   len(topics) - scheduled,
		ValidationPassed:    validation.Valid(),
	}
	s.logger.Info("plan generated",
		zap.String("user_id", userID),
		zap.Int("plan_version", plan.PlanVersion),
		zap.Int("plan_days", dayCount),
		zap.Int("plan_items", itemCount),
		zap.Bool("validation_passed", resp.ValidationPassed),
		zap.Bool("fallback", usedFallback),
	)
	return resp, nil, nil
}

func (s *PlanService) loadPreferences(ctx context.Context, userID string) models.SchedulePreferences {
	prefs := models.SchedulePreferences{DailyHours: s.cfg.DefaultDailyHours}
	if s.prefs == nil {
		return prefs
	}
	stored, err := s.prefs.FindByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load schedule preferences, using defaults", zap.Error(err))
		return prefs
	}
	if stored != nil {
		prefs = *stored
		if prefs.DailyHours <= 0 {
			prefs.DailyHours = s.cfg.DefaultDailyHours
		}
	}
	return prefs
}

func (s *PlanService) buildLoads(ctx context.Context, userID string, today time.Time, courses []models.Course, topics []models.Topic, req dto.GeneratePlanRequest) []CourseLoad {
	byCourse := make(map[string][]models.Topic, len(courses))
	for _, topic := range topics {
		byCourse[topic.CourseID] = append(byCourse[topic.CourseID], topic)
	}

	missedByCourse := map[string]int{}
	includeMissed := req.IncludeMissedItems == nil || *req.IncludeMissedItems
	if req.Reschedule && includeMissed {
		missedByCourse = s.countMissed(ctx, userID, today, topics)
	}

	loads := make([]CourseLoad, 0, len(courses))
	for _, course := range courses {
		courseTopics := byCourse[course.ID]
		if len(courseTopics) == 0 {
			continue
		}
		var hours float64
		for _, topic := range courseTopics {
			hours += topic.EstimatedHours
		}
		load := CourseLoad{
			Course:      course,
			Topics:      courseTopics,
			HoursNeeded: hours,
			MissedCount: missedByCourse[course.ID],
		}
		if course.ExamDate != nil {
			load.DaysLeft = dates.DaysBetween(today, *course.ExamDate)
		}
		ComputeUrgency(&load)
		loads = append(loads, load)
	}
	return loads
}

func (s *PlanService) countMissed(ctx context.Context, userID string, today time.Time, topics []models.Topic) map[string]int {
	out := map[string]int{}
	latest, err := s.plans.FindLatest(ctx, userID)
	if err != nil || latest == nil {
		return out
	}
	missedIDs, err := s.plans.ListMissedTopicIDs(ctx, userID, today, latest.PlanVersion)
	if err != nil {
		s.logger.Warn("failed to load missed items", zap.Error(err))
		return out
	}
	courseOf := make(map[string]string, len(topics))
	for _, topic := range topics {
		courseOf[topic.ID] = topic.CourseID
	}
	for _, id := range missedIDs {
		if courseID, ok := courseOf[id]; ok {
			out[courseID]++
		}
	}
	return out
}

// propose asks the model for a schedule, validates it, runs the bounded
// repair loop, and falls back to the deterministic planner when model
// output stays unusable.
func (s *PlanService) propose(ctx context.Context, today time.Time, loads []CourseLoad, eligible []time.Time, capacity, coverageRatio float64) (*dto.ScheduleProposal, ValidationResult, bool, error) {
	vctx := NewValidationContext(loads, eligible, capacity)
	input := s.scheduleInput(today, loads, eligible, capacity, coverageRatio)

	system, user, err := llm.BuildSchedulePrompt(input)
	if err != nil {
		return nil, ValidationResult{}, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build schedule prompt")
	}

	completion, err := s.model.Complete(ctx, llm.CompletionRequest{
		System: system,
		User:   user,
		Event:  "plan_generation",
	})
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrModelRateLimited.Code) || appErrors.HasCode(err, appErrors.ErrModelCreditsExhausted.Code) {
			return nil, ValidationResult{}, false, err
		}
		// Gateway trouble that is not billing: plan deterministically.
		s.logger.Warn("model unavailable, using fallback planner", zap.Error(err))
		proposal := FallbackSchedule(loads, eligible, capacity, coverageRatio)
		return proposal, ValidateProposal(proposal, vctx), true, nil
	}

	var proposal dto.ScheduleProposal
	if err := llm.DecodeJSON(completion.Content, &proposal); err != nil {
		s.logger.Warn("unparseable schedule, using fallback planner", zap.Error(err))
		fallback := FallbackSchedule(loads, eligible, capacity, coverageRatio)
		return fallback, ValidateProposal(fallback, vctx), true, nil
	}

	validation := ValidateProposal(&proposal, vctx)
	if validation.Valid() {
		return &proposal, validation, false, nil
	}

	for attempt := 0; attempt < s.cfg.RepairAttempts; attempt++ {
		repaired, repairedValidation, ok := s.repair(ctx, input, &proposal, validation, vctx)
		if !ok {
			// Unparseable repair output: last resort planner.
			fallback := FallbackSchedule(loads, eligible, capacity, coverageRatio)
			return fallback, ValidateProposal(fallback, vctx), true, nil
		}
		proposal = *repaired
		validation = repairedValidation
		if validation.Valid() {
			break
		}
	}

	// Possibly still invalid: proceed with the best available schedule.
	return &proposal, validation, false, nil
}

func (s *PlanService) repair(ctx context.Context, input llm.ScheduleInput, prior *dto.ScheduleProposal, validation ValidationResult, vctx ValidationContext) (*dto.ScheduleProposal, ValidationResult, bool) {
	system, user, err := llm.BuildRepairPrompt(input, prior, validation.Errors, repairErrorLimit)
	if err != nil {
		return nil, ValidationResult{}, false
	}
	completion, err := s.model.Complete(ctx, llm.CompletionRequest{
		System: system,
		User:   user,
		Event:  "plan_repair",
	})
	if err != nil {
		return nil, ValidationResult{}, false
	}
	var repaired dto.ScheduleProposal
	if err := llm.DecodeJSON(completion.Content, &repaired); err != nil {
		return nil, ValidationResult{}, false
	}
	return &repaired, ValidateProposal(&repaired, vctx), true
}

func (s *PlanService) scheduleInput(today time.Time, loads []CourseLoad, eligible []time.Time, capacity, coverageRatio float64) llm.ScheduleInput {
	input := llm.ScheduleInput{Today: dates.Format(today)}
	for _, load := range loads {
		course := llm.ScheduleCourse{
			CourseID: load.Course.ID,
			Title:    load.Course.Title,
			Urgency:  load.Urgency,
		}
		if load.Course.ExamDate != nil {
			course.ExamDate = dates.Format(*load.Course.ExamDate)
		}
		input.Courses = append(input.Courses, course)

		for _, topic := range load.Topics {
			input.Topics = append(input.Topics, llm.ScheduleTopic{
				TopicID:        topic.ID,
				CourseID:       topic.CourseID,
				Title:          topic.Title,
				EstimatedHours: CompressHours(topic.EstimatedHours, coverageRatio),
				Difficulty:     topic.DifficultyWeight,
				Importance:     topic.ExamImportance,
				Prerequisites:  []string(topic.Prerequisites),
			})
		}
	}
	for _, day := range eligible {
		input.Days = append(input.Days, llm.ScheduleDayBudget{Date: dates.Format(day), Hours: capacity})
	}
	return input
}

// persist writes the plan, its days, and its items as one transaction,
// superseding the future days of earlier versions.
func (s *PlanService) persist(ctx context.Context, userID string, today time.Time, proposal *dto.ScheduleProposal, validationPassed bool) (*models.StudyPlan, int, int, error) {
	if s.tx == nil {
		return nil, 0, 0, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	plan := &models.StudyPlan{UserID: userID, ValidationPassed: validationPassed}
	if err = s.plans.CreateVersioned(ctx, tx, plan); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan version")
		return nil, 0, 0, err
	}
	if err = s.plans.DeleteFutureDays(ctx, tx, userID, today, plan.PlanVersion); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to supersede previous plan days")
		return nil, 0, 0, err
	}

	var itemCount int
	for _, day := range proposal.Days {
		date, parseErr := dates.Parse(day.Date)
		if parseErr != nil || len(day.Items) == 0 {
			continue
		}
		var total float64
		for _, item := range day.Items {
			total += item.Hours
		}
		planDay := &models.StudyPlanDay{
			PlanID:      plan.ID,
			UserID:      userID,
			Date:        date,
			TotalHours:  total,
			PlanVersion: plan.PlanVersion,
		}
		if err = s.plans.InsertDay(ctx, tx, planDay); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist plan day")
			return nil, 0, 0, err
		}

		items := make([]models.StudyPlanItem, 0, len(day.Items))
		for _, item := range day.Items {
			items = append(items, models.StudyPlanItem{
				DayID:         planDay.ID,
				TopicID:       item.TopicID,
				CourseID:      item.CourseID,
				Hours:         item.Hours,
				SequenceOrder: item.SequenceOrder,
				IsReview:      item.IsReview,
			})
		}
		if err = s.plans.InsertItems(ctx, tx, items); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist plan items")
			return nil, 0, 0, err
		}
		itemCount += len(items)
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit plan")
		return nil, 0, 0, err
	}

	dayCount := 0
	for _, day := range proposal.Days {
		if len(day.Items) > 0 {
			dayCount++
		}
	}
	return plan, dayCount, itemCount, nil
}

// CurrentPlan returns the user's latest plan as a read model, served from
// cache when fresh.
func (s *PlanService) CurrentPlan(ctx context.Context, userID string) (*dto.PlanView, error) {
	key := repository.PlanKey(userID)
	if s.cache != nil {
		var cached dto.PlanView
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	plan, err := s.plans.FindLatest(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	if plan == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no study plan generated yet")
	}

	days, err := s.plans.ListDays(ctx, plan.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan days")
	}
	rows, err := s.plans.ListItemViews(ctx, plan.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan items")
	}

	itemsByDay := make(map[string][]dto.PlanItemView, len(days))
	for _, row := range rows {
		itemsByDay[row.DayID] = append(itemsByDay[row.DayID], dto.PlanItemView{
			TopicID:       row.TopicID,
			TopicTitle:    row.TopicTitle,
			CourseID:      row.CourseID,
			CourseTitle:   row.CourseTitle,
			Hours:         row.Hours,
			SequenceOrder: row.SequenceOrder,
			IsReview:      row.IsReview,
		})
	}

	view := &dto.PlanView{
		PlanVersion:      plan.PlanVersion,
		ValidationPassed: plan.ValidationPassed,
	}
	for _, day := range days {
		view.Days = append(view.Days, dto.PlanDayView{
			Date:       dates.Format(day.Date),
			TotalHours: day.TotalHours,
			IsOffDay:   day.IsOffDay,
			Items:      itemsByDay[day.ID],
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, view, s.cfg.PlanCacheTTL); err != nil {
			s.logger.Warn("failed to cache plan view", zap.Error(err))
		}
	}
	return view, nil
}
