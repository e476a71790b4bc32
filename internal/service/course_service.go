package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/models"
	"github.com/studymate/studyplan-api/internal/repository"
	"github.com/studymate/studyplan-api/pkg/dates"
	appErrors "github.com/studymate/studyplan-api/pkg/errors"
)

type courseStore interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListByUser(ctx context.Context, userID string, status models.CourseStatus) ([]models.Course, error)
	UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error
}

type courseTopicStore interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Topic, error)
	FindByID(ctx context.Context, id string) (*models.Topic, error)
	Update(ctx context.Context, topic *models.Topic) error
}

type preferenceStore interface {
	FindByUser(ctx context.Context, userID string) (*models.SchedulePreferences, error)
	Upsert(ctx context.Context, prefs *models.SchedulePreferences) error
}

type planInvalidator interface {
	Invalidate(ctx context.Context, key string)
}

// CourseService covers course and topic management plus schedule
// preferences.
type CourseService struct {
	courses   courseStore
	topics    courseTopicStore
	prefs     preferenceStore
	cache     planInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(courses courseStore, topics courseTopicStore, prefs preferenceStore, cache planInvalidator, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{courses: courses, topics: topics, prefs: prefs, cache: cache, validator: validate, logger: logger}
}

// CreateCourse registers a new course for the user.
func (s *CourseService) CreateCourse(ctx context.Context, userID string, req dto.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{UserID: userID, Title: req.Title, Status: models.CourseStatusActive}
	if req.ExamDate != "" {
		examDate, err := dates.Parse(req.ExamDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "examDate must be YYYY-MM-DD")
		}
		course.ExamDate = &examDate
	}

	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("user_id", userID), zap.String("course_id", course.ID))
	return course, nil
}

// GetCourse returns one of the user's courses.
func (s *CourseService) GetCourse(ctx context.Context, userID, courseID string) (*models.Course, error) {
	return s.ownedCourse(ctx, userID, courseID)
}

// ListCourses returns the user's courses, optionally filtered by status.
func (s *CourseService) ListCourses(ctx context.Context, userID string, status models.CourseStatus) ([]models.Course, error) {
	courses, err := s.courses.ListByUser(ctx, userID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// ArchiveCourse retires a course from scheduling without deleting its data.
func (s *CourseService) ArchiveCourse(ctx context.Context, userID, courseID string) error {
	if _, err := s.ownedCourse(ctx, userID, courseID); err != nil {
		return err
	}
	if err := s.courses.UpdateStatus(ctx, courseID, models.CourseStatusArchived); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive course")
	}
	return nil
}

// ListTopics returns the topics of one of the user's courses.
func (s *CourseService) ListTopics(ctx context.Context, userID, courseID string) ([]models.Topic, error) {
	if _, err := s.ownedCourse(ctx, userID, courseID); err != nil {
		return nil, err
	}
	topics, err := s.topics.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list topics")
	}
	return topics, nil
}

// UpdateTopic patches the owner-mutable fields of a topic.
func (s *CourseService) UpdateTopic(ctx context.Context, userID, topicID string, req dto.UpdateTopicRequest) (*models.Topic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}

	topic, err := s.topics.FindByID(ctx, topicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	if _, err := s.ownedCourse(ctx, userID, topic.CourseID); err != nil {
		// Ownership failures read as missing topics, not missing courses.
		return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
	}

	if req.Title != nil {
		topic.Title = *req.Title
	}
	if req.Notes != nil {
		topic.Notes = req.Notes
	}
	if req.Status != nil {
		topic.Status = models.TopicStatus(*req.Status)
	}
	if req.DifficultyWeight != nil {
		topic.DifficultyWeight = *req.DifficultyWeight
	}
	if req.ExamImportance != nil {
		topic.ExamImportance = *req.ExamImportance
	}

	if err := s.topics.Update(ctx, topic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update topic")
	}
	return topic, nil
}

// GetPreferences returns the user's schedule preferences, defaults when
// none were saved.
func (s *CourseService) GetPreferences(ctx context.Context, userID string) (*models.SchedulePreferences, error) {
	prefs, err := s.prefs.FindByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	if prefs == nil {
		return &models.SchedulePreferences{UserID: userID, WeeklyOffDays: pq.StringArray{}, BlackoutDates: pq.StringArray{}}, nil
	}
	return prefs, nil
}

// UpsertPreferences stores the user's schedule preferences and drops any
// cached plan view, since eligibility may have changed.
func (s *CourseService) UpsertPreferences(ctx context.Context, userID string, req dto.UpsertPreferencesRequest) (*models.SchedulePreferences, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preferences payload")
	}

	prefs := &models.SchedulePreferences{
		UserID:        userID,
		DailyHours:    req.DailyHours,
		WeeklyOffDays: pq.StringArray(req.WeeklyOffDays),
		BlackoutDates: pq.StringArray(req.BlackoutDates),
	}
	if err := s.prefs.Upsert(ctx, prefs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save preferences")
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, repository.PlanKey(userID))
	}
	return prefs, nil
}

func (s *CourseService) ownedCourse(ctx context.Context, userID, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}
