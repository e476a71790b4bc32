package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/models"
	appErrors "github.com/studymate/studyplan-api/pkg/errors"
)

type courseStoreStub struct {
	byID     map[string]*models.Course
	created  []*models.Course
	statuses map[string]models.CourseStatus
}

func (s *courseStoreStub) Create(ctx context.Context, course *models.Course) error {
	course.ID = "course-new"
	s.created = append(s.created, course)
	return nil
}

func (s *courseStoreStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

func (s *courseStoreStub) ListByUser(ctx context.Context, userID string, status models.CourseStatus) ([]models.Course, error) {
	var out []models.Course
	for _, course := range s.byID {
		if course.UserID == userID && (status == "" || course.Status == status) {
			out = append(out, *course)
		}
	}
	return out, nil
}

func (s *courseStoreStub) UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error {
	if s.statuses == nil {
		s.statuses = map[string]models.CourseStatus{}
	}
	s.statuses[id] = status
	return nil
}

type courseTopicStoreStub struct {
	byID    map[string]*models.Topic
	updated *models.Topic
}

func (s *courseTopicStoreStub) ListByCourse(ctx context.Context, courseID string) ([]models.Topic, error) {
	var out []models.Topic
	for _, topic := range s.byID {
		if topic.CourseID == courseID {
			out = append(out, *topic)
		}
	}
	return out, nil
}

func (s *courseTopicStoreStub) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	topic, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *topic
	return &clone, nil
}

func (s *courseTopicStoreStub) Update(ctx context.Context, topic *models.Topic) error {
	s.updated = topic
	return nil
}

type preferenceStoreStub struct {
	stored *models.SchedulePreferences
}

func (s *preferenceStoreStub) FindByUser(ctx context.Context, userID string) (*models.SchedulePreferences, error) {
	return s.stored, nil
}

func (s *preferenceStoreStub) Upsert(ctx context.Context, prefs *models.SchedulePreferences) error {
	s.stored = prefs
	return nil
}

func newCourseFixture() (*CourseService, *courseStoreStub, *courseTopicStoreStub, *preferenceStoreStub) {
	courses := &courseStoreStub{byID: map[string]*models.Course{
		"course-1": {ID: "course-1", UserID: "user-1", Title: "Calculus I", Status: models.CourseStatusActive},
	}}
	topics := &courseTopicStoreStub{byID: map[string]*models.Topic{
		"topic-1": {ID: "topic-1", CourseID: "course-1", Title: "Limits", DifficultyWeight: 3, ExamImportance: 3, Status: models.TopicStatusNotStarted},
	}}
	prefs := &preferenceStoreStub{}
	svc := NewCourseService(courses, topics, prefs, nil, nil, nil)
	return svc, courses, topics, prefs
}

func TestCreateCourse(t *testing.T) {
	svc, courses, _, _ := newCourseFixture()

	course, err := svc.CreateCourse(context.Background(), "user-1", dto.CreateCourseRequest{Title: "Linear Algebra", ExamDate: "2026-10-01"})

	require.NoError(t, err)
	assert.Equal(t, "course-new", course.ID)
	require.NotNil(t, course.ExamDate)
	assert.Equal(t, "2026-10-01", course.ExamDate.Format("2006-01-02"))
	assert.Len(t, courses.created, 1)
}

func TestCreateCourseRejectsBadDate(t *testing.T) {
	svc, _, _, _ := newCourseFixture()

	_, err := svc.CreateCourse(context.Background(), "user-1", dto.CreateCourseRequest{Title: "Linear Algebra", ExamDate: "01-10-2026"})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestArchiveCourse(t *testing.T) {
	svc, courses, _, _ := newCourseFixture()

	err := svc.ArchiveCourse(context.Background(), "user-1", "course-1")

	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusArchived, courses.statuses["course-1"])
}

func TestArchiveCourseNotOwned(t *testing.T) {
	svc, _, _, _ := newCourseFixture()

	err := svc.ArchiveCourse(context.Background(), "intruder", "course-1")

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestListTopics(t *testing.T) {
	svc, _, _, _ := newCourseFixture()

	topics, err := svc.ListTopics(context.Background(), "user-1", "course-1")

	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "Limits", topics[0].Title)
}

func TestUpdateTopic(t *testing.T) {
	svc, _, topics, _ := newCourseFixture()
	status := "done"
	importance := 5

	topic, err := svc.UpdateTopic(context.Background(), "user-1", "topic-1", dto.UpdateTopicRequest{
		Status:         &status,
		ExamImportance: &importance,
	})

	require.NoError(t, err)
	assert.Equal(t, models.TopicStatusDone, topic.Status)
	assert.Equal(t, 5, topic.ExamImportance)
	require.NotNil(t, topics.updated)
	assert.Equal(t, models.TopicStatusDone, topics.updated.Status)
}

func TestUpdateTopicNotOwned(t *testing.T) {
	svc, _, _, _ := newCourseFixture()
	status := "done"

	_, err := svc.UpdateTopic(context.Background(), "intruder", "topic-1", dto.UpdateTopicRequest{Status: &status})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestUpdateTopicRejectsBadStatus(t *testing.T) {
	svc, _, _, _ := newCourseFixture()
	status := "finished"

	_, err := svc.UpdateTopic(context.Background(), "user-1", "topic-1", dto.UpdateTopicRequest{Status: &status})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestGetPreferencesDefaults(t *testing.T) {
	svc, _, _, _ := newCourseFixture()

	prefs, err := svc.GetPreferences(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "user-1", prefs.UserID)
	assert.Empty(t, prefs.WeeklyOffDays)
}

func TestUpsertPreferences(t *testing.T) {
	svc, _, _, store := newCourseFixture()

	prefs, err := svc.UpsertPreferences(context.Background(), "user-1", dto.UpsertPreferencesRequest{
		DailyHours:    4,
		WeeklyOffDays: []string{"sunday"},
		BlackoutDates: []string{"2026-09-01"},
	})

	require.NoError(t, err)
	assert.Equal(t, 4.0, prefs.DailyHours)
	require.NotNil(t, store.stored)
	assert.Equal(t, []string{"sunday"}, []string(store.stored.WeeklyOffDays))
}

func TestUpsertPreferencesRejectsBadDay(t *testing.T) {
	svc, _, _, _ := newCourseFixture()

	_, err := svc.UpsertPreferences(context.Background(), "user-1", dto.UpsertPreferencesRequest{
		WeeklyOffDays: []string{"funday"},
	})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}
