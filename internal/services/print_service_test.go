package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/acanas/selftest-service/internal/cache"
	"github.com/acanas/selftest-service/internal/events"
	"github.com/acanas/selftest-service/internal/models"
	"github.com/acanas/selftest-service/internal/repositories"
	"github.com/acanas/selftest-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ===== MOCKS =====

type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) FindRandom(ctx context.Context, filters repositories.QuestionFilters, count int) ([]*models.Question, error) {
	args := m.Called(ctx, filters, count)
	return args.Get(0).([]*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetTags(ctx context.Context, questionID uint) ([]*models.Tag, error) {
	args := m.Called(ctx, questionID)
	return args.Get(0).([]*models.Tag), args.Error(1)
}

type MockPrintRepository struct {
	mock.Mock
}

func (m *MockPrintRepository) Create(ctx context.Context, print *models.TestPrint) error {
	args := m.Called(ctx, print)
	return args.Error(0)
}

func (m *MockPrintRepository) GetByID(ctx context.Context, id uint) (*models.TestPrint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TestPrint), args.Error(1)
}

func (m *MockPrintRepository) SaveAnswers(ctx context.Context, print *models.TestPrint) error {
	args := m.Called(ctx, print)
	return args.Error(0)
}

func (m *MockPrintRepository) Finalize(ctx context.Context, print *models.TestPrint) error {
	args := m.Called(ctx, print)
	return args.Error(0)
}

func (m *MockPrintRepository) GetLastPrint(ctx context.Context, userID, courseID uint) (*models.TestPrint, error) {
	args := m.Called(ctx, userID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TestPrint), args.Error(1)
}

func (m *MockPrintRepository) List(ctx context.Context, filters repositories.PrintFilters) ([]*models.TestPrint, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.TestPrint), args.Get(1).(int64), args.Error(2)
}

func (m *MockPrintRepository) DeleteByUserAndCourse(ctx context.Context, userID, courseID uint) error {
	args := m.Called(ctx, userID, courseID)
	return args.Error(0)
}

type MockConfigRepository struct {
	mock.Mock
}

func (m *MockConfigRepository) GetByCourse(ctx context.Context, courseID uint) (*models.TestConfig, error) {
	args := m.Called(ctx, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TestConfig), args.Error(1)
}

func (m *MockConfigRepository) Upsert(ctx context.Context, cfg *models.TestConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockRepository struct {
	questionRepo *MockQuestionRepository
	printRepo    *MockPrintRepository
	configRepo   *MockConfigRepository
	userRepo     *MockUserRepository
}

func (m *MockRepository) Question() repositories.QuestionRepository { return m.questionRepo }
func (m *MockRepository) Print() repositories.PrintRepository       { return m.printRepo }
func (m *MockRepository) Config() repositories.ConfigRepository     { return m.configRepo }
func (m *MockRepository) User() repositories.UserRepository         { return m.userRepo }

type MockThrottleStore struct {
	mock.Mock
}

func (m *MockThrottleStore) GetLastPrint(ctx context.Context, userID, courseID uint) (*cache.LastPrint, error) {
	args := m.Called(ctx, userID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cache.LastPrint), args.Error(1)
}

func (m *MockThrottleStore) RecordPrint(ctx context.Context, userID, courseID uint, last cache.LastPrint) error {
	args := m.Called(ctx, userID, courseID, last)
	return args.Error(0)
}

// ===== FIXTURE =====

type printServiceFixture struct {
	repo      *MockRepository
	throttle  *MockThrottleStore
	publisher *events.MockEventPublisher
	service   *PrintService
}

func newPrintServiceFixture(t *testing.T) *printServiceFixture {
	t.Helper()

	repo := &MockRepository{
		questionRepo: &MockQuestionRepository{},
		printRepo:    &MockPrintRepository{},
		configRepo:   &MockConfigRepository{},
		userRepo:     &MockUserRepository{},
	}
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	throttle := &MockThrottleStore{}
	publisher := events.NewMockEventPublisher(utils.ToSlogLogger(logger))
	validator := utils.NewValidator()

	configService := NewConfigService(repo, validator, logger)
	service := NewPrintService(repo, configService, throttle, publisher, validator, logger)

	return &printServiceFixture{
		repo:      repo,
		throttle:  throttle,
		publisher: publisher,
		service:   service,
	}
}

func testStudent(id uint) *models.User {
	return &models.User{ID: id, FullName: "Test Student", Email: "student@test.edu", Role: models.RoleStudent}
}

func testTeacher(id uint) *models.User {
	return &models.User{ID: id, FullName: "Test Teacher", Email: "teacher@test.edu", Role: models.RoleTeacher}
}

// ===== COMPILE =====

func TestPrintService_CompilePrint(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	questions := []*models.Question{
		choiceQuestion(models.AnswerUniqueChoice, true, false, false),
		{ID: 2, CourseID: 1, Type: models.AnswerInteger, Stem: "q", IntegerAnswer: intPtr(5), EditTime: time.Now().Add(-time.Hour)},
	}
	questions[0].ID = 1

	f.repo.userRepo.On("GetByID", ctx, uint(7)).Return(testStudent(7), nil)
	f.repo.configRepo.On("GetByCourse", ctx, uint(1)).Return(nil, gorm.ErrRecordNotFound)
	f.throttle.On("GetLastPrint", ctx, uint(7), uint(1)).Return(nil, nil)
	f.repo.questionRepo.On("FindRandom", ctx, mock.Anything, 2).Return(questions, nil)
	f.repo.printRepo.On("Create", ctx, mock.Anything).Return(nil)
	f.throttle.On("RecordPrint", ctx, uint(7), uint(1), mock.Anything).Return(nil)

	print, err := f.service.CompilePrint(ctx, 7, &CompilePrintRequest{CourseID: 1, NumQuestions: 2})
	require.NoError(t, err)

	assert.Equal(t, uint(7), print.UserID)
	assert.Equal(t, 2, print.NumQuestions)
	assert.False(t, print.Sent)
	require.Len(t, print.Questions, 2)
	assert.Equal(t, "0,1,2", print.Questions[0].IndexSequence)
	assert.Equal(t, "", print.Questions[1].IndexSequence, "non-choice questions have no option order")

	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.PrintCreated, published[0].Type)

	f.repo.printRepo.AssertExpectations(t)
	f.throttle.AssertExpectations(t)
}

func TestPrintService_CompilePrint_EditDateRange(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	f.repo.userRepo.On("GetByID", ctx, uint(7)).Return(testStudent(7), nil)
	f.repo.configRepo.On("GetByCourse", ctx, uint(1)).Return(nil, gorm.ErrRecordNotFound)
	f.throttle.On("GetLastPrint", ctx, uint(7), uint(1)).Return(nil, nil)
	f.repo.questionRepo.On("FindRandom", ctx, mock.MatchedBy(func(filters repositories.QuestionFilters) bool {
		return filters.EditedFrom != nil && filters.EditedFrom.Equal(from) &&
			filters.EditedTo != nil && filters.EditedTo.Equal(to)
	}), 2).Return([]*models.Question{choiceQuestion(models.AnswerUniqueChoice, true, false)}, nil)
	f.repo.printRepo.On("Create", ctx, mock.Anything).Return(nil)
	f.throttle.On("RecordPrint", ctx, uint(7), uint(1), mock.Anything).Return(nil)

	_, err := f.service.CompilePrint(ctx, 7, &CompilePrintRequest{
		CourseID:     1,
		NumQuestions: 2,
		EditedFrom:   &from,
		EditedTo:     &to,
	})
	require.NoError(t, err)
	f.repo.questionRepo.AssertExpectations(t)
}

func TestPrintService_CompilePrint_CountOutOfRange(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	f.repo.userRepo.On("GetByID", ctx, uint(7)).Return(testStudent(7), nil)
	f.repo.configRepo.On("GetByCourse", ctx, uint(1)).Return(nil, gorm.ErrRecordNotFound)

	_, err := f.service.CompilePrint(ctx, 7, &CompilePrintRequest{CourseID: 1, NumQuestions: 50})

	var rangeErr *ConfigOutOfRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 50, rangeErr.Requested)
	assert.Equal(t, models.DefaultMinQuestions, rangeErr.Min)
	assert.Equal(t, models.DefaultMaxQuestions, rangeErr.Max)
	f.repo.printRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPrintService_CompilePrint_DefaultCount(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	f.repo.userRepo.On("GetByID", ctx, uint(7)).Return(testStudent(7), nil)
	f.repo.configRepo.On("GetByCourse", ctx, uint(1)).Return(nil, gorm.ErrRecordNotFound)
	f.throttle.On("GetLastPrint", ctx, uint(7), uint(1)).Return(nil, nil)
	f.repo.questionRepo.On("FindRandom", ctx, mock.Anything, models.DefaultDefQuestions).
		Return([]*models.Question{choiceQuestion(models.AnswerUniqueChoice, true, false)}, nil)
	f.repo.printRepo.On("Create", ctx, mock.Anything).Return(nil)
	f.throttle.On("RecordPrint", ctx, uint(7), uint(1), mock.Anything).Return(nil)

	// Fewer matching questions than requested is fine.
	print, err := f.service.CompilePrint(ctx, 7, &CompilePrintRequest{CourseID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, print.NumQuestions)
}

func TestPrintService_CompilePrint_Throttled(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	cfg := models.DefaultTestConfig(1)
	cfg.MinTimeNextPrintPerQuestion = 10

	f.repo.userRepo.On("GetByID", ctx, uint(7)).Return(testStudent(7), nil)
	f.repo.configRepo.On("GetByCourse", ctx, uint(1)).Return(cfg, nil)
	f.throttle.On("GetLastPrint", ctx, uint(7), uint(1)).
		Return(&cache.LastPrint{StartTime: time.Now(), NumQuestions: 20}, nil)

	_, err := f.service.CompilePrint(ctx, 7, &CompilePrintRequest{CourseID: 1, NumQuestions: 20})

	var tve *ThrottleViolationError
	require.ErrorAs(t, err, &tve)
	f.repo.printRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.GetPublishedEvents())
}

func TestPrintService_CompilePrint_NoMatchingQuestions(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	f.repo.userRepo.On("GetByID", ctx, uint(7)).Return(testStudent(7), nil)
	f.repo.configRepo.On("GetByCourse", ctx, uint(1)).Return(nil, gorm.ErrRecordNotFound)
	f.throttle.On("GetLastPrint", ctx, uint(7), uint(1)).Return(nil, nil)
	f.repo.questionRepo.On("FindRandom", ctx, mock.Anything, 5).Return([]*models.Question{}, nil)

	_, err := f.service.CompilePrint(ctx, 7, &CompilePrintRequest{CourseID: 1, NumQuestions: 5})
	assert.ErrorIs(t, err, ErrNoMatchingQuestions)
}

// ===== SAVE ANSWERS =====

func unsentPrint(userID uint) *models.TestPrint {
	return &models.TestPrint{
		ID:           3,
		UserID:       userID,
		CourseID:     1,
		StartTime:    time.Now().Add(-10 * time.Minute),
		NumQuestions: 2,
		Questions: []models.PrintedQuestion{
			{PrintID: 3, Position: 0, QuestionID: 1, IndexSequence: "0,1,2"},
			{PrintID: 3, Position: 1, QuestionID: 2},
		},
	}
}

func TestPrintService_SaveAnswers(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	print := unsentPrint(7)
	f.repo.printRepo.On("GetByID", ctx, uint(3)).Return(print, nil)
	f.repo.printRepo.On("SaveAnswers", ctx, print).Return(nil)

	saved, err := f.service.SaveAnswers(ctx, 7, 3, &SaveAnswersRequest{
		Answers: []AnswerSubmission{
			{Position: 0, AnswerText: "1"},
			{Position: 1, AnswerText: ""},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", saved.Questions[0].AnswerText)
	assert.Equal(t, 1, saved.NumNotBlank)
}

func TestPrintService_SaveAnswers_Repeated(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	print := unsentPrint(7)
	f.repo.printRepo.On("GetByID", ctx, uint(3)).Return(print, nil)
	f.repo.printRepo.On("SaveAnswers", ctx, print).Return(nil)

	req := &SaveAnswersRequest{
		Answers: []AnswerSubmission{
			{Position: 0, AnswerText: "1"},
			{Position: 1, AnswerText: "42"},
		},
	}

	first, err := f.service.SaveAnswers(ctx, 7, 3, req)
	require.NoError(t, err)

	// Repeating the identical call leaves identical state behind.
	second, err := f.service.SaveAnswers(ctx, 7, 3, req)
	require.NoError(t, err)
	assert.Equal(t, first.Questions[0].AnswerText, second.Questions[0].AnswerText)
	assert.Equal(t, first.Questions[1].AnswerText, second.Questions[1].AnswerText)
	assert.Equal(t, first.NumNotBlank, second.NumNotBlank)

	// A later submission fully replaces the previous answer at its position.
	third, err := f.service.SaveAnswers(ctx, 7, 3, &SaveAnswersRequest{
		Answers: []AnswerSubmission{{Position: 1, AnswerText: ""}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", third.Questions[0].AnswerText, "untouched position keeps its answer")
	assert.Equal(t, "", third.Questions[1].AnswerText)
	assert.Equal(t, 1, third.NumNotBlank)
}

func TestPrintService_SaveAnswers_NotOwner(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	f.repo.printRepo.On("GetByID", ctx, uint(3)).Return(unsentPrint(7), nil)

	_, err := f.service.SaveAnswers(ctx, 8, 3, &SaveAnswersRequest{
		Answers: []AnswerSubmission{{Position: 0, AnswerText: "1"}},
	})
	assert.True(t, IsForbidden(err))
	f.repo.printRepo.AssertNotCalled(t, "SaveAnswers", mock.Anything, mock.Anything)
}

func TestPrintService_SaveAnswers_AlreadySent(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	print := unsentPrint(7)
	print.Sent = true
	f.repo.printRepo.On("GetByID", ctx, uint(3)).Return(print, nil)

	_, err := f.service.SaveAnswers(ctx, 7, 3, &SaveAnswersRequest{
		Answers: []AnswerSubmission{{Position: 0, AnswerText: "1"}},
	})
	assert.ErrorIs(t, err, ErrPrintAlreadySent)
	f.repo.printRepo.AssertNotCalled(t, "SaveAnswers", mock.Anything, mock.Anything)
}

func TestPrintService_SaveAnswers_PositionOutOfRange(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	f.repo.printRepo.On("GetByID", ctx, uint(3)).Return(unsentPrint(7), nil)

	_, err := f.service.SaveAnswers(ctx, 7, 3, &SaveAnswersRequest{
		Answers: []AnswerSubmission{{Position: 5, AnswerText: "1"}},
	})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

// ===== SEND =====

func TestPrintService_SendPrint(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	print := unsentPrint(7)
	q1 := choiceQuestion(models.AnswerUniqueChoice, false, true, false)
	q1.ID = 1
	q2 := &models.Question{
		ID: 2, CourseID: 1, Type: models.AnswerTrueFalse,
		Stem: "q", TrueFalse: strPtr("T"),
		EditTime: print.StartTime.Add(-time.Hour),
	}

	f.repo.printRepo.On("GetByID", ctx, uint(3)).Return(print, nil)
	f.repo.questionRepo.On("GetByID", ctx, uint(1)).Return(q1, nil)
	f.repo.questionRepo.On("GetByID", ctx, uint(2)).Return(q2, nil)
	f.repo.printRepo.On("Finalize", ctx, print).Return(nil)

	sent, err := f.service.SendPrint(ctx, 7, 3, &SendPrintRequest{
		Answers: []AnswerSubmission{
			{Position: 0, AnswerText: "1"},
			{Position: 1, AnswerText: "F"},
		},
		VisibleToTeachers: true,
	})
	require.NoError(t, err)

	assert.True(t, sent.Sent)
	assert.True(t, sent.VisibleToTeachers)
	require.NotNil(t, sent.EndTime)
	assert.Equal(t, 2, sent.NumNotBlank)

	// Correct unique choice earns 1, wrong true/false costs 1.
	assert.InDelta(t, 1.0, sent.Questions[0].Score, 1e-9)
	assert.InDelta(t, -1.0, sent.Questions[1].Score, 1e-9)
	assert.InDelta(t, 0.0, sent.Score, 1e-9)

	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.PrintFinalized, published[0].Type)

	f.repo.printRepo.AssertExpectations(t)
}

func TestPrintService_SendPrint_AlreadySent(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	print := unsentPrint(7)
	print.Sent = true
	f.repo.printRepo.On("GetByID", ctx, uint(3)).Return(print, nil)

	_, err := f.service.SendPrint(ctx, 7, 3, &SendPrintRequest{VisibleToTeachers: false})
	assert.ErrorIs(t, err, ErrPrintAlreadySent)
	f.repo.printRepo.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.GetPublishedEvents())
}

func TestPrintService_SendPrint_StaleQuestionsSuppressed(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	print := unsentPrint(7)
	print.Questions[0].AnswerText = "1"
	print.Questions[1].AnswerText = "T"

	// Question 1 was edited after the print started; question 2 is gone.
	edited := choiceQuestion(models.AnswerUniqueChoice, false, true, false)
	edited.ID = 1
	edited.EditTime = print.StartTime.Add(time.Minute)

	f.repo.printRepo.On("GetByID", ctx, uint(3)).Return(print, nil)
	f.repo.questionRepo.On("GetByID", ctx, uint(1)).Return(edited, nil)
	f.repo.questionRepo.On("GetByID", ctx, uint(2)).Return(nil, gorm.ErrRecordNotFound)
	f.repo.printRepo.On("Finalize", ctx, print).Return(nil)

	sent, err := f.service.SendPrint(ctx, 7, 3, &SendPrintRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.QuestionModifiedAfterPrint, sent.Questions[0].State)
	assert.Equal(t, models.QuestionRemoved, sent.Questions[1].State)
	assert.Equal(t, 0.0, sent.Questions[0].Score)
	assert.Equal(t, 0.0, sent.Questions[1].Score)
	assert.Equal(t, 0.0, sent.Score)
}

// ===== RESULTS =====

func TestPrintService_ListResults_StudentSeesOnlyOwnSent(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	f.repo.userRepo.On("GetByID", ctx, uint(7)).Return(testStudent(7), nil)
	f.repo.printRepo.On("List", ctx, mock.MatchedBy(func(filters repositories.PrintFilters) bool {
		return filters.UserID != nil && *filters.UserID == 7 &&
			filters.Sent != nil && *filters.Sent &&
			filters.VisibleToTeachers == nil
	})).Return([]*models.TestPrint{}, int64(0), nil)

	other := uint(8)
	_, _, err := f.service.ListResults(ctx, 7, repositories.PrintFilters{CourseID: 1, UserID: &other})
	require.NoError(t, err)
	f.repo.printRepo.AssertExpectations(t)
}

func TestPrintService_ListResults_TeacherSeesOnlyDisclosed(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	f.repo.userRepo.On("GetByID", ctx, uint(9)).Return(testTeacher(9), nil)
	f.repo.printRepo.On("List", ctx, mock.MatchedBy(func(filters repositories.PrintFilters) bool {
		return filters.Sent != nil && *filters.Sent &&
			filters.VisibleToTeachers != nil && *filters.VisibleToTeachers
	})).Return([]*models.TestPrint{}, int64(0), nil)

	_, _, err := f.service.ListResults(ctx, 9, repositories.PrintFilters{CourseID: 1})
	require.NoError(t, err)
	f.repo.printRepo.AssertExpectations(t)
}

// ===== DELETE =====

func TestPrintService_DeleteUserPrints(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	f.repo.userRepo.On("GetByID", ctx, uint(9)).Return(testTeacher(9), nil)
	f.repo.printRepo.On("DeleteByUserAndCourse", ctx, uint(7), uint(1)).Return(nil)

	require.NoError(t, f.service.DeleteUserPrints(ctx, 9, 7, 1))
	f.repo.printRepo.AssertExpectations(t)
}

func TestPrintService_DeleteUserPrints_StudentForbidden(t *testing.T) {
	f := newPrintServiceFixture(t)
	ctx := context.Background()

	f.repo.userRepo.On("GetByID", ctx, uint(7)).Return(testStudent(7), nil)

	err := f.service.DeleteUserPrints(ctx, 7, 7, 1)
	assert.True(t, IsForbidden(err))
	f.repo.printRepo.AssertNotCalled(t, "DeleteByUserAndCourse", mock.Anything, mock.Anything, mock.Anything)
}
