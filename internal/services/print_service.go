package services

import (
	"context"
	"fmt"
	"time"

	"github.com/acanas/selftest-service/internal/cache"
	"github.com/acanas/selftest-service/internal/events"
	"github.com/acanas/selftest-service/internal/models"
	"github.com/acanas/selftest-service/internal/repositories"
	"github.com/acanas/selftest-service/internal/utils"
)

// DefaultMaxGrade is the scale results are graded on.
const DefaultMaxGrade = 10.0

// PrintService drives the print lifecycle: compile, save answers, send, and
// review.
type PrintService struct {
	repo      repositories.Repository
	config    *ConfigService
	throttle  cache.ThrottleStore
	publisher events.EventPublisher
	validator *utils.Validator
	logger    utils.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewPrintService(
	repo repositories.Repository,
	config *ConfigService,
	throttle cache.ThrottleStore,
	publisher events.EventPublisher,
	validator *utils.Validator,
	logger utils.Logger,
) *PrintService {
	return &PrintService{
		repo:      repo,
		config:    config,
		throttle:  throttle,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// ===== REQUEST / RESPONSE SHAPES =====

// CompilePrintRequest selects the question pool and size of a new print.
// NumQuestions zero means the course default.
type CompilePrintRequest struct {
	CourseID     uint                `json:"course_id" validate:"required"`
	NumQuestions int                 `json:"num_questions" validate:"min=0,max=100"`
	TagIDs       []uint              `json:"tag_ids"`
	AnswerTypes  []models.AnswerType `json:"answer_types" validate:"dive,answer_type"`

	// EditedFrom/EditedTo restrict the pool to questions last edited within
	// the range. Either bound may be nil.
	EditedFrom *time.Time `json:"edited_from"`
	EditedTo   *time.Time `json:"edited_to"`
}

// AnswerSubmission is one answer keyed by the question's position within the
// print. Empty text blanks the answer.
type AnswerSubmission struct {
	Position   int    `json:"position" validate:"min=0"`
	AnswerText string `json:"answer_text" validate:"max=2048"`
}

type SaveAnswersRequest struct {
	Answers []AnswerSubmission `json:"answers" validate:"required,min=1,dive"`
}

// SendPrintRequest finalizes a print. Answers included here are applied
// before scoring so the send form does not need a separate save round trip.
type SendPrintRequest struct {
	Answers           []AnswerSubmission `json:"answers" validate:"dive"`
	VisibleToTeachers bool               `json:"visible_to_teachers"`
}

// PrintedOptionView is one option as it was displayed, in display order.
type PrintedOptionView struct {
	Index    int     `json:"index"`
	Text     string  `json:"text,omitempty"`
	MediaURL *string `json:"media_url,omitempty"`
	Feedback *string `json:"feedback,omitempty"`
	Correct  *bool   `json:"correct,omitempty"`
	Selected bool    `json:"selected"`
}

// PrintedQuestionView is one question of a print with the fields the viewer
// is allowed to see.
type PrintedQuestionView struct {
	Position   int                  `json:"position"`
	QuestionID uint                 `json:"question_id"`
	State      models.QuestionState `json:"state"`

	Stem     string              `json:"stem,omitempty"`
	MediaURL *string             `json:"media_url,omitempty"`
	Feedback *string             `json:"feedback,omitempty"`
	Tags     []string            `json:"tags,omitempty"`
	Options  []PrintedOptionView `json:"options,omitempty"`

	AnswerText  string             `json:"answer_text,omitempty"`
	Score       *float64           `json:"score,omitempty"`
	Correctness models.Correctness `json:"correctness,omitempty"`
}

// PrintView is a print rendered for one viewer under the resolved
// visibility.
type PrintView struct {
	ID           uint            `json:"id"`
	UserID       uint            `json:"user_id"`
	CourseID     uint            `json:"course_id"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	NumQuestions int             `json:"num_questions"`
	NumNotBlank  int             `json:"num_not_blank"`
	Sent         bool            `json:"sent"`
	Visibility   PrintVisibility `json:"visibility"`

	Score *float64 `json:"score,omitempty"`
	Grade *float64 `json:"grade,omitempty"`

	Questions []PrintedQuestionView `json:"questions"`
}

// ===== LIFECYCLE =====

// CompilePrint generates a new print for the user: it enforces the course
// size limits and the minimum wait since the previous print, draws the
// questions at random and freezes their option order.
func (s *PrintService) CompilePrint(ctx context.Context, userID uint, req *CompilePrintRequest) (*models.TestPrint, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.config.Resolve(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	count := req.NumQuestions
	if count == 0 {
		count = cfg.Def
	}
	if count < cfg.Min || count > cfg.Max {
		return nil, &ConfigOutOfRangeError{Requested: count, Min: cfg.Min, Max: cfg.Max}
	}

	last, err := s.throttle.GetLastPrint(ctx, userID, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check throttle state: %w", err)
	}
	now := s.now()
	if tve := CheckThrottle(user.Role, last, cfg, now); tve != nil {
		return nil, tve
	}

	questions, err := s.repo.Question().FindRandom(ctx, repositories.QuestionFilters{
		CourseID:    req.CourseID,
		TagIDs:      req.TagIDs,
		AnswerTypes: req.AnswerTypes,
		EditedFrom:  req.EditedFrom,
		EditedTo:    req.EditedTo,
	}, count)
	if err != nil {
		return nil, fmt.Errorf("failed to draw questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoMatchingQuestions
	}

	// Fewer matching questions than requested is not an error; the print
	// simply holds what the bank could supply.
	print := &models.TestPrint{
		UserID:       userID,
		CourseID:     req.CourseID,
		StartTime:    now,
		NumQuestions: len(questions),
		Questions:    make([]models.PrintedQuestion, len(questions)),
	}
	for i, q := range questions {
		print.Questions[i] = models.PrintedQuestion{
			Position:      i,
			QuestionID:    q.ID,
			IndexSequence: models.EncodeIndexes(GenerateIndexes(q)),
		}
	}

	if err := s.repo.Print().Create(ctx, print); err != nil {
		return nil, fmt.Errorf("failed to create print: %w", err)
	}

	if err := s.throttle.RecordPrint(ctx, userID, req.CourseID, cache.LastPrint{
		StartTime:    print.StartTime,
		NumQuestions: print.NumQuestions,
	}); err != nil {
		s.logger.Error("Failed to record throttle state", "error", err, "print_id", print.ID)
	}

	s.publishEvent(ctx, events.NewPrintCreatedEvent(print.ID, userID, req.CourseID, print.NumQuestions))

	s.logger.Info("Print compiled",
		"print_id", print.ID,
		"user_id", userID,
		"course_id", req.CourseID,
		"num_questions", print.NumQuestions)

	return print, nil
}

// SaveAnswers records in-progress answers on an unsent print. The call is
// idempotent; repeating it leaves identical state behind.
func (s *PrintService) SaveAnswers(ctx context.Context, userID, printID uint, req *SaveAnswersRequest) (*models.TestPrint, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	print, err := s.getOwnedMutablePrint(ctx, userID, printID)
	if err != nil {
		return nil, err
	}

	if err := applySubmissions(print, req.Answers); err != nil {
		return nil, err
	}
	print.RecountNotBlank()

	if err := s.repo.Print().SaveAnswers(ctx, print); err != nil {
		return nil, fmt.Errorf("failed to save answers for print %d: %w", printID, err)
	}
	return print, nil
}

// SendPrint finalizes a print: applies any answers carried on the send
// request, scores every question against the live question bank, stamps the
// end time and flips the print to sent. The transition is irreversible.
func (s *PrintService) SendPrint(ctx context.Context, userID, printID uint, req *SendPrintRequest) (*models.TestPrint, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	print, err := s.getOwnedMutablePrint(ctx, userID, printID)
	if err != nil {
		return nil, err
	}

	if len(req.Answers) > 0 {
		if err := applySubmissions(print, req.Answers); err != nil {
			return nil, err
		}
	}

	total := 0.0
	for i := range print.Questions {
		pq := &print.Questions[i]
		result, err := s.scorePrintedQuestion(ctx, print, pq)
		if err != nil {
			return nil, err
		}
		pq.Score = result.Score
		pq.Correctness = result.Correctness
		total += result.Score
	}

	now := s.now()
	print.RecountNotBlank()
	print.Score = total
	print.Sent = true
	print.VisibleToTeachers = req.VisibleToTeachers
	print.EndTime = &now

	if err := s.repo.Print().Finalize(ctx, print); err != nil {
		return nil, fmt.Errorf("failed to finalize print %d: %w", printID, err)
	}

	s.publishEvent(ctx, events.NewPrintFinalizedEvent(
		print.ID, print.UserID, print.CourseID,
		print.NumQuestions, print.NumNotBlank, print.Score, print.VisibleToTeachers))

	s.logger.Info("Print sent",
		"print_id", print.ID,
		"user_id", print.UserID,
		"course_id", print.CourseID,
		"num_not_blank", print.NumNotBlank,
		"score", print.Score,
		"visible_to_teachers", print.VisibleToTeachers)

	return print, nil
}

// scorePrintedQuestion scores one printed question against the live bank.
// A question that disappeared, or was edited after the print started, is
// suppressed: its state is marked and it scores zero.
func (s *PrintService) scorePrintedQuestion(ctx context.Context, print *models.TestPrint, pq *models.PrintedQuestion) (ScoreResult, error) {
	question, err := s.repo.Question().GetByID(ctx, pq.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			pq.State = models.QuestionRemoved
			return ScoreResult{Score: 0, Correctness: models.CorrectnessBlank}, nil
		}
		return ScoreResult{}, fmt.Errorf("failed to get question %d: %w", pq.QuestionID, err)
	}

	if !question.EditTime.Before(print.StartTime) {
		pq.State = models.QuestionModifiedAfterPrint
		return ScoreResult{Score: 0, Correctness: models.CorrectnessBlank}, nil
	}

	pq.State = models.QuestionOK
	return ScoreAnswer(pq, question)
}

// GetPrint loads a print and renders it for the viewer under the resolved
// visibility rules.
func (s *PrintService) GetPrint(ctx context.Context, viewerID, printID uint) (*PrintView, error) {
	viewer, err := s.getUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	print, err := s.getPrint(ctx, printID)
	if err != nil {
		return nil, err
	}

	if print.UserID != viewerID && !viewer.Role.IsPrivileged() {
		return nil, NewPermissionError(viewerID, printID, "print", "view", "only the owner and teachers may view a print")
	}

	cfg, err := s.config.Resolve(ctx, print.CourseID)
	if err != nil {
		return nil, err
	}

	vis := ResolveVisibility(viewer.Role, print, viewerID, cfg)
	if print.UserID != viewerID && viewer.Role.IsPrivileged() && !print.Sent {
		return nil, NewPermissionError(viewerID, printID, "print", "view", "the print has not been sent")
	}

	return s.buildPrintView(ctx, print, vis)
}

// ListResults lists finished prints. Students see their own sent prints;
// privileged users see the sent prints students disclosed, for any user of
// the course.
func (s *PrintService) ListResults(ctx context.Context, viewerID uint, filters repositories.PrintFilters) ([]*models.TestPrint, int64, error) {
	viewer, err := s.getUser(ctx, viewerID)
	if err != nil {
		return nil, 0, err
	}

	sent := true
	filters.Sent = &sent
	if viewer.Role.IsPrivileged() {
		if filters.UserID == nil || *filters.UserID != viewerID {
			disclosed := true
			filters.VisibleToTeachers = &disclosed
		}
	} else {
		filters.UserID = &viewerID
	}

	prints, total, err := s.repo.Print().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list prints: %w", err)
	}
	return prints, total, nil
}

// DeleteUserPrints removes all of one user's prints in a course. Only
// privileged users may call it; it is the single exception to sent-print
// immutability.
func (s *PrintService) DeleteUserPrints(ctx context.Context, requesterID, userID, courseID uint) error {
	requester, err := s.getUser(ctx, requesterID)
	if err != nil {
		return err
	}
	if !requester.Role.IsPrivileged() {
		return NewPermissionError(requesterID, userID, "prints", "delete", "only teachers and admins may delete prints")
	}

	if err := s.repo.Print().DeleteByUserAndCourse(ctx, userID, courseID); err != nil {
		return fmt.Errorf("failed to delete prints of user %d in course %d: %w", userID, courseID, err)
	}

	s.logger.Info("Prints deleted",
		"requester_id", requesterID,
		"user_id", userID,
		"course_id", courseID)
	return nil
}

// ===== VIEW BUILDING =====

func (s *PrintService) buildPrintView(ctx context.Context, print *models.TestPrint, vis PrintVisibility) (*PrintView, error) {
	view := &PrintView{
		ID:           print.ID,
		UserID:       print.UserID,
		CourseID:     print.CourseID,
		StartTime:    print.StartTime,
		EndTime:      print.EndTime,
		NumQuestions: print.NumQuestions,
		NumNotBlank:  print.NumNotBlank,
		Sent:         print.Sent,
		Visibility:   vis,
		Questions:    make([]PrintedQuestionView, 0, len(print.Questions)),
	}

	if vis.TotalScore {
		score := print.Score
		grade := Grade(print.NumQuestions, print.Score, DefaultMaxGrade)
		view.Score = &score
		view.Grade = &grade
	}

	for i := range print.Questions {
		qv, err := s.buildQuestionView(ctx, print, &print.Questions[i], vis)
		if err != nil {
			return nil, err
		}
		view.Questions = append(view.Questions, qv)
	}
	return view, nil
}

func (s *PrintService) buildQuestionView(ctx context.Context, print *models.TestPrint, pq *models.PrintedQuestion, vis PrintVisibility) (PrintedQuestionView, error) {
	qv := PrintedQuestionView{
		Position:   pq.Position,
		QuestionID: pq.QuestionID,
		State:      models.QuestionOK,
	}

	question, err := s.repo.Question().GetByID(ctx, pq.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			qv.State = models.QuestionRemoved
			return qv, nil
		}
		return qv, fmt.Errorf("failed to get question %d: %w", pq.QuestionID, err)
	}
	if !question.EditTime.Before(print.StartTime) {
		qv.State = models.QuestionModifiedAfterPrint
		return qv, nil
	}

	if vis.StemAndAnswerText {
		qv.Stem = question.Stem
		qv.MediaURL = question.MediaURL
		qv.AnswerText = pq.AnswerText
		qv.Options = s.buildOptionViews(question, pq, vis)

		tags, err := s.repo.Question().GetTags(ctx, pq.QuestionID)
		if err != nil {
			return qv, fmt.Errorf("failed to get tags of question %d: %w", pq.QuestionID, err)
		}
		for _, tag := range tags {
			qv.Tags = append(qv.Tags, tag.Name)
		}
	}
	if vis.Feedback {
		qv.Feedback = question.Feedback
	}
	if vis.EachQuestionScore && print.Sent {
		score := pq.Score
		qv.Score = &score

		result, err := ScoreAnswer(pq, question)
		if err == nil {
			qv.Correctness = result.Correctness
		}
	}
	return qv, nil
}

// buildOptionViews renders a choice question's options in the order the
// print displayed them. The correct flags are withheld unless the mask
// grants them.
func (s *PrintService) buildOptionViews(question *models.Question, pq *models.PrintedQuestion, vis PrintVisibility) []PrintedOptionView {
	if !question.Type.IsChoice() || question.Type == models.AnswerText {
		return nil
	}

	indexes, err := models.DecodeIndexes(pq.IndexSequence)
	if err != nil {
		s.logger.Error("Unreadable index sequence",
			"print_id", pq.PrintID, "position", pq.Position, "error", err)
		return nil
	}
	selected, err := models.DecodeSelectedOptions(pq.AnswerText)
	if err != nil {
		selected = [models.MaxOptionsPerQuestion]bool{}
	}

	views := make([]PrintedOptionView, 0, len(indexes))
	for _, idx := range indexes {
		if idx >= len(question.Options) {
			continue
		}
		opt := &question.Options[idx]
		ov := PrintedOptionView{
			Index:    idx,
			Text:     opt.Text,
			MediaURL: opt.MediaURL,
			Selected: selected[idx],
		}
		if vis.Feedback {
			ov.Feedback = opt.Feedback
		}
		if vis.CorrectAnswer {
			correct := opt.Correct
			ov.Correct = &correct
		}
		views = append(views, ov)
	}
	return views
}

// ===== HELPERS =====

func (s *PrintService) getUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return user, nil
}

func (s *PrintService) getPrint(ctx context.Context, printID uint) (*models.TestPrint, error) {
	print, err := s.repo.Print().GetByID(ctx, printID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPrintNotFound
		}
		return nil, fmt.Errorf("failed to get print %d: %w", printID, err)
	}
	return print, nil
}

func (s *PrintService) getOwnedMutablePrint(ctx context.Context, userID, printID uint) (*models.TestPrint, error) {
	print, err := s.getPrint(ctx, printID)
	if err != nil {
		return nil, err
	}
	if print.UserID != userID {
		return nil, NewPermissionError(userID, printID, "print", "answer", "only the owner may answer a print")
	}
	if print.Sent {
		return nil, ErrPrintAlreadySent
	}
	return print, nil
}

func applySubmissions(print *models.TestPrint, answers []AnswerSubmission) error {
	for _, a := range answers {
		if a.Position < 0 || a.Position >= len(print.Questions) {
			return fmt.Errorf("%w: position %d out of range", ErrValidationFailed, a.Position)
		}
		print.Questions[a.Position].AnswerText = a.AnswerText
	}
	return nil
}

func (s *PrintService) publishEvent(ctx context.Context, event *events.PrintEvent) {
	if s.publisher == nil {
		return
	}
	// Event delivery is best effort and never fails the operation.
	if err := s.publisher.PublishPrintEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish print event", "error", err, "event_type", event.Type)
	}
}
