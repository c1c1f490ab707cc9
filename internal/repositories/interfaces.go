package repositories

import (
	"context"
	"time"

	"github.com/acanas/selftest-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

// QuestionFilters restricts the question-bank query a print is compiled
// from. Nil/empty slices mean "all".
type QuestionFilters struct {
	CourseID    uint                `json:"course_id"`
	TagIDs      []uint              `json:"tag_ids"`
	AnswerTypes []models.AnswerType `json:"answer_types"`
	EditedFrom  *time.Time          `json:"edited_from"`
	EditedTo    *time.Time          `json:"edited_to"`
}

type PrintFilters struct {
	CourseID uint  `json:"course_id"`
	UserID   *uint `json:"user_id"`
	Sent     *bool `json:"sent"`

	// VisibleToTeachers narrows to prints the student disclosed.
	VisibleToTeachers *bool `json:"visible_to_teachers"`

	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortOrder string     `json:"sort_order"` // "asc", "desc" on start time
}

// ===== STORE CONTRACTS =====

// QuestionRepository is the question bank store. Questions are authored
// elsewhere; this service only reads them.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Question, error)

	// FindRandom selects up to count questions matching the filter, uniformly
	// at random over the matching set.
	FindRandom(ctx context.Context, filters QuestionFilters, count int) ([]*models.Question, error)

	// GetTags returns the question's non-hidden tags ordered for display.
	GetTags(ctx context.Context, questionID uint) ([]*models.Tag, error)
}

// PrintRepository is the print store.
type PrintRepository interface {
	Create(ctx context.Context, print *models.TestPrint) error
	GetByID(ctx context.Context, id uint) (*models.TestPrint, error)

	// SaveAnswers upserts the answer text of the given positions and the
	// print's non-blank counter in one transaction. Repeating the same call
	// leaves identical state behind.
	SaveAnswers(ctx context.Context, print *models.TestPrint) error

	// Finalize persists the sent transition together with all question
	// scores and the totals.
	Finalize(ctx context.Context, print *models.TestPrint) error

	GetLastPrint(ctx context.Context, userID, courseID uint) (*models.TestPrint, error)
	List(ctx context.Context, filters PrintFilters) ([]*models.TestPrint, int64, error)
	DeleteByUserAndCourse(ctx context.Context, userID, courseID uint) error
}

// ConfigRepository is the per-course test configuration store.
type ConfigRepository interface {
	GetByCourse(ctx context.Context, courseID uint) (*models.TestConfig, error)
	Upsert(ctx context.Context, cfg *models.TestConfig) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// Repository aggregates all stores.
type Repository interface {
	Question() QuestionRepository
	Print() PrintRepository
	Config() ConfigRepository
	User() UserRepository
}
