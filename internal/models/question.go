package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type AnswerType string

const (
	AnswerInteger        AnswerType = "integer"
	AnswerFloat          AnswerType = "float"
	AnswerTrueFalse      AnswerType = "true_false"
	AnswerUniqueChoice   AnswerType = "unique_choice"
	AnswerMultipleChoice AnswerType = "multiple_choice"
	AnswerText           AnswerType = "text"
)

const (
	// MaxOptionsPerQuestion is the hard cap on options a question may carry.
	MaxOptionsPerQuestion = 10

	// MaxTagsPerQuestion is the hard cap on tags assigned to a question.
	MaxTagsPerQuestion = 5
)

// IsChoice reports whether the type presents a list of selectable options.
// Text questions also carry an option list (the accepted answers), so they
// take part in index-sequence handling even though they are never shuffled
// on screen.
func (t AnswerType) IsChoice() bool {
	switch t {
	case AnswerUniqueChoice, AnswerMultipleChoice, AnswerText:
		return true
	}
	return false
}

func (t AnswerType) Valid() bool {
	switch t {
	case AnswerInteger, AnswerFloat, AnswerTrueFalse,
		AnswerUniqueChoice, AnswerMultipleChoice, AnswerText:
		return true
	}
	return false
}

// Question is a question-bank entry. It is authored by the question-bank
// management module and only read by this service; a print references a
// question by ID and must tolerate the question being edited or removed
// afterwards.
type Question struct {
	ID       uint       `json:"id" gorm:"primaryKey"`
	CourseID uint       `json:"course_id" gorm:"not null;index"`
	Type     AnswerType `json:"type" gorm:"not null;size:20;index" validate:"required,answer_type"`

	Stem     string  `json:"stem" gorm:"type:text;not null" validate:"required"`
	Feedback *string `json:"feedback" gorm:"type:text"`
	MediaURL *string `json:"media_url" gorm:"size:500"`

	// Shuffle is meaningful only for choice types.
	Shuffle bool `json:"shuffle" gorm:"default:false"`

	// Type-specific scalar answers.
	IntegerAnswer *int64   `json:"integer_answer"`
	FloatMin      *float64 `json:"float_min"`
	FloatMax      *float64 `json:"float_max"`
	TrueFalse     *string  `json:"true_false" gorm:"size:1" validate:"omitempty,oneof=T F"`

	EditTime  time.Time      `json:"edit_time" gorm:"not null;index"`
	CreatedBy uint           `json:"created_by" gorm:"not null;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Options []Option `json:"options" gorm:"foreignKey:QuestionID"`
	Tags    []Tag    `json:"tags" gorm:"many2many:question_tags"`
}

// Option is one selectable answer of a choice or text question. Position is
// the canonical order assigned at authoring time; index sequences on prints
// refer to these positions.
type Option struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	QuestionID uint    `json:"question_id" gorm:"not null;index:idx_option_qst_pos,unique"`
	Position   int     `json:"position" gorm:"not null;index:idx_option_qst_pos,unique"`
	Correct    bool    `json:"correct" gorm:"default:false"`
	Text       string  `json:"text" gorm:"type:text;not null"`
	Feedback   *string `json:"feedback" gorm:"type:text"`
	MediaURL   *string `json:"media_url" gorm:"size:500"`
}

// Tag classifies questions within a course. Tag management lives outside
// this service; tags are read-only here.
type Tag struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	CourseID uint   `json:"course_id" gorm:"not null;index"`
	Name     string `json:"name" gorm:"not null;size:100"`
	Hidden   bool   `json:"hidden" gorm:"default:false"`
}

func (Question) TableName() string {
	return "questions"
}

func (Option) TableName() string {
	return "question_options"
}

func (Tag) TableName() string {
	return "tags"
}

// NumOptions returns the option count relevant for scoring: the stored
// option list for choice types, the fixed answer arity otherwise.
func (q *Question) NumOptions() int {
	switch q.Type {
	case AnswerInteger, AnswerTrueFalse:
		return 1
	case AnswerFloat:
		return 2
	default:
		return len(q.Options)
	}
}

// CheckInvariants validates the structural rules a well-formed question must
// satisfy. Violations are authoring bugs; they surface as errors instead of
// being silently truncated or defaulted.
func (q *Question) CheckInvariants() error {
	if !q.Type.Valid() {
		return fmt.Errorf("question %d: unknown answer type %q", q.ID, q.Type)
	}
	if len(q.Tags) > MaxTagsPerQuestion {
		return fmt.Errorf("question %d: %d tags exceeds maximum of %d", q.ID, len(q.Tags), MaxTagsPerQuestion)
	}
	switch q.Type {
	case AnswerInteger:
		if q.IntegerAnswer == nil {
			return fmt.Errorf("question %d: integer question has no stored answer", q.ID)
		}
	case AnswerFloat:
		if q.FloatMin == nil || q.FloatMax == nil {
			return fmt.Errorf("question %d: float question has no stored range", q.ID)
		}
	case AnswerTrueFalse:
		if q.TrueFalse == nil {
			return fmt.Errorf("question %d: true/false question has no stored answer", q.ID)
		}
	case AnswerUniqueChoice, AnswerMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: choice question has %d options, need at least 2", q.ID, len(q.Options))
		}
		if len(q.Options) > MaxOptionsPerQuestion {
			return fmt.Errorf("question %d: %d options exceeds maximum of %d", q.ID, len(q.Options), MaxOptionsPerQuestion)
		}
	case AnswerText:
		if len(q.Options) < 1 {
			return fmt.Errorf("question %d: text question has no accepted answers", q.ID)
		}
		if len(q.Options) > MaxOptionsPerQuestion {
			return fmt.Errorf("question %d: %d options exceeds maximum of %d", q.ID, len(q.Options), MaxOptionsPerQuestion)
		}
	}
	return nil
}

// FloatRange returns the stored [lo, hi] interval, swapping the bounds when
// they were stored inverted.
func (q *Question) FloatRange() (lo, hi float64) {
	lo, hi = *q.FloatMin, *q.FloatMax
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}
