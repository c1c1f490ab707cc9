package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Correctness is the classification of a submitted answer after scoring.
// Choice types use the full five-way split; the other types only ever
// produce Blank, Wrong or Correct.
type Correctness string

const (
	CorrectnessBlank         Correctness = "blank"
	CorrectnessWrongNegative Correctness = "wrong_negative"
	CorrectnessWrongZero     Correctness = "wrong_zero"
	CorrectnessWrongPositive Correctness = "wrong_positive"
	CorrectnessCorrect       Correctness = "correct"

	// CorrectnessWrong is the coarse classification used by non-choice types.
	CorrectnessWrong Correctness = CorrectnessWrongZero
)

// IsBlank, IsCorrect and IsWrong project the five-way classification onto
// the three-way one used for display and disclosure decisions.
func (c Correctness) IsBlank() bool   { return c == CorrectnessBlank }
func (c Correctness) IsCorrect() bool { return c == CorrectnessCorrect }
func (c Correctness) IsWrong() bool   { return !c.IsBlank() && !c.IsCorrect() }

// QuestionState records whether the referenced question was still usable at
// scoring or display time.
type QuestionState string

const (
	QuestionOK                 QuestionState = "ok"
	QuestionRemoved            QuestionState = "removed"
	QuestionModifiedAfterPrint QuestionState = "modified_after_print"
)

// PrintedQuestion is one question's recorded state within a print: which
// question it was, the option order it was displayed in, and the answer the
// user gave. IndexSequence is fixed at print-generation time and never
// regenerated, because scoring re-derives the selected canonical options
// from it.
type PrintedQuestion struct {
	PrintID    uint `json:"print_id" gorm:"primaryKey;autoIncrement:false"`
	Position   int  `json:"position" gorm:"primaryKey;autoIncrement:false"`
	QuestionID uint `json:"question_id" gorm:"not null;index"`

	// IndexSequence holds the display-order permutation of the canonical
	// option positions, comma-separated ("3,0,2,1"). Empty for non-choice
	// types.
	IndexSequence string `json:"index_sequence" gorm:"size:50"`

	// AnswerText is the raw submitted value. Format depends on the answer
	// type: decimal integer, decimal real, "T"/"F", comma-separated
	// canonical option positions, or free text. Empty means blank.
	AnswerText string `json:"answer_text" gorm:"size:2048"`

	Score float64 `json:"score"`

	// Computed at scoring/display time, never stored.
	Correctness Correctness   `json:"correctness,omitempty" gorm:"-"`
	State       QuestionState `json:"state,omitempty" gorm:"-"`
}

// TestPrint is one generated, user-specific instance of a compiled test.
// It is mutable while Sent is false and, apart from administrative
// deletion, immutable afterwards.
type TestPrint struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	UserID   uint `json:"user_id" gorm:"not null;index:idx_print_usr_crs"`
	CourseID uint `json:"course_id" gorm:"not null;index:idx_print_usr_crs"`

	StartTime time.Time  `json:"start_time" gorm:"not null"`
	EndTime   *time.Time `json:"end_time"`

	// NumQuestions is fixed at creation; NumNotBlank is recomputed on every
	// save.
	NumQuestions int `json:"num_questions" gorm:"not null"`
	NumNotBlank  int `json:"num_not_blank" gorm:"default:0"`

	// Sent flips false->true exactly once, at finalization.
	Sent bool `json:"sent" gorm:"default:false;index"`

	// VisibleToTeachers is the student's irrevocable per-print disclosure
	// choice, recorded at finalization.
	VisibleToTeachers bool `json:"visible_to_teachers" gorm:"default:false"`

	Score float64 `json:"score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []PrintedQuestion `json:"questions" gorm:"foreignKey:PrintID"`
}

func (TestPrint) TableName() string {
	return "test_prints"
}

func (PrintedQuestion) TableName() string {
	return "test_print_questions"
}

// EncodeIndexes renders a permutation as the comma-separated form stored on
// a printed question.
func EncodeIndexes(indexes []int) string {
	if len(indexes) == 0 {
		return ""
	}
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}

// DecodeIndexes parses a stored index sequence back into option positions.
func DecodeIndexes(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) > MaxOptionsPerQuestion {
		return nil, fmt.Errorf("index sequence %q has %d entries, maximum is %d", s, len(parts), MaxOptionsPerQuestion)
	}
	indexes := make([]int, len(parts))
	for i, p := range parts {
		idx, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad option index %q: %w", p, err)
		}
		if idx < 0 || idx >= MaxOptionsPerQuestion {
			return nil, fmt.Errorf("option index %d out of range", idx)
		}
		indexes[i] = idx
	}
	return indexes, nil
}

// DecodeSelectedOptions parses a choice answer ("0,2") into a selection
// vector indexed by canonical option position.
func DecodeSelectedOptions(s string) ([MaxOptionsPerQuestion]bool, error) {
	var selected [MaxOptionsPerQuestion]bool
	if s == "" {
		return selected, nil
	}
	for _, p := range strings.Split(s, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return selected, fmt.Errorf("bad selected option %q: %w", p, err)
		}
		if idx < 0 || idx >= MaxOptionsPerQuestion {
			return selected, fmt.Errorf("selected option %d out of range", idx)
		}
		selected[idx] = true
	}
	return selected, nil
}

// IsBlankAnswer reports whether a raw answer counts as unanswered.
func IsBlankAnswer(answerText string) bool {
	return strings.TrimSpace(answerText) == ""
}

// RecountNotBlank recomputes the non-blank answer counter from the printed
// questions.
func (p *TestPrint) RecountNotBlank() {
	n := 0
	for i := range p.Questions {
		if !IsBlankAnswer(p.Questions[i].AnswerText) {
			n++
		}
	}
	p.NumNotBlank = n
}
