package models

// Visibility is the per-course bitmask controlling what students may see
// about their own results, one bit per item. Teachers configure it in the
// course test configuration.
type Visibility uint8

const (
	VisibleStemAndAnswerText Visibility = 1 << iota // question stem and submitted answer
	VisibleFeedback                                 // feedback texts
	VisibleCorrectAnswer                            // which options were correct
	VisibleEachQuestionScore                        // score of each question
)

const (
	MinVisibility Visibility = 0
	MaxVisibility Visibility = 1<<4 - 1

	// DefaultVisibility is used when a course has no stored configuration.
	DefaultVisibility = MaxVisibility
)

func (v Visibility) StemAndAnswerTextVisible() bool { return v&VisibleStemAndAnswerText != 0 }
func (v Visibility) FeedbackVisible() bool          { return v&VisibleFeedback != 0 }
func (v Visibility) CorrectAnswerVisible() bool     { return v&VisibleCorrectAnswer != 0 }
func (v Visibility) EachQuestionScoreVisible() bool { return v&VisibleEachQuestionScore != 0 }

func (v Visibility) Valid() bool { return v <= MaxVisibility }
