package services

import "github.com/acanas/selftest-service/internal/models"

// PrintVisibility says which parts of a finished print the requesting user
// may see. It is resolved per request from the viewer's role, ownership of
// the print and the course visibility mask, and applied when building the
// response, never stored.
type PrintVisibility struct {
	StemAndAnswerText bool `json:"stem_and_answer_text"`
	Feedback          bool `json:"feedback"`
	CorrectAnswer     bool `json:"correct_answer"`
	EachQuestionScore bool `json:"each_question_score"`
	TotalScore        bool `json:"total_score"`
}

// ResolveVisibility computes the visibility of one print for one viewer.
//
// Privileged users reviewing someone else's print see everything, but only
// once the student has sent it and allowed teachers to see the result. The
// owner's view of question detail follows the course mask; the total score
// is shown to the owner as soon as the print is sent. Unprivileged
// non-owners see nothing.
func ResolveVisibility(role models.UserRole, print *models.TestPrint, viewerID uint, cfg *models.TestConfig) PrintVisibility {
	isOwner := print.UserID == viewerID

	if role.IsPrivileged() {
		if isOwner || (print.Sent && print.VisibleToTeachers) {
			return PrintVisibility{
				StemAndAnswerText: true,
				Feedback:          true,
				CorrectAnswer:     true,
				EachQuestionScore: true,
				TotalScore:        true,
			}
		}
		return PrintVisibility{}
	}

	if !isOwner {
		return PrintVisibility{}
	}

	return PrintVisibility{
		StemAndAnswerText: cfg.Visibility.StemAndAnswerTextVisible(),
		Feedback:          cfg.Visibility.FeedbackVisible(),
		CorrectAnswer:     cfg.Visibility.CorrectAnswerVisible(),
		EachQuestionScore: cfg.Visibility.EachQuestionScoreVisible(),
		TotalScore:        print.Sent,
	}
}
