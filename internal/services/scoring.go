package services

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/acanas/selftest-service/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// scoreEpsilon separates "effectively zero" partial-credit scores from the
// genuinely positive and negative ones when classifying wrong answers.
const scoreEpsilon = 0.000001

// ScoreResult is the outcome of scoring one printed question.
type ScoreResult struct {
	Score       float64
	Correctness models.Correctness
}

type scoreFunc func(pq *models.PrintedQuestion, question *models.Question) (ScoreResult, error)

// answerScorers dispatches on the answer type. The closed map guarantees a
// scoring routine is never invoked with a payload of the wrong shape: each
// routine reads only the answer fields its type defines.
var answerScorers = map[models.AnswerType]scoreFunc{
	models.AnswerInteger:        scoreIntegerAnswer,
	models.AnswerFloat:          scoreFloatAnswer,
	models.AnswerTrueFalse:      scoreTrueFalseAnswer,
	models.AnswerUniqueChoice:   scoreChoiceAnswer,
	models.AnswerMultipleChoice: scoreChoiceAnswer,
	models.AnswerText:           scoreTextAnswer,
}

// ScoreAnswer computes the score and correctness of one printed question
// against the live question. It has no side effects; persisting the result
// is the caller's job. A blank submission scores 0 and classifies Blank for
// every type.
func ScoreAnswer(pq *models.PrintedQuestion, question *models.Question) (ScoreResult, error) {
	fn, ok := answerScorers[question.Type]
	if !ok {
		return ScoreResult{}, fmt.Errorf("question %d: unknown answer type %q", question.ID, question.Type)
	}
	if err := question.CheckInvariants(); err != nil {
		return ScoreResult{}, err
	}
	return fn(pq, question)
}

func scoreIntegerAnswer(pq *models.PrintedQuestion, question *models.Question) (ScoreResult, error) {
	if models.IsBlankAnswer(pq.AnswerText) {
		return ScoreResult{Score: 0, Correctness: models.CorrectnessBlank}, nil
	}

	// An unparseable submission is a wrong answer, not a blank one.
	answer, err := strconv.ParseInt(strings.TrimSpace(pq.AnswerText), 10, 64)
	if err != nil || answer != *question.IntegerAnswer {
		return ScoreResult{Score: 0, Correctness: models.CorrectnessWrong}, nil
	}
	return ScoreResult{Score: 1, Correctness: models.CorrectnessCorrect}, nil
}

func scoreFloatAnswer(pq *models.PrintedQuestion, question *models.Question) (ScoreResult, error) {
	if models.IsBlankAnswer(pq.AnswerText) {
		return ScoreResult{Score: 0, Correctness: models.CorrectnessBlank}, nil
	}

	answer, err := parseSubmittedFloat(pq.AnswerText)
	if err != nil {
		return ScoreResult{Score: 0, Correctness: models.CorrectnessWrong}, nil
	}

	lo, hi := question.FloatRange()
	if answer >= lo && answer <= hi {
		return ScoreResult{Score: 1, Correctness: models.CorrectnessCorrect}, nil
	}
	return ScoreResult{Score: 0, Correctness: models.CorrectnessWrong}, nil
}

func scoreTrueFalseAnswer(pq *models.PrintedQuestion, question *models.Question) (ScoreResult, error) {
	answer := strings.TrimSpace(pq.AnswerText)
	if answer == "" {
		return ScoreResult{Score: 0, Correctness: models.CorrectnessBlank}, nil
	}

	if answer == *question.TrueFalse {
		return ScoreResult{Score: 1, Correctness: models.CorrectnessCorrect}, nil
	}
	// A wrong true/false pick is penalized with the full negative point.
	return ScoreResult{Score: -1, Correctness: models.CorrectnessWrongNegative}, nil
}

// scoreChoiceAnswer handles both unique and multiple choice. The submitted
// options are resolved through the print's index sequence back to canonical
// option positions before correctness is counted.
func scoreChoiceAnswer(pq *models.PrintedQuestion, question *models.Question) (ScoreResult, error) {
	indexes, err := models.DecodeIndexes(pq.IndexSequence)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("question %d: %w", question.ID, err)
	}
	if len(indexes) != question.NumOptions() {
		return ScoreResult{}, fmt.Errorf("question %d: index sequence length %d does not match %d options",
			question.ID, len(indexes), question.NumOptions())
	}

	selected, err := models.DecodeSelectedOptions(pq.AnswerText)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("question %d: %w", question.ID, err)
	}

	var total, correct, good, bad int
	for _, idx := range indexes {
		if idx >= len(question.Options) {
			return ScoreResult{}, fmt.Errorf("question %d: option index %d out of range", question.ID, idx)
		}
		total++
		if question.Options[idx].Correct {
			correct++
		}
		if selected[idx] {
			if question.Options[idx].Correct {
				good++
			} else {
				bad++
			}
		}
	}

	if good == 0 && bad == 0 {
		return ScoreResult{Score: 0, Correctness: models.CorrectnessBlank}, nil
	}

	var score float64
	if question.Type == models.AnswerUniqueChoice {
		// Single selection: the wrong pick costs 1/(N-1) so that random
		// guessing has expected value zero.
		if total >= 2 {
			score = float64(good) - float64(bad)/float64(total-1)
		} else {
			score = float64(good)
		}
		if good == 1 && bad == 0 {
			return ScoreResult{Score: score, Correctness: models.CorrectnessCorrect}, nil
		}
		return ScoreResult{Score: score, Correctness: classifyWrong(score)}, nil
	}

	// Multiple choice.
	switch {
	case correct > 0 && correct < total:
		score = float64(good)/float64(correct) - float64(bad)/float64(total-correct)
	case correct > 0:
		// Degenerate authoring case: every option is correct. Preserved
		// exactly: partial selections earn good/C and never classify as
		// correct unless the selection is complete.
		score = float64(good) / float64(correct)
	default:
		// Degenerate authoring case: no option is correct.
		score = -float64(bad) / float64(total)
	}

	if correct > 0 && good == correct && bad == 0 {
		return ScoreResult{Score: score, Correctness: models.CorrectnessCorrect}, nil
	}
	return ScoreResult{Score: score, Correctness: classifyWrong(score)}, nil
}

func scoreTextAnswer(pq *models.PrintedQuestion, question *models.Question) (ScoreResult, error) {
	if models.IsBlankAnswer(pq.AnswerText) {
		return ScoreResult{Score: 0, Correctness: models.CorrectnessBlank}, nil
	}

	submitted := toComparableText(pq.AnswerText)
	for i := range question.Options {
		if submitted == toComparableText(question.Options[i].Text) {
			return ScoreResult{Score: 1, Correctness: models.CorrectnessCorrect}, nil
		}
	}
	return ScoreResult{Score: 0, Correctness: models.CorrectnessWrong}, nil
}

// classifyWrong splits non-correct, non-blank answers by the sign of their
// score, with an epsilon band around zero.
func classifyWrong(score float64) models.Correctness {
	switch {
	case score < -scoreEpsilon:
		return models.CorrectnessWrongNegative
	case score > scoreEpsilon:
		return models.CorrectnessWrongPositive
	default:
		return models.CorrectnessWrongZero
	}
}

// parseSubmittedFloat accepts both decimal separators, as submissions come
// from locales writing "3,14".
func parseSubmittedFloat(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	return strconv.ParseFloat(s, 64)
}

// comparableTransformer strips diacritical marks so that accented and plain
// spellings compare equal.
var comparableTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// toComparableText collapses whitespace runs to single spaces and applies a
// locale-insensitive transform, mirroring how correct text answers are
// stored.
func toComparableText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if out, _, err := transform.String(comparableTransformer, s); err == nil {
		s = out
	}
	return strings.ToLower(s)
}
