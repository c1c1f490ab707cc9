package services

// Grade rescales a raw print score to the given maximum grade. The score of
// a print ranges over [-numQuestions, numQuestions], so the grade is not
// clamped and may be negative. A print with no questions grades 0.
func Grade(numQuestions int, score, maxGrade float64) float64 {
	if numQuestions == 0 {
		return 0
	}
	return score * maxGrade / float64(numQuestions)
}
