package services

import (
	"math/rand"

	"github.com/acanas/selftest-service/internal/models"
)

// GenerateIndexes produces the display-order permutation of a question's
// canonical option positions. It runs exactly once, at print-compile time:
// the result is the only record of which canonical option sat at each
// displayed position, so scoring depends on it never being regenerated.
//
// Non-choice types have no option order and get an empty sequence. Choice
// types get the identity permutation unless the question asks for
// shuffling, in which case the permutation is uniformly random.
func GenerateIndexes(question *models.Question) []int {
	if !question.Type.IsChoice() {
		return nil
	}

	n := question.NumOptions()
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = i
	}

	if question.Shuffle {
		rand.Shuffle(n, func(i, j int) {
			indexes[i], indexes[j] = indexes[j], indexes[i]
		})
	}

	return indexes
}
