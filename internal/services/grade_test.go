package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		name         string
		numQuestions int
		score        float64
		maxGrade     float64
		expected     float64
	}{
		{"full score", 20, 20, 10, 10},
		{"half score", 20, 10, 10, 5},
		{"negative score stays negative", 20, -5, 10, -2.5},
		{"zero questions grades zero", 0, 0, 10, 0},
		{"different scale", 10, 7.5, 100, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Grade(tt.numQuestions, tt.score, tt.maxGrade), 1e-9)
		})
	}
}
