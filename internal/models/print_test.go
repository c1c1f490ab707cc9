package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeIndexes(t *testing.T) {
	tests := []struct {
		name    string
		indexes []int
		encoded string
	}{
		{"empty", nil, ""},
		{"single", []int{0}, "0"},
		{"permutation", []int{3, 0, 2, 1}, "3,0,2,1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.encoded, EncodeIndexes(tt.indexes))

			decoded, err := DecodeIndexes(tt.encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.indexes, decoded)
		})
	}
}

func TestDecodeIndexes_Invalid(t *testing.T) {
	for _, encoded := range []string{"a,b", "-1", "10", "0,1,2,3,4,5,6,7,8,9,0"} {
		t.Run(encoded, func(t *testing.T) {
			_, err := DecodeIndexes(encoded)
			assert.Error(t, err)
		})
	}
}

func TestDecodeSelectedOptions(t *testing.T) {
	selected, err := DecodeSelectedOptions("0,2")
	require.NoError(t, err)
	assert.True(t, selected[0])
	assert.False(t, selected[1])
	assert.True(t, selected[2])

	empty, err := DecodeSelectedOptions("")
	require.NoError(t, err)
	assert.Equal(t, [MaxOptionsPerQuestion]bool{}, empty)

	_, err = DecodeSelectedOptions("11")
	assert.Error(t, err)
}

func TestIsBlankAnswer(t *testing.T) {
	assert.True(t, IsBlankAnswer(""))
	assert.True(t, IsBlankAnswer("   "))
	assert.True(t, IsBlankAnswer("\t\n"))
	assert.False(t, IsBlankAnswer("0"))
}

func TestRecountNotBlank(t *testing.T) {
	print := &TestPrint{
		Questions: []PrintedQuestion{
			{Position: 0, AnswerText: "1"},
			{Position: 1, AnswerText: ""},
			{Position: 2, AnswerText: "  "},
			{Position: 3, AnswerText: "T"},
		},
	}
	print.RecountNotBlank()
	assert.Equal(t, 2, print.NumNotBlank)
}
