package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGradeValidity(t *testing.T) {
	for g := GradeBlackout; g <= GradePerfect; g++ {
		assert.True(t, g.IsValid(), "grade %d", int(g))
	}
	assert.False(t, Grade(-1).IsValid())
	assert.False(t, Grade(6).IsValid())
}

func TestGradeSuccess(t *testing.T) {
	assert.False(t, GradeBlackout.IsSuccess())
	assert.False(t, GradeIncorrectFamiliar.IsSuccess())
	assert.True(t, GradeCorrectDifficult.IsSuccess())
	assert.True(t, GradePerfect.IsSuccess())
}

func TestGradeString(t *testing.T) {
	assert.Equal(t, "4", GradeCorrectHesitation.String())
	assert.Equal(t, "Grade(9)", Grade(9).String())
}

func TestNewCardDefaults(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	card := NewCard(1, 2, now)

	assert.Equal(t, DefaultEaseFactor, card.EaseFactor)
	assert.Equal(t, 0, card.IntervalDays)
	assert.Equal(t, 0, card.Repetitions)
	assert.Nil(t, card.LastReviewedAt)
	assert.True(t, card.IsDue(now))
	assert.False(t, card.IsDue(now.Add(-time.Second)))
}
