package models

import "fmt"

// Grade represents the quality of recall reported for a review, on the
// SM-2 0..5 scale. Grades below 3 count as a lapse.
type Grade int

const (
	// GradeBlackout - complete blackout, unable to recall.
	GradeBlackout Grade = 0
	// GradeIncorrect - incorrect response but remembered upon seeing the answer.
	GradeIncorrect Grade = 1
	// GradeIncorrectFamiliar - incorrect response but the answer felt familiar.
	GradeIncorrectFamiliar Grade = 2
	// GradeCorrectDifficult - correct response that required significant effort.
	GradeCorrectDifficult Grade = 3
	// GradeCorrectHesitation - correct response after some hesitation.
	GradeCorrectHesitation Grade = 4
	// GradePerfect - perfect response with no hesitation.
	GradePerfect Grade = 5
)

// PassThreshold is the lowest grade that counts as a successful recall.
const PassThreshold = GradeCorrectDifficult

// IsValid reports whether g is on the 0..5 scale.
func (g Grade) IsValid() bool {
	return g >= GradeBlackout && g <= GradePerfect
}

// IsSuccess reports whether g counts as a successful recall.
func (g Grade) IsSuccess() bool {
	return g >= PassThreshold
}

// String returns the grade as its numeric form, or "Grade(n)" when invalid.
func (g Grade) String() string {
	if g.IsValid() {
		return fmt.Sprintf("%d", int(g))
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}
