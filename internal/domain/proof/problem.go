// Package proof generates the arithmetic problems a child must solve
// to dismiss an alarm that requires proof of being awake.
package proof

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

const (
	// addendMax bounds both operands of an addition (1..12).
	addendMax = 12
	// minuendMin and minuendMax bound the first operand of a subtraction (5..19).
	minuendMin = 5
	minuendMax = 19
)

// Problem is a single question with its expected answer.
type Problem struct {
	// Question is the human-readable form, e.g. "7 + 5".
	Question string
	// Answer is the expected result.
	Answer int
}

// Generate returns a random addition or subtraction with a positive result.
// A nil rng falls back to the global source.
func Generate(rng *rand.Rand) Problem {
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}

	if intN(2) == 0 {
		a := intN(addendMax) + 1
		b := intN(addendMax) + 1

		return Problem{
			Question: strconv.Itoa(a) + " + " + strconv.Itoa(b),
			Answer:   a + b,
		}
	}

	a := intN(minuendMax-minuendMin+1) + minuendMin
	b := intN(a-1) + 1

	return Problem{
		Question: strconv.Itoa(a) + " - " + strconv.Itoa(b),
		Answer:   a - b,
	}
}

// Check reports whether input, trimmed, is the expected integer answer.
func (p Problem) Check(input string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return false
	}

	return n == p.Answer
}
