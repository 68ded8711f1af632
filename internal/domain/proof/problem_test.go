package proof

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGenerate_Ranges checks operand ranges and that answers are positive and consistent.
func TestGenerate_Ranges(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11)) //nolint:gosec // Deterministic test data.

	for range 1000 {
		p := Generate(rng)
		require.Positive(t, p.Answer)

		var (
			a, b int
			err  error
		)

		switch {
		case strings.Contains(p.Question, " + "):
			parts := strings.Split(p.Question, " + ")
			a, err = strconv.Atoi(parts[0])
			require.NoError(t, err)
			b, err = strconv.Atoi(parts[1])
			require.NoError(t, err)

			require.GreaterOrEqual(t, a, 1)
			require.LessOrEqual(t, a, addendMax)
			require.GreaterOrEqual(t, b, 1)
			require.LessOrEqual(t, b, addendMax)
			require.Equal(t, a+b, p.Answer)
		default:
			parts := strings.Split(p.Question, " - ")
			require.Len(t, parts, 2)
			a, err = strconv.Atoi(parts[0])
			require.NoError(t, err)
			b, err = strconv.Atoi(parts[1])
			require.NoError(t, err)

			require.GreaterOrEqual(t, a, minuendMin)
			require.LessOrEqual(t, a, minuendMax)
			require.GreaterOrEqual(t, b, 1)
			require.Less(t, b, a)
			require.Equal(t, a-b, p.Answer)
		}
	}
}

// TestCheck accepts surrounding whitespace and rejects wrong or non-numeric input.
func TestCheck(t *testing.T) {
	t.Parallel()

	p := Problem{Question: "7 + 5", Answer: 12}

	require.True(t, p.Check(" 12\n"))
	require.False(t, p.Check("13"))
	require.False(t, p.Check("twelve"))
}

// TestGenerate_NilSource ensures the global source is used when none is given.
func TestGenerate_NilSource(t *testing.T) {
	t.Parallel()

	p := Generate(nil)
	require.NotEmpty(t, p.Question)
	require.True(t, p.Check(strconv.Itoa(p.Answer)))
}
