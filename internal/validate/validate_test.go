package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `validate:"required"`
	Days []int  `validate:"dive,min=0,max=6"`
}

// TestStruct checks that failures wrap ErrInvalid and name the offending fields.
func TestStruct(t *testing.T) {
	t.Parallel()

	require.NoError(t, Struct(&sample{Name: "x", Days: []int{0, 6}}))

	err := Struct(&sample{Days: []int{7}})
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), "sample.Name")
	require.Contains(t, err.Error(), "sample.Days[0]")
}
