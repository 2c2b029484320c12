package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyWorkedExamples(t *testing.T) {
	require.Equal(t, Medium, Classify([]string{"pop"}, 110, 0.5, -6.0, 0.6))
	require.Equal(t, HipHop, Classify([]string{"hip hop"}, 90, 0.5, -6.0, 0.5))
	require.Equal(t, High, Classify([]string{"techno"}, 130, 0.9, -3.0, 0.9))
	require.Equal(t, Low, Classify(nil, 70, 0.2, -20.0, 0.1))
}

func TestClassifyPreservesUnconditionalHighBug(t *testing.T) {
	// loudness alone triggers HIGH even for a genre list with no HIGH tag.
	require.Equal(t, High, Classify([]string{"trance"}, 80, 0.3, -3.0, 0.1))
}

func TestClassifyGenrePermutationInvariance(t *testing.T) {
	a := Classify([]string{"pop", "techno"}, 120, 0.6, -8, 0.5)
	b := Classify([]string{"techno", "pop"}, 120, 0.6, -8, 0.5)
	require.Equal(t, a, b)
}

func TestLightShowTypeString(t *testing.T) {
	require.Equal(t, "HIP_HOP", HipHop.String())
	require.Equal(t, "LOW", Low.String())
}
