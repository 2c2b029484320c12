package filter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExponentialSeedsOnFirstUpdate(t *testing.T) {
	f := New(0.1, 0.5)
	require.Equal(t, 1.0, f.Update(1.0))
	require.Equal(t, 1.0, f.Value())
}

func TestExponentialUsesDecayWhenFalling(t *testing.T) {
	f := New(0.5, 1.0)
	f.Update(10.0)
	got := f.Update(0.0)
	require.InDelta(t, 5.0, got, 1e-9)
}

func TestExponentialUsesRiseWhenClimbing(t *testing.T) {
	f := New(1.0, 0.25)
	f.Update(0.0)
	got := f.Update(4.0)
	require.InDelta(t, 1.0, got, 1e-9)
}

func TestExponentialResetReseeds(t *testing.T) {
	f := New(0.1, 0.1)
	f.Update(5.0)
	f.Reset()
	require.Equal(t, 3.0, f.Update(3.0))
}

func TestVectorElementwise(t *testing.T) {
	v := NewVector(0.5, 1.0)
	v.Update([]float64{10, 0})
	got := v.Update([]float64{0, 10})
	require.InDelta(t, 5.0, got[0], 1e-9)
	require.InDelta(t, 10.0, got[1], 1e-9)
}
