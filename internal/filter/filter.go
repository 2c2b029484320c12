// Package filter provides one-pole exponential smoothing for scalar and
// vector signals, used throughout the engine to de-jitter loudness and
// energy readings before they drive lighting decisions.
package filter

// Exponential is a one-pole decay/rise smoothing filter. It tracks a
// running value that moves toward new samples at a decay rate when the
// sample undershoots the current value, and a rise rate otherwise.
type Exponential struct {
	decay float64
	rise  float64
	value float64
	init  bool
}

// New creates an Exponential filter. decay and rise must be in [0, 1];
// a value of 0 freezes the state in that direction, 1 tracks instantly.
func New(decay, rise float64) *Exponential {
	return &Exponential{decay: decay, rise: rise}
}

// Update folds x into the filter state and returns the new smoothed value.
// The first call seeds the state with x directly.
func (e *Exponential) Update(x float64) float64 {
	if !e.init {
		e.value = x
		e.init = true
		return e.value
	}
	if x < e.value {
		e.value += (x - e.value) * e.decay
	} else {
		e.value += (x - e.value) * e.rise
	}
	return e.value
}

// Value returns the current smoothed value without updating it.
func (e *Exponential) Value() float64 {
	return e.value
}

// Reset clears the filter so the next Update reseeds the state.
func (e *Exponential) Reset() {
	e.value = 0
	e.init = false
}

// Vector is the elementwise vector variant of Exponential.
type Vector struct {
	decay float64
	rise  float64
	value []float64
	init  bool
}

// NewVector creates a Vector filter; its dimensionality is taken from the
// first Update.
func NewVector(decay, rise float64) *Vector {
	return &Vector{decay: decay, rise: rise}
}

// Update folds x elementwise into the filter state and returns the new
// smoothed vector. The returned slice is owned by the caller; it is a copy.
func (v *Vector) Update(x []float64) []float64 {
	if !v.init || len(v.value) != len(x) {
		v.value = append([]float64(nil), x...)
		v.init = true
		return append([]float64(nil), v.value...)
	}
	for i, xi := range x {
		if xi < v.value[i] {
			v.value[i] += (xi - v.value[i]) * v.decay
		} else {
			v.value[i] += (xi - v.value[i]) * v.rise
		}
	}
	return append([]float64(nil), v.value...)
}

// Value returns a copy of the current smoothed vector.
func (v *Vector) Value() []float64 {
	return append([]float64(nil), v.value...)
}

// Reset clears the filter so the next Update reseeds the state.
func (v *Vector) Reset() {
	v.value = nil
	v.init = false
}
