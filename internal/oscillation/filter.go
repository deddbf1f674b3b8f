package oscillation

import (
	"fmt"
	"math"
)

// Coefficients are the normalised coefficients of a second order IIR
// section:
//
//	y[t] = A0*x[t] + A1*x[t-1] + A2*x[t-2] - B1*y[t-1] - B2*y[t-2]
type Coefficients struct {
	A0 float64 `json:"a0"`
	A1 float64 `json:"a1"`
	A2 float64 `json:"a2"`
	B1 float64 `json:"b1"`
	B2 float64 `json:"b2"`
}

// DefaultCoefficients returns a low-pass biquad designed for a 10 Hz sample
// rate with a 0.85 Hz corner and Q of 3.0, which matches the swing of the
// reference rig. The section has unity gain at DC and resonates around the
// corner frequency.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		A0: 0.06418363201334885,
		A1: 0.1283672640266977,
		A2: 0.06418363201334885,
		B1: -1.5868549090890356,
		B2: 0.8435894371424311,
	}
}

// Validate checks that every coefficient is finite.
func (c Coefficients) Validate() error {
	names := [...]string{"a0", "a1", "a2", "b1", "b2"}
	for i, v := range [...]float64{c.A0, c.A1, c.A2, c.B1, c.B2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("filter coefficient %s must be finite, got %v", names[i], v)
		}
	}
	return nil
}

// DCGain returns the steady-state gain of the section for a constant input.
func (c Coefficients) DCGain() float64 {
	den := 1 + c.B1 + c.B2
	if den == 0 {
		return math.Inf(1)
	}
	return (c.A0 + c.A1 + c.A2) / den
}

// Biquad applies a fixed-coefficient second order recurrence to a stream of
// values. Until three inputs have been seen the recurrence has no history, so
// inputs are passed through unchanged and become the initial output history.
type Biquad struct {
	c      Coefficients
	x1, x2 float64
	y1, y2 float64
	seen   int
}

// NewBiquad returns a filter with empty history.
func NewBiquad(c Coefficients) *Biquad {
	return &Biquad{c: c}
}

// Filter consumes x and returns the filtered value.
func (f *Biquad) Filter(x float64) float64 {
	var y float64
	if f.seen < 2 {
		y = x
		f.seen++
	} else {
		y = f.c.A0*x + f.c.A1*f.x1 + f.c.A2*f.x2 - f.c.B1*f.y1 - f.c.B2*f.y2
	}
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// Coefficients returns the coefficients the filter was built with.
func (f *Biquad) Coefficients() Coefficients { return f.c }

// Reset clears the filter history.
func (f *Biquad) Reset() {
	*f = Biquad{c: f.c}
}
