// Package series holds the month-indexed value vectors every calculator produces.
package series

import "math"

// DefaultHorizon is the projection length used when a caller does not configure one.
const DefaultHorizon = 60

// MaxHorizon bounds every projection and loan vector (100 years of months).
const MaxHorizon = 1200

// CentTolerance is the tolerance used when comparing currency sums.
const CentTolerance = 0.01

// Vector is a month-indexed series of amounts. Index 0 is the anchor (closing) month.
type Vector []float64

// New returns a zero vector of the given horizon length.
func New(horizon int) Vector {
	if horizon < 0 {
		horizon = 0
	}
	return make(Vector, horizon)
}

// Len returns the horizon length of the vector.
func (v Vector) Len() int { return len(v) }

// Sum returns the total of all months.
func (v Vector) Sum() float64 {
	total := 0.0
	for _, x := range v {
		total += x
	}
	return total
}

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// AddInPlace adds other into v month by month. Months beyond len(v) are ignored.
func (v Vector) AddInPlace(other Vector) {
	for i := 0; i < len(v) && i < len(other); i++ {
		v[i] += other[i]
	}
}

// Plus returns v + other without modifying either.
func (v Vector) Plus(other Vector) Vector {
	out := v.Clone()
	out.AddInPlace(other)
	return out
}

// Minus returns v - other without modifying either.
func (v Vector) Minus(other Vector) Vector {
	out := v.Clone()
	for i := 0; i < len(out) && i < len(other); i++ {
		out[i] -= other[i]
	}
	return out
}

// Cumulative returns the running total of v.
func (v Vector) Cumulative() Vector {
	out := make(Vector, len(v))
	running := 0.0
	for i, x := range v {
		running += x
		out[i] = running
	}
	return out
}

// Set writes amount at month m if m is inside the horizon and reports whether it did.
func (v Vector) Set(m int, amount float64) bool {
	if m < 0 || m >= len(v) {
		return false
	}
	v[m] = amount
	return true
}

// Add accumulates amount at month m if m is inside the horizon.
func (v Vector) Add(m int, amount float64) bool {
	if m < 0 || m >= len(v) {
		return false
	}
	v[m] += amount
	return true
}

// Equal reports whether both vectors have the same length and every month is within tol.
func Equal(a, b Vector, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

// RoundCents rounds to two decimal places, half away from zero.
func RoundCents(x float64) float64 {
	return math.Round(x*100) / 100
}
