// Package posfloat implements a non-negative, finite scalar used
// throughout the engine for times, rates, and volumes.
package posfloat

import (
	"math"
	"strconv"
)

// PosFloat wraps a 32-bit float constrained to finite and sign-positive.
// Construction either clamps or fails; arithmetic is not rechecked, so
// callers that can produce a negative or non-finite result (subtraction)
// must use SaturatingSub rather than the raw operators.
type PosFloat struct {
	v float32
}

var (
	Zero    = PosFloat{0}
	Half    = PosFloat{0.5}
	One     = PosFloat{1}
	Hundred = PosFloat{100}
)

// New constructs a PosFloat, failing if x is NaN, infinite, or negative.
func New(x float32) (PosFloat, error) {
	if !isFinite(x) {
		return Zero, errNotFinite
	}
	if math.Signbit(float64(x)) {
		return Zero, errNegative
	}
	return PosFloat{x}, nil
}

// NewClamped returns PosFloat(x), or zero if x is non-finite or negative.
func NewClamped(x float32) PosFloat {
	if isFinite(x) && !math.Signbit(float64(x)) {
		return PosFloat{x}
	}
	return Zero
}

// MustNew is New but panics on failure; for compile-time-known constants.
func MustNew(x float32) PosFloat {
	p, err := New(x)
	if err != nil {
		panic(err)
	}
	return p
}

func isFinite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}

var (
	errNotFinite = posError("posfloat: value must be finite")
	errNegative  = posError("posfloat: value must be positive")
)

type posError string

func (e posError) Error() string { return string(e) }

// Float32 returns the underlying value.
func (p PosFloat) Float32() float32 { return p.v }

// Float64 returns the underlying value widened to float64.
func (p PosFloat) Float64() float64 { return float64(p.v) }

// Less reports whether p sorts before other under the total order on
// same-sign finite f32 bit patterns.
func (p PosFloat) Less(other PosFloat) bool {
	return math.Float32bits(p.v) < math.Float32bits(other.v)
}

// Compare returns -1, 0, or 1 as p is less than, equal to, or greater
// than other.
func (p PosFloat) Compare(other PosFloat) int {
	pb, ob := math.Float32bits(p.v), math.Float32bits(other.v)
	switch {
	case pb < ob:
		return -1
	case pb > ob:
		return 1
	default:
		return 0
	}
}

// Add returns p+rhs. Not re-validated: callers must not combine PosFloats
// in a way that could overflow to infinity.
func (p PosFloat) Add(rhs PosFloat) PosFloat { return PosFloat{p.v + rhs.v} }

// Mul returns p*rhs.
func (p PosFloat) Mul(rhs PosFloat) PosFloat { return PosFloat{p.v * rhs.v} }

// Div returns p/rhs.
func (p PosFloat) Div(rhs PosFloat) PosFloat { return PosFloat{p.v / rhs.v} }

// SaturatingSub returns max(0, p-rhs); the only subtraction exposed,
// since unconstrained subtraction could produce a negative PosFloat.
func (p PosFloat) SaturatingSub(rhs PosFloat) PosFloat {
	r := p.v - rhs.v
	if math.Signbit(float64(r)) || !isFinite(r) {
		return Zero
	}
	return PosFloat{r}
}

// SecondsToFrames interprets p as a duration in seconds and converts it
// to a whole number of sample frames at sampleRate, flooring.
func (p PosFloat) SecondsToFrames(sampleRate PosFloat) uint64 {
	return uint64(math.Floor(float64(p.v) * float64(sampleRate.v)))
}

// SecondsToFracFrames is SecondsToFrames without the integer truncation,
// still floored to a whole number but kept as a PosFloat for further math.
func (p PosFloat) SecondsToFracFrames(sampleRate PosFloat) PosFloat {
	return PosFloat{float32(math.Floor(float64(p.v) * float64(sampleRate.v)))}
}

// SecondsToSamples is SecondsToFrames scaled by the channel count of a
// speaker layout.
func (p PosFloat) SecondsToSamples(sampleRate PosFloat, channels int) uint64 {
	return p.SecondsToFrames(sampleRate) * uint64(channels)
}

func (p PosFloat) String() string {
	return strconv.FormatFloat(float64(p.v), 'g', -1, 32)
}

// Parse parses s as a float and constructs a PosFloat from it.
func Parse(s string) (PosFloat, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return Zero, err
	}
	return New(float32(f))
}
