// Package fader implements a running linear/logarithmic/exponential
// ramp between two volumes, stepped forward one mixer buffer at a
// time. The three curves share the same state-machine shape as the
// filter envelope in the teacher's sequencer package: a current
// position, a per-step delta, and a completion test against a target
// length.
package fader

import (
	"math"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
)

// Curve selects the shape of a fade.
type Curve int

const (
	// Logarithmic fades change perceived volume at a constant rate.
	Logarithmic Curve = iota
	// Linear fades change amplitude at a constant rate; use this for
	// crossfading between partly correlated samples.
	Linear
	// Exponential fades hang out at the louder side; often the most
	// pleasant-sounding of the three.
	Exponential
)

// silentLog is ln of the quietest amplitude considered audible, about
// -96.3dB, also the ratio of smallest to largest nonzero voltage a
// 16-bit DAC can output.
const silentLog = -11.1

// silentExp is exp of the same floor.
const silentExp = 1.0000152

// Fader is a ramp in progress between two volumes, plus a completed
// fader that pins at its target. pos and length are both counted in
// sample frames.
type Fader struct {
	curve  Curve
	pos    float32
	step   float32
	to     posfloat.PosFloat
	length posfloat.PosFloat
	at     posfloat.PosFloat
}

// New returns a blank fader holding a constant volume (never
// progresses, always reports volume).
func New(volume posfloat.PosFloat) Fader {
	return Fader{
		curve:  Linear,
		pos:    volume.Float32(),
		step:   0,
		to:     volume,
		length: posfloat.Zero,
		at:     posfloat.One,
	}
}

// Start begins a fade of the given curve from `from` to `to` over
// `length` sample frames.
func Start(curve Curve, from, to, length posfloat.PosFloat) Fader {
	pos, step := curveInit(curve, from, to, length)
	return Fader{
		curve:  curve,
		pos:    pos,
		step:   step,
		to:     to,
		length: length,
		at:     posfloat.Zero,
	}
}

// MaybeStart is Start, but reports ok=false (no fader) if length is
// zero, negative, or infinite — a zero-length "fade" is a no-op that
// the caller should treat as an immediate set rather than a ramp.
func MaybeStart(curve Curve, from, to, length posfloat.PosFloat) (Fader, bool) {
	if length.Float32() > 0 {
		return Start(curve, from, to, length), true
	}
	return Fader{}, false
}

func curveInit(curve Curve, from, to, length posfloat.PosFloat) (pos, step float32) {
	denom := length.Float32() + 1.0
	switch curve {
	case Exponential:
		f := float32(math.Max(math.Exp(float64(from.Float32())), silentExp))
		t := float32(math.Max(math.Exp(float64(to.Float32())), silentExp))
		return f, (t - f) / denom
	case Logarithmic:
		f := float32(math.Max(math.Log(float64(from.Float32())), silentLog))
		t := float32(math.Max(math.Log(float64(to.Float32())), silentLog))
		return f, (t - f) / denom
	default: // Linear
		f := from.Float32()
		return f, (to.Float32() - f) / denom
	}
}

// Complete reports whether the fade has run its course.
func (f Fader) Complete() bool {
	return !f.at.Less(f.length)
}

// Evaluate returns the current volume: the target once complete,
// otherwise the curve's instantaneous value.
func (f Fader) Evaluate() posfloat.PosFloat {
	if f.Complete() {
		return f.to
	}
	return f.curveEval(f.pos)
}

// EvaluateT returns the volume t sample frames into the future,
// without mutating the fader.
func (f Fader) EvaluateT(t posfloat.PosFloat) posfloat.PosFloat {
	newAt := f.at.Add(t)
	if !newAt.Less(f.length) {
		return f.to
	}
	return f.curveEval(f.pos + f.step*t.Float32())
}

func (f Fader) curveEval(pos float32) posfloat.PosFloat {
	var v float32
	switch f.curve {
	case Exponential:
		v = float32(math.Log(float64(pos)))
	case Logarithmic:
		v = float32(math.Exp(float64(pos)))
	default:
		v = pos
	}
	return posfloat.NewClamped(v)
}

// StepByOne advances the fader by a single sample frame.
func (f *Fader) StepByOne() {
	f.StepBy(posfloat.One)
}

// StepBy advances the fader by count sample frames. A completed fader
// does not move further.
func (f *Fader) StepBy(count posfloat.PosFloat) {
	if f.Complete() {
		return
	}
	f.pos += f.step * count.Float32()
	f.at = f.at.Add(count)
}

// To returns the fade's target volume.
func (f Fader) To() posfloat.PosFloat { return f.to }
