package fader

import (
	"testing"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
)

func TestStartEndpoints(t *testing.T) {
	from := posfloat.MustNew(0.2)
	to := posfloat.MustNew(0.8)
	length := posfloat.MustNew(100)

	for _, curve := range []Curve{Linear, Logarithmic, Exponential} {
		f := Start(curve, from, to, length)
		if got := f.Evaluate().Float32(); closeEnough(got, from.Float32()) == false {
			t.Errorf("curve %v: evaluate at pos 0 = %v, want ~%v", curve, got, from.Float32())
		}
		for i := 0; i < 200; i++ {
			f.StepByOne()
		}
		if !f.Complete() {
			t.Errorf("curve %v: expected complete after overshoot", curve)
		}
		if got := f.Evaluate().Float32(); got != to.Float32() {
			t.Errorf("curve %v: evaluate at completion = %v, want %v", curve, got, to.Float32())
		}
	}
}

func TestMonotonic(t *testing.T) {
	from := posfloat.MustNew(0.1)
	to := posfloat.MustNew(0.9)
	length := posfloat.MustNew(50)
	f := Start(Linear, from, to, length)
	prev := f.Evaluate().Float32()
	for i := 0; i < 50; i++ {
		f.StepByOne()
		cur := f.Evaluate().Float32()
		if cur < prev {
			t.Fatalf("fader not monotonic at step %d: %v < %v", i, cur, prev)
		}
		prev = cur
	}
}

func TestMaybeStartZeroLength(t *testing.T) {
	if _, ok := MaybeStart(Linear, posfloat.Zero, posfloat.One, posfloat.Zero); ok {
		t.Fatal("expected no fader for zero length")
	}
}

func closeEnough(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 0.01
}
