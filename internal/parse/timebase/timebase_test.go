package timebase

import "testing"

func TestBeatTimebase(t *testing.T) {
	// timebase @4 120/m 256
	tb, err := Parse([]string{"@4", "120/m", "256"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// bar 2 (one-based -> index 1) * 2s/bar = 2s; beat 0, tick 0 contribute nothing.
	got, err := tb.Eval("2.0.0", true)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got.Float32() != 2 {
		t.Fatalf("eval(2.0.0) = %v, want 2", got.Float32())
	}
}

func TestZeroIsAlwaysZero(t *testing.T) {
	tb, err := Parse([]string{"120/m"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := tb.Eval("0", false)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got.Float32() != 0 {
		t.Fatalf("eval(0) = %v, want 0", got.Float32())
	}
}

func TestMissingBasisRejected(t *testing.T) {
	if _, err := Parse([]string{"4", "256"}); err == nil {
		t.Fatal("expected error for timebase with no basis")
	}
}

func TestDoubleBasisRejected(t *testing.T) {
	if _, err := Parse([]string{"120/m", "4/s"}); err == nil {
		t.Fatal("expected error for timebase with two bases")
	}
}

func TestDefaultTimebaseIsOneSecondPerTick(t *testing.T) {
	got, err := Default.Eval("3.5", false)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got.Float32() != 3.5 {
		t.Fatalf("eval(3.5) = %v, want 3.5", got.Float32())
	}
}
