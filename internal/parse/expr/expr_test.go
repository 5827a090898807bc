package expr

import (
	"testing"

	"github.com/cbegin/secondmusic-go/internal/son"
	"github.com/cbegin/secondmusic-go/internal/vm"
)

func run(t *testing.T, source string, env vm.MapEnv) son.SoN {
	t.Helper()
	prog, err := Parse(source)
	if err != nil {
		t.Fatalf("parse %q: %v", source, err)
	}
	return vm.Eval(prog, env)
}

func TestPrecedence(t *testing.T) {
	got := run(t, "2 + 3 * 4", nil).AsNumber()
	if got != 14 {
		t.Fatalf("2+3*4 = %v, want 14", got)
	}
}

func TestParenGrouping(t *testing.T) {
	got := run(t, "(2 + 3) * 4", nil).AsNumber()
	if got != 20 {
		t.Fatalf("(2+3)*4 = %v, want 20", got)
	}
}

func TestVariableComparison(t *testing.T) {
	env := vm.MapEnv{"tension": son.Number(7)}
	got := run(t, "$tension > 5", env)
	if !got.IsTruthy() {
		t.Fatalf("$tension > 5 should be true")
	}
}

func TestMultiCharOperators(t *testing.T) {
	env := vm.MapEnv{"x": son.Number(5)}
	if !run(t, "$x >= 5", env).IsTruthy() {
		t.Fatal("5 >= 5 should be true")
	}
	if run(t, "$x != 5", env).IsTruthy() {
		t.Fatal("5 != 5 should be false")
	}
	if run(t, "10 // 3 == 3", nil).IsTruthy() == false {
		t.Fatal("10 // 3 should floor-divide to 3")
	}
}

func TestUnicodeComparisonGlyphs(t *testing.T) {
	if !run(t, "5 ≥ 5", nil).IsTruthy() {
		t.Fatal("5 ≥ 5 should be true")
	}
	if !run(t, "4 ≠ 5", nil).IsTruthy() {
		t.Fatal("4 ≠ 5 should be true")
	}
}

func TestUnaryFunctionsGlomOntoOperand(t *testing.T) {
	got := run(t, "-3 + 5", nil).AsNumber()
	if got != 2 {
		t.Fatalf("-3+5 = %v, want 2", got)
	}
	got = run(t, "abs -3", nil).AsNumber()
	if got != 3 {
		t.Fatalf("abs -3 = %v, want 3", got)
	}
}

func TestAndOrPrecedence(t *testing.T) {
	// and binds tighter than or: true or (true and false) == true
	got := run(t, "1 = 1 or 1 = 1 and 1 = 2", nil)
	if !got.IsTruthy() {
		t.Fatal("expected true")
	}
}

func TestStringLiteralEquality(t *testing.T) {
	env := vm.MapEnv{"state": son.String("idle")}
	if !run(t, `$state == "idle"`, env).IsTruthy() {
		t.Fatal(`$state == "idle" should be true`)
	}
}

func TestLogBinaryLowering(t *testing.T) {
	// 8 log 2 == ln(8)/ln(2) == 3
	got := run(t, "8 log 2", nil).AsNumber()
	if got < 2.99 || got > 3.01 {
		t.Fatalf("8 log 2 = %v, want ~3", got)
	}
}
