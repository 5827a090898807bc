// Package vm executes expressions compiled to a flat slice of
// PredicateOp against a flow-control environment, the way the
// teacher's filter/LFO stages reduce a small fixed op-set over a
// running value rather than building an expression tree.
package vm

import (
	"fmt"
	"math"

	"github.com/cbegin/secondmusic-go/internal/son"
)

// Op identifies one instruction in a compiled expression.
type Op int

const (
	PushVar Op = iota
	PushConst
	Eq
	NotEq
	Greater
	GreaterEq
	Lesser
	LesserEq
	And
	Or
	Xor
	Not
	Add
	Sub
	Mul
	Div
	Rem
	IDiv
	Pow
	Sin
	Cos
	Tan
	ASin
	ACos
	ATan
	ATan2
	Log
	Exp
	Floor
	Ceil
	Min
	Max
	Abs
	Sign
	Negate
)

// Instruction is one compiled step: an opcode plus the operand for
// PushVar/PushConst.
type Instruction struct {
	Op    Op
	Var   string
	Const son.SoN
}

// Env resolves flow-control variable reads. Missing variables read as
// the empty string, per spec.
type Env interface {
	Get(name string) (son.SoN, bool)
}

// MapEnv is the common Env backed by a plain map, as flow_controls is.
type MapEnv map[string]son.SoN

func (m MapEnv) Get(name string) (son.SoN, bool) {
	v, ok := m[name]
	return v, ok
}

// Eval runs program against env and returns the single resulting
// value. An empty program always evaluates truthy — the Goto this
// drives (soundtrack.Command's unconditional exit jump out of an
// if/elseif/else branch) carries no condition at all, and data.rs's
// own Goto doc comment states the intended semantics explicitly:
// "(Empty condition is always true.)" A non-empty malformed program
// (wrong final stack depth, or an op run against too few operands) is
// still a programmer error: assert, don't soft-fail, per spec §4.2/§7.
func Eval(program []Instruction, env Env) son.SoN {
	if len(program) == 0 {
		return son.Bool(true)
	}
	var stack []son.SoN
	pop := func() son.SoN {
		if len(stack) == 0 {
			panic("vm: stack underflow")
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	pop2 := func() (a, b son.SoN) {
		b = pop()
		a = pop()
		return
	}
	push := func(v son.SoN) { stack = append(stack, v) }

	deg2rad := func(x float32) float64 { return float64(x) * math.Pi / 180 }
	rad2deg := func(x float64) float32 { return float32(x * 180 / math.Pi) }

	for _, ins := range program {
		switch ins.Op {
		case PushVar:
			v, ok := env.Get(ins.Var)
			if !ok {
				push(son.String(""))
			} else {
				push(v)
			}
		case PushConst:
			push(ins.Const)
		case Eq:
			a, b := pop2()
			cmp, ok := a.Compare(b)
			push(son.Bool(ok && cmp == 0))
		case NotEq:
			a, b := pop2()
			cmp, ok := a.Compare(b)
			push(son.Bool(!ok || cmp != 0))
		case Greater:
			a, b := pop2()
			cmp, ok := a.Compare(b)
			push(son.Bool(ok && cmp > 0))
		case GreaterEq:
			a, b := pop2()
			cmp, ok := a.Compare(b)
			push(son.Bool(ok && cmp >= 0))
		case Lesser:
			a, b := pop2()
			cmp, ok := a.Compare(b)
			push(son.Bool(ok && cmp < 0))
		case LesserEq:
			a, b := pop2()
			cmp, ok := a.Compare(b)
			push(son.Bool(ok && cmp <= 0))
		case And:
			a, b := pop2()
			push(son.Bool(a.IsTruthy() && b.IsTruthy()))
		case Or:
			a, b := pop2()
			push(son.Bool(a.IsTruthy() || b.IsTruthy()))
		case Xor:
			a, b := pop2()
			push(son.Bool(a.IsTruthy() != b.IsTruthy()))
		case Not:
			a := pop()
			push(son.Bool(!a.IsTruthy()))
		case Add:
			a, b := pop2()
			push(son.Number(a.AsNumber() + b.AsNumber()))
		case Sub:
			a, b := pop2()
			push(son.Number(a.AsNumber() - b.AsNumber()))
		case Mul:
			a, b := pop2()
			push(son.Number(a.AsNumber() * b.AsNumber()))
		case Div:
			a, b := pop2()
			push(son.Number(a.AsNumber() / b.AsNumber()))
		case Rem:
			a, b := pop2()
			push(son.Number(luaMod(a.AsNumber(), b.AsNumber())))
		case IDiv:
			a, b := pop2()
			push(son.Number(float32(math.Floor(float64(a.AsNumber() / b.AsNumber())))))
		case Pow:
			a, b := pop2()
			push(son.Number(float32(math.Pow(float64(a.AsNumber()), float64(b.AsNumber())))))
		case Sin:
			a := pop()
			push(son.Number(float32(math.Sin(deg2rad(a.AsNumber())))))
		case Cos:
			a := pop()
			push(son.Number(float32(math.Cos(deg2rad(a.AsNumber())))))
		case Tan:
			a := pop()
			push(son.Number(float32(math.Tan(deg2rad(a.AsNumber())))))
		case ASin:
			a := pop()
			push(son.Number(rad2deg(math.Asin(float64(a.AsNumber())))))
		case ACos:
			a := pop()
			push(son.Number(rad2deg(math.Acos(float64(a.AsNumber())))))
		case ATan:
			a := pop()
			push(son.Number(rad2deg(math.Atan(float64(a.AsNumber())))))
		case ATan2:
			a, b := pop2()
			push(son.Number(rad2deg(math.Atan2(float64(a.AsNumber()), float64(b.AsNumber())))))
		case Log:
			a := pop()
			push(son.Number(float32(math.Log(float64(a.AsNumber())))))
		case Exp:
			a := pop()
			push(son.Number(float32(math.Exp(float64(a.AsNumber())))))
		case Floor:
			a := pop()
			push(son.Number(float32(math.Floor(float64(a.AsNumber())))))
		case Ceil:
			a := pop()
			push(son.Number(float32(math.Ceil(float64(a.AsNumber())))))
		case Min:
			a, b := pop2()
			push(son.Number(float32(math.Min(float64(a.AsNumber()), float64(b.AsNumber())))))
		case Max:
			a, b := pop2()
			push(son.Number(float32(math.Max(float64(a.AsNumber()), float64(b.AsNumber())))))
		case Abs:
			a := pop()
			push(son.Number(float32(math.Abs(float64(a.AsNumber())))))
		case Sign:
			a := pop()
			n := a.AsNumber()
			switch {
			case n < 0:
				push(son.Number(-1))
			default:
				push(son.Number(1))
			}
		case Negate:
			a := pop()
			push(son.Number(-a.AsNumber()))
		default:
			panic(fmt.Sprintf("vm: unknown op %d", ins.Op))
		}
	}
	if len(stack) != 1 {
		panic(fmt.Sprintf("vm: program left %d values on the stack, want 1", len(stack)))
	}
	return stack[0]
}

func luaMod(a, b float32) float32 {
	m := float32(math.Mod(float64(a), float64(b)))
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}
