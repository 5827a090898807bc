// Package timebase implements named scaled clocks: a timebase maps a
// dotted timecode string ("3.1.0") to a number of seconds, the way
// the teacher's MML parser maps a tempo-and-resolution pair to
// ticks-per-sample, but generalized to an arbitrary number of stages.
package timebase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
)

// Suffix identifies a recognized unit for a basis stage.
type Suffix int

const (
	Seconds Suffix = iota
	Milliseconds
	Microseconds
	Nanoseconds
	Minutes
	Hours
	Days
)

var suffixAliases = map[string]Suffix{
	"s": Seconds, "sec": Seconds, "second": Seconds,
	"ms": Milliseconds, "msec": Milliseconds, "msecond": Milliseconds,
	"millis": Milliseconds, "millisec": Milliseconds, "millisecond": Milliseconds,
	"us": Microseconds, "usec": Microseconds, "usecond": Microseconds,
	"µs": Microseconds, "µsec": Microseconds, "µsecond": Microseconds,
	"micros": Microseconds, "microsec": Microseconds, "microsecond": Microseconds,
	"ns": Nanoseconds, "nsec": Nanoseconds, "nsecond": Nanoseconds,
	"nanos": Nanoseconds, "nanosec": Nanoseconds, "nanosecond": Nanoseconds,
	"m": Minutes, "min": Minutes, "minute": Minutes,
	"h": Hours, "hr": Hours, "hour": Hours,
	"d": Days, "day": Days,
}

// numPer returns seconds per tick, given x ticks per this unit.
func (s Suffix) numPer(x float32) float32 {
	switch s {
	case Seconds:
		return 1 / x
	case Milliseconds:
		return 1 / (x * 1000)
	case Microseconds:
		return 1 / (x * 1000000)
	case Nanoseconds:
		return 1 / (x * 1000000000)
	case Minutes:
		return 60 / x
	case Hours:
		return 3600 / x
	case Days:
		return 86400 / x
	default:
		panic("timebase: unknown suffix")
	}
}

// numTimes returns seconds per tick, given each tick is x of this unit.
func (s Suffix) numTimes(x float32) float32 {
	switch s {
	case Seconds:
		return x
	case Milliseconds:
		return x / 1000
	case Microseconds:
		return x / 1000000
	case Nanoseconds:
		return x / 1000000000
	case Minutes:
		return 60 * x
	case Hours:
		return 3600 * x
	case Days:
		return 86400 * x
	default:
		panic("timebase: unknown suffix")
	}
}

type specKind int

const (
	specBasic specKind = iota
	specPerSuffix
	specTimesSuffix
)

type timeSpec struct {
	kind   specKind
	suffix Suffix
}

type stage struct {
	oneBased   bool
	multiplier float32
}

// Timebase is a named mapping from dotted timecode strings to seconds.
type Timebase struct {
	stages []stage
}

// Default is the trivial timebase: one second per (lone-number) tick.
var Default = Timebase{stages: []stage{{oneBased: false, multiplier: 1}}}

// parseStage parses one "[@]N[suffix]" stage token.
func parseStage(source string) (oneBased bool, number float32, spec timeSpec, err error) {
	if strings.HasPrefix(source, "@") {
		oneBased = true
		source = source[1:]
	}
	end := -1
	for i, r := range source {
		if !(r >= '0' && r <= '9') && r != '.' {
			end = i
			break
		}
	}
	if end < 0 {
		spec = timeSpec{kind: specBasic}
	} else {
		suffix := source[end:]
		source = source[:end]
		var perForm bool
		unitText := suffix
		if strings.HasPrefix(suffix, "/") {
			perForm = true
			unitText = suffix[1:]
			if source == "" {
				return false, 0, spec, fmt.Errorf("missing number")
			}
		} else if source == "" {
			source = "1"
		}
		unit, ok := suffixAliases[unitText]
		if !ok {
			return false, 0, spec, fmt.Errorf("unknown suffix: %q", suffix)
		}
		if perForm {
			spec = timeSpec{kind: specPerSuffix, suffix: unit}
		} else {
			spec = timeSpec{kind: specTimesSuffix, suffix: unit}
		}
	}
	n, perr := strconv.ParseFloat(source, 32)
	if perr != nil {
		return false, 0, spec, fmt.Errorf("invalid number")
	}
	return oneBased, float32(n), spec, nil
}

// Parse builds a Timebase from its source stage tokens.
// Exactly one stage must carry a unit (the "basis"); every other
// stage's multiplier is derived by propagating outward from it.
func Parse(stageTokens []string) (Timebase, error) {
	type parsedStage struct {
		oneBased bool
		number   float32
	}
	parsed := make([]parsedStage, len(stageTokens))
	var basisIndex = -1
	var basisSpec timeSpec
	for i, tok := range stageTokens {
		oneBased, number, spec, err := parseStage(tok)
		if err != nil {
			return Timebase{}, fmt.Errorf("error parsing resolution #%d: %w", i+1, err)
		}
		if spec.kind != specBasic {
			if basisIndex >= 0 {
				return Timebase{}, fmt.Errorf("resolution #%d contains a second basis; only one basis is allowed", i+1)
			}
			basisIndex = i
			basisSpec = spec
		}
		parsed[i] = parsedStage{oneBased: oneBased, number: number}
	}
	if basisIndex < 0 {
		return Timebase{}, fmt.Errorf(`this timebase doesn't specify a basis (e.g. "/minute")`)
	}

	stages := make([]stage, 0, len(parsed))
	for i := 0; i <= basisIndex; i++ {
		multiplier := parsed[i].number
		if i == basisIndex {
			switch basisSpec.kind {
			case specPerSuffix:
				multiplier = basisSpec.suffix.numPer(multiplier)
			case specTimesSuffix:
				multiplier = basisSpec.suffix.numTimes(multiplier)
			}
		}
		for j := range stages {
			stages[j].multiplier *= multiplier
		}
		stages = append(stages, stage{oneBased: parsed[i].oneBased, multiplier: multiplier})
	}
	multiplier := stages[len(stages)-1].multiplier
	for i := basisIndex + 1; i < len(parsed); i++ {
		multiplier /= parsed[i].number
		stages = append(stages, stage{oneBased: parsed[i].oneBased, multiplier: multiplier})
	}
	return Timebase{stages: stages}, nil
}

// Eval interprets specifier ("3.1.0") against this timebase, summing
// Σ (tick - oneBasedAdjust) × secondsPerTick across stages, where the
// last stage is parsed as a float and every earlier one as an int
// truncated at the next '.'.
func (tb Timebase) Eval(specifier string, beOneBased bool) (posfloat.PosFloat, error) {
	var ret float32
	for i, st := range tb.stages {
		last := i+1 == len(tb.stages)
		var raw float32
		if last {
			n, err := strconv.ParseFloat(specifier, 32)
			if err != nil {
				return posfloat.Zero, fmt.Errorf("invalid timecode")
			}
			raw = float32(n)
		} else {
			periodPos := strings.IndexByte(specifier, '.')
			var interesting string
			if periodPos < 0 {
				interesting = specifier
				specifier = ""
			} else {
				interesting = specifier[:periodPos]
				specifier = specifier[periodPos+1:]
			}
			n, err := strconv.Atoi(interesting)
			if err != nil {
				return posfloat.Zero, fmt.Errorf("invalid timecode")
			}
			raw = float32(n)
		}
		if beOneBased && st.oneBased {
			raw -= 1
			if raw < 0 {
				raw = 0
			}
		}
		ret += raw * st.multiplier
	}
	return posfloat.NewClamped(ret), nil
}
