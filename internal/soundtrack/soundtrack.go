// Package soundtrack is the pure-data representation of sounds,
// sequences, and flows that the parser produces and the interpreter
// consumes — no behavior beyond small query helpers, matching the
// teacher's internal/mml.Score/Track/Event split between "what the
// parser built" and "how the sequencer walks it".
package soundtrack

import (
	"fmt"

	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/vm"
)

// DeferredEnd is a set-once cell for a Sound's playback end, per
// spec.md §3.2 and §9: unresolved until the decoder's reported length
// is known, then fixed forever.
type DeferredEnd struct {
	resolved bool
	value    posfloat.PosFloat
}

// Unresolved returns an empty DeferredEnd.
func Unresolved() DeferredEnd { return DeferredEnd{} }

// Resolved returns a DeferredEnd already fixed to value.
func Resolved(value posfloat.PosFloat) DeferredEnd {
	return DeferredEnd{resolved: true, value: value}
}

// Get reports the value and whether it has been resolved.
func (d DeferredEnd) Get() (posfloat.PosFloat, bool) { return d.value, d.resolved }

// Resolve fixes the cell the first time it is called; subsequent
// calls are no-ops, matching a Rust OnceLock's semantics. Returns the
// value now in effect (the new one, or the one already there).
func (d *DeferredEnd) Resolve(value posfloat.PosFloat) posfloat.PosFloat {
	if !d.resolved {
		d.resolved = true
		d.value = value
	}
	return d.value
}

// Sound is a named reference to an audio file with a playback window.
type Sound struct {
	Name   string
	Path   string
	Start  posfloat.PosFloat
	End    DeferredEnd
	Stream bool
	// Loop marks a sound eligible for the loop adapter splice when a
	// queued play's requested length exceeds the source's remaining
	// frames (SPEC_FULL.md supplemented feature, additive to spec.md).
	Loop bool
}

// SequenceElement is one scheduled entry on a Sequence's timeline.
type SequenceElement struct {
	// exactly one of PlaySound/PlaySequence is set (tagged by
	// IsPlaySound, mirroring the Rust enum).
	IsPlaySound bool

	// PlaySound fields.
	Sound   string
	Channel string
	FadeIn  posfloat.PosFloat
	Length  *posfloat.PosFloat // nil = use the sound's own end
	FadeOut posfloat.PosFloat

	// PlaySequence field.
	Sequence string
}

// TimedElement pairs a SequenceElement with its start time.
type TimedElement struct {
	StartTime posfloat.PosFloat
	Element   SequenceElement
}

// Sequence is a timeline of sound/sequence elements, sorted by start
// time.
type Sequence struct {
	Name     string
	Length   posfloat.PosFloat
	Elements []TimedElement
}

// Visit calls foundSound/foundSequence at least once for every sound
// or sequence this Sequence directly references.
func (s *Sequence) Visit(foundSound, foundSequence func(name string)) {
	for _, te := range s.Elements {
		if te.Element.IsPlaySound {
			foundSound(te.Element.Sound)
		} else {
			foundSequence(te.Element.Sequence)
		}
	}
}

// CommandKind tags a Command's operation.
type CommandKind int

const (
	Done CommandKind = iota
	Wait
	PlaySound
	PlaySoundAndWait
	PlaySequence
	PlaySequenceAndWait
	StartNode
	RestartNode
	RestartFlow
	FadeNodeOut
	Set
	Goto
	// If and Placeholder exist only during parsing; flatten_commands
	// must remove every instance before a Node's command vector is
	// considered final. Their presence here past that point is a bug.
	If
	Placeholder
)

// Branch is one arm of an If awaiting flattening.
type Branch struct {
	Condition []vm.Instruction
	Commands  []Command
}

// Command is one bytecode instruction in a Node's command vector.
type Command struct {
	Kind CommandKind

	// Wait, FadeNodeOut(seconds)
	Seconds posfloat.PosFloat

	// PlaySound(AndWait), PlaySequence(AndWait), StartNode,
	// RestartNode, FadeNodeOut(name), Set(control)
	Name string

	// Set(expr), Goto(expr)
	Expr []vm.Instruction

	// Goto
	ExpectedTruthiness bool
	TargetIndex        int

	// If / Placeholder (parse-time only)
	Branches []Branch
	Fallback []Command
}

// Node is a named sub-program within a flow.
type Node struct {
	Name     string // empty for the (anonymous) start node
	Commands []Command
}

// Flow is an imperative program whose commands schedule music over
// time.
type Flow struct {
	Name      string
	StartNode *Node
	Nodes     map[string]*Node
	// Autoloop: see SPEC_FULL.md Open Question 3. When true, and the
	// root node reaches Done, the interpreter restarts the root node
	// (not the whole flow: flow_controls are left alone).
	Autoloop bool
}

// Visit calls foundSound/foundSequence for every sound/sequence this
// flow's nodes directly reference. Panics if an If or Placeholder
// survives into a final command vector — that is an internal
// invariant violation, not a recoverable error (spec.md §7).
func (f *Flow) Visit(foundSound, foundSequence func(name string)) {
	visitNode := func(n *Node) {
		for _, c := range n.Commands {
			switch c.Kind {
			case PlaySound, PlaySoundAndWait:
				foundSound(c.Name)
			case PlaySequence, PlaySequenceAndWait:
				foundSequence(c.Name)
			case If, Placeholder:
				panic("soundtrack: If/Placeholder command survived into a final command vector")
			}
		}
	}
	visitNode(f.StartNode)
	for _, n := range f.Nodes {
		visitNode(n)
	}
}

// Soundtrack is the immutable, shareable bundle of sounds, sequences,
// and flows that a host loads and swaps wholesale; see engine.go for
// how it is shared by reference count.
type Soundtrack struct {
	Sounds    map[string]*Sound
	Sequences map[string]*Sequence
	Flows     map[string]*Flow
}

// New returns an empty, mutable-during-construction Soundtrack. The
// parser builds one of these and hands back the finished value; once
// handed to the engine it is never mutated again.
func New() *Soundtrack {
	return &Soundtrack{
		Sounds:    map[string]*Sound{},
		Sequences: map[string]*Sequence{},
		Flows:     map[string]*Flow{},
	}
}

// FindAllSounds returns every Sound directly or indirectly reachable
// from flow, expanding through sequences. missingSound/missingSequence
// are called once for each name referenced but absent from the
// soundtrack. A sequence that plays itself is rejected by the parser
// (source.parsePlay); a general cycle among sequences (A plays B plays
// A) is bounded here by the visited set below (spec.md §9).
func (st *Soundtrack) FindAllSounds(flow *Flow, missingSound, missingSequence func(name string)) []*Sound {
	foundSoundNames := map[string]struct{}{}
	visitedSequences := map[string]struct{}{}
	var visitSequence func(name string)
	visitSequence = func(name string) {
		if _, ok := visitedSequences[name]; ok {
			return
		}
		visitedSequences[name] = struct{}{}
		seq, ok := st.Sequences[name]
		if !ok {
			missingSequence(name)
			return
		}
		seq.Visit(func(s string) { foundSoundNames[s] = struct{}{} }, visitSequence)
	}
	flow.Visit(func(s string) { foundSoundNames[s] = struct{}{} }, visitSequence)

	out := make([]*Sound, 0, len(foundSoundNames))
	for name := range foundSoundNames {
		if s, ok := st.Sounds[name]; ok {
			out = append(out, s)
		} else {
			missingSound(name)
		}
	}
	return out
}

// Validate checks the invariants the parser is required to enforce
// (spec.md §3.2): unique names are guaranteed by construction (map
// keys), so this focuses on cross-referential and numeric invariants
// that survive only if every constructor path ran them. It exists so
// the interpreter/tests can assert a Soundtrack is well-formed after
// manual construction (as in Go test fixtures), without duplicating
// the parser's inline checks.
func (st *Soundtrack) Validate() error {
	for name, s := range st.Sounds {
		if end, ok := s.End.Get(); ok {
			if s.Start.Less(end) == false && s.Start.Compare(end) != 0 {
				return fmt.Errorf("sound %q: start must be <= end", name)
			}
		}
	}
	for name, fl := range st.Flows {
		for _, n := range append([]*Node{fl.StartNode}, mapValues(fl.Nodes)...) {
			if err := validateCommands(name, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateCommands(flowName string, n *Node) error {
	if len(n.Commands) == 0 {
		return fmt.Errorf("flow %q node %q: command vector must end in Done", flowName, n.Name)
	}
	last := n.Commands[len(n.Commands)-1]
	if last.Kind != Done {
		return fmt.Errorf("flow %q node %q: command vector must end in Done", flowName, n.Name)
	}
	for i, c := range n.Commands {
		switch c.Kind {
		case If, Placeholder:
			return fmt.Errorf("flow %q node %q: If/Placeholder must not survive flattening", flowName, n.Name)
		case Goto:
			if c.TargetIndex < 0 || c.TargetIndex > len(n.Commands) {
				return fmt.Errorf("flow %q node %q: goto target %d out of bounds at index %d", flowName, n.Name, c.TargetIndex, i)
			}
		}
	}
	return nil
}

func mapValues(m map[string]*Node) []*Node {
	out := make([]*Node, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// FaderFor is a small convenience used by the interpreter: builds a
// starting Fader for a command's Set/FadeNodeOut parameters.
func FaderFor(curve fader.Curve, from, to, lengthSeconds, sampleRate posfloat.PosFloat) fader.Fader {
	frames := lengthSeconds.SecondsToFracFrames(sampleRate)
	return fader.Start(curve, from, to, frames)
}
