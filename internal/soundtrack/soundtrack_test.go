package soundtrack

import (
	"strings"
	"testing"
	"time"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
)

func TestValidateRejectsGotoOutOfBounds(t *testing.T) {
	st := New()
	st.Flows["f"] = &Flow{
		Name: "f",
		StartNode: &Node{Commands: []Command{
			{Kind: Goto, ExpectedTruthiness: true, TargetIndex: 5},
			{Kind: Done},
		}},
		Nodes: map[string]*Node{},
	}
	err := st.Validate()
	if err == nil {
		t.Fatal("expected an error for a goto target past the end of the command vector")
	}
	if !strings.Contains(err.Error(), "goto target") {
		t.Fatalf("got %q, want a goto-target-out-of-bounds error", err)
	}
}

func TestValidateRejectsIfSurvivingFlattening(t *testing.T) {
	st := New()
	st.Flows["f"] = &Flow{
		Name: "f",
		StartNode: &Node{Commands: []Command{
			{Kind: If, Branches: []Branch{{Commands: []Command{{Kind: Done}}}}},
			{Kind: Done},
		}},
		Nodes: map[string]*Node{},
	}
	err := st.Validate()
	if err == nil {
		t.Fatal("expected an error when an If survives into a final command vector")
	}
	if !strings.Contains(err.Error(), "must not survive flattening") {
		t.Fatalf("got %q, want an If-survived-flattening error", err)
	}
}

func TestValidateRejectsCommandVectorNotEndingInDone(t *testing.T) {
	st := New()
	st.Flows["f"] = &Flow{
		Name:      "f",
		StartNode: &Node{Commands: []Command{{Kind: Wait, Seconds: posfloat.MustNew(1)}}},
		Nodes:     map[string]*Node{},
	}
	err := st.Validate()
	if err == nil {
		t.Fatal("expected an error when a command vector doesn't end in Done")
	}
	if !strings.Contains(err.Error(), "must end in Done") {
		t.Fatalf("got %q, want a must-end-in-Done error", err)
	}
}

func TestValidateAcceptsWellFormedFlow(t *testing.T) {
	st := New()
	st.Flows["f"] = &Flow{
		Name: "f",
		StartNode: &Node{Commands: []Command{
			{Kind: Goto, ExpectedTruthiness: true, TargetIndex: 1},
			{Kind: Done},
		}},
		Nodes: map[string]*Node{},
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFindAllSoundsExpandsThroughSequences(t *testing.T) {
	st := New()
	st.Sounds["a"] = &Sound{Name: "a", Path: "a.ogg"}
	st.Sounds["b"] = &Sound{Name: "b", Path: "b.ogg"}
	st.Sequences["inner"] = &Sequence{Name: "inner", Elements: []TimedElement{
		{Element: SequenceElement{IsPlaySound: true, Sound: "b"}},
	}}
	flow := &Flow{
		Name: "f",
		StartNode: &Node{Commands: []Command{
			{Kind: PlaySound, Name: "a"},
			{Kind: PlaySequence, Name: "inner"},
			{Kind: Done},
		}},
		Nodes: map[string]*Node{},
	}
	st.Flows["f"] = flow

	found := st.FindAllSounds(flow, func(string) { t.Fatal("unexpected missing sound") }, func(string) { t.Fatal("unexpected missing sequence") })
	names := map[string]bool{}
	for _, s := range found {
		names[s.Name] = true
	}
	if !names["a"] || !names["b"] {
		t.Fatalf("got %v, want both a (direct) and b (via the sequence)", names)
	}
}

// TestFindAllSoundsBoundsSequenceCycle covers two sequences that refer
// to each other (A's elements include a play of B and vice versa): a
// naive recursive walk would never terminate, so the visited set in
// FindAllSounds must stop the second visit to either name.
func TestFindAllSoundsBoundsSequenceCycle(t *testing.T) {
	st := New()
	st.Sounds["leaf"] = &Sound{Name: "leaf", Path: "leaf.ogg"}
	st.Sequences["a"] = &Sequence{Name: "a", Elements: []TimedElement{
		{Element: SequenceElement{IsPlaySound: true, Sound: "leaf"}},
		{Element: SequenceElement{Sequence: "b"}},
	}}
	st.Sequences["b"] = &Sequence{Name: "b", Elements: []TimedElement{
		{Element: SequenceElement{Sequence: "a"}},
	}}
	flow := &Flow{
		Name:      "f",
		StartNode: &Node{Commands: []Command{{Kind: PlaySequence, Name: "a"}, {Kind: Done}}},
		Nodes:     map[string]*Node{},
	}
	st.Flows["f"] = flow

	done := make(chan []*Sound, 1)
	go func() {
		done <- st.FindAllSounds(flow, func(string) {}, func(string) {})
	}()
	select {
	case found := <-done:
		if len(found) != 1 || found[0].Name != "leaf" {
			t.Fatalf("got %v, want exactly [leaf]", found)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("FindAllSounds did not terminate on a sequence cycle")
	}
}

func TestFindAllSoundsReportsMissingSoundAndSequence(t *testing.T) {
	st := New()
	flow := &Flow{
		Name: "f",
		StartNode: &Node{Commands: []Command{
			{Kind: PlaySound, Name: "ghost-sound"},
			{Kind: PlaySequence, Name: "ghost-sequence"},
			{Kind: Done},
		}},
		Nodes: map[string]*Node{},
	}
	st.Flows["f"] = flow

	var missingSounds, missingSequences []string
	st.FindAllSounds(flow,
		func(name string) { missingSounds = append(missingSounds, name) },
		func(name string) { missingSequences = append(missingSequences, name) },
	)
	if len(missingSounds) != 1 || missingSounds[0] != "ghost-sound" {
		t.Fatalf("got %v, want [ghost-sound]", missingSounds)
	}
	if len(missingSequences) != 1 || missingSequences[0] != "ghost-sequence" {
		t.Fatalf("got %v, want [ghost-sequence]", missingSequences)
	}
}

func TestDeferredEndResolveIsSetOnce(t *testing.T) {
	d := Unresolved()
	if _, ok := d.Get(); ok {
		t.Fatal("expected a fresh DeferredEnd to be unresolved")
	}
	first := d.Resolve(posfloat.MustNew(5))
	if first.Float32() != 5 {
		t.Fatalf("got %v, want 5", first)
	}
	second := d.Resolve(posfloat.MustNew(9))
	if second.Float32() != 5 {
		t.Fatalf("Resolve must be a no-op after the first call, got %v", second)
	}
}
