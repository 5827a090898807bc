package interp

import (
	"testing"

	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/son"
	"github.com/cbegin/secondmusic-go/internal/sound"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
	"github.com/cbegin/secondmusic-go/internal/vm"
)

type recordingDelegate struct {
	warnings []string
}

func (d *recordingDelegate) OpenFile(name string) (sound.FormattedSoundStream, bool) {
	return sound.FormattedSoundStream{}, false
}
func (d *recordingDelegate) Warning(message string) { d.warnings = append(d.warnings, message) }

func soundtrackWithOneSound(soundName string, startEnd bool) *soundtrack.Soundtrack {
	st := soundtrack.New()
	snd := &soundtrack.Sound{Name: soundName, Path: "x.ogg", Start: posfloat.Zero}
	if startEnd {
		snd.End = soundtrack.Resolved(posfloat.MustNew(2))
	}
	st.Sounds[soundName] = snd
	return st
}

func TestStepDoneRemovesNode(t *testing.T) {
	live := soundtrack.New()
	node := &soundtrack.Node{Name: "", Commands: []soundtrack.Command{{Kind: soundtrack.Done}}}
	an := &ActiveNode{FlowName: "f", Node: node, NextInstructionTime: 0}

	survivors, _, _ := Step([]*ActiveNode{an}, 0, posfloat.MustNew(48000), map[string]son.SoN{}, map[FlowNodeKey]fader.Fader{}, live, &recordingDelegate{}, &SoundQueue{})
	if len(survivors) != 0 {
		t.Fatalf("expected Done to remove the node, got %d survivors", len(survivors))
	}
}

func TestStepWaitBlocksUntilTime(t *testing.T) {
	live := soundtrack.New()
	node := &soundtrack.Node{Commands: []soundtrack.Command{
		{Kind: soundtrack.Wait, Seconds: posfloat.One},
		{Kind: soundtrack.Done},
	}}
	an := &ActiveNode{FlowName: "f", Node: node}

	sampleRate := posfloat.MustNew(48000)
	survivors, _, _ := Step([]*ActiveNode{an}, 0, sampleRate, map[string]son.SoN{}, map[FlowNodeKey]fader.Fader{}, live, &recordingDelegate{}, &SoundQueue{})
	if len(survivors) != 1 {
		t.Fatalf("expected the node to survive a Wait, got %d", len(survivors))
	}
	if survivors[0].NextInstructionTime != 48000 {
		t.Fatalf("got NextInstructionTime %d, want 48000", survivors[0].NextInstructionTime)
	}

	// Stepping again before the wait elapses changes nothing.
	survivors, _, _ = Step(survivors, 100, sampleRate, map[string]son.SoN{}, map[FlowNodeKey]fader.Fader{}, live, &recordingDelegate{}, &SoundQueue{})
	if len(survivors) != 1 || survivors[0].NextInstructionIndex != 1 {
		t.Fatalf("node should not have advanced before its wait elapsed: %+v", survivors[0])
	}

	// Stepping once the wait has elapsed reaches Done.
	survivors, _, _ = Step(survivors, 48000, sampleRate, map[string]son.SoN{}, map[FlowNodeKey]fader.Fader{}, live, &recordingDelegate{}, &SoundQueue{})
	if len(survivors) != 0 {
		t.Fatalf("expected the node to finish once its wait elapsed, got %d survivors", len(survivors))
	}
}

func TestStepPlaySoundQueuesAndContinues(t *testing.T) {
	live := soundtrackWithOneSound("kick", true)
	node := &soundtrack.Node{Commands: []soundtrack.Command{
		{Kind: soundtrack.PlaySound, Name: "kick"},
		{Kind: soundtrack.Done},
	}}
	an := &ActiveNode{FlowName: "f", Node: node}
	queue := &SoundQueue{}

	survivors, _, _ := Step([]*ActiveNode{an}, 10, posfloat.MustNew(48000), map[string]son.SoN{}, map[FlowNodeKey]fader.Fader{}, live, &recordingDelegate{}, queue)
	if len(survivors) != 0 {
		t.Fatalf("expected node to run to Done in one step, got %d survivors", len(survivors))
	}
	if queue.Len() != 1 {
		t.Fatalf("expected 1 queued sound, got %d", queue.Len())
	}
	qs, _ := queue.Peek()
	if qs.When != 10 || qs.Who.FlowName != "f" || qs.Who.Channel != DefaultChannel {
		t.Fatalf("got %+v", qs)
	}
}

func TestStepPlaySoundAndWaitUsesSoundDuration(t *testing.T) {
	live := soundtrackWithOneSound("kick", true) // End resolved to 2s, Start 0
	node := &soundtrack.Node{Commands: []soundtrack.Command{
		{Kind: soundtrack.PlaySoundAndWait, Name: "kick"},
		{Kind: soundtrack.Done},
	}}
	an := &ActiveNode{FlowName: "f", Node: node}
	sampleRate := posfloat.MustNew(48000)

	survivors, _, _ := Step([]*ActiveNode{an}, 0, sampleRate, map[string]son.SoN{}, map[FlowNodeKey]fader.Fader{}, live, &recordingDelegate{}, &SoundQueue{})
	if len(survivors) != 1 {
		t.Fatalf("expected the node to block on PlaySoundAndWait, got %d", len(survivors))
	}
	if survivors[0].NextInstructionTime != 96000 {
		t.Fatalf("got NextInstructionTime %d, want 96000 (2s @ 48kHz)", survivors[0].NextInstructionTime)
	}
}

func TestStepMissingSoundWarnsAndContinues(t *testing.T) {
	live := soundtrack.New()
	node := &soundtrack.Node{Commands: []soundtrack.Command{
		{Kind: soundtrack.PlaySound, Name: "nope"},
		{Kind: soundtrack.Done},
	}}
	an := &ActiveNode{FlowName: "f", Node: node}
	delegate := &recordingDelegate{}

	survivors, _, _ := Step([]*ActiveNode{an}, 0, posfloat.MustNew(48000), map[string]son.SoN{}, map[FlowNodeKey]fader.Fader{}, live, delegate, &SoundQueue{})
	if len(survivors) != 0 {
		t.Fatalf("expected node to still reach Done, got %d survivors", len(survivors))
	}
	if len(delegate.warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(delegate.warnings))
	}
}

func TestStepStartNodeAndRestartNodeRecorded(t *testing.T) {
	live := soundtrack.New()
	node := &soundtrack.Node{Commands: []soundtrack.Command{
		{Kind: soundtrack.StartNode, Name: "b"},
		{Kind: soundtrack.RestartNode, Name: "c"},
		{Kind: soundtrack.RestartFlow},
		{Kind: soundtrack.Done},
	}}
	an := &ActiveNode{FlowName: "f", Node: node}

	_, toStart, toRestart := Step([]*ActiveNode{an}, 0, posfloat.MustNew(48000), map[string]son.SoN{}, map[FlowNodeKey]fader.Fader{}, live, &recordingDelegate{}, &SoundQueue{})
	if _, ok := toStart[Node("f", "b")]; !ok {
		t.Fatalf("expected StartNode(b) to be recorded, got %+v", toStart)
	}
	if _, ok := toRestart[Node("f", "c")]; !ok {
		t.Fatalf("expected RestartNode(c) to be recorded, got %+v", toRestart)
	}
	if _, ok := toRestart[Flow("f")]; !ok {
		t.Fatalf("expected RestartFlow to record the bare flow key, got %+v", toRestart)
	}
}

func TestStepFadeNodeOutStartsFaderTowardZero(t *testing.T) {
	live := soundtrack.New()
	node := &soundtrack.Node{Commands: []soundtrack.Command{
		{Kind: soundtrack.FadeNodeOut, Name: "b", Seconds: posfloat.One},
		{Kind: soundtrack.Done},
	}}
	an := &ActiveNode{FlowName: "f", Node: node}
	nodeVolumes := map[FlowNodeKey]fader.Fader{Node("f", "b"): fader.New(posfloat.One)}

	Step([]*ActiveNode{an}, 0, posfloat.MustNew(48000), map[string]son.SoN{}, nodeVolumes, live, &recordingDelegate{}, &SoundQueue{})
	f := nodeVolumes[Node("f", "b")]
	if f.Complete() {
		t.Fatalf("expected the fade to still be in progress immediately after starting")
	}
}

func TestStepSetWritesFlowControl(t *testing.T) {
	live := soundtrack.New()
	node := &soundtrack.Node{Commands: []soundtrack.Command{
		{Kind: soundtrack.Set, Name: "intensity", Expr: []vm.Instruction{{Op: vm.PushConst, Const: son.Number(5)}}},
		{Kind: soundtrack.Done},
	}}
	an := &ActiveNode{FlowName: "f", Node: node}
	flowControls := map[string]son.SoN{}

	Step([]*ActiveNode{an}, 0, posfloat.MustNew(48000), flowControls, map[FlowNodeKey]fader.Fader{}, live, &recordingDelegate{}, &SoundQueue{})
	if flowControls["intensity"].AsNumber() != 5 {
		t.Fatalf("got %+v, want intensity=5", flowControls)
	}
}

func TestStepGotoJumpsWhenConditionMatches(t *testing.T) {
	live := soundtrack.New()
	// index 0: goto index 2 if true(); index 1 would set a sentinel we
	// should never reach; index 2 is Done.
	node := &soundtrack.Node{Commands: []soundtrack.Command{
		{Kind: soundtrack.Goto, Expr: []vm.Instruction{{Op: vm.PushConst, Const: son.Bool(true)}}, ExpectedTruthiness: true, TargetIndex: 2},
		{Kind: soundtrack.Set, Name: "should_not_run", Expr: []vm.Instruction{{Op: vm.PushConst, Const: son.Bool(true)}}},
		{Kind: soundtrack.Done},
	}}
	an := &ActiveNode{FlowName: "f", Node: node}
	flowControls := map[string]son.SoN{}

	Step([]*ActiveNode{an}, 0, posfloat.MustNew(48000), flowControls, map[FlowNodeKey]fader.Fader{}, live, &recordingDelegate{}, &SoundQueue{})
	if _, ok := flowControls["should_not_run"]; ok {
		t.Fatalf("goto should have skipped over the Set command")
	}
}

// TestStepGotoWithEmptyExprIsAlwaysTrue covers the unconditional exit
// Goto insertFlattenedIf emits at the end of every if/elseif/else
// branch: Expr is left nil (no condition at all), relying on an empty
// program evaluating truthy, per data.rs's Goto doc comment ("Empty
// condition is always true").
func TestStepGotoWithEmptyExprIsAlwaysTrue(t *testing.T) {
	live := soundtrack.New()
	node := &soundtrack.Node{Commands: []soundtrack.Command{
		{Kind: soundtrack.Goto, ExpectedTruthiness: true, TargetIndex: 2},
		{Kind: soundtrack.Set, Name: "should_not_run", Expr: []vm.Instruction{{Op: vm.PushConst, Const: son.Bool(true)}}},
		{Kind: soundtrack.Done},
	}}
	an := &ActiveNode{FlowName: "f", Node: node}
	flowControls := map[string]son.SoN{}

	Step([]*ActiveNode{an}, 0, posfloat.MustNew(48000), flowControls, map[FlowNodeKey]fader.Fader{}, live, &recordingDelegate{}, &SoundQueue{})
	if _, ok := flowControls["should_not_run"]; ok {
		t.Fatalf("an empty-condition goto should unconditionally jump over the Set command")
	}
}

func TestSoundQueueOrdersByWhen(t *testing.T) {
	q := &SoundQueue{}
	q.Push(&QueuedSound{When: 30})
	q.Push(&QueuedSound{When: 10})
	q.Push(&QueuedSound{When: 20})

	var order []uint64
	for q.Len() > 0 {
		order = append(order, q.Pop().When)
	}
	want := []uint64{10, 20, 30}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
}

func TestFlowLoadStatusLoadsOnlyWhenWanted(t *testing.T) {
	snd := &soundtrack.Sound{Name: "x"}
	sm := &fakeLoader{ready: map[string]bool{"x": true}}
	fls := &FlowLoadStatus{KnownSounds: []*soundtrack.Sound{snd}}

	fls.MaybeLoad(sm)
	if sm.loadCount["x"] != 0 {
		t.Fatalf("expected no load while neither precaching nor active-loading")
	}

	fls.Precaching = true
	fls.MaybeLoad(sm)
	if sm.loadCount["x"] != 1 {
		t.Fatalf("expected exactly 1 load once precaching, got %d", sm.loadCount["x"])
	}
	fls.MaybeLoad(sm) // idempotent
	if sm.loadCount["x"] != 1 {
		t.Fatalf("MaybeLoad should be a no-op once LoadRequested, got %d loads", sm.loadCount["x"])
	}

	if !fls.IsReady(sm) {
		t.Fatalf("expected the flow to report ready")
	}

	fls.Precaching = false
	fls.MaybeUnload(sm)
	if sm.loadCount["x"] != 0 {
		t.Fatalf("expected MaybeUnload to release the load once nothing wants it, got %d", sm.loadCount["x"])
	}
}

type fakeLoader struct {
	ready     map[string]bool
	loadCount map[string]int
}

func (f *fakeLoader) Load(snd *soundtrack.Sound) {
	if f.loadCount == nil {
		f.loadCount = map[string]int{}
	}
	f.loadCount[snd.Name]++
}
func (f *fakeLoader) Unload(snd *soundtrack.Sound) {
	if f.loadCount == nil {
		return
	}
	f.loadCount[snd.Name]--
}
func (f *fakeLoader) IsReady(snd *soundtrack.Sound) bool { return f.ready[snd.Name] }

func TestVolumeGetWrapperMultipliesLayers(t *testing.T) {
	w := &VolumeGetWrapper{
		FlowVolumes:    map[string]fader.Fader{"f": fader.New(posfloat.MustNew(0.5))},
		NodeVolumes:    map[FlowNodeKey]fader.Fader{Node("f", "n"): fader.New(posfloat.MustNew(0.5))},
		MixControls:    map[string]fader.Fader{DefaultChannel: fader.New(posfloat.One)},
		FlowsFadingOut: map[string]struct{}{},
		StartingFlows:  map[string]struct{}{},
		SeenFlows:      map[string]struct{}{},
		SeenNodes:      map[FlowNodeKey]struct{}{},
	}
	id := PlayingSoundID{FlowNodeKey: Node("f", "n"), Channel: DefaultChannel}
	vol, ok := w.GetVolume(id, posfloat.Zero)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if vol.Float32() != 0.25 {
		t.Fatalf("got %v, want 0.25", vol.Float32())
	}
}

func TestVolumeGetWrapperStopsUnknownVoice(t *testing.T) {
	w := &VolumeGetWrapper{
		FlowVolumes: map[string]fader.Fader{},
		NodeVolumes: map[FlowNodeKey]fader.Fader{},
		MixControls: map[string]fader.Fader{},
	}
	id := PlayingSoundID{FlowNodeKey: Node("missing", "n"), Channel: DefaultChannel}
	if _, ok := w.GetVolume(id, posfloat.Zero); ok {
		t.Fatalf("expected ok=false for a voice with no flow fader")
	}
	if _, ok := w.IsVarying(id); ok {
		t.Fatalf("expected ok=false for IsVarying on a voice with no flow fader")
	}
}

func TestKillUnseenDropsFadedFlowAndItsNodes(t *testing.T) {
	flowVolumes := map[string]fader.Fader{"f": fader.New(posfloat.Zero)}
	nodeVolumes := map[FlowNodeKey]fader.Fader{Node("f", "n"): fader.New(posfloat.Zero)}
	mixControls := map[string]fader.Fader{}
	flowsFadingOut := map[string]struct{}{"f": {}}
	startingFlows := map[string]struct{}{}
	mixControlsFadingOut := map[string]struct{}{}
	flowLoads := map[string]*FlowLoadStatus{"f": {}}
	active := []*ActiveNode{{FlowName: "f", Node: &soundtrack.Node{Name: "n"}}}
	soundman := &fakeLoader{}
	seenFlows := map[string]struct{}{}   // "f" was not seen this mix
	seenNodes := map[FlowNodeKey]struct{}{}

	active = KillUnseen(flowVolumes, nodeVolumes, mixControls, flowsFadingOut, startingFlows, mixControlsFadingOut, flowLoads, active, soundman, seenFlows, seenNodes)

	if _, ok := flowVolumes["f"]; ok {
		t.Fatalf("expected flow \"f\" to be dropped")
	}
	if _, ok := nodeVolumes[Node("f", "n")]; ok {
		t.Fatalf("expected node \"f\"::\"n\" to be dropped along with its flow")
	}
	if len(active) != 0 {
		t.Fatalf("expected the active node for the dropped flow to be removed, got %+v", active)
	}
}

func TestKillUnseenKeepsSeenFlow(t *testing.T) {
	flowVolumes := map[string]fader.Fader{"f": fader.New(posfloat.Zero)}
	flowsFadingOut := map[string]struct{}{"f": {}}
	seenFlows := map[string]struct{}{"f": {}}

	KillUnseen(flowVolumes, map[FlowNodeKey]fader.Fader{}, map[string]fader.Fader{}, flowsFadingOut, map[string]struct{}{}, map[string]struct{}{}, map[string]*FlowLoadStatus{}, nil, &fakeLoader{}, seenFlows, map[FlowNodeKey]struct{}{})

	if _, ok := flowVolumes["f"]; !ok {
		t.Fatalf("a flow seen this mix should survive even while fading out")
	}
}

func TestKillUnseenDropsMixControlOnceFaderReachesZero(t *testing.T) {
	mixControls := map[string]fader.Fader{"main": fader.New(posfloat.Zero)}
	mixControlsFadingOut := map[string]struct{}{"main": {}}

	KillUnseen(map[string]fader.Fader{}, map[FlowNodeKey]fader.Fader{}, mixControls, map[string]struct{}{}, map[string]struct{}{}, mixControlsFadingOut, map[string]*FlowLoadStatus{}, nil, &fakeLoader{}, map[string]struct{}{}, map[FlowNodeKey]struct{}{})

	if _, ok := mixControls["main"]; ok {
		t.Fatalf("expected the fading mix control at volume 0 to be dropped")
	}
}
