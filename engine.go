// Package secondmusic is a dynamic music engine: load a soundtrack
// (sounds, sequences, flows), start and fade flows, and turn the
// handle once per output buffer to get mixed audio. Grounded on
// original_source/second-music-system/src/engine.rs's Engine/
// Commander/Transaction, generalized across this repo's own
// internal/mixer, internal/soundman, internal/interp, and
// internal/command packages.
package secondmusic

import (
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/cbegin/secondmusic-go/internal/adapter"
	"github.com/cbegin/secondmusic-go/internal/command"
	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/interp"
	"github.com/cbegin/secondmusic-go/internal/mixer"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/son"
	"github.com/cbegin/secondmusic-go/internal/sound"
	"github.com/cbegin/secondmusic-go/internal/soundman"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
	"github.com/cbegin/secondmusic-go/internal/taskrt"
)

// commandChanBuffer bounds the channel a Commander sends into. The
// original uses an unbounded crossbeam channel; a bounded Go channel
// this generous is a pragmatic stand-in (see DESIGN.md) rather than
// reimplementing an unbounded queue for a command stream that is
// drained every output buffer.
const commandChanBuffer = 4096

// Engine is the main moving part of the music system: create one,
// give it a SoundDelegate, and call TurnHandle from your audio output
// code to make music come out.
type Engine struct {
	command.Issuers

	liveSoundtrack *soundtrack.Soundtrack
	mixer          *mixer.Mixer[interp.PlayingSoundID]
	commandCh      chan command.Command

	flowControls         map[string]son.SoN
	mixControls          map[string]fader.Fader
	flowVolumes          map[string]fader.Fader
	nodeVolumes          map[interp.FlowNodeKey]fader.Fader
	startingFlows        map[string]struct{}
	flowsFadingOut       map[string]struct{}
	mixControlsFadingOut map[string]struct{}
	deferredKill         bool

	// flowControlReadout is a best-effort, lock-free-on-the-audio-thread
	// snapshot of flowControls for another goroutine to poll (a debug
	// overlay, a UI). Grounded on engine.rs's flow_control_readout: the
	// original's readoutNeedsUpdate is set up but never flipped true by
	// any command handler in this source tree, so the try_write branch
	// in turn_handle is, as written, dead code. Ported literally rather
	// than invented a use for it.
	flowControlReadoutMu sync.RWMutex
	flowControlReadout   map[string]son.SoN
	readoutNeedsUpdate   bool

	soundDelegate sound.SoundDelegate
	soundman      *soundman.SoundMan
	flowLoads     map[string]*interp.FlowLoadStatus
	speakerLayout sound.SpeakerLayout
	sampleRate    posfloat.PosFloat

	mixBuf          []float32
	activeFlowNodes []*interp.ActiveNode
	queuedSounds    *interp.SoundQueue
}

var _ command.Issuer = (*Engine)(nil)

// NewEngine creates an Engine that performs background loading on a
// pooled runtime sized to a fraction of the available CPUs, mirroring
// Engine::new's default Switchyard sizing.
func NewEngine(delegate sound.SoundDelegate, speakerLayout sound.SpeakerLayout, sampleRate posfloat.PosFloat) *Engine {
	threads := goruntime.NumCPU() / 3
	if threads < 1 {
		threads = 1
	}
	return NewEngineWithRuntime(delegate, speakerLayout, sampleRate, taskrt.NewPool(threads))
}

// NewEngineWithRuntime creates an Engine using rt for background
// loading tasks. Pass taskrt.Foreground{} to make every load
// synchronous, e.g. for offline rendering or deterministic tests.
// Grounded on Engine::new_with_runtime.
func NewEngineWithRuntime(delegate sound.SoundDelegate, speakerLayout sound.SpeakerLayout, sampleRate posfloat.PosFloat, rt taskrt.Runtime) *Engine {
	e := &Engine{
		liveSoundtrack: soundtrack.New(),
		mixer:          mixer.New[interp.PlayingSoundID](speakerLayout.NumChannels()),
		commandCh:      make(chan command.Command, commandChanBuffer),

		flowControls:         map[string]son.SoN{},
		mixControls:          map[string]fader.Fader{interp.DefaultChannel: fader.New(posfloat.One)},
		flowVolumes:          map[string]fader.Fader{},
		nodeVolumes:          map[interp.FlowNodeKey]fader.Fader{},
		startingFlows:        map[string]struct{}{},
		flowsFadingOut:       map[string]struct{}{},
		mixControlsFadingOut: map[string]struct{}{},

		flowControlReadout: map[string]son.SoN{},

		soundDelegate: delegate,
		soundman:      soundman.NewSoundMan(delegate, rt),
		flowLoads:     map[string]*interp.FlowLoadStatus{},
		speakerLayout: speakerLayout,
		sampleRate:    sampleRate,

		queuedSounds: &interp.SoundQueue{},
	}
	e.Issuers = command.Issuers{Issuer: e}
	return e
}

// CloneCommander makes an independent Commander that can send
// commands to this Engine from another goroutine.
func (e *Engine) CloneCommander() *command.Commander {
	return command.NewCommander(e.commandCh)
}

// CopyLiveSoundtrack returns the Soundtrack currently live.
func (e *Engine) CopyLiveSoundtrack() *soundtrack.Soundtrack {
	return e.liveSoundtrack
}

// CopyAllFlowControls returns a snapshot of every flow control
// currently set. Safe to call only from the goroutine driving
// TurnHandle.
func (e *Engine) CopyAllFlowControls() map[string]son.SoN {
	out := make(map[string]son.SoN, len(e.flowControls))
	for k, v := range e.flowControls {
		out[k] = v
	}
	return out
}

// GetSpeakerLayout returns the SpeakerLayout this Engine was created
// with.
func (e *Engine) GetSpeakerLayout() sound.SpeakerLayout { return e.speakerLayout }

// GetSampleRate returns the sample rate this Engine was created with.
func (e *Engine) GetSampleRate() posfloat.PosFloat { return e.sampleRate }

// Stats is a snapshot of engine activity for a debug overlay; an
// ambient concern, not a DAW feature. Engine.Stats reads engine state
// directly, with no atomics or locking.
type Stats struct {
	VoicesActive  int
	QueuedSounds  int
	PrecacheQueue int
}

// Stats reports current engine activity.
func (e *Engine) Stats() Stats {
	precaching := 0
	for _, ls := range e.flowLoads {
		if ls.Precaching {
			precaching++
		}
	}
	return Stats{
		VoicesActive:  e.mixer.Len(),
		QueuedSounds:  e.queuedSounds.Len(),
		PrecacheQueue: precaching,
	}
}

// Issue applies cmd immediately. Grounded on
// impl EngineCommandIssuer for Engine: unlike Commander/Transaction,
// which forward or buffer, the Engine itself performs the mutation
// synchronously.
func (e *Engine) Issue(cmd command.Command) {
	switch cmd.Kind {
	case command.KindTransaction:
		for _, c := range cmd.Commands {
			e.Issue(c)
		}

	case command.KindReplaceSoundtrack:
		e.replaceSoundtrack(cmd.NewSoundtrack)

	case command.KindPrecache:
		ls, ok := e.flowLoads[cmd.FlowName]
		if !ok {
			e.soundDelegate.Warning("attempt to precache flow " + cmd.FlowName + ", which does not exist")
			return
		}
		if ls.Precaching {
			e.soundDelegate.Warning("attempt to precache flow " + cmd.FlowName + " more than once")
			return
		}
		ls.Precaching = true
		ls.MaybeLoad(e.soundman)

	case command.KindUnprecache:
		ls, ok := e.flowLoads[cmd.FlowName]
		if !ok {
			e.soundDelegate.Warning("attempt to unprecache flow " + cmd.FlowName + ", which does not exist")
			return
		}
		if !ls.Precaching {
			e.soundDelegate.Warning("attempt to unprecache flow " + cmd.FlowName + " that wasn't currently precached")
			return
		}
		ls.Precaching = false
		ls.MaybeUnload(e.soundman)

	case command.KindUnprecacheAll:
		for _, ls := range e.flowLoads {
			if ls.Precaching {
				ls.Precaching = false
				ls.MaybeUnload(e.soundman)
			}
		}

	case command.KindSetFlowControl:
		e.flowControls[cmd.ControlName] = cmd.NewValue

	case command.KindClearFlowControl:
		delete(e.flowControls, cmd.ControlName)

	case command.KindClearPrefixedFlowControls:
		for k := range e.flowControls {
			if strings.HasPrefix(k, cmd.Prefix) {
				delete(e.flowControls, k)
			}
		}

	case command.KindClearAllFlowControls:
		e.flowControls = map[string]son.SoN{}

	case command.KindFadeMixControlTo:
		e.performDeferredKill()
		delete(e.mixControlsFadingOut, cmd.ControlName)
		old := posfloat.Zero
		if f, ok := e.mixControls[cmd.ControlName]; ok {
			old = f.Evaluate()
		}
		e.mixControls[cmd.ControlName] = fader.Start(cmd.FadeType, old, cmd.TargetVolume, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))

	case command.KindFadePrefixedMixControlsTo:
		e.performDeferredKill()
		for name, f := range e.mixControls {
			if strings.HasPrefix(name, cmd.Prefix) {
				delete(e.mixControlsFadingOut, name)
				e.mixControls[name] = fader.Start(cmd.FadeType, f.Evaluate(), cmd.TargetVolume, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
			}
		}

	case command.KindFadeAllMixControlsTo:
		e.performDeferredKill()
		for name, f := range e.mixControls {
			delete(e.mixControlsFadingOut, name)
			e.mixControls[name] = fader.Start(cmd.FadeType, f.Evaluate(), cmd.TargetVolume, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
		}

	case command.KindFadeAllMixControlsExceptMainTo:
		e.performDeferredKill()
		for name, f := range e.mixControls {
			if name != interp.DefaultChannel {
				delete(e.mixControlsFadingOut, name)
				e.mixControls[name] = fader.Start(cmd.FadeType, f.Evaluate(), cmd.TargetVolume, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
			}
		}

	case command.KindFadeMixControlOut:
		e.performDeferredKill()
		if f, ok := e.mixControls[cmd.ControlName]; ok {
			e.mixControls[cmd.ControlName] = fader.Start(cmd.FadeType, f.Evaluate(), posfloat.Zero, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
			e.mixControlsFadingOut[cmd.ControlName] = struct{}{}
		}

	case command.KindFadePrefixedMixControlsOut:
		e.performDeferredKill()
		for name, f := range e.mixControls {
			if strings.HasPrefix(name, cmd.Prefix) {
				e.mixControls[name] = fader.Start(cmd.FadeType, f.Evaluate(), posfloat.Zero, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
				e.mixControlsFadingOut[name] = struct{}{}
			}
		}

	case command.KindFadeAllMixControlsOut:
		e.performDeferredKill()
		for name, f := range e.mixControls {
			e.mixControls[name] = fader.Start(cmd.FadeType, f.Evaluate(), posfloat.Zero, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
			e.mixControlsFadingOut[name] = struct{}{}
		}

	case command.KindFadeAllMixControlsExceptMainOut:
		e.performDeferredKill()
		for name, f := range e.mixControls {
			if name != interp.DefaultChannel {
				e.mixControls[name] = fader.Start(cmd.FadeType, f.Evaluate(), posfloat.Zero, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
				e.mixControlsFadingOut[name] = struct{}{}
			}
		}

	case command.KindKillMixControl:
		if _, ok := e.mixControls[cmd.ControlName]; ok {
			delete(e.mixControls, cmd.ControlName)
			e.mixControlsFadingOut[cmd.ControlName] = struct{}{}
			e.deferredKill = true
		}

	case command.KindKillPrefixedMixControls:
		for name := range e.mixControls {
			if strings.HasPrefix(name, cmd.Prefix) {
				delete(e.mixControls, name)
				e.mixControlsFadingOut[name] = struct{}{}
				e.deferredKill = true
			}
		}

	case command.KindKillAllMixControls:
		for name := range e.mixControls {
			e.mixControlsFadingOut[name] = struct{}{}
			e.deferredKill = true
		}
		e.mixControls = map[string]fader.Fader{}

	case command.KindKillAllMixControlsExceptMain:
		for name := range e.mixControls {
			if name != interp.DefaultChannel {
				delete(e.mixControls, name)
				e.mixControlsFadingOut[name] = struct{}{}
				e.deferredKill = true
			}
		}

	case command.KindStartFlow:
		e.performDeferredKill()
		ls, ok := e.flowLoads[cmd.FlowName]
		if !ok {
			e.soundDelegate.Warning("attempt to start non-existent flow " + cmd.FlowName)
			return
		}
		if f, ok := e.flowVolumes[cmd.FlowName]; ok {
			delete(e.flowsFadingOut, cmd.FlowName)
			e.flowVolumes[cmd.FlowName] = fader.Start(cmd.FadeType, f.Evaluate(), cmd.TargetVolume, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
		} else {
			ls.ActiveLoading = true
			ls.MaybeLoad(e.soundman)
			e.startingFlows[cmd.FlowName] = struct{}{}
			e.nodeVolumes[interp.Flow(cmd.FlowName)] = fader.New(posfloat.One)
			e.flowVolumes[cmd.FlowName] = fader.Start(cmd.FadeType, posfloat.Zero, cmd.TargetVolume, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
		}

	case command.KindFadeFlowTo:
		e.performDeferredKill()
		if f, ok := e.flowVolumes[cmd.FlowName]; ok {
			delete(e.flowsFadingOut, cmd.FlowName)
			e.flowVolumes[cmd.FlowName] = fader.Start(cmd.FadeType, f.Evaluate(), cmd.TargetVolume, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
		}

	case command.KindFadePrefixedFlowsTo:
		e.performDeferredKill()
		for name, f := range e.flowVolumes {
			if strings.HasPrefix(name, cmd.Prefix) {
				delete(e.flowsFadingOut, name)
				e.flowVolumes[name] = fader.Start(cmd.FadeType, f.Evaluate(), cmd.TargetVolume, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
			}
		}

	case command.KindFadeAllFlowsTo:
		e.performDeferredKill()
		for name, f := range e.flowVolumes {
			delete(e.flowsFadingOut, name)
			e.flowVolumes[name] = fader.Start(cmd.FadeType, f.Evaluate(), cmd.TargetVolume, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
		}

	case command.KindFadeFlowOut:
		e.performDeferredKill()
		if f, ok := e.flowVolumes[cmd.FlowName]; ok {
			e.flowVolumes[cmd.FlowName] = fader.Start(cmd.FadeType, f.Evaluate(), posfloat.Zero, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
			e.flowsFadingOut[cmd.FlowName] = struct{}{}
		}

	case command.KindFadePrefixedFlowsOut:
		e.performDeferredKill()
		for name, f := range e.flowVolumes {
			if strings.HasPrefix(name, cmd.Prefix) {
				e.flowVolumes[name] = fader.Start(cmd.FadeType, f.Evaluate(), posfloat.Zero, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
				e.flowsFadingOut[name] = struct{}{}
			}
		}

	case command.KindFadeAllFlowsOut:
		e.performDeferredKill()
		for name, f := range e.flowVolumes {
			e.flowVolumes[name] = fader.Start(cmd.FadeType, f.Evaluate(), posfloat.Zero, cmd.FadeLength.SecondsToFracFrames(e.sampleRate))
			e.flowsFadingOut[name] = struct{}{}
		}

	case command.KindKillFlow:
		delete(e.startingFlows, cmd.FlowName)
		for k := range e.nodeVolumes {
			if k.FlowName == cmd.FlowName {
				delete(e.nodeVolumes, k)
			}
		}
		if _, ok := e.flowVolumes[cmd.FlowName]; ok {
			delete(e.flowVolumes, cmd.FlowName)
			e.flowsFadingOut[cmd.FlowName] = struct{}{}
			e.deferredKill = true
		}

	case command.KindKillPrefixedFlows:
		for name := range e.startingFlows {
			if strings.HasPrefix(name, cmd.Prefix) {
				delete(e.startingFlows, name)
			}
		}
		for k := range e.nodeVolumes {
			if strings.HasPrefix(k.FlowName, cmd.Prefix) {
				delete(e.nodeVolumes, k)
			}
		}
		for name := range e.flowVolumes {
			if strings.HasPrefix(name, cmd.Prefix) {
				delete(e.flowVolumes, name)
				e.flowsFadingOut[name] = struct{}{}
				e.deferredKill = true
			}
		}

	case command.KindKillAllFlows:
		e.startingFlows = map[string]struct{}{}
		e.nodeVolumes = map[interp.FlowNodeKey]fader.Fader{}
		for name := range e.flowVolumes {
			e.flowsFadingOut[name] = struct{}{}
			e.deferredKill = true
		}
		e.flowVolumes = map[string]fader.Fader{}

	case command.KindQueryIsFlowActive:
		_, active := e.flowVolumes[cmd.FlowName]
		cmd.FlowActiveResponder.Respond(active)

	case command.KindQueryFlowControl:
		if v, ok := e.flowControls[cmd.ControlName]; ok {
			cmd.FlowControlResponder.Respond(&v)
		} else {
			cmd.FlowControlResponder.Respond(nil)
		}

	case command.KindQueryMixControl:
		if f, ok := e.mixControls[cmd.ControlName]; ok {
			v := f.Evaluate()
			cmd.MixControlResponder.Respond(&v)
		} else {
			cmd.MixControlResponder.Respond(nil)
		}
	}
}

// performDeferredKill bumps the mixer to drop voices whose flow/mix
// control was just removed outright (as opposed to faded), so the
// next real Mix doesn't keep feeding a voice that has nothing left
// backing its volume. Grounded on engine.rs's perform_deferred_kill.
func (e *Engine) performDeferredKill() {
	if !e.deferredKill {
		return
	}
	e.deferredKill = false
	seenFlows := make(map[string]struct{}, len(e.activeFlowNodes)*2)
	seenNodes := make(map[interp.FlowNodeKey]struct{}, len(e.activeFlowNodes)*2)
	e.mixer.Bump(&interp.VolumeGetWrapper{
		MixControls:    e.mixControls,
		FlowVolumes:    e.flowVolumes,
		NodeVolumes:    e.nodeVolumes,
		FlowsFadingOut: e.flowsFadingOut,
		StartingFlows:  e.startingFlows,
		SeenFlows:      seenFlows,
		SeenNodes:      seenNodes,
	})
	e.activeFlowNodes = interp.KillUnseen(e.flowVolumes, e.nodeVolumes, e.mixControls, e.flowsFadingOut, e.startingFlows, e.mixControlsFadingOut, e.flowLoads, e.activeFlowNodes, e.soundman, seenFlows, seenNodes)
}

// replaceSoundtrack swaps in a new Soundtrack, loading every flow's
// sounds ahead of the unload of the outgoing soundtrack's so that
// anything still in common stays loaded throughout. Grounded on
// engine.rs's replace_soundtrack.
func (e *Engine) replaceSoundtrack(newSoundtrack *soundtrack.Soundtrack) {
	e.liveSoundtrack = newSoundtrack
	newFlowLoads := make(map[string]*interp.FlowLoadStatus, len(newSoundtrack.Flows))
	for flowName, flow := range newSoundtrack.Flows {
		activeLoading, precaching := false, false
		if old, ok := e.flowLoads[flowName]; ok {
			activeLoading, precaching = old.ActiveLoading, old.Precaching
		}
		ls := &interp.FlowLoadStatus{
			ActiveLoading: activeLoading,
			Precaching:    precaching,
			KnownSounds: newSoundtrack.FindAllSounds(flow,
				func(name string) { e.soundDelegate.Warning("missing sound: " + name) },
				func(name string) { e.soundDelegate.Warning("missing sequence: " + name) },
			),
		}
		ls.MaybeLoad(e.soundman)
		newFlowLoads[flowName] = ls
	}
	for _, ls := range e.flowLoads {
		ls.ForceUnload(e.soundman)
	}
	e.flowLoads = newFlowLoads
}

// TurnHandle mixes audio into out, advancing every active flow node,
// queued sound, and fader along the way. len(out) must be a whole
// number of sample frames for this Engine's speaker layout. Grounded
// on engine.rs's turn_handle.
func (e *Engine) TurnHandle(out []float32) {
	channels := e.speakerLayout.NumChannels()
	if len(out)%channels != 0 {
		panic("secondmusic: out is not a whole number of sample frames")
	}

	mixBuf := e.mixBuf
	e.mixBuf = nil
	seenFlows := make(map[string]struct{}, len(e.activeFlowNodes)*2)
	seenNodes := make(map[interp.FlowNodeKey]struct{}, len(e.activeFlowNodes)*2)

	for len(out) > 0 {
		now := e.mixer.NextOutputSampleFrameNumber()

		for {
			select {
			case cmd := <-e.commandCh:
				e.Issue(cmd)
				continue
			default:
			}
			break
		}

		for flowName := range e.startingFlows {
			ls := e.flowLoads[flowName]
			if !ls.IsReady(e.soundman) {
				continue
			}
			flow := e.liveSoundtrack.Flows[flowName]
			e.activeFlowNodes = append(e.activeFlowNodes, &interp.ActiveNode{
				FlowName:            flowName,
				Node:                flow.StartNode,
				NextInstructionTime: now,
			})
			delete(e.startingFlows, flowName)
		}

		var nodesToStart, nodesToRestart map[interp.FlowNodeKey]struct{}
		e.activeFlowNodes, nodesToStart, nodesToRestart = interp.Step(
			e.activeFlowNodes, now, e.sampleRate, e.flowControls, e.nodeVolumes,
			e.liveSoundtrack, e.soundDelegate, e.queuedSounds,
		)
		e.startNodes(nodesToStart, now)
		e.restartNodes(nodesToRestart, now)

		for {
			qs, ok := e.queuedSounds.Peek()
			if !ok || qs.When > now {
				break
			}
			qs = e.queuedSounds.Pop()
			if reader, ok := adapter.Adaptify(e.soundman, qs.Sound, qs.FadeIn, qs.Length, qs.FadeOut, false, e.sampleRate, e.speakerLayout); ok {
				e.mixer.Play(reader, qs.Who)
			}
		}

		maxWait, hasWait := e.numSampleFramesUntilNextExec(now)
		bufLen := len(out)
		if hasWait {
			want := int(maxWait) * channels
			if want < bufLen {
				bufLen = want
			}
		}
		if bufLen > 0 {
			buf := out[:bufLen]
			for i := range buf {
				buf[i] = 0
			}
			if len(mixBuf) < len(buf) {
				mixBuf = make([]float32, len(buf))
			}
			e.mixer.Mix(buf, mixBuf[:len(buf)], &interp.VolumeGetWrapper{
				MixControls:    e.mixControls,
				FlowVolumes:    e.flowVolumes,
				NodeVolumes:    e.nodeVolumes,
				FlowsFadingOut: e.flowsFadingOut,
				StartingFlows:  e.startingFlows,
				SeenFlows:      seenFlows,
				SeenNodes:      seenNodes,
			})
			out = out[bufLen:]
		}
	}

	e.mixBuf = mixBuf
	if e.readoutNeedsUpdate {
		if e.flowControlReadoutMu.TryLock() {
			snapshot := make(map[string]son.SoN, len(e.flowControls))
			for k, v := range e.flowControls {
				snapshot[k] = v
			}
			e.flowControlReadout = snapshot
			e.readoutNeedsUpdate = false
			e.flowControlReadoutMu.Unlock()
		}
	}
	e.activeFlowNodes = interp.KillUnseen(e.flowVolumes, e.nodeVolumes, e.mixControls, e.flowsFadingOut, e.startingFlows, e.mixControlsFadingOut, e.flowLoads, e.activeFlowNodes, e.soundman, seenFlows, seenNodes)
}

// startNodes resolves a StartNode request against the live soundtrack,
// warning instead of starting if the node is already playing or
// doesn't exist. Grounded on engine.rs's turn_handle nodes_to_start
// handling.
func (e *Engine) startNodes(keys map[interp.FlowNodeKey]struct{}, now uint64) {
	for key := range keys {
		already := false
		for _, afn := range e.activeFlowNodes {
			if afn.FlowName == key.FlowName && afn.Node.Name == key.NodeName {
				already = true
				break
			}
		}
		if already {
			e.soundDelegate.Warning("attempt to start node " + key.NodeName + ", which was already playing")
			continue
		}
		flow, ok := e.liveSoundtrack.Flows[key.FlowName]
		if !ok {
			e.soundDelegate.Warning("missing flow " + key.FlowName + " for node " + key.NodeName)
			continue
		}
		node, ok := flow.Nodes[key.NodeName]
		if !ok {
			e.soundDelegate.Warning("can't start missing node: " + key.FlowName + "::" + key.NodeName)
			continue
		}
		e.activeFlowNodes = append(e.activeFlowNodes, &interp.ActiveNode{
			FlowName:            key.FlowName,
			Node:                node,
			NextInstructionTime: now,
		})
	}
}

// restartNodes resolves a RestartNode/RestartFlow request: restart an
// already-running node in place, or start it fresh if it isn't
// currently active. Grounded on engine.rs's turn_handle
// nodes_to_restart handling.
func (e *Engine) restartNodes(keys map[interp.FlowNodeKey]struct{}, now uint64) {
	for key := range keys {
		found := false
		for _, afn := range e.activeFlowNodes {
			if afn.FlowName == key.FlowName && afn.Node.Name == key.NodeName {
				afn.NextInstructionIndex = 0
				afn.NextInstructionTime = now
				found = true
				break
			}
		}
		if found {
			continue
		}
		flow, ok := e.liveSoundtrack.Flows[key.FlowName]
		if !ok {
			e.soundDelegate.Warning("can't restart missing flow: " + key.FlowName)
			continue
		}
		var node *soundtrack.Node
		if !key.HasNode {
			node = flow.StartNode
		} else {
			node, ok = flow.Nodes[key.NodeName]
			if !ok {
				e.soundDelegate.Warning("can't restart missing flow: " + key.FlowName + "::" + key.NodeName)
				continue
			}
		}
		e.activeFlowNodes = append(e.activeFlowNodes, &interp.ActiveNode{
			FlowName:            key.FlowName,
			Node:                node,
			NextInstructionTime: now,
		})
	}
}

// numSampleFramesUntilNextExec returns the number of sample frames
// until the next scheduled Node command or queued sound, or ok=false
// if nothing is scheduled. Grounded on engine.rs's
// get_num_sample_frames_until_next_exec.
func (e *Engine) numSampleFramesUntilNextExec(now uint64) (frames uint64, ok bool) {
	var earliest uint64
	found := false
	for _, an := range e.activeFlowNodes {
		if !found || an.NextInstructionTime < earliest {
			earliest = an.NextInstructionTime
			found = true
		}
	}
	if qs, qsOK := e.queuedSounds.Peek(); qsOK {
		if !found || qs.When < earliest {
			earliest = qs.When
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return earliest - now, true
}
