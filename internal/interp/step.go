package interp

import (
	"fmt"

	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/son"
	"github.com/cbegin/secondmusic-go/internal/sound"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
	"github.com/cbegin/secondmusic-go/internal/vm"
)

// Step advances every ActiveNode in nodes whose NextInstructionTime
// has arrived, running its Node's commands up to the next blocking
// point (Wait, PlaySoundAndWait, PlaySequenceAndWait) or Done.
// Grounded on engine.rs's turn_handle retain_mut loop over
// active_flow_nodes.
//
// Returns the surviving nodes (Done nodes removed; nodes is reused as
// the backing array) and the sets of flow/node keys that StartNode/
// RestartNode/RestartFlow commands asked to be started or restarted —
// the caller resolves those against the live soundtrack, since Step
// itself doesn't know how to start a node it isn't already running.
func Step(
	nodes []*ActiveNode,
	now uint64,
	sampleRate posfloat.PosFloat,
	flowControls map[string]son.SoN,
	nodeVolumes map[FlowNodeKey]fader.Fader,
	live *soundtrack.Soundtrack,
	delegate sound.SoundDelegate,
	queue *SoundQueue,
) (survivors []*ActiveNode, nodesToStart, nodesToRestart map[FlowNodeKey]struct{}) {
	nodesToStart = make(map[FlowNodeKey]struct{}, 16)
	nodesToRestart = make(map[FlowNodeKey]struct{}, 16)

	survivors = nodes[:0]
	for _, an := range nodes {
		if an.NextInstructionTime > now {
			survivors = append(survivors, an)
			continue
		}
		if stepNode(an, now, sampleRate, flowControls, nodeVolumes, live, delegate, queue, nodesToStart, nodesToRestart) {
			survivors = append(survivors, an)
			continue
		}
		// An autoloop flow's start node restarts itself on Done instead
		// of being dropped: only its instruction pointer resets, the
		// same reset nodesToRestart would apply to it, not a full
		// RestartFlow (flowControls are untouched). Grounded on
		// SPEC_FULL.md's Open Question 3 decision.
		if flow, ok := live.Flows[an.FlowName]; ok && flow.Autoloop && an.Node == flow.StartNode {
			an.NextInstructionIndex = 0
			an.NextInstructionTime = now
			survivors = append(survivors, an)
		}
	}
	return survivors, nodesToStart, nodesToRestart
}

// stepNode runs an's commands starting at its current instruction
// index, returning false once a Done is reached (an should be
// dropped) or true once it's blocked waiting for a future time.
func stepNode(
	an *ActiveNode,
	now uint64,
	sampleRate posfloat.PosFloat,
	flowControls map[string]son.SoN,
	nodeVolumes map[FlowNodeKey]fader.Fader,
	live *soundtrack.Soundtrack,
	delegate sound.SoundDelegate,
	queue *SoundQueue,
	nodesToStart, nodesToRestart map[FlowNodeKey]struct{},
) bool {
	cmds := an.Node.Commands
	n := an.NextInstructionIndex
	for n < len(cmds) {
		c := cmds[n]
		n++
		switch c.Kind {
		case soundtrack.Done:
			an.NextInstructionIndex = n
			return false

		case soundtrack.Wait:
			an.NextInstructionTime = now + c.Seconds.SecondsToFrames(sampleRate)
			an.NextInstructionIndex = n
			return true

		case soundtrack.PlaySound:
			executeSound(live, sampleRate, now, an.FlowName, an.Node.Name, c.Name, delegate, queue, DefaultChannel, posfloat.Zero, nil, posfloat.Zero)

		case soundtrack.PlaySoundAndWait:
			dur := executeSound(live, sampleRate, now, an.FlowName, an.Node.Name, c.Name, delegate, queue, DefaultChannel, posfloat.Zero, nil, posfloat.Zero)
			an.NextInstructionTime = now + dur
			an.NextInstructionIndex = n
			return true

		case soundtrack.PlaySequence:
			executeSequence(live, sampleRate, now, an.FlowName, an.Node.Name, c.Name, delegate, queue)

		case soundtrack.PlaySequenceAndWait:
			dur := executeSequence(live, sampleRate, now, an.FlowName, an.Node.Name, c.Name, delegate, queue)
			an.NextInstructionTime = now + dur
			an.NextInstructionIndex = n
			return true

		case soundtrack.StartNode:
			nodesToStart[Node(an.FlowName, c.Name)] = struct{}{}

		case soundtrack.RestartNode:
			nodesToRestart[Node(an.FlowName, c.Name)] = struct{}{}

		case soundtrack.RestartFlow:
			nodesToRestart[Flow(an.FlowName)] = struct{}{}

		case soundtrack.FadeNodeOut:
			key := Node(an.FlowName, c.Name)
			if f, ok := nodeVolumes[key]; ok {
				old := f.Evaluate()
				nodeVolumes[key] = fader.Start(fader.Linear, old, posfloat.Zero, c.Seconds.SecondsToFracFrames(sampleRate))
			} else {
				delegate.Warning(fmt.Sprintf("missing node: %q::%q", an.FlowName, c.Name))
			}

		case soundtrack.Set:
			flowControls[c.Name] = vm.Eval(c.Expr, vm.MapEnv(flowControls))

		case soundtrack.Goto:
			if vm.Eval(c.Expr, vm.MapEnv(flowControls)).IsTruthy() == c.ExpectedTruthiness {
				n = c.TargetIndex
			}

		case soundtrack.If, soundtrack.Placeholder:
			panic("interp: If/Placeholder command survived into a final command vector")
		}
	}
	an.NextInstructionIndex = n
	return n < len(cmds)
}

// executeSound queues a single Sound to start playing at when,
// returning the number of sample frames it will occupy. Grounded on
// engine.rs's Engine::execute_sound.
func executeSound(
	live *soundtrack.Soundtrack,
	sampleRate posfloat.PosFloat,
	when uint64,
	flowName, nodeName, soundName string,
	delegate sound.SoundDelegate,
	queue *SoundQueue,
	channel string,
	fadeIn posfloat.PosFloat,
	length *posfloat.PosFloat,
	fadeOut posfloat.PosFloat,
) uint64 {
	snd, ok := live.Sounds[soundName]
	if !ok {
		delegate.Warning(fmt.Sprintf("can't play missing sound: %q", soundName))
		return 0
	}

	var duration posfloat.PosFloat
	if length != nil {
		duration = *length
	} else if end, resolved := snd.End.Get(); resolved {
		duration = end.SaturatingSub(snd.Start)
	}

	queue.Push(&QueuedSound{
		When:    when,
		Who:     PlayingSoundID{FlowNodeKey: nodeKeyFor(flowName, nodeName), Channel: channel},
		Sound:   snd,
		FadeIn:  fadeIn,
		Length:  length,
		FadeOut: fadeOut,
	})
	return duration.SecondsToFrames(sampleRate)
}

// executeSequence starts every element of a Sequence playing relative
// to now, returning the sequence's total length in sample frames.
// Grounded on engine.rs's Engine::execute_sequence.
func executeSequence(
	live *soundtrack.Soundtrack,
	sampleRate posfloat.PosFloat,
	now uint64,
	flowName, nodeName, seqName string,
	delegate sound.SoundDelegate,
	queue *SoundQueue,
) uint64 {
	seq, ok := live.Sequences[seqName]
	if !ok {
		delegate.Warning(fmt.Sprintf("can't play missing sequence: %q", seqName))
		return 0
	}
	for _, te := range seq.Elements {
		when := now + te.StartTime.SecondsToFrames(sampleRate)
		el := te.Element
		if el.IsPlaySound {
			executeSound(live, sampleRate, when, flowName, nodeName, el.Sound, delegate, queue, el.Channel, el.FadeIn, el.Length, el.FadeOut)
		} else {
			executeSequence(live, sampleRate, when, flowName, nodeName, el.Sequence, delegate, queue)
		}
	}
	return seq.Length.SecondsToFrames(sampleRate)
}

// nodeKeyFor mirrors ActiveNode.nodeKey for a bare (flowName,
// nodeName) pair: nodeName == "" means the anonymous start node,
// which shares its node_volumes/PlayingSoundID key with the flow
// itself.
func nodeKeyFor(flowName, nodeName string) FlowNodeKey {
	if nodeName == "" {
		return Flow(flowName)
	}
	return Node(flowName, nodeName)
}
