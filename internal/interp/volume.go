package interp

import (
	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/mixer"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
)

var _ mixer.VolumeGetter[PlayingSoundID] = (*VolumeGetWrapper)(nil)

// VolumeGetWrapper answers the mixer's VolumeGetter[PlayingSoundID]
// questions by chaining a voice's flow fader, node fader, and mix
// channel fader. Grounded on engine.rs's
// impl VolumeGetter<PlayingSoundID> for VolumeGetWrapper.
//
// The map fields are owned by the root package's Engine; this struct
// just borrows them for the duration of one Mix/Bump call, the same
// way the original's VolumeGetWrapper borrows Engine's fields rather
// than owning copies.
type VolumeGetWrapper struct {
	MixControls    map[string]fader.Fader
	FlowVolumes    map[string]fader.Fader
	NodeVolumes    map[FlowNodeKey]fader.Fader
	FlowsFadingOut map[string]struct{}
	StartingFlows  map[string]struct{}
	// SeenFlows and SeenNodes are filled in as IsVarying visits voices;
	// the caller reads them back after Mix/Bump to find flows and
	// nodes to kill_the_unseen.
	SeenFlows map[string]struct{}
	SeenNodes map[FlowNodeKey]struct{}
}

// StepFadersBy advances every fader this wrapper can see by n sample
// frames, except flows that are still waiting to start (their fader
// still sits at its starting volume; stepping it early would let it
// "finish" before the flow is actually playing).
func (w *VolumeGetWrapper) StepFadersBy(n posfloat.PosFloat) {
	for flowName, f := range w.FlowVolumes {
		if _, starting := w.StartingFlows[flowName]; starting {
			continue
		}
		f.StepBy(n)
		w.FlowVolumes[flowName] = f
	}
	for k, f := range w.NodeVolumes {
		f.StepBy(n)
		w.NodeVolumes[k] = f
	}
	for k, f := range w.MixControls {
		f.StepBy(n)
		w.MixControls[k] = f
	}
}

// GetVolume multiplies the voice's flow, node, and mix-channel volume
// t sample frames into the future. ok is false once any layer reports
// the voice should stop: its flow or node no longer exists, its flow
// has faded to zero while fading out, or its node volume is zero.
func (w *VolumeGetWrapper) GetVolume(id PlayingSoundID, t posfloat.PosFloat) (posfloat.PosFloat, bool) {
	flowFader, ok := w.FlowVolumes[id.FlowName]
	if !ok {
		return posfloat.Zero, false
	}
	flowVolume := flowFader.EvaluateT(t)
	if _, fading := w.FlowsFadingOut[id.FlowName]; fading && flowVolume == posfloat.Zero {
		return posfloat.Zero, false
	}
	nodeFader, ok := w.NodeVolumes[id.FlowNodeKey]
	if !ok {
		return posfloat.Zero, false
	}
	nodeVolume := nodeFader.Evaluate()
	// Nodes cannot reach zero volume unless they're being faded out.
	if nodeVolume == posfloat.Zero {
		return posfloat.Zero, false
	}
	channelVolume := posfloat.Zero
	if channelFader, ok := w.MixControls[id.Channel]; ok {
		channelVolume = channelFader.Evaluate()
	}
	return flowVolume.Mul(nodeVolume).Mul(channelVolume), true
}

// IsVarying reports whether id's volume needs per-frame sampling this
// buffer, and records id's flow/node as seen. ok is false once the
// voice's flow or node no longer exists, or it's a fully-faded-in flow
// that's nonetheless fading out (a flow can sit at full volume for a
// moment between FadeFlowOut being issued and the fade actually
// starting to move, per the original's comment on this check).
func (w *VolumeGetWrapper) IsVarying(id PlayingSoundID) (varying bool, ok bool) {
	flowFader, ok := w.FlowVolumes[id.FlowName]
	if !ok {
		return false, false
	}
	nodeFader, ok := w.NodeVolumes[id.FlowNodeKey]
	if !ok {
		return false, false
	}
	if flowFader.Complete() && flowFader.Evaluate() == posfloat.One {
		if _, fading := w.FlowsFadingOut[id.FlowName]; fading {
			return false, false
		}
	}
	if _, seen := w.SeenFlows[id.FlowName]; !seen {
		w.SeenFlows[id.FlowName] = struct{}{}
	}
	if _, seen := w.SeenNodes[id.FlowNodeKey]; !seen {
		w.SeenNodes[id.FlowNodeKey] = struct{}{}
	}
	return !flowFader.Complete() || !nodeFader.Complete(), true
}
