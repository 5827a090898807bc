package interp

import (
	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
)

// KillUnseen drops state that is no longer audible: a fading-out,
// non-starting flow that the last Mix/Bump call didn't touch (with its
// node volumes and active nodes); a node volume of a non-starting flow
// that the call didn't touch and that has no active node; and a
// fading-out mix control whose volume has reached zero. Grounded on
// engine.rs's kill_the_unseen;
// seenFlows/seenNodes are the sets VolumeGetWrapper filled in during
// that call. Returns the filtered active-node slice (reusing
// activeFlowNodes's backing array); every map argument is mutated in
// place.
func KillUnseen(
	flowVolumes map[string]fader.Fader,
	nodeVolumes map[FlowNodeKey]fader.Fader,
	mixControls map[string]fader.Fader,
	flowsFadingOut map[string]struct{},
	startingFlows map[string]struct{},
	mixControlsFadingOut map[string]struct{},
	flowLoads map[string]*FlowLoadStatus,
	activeFlowNodes []*ActiveNode,
	soundman soundLoader,
	seenFlows map[string]struct{},
	seenNodes map[FlowNodeKey]struct{},
) []*ActiveNode {
	for flowName := range flowVolumes {
		if _, seen := seenFlows[flowName]; seen {
			continue
		}
		if _, fading := flowsFadingOut[flowName]; !fading {
			continue
		}
		if _, starting := startingFlows[flowName]; starting {
			continue
		}
		delete(flowVolumes, flowName)
		if ls, ok := flowLoads[flowName]; ok {
			ls.ActiveLoading = false
			ls.MaybeUnload(soundman)
		}
		for k := range nodeVolumes {
			if k.FlowName == flowName {
				delete(nodeVolumes, k)
			}
		}
		filtered := activeFlowNodes[:0]
		for _, afn := range activeFlowNodes {
			if afn.FlowName != flowName {
				filtered = append(filtered, afn)
			}
		}
		activeFlowNodes = filtered
	}

	for k := range nodeVolumes {
		if _, seen := seenNodes[k]; seen {
			continue
		}
		if _, starting := startingFlows[k.FlowName]; starting {
			continue
		}
		stillActive := false
		for _, afn := range activeFlowNodes {
			if afn.nodeKey() == k {
				stillActive = true
				break
			}
		}
		if !stillActive {
			delete(nodeVolumes, k)
		}
	}

	for controlName, f := range mixControls {
		if _, fading := mixControlsFadingOut[controlName]; !fading {
			continue
		}
		// A control fading out is dropped once its fader reaches zero.
		if f.Evaluate() == posfloat.Zero {
			delete(mixControls, controlName)
		}
	}

	return activeFlowNodes
}
