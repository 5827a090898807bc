// Package interp is the flow interpreter and voice scheduler: it
// advances each active Node's command list, turns PlaySound/
// PlaySequence into scheduled playback, and answers the mixer's
// questions about how loud each voice should be right now. Grounded
// on engine.rs's turn_handle loop and its ActiveNode/QueuedSound/
// VolumeGetWrapper supporting types — the parts of Engine that are
// pure scheduling logic, as opposed to the command-surface bookkeeping
// that lives in the root package's Engine.
package interp

// FlowNodeKey identifies a flow, or a specific node within a flow.
// HasNode false means "the flow itself" (what the original spells
// StringAndAHalf(flow_name, None)); HasNode true with NodeName set
// names one node. Comparable, so it's usable directly as a map key.
type FlowNodeKey struct {
	FlowName string
	NodeName string
	HasNode  bool
}

// Node returns a key naming one node within flowName.
func Node(flowName, nodeName string) FlowNodeKey {
	return FlowNodeKey{FlowName: flowName, NodeName: nodeName, HasNode: true}
}

// Flow returns a key naming a flow as a whole (no specific node).
func Flow(flowName string) FlowNodeKey {
	return FlowNodeKey{FlowName: flowName}
}

// PlayingSoundID identifies one playing voice in the mixer: which
// flow/node queued it, and which mix channel it plays through.
// Grounded on engine.rs's PlayingSoundID; TODO there about interning
// strings applies equally here, not attempted since this port has no
// evidence the allocation actually matters at the scale spec.md
// targets.
type PlayingSoundID struct {
	FlowNodeKey
	Channel string
}
