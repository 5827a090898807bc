package interp

import "github.com/cbegin/secondmusic-go/internal/soundtrack"

// DefaultChannel is the mix control every Sound plays through unless
// a PlaySequence element names another. Grounded on engine.rs's
// DEFAULT_CHANNEL.
const DefaultChannel = "main"

// ActiveNode is a Node from a Flow that is currently executing.
// Grounded on engine.rs's ActiveNode.
type ActiveNode struct {
	// FlowName is the name of the flow this node belongs to.
	FlowName string
	// Node is the node itself.
	Node *soundtrack.Node
	// NextInstructionTime is the sample frame number at which
	// execution resumes.
	NextInstructionTime uint64
	// NextInstructionIndex is the index of the next instruction to run
	// in Node.Commands.
	NextInstructionIndex int
}

// nodeKey returns the FlowNodeKey for an ActiveNode's own node: the
// anonymous start node (Node.Name == "") keys the same way a flow's
// own entry does (HasNode false), since node_volumes stores the start
// node's fader under the flow's own (flow, no node) key — matching
// the original's Option<String> being None for both cases.
func (a *ActiveNode) nodeKey() FlowNodeKey {
	if a.Node.Name == "" {
		return Flow(a.FlowName)
	}
	return Node(a.FlowName, a.Node.Name)
}
