// Package source turns soundtrack source text into a *soundtrack.Soundtrack:
// top-level timebase/sound/sequence/flow elements, inline play
// metadata and anonymous sub-definitions, if/elseif/else folding into
// flattened Goto vectors. Grounded on
// original_source/second-music-system/src/data/parse.rs, restructured
// around the internal/parse/din tree instead of Rust's DinNode (same
// shape, Go idiom) and internal/parse/expr instead of the inline
// expression.rs tokenizer (already ported as its own package, see
// DESIGN.md).
package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cbegin/secondmusic-go/internal/parse/din"
	"github.com/cbegin/secondmusic-go/internal/parse/expr"
	"github.com/cbegin/secondmusic-go/internal/parse/timebase"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
	"github.com/cbegin/secondmusic-go/internal/vm"
)

// Parse builds a Soundtrack from source text. No partial soundtrack is
// ever returned alongside an error.
func Parse(src string) (*soundtrack.Soundtrack, error) {
	nodes, err := din.Parse(src)
	if err != nil {
		return nil, err
	}
	p := &parser{st: soundtrack.New()}
	tbs := newTimebaseScope()
	for _, node := range nodes {
		switch node.Items[0] {
		case "timebase":
			if err := tbs.parseTimebaseNode(node); err != nil {
				return nil, err
			}
		case "sound":
			s, err := p.parseSound(node, tbs)
			if err != nil {
				return nil, err
			}
			p.st.Sounds[s.Name] = s
		case "sequence":
			s, err := p.parseSequence(node, tbs)
			if err != nil {
				return nil, err
			}
			p.st.Sequences[s.Name] = s
		case "flow":
			f, err := p.parseFlow(node, tbs)
			if err != nil {
				return nil, err
			}
			p.st.Flows[f.Name] = f
		case "region":
			return nil, fmt.Errorf("line %d: regions may only exist inside sequences (check indentation)", node.Lineno)
		case "node":
			return nil, fmt.Errorf("line %d: nodes may only exist inside flows (check indentation)", node.Lineno)
		default:
			return nil, fmt.Errorf("line %d: unknown top-level element %q", node.Lineno, node.Items[0])
		}
	}
	return p.st, nil
}

type parser struct {
	st *soundtrack.Soundtrack
}

func dupErr(node *din.Node, name string) error {
	return fmt.Errorf("line %d: only one %q element allowed", node.Lineno, name)
}

func containsStr(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// --- timebase scope ---------------------------------------------------

type timebaseScope struct {
	parent    *timebaseScope
	timebases map[string]timebase.Timebase
	active    string
	hasActive bool
}

func newTimebaseScope() *timebaseScope {
	return &timebaseScope{timebases: map[string]timebase.Timebase{}}
}

func (s *timebaseScope) child() *timebaseScope {
	return &timebaseScope{
		parent:    s,
		timebases: map[string]timebase.Timebase{},
		active:    s.active,
		hasActive: s.hasActive,
	}
}

func (s *timebaseScope) get(name string) (timebase.Timebase, bool) {
	if tb, ok := s.timebases[name]; ok {
		return tb, true
	}
	if s.parent != nil {
		return s.parent.get(name)
	}
	return timebase.Timebase{}, false
}

func (s *timebaseScope) getActive() (timebase.Timebase, bool) {
	if !s.hasActive {
		return timebase.Timebase{}, false
	}
	return s.get(s.active)
}

func (s *timebaseScope) parseTimebaseNode(node *din.Node) error {
	err := func() error {
		if len(node.Children) != 0 {
			return fmt.Errorf("timebase elements must have no children (check indentation)")
		}
		if len(node.Items) < 2 {
			return fmt.Errorf("not enough items in timebase spec")
		}
		var name string
		var stages []string
		first := node.Items[1]
		if len(first) > 0 && (first[0] == '.' || first[0] == '@' || (first[0] >= '0' && first[0] <= '9')) {
			name = "default"
			stages = node.Items[1:]
		} else {
			name = first
			stages = node.Items[2:]
		}
		if len(stages) == 0 {
			if _, ok := s.get(name); !ok {
				return fmt.Errorf("can't set timebase %q as active because it doesn't exist", name)
			}
			s.active, s.hasActive = name, true
			return nil
		}
		tb, err := timebase.Parse(stages)
		if err != nil {
			return err
		}
		s.timebases[name] = tb
		if !s.hasActive {
			s.active, s.hasActive = name, true
		}
		return nil
	}()
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Lineno, err)
	}
	return nil
}

func (s *timebaseScope) parseTime(items []string) (posfloat.PosFloat, error) {
	var tb timebase.Timebase
	var timeStr string
	switch len(items) {
	case 2:
		if active, ok := s.getActive(); ok {
			tb = active
		} else {
			tb = timebase.Default
		}
		timeStr = items[1]
	case 3:
		found, ok := s.get(items[1])
		if !ok {
			return posfloat.Zero, fmt.Errorf("no known timebase named %q", items[1])
		}
		tb = found
		timeStr = items[2]
	default:
		return posfloat.Zero, fmt.Errorf("either specify a time in the default timebase, or the name of a timebase followed by a time in that timebase")
	}
	oneBased := !(strings.HasSuffix(items[0], "length") || strings.HasPrefix(items[0], "fade") || strings.HasPrefix(items[0], "over"))
	return tb.Eval(timeStr, oneBased)
}

func (s *timebaseScope) parseTimeNode(node *din.Node) (posfloat.PosFloat, error) {
	if len(node.Children) != 0 {
		return posfloat.Zero, fmt.Errorf("line %d: %s elements must have no children (check indentation)", node.Lineno, node.Items[0])
	}
	v, err := s.parseTime(node.Items)
	if err != nil {
		return posfloat.Zero, fmt.Errorf("line %d: %w", node.Lineno, err)
	}
	return v, nil
}

// --- sound --------------------------------------------------------

var soundTimeKeywords = []string{"start", "end", "length"}

func (p *parser) parseSound(node *din.Node, tbs *timebaseScope) (*soundtrack.Sound, error) {
	if len(node.Items) != 2 {
		return nil, fmt.Errorf("line %d: sound element must have a name", node.Lineno)
	}
	childTbs := tbs.child()
	name := node.Items[1]
	var path *string
	var stream, loop *bool
	data := map[string]posfloat.PosFloat{}
	var offset *posfloat.PosFloat
	for _, child := range node.Children {
		if len(child.Children) != 0 {
			return nil, fmt.Errorf("line %d: this element must have no children", child.Lineno)
		}
		switch child.Items[0] {
		case "stream":
			if stream != nil {
				return nil, dupErr(child, "stream")
			}
			if len(child.Items) > 1 {
				return nil, fmt.Errorf("line %d: \"stream\" must not have any items", child.Lineno)
			}
			t := true
			stream = &t
		case "loop":
			if loop != nil {
				return nil, dupErr(child, "loop")
			}
			if len(child.Items) > 1 {
				return nil, fmt.Errorf("line %d: \"loop\" must not have any items", child.Lineno)
			}
			t := true
			loop = &t
		case "file":
			if path != nil {
				return nil, dupErr(child, "file")
			}
			if len(child.Items) != 2 {
				return nil, fmt.Errorf("line %d: this element should have a single item (try adding quotes)", child.Lineno)
			}
			if strings.ContainsRune(child.Items[1], 0) {
				return nil, fmt.Errorf("line %d: this element's path contains a null character", child.Lineno)
			}
			v := child.Items[1]
			path = &v
		case "timebase":
			if err := childTbs.parseTimebaseNode(child); err != nil {
				return nil, err
			}
		case "offset":
			if offset != nil {
				return nil, dupErr(child, "offset")
			}
			if len(child.Items) != 2 {
				return nil, fmt.Errorf("line %d: this element should have a single item", child.Lineno)
			}
			n, err := strconv.ParseFloat(child.Items[1], 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: that doesn't appear to be a valid number", child.Lineno)
			}
			pf, err := posfloat.New(float32(n))
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", child.Lineno, err)
			}
			offset = &pf
		default:
			if !containsStr(soundTimeKeywords, child.Items[0]) {
				return nil, fmt.Errorf("line %d: unknown sound element %q", child.Lineno, child.Items[0])
			}
			if _, ok := data[child.Items[0]]; ok {
				return nil, dupErr(child, child.Items[0])
			}
			t, err := childTbs.parseTimeNode(child)
			if err != nil {
				return nil, err
			}
			data[child.Items[0]] = t
		}
	}
	off := posfloat.Zero
	if offset != nil {
		off = *offset
	}
	start := posfloat.Zero
	if s, ok := data["start"]; ok {
		start = s.Add(off)
	}
	e, eok := data["end"]
	l, lok := data["length"]
	var end soundtrack.DeferredEnd
	switch {
	case eok && lok:
		return nil, fmt.Errorf("line %d: only one of \"end\" and \"length\" may be specified, not both", node.Lineno)
	case eok:
		end = soundtrack.Resolved(e.Add(off))
	case lok:
		end = soundtrack.Resolved(start.Add(l))
	default:
		// No end/length given: deferred, resolved later from decoder
		// length (spec.md §3.2/§9; the original Rust source requires
		// one of them, see DESIGN.md).
		end = soundtrack.Unresolved()
	}
	finalPath := name
	if path != nil {
		finalPath = *path
	} else if strings.ContainsRune(name, 0) {
		return nil, fmt.Errorf("sound %q has a null character in its name and no explicit path", name)
	}
	return &soundtrack.Sound{
		Name:   name,
		Path:   finalPath,
		Start:  start,
		End:    end,
		Stream: stream != nil && *stream,
		Loop:   loop != nil && *loop,
	}, nil
}

// --- sequence -------------------------------------------------------

func (p *parser) parseSequence(node *din.Node, tbs *timebaseScope) (*soundtrack.Sequence, error) {
	if len(node.Items) != 2 {
		return nil, fmt.Errorf("line %d: sequence element must have a name", node.Lineno)
	}
	childTbs := tbs.child()
	name := node.Items[1]
	var length *posfloat.PosFloat
	var elements []soundtrack.TimedElement
	for _, child := range node.Children {
		switch child.Items[0] {
		case "length":
			if len(child.Children) != 0 {
				return nil, fmt.Errorf("line %d: this element must have no children", child.Lineno)
			}
			if length != nil {
				return nil, dupErr(child, "length")
			}
			v, err := childTbs.parseTimeNode(child)
			if err != nil {
				return nil, err
			}
			length = &v
		case "play":
			te, err := p.parsePlay(child, childTbs, name)
			if err != nil {
				return nil, err
			}
			elements = append(elements, te)
		case "timebase":
			if err := childTbs.parseTimebaseNode(child); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("line %d: unknown sequence element %q", child.Lineno, child.Items[0])
		}
	}
	if length == nil {
		return nil, fmt.Errorf("line %d: \"length\" must be specified", node.Lineno)
	}
	for i := 1; i < len(elements); i++ {
		for j := i; j > 0 && elements[j-1].StartTime.Compare(elements[j].StartTime) > 0; j-- {
			elements[j-1], elements[j] = elements[j], elements[j-1]
		}
	}
	return &soundtrack.Sequence{Name: name, Length: *length, Elements: elements}, nil
}

var soundElementTimeKeywords = []string{"at", "for", "until", "fade_in", "fade_out"}
var sequenceElementTimeKeywords = []string{"at"}

func (p *parser) parsePlay(node *din.Node, tbs *timebaseScope, seqName string) (soundtrack.TimedElement, error) {
	if len(node.Items) == 1 {
		return soundtrack.TimedElement{}, fmt.Errorf("line %d: \"play\" must specify an element type of either \"sound\" or \"sequence\" and the name of an element of the specified type.", node.Lineno)
	}
	elementType := node.Items[1]
	if elementType != "sound" && elementType != "sequence" {
		return soundtrack.TimedElement{}, fmt.Errorf("line %d: invalid element type %q. Element type must be either \"sound\" or \"sequence\".", node.Lineno, elementType)
	}
	if len(node.Items) > 3 {
		return soundtrack.TimedElement{}, fmt.Errorf("line %d: \"play\" must only include the element type and the name of the element on its own line.", node.Lineno)
	}
	if len(node.Items) == 2 {
		return p.parseAnonymousPlay(node, tbs, elementType, seqName)
	}
	name := node.Items[2]
	childTbs := tbs.child()
	data := map[string]posfloat.PosFloat{}
	var channel *string
	for _, child := range node.Children {
		if len(child.Children) != 0 {
			return soundtrack.TimedElement{}, fmt.Errorf("line %d: this element must have no children", child.Lineno)
		}
		switch child.Items[0] {
		case "channel":
			if elementType == "sequence" {
				return soundtrack.TimedElement{}, fmt.Errorf("line %d: \"channel\" is not allowed in a sequence element", child.Lineno)
			}
			if channel != nil {
				return soundtrack.TimedElement{}, dupErr(child, "channel")
			}
			if len(child.Items) != 2 {
				return soundtrack.TimedElement{}, fmt.Errorf("line %d: \"channel\" must have exactly one item (do you need quotes?)", child.Lineno)
			}
			v := child.Items[1]
			channel = &v
		case "timebase":
			if err := childTbs.parseTimebaseNode(child); err != nil {
				return soundtrack.TimedElement{}, err
			}
		default:
			allowed := soundElementTimeKeywords
			if elementType == "sequence" {
				allowed = sequenceElementTimeKeywords
			}
			if !containsStr(allowed, child.Items[0]) {
				return soundtrack.TimedElement{}, fmt.Errorf("line %d: unknown element parameter %q", child.Lineno, child.Items[0])
			}
			if _, ok := data[child.Items[0]]; ok {
				return soundtrack.TimedElement{}, dupErr(child, child.Items[0])
			}
			t, err := childTbs.parseTimeNode(child)
			if err != nil {
				return soundtrack.TimedElement{}, err
			}
			data[child.Items[0]] = t
		}
	}
	ch := "main"
	if channel != nil {
		ch = *channel
	}
	start := posfloat.Zero
	if v, ok := data["at"]; ok {
		start = v
	}
	fadeIn := posfloat.Zero
	if v, ok := data["fade_in"]; ok {
		fadeIn = v
	}
	forV, forOk := data["for"]
	untilV, untilOk := data["until"]
	var length *posfloat.PosFloat
	switch {
	case forOk && untilOk:
		return soundtrack.TimedElement{}, fmt.Errorf("line %d: only one of \"for\" and \"until\" may be specified, not both", node.Lineno)
	case forOk:
		v := forV
		length = &v
	case untilOk:
		v := untilV.SaturatingSub(start)
		length = &v
	}
	fadeOut := posfloat.Zero
	if v, ok := data["fade_out"]; ok {
		fadeOut = v
		if length != nil {
			v := length.SaturatingSub(fadeOut)
			length = &v
		}
	}
	elem := soundtrack.SequenceElement{}
	if elementType == "sound" {
		elem = soundtrack.SequenceElement{IsPlaySound: true, Sound: name, Channel: ch, FadeIn: fadeIn, Length: length, FadeOut: fadeOut}
	} else {
		if name == seqName {
			return soundtrack.TimedElement{}, fmt.Errorf("line %d: sequence %q cannot play itself", node.Lineno, name)
		}
		elem = soundtrack.SequenceElement{Sequence: name}
	}
	return soundtrack.TimedElement{StartTime: start, Element: elem}, nil
}

// parseAnonymousPlay handles `play sound`/`play sequence` with no
// name: the play node's children are the definition of a new,
// synthesized-name sound/sequence, inserted into the soundtrack. This
// is additive to original_source's grammar (which required a name);
// see DESIGN.md for the resolution of spec.md's "inline plays without
// a name synthesize {seq}[{lineno}]" sentence.
func (p *parser) parseAnonymousPlay(node *din.Node, tbs *timebaseScope, elementType, seqName string) (soundtrack.TimedElement, error) {
	name := fmt.Sprintf("%s[%d]", seqName, node.Lineno)
	if len(node.Children) == 0 {
		return soundtrack.TimedElement{}, fmt.Errorf("line %d: an unnamed \"play %s\" must define the %s inline (add children, or give it a name)", node.Lineno, elementType, elementType)
	}
	definition := &din.Node{Items: []string{elementType, name}, Children: node.Children, Lineno: node.Lineno}
	switch elementType {
	case "sound":
		sound, err := p.parseSound(definition, tbs)
		if err != nil {
			return soundtrack.TimedElement{}, err
		}
		p.st.Sounds[sound.Name] = sound
		return soundtrack.TimedElement{Element: soundtrack.SequenceElement{IsPlaySound: true, Sound: sound.Name, Channel: "main"}}, nil
	default:
		seq, err := p.parseSequence(definition, tbs)
		if err != nil {
			return soundtrack.TimedElement{}, err
		}
		p.st.Sequences[seq.Name] = seq
		return soundtrack.TimedElement{Element: soundtrack.SequenceElement{Sequence: seq.Name}}, nil
	}
}

// --- flow / node / commands -----------------------------------------

func (p *parser) parseFlow(node *din.Node, tbs *timebaseScope) (*soundtrack.Flow, error) {
	var autoloop bool
	switch len(node.Items) {
	case 2:
	case 4:
		if node.Items[2] != "with" || node.Items[3] != "loop" {
			return nil, fmt.Errorf("line %d: unknown flow modifier (expected \"with loop\")", node.Lineno)
		}
		autoloop = true
	default:
		return nil, fmt.Errorf("line %d: flow element must have a name", node.Lineno)
	}
	childTbs := tbs.child()
	name := node.Items[1]
	nodes := map[string]*soundtrack.Node{}
	if existing, ok := p.st.Flows[name]; ok {
		for k, v := range existing.Nodes {
			nodes[k] = v
		}
	}
	startNode := &soundtrack.Node{}
	for _, child := range node.Children {
		switch child.Items[0] {
		case "timebase":
			if err := childTbs.parseTimebaseNode(child); err != nil {
				return nil, err
			}
		case "node":
			n, err := parseNode(child, childTbs)
			if err != nil {
				return nil, err
			}
			flattenCommands(&n.Commands)
			n.Commands = ensureTerminated(n.Commands)
			nodes[n.Name] = n
		default:
			cmd, recognized, err := parseFlowCommandNode(child, childTbs, lastCommand(startNode.Commands))
			if err != nil {
				return nil, err
			}
			if !recognized {
				return nil, fmt.Errorf("line %d: unknown flow element %q", child.Lineno, child.Items[0])
			}
			if cmd != nil {
				startNode.Commands = append(startNode.Commands, *cmd)
			}
		}
	}
	flattenCommands(&startNode.Commands)
	startNode.Commands = ensureTerminated(startNode.Commands)
	return &soundtrack.Flow{Name: name, StartNode: startNode, Nodes: nodes, Autoloop: autoloop}, nil
}

func parseNode(node *din.Node, tbs *timebaseScope) (*soundtrack.Node, error) {
	if len(node.Items) != 2 {
		return nil, fmt.Errorf("line %d: node element must have a name", node.Lineno)
	}
	commands, err := parseNodeChildCode(node, tbs)
	if err != nil {
		return nil, err
	}
	return &soundtrack.Node{Name: node.Items[1], Commands: commands}, nil
}

// ensureTerminated guarantees a command vector ends in Done, the
// invariant soundtrack.Validate checks: a flow/node body that falls
// off the end without an explicit "done" implicitly stops there.
func ensureTerminated(commands []soundtrack.Command) []soundtrack.Command {
	if len(commands) > 0 && commands[len(commands)-1].Kind == soundtrack.Done {
		return commands
	}
	return append(commands, soundtrack.Command{Kind: soundtrack.Done})
}

func parseNodeChildCode(node *din.Node, tbs *timebaseScope) ([]soundtrack.Command, error) {
	childTbs := tbs.child()
	var commands []soundtrack.Command
	for _, child := range node.Children {
		switch child.Items[0] {
		case "timebase":
			if err := childTbs.parseTimebaseNode(child); err != nil {
				return nil, err
			}
		case "node":
			return nil, fmt.Errorf("line %d: nodes cannot be nested", child.Lineno)
		default:
			cmd, recognized, err := parseFlowCommandNode(child, childTbs, lastCommand(commands))
			if err != nil {
				return nil, err
			}
			if !recognized {
				return nil, fmt.Errorf("line %d: unknown node element %q", child.Lineno, child.Items[0])
			}
			if cmd != nil {
				commands = append(commands, *cmd)
			}
		}
	}
	return commands, nil
}

func lastCommand(commands []soundtrack.Command) *soundtrack.Command {
	if len(commands) == 0 {
		return nil
	}
	return &commands[len(commands)-1]
}

func parseCondition(tokens []string) ([]vm.Instruction, []string, error) {
	thenPos := -1
	for i, t := range tokens {
		if t == "then" {
			thenPos = i
			break
		}
	}
	if thenPos < 0 {
		for _, t := range tokens {
			if strings.HasSuffix(t, "then") {
				return nil, nil, fmt.Errorf("\"then\" must be cleanly separated from the condition (try adding a space)")
			}
		}
		return nil, nil, fmt.Errorf("condition must end in a \"then\"")
	}
	if thenPos == 0 {
		return nil, nil, fmt.Errorf("condition cannot be empty")
	}
	cond, err := expr.Parse(strings.Join(tokens[:thenPos], " "))
	if err != nil {
		return nil, nil, err
	}
	return cond, tokens[thenPos+1:], nil
}

// parseFlowCommandTokens tentatively parses a flat token list as a
// command. recognized is false when tokens[0] isn't any known
// command keyword (the caller then reports "unknown element").
func parseFlowCommandTokens(tokens []string, tbs *timebaseScope) (cmd *soundtrack.Command, recognized bool, err error) {
	if len(tokens) == 0 {
		return nil, false, nil
	}
	switch tokens[0] {
	case "done":
		if len(tokens) != 1 {
			return nil, true, fmt.Errorf("nothing is allowed after \"done\"")
		}
		return &soundtrack.Command{Kind: soundtrack.Done}, true, nil
	case "wait":
		d, err := tbs.parseTime(tokens)
		if err != nil {
			return nil, true, err
		}
		return &soundtrack.Command{Kind: soundtrack.Wait, Seconds: d}, true, nil
	case "play":
		var tok string
		if len(tokens) > 1 {
			tok = tokens[1]
		}
		if tok != "sequence" && tok != "sound" {
			return nil, true, fmt.Errorf("next element after \"play\" must be \"sequence\" or \"sound\"")
		}
		if len(tokens) < 3 {
			return nil, true, fmt.Errorf("next element after %q must be the name of the %s to play", tok, tok)
		}
		target := tokens[2]
		var andWait bool
		switch {
		case len(tokens) == 3:
		case len(tokens) == 5 && tokens[3] == "and" && tokens[4] == "wait":
			andWait = true
		default:
			return nil, true, fmt.Errorf("the only thing allowed after the name of the sequence or sound to play is the elements \"and wait\" (do you need quotation marks?)")
		}
		var kind soundtrack.CommandKind
		switch {
		case tok == "sequence" && !andWait:
			kind = soundtrack.PlaySequence
		case tok == "sequence" && andWait:
			kind = soundtrack.PlaySequenceAndWait
		case tok == "sound" && !andWait:
			kind = soundtrack.PlaySound
		default:
			kind = soundtrack.PlaySoundAndWait
		}
		return &soundtrack.Command{Kind: kind, Name: target}, true, nil
	case "start", "restart", "stop":
		var second string
		if len(tokens) > 1 {
			second = tokens[1]
		}
		switch second {
		case "node":
			if len(tokens) < 3 {
				return nil, true, fmt.Errorf("next element after \"node\" must be the name of the node to %s", tokens[0])
			}
			target := tokens[2]
			if len(tokens) != 3 {
				return nil, true, fmt.Errorf("nothing is allowed after the node name (do you need quotation marks?)")
			}
			switch tokens[0] {
			case "start":
				return &soundtrack.Command{Kind: soundtrack.StartNode, Name: target}, true, nil
			case "restart":
				return &soundtrack.Command{Kind: soundtrack.RestartNode, Name: target}, true, nil
			default:
				return nil, true, fmt.Errorf("stop is not allowed because it will sound bad (if you really want an abrupt cutoff, try `fade NodeName over 0`)")
			}
		case "starting":
			if tokens[0] != "restart" {
				return nil, true, fmt.Errorf("next element after %q must be \"node\" or \"starting\"", tokens[0])
			}
			if len(tokens) < 3 || tokens[2] != "node" {
				return nil, true, fmt.Errorf("next element after \"starting\" must be \"node\"")
			}
			if len(tokens) != 3 {
				return nil, true, fmt.Errorf("nothing is allowed after \"restart starting node\"")
			}
			return &soundtrack.Command{Kind: soundtrack.RestartFlow}, true, nil
		case "":
			return nil, true, fmt.Errorf("%q must be followed by \"node\" or \"starting\"", tokens[0])
		default:
			return nil, true, fmt.Errorf("invalid element %q; next element after %q must be \"node\" or \"starting\"", second, tokens[0])
		}
	case "fade":
		if len(tokens) < 2 || tokens[1] != "node" {
			return nil, true, fmt.Errorf("next element after \"fade\" must be \"node\"")
		}
		if len(tokens) < 3 {
			return nil, true, fmt.Errorf("next element after \"node\" must be the name of the node to fade")
		}
		target := tokens[2]
		if len(tokens) < 4 || tokens[3] != "over" {
			return nil, true, fmt.Errorf("next element after node name must be \"over\"")
		}
		length, err := tbs.parseTime(tokens[3:])
		if err != nil {
			return nil, true, err
		}
		return &soundtrack.Command{Kind: soundtrack.FadeNodeOut, Name: target, Seconds: length}, true, nil
	case "set":
		if len(tokens) < 2 {
			return nil, true, fmt.Errorf("next element after \"set\" must be the name of the flow control to set")
		}
		target := tokens[1]
		if len(tokens) < 3 || tokens[2] != "to" {
			return nil, true, fmt.Errorf("next element after node name must be \"to\"")
		}
		program, err := expr.Parse(strings.Join(tokens[3:], " "))
		if err != nil {
			return nil, true, err
		}
		return &soundtrack.Command{Kind: soundtrack.Set, Name: target, Expr: program}, true, nil
	case "if":
		condition, rest, err := parseCondition(tokens[1:])
		if err != nil {
			return nil, true, err
		}
		inner, recognized, err := parseFlowCommandTokens(rest, tbs)
		if err != nil {
			return nil, true, err
		}
		if !recognized || inner == nil {
			return nil, true, fmt.Errorf("there needs to be a command after the \"then\"")
		}
		return &soundtrack.Command{Kind: soundtrack.If, Branches: []soundtrack.Branch{{Condition: condition, Commands: []soundtrack.Command{*inner}}}}, true, nil
	case "else":
		return nil, true, fmt.Errorf("else is not allowed here (try breaking it onto its own line)")
	case "elseif":
		return nil, true, fmt.Errorf("elseif is not allowed here (try breaking it onto its own line)")
	default:
		return nil, false, nil
	}
}

func parseIfBody(node *din.Node, rest []string, tbs *timebaseScope) ([]soundtrack.Command, error) {
	if len(rest) > 0 {
		if len(node.Children) != 0 {
			return nil, fmt.Errorf("line %d: %s can have an inline body (right after the \"then\") or children (indented lines afterward) but not both", node.Lineno, node.Items[0])
		}
		cmd, recognized, err := parseFlowCommandTokens(rest, tbs)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Lineno, err)
		}
		if !recognized || cmd == nil {
			return nil, fmt.Errorf("line %d: unknown command after \"then\"", node.Lineno)
		}
		return []soundtrack.Command{*cmd}, nil
	}
	return parseNodeChildCode(node, tbs)
}

// parseFlowCommandNode parses one DinNode as a command within a
// node/flow body. recognized is false only when the node's head token
// isn't a known command keyword and isn't if/else/elseif.
func parseFlowCommandNode(node *din.Node, tbs *timebaseScope, lastCmd *soundtrack.Command) (cmd *soundtrack.Command, recognized bool, err error) {
	switch node.Items[0] {
	case "if":
		condition, rest, err := parseCondition(node.Items[1:])
		if err != nil {
			return nil, true, fmt.Errorf("line %d: %w", node.Lineno, err)
		}
		commands, err := parseIfBody(node, rest, tbs)
		if err != nil {
			return nil, true, err
		}
		return &soundtrack.Command{Kind: soundtrack.If, Branches: []soundtrack.Branch{{Condition: condition, Commands: commands}}}, true, nil
	case "else":
		if lastCmd == nil || lastCmd.Kind != soundtrack.If {
			return nil, true, fmt.Errorf("line %d: \"else\" without matching \"if\" (check indentation)", node.Lineno)
		}
		if len(node.Items) > 1 && node.Items[1] == "if" {
			condition, rest, err := parseCondition(node.Items[2:])
			if err != nil {
				return nil, true, fmt.Errorf("line %d: %w", node.Lineno, err)
			}
			commands, err := parseIfBody(node, rest, tbs)
			if err != nil {
				return nil, true, err
			}
			lastCmd.Branches = append(lastCmd.Branches, soundtrack.Branch{Condition: condition, Commands: commands})
			return nil, true, nil
		}
		commands, err := parseIfBody(node, nil, tbs)
		if err != nil {
			return nil, true, err
		}
		if len(lastCmd.Fallback) != 0 {
			return nil, true, fmt.Errorf("line %d: only one \"else\" is allowed for a given \"if\" chain (check indentation)", node.Lineno)
		}
		if len(commands) == 0 {
			return nil, true, fmt.Errorf("line %d: \"else\" must contain at least one command (check indentation or delete this line)", node.Lineno)
		}
		lastCmd.Fallback = commands
		return nil, true, nil
	case "elseif":
		if lastCmd == nil || lastCmd.Kind != soundtrack.If {
			return nil, true, fmt.Errorf("line %d: \"elseif\" without matching \"if\" (check indentation)", node.Lineno)
		}
		condition, rest, err := parseCondition(node.Items[1:])
		if err != nil {
			return nil, true, fmt.Errorf("line %d: %w", node.Lineno, err)
		}
		commands, err := parseIfBody(node, rest, tbs)
		if err != nil {
			return nil, true, err
		}
		lastCmd.Branches = append(lastCmd.Branches, soundtrack.Branch{Condition: condition, Commands: commands})
		return nil, true, nil
	default:
		parsed, recognized, err := parseFlowCommandTokens(node.Items, tbs)
		if err != nil {
			return nil, true, fmt.Errorf("line %d: %w", node.Lineno, err)
		}
		if !recognized {
			return nil, false, nil
		}
		if len(node.Children) != 0 {
			return nil, true, fmt.Errorf("line %d: this element must have no children", node.Lineno)
		}
		return parsed, true, nil
	}
}

// flattenCommands repeatedly replaces every If with conditional Gotos
// until none remain. Ported from
// Command::flatten_commands/insert_flattened_if in parse.rs.
func flattenCommands(commands *[]soundtrack.Command) {
	n := 0
	for n < len(*commands) {
		if (*commands)[n].Kind == soundtrack.If {
			ifCmd := (*commands)[n]
			*commands = append((*commands)[:n:n], (*commands)[n+1:]...)
			insertFlattenedIf(commands, n, ifCmd.Branches, ifCmd.Fallback)
		} else {
			n++
		}
	}
}

func insertFlattenedIf(commands *[]soundtrack.Command, insertionPoint int, branches []soundtrack.Branch, fallback []soundtrack.Command) {
	var toInsert []soundtrack.Command
	var exitGotoPositions []int
	for _, branch := range branches {
		conditionalGotoPosition := len(toInsert)
		toInsert = append(toInsert, soundtrack.Command{Kind: soundtrack.Placeholder})
		subcommands := append([]soundtrack.Command(nil), branch.Commands...)
		for i := range subcommands {
			if subcommands[i].Kind == soundtrack.Goto {
				subcommands[i].TargetIndex += insertionPoint + len(toInsert)
			}
		}
		toInsert = append(toInsert, subcommands...)
		exitGotoPositions = append(exitGotoPositions, len(toInsert))
		toInsert = append(toInsert, soundtrack.Command{Kind: soundtrack.Placeholder})
		toInsert[conditionalGotoPosition] = soundtrack.Command{
			Kind:               soundtrack.Goto,
			Expr:               branch.Condition,
			ExpectedTruthiness: false,
			TargetIndex:        len(toInsert) + insertionPoint,
		}
	}
	fallback = append([]soundtrack.Command(nil), fallback...)
	for i := range fallback {
		if fallback[i].Kind == soundtrack.Goto {
			fallback[i].TargetIndex += insertionPoint + len(toInsert)
		}
	}
	toInsert = append(toInsert, fallback...)
	exitPosition := len(toInsert) + insertionPoint
	for _, pos := range exitGotoPositions {
		toInsert[pos] = soundtrack.Command{Kind: soundtrack.Goto, ExpectedTruthiness: true, TargetIndex: exitPosition}
	}
	for i := range *commands {
		if (*commands)[i].Kind == soundtrack.Goto && (*commands)[i].TargetIndex > insertionPoint {
			(*commands)[i].TargetIndex += len(toInsert) - 1
		}
	}
	result := make([]soundtrack.Command, 0, len(*commands)+len(toInsert))
	result = append(result, (*commands)[:insertionPoint]...)
	result = append(result, toInsert...)
	result = append(result, (*commands)[insertionPoint:]...)
	*commands = result
}
