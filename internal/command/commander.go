package command

// Commander sends commands to an Engine living on some other
// goroutine. Cloning a Commander gives another independent handle to
// the same engine. Grounded on engine.rs's Commander, a
// Sender<EngineCommand> wrapper.
type Commander struct {
	Issuers
	tx chan<- Command
}

var _ Issuer = (*Commander)(nil)

// NewCommander wraps a channel the Engine reads commands from.
func NewCommander(tx chan<- Command) *Commander {
	c := &Commander{tx: tx}
	c.Issuers = Issuers{Issuer: c}
	return c
}

// Issue sends cmd to the engine, blocking if the channel is full.
// Commands sent from a given Commander always arrive in order
// relative to each other, same as the original's
// std::sync::mpsc::Sender.
func (c *Commander) Issue(cmd Command) {
	c.tx <- cmd
}

// Clone makes another, independent Commander that sends commands to
// the same underlying engine.
func (c *Commander) Clone() *Commander {
	return NewCommander(c.tx)
}

// CloneCommander is an alias for Clone kept for parity with the
// original's clone_commander, which exists so a caller holding any
// EngineCommands-implementing type (not just a Commander) can always
// obtain a Commander.
func (c *Commander) CloneCommander() *Commander {
	return c.Clone()
}
