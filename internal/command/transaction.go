package command

// Transaction batches commands to be delivered to a parent Issuer
// atomically, in order, with no interleaving from other senders.
// Grounded on engine.rs's Transaction<'a, T>.
//
// Transactions nest: calling BeginTransaction on a *Transaction
// queues a child transaction whose own Commit appends one
// Command{Kind: KindTransaction} to the parent's buffer.
type Transaction struct {
	Issuers
	parent   Issuer
	commands []Command
}

var _ Issuer = (*Transaction)(nil)

// Issue buffers cmd rather than delivering it immediately.
func (t *Transaction) Issue(cmd Command) {
	t.commands = append(t.commands, cmd)
}

// Commit delivers every buffered command to the parent issuer at
// once, as a single Command{Kind: KindTransaction}.
func (t *Transaction) Commit() {
	t.parent.Issue(Command{Kind: KindTransaction, Commands: t.commands})
}

// Abort discards every buffered command. Equivalent to simply never
// calling Commit; provided for clarity at call sites.
func (t *Transaction) Abort() {}
