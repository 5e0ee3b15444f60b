package pool

// CommittedFunc is invoked exactly once whenever an entry leaves the pool
// because its transaction committed.
type CommittedFunc func(pool *TxPool, entry *Entry)

// RejectFunc is invoked exactly once whenever an entry is removed for any
// other reason, carrying the Reject describing why.
type RejectFunc func(pool *TxPool, entry *Entry, reject *Reject)

// Callbacks lets external observers watch pool exits without the pool
// depending on any particular notification transport (spec.md 6).
type Callbacks struct {
	OnCommitted CommittedFunc
	OnReject    RejectFunc
}

func (c Callbacks) callCommitted(p *TxPool, e *Entry) {
	if c.OnCommitted != nil {
		c.OnCommitted(p, e)
	}
}

func (c Callbacks) callReject(p *TxPool, e *Entry, r *Reject) {
	if c.OnReject != nil {
		c.OnReject(p, e, r)
	}
}
