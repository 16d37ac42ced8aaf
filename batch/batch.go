// Package batch implements the operation queue and execution driver (spec
// §4.6, C6): an ordered list of user operations, grouped by contiguous
// (kind, key) runs and dispatched to per-kind engine handlers. Grounded on
// the control-flow description in spec §4.6 and §2 ("execute(batch) groups
// operations by kind and key, calls the matching engine"); Op is a small
// exported interface (Kind plus Key) that any type may implement, and
// Execute dispatches each group through the Kind -> Handler map given to
// New.
package batch

// Kind names the operation families an engine handler is registered for.
type Kind int

const (
	ItemCreate Kind = iota
	ItemGet
	ItemDelete
	ItemRead
	ItemWrite
	ItemStatus
)

// Op is one user-enqueued operation. Key groups operations that the engine
// may coalesce into a single network round trip (spec §4.6: "writes to the
// same item, gets on the same collection").
type Op interface {
	Kind() Kind
	Key() string
}

// Handler executes one contiguous group of same-kind, same-key operations
// and reports overall success. Handlers update their operations' output
// fields (bytes_written, status, ...) in place; Batch only tracks the
// boolean result.
type Handler func(group []Op) bool

// Batch is an ordered, exclusively-owned list of pending operations.
type Batch struct {
	ops      []Op
	handlers map[Kind]Handler
}

// New creates an empty batch dispatching to the given per-kind handlers.
func New(handlers map[Kind]Handler) *Batch {
	return &Batch{handlers: handlers}
}

// Add appends op to the batch.
func (b *Batch) Add(op Op) { b.ops = append(b.ops, op) }

// Len reports the number of operations currently queued.
func (b *Batch) Len() int { return len(b.ops) }

// Execute snapshots and clears the queue, walks it grouping contiguous runs
// sharing both kind and key, and dispatches each group to its handler. The
// result is the logical AND of every group's success; a failing group does
// not stop remaining groups from running (spec §4.6 step 4).
func (b *Batch) Execute() bool {
	ops := b.ops
	b.ops = nil
	if len(ops) == 0 {
		return true
	}

	ok := true
	start := 0
	for start < len(ops) {
		kind, key := ops[start].Kind(), ops[start].Key()
		end := start + 1
		for end < len(ops) && ops[end].Kind() == kind && ops[end].Key() == key {
			end++
		}
		handler, have := b.handlers[kind]
		if !have {
			ok = false
			start = end
			continue
		}
		if !handler(ops[start:end]) {
			ok = false
		}
		start = end
	}
	return ok
}
