// Package semantics implements the per-item/collection behavioral knobs
// (spec §3, §4.9, C9): atomicity, concurrency, consistency, persistency,
// safety, and ordering. Grounded on original_source/lib/jsemantics.c's
// enum-plus-struct shape, translated into a Go value type instead of a
// ref-counted C object (nothing here owns a network resource, so there is
// nothing to free).
package semantics

// Atomicity controls whether a read/write group is guarded by a
// distributed lock: none skips locking entirely, operation locks one
// read/write group at a time (spec §4.7 step 2), batch extends the same
// lock across every group in a batch (reserved for a future batch-level
// locking scope; today's per-group engine treats it the same as
// operation).
type Atomicity int

const (
	AtomicityNone Atomicity = iota
	AtomicityOperation
	AtomicityBatch
)

// Concurrency controls how aggressively the status fast path trusts
// cached state: none means no concurrent writer can invalidate a cached
// status, so it may be read from the metadata backend instead of the
// data servers (spec §4.7); overlapping and non-overlapping both require
// the per-server DATA_STATUS fan-out, differing only in what guarantees
// the caller is making about its own concurrent access pattern (spec §3)
// rather than in anything this client observes.
type Concurrency int

const (
	ConcurrencyNone Concurrency = iota
	ConcurrencyOverlapping
	ConcurrencyNonOverlapping
)

// Consistency controls the status cache's fast path (spec §4.7): immediate
// always re-fetches; eventual and session both tolerate the ≤1s cache.
type Consistency int

const (
	ConsistencyEventual Consistency = iota
	ConsistencySession
	ConsistencyImmediate
)

// Persistency controls how durably a write must land before its reply is
// considered authoritative. Spec §3 names it independently of Safety, but
// leaves its consumption unspecified (§9's only resolved durability knob
// is Safety); kept here as a pass-through enum client code doesn't yet
// branch on, so future server-side durability negotiation has somewhere
// to live without another protocol change.
type Persistency int

const (
	PersistencyNone Persistency = iota
	PersistencyStorage
	PersistencyNetwork
)

// Safety controls how aggressively a write is flushed and acknowledged.
// SafetyStorage and SafetyNetwork are treated identically on the client:
// both force a synchronous reply from the data server before the write is
// considered durable, since the client can't observe the server's disk
// flush, only its acknowledgement (see DESIGN.md, Open Questions).
type Safety int

const (
	SafetyNone Safety = iota
	SafetyNetwork
	SafetyStorage
)

// Ordering controls what fencing, if any, the caller can rely on across
// concurrently dispatched operations (spec §5); semi-relaxed and relaxed
// both currently map to "no cross-server fencing" client-side (spec §5:
// "across servers, no ordering is guaranteed" regardless of this knob),
// differing only in the ordering guarantee the caller is promising to
// respect on its own end.
type Ordering int

const (
	OrderingStrict Ordering = iota
	OrderingSemiRelaxed
	OrderingRelaxed
)

// Semantics is an immutable value; Default() plus the With* builders produce
// new instances rather than mutating shared state.
type Semantics struct {
	atomicity   Atomicity
	concurrency Concurrency
	consistency Consistency
	persistency Persistency
	safety      Safety
	ordering    Ordering
}

func Default() Semantics {
	return Semantics{
		atomicity:   AtomicityOperation,
		concurrency: ConcurrencyOverlapping,
		consistency: ConsistencyImmediate,
		persistency: PersistencyNetwork,
		safety:      SafetyNetwork,
		ordering:    OrderingStrict,
	}
}

func (s Semantics) Atomicity() Atomicity     { return s.atomicity }
func (s Semantics) Concurrency() Concurrency { return s.concurrency }
func (s Semantics) Consistency() Consistency { return s.consistency }
func (s Semantics) Persistency() Persistency { return s.persistency }
func (s Semantics) Safety() Safety           { return s.safety }
func (s Semantics) Ordering() Ordering       { return s.ordering }

func (s Semantics) WithAtomicity(a Atomicity) Semantics     { s.atomicity = a; return s }
func (s Semantics) WithConcurrency(c Concurrency) Semantics { s.concurrency = c; return s }
func (s Semantics) WithConsistency(c Consistency) Semantics { s.consistency = c; return s }
func (s Semantics) WithPersistency(p Persistency) Semantics { s.persistency = p; return s }
func (s Semantics) WithSafety(sf Safety) Semantics          { s.safety = sf; return s }
func (s Semantics) WithOrdering(o Ordering) Semantics       { s.ordering = o; return s }

// ForceSafety reports whether a write must be followed by a synchronous
// reply before the engine proceeds to the next operation (spec §C7's
// "forced-safety DATA_CREATE" rule extends this to any write under
// SafetyNetwork or SafetyStorage).
func (s Semantics) ForceSafety() bool { return s.safety != SafetyNone }
