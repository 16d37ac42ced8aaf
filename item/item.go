// Package item implements the Item object (spec §3, §4.10) and the engines
// that drive its data I/O (C7, grounded on original_source/lib/jitem.c's
// j_item_read_internal/j_item_write_internal/j_item_get_status_internal/
// j_item_delete_internal) and metadata (C8, grounded on the same file's
// serialize/deserialize and create/get/delete paths).
package item

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/julea-io/julea/cmn/cos"
	"github.com/julea-io/julea/creds"
	"github.com/julea-io/julea/distr"
	"github.com/julea-io/julea/oid"
)

// statusAge is how long cached size/modification_time may be reused before
// a status call must hit the network again (spec §4.7's "status fast
// path").
const statusAge = time.Second

// status is an item's mutable, server-observed state. All fields are
// guarded by mu since engines may update them from background workers.
type status struct {
	mu        sync.Mutex
	size      uint64
	modTime   int64 // unix nanoseconds
	fetchedAt time.Time
	created   []bool // per data-server create flag, false->true once
}

// Item is reference-counted the way spec §4.10 describes; Go's GC already
// owns the underlying memory, so Ref/Unref here exist only to let callers
// track "does anyone else still need this" the way the original's
// explicit unref-then-maybe-free discipline does, e.g. to know when it is
// safe to drop a held Lock.
type Item struct {
	id             oid.ID
	collectionID   oid.ID
	collectionName string
	name           string
	creds          *creds.Credentials
	dist           *distr.Distribution
	status         status
	refs           atomic.Int32
}

// New constructs a fresh item under (collectionID, collectionName) with the
// given distribution and credentials. name must not contain '/' and is
// immutable thereafter (spec §3).
func New(collectionID oid.ID, collectionName, name string, d *distr.Distribution, c *creds.Credentials) (*Item, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	it := &Item{
		id:             oid.New(),
		collectionID:   collectionID,
		collectionName: collectionName,
		name:           name,
		creds:          c,
		dist:           d,
	}
	it.status.created = make([]bool, d.NumServers())
	it.refs.Store(1)
	return it, nil
}

func validateName(name string) error {
	if name == "" {
		return cos.NewErrInvalidArgument("item name must not be empty")
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return cos.NewErrInvalidArgument("item name %q must not contain '/'", name)
		}
	}
	return nil
}

func (it *Item) ID() oid.ID                 { return it.id }
func (it *Item) CollectionID() oid.ID       { return it.collectionID }
func (it *Item) Name() string               { return it.name }
func (it *Item) Credentials() *creds.Credentials { return it.creds }
func (it *Item) Distribution() *distr.Distribution { return it.dist }

// Path is the metadata key an item is persisted/looked-up under:
// "<collection>/<item>" (spec §6).
func (it *Item) Path() string { return it.collectionName + "/" + it.name }

func (it *Item) Ref() *Item {
	it.refs.Add(1)
	return it
}

// Unref decrements the reference count; callers stop using the item once
// it reaches zero. There is no explicit free: the last reference simply
// becomes unreachable and is collected.
func (it *Item) Unref() { it.refs.Add(-1) }

// Size returns the cached size.
func (it *Item) Size() uint64 {
	it.status.mu.Lock()
	defer it.status.mu.Unlock()
	return it.status.size
}

// ModificationTime returns the cached modification time (unix nanoseconds).
func (it *Item) ModificationTime() int64 {
	it.status.mu.Lock()
	defer it.status.mu.Unlock()
	return it.status.modTime
}

// setModificationTime enforces the monotonicity invariant: modification_time
// can only be raised, never lowered (spec §3, Testable Property 3).
func (it *Item) setModificationTime(t int64) {
	it.status.mu.Lock()
	if t > it.status.modTime {
		it.status.modTime = t
	}
	it.status.mu.Unlock()
}

func (it *Item) setSize(size uint64) {
	it.status.mu.Lock()
	it.status.size = size
	it.status.mu.Unlock()
}

func (it *Item) refreshedAt(t time.Time) {
	it.status.mu.Lock()
	it.status.fetchedAt = t
	it.status.mu.Unlock()
}

// statusFresh reports whether cached status is still within statusAge.
func (it *Item) statusFresh() bool {
	it.status.mu.Lock()
	defer it.status.mu.Unlock()
	return time.Since(it.status.fetchedAt) < statusAge
}

// Touch applies an externally observed (size, modification_time) pair,
// e.g. from a caller that polled the status out of band. modTime is
// clamped through the same max() monotonicity rule the status engine uses.
func (it *Item) Touch(size uint64, modTime int64) {
	it.setSize(size)
	it.setModificationTime(modTime)
}

// markCreated transitions created[i] false->true; a no-op if already true
// (spec §3: "transitions false→true exactly once and is never reset").
func (it *Item) markCreated(i int) (wasCreated bool) {
	it.status.mu.Lock()
	wasCreated = it.status.created[i]
	it.status.created[i] = true
	it.status.mu.Unlock()
	return wasCreated
}
