// Package meta abstracts the metadata backend item/collection/lock records
// are persisted through (spec §4.8's "locally linked metadata backend" vs.
// "one or more metadata servers"). Backend is satisfied by Local (buntdb,
// in-process) and Remote (META_GET/META_CREATE/META_DELETE wire messages
// over connpool's metadata queues).
package meta

import "github.com/julea-io/julea/semantics"

// Backend is the metadata store an engine batches operations against.
// A batch groups several puts/deletes into one Execute call; each staged op
// succeeds or fails on its own (a failed op does not undo the others),
// matching spec §4.6's "one call per group" grouping and §4.4's "wrapped
// in a single metadata batch" lock semantics.
type Backend interface {
	// Get performs a single, unbatched lookup. Returns nil, nil on a miss
	// (spec §6: "len=0 -> miss"), never cos.ErrNotFound — callers decide
	// whether a miss is an error.
	Get(namespace, path string) ([]byte, error)

	// BatchStart opens a batch of puts/deletes against namespace, executed
	// at the given safety level.
	BatchStart(namespace string, safety semantics.Safety) Batch
}

// Batch accumulates puts/deletes and commits them together via Execute.
// Execute's boolean result is the logical AND of every staged operation,
// per spec §4.6's grouping rule.
type Batch struct {
	namespace string
	safety    semantics.Safety
	ops       []batchOp
	exec      func(namespace string, safety semantics.Safety, ops []batchOp) (bool, error)
}

type batchOp struct {
	path   string
	doc    []byte // value for a put/update (may be nil); unused for a delete
	delete bool
	update bool // upsert: unlike Put, succeeds even if path already exists
}

// Put stages a key/value write that must not already exist (spec §4.4/
// §4.8: item create and lock acquisition both fail an op whose key is
// already present rather than overwriting it).
func (b *Batch) Put(path string, doc []byte) {
	b.ops = append(b.ops, batchOp{path: path, doc: doc})
}

// Update stages an upsert: path is overwritten whether or not it already
// exists. Used by the write path's best-effort status update (spec §9),
// where the item's metadata document is known to already exist.
func (b *Batch) Update(path string, doc []byte) {
	b.ops = append(b.ops, batchOp{path: path, doc: doc, update: true})
}

// Delete stages a key removal.
func (b *Batch) Delete(path string) {
	b.ops = append(b.ops, batchOp{path: path, delete: true})
}

// Execute commits every staged operation. Success iff every individual
// operation succeeded (spec §4.4: "success iff every put succeeds").
func (b *Batch) Execute() (bool, error) {
	if len(b.ops) == 0 {
		return true, nil
	}
	return b.exec(b.namespace, b.safety, b.ops)
}
