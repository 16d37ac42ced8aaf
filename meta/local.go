// Local is the in-process metadata backend, backed by tidwall/buntdb — an
// embedded ordered key/value store the teacher's pack reaches for wherever
// a process wants its own local durable store without running a server.
package meta

import (
	"github.com/tidwall/buntdb"

	"github.com/julea-io/julea/cmn/cos"
	"github.com/julea-io/julea/semantics"
)

type Local struct {
	db *buntdb.DB
}

// OpenLocal opens (creating if needed) a buntdb file at path, or an
// in-memory store when path is ":memory:".
func OpenLocal(path string) (*Local, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, cos.NewErrBackend("open local metadata store", err)
	}
	return &Local{db: db}, nil
}

func (l *Local) Close() error { return l.db.Close() }

func key(namespace, path string) string { return namespace + "/" + path }

func (l *Local) Get(namespace, path string) ([]byte, error) {
	var val []byte
	err := l.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key(namespace, path))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		val = []byte(v)
		return nil
	})
	if err != nil {
		return nil, cos.NewErrBackend("get "+path, err)
	}
	return val, nil
}

func (l *Local) BatchStart(namespace string, safety semantics.Safety) Batch {
	return Batch{
		namespace: namespace,
		safety:    safety,
		exec:      l.execute,
	}
}

// execute runs every staged op inside one buntdb transaction. A duplicate
// put (an existing key that should not be overwritten, e.g. a lock
// acquisition racing another client) fails that single op but the
// transaction still commits whatever succeeded, mirroring the C backend's
// per-put boolean accumulation rather than an all-or-nothing transaction.
// An update op skips the existence check entirely (an upsert), for
// callers that already know the key exists and mean to overwrite it.
func (l *Local) execute(namespace string, _ semantics.Safety, ops []batchOp) (bool, error) {
	ok := true
	err := l.db.Update(func(tx *buntdb.Tx) error {
		for _, op := range ops {
			k := key(namespace, op.path)
			if op.delete {
				if _, err := tx.Delete(k); err != nil && err != buntdb.ErrNotFound {
					ok = false
				}
				continue
			}
			if !op.update {
				if _, err := tx.Get(k); err == nil {
					ok = false
					continue
				}
			}
			if _, _, err := tx.Set(k, string(op.doc), nil); err != nil {
				ok = false
			}
		}
		return nil
	})
	if err != nil {
		return false, cos.NewErrBackend("execute batch on "+namespace, err)
	}
	return ok, nil
}
