// Remote dispatches metadata operations as wire messages against one or
// more metadata servers through connpool, satisfying spec §4.8's "one
// metadata connection" path for a group with no local backend linked.
package meta

import (
	"github.com/julea-io/julea/connpool"
	"github.com/julea-io/julea/semantics"
	"github.com/julea-io/julea/wire"
)

type Remote struct {
	pool  *connpool.Pool
	index int // which configured metadata server this Remote targets
}

func NewRemote(pool *connpool.Pool, index int) *Remote {
	return &Remote{pool: pool, index: index}
}

func (r *Remote) Get(namespace, path string) ([]byte, error) {
	conn, err := r.pool.PopMeta(r.index)
	if err != nil {
		return nil, err
	}

	req := wire.New(wire.MetaGet, 0)
	req.AddOperation()
	req.AppendString(namespace)
	req.AppendString(path)

	if err := req.Send(conn); err != nil {
		r.pool.DropMeta(r.index, conn)
		return nil, err
	}
	reply, err := wire.Receive(conn)
	if err != nil {
		r.pool.DropMeta(r.index, conn)
		return nil, err
	}
	r.pool.PushMeta(r.index, conn)

	n := reply.Get4()
	if n == 0 {
		return nil, nil
	}
	doc := reply.GetN(int(n))
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (r *Remote) BatchStart(namespace string, safety semantics.Safety) Batch {
	return Batch{
		namespace: namespace,
		safety:    safety,
		exec:      r.execute,
	}
}

// execute serialises every staged op onto one borrowed connection, one
// message per op, matching spec §4.8's "serialised onto one metadata
// connection" (the contiguous-kind grouping already ensures the caller
// only ever asks for one namespace's worth of ops at a time).
func (r *Remote) execute(namespace string, safety semantics.Safety, ops []batchOp) (bool, error) {
	conn, err := r.pool.PopMeta(r.index)
	if err != nil {
		return false, err
	}
	defer r.pool.PushMeta(r.index, conn)

	ok := true
	for _, op := range ops {
		// the wire protocol has no separate "update" kind (spec §6); an
		// upsert is framed identically to a create, since only the local
		// in-process backend needs to distinguish them to simulate a
		// create-must-not-exist server.
		kind := wire.MetaCreate
		if op.delete {
			kind = wire.MetaDelete
		}
		req := wire.New(kind, 0)
		req.SetSafety(safety)
		req.AddOperation()
		req.AppendString(namespace)
		req.AppendString(op.path)
		if !op.delete {
			req.Append4(uint32(len(op.doc)))
			req.Append(op.doc)
		}

		if err := req.Send(conn); err != nil {
			r.pool.DropMeta(r.index, conn)
			return false, err
		}
		if safety != semantics.SafetyNone {
			reply, err := wire.Receive(conn)
			if err != nil {
				r.pool.DropMeta(r.index, conn)
				return false, err
			}
			if reply.Get4() == 0 {
				ok = false
			}
		}
	}
	return ok, nil
}
