// Engine drives item data I/O (C7) against the shared skeleton in spec
// §4.7: lazy per-server message construction, an optional distributed
// lock guarding the whole group, forced-safety create-before-first-write,
// background fan-out with the single-unit inline optimisation, and
// synchronized byte counters. Grounded on original_source/lib/jitem.c's
// j_item_read_internal/j_item_write_internal and their per-server
// background-operation helpers.
package item

import (
	"sync/atomic"
	"time"

	"github.com/julea-io/julea/batch"
	"github.com/julea-io/julea/bgop"
	"github.com/julea-io/julea/cfg"
	"github.com/julea-io/julea/cmn/nlog"
	"github.com/julea-io/julea/connpool"
	"github.com/julea-io/julea/dlock"
	"github.com/julea-io/julea/meta"
	"github.com/julea-io/julea/semantics"
	"github.com/julea-io/julea/stats"
	"github.com/julea-io/julea/wire"
)

const lockAcquireAttempts = 64

// Engine is the per-batch-execution dependency set: the engine consulted
// by batch.Batch for every item-kind operation group.
type Engine struct {
	cfg   *cfg.Configuration
	pool  *connpool.Pool
	meta  meta.Backend
	stats *stats.Stats
	sem   semantics.Semantics
}

func NewEngine(c *cfg.Configuration, pool *connpool.Pool, mb meta.Backend, st *stats.Stats, sem semantics.Semantics) *Engine {
	return &Engine{cfg: c, pool: pool, meta: mb, stats: st, sem: sem}
}

// Handlers returns the batch.Kind -> batch.Handler map for every item
// operation this engine implements, ready to pass to batch.New.
func (e *Engine) Handlers() map[batch.Kind]batch.Handler {
	return map[batch.Kind]batch.Handler{
		batch.ItemRead:   e.handleRead,
		batch.ItemWrite:  e.handleWrite,
		batch.ItemStatus: e.handleStatus,
		batch.ItemDelete: e.handleDelete,
		batch.ItemCreate: e.handleCreate,
		batch.ItemGet:    e.handleGet,
	}
}

type serverMsg struct {
	msg    *wire.Message
	create *wire.Message // non-nil iff this write must lazily create first
	index  int
}

type readChunk struct {
	dst     []byte
	counter *uint64
}

func (e *Engine) handleRead(group []batch.Op) bool {
	ops := make([]*ReadOp, len(group))
	for i, g := range group {
		ops[i] = g.(*ReadOp)
	}
	return e.rw(ops[0].Item, true, func(it *Item, lock *dlock.Lock) func() bool {
		N := it.dist.NumServers()
		servers := make([]*serverMsg, N)
		chunksByServer := make(map[int][]readChunk, N)

		for _, op := range ops {
			length := uint64(len(op.Buf))
			if length == 0 {
				continue
			}
			pos := uint64(0)
			it2 := it.dist.Reset(length, op.Offset)
			for {
				c, ok := it2.Next()
				if !ok {
					break
				}
				sm := servers[c.Server]
				if sm == nil {
					sm = &serverMsg{index: c.Server, msg: wire.New(wire.DataRead, 0)}
					sm.msg.AppendString(it.Path())
					servers[c.Server] = sm
				}
				sm.msg.AddOperation()
				sm.msg.Append8(c.ChunkLength)
				sm.msg.Append8(c.ChunkOffset)
				chunksByServer[c.Server] = append(chunksByServer[c.Server], readChunk{
					dst:     op.Buf[pos : pos+c.ChunkLength],
					counter: &op.BytesRead,
				})
				if lock != nil {
					lock.Add(c.BlockID)
				}
				pos += c.ChunkLength
			}
		}

		return func() bool { return e.dispatch(it, servers, chunksByServer, false) }
	})
}

func (e *Engine) handleWrite(group []batch.Op) bool {
	ops := make([]*WriteOp, len(group))
	for i, g := range group {
		ops[i] = g.(*WriteOp)
	}
	return e.rw(ops[0].Item, false, func(it *Item, lock *dlock.Lock) func() bool {
		N := it.dist.NumServers()
		servers := make([]*serverMsg, N)
		counters := make(map[int][]*uint64, N)

		var maxEnd uint64
		for _, op := range ops {
			length := uint64(len(op.Buf))
			if length == 0 {
				continue
			}
			if end := op.Offset + length; end > maxEnd {
				maxEnd = end
			}
			pos := uint64(0)
			it2 := it.dist.Reset(length, op.Offset)
			for {
				c, ok := it2.Next()
				if !ok {
					break
				}
				sm := servers[c.Server]
				if sm == nil {
					sm = &serverMsg{index: c.Server, msg: wire.New(wire.DataWrite, 0)}
					sm.msg.AppendString(it.Path())
					if !it.markCreated(c.Server) {
						create := wire.New(wire.DataCreate, 0)
						create.AppendString(it.Path())
						create.AddOperation()
						create.ForceSafety()
						sm.create = create
						if e.stats != nil {
							e.stats.DataCreates.Inc()
						}
					}
					servers[c.Server] = sm
				}
				sm.msg.AddOperation()
				sm.msg.Append8(c.ChunkLength)
				sm.msg.Append8(c.ChunkOffset)
				sm.msg.SetSafety(e.sem.Safety())
				sm.msg.AttachSpan(op.Buf[pos : pos+c.ChunkLength])
				counters[c.Server] = append(counters[c.Server], &op.BytesWritten)
				if lock != nil {
					lock.Add(c.BlockID)
				}
				pos += c.ChunkLength
			}
		}

		return func() bool {
			ok := e.dispatchWrite(it, servers, counters)
			if ok && e.sem.Concurrency() == semantics.ConcurrencyNone {
				e.updateStatusAfterWrite(it, maxEnd)
			}
			return ok
		}
	})
}

// rw wraps the per-group skeleton shared by read and write (spec §4.7
// steps 2-5): build registers every lock block and returns a dispatch
// closure without touching the network; the lock (if any) is then
// acquired; only once that succeeds does dispatch actually send the
// DATA_READ/DATA_WRITE messages. A lock that fails to acquire must leave
// the network untouched, so build and dispatch are kept strictly
// separate rather than folded into one closure.
func (e *Engine) rw(it *Item, _ bool, build func(*Item, *dlock.Lock) func() bool) bool {
	var lock *dlock.Lock
	if e.sem.Atomicity() != semantics.AtomicityNone {
		lock = dlock.New(e.meta, e.stats, it.Path())
	}

	dispatch := build(it, lock)

	if lock != nil {
		acquired, err := lock.AcquireRetry(lockAcquireAttempts)
		if err != nil || !acquired {
			return false
		}
		defer lock.Drop()
	}
	return dispatch()
}

// dispatch fans read messages out to their servers, one goroutine per
// server unless there is exactly one (spec §4.5's inline optimisation).
func (e *Engine) dispatch(it *Item, servers []*serverMsg, chunksByServer map[int][]readChunk, _ bool) bool {
	var fns []func() error
	for _, sm := range servers {
		if sm == nil {
			continue
		}
		sm := sm
		fns = append(fns, func() error {
			return e.runRead(it, sm, chunksByServer[sm.index])
		})
	}
	if len(fns) == 0 {
		return true
	}
	return bgop.Run(fns) == nil
}

func (e *Engine) dispatchWrite(it *Item, servers []*serverMsg, counters map[int][]*uint64) bool {
	var fns []func() error
	for _, sm := range servers {
		if sm == nil {
			continue
		}
		sm := sm
		fns = append(fns, func() error {
			return e.runWrite(it, sm, counters[sm.index])
		})
	}
	if len(fns) == 0 {
		return true
	}
	return bgop.Run(fns) == nil
}

func (e *Engine) runRead(it *Item, sm *serverMsg, chunks []readChunk) error {
	conn, err := e.pool.PopData(sm.index)
	if err != nil {
		return err
	}
	if err := sm.msg.Send(conn); err != nil {
		e.pool.DropData(sm.index, conn)
		return err
	}
	reply, err := wire.Receive(conn)
	if err != nil {
		e.pool.DropData(sm.index, conn)
		return err
	}
	e.pool.PushData(sm.index, conn)

	for _, ch := range chunks[:min(len(chunks), reply.Count())] {
		n := reply.Get8()
		if n > 0 {
			data := reply.GetN(int(n))
			copy(ch.dst, data)
		}
		atomic.AddUint64(ch.counter, n)
		if e.stats != nil {
			e.stats.BytesRead.Add(float64(n))
		}
	}
	return nil
}

func (e *Engine) runWrite(it *Item, sm *serverMsg, counters []*uint64) error {
	conn, err := e.pool.PopData(sm.index)
	if err != nil {
		return err
	}

	if sm.create != nil {
		if err := sm.create.Send(conn); err != nil {
			e.pool.DropData(sm.index, conn)
			return err
		}
		if _, err := wire.Receive(conn); err != nil {
			e.pool.DropData(sm.index, conn)
			return err
		}
	}

	if err := sm.msg.Send(conn); err != nil {
		e.pool.DropData(sm.index, conn)
		return err
	}

	if e.sem.ForceSafety() {
		reply, err := wire.Receive(conn)
		if err != nil {
			e.pool.DropData(sm.index, conn)
			return err
		}
		for _, counter := range counters[:min(len(counters), reply.Count())] {
			n := reply.Get8()
			atomic.AddUint64(counter, n)
			if e.stats != nil {
				e.stats.BytesWritten.Add(float64(n))
			}
		}
	}
	// under SafetyNone no reply is requested, so byte counters stay at
	// their pre-write value; the caller only relied on them under
	// network/storage safety to begin with.

	e.pool.PushData(sm.index, conn)
	return nil
}

// updateStatusAfterWrite is the write path's optional metadata update
// (spec §9: "commented-out metadata update of size/modification_time
// under concurrency=none", resolved as implemented per SPEC_FULL.md). It
// is best-effort: a failure here doesn't fail the write, since the data
// itself already landed and the next status fetch will re-derive the
// same values from the data servers under any other concurrency setting.
func (e *Engine) updateStatusAfterWrite(it *Item, writeEnd uint64) {
	newSize := it.Size()
	if writeEnd > newSize {
		newSize = writeEnd
	}
	now := time.Now()
	it.setSize(newSize)
	it.setModificationTime(now.UnixNano())
	it.refreshedAt(now)

	doc, err := it.MarshalMsg(nil, true)
	if err != nil {
		return
	}
	b := e.meta.BatchStart("items", semantics.SafetyNetwork)
	b.Update(it.Path(), doc)
	if _, err := b.Execute(); err != nil {
		nlog.Warningf("item: best-effort status update for %s failed: %v", it.Path(), err)
	}
}

func (e *Engine) handleStatus(group []batch.Op) bool {
	ok := true
	for _, g := range group {
		op := g.(*StatusOp)
		if !e.status(op.Item) {
			ok = false
		}
	}
	return ok
}

// status implements the fast path (spec §4.7): cached status younger than
// 1s is reused as-is; under concurrency=none a single metadata fetch
// replaces the per-server fan-out since no concurrent writer can be
// invalidating the cached values.
func (e *Engine) status(it *Item) bool {
	if e.sem.Consistency() != semantics.ConsistencyImmediate && it.statusFresh() {
		return true
	}

	if e.sem.Concurrency() == semantics.ConcurrencyNone {
		doc, err := e.meta.Get("items", it.Path())
		if err != nil || doc == nil {
			return false
		}
		fresh, err := UnmarshalMsg(doc, nil)
		if err != nil {
			return false
		}
		it.setSize(fresh.Size())
		it.setModificationTime(fresh.ModificationTime())
		it.refreshedAt(time.Now())
		return true
	}

	N := it.dist.NumServers()

	fns := make([]func() error, 0, N)
	var size atomic.Uint64
	var modTime atomic.Int64
	for i := 0; i < N; i++ {
		i := i
		fns = append(fns, func() error {
			conn, err := e.pool.PopData(i)
			if err != nil {
				return err
			}
			req := wire.New(wire.DataStatus, 0)
			req.AddOperation()
			req.AppendString(it.Path())
			req.Append4(0x3) // request both size and mtime flags
			if err := req.Send(conn); err != nil {
				e.pool.DropData(i, conn)
				return err
			}
			reply, err := wire.Receive(conn)
			if err != nil {
				e.pool.DropData(i, conn)
				return err
			}
			e.pool.PushData(i, conn)

			mt := int64(reply.Get8())
			sz := reply.Get8()
			size.Add(sz)
			for {
				old := modTime.Load()
				if mt <= old || modTime.CompareAndSwap(old, mt) {
					break
				}
			}
			return nil
		})
	}
	if bgop.Run(fns) != nil {
		return false
	}
	it.setSize(size.Load())
	it.setModificationTime(modTime.Load())
	it.refreshedAt(time.Now())
	return true
}

func (e *Engine) handleDelete(group []batch.Op) bool {
	items := make([]*Item, len(group))
	for i, g := range group {
		items[i] = g.(*DeleteOp).Item
	}
	it := items[0]
	N := it.dist.NumServers()

	var metaOK, dataOK bool
	fns := []func() error{
		func() error {
			b := e.meta.BatchStart("items", semantics.SafetyNetwork)
			for _, i := range items {
				b.Delete(i.Path())
			}
			ok, err := b.Execute()
			metaOK = ok
			return err
		},
		func() error {
			dataFns := make([]func() error, N)
			for s := 0; s < N; s++ {
				s := s
				dataFns[s] = func() error {
					conn, err := e.pool.PopData(s)
					if err != nil {
						return err
					}
					req := wire.New(wire.DataDelete, 0)
					for _, i := range items {
						req.AddOperation()
						req.AppendString(i.Path())
					}
					if err := req.Send(conn); err != nil {
						e.pool.DropData(s, conn)
						return err
					}
					e.pool.PushData(s, conn)
					return nil
				}
			}
			err := bgop.Run(dataFns)
			dataOK = err == nil
			return err
		},
	}
	_ = bgop.Run(fns)
	return metaOK && dataOK
}

func (e *Engine) handleCreate(group []batch.Op) bool {
	b := e.meta.BatchStart("items", semantics.SafetyNetwork)
	includeStatus := e.sem.Concurrency() == semantics.ConcurrencyNone
	ops := make([]*CreateOp, len(group))
	for i, g := range group {
		ops[i] = g.(*CreateOp)
	}
	for _, op := range ops {
		doc, err := op.Item.MarshalMsg(nil, includeStatus)
		if err != nil {
			return false
		}
		b.Put(op.Item.Path(), doc)
	}
	ok, err := b.Execute()
	return err == nil && ok
}

func (e *Engine) handleGet(group []batch.Op) bool {
	ok := true
	for _, g := range group {
		op := g.(*GetOp)
		path := op.CollectionName + "/" + op.Name
		doc, err := e.meta.Get("items", path)
		if err != nil || doc == nil {
			ok = false
			continue
		}
		it, err := UnmarshalMsg(doc, nil)
		if err != nil {
			ok = false
			continue
		}
		*op.Out = it
	}
	return ok
}
