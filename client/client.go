// Package client is the top-level façade: load a configuration, wire up
// the connection pool, metadata backend, and item engine, and expose the
// batch-oriented API user code actually calls. Modeled on the teacher's
// cmd-level wiring (one constructor assembling every subsystem) collapsed
// into a library entry point since this repo has no daemon of its own.
package client

import (
	"github.com/julea-io/julea/batch"
	"github.com/julea-io/julea/cfg"
	"github.com/julea-io/julea/cmn/cos"
	"github.com/julea-io/julea/collection"
	"github.com/julea-io/julea/connpool"
	"github.com/julea-io/julea/creds"
	"github.com/julea-io/julea/distr"
	"github.com/julea-io/julea/item"
	"github.com/julea-io/julea/meta"
	"github.com/julea-io/julea/semantics"
	"github.com/julea-io/julea/stats"
)

// Client owns every long-lived resource: the connection pool, the metadata
// backend, and one item Engine per distinct Semantics a caller asks for
// (engines are cheap value-holders, so one per Semantics avoids re-deriving
// the handler map on every batch).
type Client struct {
	cfg     *cfg.Configuration
	pool    *connpool.Pool
	meta    meta.Backend
	stats   *stats.Stats
	engines map[semantics.Semantics]*item.Engine
}

// New loads configuration from path and wires every subsystem together.
func New(path string) (*Client, error) {
	c, err := cfg.Load(path)
	if err != nil {
		return nil, err
	}
	return newFromConfig(c)
}

// NewDefault wires a single-node, in-memory client, useful for tests and
// quick starts.
func NewDefault() (*Client, error) {
	return newFromConfig(cfg.Default())
}

func newFromConfig(c *cfg.Configuration) (*Client, error) {
	st := stats.Noop()
	pool := connpool.New(c, st)

	var backend meta.Backend
	switch c.MetaBackend {
	case cfg.MetaLocal:
		local, err := meta.OpenLocal(c.MetaPath)
		if err != nil {
			return nil, err
		}
		backend = local
	case cfg.MetaRemote:
		backend = meta.NewRemote(pool, 0)
	default:
		return nil, cos.NewErrInvalidArgument("unknown metadata backend %q", c.MetaBackend)
	}

	return &Client{
		cfg:     c,
		pool:    pool,
		meta:    backend,
		stats:   st,
		engines: make(map[semantics.Semantics]*item.Engine),
	}, nil
}

// Close tears down the connection pool and, if local, the metadata store.
func (c *Client) Close() error {
	c.pool.Close()
	if local, ok := c.meta.(*meta.Local); ok {
		return local.Close()
	}
	return nil
}

func (c *Client) engine(sem semantics.Semantics) *item.Engine {
	if e, ok := c.engines[sem]; ok {
		return e
	}
	e := item.NewEngine(c.cfg, c.pool, c.meta, c.stats, sem)
	c.engines[sem] = e
	return e
}

// NewBatch creates a batch dispatching item operations under sem.
func (c *Client) NewBatch(sem semantics.Semantics) *batch.Batch {
	return batch.New(c.engine(sem).Handlers())
}

// NewCollection creates a fresh collection identity (no network round
// trip — collections carry no membership list to persist, spec §3).
func (c *Client) NewCollection(name string) (*collection.Collection, error) {
	return collection.New(name)
}

// distributionFor builds a Distribution under c's configured default
// policy, appropriate for a freshly created item.
func (c *Client) distributionFor(seed uint64) *distr.Distribution {
	switch c.cfg.Default {
	case cfg.DistSingle:
		return distr.NewSingle(c.cfg.NumDataServers(), c.cfg.BlockSize, 0)
	case cfg.DistWeighted:
		weights := make([]uint32, c.cfg.NumDataServers())
		for i := range weights {
			weights[i] = 1
		}
		return distr.NewWeighted(c.cfg.NumDataServers(), c.cfg.BlockSize, seed, weights)
	default:
		return distr.NewRoundRobin(c.cfg.NumDataServers(), c.cfg.BlockSize, 0)
	}
}

// NewItem constructs a fresh item under coll, ready to be enqueued on a
// item.CreateOp. Credentials are minted fresh under key; production
// callers typically Parse an existing bearer token instead.
func (c *Client) NewItem(coll *collection.Collection, name, user, group string, key []byte) (*item.Item, error) {
	cr, err := creds.New(user, group, key)
	if err != nil {
		return nil, err
	}
	seed := pathSeed(coll.Name() + "/" + name)
	d := c.distributionFor(seed)
	return item.New(coll.ID(), coll.Name(), name, d, cr)
}

func pathSeed(path string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(path); i++ {
		h ^= uint64(path[i])
		h *= 1099511628211
	}
	return h
}
