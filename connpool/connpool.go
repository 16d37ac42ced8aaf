// Package connpool implements the bounded, per-server connection pools
// (spec §4.2, C2). Grounded on original_source/lib/jconnection-pool.c:
// one queue per data server and one per metadata server, each with an
// atomic outstanding-connection counter; pop tries the queue first, then
// dials a fresh connection if under the per-server cap, else blocks on the
// queue. A freshly dialed connection is handshaken with a PING before it's
// handed back, mirroring the C pool's PING-and-drain-backend-names step.
package connpool

import (
	"net"
	"sync/atomic"

	"github.com/julea-io/julea/cfg"
	"github.com/julea-io/julea/cmn/cos"
	"github.com/julea-io/julea/cmn/nlog"
	"github.com/julea-io/julea/stats"
	"github.com/julea-io/julea/wire"
)

const defaultPort = "4711"

// dialAddr appends the default port (spec §6) unless server already names
// one, so tests can point at an ephemeral listener via "host:port".
func dialAddr(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, defaultPort)
}

type queue struct {
	ch          chan net.Conn
	outstanding atomic.Int32
	server      string
}

func newQueue(server string, max int) *queue {
	return &queue{ch: make(chan net.Conn, max), server: server}
}

// Pool owns one queue per configured data server and one per metadata
// server. It never closes idle connections on its own; Close tears
// everything down at shutdown.
type Pool struct {
	cfg   *cfg.Configuration
	stats *stats.Stats
	data  []*queue
	meta  []*queue
}

func New(c *cfg.Configuration, st *stats.Stats) *Pool {
	p := &Pool{cfg: c, stats: st}
	p.data = make([]*queue, c.NumDataServers())
	for i := range p.data {
		p.data[i] = newQueue(c.DataServer(i), c.NumConnections())
	}
	p.meta = make([]*queue, c.NumMetaServers())
	for i := range p.meta {
		p.meta[i] = newQueue(c.MetaServer(i), c.NumConnections())
	}
	return p
}

// PopData borrows a connection to data server index, dialing one if the
// pool has spare capacity and none is idle.
func (p *Pool) PopData(index int) (net.Conn, error) { return p.pop(p.data[index]) }

// PushData returns a connection to data server index's idle queue.
func (p *Pool) PushData(index int, conn net.Conn) { p.push(p.data[index], conn) }

// PopMeta borrows a connection to metadata server index.
func (p *Pool) PopMeta(index int) (net.Conn, error) { return p.pop(p.meta[index]) }

// PushMeta returns a connection to metadata server index's idle queue.
func (p *Pool) PushMeta(index int, conn net.Conn) { p.push(p.meta[index], conn) }

// DropData discards a connection to data server index without returning it
// to the queue (spec §7: a failed send/receive invalidates the connection)
// and frees its slot so a future pop may dial a replacement.
func (p *Pool) DropData(index int, conn net.Conn) {
	_ = conn.Close()
	p.data[index].outstanding.Add(-1)
}

// DropMeta is DropData's counterpart for a metadata-server index.
func (p *Pool) DropMeta(index int, conn net.Conn) {
	_ = conn.Close()
	p.meta[index].outstanding.Add(-1)
}

func (p *Pool) pop(q *queue) (net.Conn, error) {
	select {
	case c := <-q.ch:
		p.gauge(q, -1, 1)
		return c, nil
	default:
	}

	max := int32(p.cfg.NumConnections())
	for {
		n := q.outstanding.Load()
		if n >= max {
			break
		}
		if q.outstanding.CompareAndSwap(n, n+1) {
			conn, err := p.dial(q.server)
			if err != nil {
				q.outstanding.Add(-1)
				nlog.Warningf("connpool: dial %s failed: %v", q.server, err)
				break
			}
			p.gauge(q, 0, 1)
			return conn, nil
		}
	}

	// at capacity: block for whichever connection is returned first
	c := <-q.ch
	p.gauge(q, -1, 1)
	return c, nil
}

func (p *Pool) push(q *queue, conn net.Conn) {
	q.ch <- conn
	p.gauge(q, 1, -1)
}

func (p *Pool) gauge(q *queue, deltaIdle, deltaInUse int) {
	if p.stats == nil {
		return
	}
	if deltaIdle != 0 {
		p.stats.ConnIdle.WithLabelValues(q.server).Add(float64(deltaIdle))
	}
	if deltaInUse != 0 {
		p.stats.ConnInUse.WithLabelValues(q.server).Add(float64(deltaInUse))
	}
}

// dial connects, disables Nagle, and performs the PING handshake described
// in spec §6: the reply's sub-operations name the backends the server
// exposes ("data", "meta", ...). The client doesn't act on the names today;
// draining them off the wire keeps the framing correct for future servers
// that refuse connections lacking a matching backend.
func (p *Pool) dial(server string) (net.Conn, error) {
	conn, err := net.Dial("tcp", dialAddr(server))
	if err != nil {
		return nil, cos.NewErrNetwork("dial "+server, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	ping := wire.New(wire.Ping, 0)
	if err := ping.Send(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	reply, err := wire.Receive(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	for i := 0; i < reply.Count(); i++ {
		_ = reply.GetString()
	}
	return conn, nil
}

// Close drains and closes every idle connection in every queue. Connections
// borrowed at that moment are not tracked: one pushed back after Close sits
// in its queue unclosed.
func (p *Pool) Close() {
	for _, q := range p.data {
		drain(q)
	}
	for _, q := range p.meta {
		drain(q)
	}
}

func drain(q *queue) {
	for {
		select {
		case c := <-q.ch:
			_ = c.Close()
		default:
			return
		}
	}
}
