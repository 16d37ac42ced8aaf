package connpool_test

import (
	"net"
	"testing"

	"github.com/julea-io/julea/cfg"
	"github.com/julea-io/julea/connpool"
	"github.com/julea-io/julea/wire"
)

// startFakeServer accepts connections and answers every PING with an empty
// reply, just enough for connpool's dial handshake to complete.
func startFakeServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				for {
					req, err := wire.Receive(conn)
					if err != nil {
						return
					}
					reply := wire.NewReply(req)
					if err := reply.Send(conn); err != nil {
						return
					}
				}
			}()
		}
	}()
	return ln.Addr().String()
}

func newTestPool(t *testing.T, maxConns int) *connpool.Pool {
	t.Helper()
	addr := startFakeServer(t)
	c := cfg.Default()
	c.DataServers = []string{addr}
	c.MetaServers = []string{addr}
	c.MaxConnections = maxConns
	return connpool.New(c, nil)
}

func TestPopDialsFreshConnectionWhenIdleEmpty(t *testing.T) {
	pool := newTestPool(t, 4)
	conn, err := pool.PopData(0)
	if err != nil {
		t.Fatalf("PopData: %v", err)
	}
	defer conn.Close()
	if conn == nil {
		t.Fatal("expected a non-nil connection")
	}
}

func TestPushThenPopReusesConnection(t *testing.T) {
	pool := newTestPool(t, 4)
	conn, err := pool.PopData(0)
	if err != nil {
		t.Fatalf("PopData: %v", err)
	}
	pool.PushData(0, conn)

	reused, err := pool.PopData(0)
	if err != nil {
		t.Fatalf("PopData: %v", err)
	}
	if reused != conn {
		t.Fatal("expected the pushed connection to be reused rather than a fresh dial")
	}
	pool.PushData(0, reused)
}

func TestCloseDrainsIdleConnections(t *testing.T) {
	pool := newTestPool(t, 4)
	conn, err := pool.PopData(0)
	if err != nil {
		t.Fatalf("PopData: %v", err)
	}
	pool.PushData(0, conn)
	pool.Close()
}
