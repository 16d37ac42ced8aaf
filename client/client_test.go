package client_test

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/julea-io/julea/batch"
	"github.com/julea-io/julea/cfg"
	"github.com/julea-io/julea/client"
	"github.com/julea-io/julea/item"
	"github.com/julea-io/julea/semantics"
	"github.com/julea-io/julea/wire"
)

// fakeDataServer is just enough of the wire protocol (spec §6) to exercise
// a client write/read/delete round trip: one in-memory byte slice per item
// path, grown on write and sliced on read.
type fakeDataServer struct {
	mu    sync.Mutex
	files map[string][]byte
}

func startFakeDataServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	srv := &fakeDataServer{files: make(map[string][]byte)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn)
		}
	}()
	return ln.Addr().String()
}

func (s *fakeDataServer) serve(conn net.Conn) {
	defer conn.Close()
	for {
		req, err := wire.Receive(conn)
		if err != nil {
			return
		}
		switch req.Kind() {
		case wire.Ping:
			if err := wire.NewReply(req).Send(conn); err != nil {
				return
			}
		case wire.DataCreate:
			_ = req.GetString()
			if req.Safety() != semantics.SafetyNone {
				if err := wire.NewReply(req).Send(conn); err != nil {
					return
				}
			}
		case wire.DataWrite:
			path := req.GetString()
			acked := make([]uint64, 0, req.Count())
			s.mu.Lock()
			buf := s.files[path]
			for i := 0; i < req.Count(); i++ {
				length := req.Get8()
				offset := req.Get8()
				data := req.GetN(int(length))
				end := int(offset) + int(length)
				if end > len(buf) {
					grown := make([]byte, end)
					copy(grown, buf)
					buf = grown
				}
				copy(buf[offset:end], data)
				acked = append(acked, length)
			}
			s.files[path] = buf
			s.mu.Unlock()

			if req.Safety() != semantics.SafetyNone {
				reply := wire.NewReply(req)
				for _, n := range acked {
					reply.AddOperation()
					reply.Append8(n)
				}
				if err := reply.Send(conn); err != nil {
					return
				}
			}
		case wire.DataRead:
			path := req.GetString()
			s.mu.Lock()
			buf := s.files[path]
			s.mu.Unlock()

			reply := wire.NewReply(req)
			for i := 0; i < req.Count(); i++ {
				length := req.Get8()
				offset := req.Get8()
				var chunk []byte
				if int(offset) < len(buf) {
					end := int(offset) + int(length)
					if end > len(buf) {
						end = len(buf)
					}
					chunk = buf[offset:end]
				}
				reply.AddOperation()
				reply.Append8(uint64(len(chunk)))
				reply.AttachSpan(chunk)
			}
			if err := reply.Send(conn); err != nil {
				return
			}
		case wire.DataDelete:
			for i := 0; i < req.Count(); i++ {
				path := req.GetString()
				s.mu.Lock()
				delete(s.files, path)
				s.mu.Unlock()
			}
			// no reply: the write engine doesn't wait on deletes either.
		case wire.DataStatus:
			path := req.GetString()
			_ = req.Get4()
			s.mu.Lock()
			buf := s.files[path]
			s.mu.Unlock()
			reply := wire.NewReply(req)
			reply.Append8(0)
			reply.Append8(uint64(len(buf)))
			if err := reply.Send(conn); err != nil {
				return
			}
		default:
			return
		}
	}
}

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	addr := startFakeDataServer(t)

	c := cfg.Default()
	c.DataServers = []string{addr}
	c.BlockSize = 64

	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	raw, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cl, err := client.New(path)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	t.Cleanup(func() { _ = cl.Close() })
	return cl
}

func TestCreateWriteReadDeleteRoundTrip(t *testing.T) {
	cl := newTestClient(t)
	sem := semantics.Default()

	coll, err := cl.NewCollection("mycollection")
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	it, err := cl.NewItem(coll, "myitem", "alice", "staff", []byte("key"))
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}

	b := cl.NewBatch(sem)
	b.Add(&item.CreateOp{Item: it})
	if !b.Execute() {
		t.Fatal("create batch failed")
	}

	want := []byte("hello world")
	wop := &item.WriteOp{Item: it, Buf: want, Offset: 0}
	b = cl.NewBatch(sem)
	b.Add(wop)
	if !b.Execute() {
		t.Fatal("write batch failed")
	}
	if wop.BytesWritten != uint64(len(want)) {
		t.Fatalf("got BytesWritten=%d, want %d", wop.BytesWritten, len(want))
	}

	got := make([]byte, len(want))
	rop := &item.ReadOp{Item: it, Buf: got, Offset: 0}
	b = cl.NewBatch(sem)
	b.Add(rop)
	if !b.Execute() {
		t.Fatal("read batch failed")
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if rop.BytesRead != uint64(len(want)) {
		t.Fatalf("got BytesRead=%d, want %d", rop.BytesRead, len(want))
	}

	b = cl.NewBatch(sem)
	b.Add(&item.DeleteOp{Item: it})
	if !b.Execute() {
		t.Fatal("delete batch failed")
	}
}

func TestGetMissReturnsFalseOutcome(t *testing.T) {
	cl := newTestClient(t)
	sem := semantics.Default()

	var out *item.Item
	b := cl.NewBatch(sem)
	b.Add(&item.GetOp{CollectionName: "nosuchcollection", Name: "nosuchitem", Out: &out})
	if b.Execute() {
		t.Fatal("expected Execute to report failure for a missing item")
	}
	if out != nil {
		t.Fatal("expected Out to stay nil on a miss")
	}
}

func TestWriteUnderSafetyNoneSkipsReplyWait(t *testing.T) {
	cl := newTestClient(t)
	sem := semantics.Default().WithSafety(semantics.SafetyNone).WithAtomicity(semantics.AtomicityNone)

	coll, err := cl.NewCollection("nosync")
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	it, err := cl.NewItem(coll, "item1", "alice", "staff", []byte("key"))
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}

	b := cl.NewBatch(sem)
	b.Add(&item.CreateOp{Item: it})
	if !b.Execute() {
		t.Fatal("create batch failed")
	}

	wop := &item.WriteOp{Item: it, Buf: []byte("abc"), Offset: 0}
	b = cl.NewBatch(sem)
	b.Add(wop)
	if !b.Execute() {
		t.Fatal("write batch failed")
	}
	if wop.BytesWritten != 0 {
		t.Fatalf("got BytesWritten=%d under SafetyNone, want 0 (no reply requested)", wop.BytesWritten)
	}
}
