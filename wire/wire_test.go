package wire_test

import (
	"net"
	"testing"

	"github.com/julea-io/julea/semantics"
	"github.com/julea-io/julea/wire"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	req := wire.New(wire.DataWrite, 0)
	req.SetSafety(semantics.SafetyNetwork)
	req.AppendString("coll/item")
	req.AddOperation()
	req.Append8(4)
	req.Append8(0)
	req.AttachSpan([]byte("ABCD"))
	req.SetCorrelation(0xabc)

	done := make(chan error, 1)
	go func() { done <- req.Send(client) }()

	got, err := wire.Receive(server)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.Kind() != wire.DataWrite {
		t.Fatalf("got kind %v, want DataWrite", got.Kind())
	}
	if got.Correlation() != 0xabc {
		t.Fatalf("got correlation %x, want abc", got.Correlation())
	}
	if got.Safety() != semantics.SafetyNetwork {
		t.Fatalf("got safety %v, want SafetyNetwork", got.Safety())
	}
	if path := got.GetString(); path != "coll/item" {
		t.Fatalf("got path %q, want coll/item", path)
	}
	if got.Count() != 1 {
		t.Fatalf("got op count %d, want 1", got.Count())
	}
	length := got.Get8()
	offset := got.Get8()
	if length != 4 || offset != 0 {
		t.Fatalf("got length=%d offset=%d, want 4,0", length, offset)
	}
	if string(got.GetN(4)) != "ABCD" {
		t.Fatalf("payload mismatch")
	}
	if got.Remaining() != 0 {
		t.Fatalf("expected body fully consumed, %d bytes remain", got.Remaining())
	}
}

func TestReplyMatchesRequestCorrelation(t *testing.T) {
	req := wire.New(wire.Ping, 0)
	req.SetCorrelation(99)

	reply := wire.NewReply(req)
	if reply.Correlation() != 99 || !reply.IsReply() || reply.Kind() != wire.Ping {
		t.Fatalf("reply not matched to request: %+v", reply)
	}
}

func TestForceSafetyOverridesBatchDefault(t *testing.T) {
	m := wire.New(wire.DataCreate, 0)
	m.SetSafety(semantics.SafetyNone)
	m.ForceSafety()
	if m.Safety() != semantics.SafetyNetwork {
		t.Fatalf("ForceSafety did not override batch default")
	}
}
