package meta_test

import (
	"testing"

	"github.com/julea-io/julea/meta"
	"github.com/julea-io/julea/semantics"
)

func TestGetMissReturnsNilNil(t *testing.T) {
	backend, err := meta.OpenLocal(":memory:")
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	defer backend.Close()

	doc, err := backend.Get("items", "coll/missing")
	if err != nil || doc != nil {
		t.Fatalf("expected nil, nil on a miss, got doc=%v err=%v", doc, err)
	}
}

func TestPutThenGetRoundTrip(t *testing.T) {
	backend, err := meta.OpenLocal(":memory:")
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	defer backend.Close()

	b := backend.BatchStart("items", semantics.SafetyNetwork)
	b.Put("coll/a", []byte("hello"))
	ok, err := b.Execute()
	if err != nil || !ok {
		t.Fatalf("put failed: ok=%v err=%v", ok, err)
	}

	doc, err := backend.Get("items", "coll/a")
	if err != nil || string(doc) != "hello" {
		t.Fatalf("got doc=%q err=%v, want \"hello\"", doc, err)
	}
}

func TestDuplicatePutFailsThatOp(t *testing.T) {
	backend, err := meta.OpenLocal(":memory:")
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	defer backend.Close()

	b1 := backend.BatchStart("locks", semantics.SafetyNetwork)
	b1.Put("coll/item/0", nil)
	if ok, err := b1.Execute(); err != nil || !ok {
		t.Fatalf("first put should succeed: ok=%v err=%v", ok, err)
	}

	b2 := backend.BatchStart("locks", semantics.SafetyNetwork)
	b2.Put("coll/item/0", nil)
	if ok, err := b2.Execute(); err != nil || ok {
		t.Fatalf("duplicate put should fail: ok=%v err=%v", ok, err)
	}
}

func TestDeleteThenGetMisses(t *testing.T) {
	backend, err := meta.OpenLocal(":memory:")
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	defer backend.Close()

	b := backend.BatchStart("items", semantics.SafetyNetwork)
	b.Put("coll/a", []byte("x"))
	if ok, _ := b.Execute(); !ok {
		t.Fatal("setup put failed")
	}

	d := backend.BatchStart("items", semantics.SafetyNetwork)
	d.Delete("coll/a")
	if ok, err := d.Execute(); err != nil || !ok {
		t.Fatalf("delete failed: ok=%v err=%v", ok, err)
	}

	doc, _ := backend.Get("items", "coll/a")
	if doc != nil {
		t.Fatal("expected a miss after delete")
	}
}
