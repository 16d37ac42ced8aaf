package dlock_test

import (
	"testing"

	"github.com/julea-io/julea/dlock"
	"github.com/julea-io/julea/meta"
)

func newBackend(t *testing.T) *meta.Local {
	t.Helper()
	backend, err := meta.OpenLocal(":memory:")
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestAcquireThenReleaseAllowsReacquire(t *testing.T) {
	backend := newBackend(t)

	l1 := dlock.New(backend, nil, "coll/item")
	l1.Add(0)
	l1.Add(1)
	ok, err := l1.Acquire()
	if err != nil || !ok {
		t.Fatalf("first acquire should succeed: ok=%v err=%v", ok, err)
	}

	l2 := dlock.New(backend, nil, "coll/item")
	l2.Add(0)
	if ok, _ := l2.Acquire(); ok {
		t.Fatal("second lock should not acquire an already-held block")
	}

	if ok, err := l1.Release(); err != nil || !ok {
		t.Fatalf("release should succeed: ok=%v err=%v", ok, err)
	}

	if ok, err := l2.Acquire(); err != nil || !ok {
		t.Fatalf("reacquire after release should succeed: ok=%v err=%v", ok, err)
	}
}

func TestDisjointBlocksBothAcquire(t *testing.T) {
	backend := newBackend(t)

	l1 := dlock.New(backend, nil, "coll/item")
	l1.Add(0)
	l2 := dlock.New(backend, nil, "coll/item")
	l2.Add(1)

	ok1, err1 := l1.Acquire()
	ok2, err2 := l2.Acquire()
	if err1 != nil || err2 != nil || !ok1 || !ok2 {
		t.Fatalf("disjoint blocks should both acquire: ok1=%v ok2=%v err1=%v err2=%v", ok1, ok2, err1, err2)
	}
}

func TestDropReleasesAnAcquiredLock(t *testing.T) {
	backend := newBackend(t)

	l1 := dlock.New(backend, nil, "coll/item")
	l1.Add(5)
	if ok, err := l1.Acquire(); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	l1.Drop()

	l2 := dlock.New(backend, nil, "coll/item")
	l2.Add(5)
	if ok, err := l2.Acquire(); err != nil || !ok {
		t.Fatal("Drop should have released the block for reacquisition")
	}
}
