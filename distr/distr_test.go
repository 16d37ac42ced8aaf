package distr_test

import (
	"testing"

	"github.com/julea-io/julea/distr"
)

func sumAndCheckBoundaries(t *testing.T, d *distr.Distribution, length, offset uint64) uint64 {
	t.Helper()
	it := d.Reset(length, offset)
	var sum uint64
	for {
		c, ok := it.Next()
		if !ok {
			break
		}
		withinBlock := c.ChunkOffset % d.BlockSize()
		if withinBlock+c.ChunkLength > d.BlockSize() {
			t.Fatalf("chunk [%d, %d) crosses block boundary %d", withinBlock, withinBlock+c.ChunkLength, d.BlockSize())
		}
		sum += c.ChunkLength
	}
	if sum != length {
		t.Fatalf("stripe conservation violated: got %d, want %d", sum, length)
	}
	return sum
}

func TestRoundRobinStripeConservation(t *testing.T) {
	cases := []struct {
		length, offset uint64
	}{
		{8, 0}, {5, 1}, {4, 0}, {1, 3}, {100, 17}, {4096, 4095},
	}
	d := distr.NewRoundRobin(2, 4, 0)
	for _, c := range cases {
		sumAndCheckBoundaries(t, d, c.length, c.offset)
	}
}

func TestRoundRobinServerAssignment(t *testing.T) {
	// S1 from the scenario catalogue: N=2, B=4, write 8 bytes at offset 0.
	d := distr.NewRoundRobin(2, 4, 0)
	it := d.Reset(8, 0)

	c0, ok := it.Next()
	if !ok || c0.Server != 0 || c0.ChunkLength != 4 || c0.BlockID != 0 {
		t.Fatalf("unexpected first chunk: %+v", c0)
	}
	c1, ok := it.Next()
	if !ok || c1.Server != 1 || c1.ChunkLength != 4 || c1.BlockID != 1 {
		t.Fatalf("unexpected second chunk: %+v", c1)
	}
	if _, ok := it.Next(); ok {
		t.Fatal("expected iteration to terminate after 8 bytes")
	}
}

func TestSinglePolicyAlwaysSameServer(t *testing.T) {
	d := distr.NewSingle(4, 64, 2)
	it := d.Reset(200, 10)
	for {
		c, ok := it.Next()
		if !ok {
			break
		}
		if c.Server != 2 {
			t.Fatalf("single policy emitted chunk on server %d, want 2", c.Server)
		}
	}
}

func TestWeightedStripeConservation(t *testing.T) {
	d := distr.NewWeighted(3, 8, 0xdeadbeef, []uint32{1, 2, 1})
	sumAndCheckBoundaries(t, d, 1000, 3)
}

func TestWeightedDeterministic(t *testing.T) {
	d1 := distr.NewWeighted(3, 8, 42, []uint32{1, 1, 1})
	d2 := distr.NewWeighted(3, 8, 42, []uint32{1, 1, 1})

	it1, it2 := d1.Reset(64, 0), d2.Reset(64, 0)
	for {
		c1, ok1 := it1.Next()
		c2, ok2 := it2.Next()
		if ok1 != ok2 {
			t.Fatalf("iterators disagree on termination")
		}
		if !ok1 {
			break
		}
		if c1 != c2 {
			t.Fatalf("same seed produced different chunks: %+v vs %+v", c1, c2)
		}
	}
}

// TestServerLocalOffsetsAscendAcrossRounds covers an item spanning more
// than one round per server (length > numServers*blockSize): every chunk
// landing on the same server must carry a distinct, strictly ascending
// ChunkOffset, since a data server indexes its own per-item storage by
// that offset directly (client.fakeDataServer's DataWrite handler does
// copy(buf[offset:end], data)). Regression test for the bug where
// ChunkOffset reset to [0,B) every block instead of accumulating per
// server-local round.
func TestServerLocalOffsetsAscendAcrossRounds(t *testing.T) {
	const numServers = 2
	const blockSize = 4
	d := distr.NewRoundRobin(numServers, blockSize, 0)

	// Three rounds per server: 2 servers * blockSize * 3 rounds.
	length := uint64(numServers * blockSize * 3)
	it := d.Reset(length, 0)

	lastOffset := make(map[int]uint64)
	seen := make(map[int]map[uint64]bool)
	for {
		c, ok := it.Next()
		if !ok {
			break
		}
		if seen[c.Server] == nil {
			seen[c.Server] = make(map[uint64]bool)
		}
		if seen[c.Server][c.ChunkOffset] {
			t.Fatalf("server %d saw duplicate ChunkOffset %d", c.Server, c.ChunkOffset)
		}
		seen[c.Server][c.ChunkOffset] = true

		if prev, ok := lastOffset[c.Server]; ok && c.ChunkOffset <= prev {
			t.Fatalf("server %d: ChunkOffset %d did not ascend past previous %d", c.Server, c.ChunkOffset, prev)
		}
		lastOffset[c.Server] = c.ChunkOffset
	}

	for s := 0; s < numServers; s++ {
		if len(seen[s]) != 3 {
			t.Fatalf("server %d: expected 3 distinct chunk offsets, got %d", s, len(seen[s]))
		}
	}
}

func TestZeroLengthYieldsNoChunks(t *testing.T) {
	d := distr.NewRoundRobin(2, 4, 0)
	it := d.Reset(0, 0)
	if _, ok := it.Next(); ok {
		t.Fatal("zero-length range should yield no chunks")
	}
}
