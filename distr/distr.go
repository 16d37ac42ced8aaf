// Package distr implements the distribution iterator (spec §4.3, C3): a
// pure function turning (length, offset) into a sequence of
// (server_index, chunk_length, chunk_offset, block_id) tuples. Block-
// boundary math is common to every policy; only server selection differs,
// so the policy is a Kind value that Distribution switches on inside the
// shared chunking loop. Grounded on spec §4.3's explicit round-robin formula;
// original_source/ carries no distribution.c to ground against, so the
// weighted policy is this repo's own additive design, recorded as an
// Open Question decision in DESIGN.md.
package distr

import (
	"github.com/OneOfOne/xxhash"

	"github.com/julea-io/julea/cmn/cos"
)

type Kind uint8

const (
	RoundRobin Kind = iota
	Single
	Weighted
)

// Chunk is one emitted unit of work: write chunk_length bytes to Server at
// server-local byte offset ChunkOffset (the position within that server's
// own per-item byte range, not within the current global block), belonging
// to BlockID for locking purposes.
type Chunk struct {
	Server      int
	ChunkLength uint64
	ChunkOffset uint64
	BlockID     uint64
}

// Distribution is immutable policy configuration plus the handful of
// parameters each policy needs. It carries no per-call iteration state;
// Reset/Iterator produce that fresh every time (spec §4.3: "stateful
// iteration context is created per call and not shared").
type Distribution struct {
	kind       Kind
	numServers int
	blockSize  uint64
	startIndex int    // round-robin: server index offset applied before modulo
	fixed      int    // single: the one server index used for every chunk
	seed       uint64 // weighted: stable per-item hash input (item path hash)
	weights    []uint32
}

func NewRoundRobin(numServers int, blockSize uint64, startIndex int) *Distribution {
	cos.Assertf(numServers > 0, "distr: numServers must be > 0")
	cos.Assertf(blockSize > 0, "distr: blockSize must be > 0")
	return &Distribution{kind: RoundRobin, numServers: numServers, blockSize: blockSize, startIndex: startIndex}
}

func NewSingle(numServers int, blockSize uint64, fixed int) *Distribution {
	cos.Assertf(fixed >= 0 && fixed < numServers, "distr: fixed server out of range")
	return &Distribution{kind: Single, numServers: numServers, blockSize: blockSize, fixed: fixed}
}

// NewWeighted selects a server per block via a hash of (seed, block_id)
// against a cumulative weight table, so hotter servers (larger weight) get
// proportionally more blocks while remaining deterministic for a given item.
func NewWeighted(numServers int, blockSize uint64, seed uint64, weights []uint32) *Distribution {
	cos.Assertf(len(weights) == numServers, "distr: one weight per server required")
	return &Distribution{kind: Weighted, numServers: numServers, blockSize: blockSize, seed: seed, weights: weights}
}

func (d *Distribution) Kind() Kind        { return d.kind }
func (d *Distribution) NumServers() int   { return d.numServers }
func (d *Distribution) BlockSize() uint64 { return d.blockSize }

// server picks the server index for blockID under this policy.
func (d *Distribution) server(blockID uint64) int {
	switch d.kind {
	case Single:
		return d.fixed
	case Weighted:
		return weightedServer(d.seed, blockID, d.weights)
	default: // RoundRobin
		return (d.startIndex + int(blockID)) % d.numServers
	}
}

// round reports how many times blockID has previously landed on its own
// server, i.e. the server-local "round number" that ChunkOffset's block
// component is measured in. RoundRobin visits every server exactly once
// per numServers consecutive blocks, so the round is a plain division;
// Single sees every block, so its round is the block id itself; Weighted
// has no periodic structure, so its round is the count of prior blocks
// that hashed to the same server.
func (d *Distribution) round(blockID uint64) uint64 {
	switch d.kind {
	case Single:
		return blockID
	case Weighted:
		return weightedRound(d.seed, blockID, d.weights)
	default: // RoundRobin
		return blockID / uint64(d.numServers)
	}
}

func weightedServer(seed, blockID uint64, weights []uint32) int {
	var total uint64
	for _, w := range weights {
		total += uint64(w)
	}
	if total == 0 {
		return int(blockID) % len(weights)
	}
	h := xxhash.New64()
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(seed >> (8 * i))
		buf[8+i] = byte(blockID >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	target := h.Sum64() % total

	var acc uint64
	for i, w := range weights {
		acc += uint64(w)
		if target < acc {
			return i
		}
	}
	return len(weights) - 1
}

// weightedRound counts how many of blocks [0, blockID) hashed to the same
// server as blockID itself, giving the server-local round number. Weighted
// has no closed-form periodicity (unlike RoundRobin's fixed-stride cycle),
// so this replays server selection for every prior block; callers only
// pay this O(blockID) cost when writing or reading the Weighted policy's
// later rounds on a given server.
func weightedRound(seed, blockID uint64, weights []uint32) uint64 {
	target := weightedServer(seed, blockID, weights)
	var round uint64
	for b := uint64(0); b < blockID; b++ {
		if weightedServer(seed, b, weights) == target {
			round++
		}
	}
	return round
}

// Iterator walks (length, offset) emitting one Chunk per (server, block)
// boundary crossed. Truncation at block boundaries is the invariant shared
// by every policy (spec §4.3's "no chunk crosses a block boundary").
type Iterator struct {
	d         *Distribution
	remaining uint64
	offset    uint64
}

// Reset begins a fresh iteration over [offset, offset+length).
func (d *Distribution) Reset(length, offset uint64) *Iterator {
	return &Iterator{d: d, remaining: length, offset: offset}
}

// Next yields the next chunk, or ok=false once the range is consumed.
func (it *Iterator) Next() (Chunk, bool) {
	if it.remaining == 0 {
		return Chunk{}, false
	}
	b := it.d.blockSize
	blockID := it.offset / b
	blockStart := blockID * b
	withinBlock := it.offset - blockStart
	avail := b - withinBlock
	n := it.remaining
	if n > avail {
		n = avail
	}

	c := Chunk{
		Server:      it.d.server(blockID),
		ChunkLength: n,
		ChunkOffset: it.d.round(blockID)*b + withinBlock,
		BlockID:     blockID,
	}

	it.offset += n
	it.remaining -= n
	return c, true
}
