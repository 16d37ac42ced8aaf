// Package oid implements the item/collection object identity: a 12-byte id
// in the classic {4-byte seconds}{5-byte random machine/process salt}
// {3-byte counter} layout (spec §3's "opaque 12-byte object id"). No pack
// dependency produces this exact shape — see DESIGN.md — so this is one of
// the few hand-rolled pieces, kept deliberately small.
package oid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"
)

const Size = 12

// ID is comparable and safe to use as a map key.
type ID [Size]byte

var (
	machineSalt [5]byte
	counter     atomic.Uint32
)

func init() {
	_, _ = rand.Read(machineSalt[:])
	var seed [3]byte
	_, _ = rand.Read(seed[:])
	counter.Store(uint32(seed[0])<<16 | uint32(seed[1])<<8 | uint32(seed[2]))
}

// New allocates a fresh id. Monotonic within a process, globally unique
// across processes with overwhelming probability (random machine salt).
func New() ID {
	var id ID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	copy(id[4:9], machineSalt[:])
	c := counter.Add(1)
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}

func (id ID) IsZero() bool { return id == ID{} }

func (id ID) String() string { return hex.EncodeToString(id[:]) }

func (id ID) Bytes() []byte { b := make([]byte, Size); copy(b, id[:]); return b }

// FromBytes copies exactly Size bytes into a new ID; panics on wrong length
// since this is only ever called against our own serialized documents.
func FromBytes(b []byte) ID {
	if len(b) != Size {
		panic("oid: invalid length")
	}
	var id ID
	copy(id[:], b)
	return id
}
