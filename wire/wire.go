// Package wire implements the length-prefixed message codec framing every
// request and reply between the client and a data/metadata server (spec
// §4.1, §6). Grounded on original_source/lib/jmessage.c's header-plus-body
// layout; the send-side append API and net.Buffers.WriteTo atomic vectored
// write are modeled on the teacher's transport package (sendmsg.go), which
// builds up a scatter-gather send from header plus payload spans rather than
// copying into one buffer.
package wire

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/julea-io/julea/cmn/cos"
	"github.com/julea-io/julea/semantics"
)

type Kind uint8

const (
	Ping Kind = iota
	MetaGet
	MetaCreate
	MetaDelete
	DataCreate
	DataDelete
	DataRead
	DataWrite
	DataStatus
)

const (
	Version    = 1
	HeaderSize = 1 + 1 + 2 + 4 + 4 + 8 // version, kind, flags, bodyLen, opCount, correlation

	flagIsReply = 1 << 0
)

// safety shift within the 2-byte flags field: bits 1-2 hold a semantics.Safety.
const safetyShift = 1

// Message is both the send-side builder and the receive-side reader. A
// freshly constructed Message (New) is write-only; one produced by Receive
// is read-only.
type Message struct {
	version     uint8
	kind        Kind
	safety      semantics.Safety
	isReply     bool
	correlation uint64

	// send side: segments are sent in exact append order (interleaved with
	// AttachSpan calls), since spec §6 lays sub-operation payloads directly
	// after that sub-operation's length/offset fields rather than grouping
	// all payloads at the end.
	opCount  int
	segments [][]byte

	// receive side
	raw    []byte
	cursor int
}

// New allocates an empty request message of the given kind. A positive
// sizeHint pre-allocates room for a few segments; its value is not
// otherwise used.
func New(kind Kind, sizeHint int) *Message {
	m := &Message{version: Version, kind: kind}
	if sizeHint > 0 {
		m.segments = make([][]byte, 0, 4)
	}
	return m
}

func (m *Message) Kind() Kind                   { return m.kind }
func (m *Message) IsReply() bool                { return m.isReply }
func (m *Message) Correlation() uint64          { return m.correlation }
func (m *Message) Safety() semantics.Safety     { return m.safety }
func (m *Message) SetCorrelation(id uint64)     { m.correlation = id }

// SetSafety records the batch-level safety default for this message.
func (m *Message) SetSafety(s semantics.Safety) { m.safety = s }

// ForceSafety overrides the batch default for this one message, independent
// of the semantics the caller otherwise requested. Used by the item write
// engine's lazy DATA_CREATE (spec §4.7): the create must get a synchronous
// reply even under SafetyNone so the following write can't race it.
func (m *Message) ForceSafety() { m.safety = semantics.SafetyNetwork }

// Append appends a raw byte segment, copying it into the message's own
// backing storage.
func (m *Message) Append(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	m.segments = append(m.segments, cp)
}

// AppendString appends a length-prefixed (u32) UTF-8 string.
func (m *Message) AppendString(s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	m.Append(lenBuf[:])
	m.Append([]byte(s))
}

// Append4 appends a little-endian uint32.
func (m *Message) Append4(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.Append(b[:])
}

// Append8 appends a little-endian uint64.
func (m *Message) Append8(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	m.Append(b[:])
}

// AddOperation records the start of one more sub-operation; every Append*
// call between two AddOperation calls (or up to Send) belongs to the
// current sub-operation.
func (m *Message) AddOperation() { m.opCount++ }

// AttachSpan appends a user-owned byte slice by reference, at its exact
// position in the append sequence: Send writes it via net.Buffers without
// copying. The caller must not mutate the span until Send returns.
func (m *Message) AttachSpan(b []byte) { m.segments = append(m.segments, b) }

func (m *Message) bodyLen() int {
	n := 0
	for _, b := range m.segments {
		n += len(b)
	}
	return n
}

// Send writes the header followed by every appended segment and attached
// span, in exact declaration order, as a single vectored write. A short
// write fails the message; the connection must be considered invalid and
// not returned to the pool.
func (m *Message) Send(conn net.Conn) error {
	hdr := make([]byte, HeaderSize)
	hdr[0] = m.version
	hdr[1] = byte(m.kind)
	flags := uint16(m.safety) << safetyShift
	if m.isReply {
		flags |= flagIsReply
	}
	binary.LittleEndian.PutUint16(hdr[2:4], flags)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(m.bodyLen()))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(m.opCount))
	binary.LittleEndian.PutUint64(hdr[12:20], m.correlation)

	bufs := make(net.Buffers, 0, 1+len(m.segments))
	bufs = append(bufs, hdr)
	bufs = append(bufs, m.segments...)

	n, err := bufs.WriteTo(conn)
	if err != nil {
		return cos.NewErrNetwork("send", err)
	}
	want := int64(HeaderSize + m.bodyLen())
	if n != want {
		return cos.NewErrNetwork("send", io.ErrShortWrite)
	}
	return nil
}

// NewReply builds an empty reply message matched to req's kind and
// correlation id, ready to be appended to and sent back.
func NewReply(req *Message) *Message {
	return &Message{
		version:     Version,
		kind:        req.kind,
		isReply:     true,
		correlation: req.correlation,
	}
}

// Receive reads one full message (header then exactly body_length bytes)
// from conn. Partial reads are looped internally via io.ReadFull; EOF before
// completion is reported as a network error.
func Receive(conn net.Conn) (*Message, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return nil, cos.NewErrNetwork("receive header", err)
	}
	version := hdr[0]
	kind := Kind(hdr[1])
	flags := binary.LittleEndian.Uint16(hdr[2:4])
	bodyLen := binary.LittleEndian.Uint32(hdr[4:8])
	opCount := binary.LittleEndian.Uint32(hdr[8:12])
	correlation := binary.LittleEndian.Uint64(hdr[12:20])

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(conn, body); err != nil {
			return nil, cos.NewErrNetwork("receive body", err)
		}
	}

	return &Message{
		version:     version,
		kind:        kind,
		safety:      semantics.Safety(flags >> safetyShift & 0x3),
		isReply:     flags&flagIsReply != 0,
		correlation: correlation,
		opCount:     int(opCount),
		raw:         body,
	}, nil
}

// Count returns the sub-operation count recorded in the header.
func (m *Message) Count() int { return m.opCount }

// Get4 reads the next little-endian uint32 from the read cursor.
func (m *Message) Get4() uint32 {
	v := binary.LittleEndian.Uint32(m.raw[m.cursor : m.cursor+4])
	m.cursor += 4
	return v
}

// Get8 reads the next little-endian uint64 from the read cursor.
func (m *Message) Get8() uint64 {
	v := binary.LittleEndian.Uint64(m.raw[m.cursor : m.cursor+8])
	m.cursor += 8
	return v
}

// GetN reads the next n raw bytes. The returned slice aliases the message's
// internal buffer and must be copied by the caller if retained past the
// message's lifetime.
func (m *Message) GetN(n int) []byte {
	b := m.raw[m.cursor : m.cursor+n]
	m.cursor += n
	return b
}

// GetString reads a length-prefixed (u32) UTF-8 string.
func (m *Message) GetString() string {
	n := m.Get4()
	return string(m.GetN(int(n)))
}

// Remaining reports how many unread bytes are left in the body.
func (m *Message) Remaining() int { return len(m.raw) - m.cursor }
