// Binary document (de)serialization for the "distribution" sub-document
// persisted alongside every item (spec §6's persisted metadata shape).
// Hand-written against tinylib/msgp's append-style helpers rather than
// generated code, since Distribution's shape is small and fixed.
package distr

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/julea-io/julea/cmn/cos"
)

// MarshalMsg appends the msgpack encoding of d to b and returns the result.
func (d *Distribution) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, 7)
	o = msgp.AppendString(o, "kind")
	o = msgp.AppendUint8(o, uint8(d.kind))
	o = msgp.AppendString(o, "num_servers")
	o = msgp.AppendInt(o, d.numServers)
	o = msgp.AppendString(o, "block_size")
	o = msgp.AppendUint64(o, d.blockSize)
	o = msgp.AppendString(o, "start_index")
	o = msgp.AppendInt(o, d.startIndex)
	o = msgp.AppendString(o, "fixed")
	o = msgp.AppendInt(o, d.fixed)
	o = msgp.AppendString(o, "seed")
	o = msgp.AppendUint64(o, d.seed)
	o = msgp.AppendString(o, "weights")
	o = msgp.AppendArrayHeader(o, uint32(len(d.weights)))
	for _, w := range d.weights {
		o = msgp.AppendUint32(o, w)
	}
	return o, nil
}

// UnmarshalMsg decodes a Distribution previously written by MarshalMsg,
// returning the unread remainder of b.
func UnmarshalMsg(b []byte) (*Distribution, []byte, error) {
	n, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	d := &Distribution{}
	for i := uint32(0); i < n; i++ {
		var key string
		key, o, err = msgp.ReadStringBytes(o)
		if err != nil {
			return nil, b, err
		}
		switch key {
		case "kind":
			var v uint8
			v, o, err = msgp.ReadUint8Bytes(o)
			d.kind = Kind(v)
		case "num_servers":
			d.numServers, o, err = msgp.ReadIntBytes(o)
		case "block_size":
			d.blockSize, o, err = msgp.ReadUint64Bytes(o)
		case "start_index":
			d.startIndex, o, err = msgp.ReadIntBytes(o)
		case "fixed":
			d.fixed, o, err = msgp.ReadIntBytes(o)
		case "seed":
			d.seed, o, err = msgp.ReadUint64Bytes(o)
		case "weights":
			var wn uint32
			wn, o, err = msgp.ReadArrayHeaderBytes(o)
			if err != nil {
				return nil, b, err
			}
			d.weights = make([]uint32, wn)
			for j := range d.weights {
				d.weights[j], o, err = msgp.ReadUint32Bytes(o)
				if err != nil {
					return nil, b, err
				}
			}
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return nil, b, err
		}
	}
	cos.Assertf(d.numServers >= 0, "distr: decoded negative num_servers")
	return d, o, nil
}
