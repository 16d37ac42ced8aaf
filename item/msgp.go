// Binary document (de)serialization for the persisted item record (spec
// §6's "persisted metadata shape"), the inverse pair required by Testable
// Property 2 (serialize/deserialize round-trip). Grounded on
// original_source/lib/jitem.c's serialize/new_from_bson functions, ported
// from BSON to tinylib/msgp's append-style API.
package item

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/julea-io/julea/creds"
	"github.com/julea-io/julea/distr"
	"github.com/julea-io/julea/oid"
)

// MarshalMsg encodes it as the persisted document. includeStatus embeds
// the current size/modification_time when semantics.concurrency == none
// (spec §4.8: "otherwise they are omitted, the data servers are
// authoritative").
func (it *Item) MarshalMsg(b []byte, includeStatus bool) ([]byte, error) {
	n := uint32(5)
	if includeStatus {
		n += 2
	}
	o := msgp.AppendMapHeader(b, n)

	o = msgp.AppendString(o, "_id")
	o = msgp.AppendBytes(o, it.id.Bytes())

	o = msgp.AppendString(o, "collection")
	o = msgp.AppendBytes(o, it.collectionID.Bytes())

	o = msgp.AppendString(o, "collection_name")
	o = msgp.AppendString(o, it.collectionName)

	o = msgp.AppendString(o, "name")
	o = msgp.AppendString(o, it.name)

	if includeStatus {
		o = msgp.AppendString(o, "status_size")
		o = msgp.AppendInt64(o, int64(it.Size()))
		o = msgp.AppendString(o, "status_modification_time")
		o = msgp.AppendInt64(o, it.ModificationTime())
	}

	o = msgp.AppendString(o, "credentials")
	credBytes, err := it.creds.MarshalMsg(nil)
	if err != nil {
		return nil, err
	}
	o = msgp.AppendBytes(o, credBytes)

	o = msgp.AppendString(o, "distribution")
	distBytes, err := it.dist.MarshalMsg(nil)
	if err != nil {
		return nil, err
	}
	o = msgp.AppendBytes(o, distBytes)

	return o, nil
}

// UnmarshalMsg decodes a document previously written by MarshalMsg. key
// verifies the embedded credentials token.
func UnmarshalMsg(b []byte, key []byte) (*Item, error) {
	n, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, err
	}

	it := &Item{}
	var hasSize, hasModTime bool
	for i := uint32(0); i < n; i++ {
		var k string
		k, o, err = msgp.ReadStringBytes(o)
		if err != nil {
			return nil, err
		}
		switch k {
		case "_id":
			var idBytes []byte
			idBytes, o, err = msgp.ReadBytesBytes(o, nil)
			if err == nil {
				it.id = oid.FromBytes(idBytes)
			}
		case "collection":
			var colBytes []byte
			colBytes, o, err = msgp.ReadBytesBytes(o, nil)
			if err == nil {
				it.collectionID = oid.FromBytes(colBytes)
			}
		case "collection_name":
			it.collectionName, o, err = msgp.ReadStringBytes(o)
		case "name":
			it.name, o, err = msgp.ReadStringBytes(o)
		case "status_size":
			var v int64
			v, o, err = msgp.ReadInt64Bytes(o)
			if err == nil {
				it.status.size = uint64(v)
				hasSize = true
			}
		case "status_modification_time":
			it.status.modTime, o, err = msgp.ReadInt64Bytes(o)
			hasModTime = hasModTime || err == nil
		case "credentials":
			var credBytes []byte
			credBytes, o, err = msgp.ReadBytesBytes(o, nil)
			if err == nil {
				it.creds, _, err = creds.UnmarshalMsg(credBytes, key)
			}
		case "distribution":
			var distBytes []byte
			distBytes, o, err = msgp.ReadBytesBytes(o, nil)
			if err == nil {
				it.dist, _, err = distr.UnmarshalMsg(distBytes)
			}
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return nil, err
		}
	}
	_ = hasSize
	_ = hasModTime
	if it.dist != nil {
		it.status.created = make([]bool, it.dist.NumServers())
	}
	return it, nil
}
