// Binary document encoding for the "credentials" sub-document persisted
// alongside every item (spec §6).
package creds

import "github.com/tinylib/msgp/msgp"

func (c *Credentials) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, 1)
	o = msgp.AppendString(o, "token")
	o = msgp.AppendString(o, c.raw)
	return o, nil
}

// UnmarshalMsg decodes credentials previously written by MarshalMsg,
// verifying the embedded token against key, and returns the unread
// remainder of b.
func UnmarshalMsg(b []byte, key []byte) (*Credentials, []byte, error) {
	n, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	var raw string
	for i := uint32(0); i < n; i++ {
		var k string
		k, o, err = msgp.ReadStringBytes(o)
		if err != nil {
			return nil, b, err
		}
		switch k {
		case "token":
			raw, o, err = msgp.ReadStringBytes(o)
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return nil, b, err
		}
	}
	c, err := Parse(raw, key)
	if err != nil {
		return nil, b, err
	}
	return c, o, nil
}
