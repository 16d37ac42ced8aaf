// Package collection implements the Collection object (spec §3, §4.10): an
// id/name pair items are created under. A collection holds no membership
// list — items reference their owning collection, not the reverse — so
// this package is intentionally thin.
package collection

import (
	"github.com/julea-io/julea/cmn/cos"
	"github.com/julea-io/julea/oid"
)

type Collection struct {
	id   oid.ID
	name string
}

// New creates a fresh collection identity. name must not contain '/',
// mirroring the same invariant items are held to (spec §3).
func New(name string) (*Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return &Collection{id: oid.New(), name: name}, nil
}

func validateName(name string) error {
	if name == "" {
		return cos.NewErrInvalidArgument("collection name must not be empty")
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return cos.NewErrInvalidArgument("collection name %q must not contain '/'", name)
		}
	}
	return nil
}

func (c *Collection) ID() oid.ID    { return c.id }
func (c *Collection) Name() string  { return c.name }
