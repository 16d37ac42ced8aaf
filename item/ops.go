// Op types item operations are enqueued as, dispatched by batch.Batch to
// the Engine's per-kind handlers.
package item

import "github.com/julea-io/julea/batch"

type ReadOp struct {
	Item      *Item
	Buf       []byte
	Offset    uint64
	BytesRead uint64 // output, populated in place by the handler
}

func (o *ReadOp) Kind() batch.Kind { return batch.ItemRead }
func (o *ReadOp) Key() string      { return o.Item.Path() }

type WriteOp struct {
	Item         *Item
	Buf          []byte
	Offset       uint64
	BytesWritten uint64 // output
}

func (o *WriteOp) Kind() batch.Kind { return batch.ItemWrite }
func (o *WriteOp) Key() string      { return o.Item.Path() }

type StatusOp struct {
	Item *Item
}

func (o *StatusOp) Kind() batch.Kind { return batch.ItemStatus }
func (o *StatusOp) Key() string      { return o.Item.Path() }

type DeleteOp struct {
	Item *Item
}

func (o *DeleteOp) Kind() batch.Kind { return batch.ItemDelete }
func (o *DeleteOp) Key() string      { return o.Item.Path() }

// CreateOp stages metadata creation of Item; success is reported only
// through the batch's boolean result.
type CreateOp struct {
	Item *Item
}

func (o *CreateOp) Kind() batch.Kind { return batch.ItemCreate }
func (o *CreateOp) Key() string      { return o.Item.collectionName }

// GetOp looks an item up by (collectionName, name); *Out is set to the
// decoded item, or left nil on a miss.
type GetOp struct {
	CollectionName string
	Name           string
	Out            **Item
}

func (o *GetOp) Kind() batch.Kind { return batch.ItemGet }
func (o *GetOp) Key() string      { return o.CollectionName }
