package patricia

import (
	"github.com/rpcpool/patricia-cache/addr"
	"github.com/rpcpool/patricia-cache/errs"
)

// ChildReference is one entry of a node's child table: the
// discriminating key byte and the log address of the subtree it leads
// to.
type ChildReference struct {
	FirstByte     byte
	SuffixAddress addr.Address
}

// ChildIterator is a bidirectional, streaming iterator over a node's
// child table. It borrows from its parent node for the duration of
// iteration — a non-owning back-reference, per §9 — and the
// node must outlive the iterator.
//
// Forward steps (Next) read off a streaming cursor left positioned by
// the previous read. Backward steps (Prev) pay for a fresh seek, since
// iteration is unidirectionally streaming by construction.
type ChildIterator struct {
	node  *Node
	empty bool
	index int
	cur   *addr.Cursor
}

// newChildIteratorAt builds an iterator whose internal cursor is
// positioned to read child index+1 on the next call to Next. index
// ranges over the virtual positions [-1, childrenCount], where -1 and
// childrenCount are the before-first and past-last sentinels.
func newChildIteratorAt(n *Node, index int) *ChildIterator {
	offset := n.dataOffset + (index+1)*n.childStride
	return &ChildIterator{
		node:  n,
		index: index,
		cur:   addr.NewCursorAt(n.dataAddress, n.data, offset),
	}
}

func emptyChildIterator(n *Node) *ChildIterator {
	return &ChildIterator{node: n, empty: true}
}

// HasNext reports whether a forward step would yield an element.
func (it *ChildIterator) HasNext() bool {
	if it.empty {
		return false
	}
	return it.index < int(it.node.childrenCount)-1
}

// HasPrev reports whether a backward step would yield an element. Prev
// re-yields the element at the current index before stepping back, so
// this holds as soon as a forward step has landed on a real element
// (index >= 0), not just once index has moved past it.
func (it *ChildIterator) HasPrev() bool {
	if it.empty {
		return false
	}
	return it.index >= 0
}

func (it *ChildIterator) readAt(c *addr.Cursor) (ChildReference, error) {
	b, err := c.Next()
	if err != nil {
		return ChildReference{}, err
	}
	a, err := c.NextLong(it.node.childAddressLength)
	if err != nil {
		return ChildReference{}, err
	}
	return ChildReference{FirstByte: b, SuffixAddress: addr.Address(a)}, nil
}

func (it *ChildIterator) readInto(c *addr.Cursor, ref *ChildReference) error {
	b, err := c.Next()
	if err != nil {
		return err
	}
	a, err := c.NextLong(it.node.childAddressLength)
	if err != nil {
		return err
	}
	ref.FirstByte = b
	ref.SuffixAddress = addr.Address(a)
	return nil
}

// Next advances the iterator by one element and returns it, allocating
// a new ChildReference.
func (it *ChildIterator) Next() (ChildReference, error) {
	if !it.HasNext() {
		return ChildReference{}, errs.EndOfInput
	}
	it.index++
	return it.readAt(it.cur)
}

// Prev re-yields the element at the current index and then steps the
// cursor back by one, paying for a fresh seek. This makes next/prev
// symmetric: calling Prev immediately after Next returns the element
// Next just yielded, unchanged.
func (it *ChildIterator) Prev() (ChildReference, error) {
	if !it.HasPrev() {
		return ChildReference{}, errs.EndOfInput
	}
	offset := it.node.dataOffset + it.index*it.node.childStride
	seek := addr.NewCursorAt(it.node.dataAddress, it.node.data, offset)
	ref, err := it.readAt(seek)
	if err != nil {
		return ChildReference{}, err
	}
	it.index--
	it.cur = addr.NewCursorAt(it.node.dataAddress, it.node.data, offset)
	return ref, nil
}

// NextInPlace mutates ref in place instead of allocating, to avoid
// churn on hot iteration paths. The caller must not retain ref's
// previous contents across the call.
func (it *ChildIterator) NextInPlace(ref *ChildReference) error {
	if !it.HasNext() {
		return errs.EndOfInput
	}
	it.index++
	return it.readInto(it.cur, ref)
}

// PrevInPlace is the in-place counterpart of Prev.
func (it *ChildIterator) PrevInPlace(ref *ChildReference) error {
	if !it.HasPrev() {
		return errs.EndOfInput
	}
	offset := it.node.dataOffset + it.index*it.node.childStride
	seek := addr.NewCursorAt(it.node.dataAddress, it.node.data, offset)
	if err := it.readInto(seek, ref); err != nil {
		return err
	}
	it.index--
	it.cur = addr.NewCursorAt(it.node.dataAddress, it.node.data, offset)
	return nil
}

// Remove always fails: the immutable view never mutates. Callers that
// need to remove a child must use the mutating write path, which is
// out of scope here.
func (it *ChildIterator) Remove() error {
	return errs.NotSupported
}
