package patricia

import (
	"github.com/rpcpool/patricia-cache/addr"
	"github.com/rpcpool/patricia-cache/errs"
)

// Node is an immutable, zero-copy view of a Patricia trie node. It
// never deserialises key/value bytes to a heap copy beyond slicing the
// log page accessor's own buffer; it retains the underlying byte
// source by a shared, read-only ownership model (§5).
type Node struct {
	tree *Tree

	address     addr.Address
	tag         Tag
	dataAddress addr.Address
	data        []byte

	keySuffix []byte
	hasValue  bool
	value     []byte

	childrenCount      uint32
	childAddressLength int
	childStride        int
	dataOffset         int
}

// emptyNode is the synthetic node representing the empty tree: no key
// suffix, no value, zero children, address == NullAddress.
func emptyNode() *Node {
	return &Node{address: addr.NullAddress}
}

// newNode parses l's payload according to the §3 on-disk layout:
// key-suffix length + bytes, optional value length + bytes, optional
// children header, in that order.
func newNode(tree *Tree, l Loggable) (*Node, error) {
	if !l.Tag.IsPatriciaNode() {
		return nil, errs.InvalidAddress
	}

	n := &Node{
		tree:        tree,
		address:     l.Address,
		tag:         l.Tag,
		dataAddress: l.DataAddress,
		data:        l.Data,
	}

	c := addr.NewCursor(l.DataAddress, l.Data)

	keyLen, err := addr.DecodeCompressedLong(c)
	if err != nil {
		return nil, err
	}
	n.keySuffix, err = c.NextBytes(int(keyLen))
	if err != nil {
		return nil, err
	}

	if l.Tag.HasValue() {
		n.hasValue = true
		valLen, err := addr.DecodeCompressedLong(c)
		if err != nil {
			return nil, err
		}
		n.value, err = c.NextBytes(int(valLen))
		if err != nil {
			return nil, err
		}
	}

	if l.Tag.HasChildren() {
		count, width, err := addr.DecodeChildTableHeader(c)
		if err != nil {
			return nil, err
		}
		n.childrenCount = count
		n.childAddressLength = width
		n.childStride = width + 1
	}

	n.dataOffset = c.Offset()
	return n, nil
}

// Address returns this node's own log address.
func (n *Node) Address() addr.Address { return n.address }

// IsEmptyTree reports whether this is the synthetic empty-tree node.
func (n *Node) IsEmptyTree() bool { return n.address.IsNull() }

// KeySuffix returns the compressed edge label from the parent. Empty
// for the empty-tree node.
func (n *Node) KeySuffix() []byte { return n.keySuffix }

// HasValue reports whether this node stores a value.
func (n *Node) HasValue() bool { return n.hasValue }

// Value returns the node's value bytes, or nil if HasValue is false.
func (n *Node) Value() []byte { return n.value }

// ChildrenCount returns the number of children; 0 for the empty tree
// or any leaf.
func (n *Node) ChildrenCount() uint32 {
	if n.IsEmptyTree() {
		return 0
	}
	return n.childrenCount
}

// ChildAddressLength returns the per-node fixed width, in bytes, of
// encoded child addresses.
func (n *Node) ChildAddressLength() int { return n.childAddressLength }

// DataIterator returns a byte cursor over this node's value bytes, or
// an empty cursor for the synthetic empty-tree node.
func (n *Node) DataIterator() *addr.Cursor {
	if n.IsEmptyTree() {
		return addr.NewCursor(addr.NullAddress, nil)
	}
	return addr.NewCursor(n.dataAddress, n.value)
}

func (n *Node) childByteAt(i int) byte {
	return n.data[n.dataOffset+i*n.childStride]
}

func (n *Node) childAddressAt(i int) (addr.Address, error) {
	offset := n.dataOffset + i*n.childStride + 1
	v, err := addr.NewCursor(n.dataAddress, n.data).NextLongAt(offset, n.childAddressLength)
	if err != nil {
		return 0, err
	}
	return addr.Address(v), nil
}

// findChildIndex is the "classic" binary search of §4.C: low ≤ high
// bounds, unsigned midpoint, comparison on the raw byte values.
func (n *Node) findChildIndex(b byte) (int, bool) {
	if n.IsEmptyTree() || n.childrenCount == 0 {
		return 0, false
	}
	low, high := 0, int(n.childrenCount)-1
	for low <= high {
		mid := int(uint(low+high) >> 1)
		actual := n.childByteAt(mid)
		cmp := int(actual&0xff) - int(b&0xff)
		switch {
		case cmp == 0:
			return mid, true
		case cmp < 0:
			low = mid + 1
		default:
			high = mid - 1
		}
	}
	return 0, false
}

// firstIndexGreaterThan implements the modified binary search of
// §4.C's getChildrenRange: low=-1, high=count, midpoint (low+high+1)/2,
// moving high←mid when the byte at mid is strictly greater than b.
// Index `count` is a virtual "greater than anything" sentinel so the
// loop never reads past the table.
func (n *Node) firstIndexGreaterThan(b byte) int {
	count := int(n.childrenCount)
	low, high := -1, count
	for low+1 < high {
		mid := (low + high + 1) / 2
		var greater bool
		if mid == count {
			greater = true
		} else {
			greater = int(n.childByteAt(mid)&0xff) > int(b&0xff)
		}
		if greater {
			high = mid
		} else {
			low = mid
		}
	}
	return high
}

// GetChild binary-searches the child table for byte b. A nil, nil
// return means no such child exists.
func (n *Node) GetChild(b byte) (*Node, error) {
	idx, found := n.findChildIndex(b)
	if !found {
		return nil, nil
	}
	childAddr, err := n.childAddressAt(idx)
	if err != nil {
		return nil, err
	}
	return n.tree.LoadNode(childAddr)
}

// GetChildren returns a forward iterator over all children.
// Empty-safe: an empty tree or a leaf yields an iterator with no
// elements.
func (n *Node) GetChildren() *ChildIterator {
	return newChildIteratorAt(n, -1)
}

// GetChildrenAt returns an iterator positioned so the first call to
// Next returns the child whose byte equals b, or an empty iterator if
// no such child exists.
func (n *Node) GetChildrenAt(b byte) *ChildIterator {
	idx, found := n.findChildIndex(b)
	if !found {
		return emptyChildIterator(n)
	}
	return newChildIteratorAt(n, idx-1)
}

// GetChildrenRange returns an iterator positioned so the first call
// to Next returns the first child whose byte is strictly greater than
// b, or an empty iterator if none exists.
func (n *Node) GetChildrenRange(b byte) *ChildIterator {
	idx := n.firstIndexGreaterThan(b)
	if idx >= int(n.childrenCount) {
		return emptyChildIterator(n)
	}
	return newChildIteratorAt(n, idx-1)
}

// GetChildrenLast returns an iterator positioned at the last child, so
// that Prev returns it (re-yielding the current index before stepping
// back, per ChildIterator's next/prev symmetry).
func (n *Node) GetChildrenLast() *ChildIterator {
	return newChildIteratorAt(n, int(n.childrenCount)-1)
}
