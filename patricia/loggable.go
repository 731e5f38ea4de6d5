// Package patricia implements the read-only, zero-copy view of an
// on-disk Patricia trie: node parsing, child binary search, and
// bidirectional child iteration, plus the tree façade that resolves
// log addresses into node views.
package patricia

import "github.com/rpcpool/patricia-cache/addr"

// Tag is a loggable's single-byte type tag. Bit assignments are a
// private implementation choice; only the four predicates below are
// part of the contract.
type Tag byte

const (
	tagPatriciaNode Tag = 1 << iota
	tagHasValue
	tagHasChildren
	tagIsRoot
)

// IsPatriciaNode reports whether this loggable's payload is a
// Patricia node (as opposed to some other record type sharing the
// log).
func (t Tag) IsPatriciaNode() bool { return t&tagPatriciaNode != 0 }

// HasValue reports whether the node carries a value.
func (t Tag) HasValue() bool { return t&tagHasValue != 0 }

// HasChildren reports whether the node has a child table.
func (t Tag) HasChildren() bool { return t&tagHasChildren != 0 }

// IsRoot reports whether this node is the tree root.
func (t Tag) IsRoot() bool { return t&tagIsRoot != 0 }

// MakeTag builds a tag from its constituent flags; used by the
// reference log-store builder.
func MakeTag(hasValue, hasChildren, isRoot bool) Tag {
	t := tagPatriciaNode
	if hasValue {
		t |= tagHasValue
	}
	if hasChildren {
		t |= tagHasChildren
	}
	if isRoot {
		t |= tagIsRoot
	}
	return t
}

// Loggable is a contiguous byte range in the log: an address, a type
// tag, and a payload accessible from DataAddress onward. Data is a
// zero-copy view owned by the log page accessor; per its contract it
// must stay stable for at least as long as the caller holds it.
type Loggable struct {
	Address     addr.Address
	Tag         Tag
	DataAddress addr.Address
	Data        []byte
}

// LogAccessor is the "Log page accessor" external collaborator: the
// only way the read path touches the log.
type LogAccessor interface {
	// GetLoggable fetches the loggable at address.
	GetLoggable(address addr.Address) (Loggable, error)
	// GetDataAddress returns the address at which l's payload begins.
	GetDataAddress(l Loggable) addr.Address
	// ByteAt reads a single byte at an absolute log offset.
	ByteAt(offset addr.Address) (byte, error)
	// Iterator returns a byte cursor positioned at an absolute log
	// offset.
	Iterator(offset addr.Address) (*addr.Cursor, error)
	// NextLong decodes a fixed-width big-endian value at offset
	// without materialising a cursor.
	NextLong(offset addr.Address, length int) (uint64, error)
}
