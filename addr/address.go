// Package addr defines the logical addressing primitives shared by the
// Patricia read path: the opaque 64-bit log offset, the byte cursor that
// reads from it, and the compressed-unsigned-long codec used throughout
// the on-disk node layout.
package addr

import "math"

// Address is an opaque offset into the append-only log. It carries no
// structure of its own; only the log page accessor knows how to turn one
// into bytes.
type Address uint64

// NullAddress is the sentinel meaning "no address" — the empty tree's
// root, an absent child, an absent value.
const NullAddress Address = Address(math.MaxUint64)

// IsNull reports whether a is the null sentinel.
func (a Address) IsNull() bool {
	return a == NullAddress
}
