package addr

import "github.com/rpcpool/patricia-cache/errs"

// Cursor is a forward-only, pull-style reader positioned at a logical
// address within a single contiguous byte range (a loggable's payload,
// or a node's child table). It never blocks: the bytes behind it are
// assumed already resident, per the log page accessor's contract that
// returned byte sources are stable for the caller's lifetime.
type Cursor struct {
	base Address
	data []byte
	pos  int
}

// NewCursor builds a cursor over data, anchored at the logical address
// of data[0]. Positions reported by Address() are base+pos.
func NewCursor(base Address, data []byte) *Cursor {
	return &Cursor{base: base, data: data}
}

// NewCursorAt builds a cursor over data starting at byte offset offset,
// the random-access variant's "construction of a cursor at an absolute
// offset".
func NewCursorAt(base Address, data []byte, offset int) *Cursor {
	return &Cursor{base: base, data: data, pos: offset}
}

// Address reports the logical address the cursor is currently
// positioned at.
func (c *Cursor) Address() Address {
	return c.base + Address(c.pos)
}

// Offset reports the cursor's byte offset from the start of its
// underlying data range.
func (c *Cursor) Offset() int {
	return c.pos
}

// HasNext reports whether at least one more byte remains.
func (c *Cursor) HasNext() bool {
	return c.pos < len(c.data)
}

// Next reads and consumes one byte. Fails with errs.EndOfInput if the
// cursor is exhausted.
func (c *Cursor) Next() (byte, error) {
	if !c.HasNext() {
		return 0, errs.EndOfInput
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

// Skip advances the cursor by up to n bytes, returning the number
// actually skipped. The result is undefined for non-positive n; it
// returns 0 once the cursor is exhausted.
func (c *Cursor) Skip(n int) int {
	remaining := len(c.data) - c.pos
	if remaining <= 0 {
		return 0
	}
	if n > remaining {
		n = remaining
	}
	c.pos += n
	return n
}

// NextLong decodes length bytes (length in [0,8]) as a big-endian
// unsigned integer and advances the cursor by length. The caller
// guarantees length bytes remain.
func (c *Cursor) NextLong(length int) (uint64, error) {
	if length < 0 || length > 8 {
		return 0, errs.InvalidAddressLength
	}
	if c.pos+length > len(c.data) {
		return 0, errs.EndOfInput
	}
	var v uint64
	for i := 0; i < length; i++ {
		v = (v << 8) | uint64(c.data[c.pos+i])
	}
	c.pos += length
	return v, nil
}

// NextBytes returns a zero-copy view of the next n bytes and advances
// the cursor past them.
func (c *Cursor) NextBytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, errs.EndOfInput
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ByteAt is the random-access variant's absolute byte-at-offset read;
// it does not move the cursor.
func (c *Cursor) ByteAt(offset int) (byte, error) {
	if offset < 0 || offset >= len(c.data) {
		return 0, errs.EndOfInput
	}
	return c.data[offset], nil
}

// NextLongAt decodes length bytes at an absolute offset without
// disturbing the cursor's own position, used by the binary-search
// child-address decode.
func (c *Cursor) NextLongAt(offset, length int) (uint64, error) {
	if length < 0 || length > 8 {
		return 0, errs.InvalidAddressLength
	}
	if offset < 0 || offset+length > len(c.data) {
		return 0, errs.EndOfInput
	}
	var v uint64
	for i := 0; i < length; i++ {
		v = (v << 8) | uint64(c.data[offset+i])
	}
	return v, nil
}
