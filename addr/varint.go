package addr

import "github.com/rpcpool/patricia-cache/errs"

// maxCompressedLong is the largest value nine 7-bit groups can carry
// (2^63 - 1). Values above it cannot round-trip within the nine-byte
// cap and are rejected by EncodeCompressedLong with errs.Overflow; see
// DESIGN.md for why the codec's domain stops short of the full uint64
// range.
const maxCompressedLong = uint64(1)<<63 - 1

// maxCompressedLongBytes is the hard cap on bytes consumed decoding a
// single compressed long.
const maxCompressedLongBytes = 9

// DecodeCompressedLong reads a 7-bit-per-byte varint from c: each byte
// contributes its low 7 bits, most-significant group first, and the
// byte whose top bit is set is the final one. Fails with
// errs.Truncated if the cursor is exhausted before a terminal byte
// appears, or errs.Overflow if the ninth byte still isn't terminal.
func DecodeCompressedLong(c *Cursor) (uint64, error) {
	var result uint64
	for i := 0; i < maxCompressedLongBytes; i++ {
		if !c.HasNext() {
			return 0, errs.Truncated
		}
		b, err := c.Next()
		if err != nil {
			return 0, err
		}
		if b&0x80 != 0 {
			return (result << 7) | uint64(b&0x7f), nil
		}
		result = (result << 7) | uint64(b)
	}
	return 0, errs.Overflow
}

// EncodeCompressedLong is the inverse of DecodeCompressedLong: it
// produces the minimal-length byte sequence for x, most-significant
// 7-bit group first, with the final byte's top bit set.
func EncodeCompressedLong(x uint64) ([]byte, error) {
	if x > maxCompressedLong {
		return nil, errs.Overflow
	}
	size := 1
	for tmp := x >> 7; tmp != 0; tmp >>= 7 {
		size++
	}
	buf := make([]byte, size)
	for i := size - 1; i > 0; i-- {
		buf[size-1-i] = byte((x >> (uint(i) * 7)) & 0x7f)
	}
	buf[size-1] = byte(x&0x7f) | 0x80
	return buf, nil
}

// DecodeChildTableHeader splits the single compressed long that opens
// a node's children section into its children count and per-address
// byte width, per the (childrenCount << 3) | (childAddressLength - 1)
// packing.
func DecodeChildTableHeader(c *Cursor) (childrenCount uint32, childAddressLength int, err error) {
	i, err := DecodeCompressedLong(c)
	if err != nil {
		return 0, 0, err
	}
	childrenCount = uint32(i >> 3)
	childAddressLength = int(i&7) + 1
	if childAddressLength < 1 || childAddressLength > 8 {
		return 0, 0, errs.InvalidAddressLength
	}
	return childrenCount, childAddressLength, nil
}

// EncodeChildTableHeader is the inverse packing used by the builder.
func EncodeChildTableHeader(childrenCount uint32, childAddressLength int) ([]byte, error) {
	if childAddressLength < 1 || childAddressLength > 8 {
		return nil, errs.InvalidAddressLength
	}
	i := (uint64(childrenCount) << 3) | uint64(childAddressLength-1)
	return EncodeCompressedLong(i)
}
