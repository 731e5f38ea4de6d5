package logstore

import (
	"fmt"

	"github.com/valyala/bytebufferpool"

	"github.com/rpcpool/patricia-cache/addr"
	"github.com/rpcpool/patricia-cache/patricia"
)

// Builder appends Patricia nodes and values to a Store, the reference
// writer used by tests and the build CLI subcommand. It is not part
// of the read path's concurrency model: callers must serialize their
// own Append calls (the real ingestion pipeline this stands in for
// is already single-writer).
type Builder struct {
	store *Store
}

// NewBuilder wraps store for sequential append-only writes.
func NewBuilder(store *Store) *Builder { return &Builder{store: store} }

// ChildEntry is one row of a node's child table, keyed by first byte
// of the suffix edge, pointing at the child node's log address.
type ChildEntry struct {
	FirstByte byte
	Address   addr.Address
}

// AppendNode encodes and appends one Patricia node per §3's layout:
// tag, key-suffix length+bytes, optional value length+bytes, optional
// child-table header and rows. It returns the node's own address.
func (b *Builder) AppendNode(keySuffix, value []byte, hasValue bool, children []ChildEntry, childAddressLength int, isRoot bool) (addr.Address, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := writeCompressedLong(buf, uint64(len(keySuffix))); err != nil {
		return addr.NullAddress, err
	}
	buf.Write(keySuffix)

	if hasValue {
		if err := writeCompressedLong(buf, uint64(len(value))); err != nil {
			return addr.NullAddress, err
		}
		buf.Write(value)
	}

	hasChildren := len(children) > 0
	if hasChildren {
		header, err := addr.EncodeChildTableHeader(uint32(len(children)), childAddressLength)
		if err != nil {
			return addr.NullAddress, err
		}
		buf.Write(header)
		for _, c := range children {
			buf.WriteByte(c.FirstByte)
			if err := writeFixedWidth(buf, uint64(c.Address), childAddressLength); err != nil {
				return addr.NullAddress, err
			}
		}
	}

	tag := patricia.MakeTag(hasValue, hasChildren, isRoot)
	return b.store.appendRecord(tag, buf.Bytes())
}

func writeCompressedLong(buf *bytebufferpool.ByteBuffer, v uint64) error {
	enc, err := addr.EncodeCompressedLong(v)
	if err != nil {
		return err
	}
	buf.Write(enc)
	return nil
}

func writeFixedWidth(buf *bytebufferpool.ByteBuffer, v uint64, width int) error {
	if width < 1 || width > 8 {
		return fmt.Errorf("invalid address width %d", width)
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	buf.Write(out)
	return nil
}

// appendRecord writes a tag byte, the compressed-long payload length,
// then payload, atomically extending the file's logical size. It
// preallocates disk space ahead of the write via fallocate, following
// compactindexsized's build.go pattern of growing the file before a
// burst of sequential writes rather than letting every Write() call
// trigger its own extension.
func (s *Store) appendRecord(tag patricia.Tag, payload []byte) (addr.Address, error) {
	lengthBuf, err := addr.EncodeCompressedLong(uint64(len(payload)))
	if err != nil {
		return addr.NullAddress, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordLen := int64(1 + len(lengthBuf) + len(payload))
	if err := fallocate(s.f, s.size, recordLen); err != nil {
		// Preallocation is an optimisation; a filesystem that doesn't
		// support it (fallocate_generic's no-op) must not block writes.
		_ = err
	}

	start := s.size
	record := make([]byte, 0, recordLen)
	record = append(record, byte(tag))
	record = append(record, lengthBuf...)
	record = append(record, payload...)

	if _, err := s.f.WriteAt(record, start); err != nil {
		return addr.NullAddress, fmt.Errorf("append record at %d: %w", start, err)
	}
	s.size += int64(len(record))
	return addr.Address(start), nil
}
