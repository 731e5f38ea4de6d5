// Package logstore is the reference "Log page accessor" (§6): a
// file-backed store of tagged, length-prefixed byte records (Patricia
// nodes, each carrying its value inline) addressed by absolute file
// offset, grounded on compactindexsized's io.ReaderAt-based random
// access and its linux/generic fallocate split for file preallocation.
//
// Unlike compactindexsized's immutable hashtable, this store is
// append-only and never rewrites existing bytes, so a loggable's
// Address is stable for the file's lifetime — exactly the guarantee
// patricia.LogAccessor promises its callers.
package logstore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rpcpool/patricia-cache/addr"
	"github.com/rpcpool/patricia-cache/errs"
	"github.com/rpcpool/patricia-cache/patricia"
)

// iteratorWindow bounds how much a single Iterator() call reads ahead
// from the underlying file. Patricia node headers and key suffixes
// are small; this avoids reading an entire (potentially huge) log
// tail just to decode a handful of varints.
const iteratorWindow = 4096

// Store is a file-backed LogAccessor. Reads are plain pread-style
// ReadAt calls; there is no page cache layer here (the real system's
// "log page cache provided by the environment" is not implemented
// here), so callers that need repeated access to
// the same region should hold onto the Loggable they already fetched
// rather than re-deriving it.
type Store struct {
	mu   sync.RWMutex
	f    *os.File
	size int64
}

// Open opens or creates path for append-only read/write access.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log store: %w", err)
	}
	return &Store{f: f, size: info.Size()}, nil
}

// Close closes the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Size returns the current logical length of the log.
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// GetLoggable fetches the tagged record at address: a one-byte tag, a
// compressed-long payload length, then the payload itself.
func (s *Store) GetLoggable(address addr.Address) (patricia.Loggable, error) {
	if address.IsNull() {
		return patricia.Loggable{}, errs.InvalidAddress
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	off := int64(address)
	tagBuf := make([]byte, 1)
	if _, err := s.f.ReadAt(tagBuf, off); err != nil {
		return patricia.Loggable{}, fmt.Errorf("read tag at %d: %w", off, err)
	}
	tag := patricia.Tag(tagBuf[0])

	length, lengthWidth, err := s.decodeVarintAt(off + 1)
	if err != nil {
		return patricia.Loggable{}, err
	}
	dataOff := off + 1 + int64(lengthWidth)

	payload := make([]byte, length)
	if length > 0 {
		if _, err := s.f.ReadAt(payload, dataOff); err != nil {
			return patricia.Loggable{}, fmt.Errorf("read payload at %d: %w", dataOff, err)
		}
	}

	return patricia.Loggable{
		Address:     address,
		Tag:         tag,
		DataAddress: addr.Address(dataOff),
		Data:        payload,
	}, nil
}

// GetDataAddress returns l's already-resolved payload address.
func (s *Store) GetDataAddress(l patricia.Loggable) addr.Address { return l.DataAddress }

// ByteAt reads a single byte at an absolute log offset.
func (s *Store) ByteAt(offset addr.Address) (byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := make([]byte, 1)
	if _, err := s.f.ReadAt(buf, int64(offset)); err != nil {
		return 0, fmt.Errorf("byteAt %d: %w", offset, err)
	}
	return buf[0], nil
}

// Iterator returns a byte cursor over a bounded read-ahead window
// starting at offset.
func (s *Store) Iterator(offset addr.Address) (*addr.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	remaining := s.size - int64(offset)
	if remaining <= 0 {
		return addr.NewCursor(offset, nil), nil
	}
	window := int64(iteratorWindow)
	if remaining < window {
		window = remaining
	}
	buf := make([]byte, window)
	n, err := s.f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("iterator at %d: %w", offset, err)
	}
	return addr.NewCursor(offset, buf[:n]), nil
}

// NextLong decodes a fixed-width big-endian integer at offset without
// materialising a cursor.
func (s *Store) NextLong(offset addr.Address, length int) (uint64, error) {
	if length < 0 || length > 8 {
		return 0, errs.InvalidAddressLength
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if length == 0 {
		return 0, nil
	}
	buf := make([]byte, length)
	if _, err := s.f.ReadAt(buf, int64(offset)); err != nil {
		return 0, fmt.Errorf("nextLong at %d: %w", offset, err)
	}
	var padded [8]byte
	copy(padded[8-length:], buf)
	return binary.BigEndian.Uint64(padded[:]), nil
}

// decodeVarintAt reads the compressed-long header at off directly off
// the file, without routing through addr.Cursor (which needs the
// bytes already in memory) — up to maxCompressedLongBytes one-byte
// reads, same MSB-group-first format as addr.DecodeCompressedLong.
func (s *Store) decodeVarintAt(off int64) (value uint64, width int, err error) {
	const maxBytes = 9
	one := make([]byte, 1)
	for width = 0; width < maxBytes; width++ {
		if _, err := s.f.ReadAt(one, off+int64(width)); err != nil {
			return 0, 0, fmt.Errorf("decode varint at %d: %w", off, err)
		}
		b := one[0]
		if b&0x80 != 0 {
			value = (value << 7) | uint64(b&0x7f)
			return value, width + 1, nil
		}
		value = (value << 7) | uint64(b)
	}
	return 0, 0, errs.Overflow
}
