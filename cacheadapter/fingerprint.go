package cacheadapter

import (
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is the opaque, structural-shape identity of a query
// result: two fingerprints that are Equal produce equal results
// against the same logical database state. It is also the cache key.
type Fingerprint interface {
	// Hash is a structural hash suitable for bucketing; equal
	// fingerprints must hash equal.
	Hash() uint64
	Equal(other Fingerprint) bool
	// IsConsistent reports whether this query's computation is
	// guaranteed to yield bytes identical to a synchronous execution.
	IsConsistent() bool
	// IsExpired reports whether the snapshot this fingerprint was
	// built against is no longer current.
	IsExpired() bool
	// BirthTime is the timestamp set at construction or by the latest
	// ResetBirthTime. The deferred-admission filter and the job-overdue
	// check do not read it; they use their own timestamps.
	BirthTime() time.Time
	// ResetBirthTime is called by a caching job each time it starts
	// running for an inconsistent fingerprint, as a keep-alive.
	ResetBirthTime(time.Time)
}

// ShapeFingerprint is a concrete Fingerprint keyed by the serialized
// shape of a query's operator tree, grounded on the teacher's
// xxhash-based EntryHash64 (compactindexsized/compactindex.go).
type ShapeFingerprint struct {
	Shape      string
	Consistent bool
	ExpiredFn  func() bool

	birthNanos atomic.Int64
}

// NewShapeFingerprint builds a fingerprint born at birth.
func NewShapeFingerprint(shape string, consistent bool, expiredFn func() bool, birth time.Time) *ShapeFingerprint {
	f := &ShapeFingerprint{Shape: shape, Consistent: consistent, ExpiredFn: expiredFn}
	f.birthNanos.Store(birth.UnixNano())
	return f
}

func (f *ShapeFingerprint) Hash() uint64 {
	return xxhash.Sum64String(f.Shape)
}

func (f *ShapeFingerprint) Equal(other Fingerprint) bool {
	o, ok := other.(*ShapeFingerprint)
	return ok && o.Shape == f.Shape
}

func (f *ShapeFingerprint) IsConsistent() bool { return f.Consistent }

func (f *ShapeFingerprint) IsExpired() bool {
	if f.ExpiredFn == nil {
		return false
	}
	return f.ExpiredFn()
}

func (f *ShapeFingerprint) BirthTime() time.Time {
	return time.Unix(0, f.birthNanos.Load())
}

func (f *ShapeFingerprint) ResetBirthTime(t time.Time) {
	f.birthNanos.Store(t.UnixNano())
}
