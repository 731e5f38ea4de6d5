// Package errs enumerates the error kinds used across the read path and
// the caching orchestrator. Kinds are plain string-backed sentinels in
// the vein of the teacher's own errorType pattern, checked with
// errors.Is rather than type assertions; the one exception is
// TooLongInstantiation, which carries a reason and is checked with
// errors.As.
package errs

// Kind is an error kind, not a full error type: a small closed set of
// sentinels that callers compare against with errors.Is.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	// EndOfInput is returned by a byte cursor's next() when the cursor
	// has no more bytes to yield.
	EndOfInput Kind = "end of input"

	// Overflow is returned by the compressed-long decoder when more
	// than nine bytes are consumed without finding a terminal byte, or
	// by the encoder when the value exceeds what nine bytes can carry.
	Overflow Kind = "varint overflow"

	// Truncated is returned by the compressed-long decoder when the
	// cursor is exhausted before a terminal byte is found.
	Truncated Kind = "varint truncated"

	// InvalidAddressLength is a fatal format error: a node's header
	// decoded a childAddressLength outside [1,8].
	InvalidAddressLength Kind = "invalid child address length"

	// InvalidAddress means the log does not resolve the requested
	// address to a Patricia-node loggable.
	InvalidAddress Kind = "invalid address"

	// NotSupported is returned by remove() on the immutable child
	// iterator; the immutable view never mutates.
	NotSupported Kind = "not supported"

	// ReadonlyConflict is caught by the caching orchestrator, which
	// re-enqueues the job once at a lower priority; it never surfaces
	// past that boundary.
	ReadonlyConflict Kind = "read-only conflict"

	// PhantomLink means a referent was deleted concurrently; this one
	// does surface to callers.
	PhantomLink Kind = "phantom link"
)

// Reason identifies why a caching job self-cancelled.
type Reason string

const (
	// CacheAdapterObsolete means the job's local-cache generation no
	// longer matches the shared generation for a consistent job.
	CacheAdapterObsolete Reason = "cache adapter obsolete"

	// JobOverdue means the job exceeded its wall-clock budget.
	JobOverdue Reason = "job overdue"
)

// TooLongInstantiation is a structured error a caching job's
// materialisation step fails with when the query-cancellation policy
// decides the job must abort. It is always caught inside the caching
// orchestrator: logged at info level, counted, never retried.
type TooLongInstantiation struct {
	Reason Reason
}

func (e *TooLongInstantiation) Error() string {
	return "too long instantiation: " + string(e.Reason)
}
