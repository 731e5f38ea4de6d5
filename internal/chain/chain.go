// Package chain lets config validation run a sequence of named checks
// that stops at the first failure, grounded on the teacher's
// continuity.IfThen pattern. Step names label the checks at the call
// site; they are not included in the returned error.
package chain

import "strings"

// Errors collects every failure recorded by a Chain. len(Errors) == 0
// is never returned by Chain.Err; use Err() rather than inspecting
// this type directly.
type Errors []error

func (e Errors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	parts := make([]string, len(e))
	for i, err := range e {
		parts[i] = err.Error()
	}
	return "multiple errors: " + strings.Join(parts, "; ")
}

// Chain runs a sequence of named checks, short-circuiting after the
// first one that fails.
type Chain struct {
	failed Errors
}

// New returns an empty Chain.
func New() *Chain {
	return &Chain{}
}

// Then runs f and records its error unless a prior step already
// failed. name is not currently surfaced anywhere but documents the
// step at the call site.
func (c *Chain) Then(name string, f func() error) *Chain {
	if len(c.failed) > 0 {
		return c
	}
	if err := f(); err != nil {
		c.failed = append(c.failed, err)
	}
	return c
}

// Err returns the first recorded failure, held in an Errors value
// whose message is that failure's message, or nil if every step
// passed.
func (c *Chain) Err() error {
	if len(c.failed) == 0 {
		return nil
	}
	return c.failed
}
