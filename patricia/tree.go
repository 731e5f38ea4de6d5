package patricia

import (
	"github.com/rpcpool/patricia-cache/addr"
	"github.com/rpcpool/patricia-cache/errs"
)

// Tree is the read façade over a log-backed Patricia trie: it
// resolves log addresses into node views and exposes the root. It
// owns no mutable state beyond the accessor and the root address; all
// actual bytes come from the LogAccessor.
type Tree struct {
	accessor    LogAccessor
	rootAddress addr.Address
}

// NewTree builds a read façade over accessor, rooted at rootAddress.
// rootAddress may be addr.NullAddress, denoting the empty tree.
func NewTree(accessor LogAccessor, rootAddress addr.Address) *Tree {
	return &Tree{accessor: accessor, rootAddress: rootAddress}
}

// Root loads and returns the tree's root node.
func (t *Tree) Root() (*Node, error) {
	return t.LoadNode(t.rootAddress)
}

// LoadNode fetches the loggable at address and constructs an
// immutable node view over it. Fails with errs.InvalidAddress if the
// address does not refer to a Patricia-node loggable, or
// errs.InvalidAddressLength if the node's childAddressLength is
// outside [1,8].
func (t *Tree) LoadNode(address addr.Address) (*Node, error) {
	if address.IsNull() {
		return emptyNode(), nil
	}
	l, err := t.accessor.GetLoggable(address)
	if err != nil {
		return nil, err
	}
	if !l.Tag.IsPatriciaNode() {
		return nil, errs.InvalidAddress
	}
	return newNode(t, l)
}
