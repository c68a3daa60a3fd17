// Package merkle implements the fixed-depth accumulator behind the on-chain
// allowance commitment.
//
// The contract itself never holds the tree. It holds only the root and
// validates transitions from caller-supplied witness paths (see Fold). The
// full Tree lives off-chain, where the client-side allowance index uses it
// to produce those witnesses.
package merkle

import (
	"fmt"
	"sync"

	"github.com/amwLEE/Mina-ERC20/field"
)

// Depth is the accumulator height: 2^8 = 256 leaf slots.
const Depth = 8

// Leaves is the number of leaf slots.
const Leaves = 1 << Depth

// Path is an inclusion witness for one leaf: its slot index and the sibling
// hash at every level, leaf level first.
type Path struct {
	Slot     uint8
	Siblings [Depth]field.Element
}

// Fold recomputes the root implied by a leaf value and its witness path.
// Bit i of the slot selects the side at level i: 1 means the current node
// is the right child.
func Fold(leaf field.Element, p Path) field.Element {
	cur := leaf
	for i := 0; i < Depth; i++ {
		if (p.Slot>>i)&1 == 1 {
			cur = field.Hash(p.Siblings[i], cur)
		} else {
			cur = field.Hash(cur, p.Siblings[i])
		}
	}
	return cur
}

var (
	emptyOnce sync.Once
	emptyRoot field.Element
)

// EmptyRoot returns the root of the all-zero tree, the commitment a freshly
// deployed contract starts from.
func EmptyRoot() field.Element {
	emptyOnce.Do(func() {
		var cur field.Element
		for i := 0; i < Depth; i++ {
			cur = field.Hash(cur, cur)
		}
		emptyRoot = cur
	})
	return emptyRoot
}

// Tree is the full in-memory accumulator. levels[0] holds the 256 leaves,
// levels[Depth] holds the single root.
type Tree struct {
	levels [Depth + 1][]field.Element
}

// NewTree creates a tree with every leaf zeroed.
func NewTree() *Tree {
	t := &Tree{}
	for lvl := 0; lvl <= Depth; lvl++ {
		t.levels[lvl] = make([]field.Element, Leaves>>lvl)
	}
	var empty field.Element
	for lvl := 1; lvl <= Depth; lvl++ {
		empty = field.Hash(empty, empty)
		for i := range t.levels[lvl] {
			t.levels[lvl][i] = empty
		}
	}
	return t
}

// Root returns the current root.
func (t *Tree) Root() field.Element {
	return t.levels[Depth][0]
}

// Leaf returns the current value at a slot.
func (t *Tree) Leaf(slot uint8) field.Element {
	return t.levels[0][slot]
}

// Update replaces the leaf at slot and rehashes the spine up to the root.
func (t *Tree) Update(slot uint8, leaf field.Element) {
	t.levels[0][slot] = leaf
	idx := int(slot)
	for lvl := 0; lvl < Depth; lvl++ {
		left := t.levels[lvl][idx&^1]
		right := t.levels[lvl][idx|1]
		idx >>= 1
		t.levels[lvl+1][idx] = field.Hash(left, right)
	}
}

// Path returns the inclusion witness for a slot against the current tree.
func (t *Tree) Path(slot uint8) Path {
	p := Path{Slot: slot}
	idx := int(slot)
	for lvl := 0; lvl < Depth; lvl++ {
		p.Siblings[lvl] = t.levels[lvl][idx^1]
		idx >>= 1
	}
	return p
}

// String renders the root for logs and debugging.
func (t *Tree) String() string {
	return fmt.Sprintf("merkle.Tree{root: %s}", field.Hex(t.Root()))
}
