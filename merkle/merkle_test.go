package merkle

import (
	"testing"

	"github.com/amwLEE/Mina-ERC20/field"
)

func TestEmptyRootMatchesEmptyTree(t *testing.T) {
	tree := NewTree()
	root := tree.Root()
	want := EmptyRoot()
	if !root.Equal(&want) {
		t.Errorf("NewTree root %s != EmptyRoot %s", field.Hex(root), field.Hex(want))
	}
}

func TestFoldAgainstTree(t *testing.T) {
	tree := NewTree()
	leaf := field.Hash(field.FromUint64(7))

	slots := []uint8{0, 1, 127, 128, 255}
	for _, slot := range slots {
		tree.Update(slot, leaf)
	}

	for _, slot := range slots {
		path := tree.Path(slot)
		if path.Slot != slot {
			t.Fatalf("path slot %d, want %d", path.Slot, slot)
		}
		got := Fold(leaf, path)
		root := tree.Root()
		if !got.Equal(&root) {
			t.Errorf("slot %d: folded root %s != tree root %s", slot, field.Hex(got), field.Hex(root))
		}
	}
}

func TestFoldRejectsWrongLeaf(t *testing.T) {
	tree := NewTree()
	leaf := field.FromUint64(42)
	tree.Update(9, leaf)

	path := tree.Path(9)
	wrong := field.FromUint64(43)
	got := Fold(wrong, path)
	root := tree.Root()
	if got.Equal(&root) {
		t.Errorf("folding a different leaf must not reproduce the root")
	}
}

func TestUpdateKeepsSiblingPathsValid(t *testing.T) {
	tree := NewTree()
	a := field.FromUint64(1)
	b := field.FromUint64(2)
	tree.Update(10, a)
	tree.Update(11, b)

	// Updating one leaf of a pair must be reflected in the sibling's path.
	pb := tree.Path(11)
	root := Fold(b, pb)
	want := tree.Root()
	if !root.Equal(&want) {
		t.Errorf("sibling path stale after neighbour update")
	}

	// A path captured before an update folds to the old root, not the new one.
	old := tree.Path(10)
	tree.Update(10, field.FromUint64(3))
	stale := Fold(a, old)
	cur := tree.Root()
	if stale.Equal(&cur) {
		t.Errorf("stale witness should not fold to the new root")
	}
}

func TestPathSlotBits(t *testing.T) {
	// Slot 255 is the rightmost leaf: every level hashes (sibling, current).
	tree := NewTree()
	leaf := field.FromUint64(5)
	tree.Update(255, leaf)

	p := tree.Path(255)
	cur := leaf
	for i := 0; i < Depth; i++ {
		cur = field.Hash(p.Siblings[i], cur)
	}
	root := tree.Root()
	if !cur.Equal(&root) {
		t.Errorf("manual right-spine fold mismatch")
	}
}
