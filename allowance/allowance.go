// Package allowance defines the committed allowance records and the verified
// read/write transitions against the accumulator root.
//
// Records are never stored on-chain. A record exists only as a leaf hash in
// the Merkle accumulator; the contract holds the root and every access is
// proven by a caller-supplied witness. The client-side index (package index)
// is the source of truth for the current value and path of a record.
package allowance

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/field"
	"github.com/amwLEE/Mina-ERC20/merkle"
)

var (
	// ErrWitnessMismatch means the supplied (value, path) pair does not fold
	// to the committed root. Either the witness is stale or it was fabricated.
	ErrWitnessMismatch = errors.New("allowance: witness does not match commitment")

	// ErrValueRange means the allowance value cannot be represented as a
	// field element.
	ErrValueRange = errors.New("allowance: value out of field range")
)

// Record is one (owner, spender) -> value entry of the off-chain table.
// Identity is the (owner, spender) pair; the value is mutable.
type Record struct {
	Owner   field.Element
	Spender field.Element
	Value   *uint256.Int
}

// LeafHash returns the accumulator leaf for the record: the order-sensitive
// MiMC hash of its three fields. A nil or zero value hashes to the zero leaf
// so that revoked and never-approved records are indistinguishable from
// empty slots.
func (r Record) LeafHash() (field.Element, error) {
	var zero field.Element
	if r.Value == nil || r.Value.IsZero() {
		return zero, nil
	}
	v, err := field.FromAmount(r.Value)
	if err != nil {
		return zero, ErrValueRange
	}
	return field.Hash(r.Owner, r.Spender, v), nil
}

// SlotOf returns the canonical leaf slot for an (owner, spender) pair:
// the low byte of MiMC(owner, spender). Distinct pairs may collide; the
// accumulator has 256 slots and the index surfaces collisions explicitly.
func SlotOf(owner, spender field.Element) uint8 {
	h := field.Hash(owner, spender)
	b := h.Bytes()
	return b[len(b)-1]
}

// Witness carries the claimed current value of a record together with the
// inclusion path that ties it to a specific commitment.
type Witness struct {
	Value *uint256.Int
	Path  merkle.Path
}

// Verify checks a witnessed read: the record implied by (owner, spender,
// w.Value) must fold through w.Path to exactly the given root. On success
// the claimed value is the committed allowance.
//
// This is the soundness boundary described in the contract design: the root
// cannot reveal the value, it can only confirm or refute a claimed one.
func Verify(root field.Element, owner, spender field.Element, w Witness) error {
	if w.Path.Slot != SlotOf(owner, spender) {
		return ErrWitnessMismatch
	}
	leaf, err := Record{Owner: owner, Spender: spender, Value: w.Value}.LeafHash()
	if err != nil {
		return err
	}
	folded := merkle.Fold(leaf, w.Path)
	if !folded.Equal(&root) {
		return ErrWitnessMismatch
	}
	return nil
}

// NewRoot computes the commitment after writing newValue for (owner,
// spender) along the given path. The path is trusted to describe the current
// tree; a path inconsistent with the committed state still yields a root,
// silently rebinding whatever slot it describes. Honest witness production
// is the index's job, not the accumulator's.
func NewRoot(owner, spender field.Element, newValue *uint256.Int, path merkle.Path) (field.Element, error) {
	var zero field.Element
	if path.Slot != SlotOf(owner, spender) {
		return zero, ErrWitnessMismatch
	}
	leaf, err := Record{Owner: owner, Spender: spender, Value: newValue}.LeafHash()
	if err != nil {
		return zero, err
	}
	return merkle.Fold(leaf, path), nil
}
