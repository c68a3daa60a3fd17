package token

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/field"
)

// The contract persists exactly two on-chain fields. Each is modeled as a
// typed slot with get/set/assertEquals accessors so that every operation
// follows the same snapshot-assert-mutate discipline: read a value, assert
// the slot still holds it, then write the successor.

// AmountSlot holds an on-chain token amount.
type AmountSlot struct {
	name  string
	value *uint256.Int
}

func newAmountSlot(name string, initial *uint256.Int) *AmountSlot {
	return &AmountSlot{name: name, value: initial.Clone()}
}

// Get returns a copy of the current value.
func (s *AmountSlot) Get() *uint256.Int {
	return s.value.Clone()
}

// Set replaces the current value.
func (s *AmountSlot) Set(v *uint256.Int) {
	s.value = v.Clone()
}

// AssertEquals fails with ErrStaleRead if the slot moved since expected
// was read.
func (s *AmountSlot) AssertEquals(expected *uint256.Int) error {
	if !s.value.Eq(expected) {
		return fmt.Errorf("%w: %s is %s, asserted %s", ErrStaleRead, s.name, s.value.Dec(), expected.Dec())
	}
	return nil
}

// FieldSlot holds an on-chain field element.
type FieldSlot struct {
	name  string
	value field.Element
}

func newFieldSlot(name string, initial field.Element) *FieldSlot {
	return &FieldSlot{name: name, value: initial}
}

// Get returns the current value.
func (s *FieldSlot) Get() field.Element {
	return s.value
}

// Set replaces the current value.
func (s *FieldSlot) Set(v field.Element) {
	s.value = v
}

// AssertEquals fails with ErrStaleRead if the slot moved since expected
// was read.
func (s *FieldSlot) AssertEquals(expected field.Element) error {
	if !s.value.Equal(&expected) {
		return fmt.Errorf("%w: %s is %s, asserted %s", ErrStaleRead, s.name, field.Hex(s.value), field.Hex(expected))
	}
	return nil
}
