// Package index maintains the client-side mirror of the allowance table.
//
// The chain holds only the accumulator root, so the true current value and
// inclusion path for an (owner, spender) pair have to come from somewhere
// off-chain. This index is that somewhere: it replays the Approval event
// stream, the only queryable history of allowance changes, into a full
// accumulator tree and produces the witnesses that every allowance-gated
// contract call requires. Witnesses are never trusted from ad-hoc caller
// input.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/allowance"
	"github.com/amwLEE/Mina-ERC20/events"
	"github.com/amwLEE/Mina-ERC20/field"
	"github.com/amwLEE/Mina-ERC20/merkle"
)

// ErrSlotCollision means two distinct (owner, spender) pairs map to the same
// canonical leaf slot. The fixed-capacity accumulator cannot hold both; the
// second approval is refused rather than silently overwriting the first.
var ErrSlotCollision = errors.New("index: allowance slot collision")

type entry struct {
	owner   field.Element
	spender field.Element
	value   *uint256.Int
}

// Allowances is the mirrored allowance table plus its accumulator tree.
type Allowances struct {
	tree    *merkle.Tree
	records map[uint8]entry
	version int
}

// New creates an empty mirror, matching a freshly deployed contract.
func New() *Allowances {
	return &Allowances{
		tree:    merkle.NewTree(),
		records: make(map[uint8]entry),
		version: -1,
	}
}

// Rebuild replays the full event stream into a fresh mirror. Transfer
// events are skipped; every Approval is applied in order.
func Rebuild(ctx context.Context, store events.Store, stream string) (*Allowances, error) {
	a := New()
	evts, err := store.Read(ctx, stream, 0)
	if err != nil {
		return nil, fmt.Errorf("index: read stream: %w", err)
	}
	for _, ev := range evts {
		if err := a.Apply(ev); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Apply folds one event into the mirror. Non-Approval events only advance
// the replay cursor.
func (a *Allowances) Apply(ev *events.Event) error {
	if ev.Type != events.TypeApproval {
		a.version = ev.Version
		return nil
	}
	owner, spender, value, err := ev.Approval()
	if err != nil {
		return fmt.Errorf("index: decode approval %s: %w", ev.ID, err)
	}
	slot := allowance.SlotOf(owner, spender)
	if cur, ok := a.records[slot]; ok {
		if !cur.owner.Equal(&owner) || !cur.spender.Equal(&spender) {
			return fmt.Errorf("%w: slot %d held by (%s, %s)", ErrSlotCollision, slot,
				field.Hex(cur.owner), field.Hex(cur.spender))
		}
	}
	leaf, err := allowance.Record{Owner: owner, Spender: spender, Value: value}.LeafHash()
	if err != nil {
		return fmt.Errorf("index: apply approval %s: %w", ev.ID, err)
	}
	a.tree.Update(slot, leaf)
	if value.IsZero() {
		delete(a.records, slot)
	} else {
		a.records[slot] = entry{owner: owner, spender: spender, value: value.Clone()}
	}
	a.version = ev.Version
	return nil
}

// CatchUp applies events newer than the mirror's replay cursor.
func (a *Allowances) CatchUp(ctx context.Context, store events.Store, stream string) error {
	evts, err := store.Read(ctx, stream, a.version+1)
	if err != nil {
		return fmt.Errorf("index: read stream: %w", err)
	}
	for _, ev := range evts {
		if err := a.Apply(ev); err != nil {
			return err
		}
	}
	return nil
}

// Value returns the mirrored allowance of (owner, spender), zero when no
// approval is recorded.
func (a *Allowances) Value(owner, spender field.Element) *uint256.Int {
	slot := allowance.SlotOf(owner, spender)
	cur, ok := a.records[slot]
	if !ok || !cur.owner.Equal(&owner) || !cur.spender.Equal(&spender) {
		return uint256.NewInt(0)
	}
	return cur.value.Clone()
}

// Witness produces the (value, path) pair for (owner, spender) against the
// mirror's current root. For pairs with no approval the witness proves the
// empty slot, reading as a zero allowance.
func (a *Allowances) Witness(owner, spender field.Element) allowance.Witness {
	return allowance.Witness{
		Value: a.Value(owner, spender),
		Path:  a.tree.Path(allowance.SlotOf(owner, spender)),
	}
}

// Path returns only the inclusion path, for approveSpend calls that supply
// a fresh value.
func (a *Allowances) Path(owner, spender field.Element) merkle.Path {
	return a.tree.Path(allowance.SlotOf(owner, spender))
}

// Root returns the mirror's accumulator root. A healthy mirror matches the
// on-chain commitment exactly.
func (a *Allowances) Root() field.Element {
	return a.tree.Root()
}

// Version returns the last applied event version, -1 before any replay.
func (a *Allowances) Version() int {
	return a.version
}
