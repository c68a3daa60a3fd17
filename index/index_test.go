package index_test

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/allowance"
	"github.com/amwLEE/Mina-ERC20/events"
	"github.com/amwLEE/Mina-ERC20/field"
	"github.com/amwLEE/Mina-ERC20/index"
	"github.com/amwLEE/Mina-ERC20/ledger"
	"github.com/amwLEE/Mina-ERC20/merkle"
	"github.com/amwLEE/Mina-ERC20/token"
)

func addr(seed string) field.Element {
	return field.HashBytes([]byte(seed))
}

func TestEmptyMirrorMatchesEmptyRoot(t *testing.T) {
	a := index.New()
	root := a.Root()
	want := merkle.EmptyRoot()
	if !root.Equal(&want) {
		t.Errorf("empty mirror root mismatch")
	}
	if a.Version() != -1 {
		t.Errorf("fresh mirror version = %d, want -1", a.Version())
	}
	if !a.Value(addr("x"), addr("y")).IsZero() {
		t.Errorf("unknown pair must read zero")
	}
}

func TestRebuildFromApprovalStream(t *testing.T) {
	ctx := context.Background()
	store := events.NewMemoryStore()
	alice, bob := addr("alice"), addr("bob")

	ev1, _ := events.NewApproval("token", alice, bob, uint256.NewInt(40))
	ev2, _ := events.NewTransfer("token", alice, bob, uint256.NewInt(30))
	ev3, _ := events.NewApproval("token", alice, bob, uint256.NewInt(10))
	if _, err := store.Append(ctx, "token", -1, []*events.Event{ev1, ev2, ev3}); err != nil {
		t.Fatalf("append: %v", err)
	}

	a, err := index.Rebuild(ctx, store, "token")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !a.Value(alice, bob).Eq(uint256.NewInt(10)) {
		t.Errorf("mirrored value = %s, want the latest approval 10", a.Value(alice, bob).Dec())
	}
	if a.Version() != 2 {
		t.Errorf("version = %d, want 2", a.Version())
	}

	// The witness must verify against the root the approvals produce.
	w := a.Witness(alice, bob)
	if err := allowance.Verify(a.Root(), alice, bob, w); err != nil {
		t.Errorf("witness does not verify: %v", err)
	}
}

func TestRevokedAllowanceReadsZero(t *testing.T) {
	ctx := context.Background()
	store := events.NewMemoryStore()
	alice, bob := addr("alice"), addr("bob")

	ev1, _ := events.NewApproval("token", alice, bob, uint256.NewInt(40))
	ev2, _ := events.NewApproval("token", alice, bob, uint256.NewInt(0))
	store.Append(ctx, "token", -1, []*events.Event{ev1, ev2})

	a, err := index.Rebuild(ctx, store, "token")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !a.Value(alice, bob).IsZero() {
		t.Errorf("revoked allowance must read zero")
	}
	root := a.Root()
	want := merkle.EmptyRoot()
	if !root.Equal(&want) {
		t.Errorf("revoking the only record must restore the empty root")
	}
}

func TestSlotCollisionSurfaced(t *testing.T) {
	ctx := context.Background()
	store := events.NewMemoryStore()
	alice, bob := addr("alice"), addr("bob")

	// Find a second pair landing in alice/bob's slot.
	slot := allowance.SlotOf(alice, bob)
	var owner2, spender2 field.Element
	found := false
	for i := uint64(0); i < 4096 && !found; i++ {
		o := field.FromUint64(i + 1)
		s := field.FromUint64(i + 100000)
		if allowance.SlotOf(o, s) == slot {
			owner2, spender2 = o, s
			found = true
		}
	}
	if !found {
		t.Skip("no colliding pair found in search range")
	}

	ev1, _ := events.NewApproval("token", alice, bob, uint256.NewInt(40))
	ev2, _ := events.NewApproval("token", owner2, spender2, uint256.NewInt(7))
	store.Append(ctx, "token", -1, []*events.Event{ev1, ev2})

	_, err := index.Rebuild(ctx, store, "token")
	if !errors.Is(err, index.ErrSlotCollision) {
		t.Errorf("got %v, want ErrSlotCollision", err)
	}
}

// TestMirrorTracksContract drives the contract and the mirror together and
// checks they never diverge.
func TestMirrorTracksContract(t *testing.T) {
	ctx := context.Background()
	log := events.NewMemoryStore()
	c, err := token.Deploy(ctx, token.Config{
		Name:    "Mina Test Token",
		Symbol:  "MTT",
		TokenID: field.HashBytes([]byte("MTT")),
	}, ledger.NewMemory(), log)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	mirror := index.New()
	alice, bob := addr("alice"), addr("bob")

	// Pick a third party whose slot does not collide with (alice, bob).
	carol := addr("carol")
	for i := 0; allowance.SlotOf(alice, carol) == allowance.SlotOf(alice, bob) && i < 64; i++ {
		carol = field.Hash(carol)
	}

	steps := []func() error{
		func() error { return c.ApproveSpend(ctx, alice, bob, uint256.NewInt(40), mirror.Path(alice, bob)) },
		func() error { return c.ApproveSpend(ctx, alice, carol, uint256.NewInt(5), mirror.Path(alice, carol)) },
		func() error {
			return c.IncreaseAllowance(ctx, alice, bob, uint256.NewInt(10), mirror.Witness(alice, bob))
		},
		func() error {
			return c.DecreaseAllowance(ctx, alice, carol, uint256.NewInt(5), mirror.Witness(alice, carol))
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if err := mirror.CatchUp(ctx, log, c.Stream()); err != nil {
			t.Fatalf("catch-up after step %d: %v", i, err)
		}
		root := mirror.Root()
		commit := c.Commitment()
		if !root.Equal(&commit) {
			t.Fatalf("step %d: mirror root diverged from commitment", i)
		}
	}

	if !mirror.Value(alice, bob).Eq(uint256.NewInt(50)) {
		t.Errorf("alice->bob = %s, want 50", mirror.Value(alice, bob).Dec())
	}
	if !mirror.Value(alice, carol).IsZero() {
		t.Errorf("alice->carol = %s, want 0", mirror.Value(alice, carol).Dec())
	}
}
