package token_test

import (
	"context"
	"errors"
	"testing"

	"github.com/amwLEE/Mina-ERC20/token"
)

func TestPendingSettlesAgainstFreshSnapshot(t *testing.T) {
	f := deploy(t)
	ctx := context.Background()
	alice := addr("alice")

	p := f.contract.Begin()
	if err := p.Mint(alice, amount(100)); err != nil {
		t.Fatalf("stage mint: %v", err)
	}
	if err := p.Settle(ctx); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !f.contract.TotalSupply().Eq(amount(100)) {
		t.Errorf("totalSupply = %s, want 100", f.contract.TotalSupply().Dec())
	}
}

func TestConcurrentTransactionsConflictAtSettlement(t *testing.T) {
	f := deploy(t)
	ctx := context.Background()
	alice := addr("alice")

	// Two transactions constructed against the same supply snapshot.
	p1 := f.contract.Begin()
	p2 := f.contract.Begin()
	if err := p1.Mint(alice, amount(100)); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := p2.Mint(alice, amount(50)); err != nil {
		t.Fatalf("stage: %v", err)
	}

	if err := p1.Settle(ctx); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	err := p2.Settle(ctx)
	if !errors.Is(err, token.ErrStaleRead) {
		t.Fatalf("second settle: got %v, want ErrStaleRead", err)
	}

	// The rejected transaction left no effects.
	if !f.contract.TotalSupply().Eq(amount(100)) {
		t.Errorf("totalSupply = %s, want 100", f.contract.TotalSupply().Dec())
	}

	// Rebuilt against current state it settles fine.
	p3 := f.contract.Begin()
	if err := p3.Mint(alice, amount(50)); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := p3.Settle(ctx); err != nil {
		t.Fatalf("rebuilt settle: %v", err)
	}
	if !f.contract.TotalSupply().Eq(amount(150)) {
		t.Errorf("totalSupply = %s, want 150", f.contract.TotalSupply().Dec())
	}
}

func TestApprovalsConflictAtTheRoot(t *testing.T) {
	f := deploy(t)
	ctx := context.Background()
	alice, bob, carol, dan := addr("alice"), addr("bob"), addr("carol"), addr("dan")

	// Two approvals for different pairs, built from the same commitment
	// snapshot. Their leaves differ but the shared root serializes them.
	p1 := f.contract.Begin()
	p2 := f.contract.Begin()
	if err := p1.ApproveSpend(alice, bob, amount(10), f.mirror.Path(alice, bob)); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := p2.ApproveSpend(carol, dan, amount(20), f.mirror.Path(carol, dan)); err != nil {
		t.Fatalf("stage: %v", err)
	}

	if err := p1.Settle(ctx); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if err := p2.Settle(ctx); !errors.Is(err, token.ErrStaleRead) {
		t.Fatalf("second settle: got %v, want ErrStaleRead", err)
	}
}

func TestBalancePreconditionCheckedAtSettlement(t *testing.T) {
	f := deploy(t)
	ctx := context.Background()
	alice, bob := addr("alice"), addr("bob")

	f.contract.Mint(ctx, alice, amount(100))

	p := f.contract.Begin()
	bal, err := p.BalanceOf(alice)
	if err != nil {
		t.Fatalf("balanceOf: %v", err)
	}
	if err := p.Transfer(alice, bob, bal); err != nil {
		t.Fatalf("stage: %v", err)
	}

	// The balance moves underneath the pending transaction.
	if err := f.contract.Ledger().Debit(alice, f.contract.TokenID(), amount(1)); err != nil {
		t.Fatalf("debit: %v", err)
	}

	if err := p.Settle(ctx); !errors.Is(err, token.ErrStaleRead) {
		t.Fatalf("got %v, want ErrStaleRead on balance precondition", err)
	}
}

func TestPendingSingleOperation(t *testing.T) {
	f := deploy(t)
	alice := addr("alice")

	p := f.contract.Begin()
	if err := p.Mint(alice, amount(1)); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := p.Burn(alice, amount(1)); !errors.Is(err, token.ErrAlreadyStaged) {
		t.Errorf("got %v, want ErrAlreadyStaged", err)
	}

	empty := f.contract.Begin()
	if err := empty.Settle(context.Background()); !errors.Is(err, token.ErrNothingStaged) {
		t.Errorf("got %v, want ErrNothingStaged", err)
	}
}
