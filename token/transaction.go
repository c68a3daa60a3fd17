package token

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/allowance"
	"github.com/amwLEE/Mina-ERC20/field"
	"github.com/amwLEE/Mina-ERC20/merkle"
)

// Pending is a proof-carrying transaction under construction. It captures a
// snapshot of the two on-chain slots at Begin, stages exactly one operation
// against that snapshot, and applies it at Settle only if the snapshot still
// matches the live state.
//
// Two transactions built from the same snapshot both pass their local
// assertions; whichever settles second fails with ErrStaleRead and must be
// rebuilt against current state. There is no lock to take; this
// optimistic pattern is the only concurrency control a contract has.
type Pending struct {
	c *Contract

	preSupply     *uint256.Int
	preCommitment field.Element

	balanceReads []balanceRead
	op           func(ctx context.Context) error
	opName       string
}

type balanceRead struct {
	owner field.Element
	value *uint256.Int
}

// Begin snapshots the on-chain state and opens a transaction against it.
func (c *Contract) Begin() *Pending {
	return &Pending{
		c:             c,
		preSupply:     c.totalSupply.Get(),
		preCommitment: c.commitment.Get(),
	}
}

// Supply returns the snapshot's total supply.
func (p *Pending) Supply() *uint256.Int { return p.preSupply.Clone() }

// Commitment returns the snapshot's allowance commitment.
func (p *Pending) Commitment() field.Element { return p.preCommitment }

// BalanceOf reads a balance and records it as a settlement precondition:
// the transaction fails if the balance moved by the time it settles.
func (p *Pending) BalanceOf(owner field.Element) (*uint256.Int, error) {
	bal, err := p.c.BalanceOf(owner)
	if err != nil {
		return nil, err
	}
	p.balanceReads = append(p.balanceReads, balanceRead{owner: owner, value: bal.Clone()})
	return bal, nil
}

func (p *Pending) stage(name string, op func(ctx context.Context) error) error {
	if p.op != nil {
		return fmt.Errorf("%w: %s already staged", ErrAlreadyStaged, p.opName)
	}
	p.opName = name
	p.op = op
	return nil
}

// Mint stages a mint operation.
func (p *Pending) Mint(account field.Element, amount *uint256.Int) error {
	return p.stage("mint", func(ctx context.Context) error {
		return p.c.Mint(ctx, account, amount)
	})
}

// Burn stages a burn operation.
func (p *Pending) Burn(sender field.Element, amount *uint256.Int) error {
	return p.stage("burn", func(ctx context.Context) error {
		return p.c.Burn(ctx, sender, amount)
	})
}

// Transfer stages a transfer operation.
func (p *Pending) Transfer(sender, to field.Element, value *uint256.Int) error {
	return p.stage("transfer", func(ctx context.Context) error {
		return p.c.Transfer(ctx, sender, to, value)
	})
}

// TransferFrom stages an allowance-gated transfer.
func (p *Pending) TransferFrom(sender, from, to field.Element, value *uint256.Int, w allowance.Witness) error {
	return p.stage("transferFrom", func(ctx context.Context) error {
		return p.c.TransferFrom(ctx, sender, from, to, value, w)
	})
}

// ApproveSpend stages an allowance write.
func (p *Pending) ApproveSpend(sender, spender field.Element, value *uint256.Int, path merkle.Path) error {
	return p.stage("approveSpend", func(ctx context.Context) error {
		return p.c.ApproveSpend(ctx, sender, spender, value, path)
	})
}

// IncreaseAllowance stages an allowance increase.
func (p *Pending) IncreaseAllowance(sender, spender field.Element, added *uint256.Int, w allowance.Witness) error {
	return p.stage("increaseAllowance", func(ctx context.Context) error {
		return p.c.IncreaseAllowance(ctx, sender, spender, added, w)
	})
}

// DecreaseAllowance stages an allowance decrease.
func (p *Pending) DecreaseAllowance(sender, spender field.Element, subtracted *uint256.Int, w allowance.Witness) error {
	return p.stage("decreaseAllowance", func(ctx context.Context) error {
		return p.c.DecreaseAllowance(ctx, sender, spender, subtracted, w)
	})
}

// Settle re-asserts every snapshot precondition against live state and, if
// they all still hold, applies the staged operation. A rejected transaction
// has no effects.
func (p *Pending) Settle(ctx context.Context) error {
	if p.op == nil {
		return ErrNothingStaged
	}
	if err := p.c.totalSupply.AssertEquals(p.preSupply); err != nil {
		return err
	}
	if err := p.c.commitment.AssertEquals(p.preCommitment); err != nil {
		return err
	}
	for _, r := range p.balanceReads {
		cur, err := p.c.ledger.Balance(r.owner, p.c.cfg.TokenID)
		if err != nil {
			return fmt.Errorf("token: settle balance precondition: %w", err)
		}
		if !cur.Eq(r.value) {
			return fmt.Errorf("%w: balance of %s is %s, asserted %s",
				ErrStaleRead, field.Hex(r.owner), cur.Dec(), r.value.Dec())
		}
	}
	return p.op(ctx)
}
