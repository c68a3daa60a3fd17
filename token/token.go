// Package token implements the fungible-token contract: ERC-20-style
// operations over balances bookkept by the external ledger protocol, with
// allowances committed to a Merkle accumulator root instead of stored state.
//
// The contract persists two on-chain fields, the total amount in circulation
// and the allowance commitment. Everything else is either delegated to the
// ledger protocol or proven from caller-supplied witnesses.
package token

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/allowance"
	"github.com/amwLEE/Mina-ERC20/events"
	"github.com/amwLEE/Mina-ERC20/field"
	"github.com/amwLEE/Mina-ERC20/ledger"
	"github.com/amwLEE/Mina-ERC20/merkle"
)

// Config carries the deployment-time parameters. The initial commitment is
// an explicit parameter rather than a package-level constant; leave it zero
// to start from the empty accumulator.
type Config struct {
	Name     string
	Symbol   string
	Decimals uint8

	// TokenID identifies this token inside the external ledger.
	TokenID field.Element

	// InitialCommitment overrides the empty-tree root when resuming from a
	// known allowance table. Zero means merkle.EmptyRoot().
	InitialCommitment field.Element

	// Stream names the event stream; defaults to the symbol.
	Stream string
}

// Contract is the token ledger. It is constructed once per deployment and
// carries no multi-step state across calls: every exported operation is a
// single atomic transition validated against the state supplied in the same
// invocation.
type Contract struct {
	cfg    Config
	ledger ledger.Protocol
	log    events.Store

	totalSupply *AmountSlot
	commitment  *FieldSlot
	logVersion  int
}

// Deploy initializes a contract with zero supply and the configured initial
// commitment, against the given ledger protocol and event store.
func Deploy(ctx context.Context, cfg Config, p ledger.Protocol, log events.Store) (*Contract, error) {
	if cfg.Stream == "" {
		cfg.Stream = cfg.Symbol
	}
	initial := cfg.InitialCommitment
	if initial.IsZero() {
		initial = merkle.EmptyRoot()
	}
	head, err := log.Version(ctx, cfg.Stream)
	if err != nil {
		return nil, fmt.Errorf("token: read stream head: %w", err)
	}
	return &Contract{
		cfg:         cfg,
		ledger:      p,
		log:         log,
		totalSupply: newAmountSlot("totalAmountInCirculation", uint256.NewInt(0)),
		commitment:  newFieldSlot("commitment", initial),
		logVersion:  head,
	}, nil
}

// Name returns the token name.
func (c *Contract) Name() string { return c.cfg.Name }

// Symbol returns the token symbol.
func (c *Contract) Symbol() string { return c.cfg.Symbol }

// Decimals returns the token's decimal places.
func (c *Contract) Decimals() uint8 { return c.cfg.Decimals }

// TokenID returns the ledger token identifier.
func (c *Contract) TokenID() field.Element { return c.cfg.TokenID }

// TotalSupply returns the current total amount in circulation.
func (c *Contract) TotalSupply() *uint256.Int { return c.totalSupply.Get() }

// Commitment returns the current allowance accumulator root.
func (c *Contract) Commitment() field.Element { return c.commitment.Get() }

// BalanceOf reads the owner's balance from the external ledger. The read is
// replay-checked: the value returned is re-read and asserted unchanged so
// later logic in the same transaction uses exactly the value reported here.
func (c *Contract) BalanceOf(owner field.Element) (*uint256.Int, error) {
	bal, err := c.ledger.Balance(owner, c.cfg.TokenID)
	if err != nil {
		return nil, fmt.Errorf("token: balanceOf: %w", err)
	}
	again, err := c.ledger.Balance(owner, c.cfg.TokenID)
	if err != nil {
		return nil, fmt.Errorf("token: balanceOf: %w", err)
	}
	if !bal.Eq(again) {
		return nil, fmt.Errorf("%w: balance of %s moved during read", ErrStaleRead, field.Hex(owner))
	}
	return bal, nil
}

// Mint credits account with amount and grows the total supply. Fails if the
// ledger rejects the mint target; overflow beyond the amount type is a hard
// error.
func (c *Contract) Mint(ctx context.Context, account field.Element, amount *uint256.Int) error {
	supply := c.totalSupply.Get()
	if err := c.totalSupply.AssertEquals(supply); err != nil {
		return err
	}
	newTotal, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	if err := c.ledger.Credit(account, c.cfg.TokenID, amount); err != nil {
		return fmt.Errorf("token: mint: %w", err)
	}
	var minted field.Element
	if err := c.emitTransfer(ctx, minted, account, amount); err != nil {
		if rbErr := c.ledger.Debit(account, c.cfg.TokenID, amount); rbErr != nil {
			return fmt.Errorf("token: mint: append failed (%w) and compensation failed: %v", err, rbErr)
		}
		return err
	}
	c.totalSupply.Set(newTotal)
	return nil
}

// Burn debits the caller and shrinks the total supply. Burning more than
// the circulating supply fails rather than wrapping.
func (c *Contract) Burn(ctx context.Context, sender field.Element, amount *uint256.Int) error {
	supply := c.totalSupply.Get()
	if err := c.totalSupply.AssertEquals(supply); err != nil {
		return err
	}
	if amount.Gt(supply) {
		return fmt.Errorf("%w: supply %s, burn %s", ErrSupplyUnderflow, supply.Dec(), amount.Dec())
	}
	if err := c.ledger.Debit(sender, c.cfg.TokenID, amount); err != nil {
		return fmt.Errorf("token: burn: %w", err)
	}
	var burned field.Element
	if err := c.emitTransfer(ctx, sender, burned, amount); err != nil {
		if rbErr := c.ledger.Credit(sender, c.cfg.TokenID, amount); rbErr != nil {
			return fmt.Errorf("token: burn: append failed (%w) and compensation failed: %v", err, rbErr)
		}
		return err
	}
	c.totalSupply.Set(new(uint256.Int).Sub(supply, amount))
	return nil
}

// Transfer moves value from sender to to. Non-negative resulting balances
// are the ledger protocol's invariant; the contract does not re-derive them.
func (c *Contract) Transfer(ctx context.Context, sender, to field.Element, value *uint256.Int) error {
	if err := c.move(sender, to, value); err != nil {
		return fmt.Errorf("token: transfer: %w", err)
	}
	if err := c.emitTransfer(ctx, sender, to, value); err != nil {
		if rbErr := c.move(to, sender, value); rbErr != nil {
			return fmt.Errorf("token: transfer: append failed (%w) and compensation failed: %v", err, rbErr)
		}
		return err
	}
	return nil
}

// TransferFrom moves value from from to to, gated on the sender's witnessed
// allowance. The allowance is NOT decremented here: callers follow the
// two-step protocol and issue an explicit DecreaseAllowance afterwards, so
// repeated spends against the same approval succeed until they do.
func (c *Contract) TransferFrom(ctx context.Context, sender, from, to field.Element, value *uint256.Int, w allowance.Witness) error {
	approved, err := c.Allowance(from, sender, w)
	if err != nil {
		return err
	}
	if approved.Lt(value) {
		return fmt.Errorf("%w: approved %s, requested %s", ErrInsufficientAllowance, approved.Dec(), value.Dec())
	}
	if err := c.move(from, to, value); err != nil {
		return fmt.Errorf("token: transferFrom: %w", err)
	}
	if err := c.emitTransfer(ctx, from, to, value); err != nil {
		if rbErr := c.move(to, from, value); rbErr != nil {
			return fmt.Errorf("token: transferFrom: append failed (%w) and compensation failed: %v", err, rbErr)
		}
		return err
	}
	return nil
}

// Allowance returns the committed allowance of (owner, spender), verified
// against the on-chain commitment through the supplied witness. The store
// holds only the root, so the witness carries the claimed value; a witness
// inconsistent with the real off-chain table fails verification as long as
// it was produced against the current commitment (see package index for the
// honest source).
func (c *Contract) Allowance(owner, spender field.Element, w allowance.Witness) (*uint256.Int, error) {
	commit := c.commitment.Get()
	if err := c.commitment.AssertEquals(commit); err != nil {
		return nil, err
	}
	if err := allowance.Verify(commit, owner, spender, w); err != nil {
		return nil, err
	}
	// A nil value only verifies against an empty slot; it reads as zero.
	if w.Value == nil {
		return uint256.NewInt(0), nil
	}
	return w.Value.Clone(), nil
}

// ApproveSpend sets the allowance of (sender, spender) to value by folding
// the new record leaf through the supplied path. The path is trusted to
// describe the current committed tree; it is not checked against the
// previous leaf, so an inconsistent path rebinds a slot silently. Emits the
// Approval event that the off-chain index replays.
func (c *Contract) ApproveSpend(ctx context.Context, sender, spender field.Element, value *uint256.Int, path merkle.Path) error {
	commit := c.commitment.Get()
	if err := c.commitment.AssertEquals(commit); err != nil {
		return err
	}
	newRoot, err := allowance.NewRoot(sender, spender, value, path)
	if err != nil {
		return err
	}
	if err := c.emitApproval(ctx, sender, spender, value); err != nil {
		return err
	}
	c.commitment.Set(newRoot)
	return nil
}

// IncreaseAllowance reads the current allowance through the witness and
// approves current + added. Non-atomic composition of Allowance and
// ApproveSpend; the same path serves both, since a single-leaf update
// leaves every sibling hash unchanged.
func (c *Contract) IncreaseAllowance(ctx context.Context, sender, spender field.Element, added *uint256.Int, w allowance.Witness) error {
	current, err := c.Allowance(sender, spender, w)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(current, added)
	if overflow {
		return ErrAllowanceOverflow
	}
	return c.ApproveSpend(ctx, sender, spender, next, w.Path)
}

// DecreaseAllowance reads the current allowance through the witness and
// approves current - subtracted. Subtracting more than the current value
// is a hard error, not a wrap to zero.
func (c *Contract) DecreaseAllowance(ctx context.Context, sender, spender field.Element, subtracted *uint256.Int, w allowance.Witness) error {
	current, err := c.Allowance(sender, spender, w)
	if err != nil {
		return err
	}
	if subtracted.Gt(current) {
		return fmt.Errorf("%w: current %s, decrease %s", ErrAllowanceUnderflow, current.Dec(), subtracted.Dec())
	}
	return c.ApproveSpend(ctx, sender, spender, new(uint256.Int).Sub(current, subtracted), w.Path)
}

// move is the debit/credit pair behind Transfer and TransferFrom. The
// credit side is compensated if it fails after the debit applied, keeping
// the pair all-or-nothing.
func (c *Contract) move(from, to field.Element, value *uint256.Int) error {
	if to.IsZero() {
		return fmt.Errorf("%w: transfer to zero address", ledger.ErrInvalidAccount)
	}
	if err := c.ledger.Debit(from, c.cfg.TokenID, value); err != nil {
		return err
	}
	if err := c.ledger.Credit(to, c.cfg.TokenID, value); err != nil {
		if restoreErr := c.ledger.Credit(from, c.cfg.TokenID, value); restoreErr != nil {
			return fmt.Errorf("credit failed (%w) and compensation failed: %v", err, restoreErr)
		}
		return err
	}
	return nil
}

// EmitTransfer appends a Transfer event on behalf of the delegated
// execution gateway, which moves balances through the ledger directly.
func (c *Contract) EmitTransfer(ctx context.Context, from, to field.Element, value *uint256.Int) error {
	return c.emitTransfer(ctx, from, to, value)
}

func (c *Contract) emitTransfer(ctx context.Context, from, to field.Element, value *uint256.Int) error {
	ev, err := events.NewTransfer(c.cfg.Stream, from, to, value)
	if err != nil {
		return err
	}
	return c.append(ctx, ev)
}

func (c *Contract) emitApproval(ctx context.Context, owner, spender field.Element, value *uint256.Int) error {
	ev, err := events.NewApproval(c.cfg.Stream, owner, spender, value)
	if err != nil {
		return err
	}
	return c.append(ctx, ev)
}

// append is the commit point of every operation: slot writes happen only
// after the event is in the log, and ledger moves are reversed when the
// append fails. A failed transaction must leave no state change, and a
// state change without its event would permanently desync replayed mirrors.
func (c *Contract) append(ctx context.Context, ev *events.Event) error {
	head, err := c.log.Append(ctx, c.cfg.Stream, c.logVersion, []*events.Event{ev})
	if err != nil {
		return fmt.Errorf("token: append event: %w", err)
	}
	c.logVersion = head
	return nil
}

// Stream returns the contract's event stream name.
func (c *Contract) Stream() string { return c.cfg.Stream }

// Ledger exposes the underlying protocol to the delegated execution
// gateway.
func (c *Contract) Ledger() ledger.Protocol { return c.ledger }
