// Package zkapp is the delegated execution gateway: it lets a second
// contract act through a deferred callback whose proposed balance change is
// inspected structurally before it is allowed to take effect.
//
// The gateway never re-derives consent. The external protocol binds a
// callback's effects to its proof; the gateway only gates the shape of the
// resulting balance-change descriptor: flat, exact amount, right token,
// right account.
package zkapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/field"
	"github.com/amwLEE/Mina-ERC20/ledger"
	"github.com/amwLEE/Mina-ERC20/token"
)

var (
	// ErrNestedUpdates is a structural violation: the callback produced
	// child updates where only a flat, single-level effect is permitted.
	ErrNestedUpdates = errors.New("zkapp: callback produced nested account updates")

	// ErrNonzeroDelta fails a capability-only approval whose callback
	// tries to move this token.
	ErrNonzeroDelta = errors.New("zkapp: callback balance change must be zero")

	// ErrDeltaMismatch fails a token-moving delegation whose callback does
	// not consume exactly the requested value.
	ErrDeltaMismatch = errors.New("zkapp: callback delta does not match requested value")

	// ErrWrongToken fails a callback whose descriptor targets another token.
	ErrWrongToken = errors.New("zkapp: callback targets a different token")

	// ErrWrongAccount fails a callback whose descriptor debits an account
	// other than the requested one.
	ErrWrongAccount = errors.New("zkapp: callback debits a different account")

	// ErrUnauthorized is an authorization failure on an administrative
	// operation; it aborts before any assertion logic runs.
	ErrUnauthorized = errors.New("zkapp: authorization failed")
)

// Gateway validates and forwards delegated actions to the token ledger.
type Gateway struct {
	contract *token.Contract
}

// NewGateway creates a gateway for a deployed contract.
func NewGateway(c *token.Contract) *Gateway {
	return &Gateway{contract: c}
}

// ApproveZkapp executes a capability-only delegation: the callback may act
// on its own account state but must not move this token at all. The update
// must be flat and its signed delta exactly zero.
func (g *Gateway) ApproveZkapp(cb ledger.Callback) error {
	if cb.Update.Children != 0 {
		return fmt.Errorf("%w: %d children", ErrNestedUpdates, cb.Update.Children)
	}
	if !cb.Update.BalanceChange.IsZero() {
		return ErrNonzeroDelta
	}
	if _, err := g.contract.Ledger().Execute(cb); err != nil {
		return fmt.Errorf("zkapp: approve: %w", err)
	}
	return nil
}

// TransferFromZkapp executes a token-moving delegation: the callback must
// debit exactly value from from on this token, with no nested updates. The
// gateway then independently credits to and emits the Transfer event. The
// debit itself is authorized by the callback's own proven logic.
func (g *Gateway) TransferFromZkapp(ctx context.Context, from, to field.Element, value *uint256.Int, cb ledger.Callback) error {
	if cb.Update.Children != 0 {
		return fmt.Errorf("%w: %d children", ErrNestedUpdates, cb.Update.Children)
	}
	want := ledger.NegDelta(value)
	if !cb.Update.BalanceChange.Equal(want) {
		return fmt.Errorf("%w: want an exact debit of %s", ErrDeltaMismatch, value.Dec())
	}
	tokenID := g.contract.TokenID()
	if !cb.Update.TokenID.Equal(&tokenID) {
		return ErrWrongToken
	}
	if !cb.Update.Address.Equal(&from) {
		return ErrWrongAccount
	}

	update, err := g.contract.Ledger().Execute(cb)
	if err != nil {
		return fmt.Errorf("zkapp: transferFrom: %w", err)
	}
	if err := g.contract.Ledger().Credit(to, update.TokenID, value); err != nil {
		// Undo the executed debit so a rejected credit leaves no effects.
		if restoreErr := g.contract.Ledger().Credit(from, update.TokenID, value); restoreErr != nil {
			return fmt.Errorf("zkapp: credit failed (%w) and compensation failed: %v", err, restoreErr)
		}
		return fmt.Errorf("zkapp: transferFrom credit: %w", err)
	}
	if err := g.contract.EmitTransfer(ctx, from, to, value); err != nil {
		if rbErr := g.reverseMove(from, to, update.TokenID, value); rbErr != nil {
			return fmt.Errorf("zkapp: transferFrom: append failed (%w) and compensation failed: %v", err, rbErr)
		}
		return err
	}
	return nil
}

// reverseMove undoes a completed delegated move so a failed event append
// leaves no effects.
func (g *Gateway) reverseMove(from, to, tokenID field.Element, value *uint256.Int) error {
	p := g.contract.Ledger()
	if err := p.Debit(to, tokenID, value); err != nil {
		return err
	}
	return p.Credit(from, tokenID, value)
}

// DeployZkapp bootstraps a contract-controlled child account under this
// token: verifies the fresh signature authorization, installs the default
// zkApp permissions and the given verification key. Administrative, not part
// of steady-state token behavior.
func (g *Gateway) DeployZkapp(address field.Element, vk ledger.VerificationKey, auth ledger.Authorization) error {
	if !auth.Account.Equal(&address) {
		return fmt.Errorf("%w: authorization signer is not the deployed account", ErrUnauthorized)
	}
	message := field.Hash(address, vk.Hash)
	if err := g.contract.Ledger().VerifySignature(auth, message); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	p := g.contract.Ledger()
	if err := p.SetPermissions(address, ledger.DefaultZkappPermissions()); err != nil {
		return fmt.Errorf("zkapp: install permissions: %w", err)
	}
	if err := p.SetVerificationKey(address, vk); err != nil {
		return fmt.Errorf("zkapp: install verification key: %w", err)
	}
	return nil
}
