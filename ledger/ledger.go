// Package ledger is the boundary to the external ledger protocol: the
// out-of-scope system that owns account balances, permissions, verification
// keys, and the sandboxed execution of deferred callbacks.
//
// The token contract consumes this interface and never reimplements its
// guarantees. Memory is a faithful in-process implementation used by tests
// and the demo CLI.
package ledger

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/field"
)

var (
	ErrInvalidAccount      = errors.New("ledger: invalid account address")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrBalanceOverflow     = errors.New("ledger: balance overflow")
	ErrEffectMismatch      = errors.New("ledger: callback effect does not match its descriptor")
	ErrBadSignature        = errors.New("ledger: signature verification failed")
	ErrUnknownAccount      = errors.New("ledger: unknown account")
)

// Delta is a signed balance change: a sign and an unsigned magnitude,
// mirroring how the protocol represents Int64 amounts. A zero magnitude
// always carries Sgn = +1.
type Delta struct {
	Sgn       int // +1 or -1
	Magnitude *uint256.Int
}

// PosDelta builds a non-negative delta.
func PosDelta(v *uint256.Int) Delta {
	return Delta{Sgn: 1, Magnitude: v.Clone()}
}

// NegDelta builds a debit delta. A zero magnitude normalizes to positive.
func NegDelta(v *uint256.Int) Delta {
	if v.IsZero() {
		return PosDelta(v)
	}
	return Delta{Sgn: -1, Magnitude: v.Clone()}
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d.Magnitude == nil || d.Magnitude.IsZero()
}

// Equal compares sign and magnitude.
func (d Delta) Equal(o Delta) bool {
	if d.IsZero() && o.IsZero() {
		return true
	}
	if d.IsZero() != o.IsZero() {
		return false
	}
	return d.Sgn == o.Sgn && d.Magnitude.Eq(o.Magnitude)
}

// AccountUpdate is the balance-change descriptor a deferred callback
// proposes: which account, which token, and the signed delta. Children
// counts nested updates beneath it; the gateway only authorizes flat ones.
type AccountUpdate struct {
	Address       field.Element
	TokenID       field.Element
	BalanceChange Delta
	Children      int
}

// Callback is a deferred action in tagged-variant form: the descriptor of
// the effect it will produce, and the effect itself. The protocol binds the
// two together (cryptographically on a real chain, by replay checking in
// Memory); consumers inspect Update and never introspect Effect.
type Callback struct {
	Update AccountUpdate
	Effect func(p Protocol) error
}

// Permissions controls who may edit an account. Values follow the
// protocol's authorization kinds.
type Permissions struct {
	EditState          AuthKind
	Send               AuthKind
	Receive            AuthKind
	SetVerificationKey AuthKind
}

// AuthKind is a permission level for an account operation.
type AuthKind uint8

const (
	AuthNone AuthKind = iota
	AuthSignature
	AuthProof
)

// DefaultZkappPermissions are the permissions installed on a freshly
// deployed child zkApp account: state edits and sends require proofs,
// receives are open.
func DefaultZkappPermissions() Permissions {
	return Permissions{
		EditState:          AuthProof,
		Send:               AuthProof,
		Receive:            AuthNone,
		SetVerificationKey: AuthSignature,
	}
}

// VerificationKey identifies the circuit an account's proofs must satisfy.
type VerificationKey struct {
	Hash field.Element
	Data []byte
}

// Authorization is a signature handle over a single message. Producing and
// checking real signatures is the protocol's job; this type only carries
// the claim.
type Authorization struct {
	Account   field.Element
	Signature field.Element
}

// Protocol is the narrow interface the contract consumes from the external
// ledger: balance movement, authenticated reads, account bootstrap
// primitives, and sandboxed callback execution.
type Protocol interface {
	// Credit adds amount to (account, tokenID).
	Credit(account, tokenID field.Element, amount *uint256.Int) error

	// Debit removes amount from (account, tokenID). Fails rather than
	// letting a balance go negative.
	Debit(account, tokenID field.Element, amount *uint256.Int) error

	// Balance returns the current balance of (account, tokenID).
	Balance(account, tokenID field.Element) (*uint256.Int, error)

	// VerifySignature checks an authorization over a message.
	VerifySignature(auth Authorization, message field.Element) error

	// SetPermissions installs account permissions.
	SetPermissions(account field.Element, p Permissions) error

	// SetVerificationKey installs the verification key for an account.
	SetVerificationKey(account field.Element, vk VerificationKey) error

	// Execute runs a deferred callback atomically and returns its verified
	// balance-change descriptor. If the effect diverges from the descriptor
	// nothing is applied and ErrEffectMismatch is returned.
	Execute(cb Callback) (AccountUpdate, error)
}
