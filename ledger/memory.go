package ledger

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/field"
)

type accountKey struct {
	Addr  field.Element
	Token field.Element
}

// Memory is an in-process ledger protocol used by tests and the demo CLI.
// It reproduces the protocol's guarantees operationally: non-negative
// balances, atomic callback execution, and effect/descriptor binding.
type Memory struct {
	mu       sync.RWMutex
	balances map[accountKey]*uint256.Int
	perms    map[field.Element]Permissions
	vks      map[field.Element]VerificationKey
	secrets  map[field.Element]field.Element
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[accountKey]*uint256.Int),
		perms:    make(map[field.Element]Permissions),
		vks:      make(map[field.Element]VerificationKey),
		secrets:  make(map[field.Element]field.Element),
	}
}

// RegisterKey installs a signing secret for an account so that Sign and
// VerifySignature work in tests. Real key management is out of scope.
func (m *Memory) RegisterKey(account, secret field.Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[account] = secret
}

// Sign produces an authorization for account over message.
func (m *Memory) Sign(account, message field.Element) (Authorization, error) {
	m.mu.RLock()
	secret, ok := m.secrets[account]
	m.mu.RUnlock()
	if !ok {
		return Authorization{}, fmt.Errorf("%w: %s", ErrUnknownAccount, field.Hex(account))
	}
	return Authorization{Account: account, Signature: field.Hash(secret, message)}, nil
}

// Credit adds amount to (account, tokenID).
func (m *Memory) Credit(account, tokenID field.Element, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credit(account, tokenID, amount)
}

func (m *Memory) credit(account, tokenID field.Element, amount *uint256.Int) error {
	if account.IsZero() {
		return fmt.Errorf("%w: credit to zero address", ErrInvalidAccount)
	}
	key := accountKey{Addr: account, Token: tokenID}
	cur := m.balances[key]
	if cur == nil {
		cur = uint256.NewInt(0)
	}
	sum, overflow := new(uint256.Int).AddOverflow(cur, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	m.balances[key] = sum
	return nil
}

// Debit removes amount from (account, tokenID).
func (m *Memory) Debit(account, tokenID field.Element, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debit(account, tokenID, amount)
}

func (m *Memory) debit(account, tokenID field.Element, amount *uint256.Int) error {
	if account.IsZero() {
		return fmt.Errorf("%w: debit from zero address", ErrInvalidAccount)
	}
	key := accountKey{Addr: account, Token: tokenID}
	cur := m.balances[key]
	if cur == nil {
		cur = uint256.NewInt(0)
	}
	if cur.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, cur.Dec(), amount.Dec())
	}
	m.balances[key] = new(uint256.Int).Sub(cur, amount)
	return nil
}

// Balance returns the balance of (account, tokenID), zero for unknown pairs.
func (m *Memory) Balance(account, tokenID field.Element) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur := m.balances[accountKey{Addr: account, Token: tokenID}]
	if cur == nil {
		return uint256.NewInt(0), nil
	}
	return cur.Clone(), nil
}

// VerifySignature checks an authorization against the registered secret.
func (m *Memory) VerifySignature(auth Authorization, message field.Element) error {
	m.mu.RLock()
	secret, ok := m.secrets[auth.Account]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, field.Hex(auth.Account))
	}
	want := field.Hash(secret, message)
	if !auth.Signature.Equal(&want) {
		return ErrBadSignature
	}
	return nil
}

// SetPermissions installs account permissions.
func (m *Memory) SetPermissions(account field.Element, p Permissions) error {
	if account.IsZero() {
		return ErrInvalidAccount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perms[account] = p
	return nil
}

// Permissions returns the installed permissions for an account.
func (m *Memory) Permissions(account field.Element) (Permissions, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.perms[account]
	return p, ok
}

// SetVerificationKey installs the verification key for an account.
func (m *Memory) SetVerificationKey(account field.Element, vk VerificationKey) error {
	if account.IsZero() {
		return ErrInvalidAccount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vks[account] = vk
	return nil
}

// VerificationKey returns the installed key for an account.
func (m *Memory) VerificationKey(account field.Element) (VerificationKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vk, ok := m.vks[account]
	return vk, ok
}

// Execute runs a callback against a staged copy of the ledger, checks the
// resulting net change against the callback's descriptor, and commits the
// staging only if they agree. The effect may touch only the described
// account; anything else is a descriptor violation. All-or-nothing.
func (m *Memory) Execute(cb Callback) (AccountUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	staging := &Memory{
		balances: make(map[accountKey]*uint256.Int, len(m.balances)),
		perms:    make(map[field.Element]Permissions, len(m.perms)),
		vks:      make(map[field.Element]VerificationKey, len(m.vks)),
		secrets:  make(map[field.Element]field.Element, len(m.secrets)),
	}
	for k, v := range m.balances {
		staging.balances[k] = v.Clone()
	}
	for k, v := range m.perms {
		staging.perms[k] = v
	}
	for k, v := range m.vks {
		staging.vks[k] = v
	}
	for k, v := range m.secrets {
		staging.secrets[k] = v
	}

	if cb.Effect != nil {
		if err := cb.Effect(staging); err != nil {
			return AccountUpdate{}, fmt.Errorf("ledger: callback effect: %w", err)
		}
	}

	target := accountKey{Addr: cb.Update.Address, Token: cb.Update.TokenID}
	for key := range mergedKeys(m.balances, staging.balances) {
		pre := zeroIfNil(m.balances[key])
		post := zeroIfNil(staging.balances[key])
		if pre.Eq(post) {
			continue
		}
		if key != target {
			return AccountUpdate{}, fmt.Errorf("%w: effect touched undeclared account %s",
				ErrEffectMismatch, field.Hex(key.Addr))
		}
		var actual Delta
		if post.Gt(pre) {
			actual = PosDelta(new(uint256.Int).Sub(post, pre))
		} else {
			actual = NegDelta(new(uint256.Int).Sub(pre, post))
		}
		if !actual.Equal(cb.Update.BalanceChange) {
			return AccountUpdate{}, fmt.Errorf("%w: declared delta does not match applied change",
				ErrEffectMismatch)
		}
	}
	pre := zeroIfNil(m.balances[target])
	post := zeroIfNil(staging.balances[target])
	if pre.Eq(post) && !cb.Update.BalanceChange.IsZero() {
		return AccountUpdate{}, fmt.Errorf("%w: declared delta was never applied", ErrEffectMismatch)
	}

	m.balances = staging.balances
	m.perms = staging.perms
	m.vks = staging.vks
	m.secrets = staging.secrets
	return cb.Update, nil
}

func mergedKeys(a, b map[accountKey]*uint256.Int) map[accountKey]struct{} {
	keys := make(map[accountKey]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

func zeroIfNil(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return v
}
