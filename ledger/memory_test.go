package ledger

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/field"
)

var testToken = field.HashBytes([]byte("TEST"))

func addr(seed string) field.Element {
	return field.HashBytes([]byte(seed))
}

func TestCreditDebitBalance(t *testing.T) {
	m := NewMemory()
	alice := addr("alice")

	if err := m.Credit(alice, testToken, uint256.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := m.Debit(alice, testToken, uint256.NewInt(30)); err != nil {
		t.Fatalf("debit: %v", err)
	}

	bal, err := m.Balance(alice, testToken)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Eq(uint256.NewInt(70)) {
		t.Errorf("balance = %s, want 70", bal.Dec())
	}
}

func TestDebitInsufficient(t *testing.T) {
	m := NewMemory()
	alice := addr("alice")
	m.Credit(alice, testToken, uint256.NewInt(10))

	err := m.Debit(alice, testToken, uint256.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	bal, _ := m.Balance(alice, testToken)
	if !bal.Eq(uint256.NewInt(10)) {
		t.Errorf("failed debit must not change the balance")
	}
}

func TestZeroAddressRejected(t *testing.T) {
	m := NewMemory()
	var zero field.Element

	if err := m.Credit(zero, testToken, uint256.NewInt(1)); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("credit to zero address: got %v, want ErrInvalidAccount", err)
	}
	if err := m.Debit(zero, testToken, uint256.NewInt(1)); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("debit from zero address: got %v, want ErrInvalidAccount", err)
	}
}

func TestSignAndVerify(t *testing.T) {
	m := NewMemory()
	alice := addr("alice")
	secret := field.HashBytes([]byte("alice-secret"))
	m.RegisterKey(alice, secret)

	msg := field.FromUint64(7)
	auth, err := m.Sign(alice, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := m.VerifySignature(auth, msg); err != nil {
		t.Errorf("verify: %v", err)
	}

	// Same authorization over a different message must fail.
	if err := m.VerifySignature(auth, field.FromUint64(8)); !errors.Is(err, ErrBadSignature) {
		t.Errorf("got %v, want ErrBadSignature", err)
	}
}

func TestExecuteBindsEffectToDescriptor(t *testing.T) {
	m := NewMemory()
	app := addr("zkapp")
	m.Credit(app, testToken, uint256.NewInt(50))

	// Honest callback: declares -20 and debits 20.
	cb := Callback{
		Update: AccountUpdate{
			Address:       app,
			TokenID:       testToken,
			BalanceChange: NegDelta(uint256.NewInt(20)),
		},
		Effect: func(p Protocol) error {
			return p.Debit(app, testToken, uint256.NewInt(20))
		},
	}
	update, err := m.Execute(cb)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !update.BalanceChange.Equal(NegDelta(uint256.NewInt(20))) {
		t.Errorf("descriptor not returned intact")
	}
	bal, _ := m.Balance(app, testToken)
	if !bal.Eq(uint256.NewInt(30)) {
		t.Errorf("balance after callback = %s, want 30", bal.Dec())
	}
}

func TestExecuteRejectsLyingCallback(t *testing.T) {
	m := NewMemory()
	app := addr("zkapp")
	m.Credit(app, testToken, uint256.NewInt(50))

	cases := []struct {
		name string
		cb   Callback
	}{
		{
			name: "declares less than it moves",
			cb: Callback{
				Update: AccountUpdate{Address: app, TokenID: testToken, BalanceChange: NegDelta(uint256.NewInt(5))},
				Effect: func(p Protocol) error { return p.Debit(app, testToken, uint256.NewInt(20)) },
			},
		},
		{
			name: "declares a change it never applies",
			cb: Callback{
				Update: AccountUpdate{Address: app, TokenID: testToken, BalanceChange: NegDelta(uint256.NewInt(5))},
				Effect: func(p Protocol) error { return nil },
			},
		},
		{
			name: "touches an undeclared account",
			cb: Callback{
				Update: AccountUpdate{Address: app, TokenID: testToken, BalanceChange: Delta{Sgn: 1, Magnitude: uint256.NewInt(0)}},
				Effect: func(p Protocol) error { return p.Credit(addr("other"), testToken, uint256.NewInt(1)) },
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before, _ := m.Balance(app, testToken)
			_, err := m.Execute(tc.cb)
			if !errors.Is(err, ErrEffectMismatch) {
				t.Fatalf("got %v, want ErrEffectMismatch", err)
			}
			after, _ := m.Balance(app, testToken)
			if !before.Eq(after) {
				t.Errorf("rejected callback must leave no partial effects")
			}
		})
	}
}

func TestDeltaEqual(t *testing.T) {
	if !PosDelta(uint256.NewInt(0)).Equal(NegDelta(uint256.NewInt(0))) {
		t.Errorf("zero deltas must compare equal regardless of sign")
	}
	if PosDelta(uint256.NewInt(3)).Equal(NegDelta(uint256.NewInt(3))) {
		t.Errorf("opposite signs must not compare equal")
	}
}

func TestExecuteStagesNonBalanceState(t *testing.T) {
	m := NewMemory()
	app := addr("zkapp")
	m.Credit(app, testToken, uint256.NewInt(50))

	// Rejected callback: installs permissions but never applies the
	// declared debit. Nothing may survive, balances or otherwise.
	rejected := Callback{
		Update: AccountUpdate{Address: app, TokenID: testToken, BalanceChange: NegDelta(uint256.NewInt(5))},
		Effect: func(p Protocol) error {
			return p.SetPermissions(app, DefaultZkappPermissions())
		},
	}
	if _, err := m.Execute(rejected); !errors.Is(err, ErrEffectMismatch) {
		t.Fatalf("got %v, want ErrEffectMismatch", err)
	}
	if _, ok := m.Permissions(app); ok {
		t.Errorf("rejected callback must not install permissions")
	}

	// Accepted callback: a zero-delta effect that installs a verification
	// key commits alongside the balances.
	vk := VerificationKey{Hash: field.HashBytes([]byte("vk"))}
	accepted := Callback{
		Update: AccountUpdate{Address: app, TokenID: testToken, BalanceChange: PosDelta(uint256.NewInt(0))},
		Effect: func(p Protocol) error {
			return p.SetVerificationKey(app, vk)
		},
	}
	if _, err := m.Execute(accepted); err != nil {
		t.Fatalf("execute: %v", err)
	}
	got, ok := m.VerificationKey(app)
	if !ok || !got.Hash.Equal(&vk.Hash) {
		t.Errorf("accepted callback's verification key not committed")
	}
}
