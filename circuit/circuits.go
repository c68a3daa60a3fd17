// Package circuit contains the gnark circuits that prove the two witnessed
// allowance operations, verified read and approve-spend, against the
// on-chain commitment, together with a local Groth16 prover registry.
//
// The in-circuit logic mirrors the native accumulator exactly: same MiMC
// record hash, same zero-leaf convention for zero values, same canonical
// slot derivation and fold order. If either side drifts, proofs stop
// verifying; the tests pin them together.
package circuit

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"github.com/amwLEE/Mina-ERC20/allowance"
	"github.com/amwLEE/Mina-ERC20/field"
	"github.com/amwLEE/Mina-ERC20/merkle"
)

// AllowanceCircuit proves that the committed allowance of (Owner, Spender)
// is Value, and that Value >= Threshold. Used by transferFrom-style gating:
// the threshold is the transfer amount.
type AllowanceCircuit struct {
	// Public inputs
	Commitment frontend.Variable `gnark:",public"`
	Owner      frontend.Variable `gnark:",public"`
	Spender    frontend.Variable `gnark:",public"`
	Threshold  frontend.Variable `gnark:",public"`

	// Private witness
	Value    frontend.Variable
	Siblings [merkle.Depth]frontend.Variable
}

// Define implements frontend.Circuit.
func (c *AllowanceCircuit) Define(api frontend.API) error {
	root, err := foldRecord(api, c.Owner, c.Spender, c.Value, c.Siblings)
	if err != nil {
		return err
	}
	api.AssertIsEqual(root, c.Commitment)
	api.AssertIsLessOrEqual(c.Threshold, c.Value)
	return nil
}

// ApproveSpendCircuit proves that NewCommitment is the root produced by
// writing NewValue for (Owner, Spender) along the supplied path, the state
// transition approveSpend performs.
type ApproveSpendCircuit struct {
	// Public inputs
	NewCommitment frontend.Variable `gnark:",public"`
	Owner         frontend.Variable `gnark:",public"`
	Spender       frontend.Variable `gnark:",public"`
	NewValue      frontend.Variable `gnark:",public"`

	// Private witness
	Siblings [merkle.Depth]frontend.Variable
}

// Define implements frontend.Circuit.
func (c *ApproveSpendCircuit) Define(api frontend.API) error {
	root, err := foldRecord(api, c.Owner, c.Spender, c.NewValue, c.Siblings)
	if err != nil {
		return err
	}
	api.AssertIsEqual(root, c.NewCommitment)
	return nil
}

// foldRecord computes the accumulator root for a record and its sibling
// path. The record's canonical slot is re-derived in-circuit from
// MiMC(owner, spender), so a witness cannot claim a non-canonical position.
func foldRecord(api frontend.API, owner, spender, value frontend.Variable, siblings [merkle.Depth]frontend.Variable) (frontend.Variable, error) {
	slotHash, err := hashVars(api, owner, spender)
	if err != nil {
		return nil, err
	}
	slotBits := api.ToBinary(slotHash)

	// Zero-value records occupy the zero leaf, same as empty slots.
	record, err := hashVars(api, owner, spender, value)
	if err != nil {
		return nil, err
	}
	cur := api.Select(api.IsZero(value), 0, record)

	for i := 0; i < merkle.Depth; i++ {
		bit := slotBits[i]
		left := api.Select(bit, siblings[i], cur)
		right := api.Select(bit, cur, siblings[i])
		if cur, err = hashVars(api, left, right); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// hashVars hashes with a fresh MiMC instance per call, matching field.Hash.
func hashVars(api frontend.API, vars ...frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(vars...)
	return h.Sum(), nil
}

// AllowanceAssignment builds the full witness for AllowanceCircuit from a
// commitment and an allowance witness.
func AllowanceAssignment(commitment, owner, spender field.Element, threshold *big.Int, w allowance.Witness) *AllowanceCircuit {
	a := &AllowanceCircuit{
		Commitment: toBig(commitment),
		Owner:      toBig(owner),
		Spender:    toBig(spender),
		Threshold:  threshold,
		Value:      w.Value.ToBig(),
	}
	for i := range w.Path.Siblings {
		a.Siblings[i] = toBig(w.Path.Siblings[i])
	}
	return a
}

// ApproveSpendAssignment builds the full witness for ApproveSpendCircuit.
func ApproveSpendAssignment(newCommitment, owner, spender field.Element, newValue *big.Int, path merkle.Path) *ApproveSpendCircuit {
	a := &ApproveSpendCircuit{
		NewCommitment: toBig(newCommitment),
		Owner:         toBig(owner),
		Spender:       toBig(spender),
		NewValue:      newValue,
	}
	for i := range path.Siblings {
		a.Siblings[i] = toBig(path.Siblings[i])
	}
	return a
}

func toBig(e field.Element) *big.Int {
	return e.BigInt(new(big.Int))
}
