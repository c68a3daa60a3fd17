package circuit

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Circuit names registered by RegisterTokenCircuits.
const (
	NameAllowance    = "allowance"
	NameApproveSpend = "approve_spend"
)

// Prover manages circuit compilation, setup, and proof generation.
type Prover struct {
	mu       sync.RWMutex
	circuits map[string]*Compiled
	curve    ecc.ID
}

// Compiled holds a compiled constraint system and its keys.
type Compiled struct {
	Name         string
	CS           constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
	Constraints  int
}

// Proof is a generated proof with its public inputs, ready for submission.
type Proof struct {
	CircuitName  string   `json:"circuit_name"`
	Data         []byte   `json:"data"`
	PublicInputs []string `json:"public_inputs"`
}

// NewProver creates a prover on BN254, the field the accumulator hashes in.
func NewProver() *Prover {
	return &Prover{
		circuits: make(map[string]*Compiled),
		curve:    ecc.BN254,
	}
}

// RegisterTokenCircuits compiles and registers the allowance and
// approve-spend circuits.
func (p *Prover) RegisterTokenCircuits() error {
	if err := p.Register(NameAllowance, &AllowanceCircuit{}); err != nil {
		return err
	}
	return p.Register(NameApproveSpend, &ApproveSpendCircuit{})
}

// Register compiles a circuit, runs setup, and stores it under name.
func (p *Prover) Register(name string, circuit frontend.Circuit) error {
	start := time.Now()
	cs, err := frontend.Compile(p.curve.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return fmt.Errorf("circuit: compile %q: %w", name, err)
	}
	// Local setup; a production deployment uses a ceremony.
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("circuit: setup %q: %w", name, err)
	}

	slog.Info("circuit compiled",
		"name", name,
		"constraints", cs.GetNbConstraints(),
		"elapsed", time.Since(start))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.circuits[name] = &Compiled{
		Name:         name,
		CS:           cs,
		ProvingKey:   pk,
		VerifyingKey: vk,
		Constraints:  cs.GetNbConstraints(),
	}
	return nil
}

// Get returns a registered circuit.
func (p *Prover) Get(name string) (*Compiled, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cc, ok := p.circuits[name]
	return cc, ok
}

// Names returns all registered circuit names.
func (p *Prover) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.circuits))
	for name := range p.circuits {
		names = append(names, name)
	}
	return names
}

// Prove generates a Groth16 proof for the named circuit and assignment.
func (p *Prover) Prove(name string, assignment frontend.Circuit) (*Proof, error) {
	cc, ok := p.Get(name)
	if !ok {
		return nil, fmt.Errorf("circuit: %q not registered", name)
	}

	start := time.Now()
	witness, err := frontend.NewWitness(assignment, p.curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("circuit: witness: %w", err)
	}
	proof, err := groth16.Prove(cc.CS, cc.ProvingKey, witness)
	if err != nil {
		return nil, fmt.Errorf("circuit: prove %q: %w", name, err)
	}
	slog.Info("proof generated", "name", name, "elapsed", time.Since(start))

	public, err := witness.Public()
	if err != nil {
		return nil, fmt.Errorf("circuit: public witness: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("circuit: serialize proof: %w", err)
	}
	inputs, err := publicInputHex(public)
	if err != nil {
		return nil, err
	}
	return &Proof{
		CircuitName:  name,
		Data:         buf.Bytes(),
		PublicInputs: inputs,
	}, nil
}

// Verify proves and verifies an assignment locally, the pre-submission
// sanity check.
func (p *Prover) Verify(name string, assignment frontend.Circuit) error {
	cc, ok := p.Get(name)
	if !ok {
		return fmt.Errorf("circuit: %q not registered", name)
	}
	witness, err := frontend.NewWitness(assignment, p.curve.ScalarField())
	if err != nil {
		return fmt.Errorf("circuit: witness: %w", err)
	}
	proof, err := groth16.Prove(cc.CS, cc.ProvingKey, witness)
	if err != nil {
		return fmt.Errorf("circuit: prove %q: %w", name, err)
	}
	public, err := witness.Public()
	if err != nil {
		return fmt.Errorf("circuit: public witness: %w", err)
	}
	return groth16.Verify(proof, cc.VerifyingKey, public)
}

// publicInputHex decodes the serialized public witness into hex-rendered
// field elements. Layout: a 12-byte header (curve ID, public count, secret
// count) followed by 32-byte big-endian elements.
func publicInputHex(w interface{ MarshalBinary() ([]byte, error) }) ([]string, error) {
	raw, err := w.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("circuit: marshal public witness: %w", err)
	}
	const headerSize = 12
	const elementSize = 32
	if len(raw) < headerSize {
		return nil, fmt.Errorf("circuit: truncated public witness (%d bytes)", len(raw))
	}
	data := raw[headerSize:]
	out := make([]string, 0, len(data)/elementSize)
	for i := 0; i+elementSize <= len(data); i += elementSize {
		v := new(big.Int).SetBytes(data[i : i+elementSize])
		out = append(out, fmt.Sprintf("0x%064x", v))
	}
	return out, nil
}
