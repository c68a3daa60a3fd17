package circuit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
)

// Compiling and setting up a circuit is expensive; the keys are persisted
// so a prover can resume without re-running setup. Files written under dir:
//
//	<name>.r1cs  constraint system
//	<name>.pk    proving key
//	<name>.vk    verifying key

// Save persists a compiled circuit under dir, creating it if needed.
func (cc *Compiled) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("circuit: create key dir: %w", err)
	}
	parts := []struct {
		suffix string
		w      io.WriterTo
	}{
		{".r1cs", cc.CS},
		{".pk", cc.ProvingKey},
		{".vk", cc.VerifyingKey},
	}
	for _, part := range parts {
		path := filepath.Join(dir, cc.Name+part.suffix)
		if err := writeTo(path, part.w); err != nil {
			return fmt.Errorf("circuit: save %s: %w", path, err)
		}
	}
	return nil
}

// Load restores a compiled circuit previously written by Save and stores it
// in the prover's registry.
func (p *Prover) Load(dir, name string) error {
	cs := groth16.NewCS(p.curve)
	if err := readFrom(filepath.Join(dir, name+".r1cs"), cs); err != nil {
		return fmt.Errorf("circuit: load constraint system: %w", err)
	}
	pk := groth16.NewProvingKey(p.curve)
	if err := readFrom(filepath.Join(dir, name+".pk"), pk); err != nil {
		return fmt.Errorf("circuit: load proving key: %w", err)
	}
	vk := groth16.NewVerifyingKey(p.curve)
	if err := readFrom(filepath.Join(dir, name+".vk"), vk); err != nil {
		return fmt.Errorf("circuit: load verifying key: %w", err)
	}

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

// Curve returns the prover's curve; persisted keys are only valid for the
// curve they were set up on.
func (p *Prover) Curve() ecc.ID {
	return p.curve
}

func writeTo(path string, w io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readFrom(path string, r io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = r.ReadFrom(f)
	return err
}
