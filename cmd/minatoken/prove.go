package main

import (
	"flag"
	"fmt"

	"github.com/amwLEE/Mina-ERC20/circuit"
)

// prove compiles the allowance circuits, runs the groth16 setup, and
// optionally writes the keys to disk for later proof generation.
func prove(args []string) error {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	keysDir := fs.String("keys", "", "directory to save proving/verifying keys (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	prover := circuit.NewProver()
	if err := prover.RegisterTokenCircuits(); err != nil {
		return err
	}

	for _, name := range prover.Names() {
		cc, ok := prover.Get(name)
		if !ok {
			continue
		}
		fmt.Printf("%-14s %d constraints\n", cc.Name, cc.Constraints)
		if *keysDir != "" {
			if err := cc.Save(*keysDir); err != nil {
				return fmt.Errorf("save %s: %w", cc.Name, err)
			}
		}
	}

	if *keysDir != "" {
		fmt.Printf("keys written to %s\n", *keysDir)
	}
	return nil
}
