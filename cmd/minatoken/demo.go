package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/events"
	"github.com/amwLEE/Mina-ERC20/field"
	"github.com/amwLEE/Mina-ERC20/index"
	"github.com/amwLEE/Mina-ERC20/ledger"
	"github.com/amwLEE/Mina-ERC20/token"
	"github.com/amwLEE/Mina-ERC20/zkapp"
)

// demo walks the whole token lifecycle: deploy, mint, approve, delegated
// spends, and the explicit allowance decrement the two-step protocol
// requires. Events go to a SQLite database so the events command can query
// them afterwards.
func demo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	dbPath := fs.String("db", "minatoken.db", "SQLite event database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	store, err := events.NewSQLiteStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Rerunning against an existing database resumes from the allowance
	// table the previous run committed.
	mirror, err := index.Rebuild(ctx, store, "MDT")
	if err != nil {
		return err
	}

	chain := ledger.NewMemory()
	contract, err := token.Deploy(ctx, token.Config{
		Name:              "Mina Demo Token",
		Symbol:            "MDT",
		Decimals:          9,
		TokenID:           field.HashBytes([]byte("MDT")),
		InitialCommitment: mirror.Root(),
	}, chain, store)
	if err != nil {
		return err
	}
	sync := func() error { return mirror.CatchUp(ctx, store, contract.Stream()) }

	alice := field.HashBytes([]byte("alice"))
	bob := field.HashBytes([]byte("bob"))
	carol := field.HashBytes([]byte("carol"))

	fmt.Printf("deployed %s (%s), commitment %s\n",
		contract.Name(), contract.Symbol(), field.Hex(contract.Commitment()))

	if err := contract.Mint(ctx, alice, uint256.NewInt(100)); err != nil {
		return err
	}
	fmt.Printf("mint    100 -> alice, totalSupply %s\n", contract.TotalSupply().Dec())

	if err := contract.ApproveSpend(ctx, alice, bob, uint256.NewInt(40), mirror.Path(alice, bob)); err != nil {
		return err
	}
	if err := sync(); err != nil {
		return err
	}
	fmt.Printf("approve alice -> bob: 40, commitment %s\n", field.Hex(contract.Commitment()))

	if err := contract.TransferFrom(ctx, bob, alice, carol, uint256.NewInt(30), mirror.Witness(alice, bob)); err != nil {
		return err
	}
	balance, err := contract.BalanceOf(carol)
	if err != nil {
		return err
	}
	fmt.Printf("spend   bob moves 30 alice -> carol, balance(carol) %s\n", balance.Dec())

	// The allowance is not auto-decremented; close it out explicitly.
	remaining, err := contract.Allowance(alice, bob, mirror.Witness(alice, bob))
	if err != nil {
		return err
	}
	fmt.Printf("allowance(alice, bob) still reads %s\n", remaining.Dec())
	if err := contract.DecreaseAllowance(ctx, alice, bob, uint256.NewInt(30), mirror.Witness(alice, bob)); err != nil {
		return err
	}
	if err := sync(); err != nil {
		return err
	}
	fmt.Printf("decrease alice -> bob by 30, now %s\n", mirror.Value(alice, bob).Dec())

	// Delegated execution: a second contract spends under the gateway.
	gateway := zkapp.NewGateway(contract)
	app := field.HashBytes([]byte("exchange-zkapp"))
	if err := contract.Mint(ctx, app, uint256.NewInt(50)); err != nil {
		return err
	}
	cb := ledger.Callback{
		Update: ledger.AccountUpdate{
			Address:       app,
			TokenID:       contract.TokenID(),
			BalanceChange: ledger.NegDelta(uint256.NewInt(25)),
		},
		Effect: func(p ledger.Protocol) error {
			return p.Debit(app, contract.TokenID(), uint256.NewInt(25))
		},
	}
	if err := gateway.TransferFromZkapp(ctx, app, carol, uint256.NewInt(25), cb); err != nil {
		return err
	}
	balance, err = contract.BalanceOf(carol)
	if err != nil {
		return err
	}
	fmt.Printf("zkapp   delegated 25 exchange -> carol, balance(carol) %s\n", balance.Dec())

	fmt.Printf("\nevent log written to %s; inspect with: minatoken events -db %s\n", *dbPath, *dbPath)
	return nil
}
