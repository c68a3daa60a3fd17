package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/amwLEE/Mina-ERC20/events"
	"github.com/amwLEE/Mina-ERC20/field"
	"github.com/amwLEE/Mina-ERC20/index"
)

// short truncates an address for tabular output.
func short(e field.Element) string {
	h := field.Hex(e)
	return h[:10] + ".."
}

// listEvents prints the event stream of a demo database and the allowance
// table the Approval events rebuild.
func listEvents(args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	dbPath := fs.String("db", "minatoken.db", "SQLite event database path")
	stream := fs.String("stream", "MDT", "event stream name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	store, err := events.NewSQLiteStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	evts, err := store.Read(ctx, *stream, 0)
	if err != nil {
		return err
	}
	if len(evts) == 0 {
		fmt.Printf("no events in stream %q\n", *stream)
		return nil
	}

	for _, ev := range evts {
		switch ev.Type {
		case events.TypeTransfer:
			from, to, value, err := ev.Transfer()
			if err != nil {
				return err
			}
			fmt.Printf("%4d  Transfer  %s -> %s  value %s\n",
				ev.Version, short(from), short(to), value.Dec())
		case events.TypeApproval:
			owner, spender, value, err := ev.Approval()
			if err != nil {
				return err
			}
			fmt.Printf("%4d  Approval  %s -> %s  value %s\n",
				ev.Version, short(owner), short(spender), value.Dec())
		default:
			fmt.Printf("%4d  %s\n", ev.Version, ev.Type)
		}
	}

	mirror, err := index.Rebuild(ctx, store, *stream)
	if err != nil {
		return err
	}
	fmt.Printf("\nmirrored allowance root: %s (replayed through version %d)\n",
		short(mirror.Root()), mirror.Version())
	return nil
}
