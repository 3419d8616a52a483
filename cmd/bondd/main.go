// Command bondd runs and operates discount-bond markets.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type command struct {
	name    string
	summary string
	run     func(args []string, stdout io.Writer) error
}

func commands() []command {
	return []command{
		{"init", "apply the configured genesis to the data directory", runInit},
		{"serve", "start the HTTP API", runServe},
		{"quote", "print the pricing of a market", runQuote},
		{"deposit", "buy a bond", runDeposit},
		{"redeem", "redeem the vested part of a bond", runRedeem},
		{"position", "print a depositor's bond", runPosition},
		{"terms", "update a market term (VESTING, PAYOUT, DEBT)", runTerms},
		{"adjust", "schedule a control variable adjustment", runAdjust},
		{"withdraw", "move tokens out of a treasury", runWithdraw},
		{"keygen", "generate an account key", runKeygen},
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	for _, cmd := range commands() {
		if cmd.name != args[0] {
			continue
		}
		if err := cmd.run(args[1:], stdout); err != nil {
			fmt.Fprintf(stderr, "bondd %s: %v\n", cmd.name, err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n", args[0])
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bondd <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands() {
		fmt.Fprintf(w, "  %-9s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Offline commands open the data directory directly and cannot run while serve holds it.")
}
