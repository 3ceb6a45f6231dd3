package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

type restakeAmountCLIParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func runRestakeCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, restakeUsage())
		return 1
	}
	switch args[0] {
	case "allocate":
		return runRestakeAmount("restaking_allocate", args[1:], stdout, stderr)
	case "recall":
		return runRestakeAmount("restaking_recall", args[1:], stdout, stderr)
	case "report-yield":
		return runRestakeAmount("restaking_reportYield", args[1:], stdout, stderr)
	case "position":
		return runCoopNoParamQuery("restaking_getPosition", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown restake subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, restakeUsage())
		return 1
	}
}

func runRestakeAmount(method string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("restake", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var caller, amount string
	fs.StringVar(&caller, "caller", "", "admin address driving the strategy")
	fs.StringVar(&amount, "amount", "", "amount in wei")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	if strings.TrimSpace(amount) == "" {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	result, rpcErr, err := rpcCall(method, restakeAmountCLIParams{Caller: caller, Amount: amount}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func restakeUsage() string {
	return strings.TrimSpace(`Usage:
  sacco-cli restake <command> [flags]

Commands:
  allocate      Move idle treasury funds into the yield strategy
  recall        Pull allocated funds back into the treasury
  report-yield  Report strategy yield and distribute it to members
  position      Show the current strategy position
`)
}
