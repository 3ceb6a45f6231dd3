package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

type coopRegisterCLIParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type coopCallerCLIParams struct {
	Caller string `json:"caller"`
}

type coopAmountCLIParams struct {
	Amount string `json:"amount"`
}

func runCoopCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, coopUsage())
		return 1
	}
	switch args[0] {
	case "register":
		return runCoopRegister(args[1:], stdout, stderr)
	case "exit":
		return runCoopExit(args[1:], stdout, stderr)
	case "member":
		return runCoopMember(args[1:], stdout, stderr)
	case "members":
		return runCoopNoParamQuery("coop_listMembers", args[1:], stdout, stderr)
	case "policy":
		return runCoopNoParamQuery("coop_getPolicy", args[1:], stdout, stderr)
	case "counters":
		return runCoopNoParamQuery("coop_getCounters", args[1:], stdout, stderr)
	case "treasury":
		return runCoopNoParamQuery("coop_getTreasury", args[1:], stdout, stderr)
	case "admins":
		return runCoopNoParamQuery("coop_listAdmins", args[1:], stdout, stderr)
	case "quote":
		return runCoopQuote(args[1:], stdout, stderr)
	case "eligibility":
		return runCoopEligibility(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown coop subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, coopUsage())
		return 1
	}
}

func runCoopRegister(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("coop register", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr, amount string
	fs.StringVar(&addr, "addr", "", "address joining the cooperative")
	fs.StringVar(&amount, "amount", "", "contribution payment in wei")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(stderr, "Error: --addr is required")
		return 1
	}
	if strings.TrimSpace(amount) == "" {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_register", coopRegisterCLIParams{Caller: addr, Amount: amount}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runCoopExit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("coop exit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr string
	fs.StringVar(&addr, "addr", "", "member address leaving the cooperative")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(stderr, "Error: --addr is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_exit", coopCallerCLIParams{Caller: addr}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runCoopMember(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("coop member", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr string
	fs.StringVar(&addr, "addr", "", "member address to look up")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(stderr, "Error: --addr is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_getMember", addressCLIParams{Address: addr}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runCoopQuote(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("coop quote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var amount string
	fs.StringVar(&amount, "amount", "", "principal in wei to quote terms for")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(amount) == "" {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_quoteLoanTerms", coopAmountCLIParams{Amount: amount}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runCoopEligibility(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("coop eligibility", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr string
	fs.StringVar(&addr, "addr", "", "member address to check")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(stderr, "Error: --addr is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_loanEligibility", addressCLIParams{Address: addr}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runCoopNoParamQuery(method string, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintln(stderr, "Error: unexpected arguments")
		return 1
	}
	result, rpcErr, err := rpcCall(method, nil, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func coopUsage() string {
	return strings.TrimSpace(`Usage:
  sacco-cli coop <command> [flags]

Commands:
  register     Join the cooperative by paying the membership contribution
  exit         Leave the cooperative and withdraw the proportional share
  member       Show a member record
  members      List all member records
  policy       Show the active cooperative policy
  counters     Show membership and proposal counters
  treasury     Show the treasury address and balance
  admins       List administrator addresses
  quote        Quote loan terms for a principal at current utilisation
  eligibility  Check whether an address can request a loan
`)
}
