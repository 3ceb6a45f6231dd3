package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

type reportYieldCLIParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func runRewardsCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, rewardsUsage())
		return 1
	}
	switch args[0] {
	case "pending":
		return runRewardsAddressQuery("coop_pendingRewards", args[1:], stdout, stderr)
	case "totals":
		return runCoopNoParamQuery("coop_rewardTotals", args[1:], stdout, stderr)
	case "claim":
		return runRewardsClaim("coop_claimRewards", args[1:], stdout, stderr)
	case "claim-yield":
		return runRewardsClaim("coop_claimYield", args[1:], stdout, stderr)
	case "report-yield":
		return runRewardsReportYield(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown rewards subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, rewardsUsage())
		return 1
	}
}

func runRewardsAddressQuery(method string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rewards pending", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr string
	fs.StringVar(&addr, "addr", "", "member address to query")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(stderr, "Error: --addr is required")
		return 1
	}
	result, rpcErr, err := rpcCall(method, addressCLIParams{Address: addr}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRewardsClaim(method string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rewards claim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr string
	fs.StringVar(&addr, "addr", "", "member address claiming the balance")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(stderr, "Error: --addr is required")
		return 1
	}
	result, rpcErr, err := rpcCall(method, coopCallerCLIParams{Caller: addr}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runRewardsReportYield(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rewards report-yield", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var source, amount string
	fs.StringVar(&source, "source", "", "configured yield source address")
	fs.StringVar(&amount, "amount", "", "realised yield in wei to distribute")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(source) == "" {
		fmt.Fprintln(stderr, "Error: --source is required")
		return 1
	}
	if strings.TrimSpace(amount) == "" {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_reportYield", reportYieldCLIParams{Caller: source, Amount: amount}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func rewardsUsage() string {
	return strings.TrimSpace(`Usage:
  sacco-cli rewards <command> [flags]

Commands:
  pending       Show a member's unclaimed interest and yield
  totals        Show lifetime distributed totals
  claim         Claim accrued interest rewards
  claim-yield   Claim accrued yield rewards
  report-yield  Report realised yield for pro-rata distribution
`)
}
