package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

type adminCLIParams struct {
	Caller string `json:"caller"`
	Admin  string `json:"admin"`
}

type policyCLIDocument struct {
	MembershipContributionWei string `json:"membershipContributionWei"`
	MinMembershipSeconds      uint64 `json:"minMembershipSeconds"`
	MaxLoanDurationSeconds    uint64 `json:"maxLoanDurationSeconds"`
	CooldownSeconds           uint64 `json:"cooldownSeconds"`
	EditingPeriodSeconds      uint64 `json:"editingPeriodSeconds"`
	VotingPeriodSeconds       uint64 `json:"votingPeriodSeconds"`
	MinInterestRateBps        uint64 `json:"minInterestRateBps"`
	MaxInterestRateBps        uint64 `json:"maxInterestRateBps"`
	LoanQuorumBps             uint64 `json:"loanQuorumBps"`
	TreasuryQuorumBps         uint64 `json:"treasuryQuorumBps"`
	WeightedVoting            bool   `json:"weightedVoting"`
}

type setPolicyCLIParams struct {
	Caller string            `json:"caller"`
	Policy policyCLIDocument `json:"policy"`
}

type setPausedCLIParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func runAdminCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
	switch args[0] {
	case "add":
		return runAdminModify("coop_addAdmin", args[1:], stdout, stderr)
	case "remove":
		return runAdminModify("coop_removeAdmin", args[1:], stdout, stderr)
	case "set-policy":
		return runAdminSetPolicy(args[1:], stdout, stderr)
	case "pause":
		return runAdminSetPaused(args[1:], true, stdout, stderr)
	case "resume":
		return runAdminSetPaused(args[1:], false, stdout, stderr)
	case "paused":
		return runCoopNoParamQuery("system_listPaused", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown admin subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
}

func runAdminModify(method string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var caller, admin string
	fs.StringVar(&caller, "caller", "", "existing admin address making the change")
	fs.StringVar(&admin, "admin", "", "address being granted or revoked")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	if strings.TrimSpace(admin) == "" {
		fmt.Fprintln(stderr, "Error: --admin is required")
		return 1
	}
	result, rpcErr, err := rpcCall(method, adminCLIParams{Caller: caller, Admin: admin}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runAdminSetPolicy(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("admin set-policy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var caller, file string
	fs.StringVar(&caller, "caller", "", "admin address applying the policy")
	fs.StringVar(&file, "file", "", "path to a JSON policy document")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	if strings.TrimSpace(file) == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		return 1
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading policy file: %v\n", err)
		return 1
	}
	var policy policyCLIDocument
	if err := json.Unmarshal(raw, &policy); err != nil {
		fmt.Fprintf(stderr, "Error parsing policy file: %v\n", err)
		return 1
	}
	result, rpcErr, err := rpcCall("coop_updatePolicy", setPolicyCLIParams{Caller: caller, Policy: policy}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runAdminSetPaused(args []string, paused bool, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("admin pause", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var module string
	fs.StringVar(&module, "module", "", "module to toggle, e.g. coop")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(module) == "" {
		fmt.Fprintln(stderr, "Error: --module is required")
		return 1
	}
	result, rpcErr, err := rpcCall("system_setPaused", setPausedCLIParams{Module: strings.TrimSpace(module), Paused: paused}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func adminUsage() string {
	return strings.TrimSpace(`Usage:
  sacco-cli admin <command> [flags]

Commands:
  add         Grant admin rights to an address
  remove      Revoke admin rights from an address
  set-policy  Apply a policy document from a JSON file
  pause       Pause a ledger module
  resume      Resume a paused ledger module
  paused      List currently paused modules
`)
}
