package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

type treasuryProposeCLIParams struct {
	Proposer    string `json:"proposer"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
	Reason      string `json:"reason"`
	Salt        string `json:"salt,omitempty"`
}

func runTreasuryCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, treasuryUsage())
		return 1
	}
	switch args[0] {
	case "propose":
		return runTreasuryPropose(args[1:], stdout, stderr)
	case "vote":
		return runTreasuryVote(args[1:], stdout, stderr)
	case "show":
		return runTreasuryShow(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown treasury subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, treasuryUsage())
		return 1
	}
}

func runTreasuryPropose(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("treasury propose", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var proposer, amount, destination, reason, salt string
	fs.StringVar(&proposer, "proposer", "", "admin address proposing the withdrawal")
	fs.StringVar(&amount, "amount", "", "withdrawal amount in wei")
	fs.StringVar(&destination, "destination", "", "address receiving the funds")
	fs.StringVar(&reason, "reason", "", "free-form justification recorded with the proposal")
	fs.StringVar(&salt, "salt", "", "optional hex salt for an amount commitment receipt")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(proposer) == "" {
		fmt.Fprintln(stderr, "Error: --proposer is required")
		return 1
	}
	if strings.TrimSpace(amount) == "" {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	if strings.TrimSpace(destination) == "" {
		fmt.Fprintln(stderr, "Error: --destination is required")
		return 1
	}
	params := treasuryProposeCLIParams{
		Proposer:    proposer,
		Amount:      amount,
		Destination: destination,
		Reason:      reason,
		Salt:        strings.TrimSpace(salt),
	}
	result, rpcErr, err := rpcCall("coop_proposeWithdrawal", params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runTreasuryVote(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("treasury vote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var voter string
	var proposal uint64
	var approve, reject bool
	fs.StringVar(&voter, "voter", "", "member address casting the vote")
	fs.Uint64Var(&proposal, "proposal", 0, "proposal identifier")
	fs.BoolVar(&approve, "approve", false, "vote in favour")
	fs.BoolVar(&reject, "reject", false, "vote against")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(voter) == "" {
		fmt.Fprintln(stderr, "Error: --voter is required")
		return 1
	}
	if proposal == 0 {
		fmt.Fprintln(stderr, "Error: --proposal is required")
		return 1
	}
	if approve == reject {
		fmt.Fprintln(stderr, "Error: exactly one of --approve or --reject is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_voteWithdrawal", voteCLIParams{Caller: voter, ProposalID: proposal, Support: approve}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runTreasuryShow(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("treasury show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var id uint64
	fs.Uint64Var(&id, "id", 0, "proposal identifier")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if id == 0 {
		fmt.Fprintln(stderr, "Error: --id is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_getTreasuryProposal", proposalIDCLIParams{ProposalID: id}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func treasuryUsage() string {
	return strings.TrimSpace(`Usage:
  sacco-cli treasury <command> [flags]

Commands:
  propose  Propose a treasury withdrawal for member approval
  vote     Cast a vote on a withdrawal proposal
  show     Show a withdrawal proposal
`)
}
