package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

type loanRequestCLIParams struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
}

type loanEditCLIParams struct {
	Caller     string `json:"caller"`
	ProposalID uint64 `json:"proposalId"`
	Amount     string `json:"amount"`
}

type voteCLIParams struct {
	Caller     string `json:"caller"`
	ProposalID uint64 `json:"proposalId"`
	Support    bool   `json:"support"`
}

type loanRepayCLIParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
	Amount string `json:"amount"`
}

type proposalIDCLIParams struct {
	ProposalID uint64 `json:"proposalId"`
}

type loanIDCLIParams struct {
	LoanID uint64 `json:"loanId"`
}

func runLoanCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, loanUsage())
		return 1
	}
	switch args[0] {
	case "request":
		return runLoanRequest(args[1:], stdout, stderr)
	case "edit":
		return runLoanEdit(args[1:], stdout, stderr)
	case "vote":
		return runLoanVote(args[1:], stdout, stderr)
	case "repay":
		return runLoanRepay(args[1:], stdout, stderr)
	case "proposal":
		return runLoanProposalShow(args[1:], stdout, stderr)
	case "show":
		return runLoanShow(args[1:], stdout, stderr)
	case "active":
		return runCoopNoParamQuery("coop_listActiveLoans", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown loan subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, loanUsage())
		return 1
	}
}

func runLoanRequest(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("loan request", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var borrower, amount string
	fs.StringVar(&borrower, "borrower", "", "member address requesting the loan")
	fs.StringVar(&amount, "amount", "", "requested principal in wei")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(borrower) == "" {
		fmt.Fprintln(stderr, "Error: --borrower is required")
		return 1
	}
	if strings.TrimSpace(amount) == "" {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_requestLoan", loanRequestCLIParams{Borrower: borrower, Amount: amount}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runLoanEdit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("loan edit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var caller, amount string
	var proposal uint64
	fs.StringVar(&caller, "caller", "", "borrower address editing the proposal")
	fs.Uint64Var(&proposal, "proposal", 0, "proposal identifier")
	fs.StringVar(&amount, "amount", "", "new principal in wei")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	if proposal == 0 {
		fmt.Fprintln(stderr, "Error: --proposal is required")
		return 1
	}
	if strings.TrimSpace(amount) == "" {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_editLoanProposal", loanEditCLIParams{Caller: caller, ProposalID: proposal, Amount: amount}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runLoanVote(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("loan vote", flag.ContinueOnError)
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
	result, rpcErr, err := rpcCall("coop_voteLoan", voteCLIParams{Caller: voter, ProposalID: proposal, Support: approve}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runLoanRepay(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("loan repay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var borrower, amount string
	var loanID uint64
	fs.StringVar(&borrower, "borrower", "", "borrower address repaying the loan")
	fs.Uint64Var(&loanID, "loan", 0, "loan identifier")
	fs.StringVar(&amount, "amount", "", "payment in wei; must settle the full obligation")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(borrower) == "" {
		fmt.Fprintln(stderr, "Error: --borrower is required")
		return 1
	}
	if loanID == 0 {
		fmt.Fprintln(stderr, "Error: --loan is required")
		return 1
	}
	if strings.TrimSpace(amount) == "" {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_repayLoan", loanRepayCLIParams{Caller: borrower, LoanID: loanID, Amount: amount}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runLoanProposalShow(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("loan proposal", flag.ContinueOnError)
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
	result, rpcErr, err := rpcCall("coop_getLoanProposal", proposalIDCLIParams{ProposalID: id}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runLoanShow(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("loan show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var id uint64
	fs.Uint64Var(&id, "id", 0, "loan identifier")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if id == 0 {
		fmt.Fprintln(stderr, "Error: --id is required")
		return 1
	}
	result, rpcErr, err := rpcCall("coop_getLoan", loanIDCLIParams{LoanID: id}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func loanUsage() string {
	return strings.TrimSpace(`Usage:
  sacco-cli loan <command> [flags]

Commands:
  request   Open a loan proposal for the requested principal
  edit      Adjust a proposal's principal during the editing window
  vote      Cast a vote on a proposal in its voting window
  repay     Repay an active loan in full
  proposal  Show a loan proposal with its current phase
  show      Show a disbursed loan
  active    List identifiers of loans awaiting repayment
`)
}
