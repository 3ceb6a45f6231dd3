package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"saccochain/crypto"
	"saccochain/integrations/exports"
	"saccochain/native/coop"
)

type memberView struct {
	Address  string `json:"address"`
	Status   string `json:"status"`
	JoinedAt uint64 `json:"joinedAt"`
}

type rewardBalanceView struct {
	Interest string `json:"interest"`
	Yield    string `json:"yield"`
}

type loanView struct {
	ID              uint64 `json:"id"`
	ProposalID      uint64 `json:"proposalId"`
	Borrower        string `json:"borrower"`
	Principal       string `json:"principal"`
	InterestRateBps uint64 `json:"interestRateBps"`
	TotalRepayment  string `json:"totalRepayment"`
	StartedAt       uint64 `json:"startedAt"`
	DueAt           uint64 `json:"dueAt"`
	Status          string `json:"status"`
	AmountRepaid    string `json:"amountRepaid"`
}

type auditRecordView struct {
	Sequence  uint64 `json:"sequence"`
	Timestamp uint64 `json:"timestamp"`
	Event     string `json:"event"`
	SubjectID uint64 `json:"subjectId"`
	Actor     string `json:"actor"`
	Details   string `json:"details"`
}

type auditLogView struct {
	Records []auditRecordView `json:"records"`
	Head    uint64            `json:"head"`
}

type auditLogCLIParams struct {
	After uint64 `json:"after"`
	Limit int    `json:"limit"`
}

func runExportCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, exportUsage())
		return 1
	}
	switch args[0] {
	case "statements":
		return runExportStatements(args[1:], stdout, stderr)
	case "loanbook":
		return runExportLoanBook(args[1:], stdout, stderr)
	case "audit":
		return runExportAudit(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown export subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, exportUsage())
		return 1
	}
}

// runExportStatements snapshots every active member's unclaimed balances into
// a reward statement file. Exited members are skipped; their balances were
// settled on exit.
func runExportStatements(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export statements", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var out, format string
	fs.StringVar(&out, "out", "", "destination file")
	fs.StringVar(&format, "format", "csv", "output format: csv or jsonl")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(out) == "" {
		fmt.Fprintln(stderr, "Error: --out is required")
		return 1
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "csv" && format != "jsonl" {
		fmt.Fprintln(stderr, "Error: --format must be csv or jsonl")
		return 1
	}

	raw, rpcErr, err := rpcCall("coop_listMembers", nil, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	var members []memberView
	if err := json.Unmarshal(raw, &members); err != nil {
		fmt.Fprintf(stderr, "Error decoding member list: %v\n", err)
		return 1
	}

	generated := time.Now().UTC()
	rows := make([]*exports.StatementRow, 0, len(members))
	for _, member := range members {
		if member.Status != "active" {
			continue
		}
		addr, err := crypto.DecodeAddress(member.Address)
		if err != nil {
			fmt.Fprintf(stderr, "Error decoding member address %s: %v\n", member.Address, err)
			return 1
		}
		balRaw, rpcErr, err := rpcCall("coop_pendingRewards", addressCLIParams{Address: member.Address}, false)
		if err != nil {
			return handleRPCCallError(stderr, err)
		}
		if rpcErr != nil {
			return handleRPCError(stderr, rpcErr)
		}
		var balance rewardBalanceView
		if err := json.Unmarshal(balRaw, &balance); err != nil {
			fmt.Fprintf(stderr, "Error decoding rewards for %s: %v\n", member.Address, err)
			return 1
		}
		rows = append(rows, &exports.StatementRow{
			Address:     addr,
			JoinedAt:    member.JoinedAt,
			Interest:    parseWeiValue(balance.Interest),
			Yield:       parseWeiValue(balance.Yield),
			GeneratedAt: generated,
		})
	}

	var data []byte
	var checksum string
	if format == "csv" {
		data, checksum, err = exports.StatementsCSV(rows)
	} else {
		data, checksum, err = exports.StatementsJSONL(rows)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error building export: %v\n", err)
		return 1
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "Error writing %s: %v\n", out, err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %d statements to %s\n", len(rows), out)
	fmt.Fprintf(stdout, "sha256: %s\n", checksum)
	return 0
}

func runExportLoanBook(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export loanbook", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var out string
	fs.StringVar(&out, "out", "", "destination parquet file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(out) == "" {
		fmt.Fprintln(stderr, "Error: --out is required")
		return 1
	}

	raw, rpcErr, err := rpcCall("coop_listActiveLoans", nil, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		fmt.Fprintf(stderr, "Error decoding loan ids: %v\n", err)
		return 1
	}

	loans := make([]*coop.Loan, 0, len(ids))
	for _, id := range ids {
		loanRaw, rpcErr, err := rpcCall("coop_getLoan", loanIDCLIParams{LoanID: id}, false)
		if err != nil {
			return handleRPCCallError(stderr, err)
		}
		if rpcErr != nil {
			return handleRPCError(stderr, rpcErr)
		}
		var view loanView
		if err := json.Unmarshal(loanRaw, &view); err != nil {
			fmt.Fprintf(stderr, "Error decoding loan %d: %v\n", id, err)
			return 1
		}
		loan, err := view.toLoan()
		if err != nil {
			fmt.Fprintf(stderr, "Error converting loan %d: %v\n", id, err)
			return 1
		}
		loans = append(loans, loan)
	}

	if err := exports.LoanBookParquet(out, loans); err != nil {
		fmt.Fprintf(stderr, "Error writing loan book: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %d loans to %s\n", len(loans), out)
	return 0
}

func runExportAudit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export audit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var out string
	var after uint64
	var page int
	fs.StringVar(&out, "out", "", "destination JSONL file")
	fs.Uint64Var(&after, "after", 0, "export records with sequence greater than this")
	fs.IntVar(&page, "page", 500, "records fetched per request")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(out) == "" {
		fmt.Fprintln(stderr, "Error: --out is required")
		return 1
	}
	if page <= 0 {
		fmt.Fprintln(stderr, "Error: --page must be positive")
		return 1
	}

	var records []coop.AuditRecord
	cursor := after
	for {
		raw, rpcErr, err := rpcCall("coop_auditLog", auditLogCLIParams{After: cursor, Limit: page}, false)
		if err != nil {
			return handleRPCCallError(stderr, err)
		}
		if rpcErr != nil {
			return handleRPCError(stderr, rpcErr)
		}
		var view auditLogView
		if err := json.Unmarshal(raw, &view); err != nil {
			fmt.Fprintf(stderr, "Error decoding audit page: %v\n", err)
			return 1
		}
		for _, rec := range view.Records {
			actor, err := crypto.DecodeAddress(rec.Actor)
			if err != nil {
				fmt.Fprintf(stderr, "Error decoding actor for sequence %d: %v\n", rec.Sequence, err)
				return 1
			}
			records = append(records, coop.AuditRecord{
				Sequence:  rec.Sequence,
				Timestamp: rec.Timestamp,
				Event:     coop.AuditEvent(rec.Event),
				SubjectID: rec.SubjectID,
				Actor:     actor,
				Details:   rec.Details,
			})
		}
		if len(view.Records) == 0 {
			break
		}
		last := view.Records[len(view.Records)-1].Sequence
		if last <= cursor || last >= view.Head {
			break
		}
		cursor = last
	}

	data, checksum, err := exports.AuditJSONL(records)
	if err != nil {
		fmt.Fprintf(stderr, "Error building export: %v\n", err)
		return 1
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "Error writing %s: %v\n", out, err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %d audit records to %s\n", len(records), out)
	fmt.Fprintf(stdout, "sha256: %s\n", checksum)
	return 0
}

func (v *loanView) toLoan() (*coop.Loan, error) {
	borrower, err := crypto.DecodeAddress(v.Borrower)
	if err != nil {
		return nil, fmt.Errorf("invalid borrower: %w", err)
	}
	return &coop.Loan{
		ID:              v.ID,
		ProposalID:      v.ProposalID,
		Borrower:        borrower,
		Principal:       parseWeiValue(v.Principal),
		InterestRateBps: v.InterestRateBps,
		TotalRepayment:  parseWeiValue(v.TotalRepayment),
		StartedAt:       v.StartedAt,
		DueAt:           v.DueAt,
		Status:          loanStatusFromString(v.Status),
		AmountRepaid:    parseWeiValue(v.AmountRepaid),
	}, nil
}

func loanStatusFromString(s string) coop.LoanStatus {
	switch s {
	case "active":
		return coop.LoanStatusActive
	case "repaid":
		return coop.LoanStatusRepaid
	default:
		return coop.LoanStatusUnspecified
	}
}

func parseWeiValue(s string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

func exportUsage() string {
	return strings.TrimSpace(`Usage:
  sacco-cli export <command> [flags]

Commands:
  statements  Export active members' reward balances as CSV or JSONL
  loanbook    Export the active loan book as a parquet snapshot
  audit       Export the governance audit trail as JSONL
`)
}
