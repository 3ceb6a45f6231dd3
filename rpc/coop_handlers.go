package rpc

import (
	"encoding/hex"
	"net/http"
	"strings"

	"saccochain/native/coop"
	"saccochain/native/privacy"
)

const (
	codeCoopInvalidParams = -32020
	codeCoopForbidden     = -32021
	codeCoopNotFound      = -32022
	codeCoopConflict      = -32023
	codeCoopRateLimited   = -32024
	codeCoopPaused        = -32025
	codeCoopInternal      = -32026
)

// writeCoopError maps cooperative engine failures onto stable JSON-RPC codes.
// The raw engine message travels in the data member so operators keep the
// detail without clients parsing prose.
func writeCoopError(w http.ResponseWriter, id int, err error) {
	if writeModuleGuardError(w, id, coop.ModuleName, codeCoopRateLimited, codeCoopPaused, err) {
		return
	}
	switch coop.Classify(err) {
	case coop.KindValidation:
		writeError(w, http.StatusBadRequest, id, codeCoopInvalidParams, "invalid_params", err.Error())
	case coop.KindAuthorization:
		writeError(w, http.StatusForbidden, id, codeCoopForbidden, "forbidden", err.Error())
	case coop.KindNotFound:
		writeError(w, http.StatusNotFound, id, codeCoopNotFound, "not_found", err.Error())
	case coop.KindState, coop.KindResource, coop.KindDuplicate:
		writeError(w, http.StatusConflict, id, codeCoopConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeCoopInternal, "internal_error", err.Error())
	}
}

type coopRegisterParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type coopRegisterResult struct {
	Member *memberJSON `json:"member"`
	Refund string      `json:"refund"`
}

func (s *Server) handleCoopRegister(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopRegisterParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	payment, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	member, refund, err := s.node.CoopRegister(caller, payment)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, coopRegisterResult{Member: newMemberJSON(member), Refund: formatWei(refund)})
}

type coopCallerParams struct {
	Caller string `json:"caller"`
}

type coopExitResult struct {
	Payout string `json:"payout"`
}

func (s *Server) handleCoopExit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	payout, err := s.node.CoopExit(caller)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, coopExitResult{Payout: formatWei(payout)})
}

type coopRequestLoanParams struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
}

func (s *Server) handleCoopRequestLoan(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopRequestLoanParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	borrower, err := parseAddress(params.Borrower, "borrower")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	proposal, err := s.node.CoopRequestLoan(borrower, amount)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newLoanProposalJSON(proposal, coop.ProposalPhaseEditing))
}

type coopEditLoanParams struct {
	Caller     string `json:"caller"`
	ProposalID uint64 `json:"proposalId"`
	Amount     string `json:"amount"`
}

func (s *Server) handleCoopEditLoanProposal(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopEditLoanParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	proposal, err := s.node.CoopEditLoanProposal(caller, params.ProposalID, amount)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newLoanProposalJSON(proposal, coop.ProposalPhaseEditing))
}

type coopVoteParams struct {
	Caller     string `json:"caller"`
	ProposalID uint64 `json:"proposalId"`
	Support    bool   `json:"support"`
}

type coopVoteLoanResult struct {
	Proposal *loanProposalJSON `json:"proposal"`
	Loan     *loanJSON         `json:"loan,omitempty"`
}

func (s *Server) handleCoopVoteLoan(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopVoteParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	proposal, loan, err := s.node.CoopVoteLoan(caller, params.ProposalID, params.Support)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	phase := coop.ProposalPhaseVoting
	if loan != nil {
		phase = coop.ProposalPhaseExecuted
	}
	writeResult(w, req.ID, coopVoteLoanResult{
		Proposal: newLoanProposalJSON(proposal, phase),
		Loan:     newLoanJSON(loan),
	})
}

type coopRepayLoanParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
	Amount string `json:"amount"`
}

type coopRepayLoanResult struct {
	Loan   *loanJSON `json:"loan"`
	Refund string    `json:"refund"`
}

func (s *Server) handleCoopRepayLoan(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopRepayLoanParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	payment, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	loan, refund, err := s.node.CoopRepayLoan(caller, params.LoanID, payment)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, coopRepayLoanResult{Loan: newLoanJSON(loan), Refund: formatWei(refund)})
}

type coopProposeWithdrawalParams struct {
	Proposer    string `json:"proposer"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
	Reason      string `json:"reason"`
	Salt        string `json:"salt,omitempty"`
}

type coopProposeWithdrawalResult struct {
	Proposal   *treasuryProposalJSON `json:"proposal"`
	Commitment string                `json:"commitment,omitempty"`
	Salt       string                `json:"salt,omitempty"`
}

func (s *Server) handleCoopProposeWithdrawal(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopProposeWithdrawalParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	proposer, err := parseAddress(params.Proposer, "proposer")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	destination, err := parseAddress(params.Destination, "destination")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}

	// The ledger always records the plain amount; the commitment is an
	// extra receipt callers can hand to downstream mirrors instead of the
	// value itself.
	var salt []byte
	switch {
	case strings.TrimSpace(params.Salt) != "":
		salt, err = hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(params.Salt), "0x"))
		if err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
	case s.shielded:
		salt, err = privacy.NewSalt()
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeCoopInternal, "internal_error", err.Error())
			return
		}
	}
	var commitment [32]byte
	if salt != nil {
		commitment, err = privacy.Commitment(amount, salt)
		if err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
	}

	proposal, err := s.node.CoopProposeWithdrawal(proposer, amount, destination, params.Reason)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	result := coopProposeWithdrawalResult{Proposal: newTreasuryProposalJSON(proposal)}
	if salt != nil {
		result.Commitment = "0x" + hex.EncodeToString(commitment[:])
		result.Salt = hex.EncodeToString(salt)
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleCoopVoteWithdrawal(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopVoteParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	proposal, err := s.node.CoopVoteWithdrawal(caller, params.ProposalID, params.Support)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newTreasuryProposalJSON(proposal))
}

type coopClaimResult struct {
	Claimed string `json:"claimed"`
}

func (s *Server) handleCoopClaimRewards(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	claimed, err := s.node.CoopClaimRewards(caller)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, coopClaimResult{Claimed: formatWei(claimed)})
}

func (s *Server) handleCoopClaimYield(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	claimed, err := s.node.CoopClaimYield(caller)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, coopClaimResult{Claimed: formatWei(claimed)})
}

type coopReportYieldParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type coopReportYieldResult struct {
	PerMember  string `json:"perMember"`
	Recipients uint64 `json:"recipients"`
}

func (s *Server) handleCoopReportYield(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopReportYieldParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	perMember, recipients, err := s.node.CoopReportYield(caller, amount)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, coopReportYieldResult{PerMember: formatWei(perMember), Recipients: recipients})
}

type coopUpdatePolicyParams struct {
	Caller string     `json:"caller"`
	Policy policyJSON `json:"policy"`
}

func (s *Server) handleCoopUpdatePolicy(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopUpdatePolicyParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	policy, err := params.Policy.toPolicy()
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.CoopUpdatePolicy(caller, policy); err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newPolicyJSON(&policy))
}

type coopAdminParams struct {
	Caller string `json:"caller"`
	Admin  string `json:"admin"`
}

type coopAdminResult struct {
	Admin   string `json:"admin"`
	Granted bool   `json:"granted"`
}

func (s *Server) handleCoopAddAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopAdminParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	admin, err := parseAddress(params.Admin, "admin")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.CoopAddAdmin(caller, admin); err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, coopAdminResult{Admin: admin.String(), Granted: true})
}

func (s *Server) handleCoopRemoveAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params coopAdminParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	admin, err := parseAddress(params.Admin, "admin")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.CoopRemoveAdmin(caller, admin); err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, coopAdminResult{Admin: admin.String(), Granted: false})
}

type addressParams struct {
	Address string `json:"address"`
}

func (s *Server) handleCoopGetMember(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := parseAddress(params.Address, "address")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	member, err := s.node.CoopMember(addr)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newMemberJSON(member))
}

func (s *Server) handleCoopListMembers(w http.ResponseWriter, req *RPCRequest) {
	if err := requireNoParams(req); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	members, err := s.node.CoopMembers()
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	out := make([]*memberJSON, 0, len(members))
	for _, member := range members {
		out = append(out, newMemberJSON(member))
	}
	writeResult(w, req.ID, out)
}

type proposalIDParams struct {
	ProposalID uint64 `json:"proposalId"`
}

func (s *Server) handleCoopGetLoanProposal(w http.ResponseWriter, req *RPCRequest) {
	var params proposalIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	proposal, phase, err := s.node.CoopLoanProposal(params.ProposalID)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newLoanProposalJSON(proposal, phase))
}

type loanIDParams struct {
	LoanID uint64 `json:"loanId"`
}

func (s *Server) handleCoopGetLoan(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	loan, err := s.node.CoopLoan(params.LoanID)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newLoanJSON(loan))
}

func (s *Server) handleCoopGetTreasuryProposal(w http.ResponseWriter, req *RPCRequest) {
	var params proposalIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	proposal, err := s.node.CoopTreasuryProposal(params.ProposalID)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newTreasuryProposalJSON(proposal))
}

type coopQuoteParams struct {
	Amount string `json:"amount"`
}

func (s *Server) handleCoopQuoteLoanTerms(w http.ResponseWriter, req *RPCRequest) {
	var params coopQuoteParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	terms, err := s.node.CoopQuoteLoanTerms(amount)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newTermsJSON(terms))
}

func (s *Server) handleCoopPendingRewards(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := parseAddress(params.Address, "address")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	balance, err := s.node.CoopPendingRewards(addr)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newRewardBalanceJSON(balance))
}

func (s *Server) handleCoopRewardTotals(w http.ResponseWriter, req *RPCRequest) {
	if err := requireNoParams(req); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	totals, err := s.node.CoopRewardTotals()
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newRewardTotalsJSON(totals))
}

func (s *Server) handleCoopListActiveLoans(w http.ResponseWriter, req *RPCRequest) {
	if err := requireNoParams(req); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	ids, err := s.node.CoopActiveLoanIDs()
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeResult(w, req.ID, ids)
}

func (s *Server) handleCoopGetPolicy(w http.ResponseWriter, req *RPCRequest) {
	if err := requireNoParams(req); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	policy, err := s.node.CoopPolicy()
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newPolicyJSON(policy))
}

func (s *Server) handleCoopGetCounters(w http.ResponseWriter, req *RPCRequest) {
	if err := requireNoParams(req); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	counters, err := s.node.CoopCounters()
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newCountersJSON(counters))
}

func (s *Server) handleCoopListAdmins(w http.ResponseWriter, req *RPCRequest) {
	if err := requireNoParams(req); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	admins, err := s.node.CoopAdmins()
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	out := make([]string, 0, len(admins))
	for _, admin := range admins {
		out = append(out, admin.String())
	}
	writeResult(w, req.ID, out)
}

type coopEligibilityResult struct {
	Address  string `json:"address"`
	Eligible bool   `json:"eligible"`
}

func (s *Server) handleCoopLoanEligibility(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := parseAddress(params.Address, "address")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	eligible, err := s.node.CoopEligibleForLoan(addr)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, coopEligibilityResult{Address: addr.String(), Eligible: eligible})
}

type coopTreasuryResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) handleCoopGetTreasury(w http.ResponseWriter, req *RPCRequest) {
	if err := requireNoParams(req); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	balance, err := s.node.CoopTreasuryBalance()
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, coopTreasuryResult{
		Address: s.node.CoopTreasuryAddress().String(),
		Balance: formatWei(balance),
	})
}

type coopAuditLogParams struct {
	After uint64 `json:"after"`
	Limit int    `json:"limit"`
}

type coopAuditLogResult struct {
	Records []auditRecordJSON `json:"records"`
	Head    uint64            `json:"head"`
}

func (s *Server) handleCoopAuditLog(w http.ResponseWriter, req *RPCRequest) {
	var params coopAuditLogParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	records, err := s.node.CoopAuditLog(params.After, params.Limit)
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	head, err := s.node.CoopAuditHead()
	if err != nil {
		writeCoopError(w, req.ID, err)
		return
	}
	out := coopAuditLogResult{Records: make([]auditRecordJSON, 0, len(records)), Head: head}
	for _, rec := range records {
		out.Records = append(out.Records, newAuditRecordJSON(rec))
	}
	writeResult(w, req.ID, out)
}
