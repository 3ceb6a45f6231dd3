package gateway

import (
	"encoding/hex"
	"math/big"

	"saccochain/native/coop"
	"saccochain/native/docs"
)

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type memberResponse struct {
	Address       string `json:"address"`
	Status        string `json:"status"`
	JoinedAt      uint64 `json:"joinedAt"`
	Contribution  string `json:"contribution"`
	ShareBalance  string `json:"shareBalance"`
	HasActiveLoan bool   `json:"hasActiveLoan"`
}

func toMemberResponse(m *coop.Member) *memberResponse {
	if m == nil {
		return nil
	}
	return &memberResponse{
		Address:       m.Address.String(),
		Status:        m.Status.StatusString(),
		JoinedAt:      m.JoinedAt,
		Contribution:  weiString(m.ContributionAmount),
		ShareBalance:  weiString(m.ShareBalance),
		HasActiveLoan: m.HasActiveLoan,
	}
}

type registerResponse struct {
	Member *memberResponse `json:"member"`
	Refund string          `json:"refund"`
}

type exitResponse struct {
	Payout string `json:"payout"`
}

type loanProposalResponse struct {
	ID              uint64 `json:"id"`
	Borrower        string `json:"borrower"`
	Amount          string `json:"amount"`
	InterestRateBps uint64 `json:"interestRateBps"`
	TotalRepayment  string `json:"totalRepayment"`
	EditingEndsAt   uint64 `json:"editingEndsAt"`
	VotingEndsAt    uint64 `json:"votingEndsAt"`
	Status          string `json:"status"`
	Phase           string `json:"phase,omitempty"`
	ForVotes        uint64 `json:"forVotes"`
	AgainstVotes    uint64 `json:"againstVotes"`
}

func toLoanProposalResponse(p *coop.LoanProposal, phase coop.ProposalPhase) *loanProposalResponse {
	if p == nil {
		return nil
	}
	out := &loanProposalResponse{
		ID:              p.ID,
		Borrower:        p.Borrower.String(),
		Amount:          weiString(p.Amount),
		InterestRateBps: p.InterestRateBps,
		TotalRepayment:  weiString(p.TotalRepayment),
		EditingEndsAt:   p.EditingEndsAt,
		VotingEndsAt:    p.VotingEndsAt,
		Status:          p.Status.StatusString(),
		ForVotes:        p.ForVotes,
		AgainstVotes:    p.AgainstVotes,
	}
	if phase != coop.ProposalPhaseUnspecified {
		out.Phase = phase.PhaseString()
	}
	return out
}

type loanResponse struct {
	ID              uint64 `json:"id"`
	ProposalID      uint64 `json:"proposalId"`
	Borrower        string `json:"borrower"`
	Principal       string `json:"principal"`
	InterestRateBps uint64 `json:"interestRateBps"`
	TotalRepayment  string `json:"totalRepayment"`
	DueAt           uint64 `json:"dueAt"`
	Status          string `json:"status"`
	AmountRepaid    string `json:"amountRepaid"`
}

func toLoanResponse(l *coop.Loan) *loanResponse {
	if l == nil {
		return nil
	}
	return &loanResponse{
		ID:              l.ID,
		ProposalID:      l.ProposalID,
		Borrower:        l.Borrower.String(),
		Principal:       weiString(l.Principal),
		InterestRateBps: l.InterestRateBps,
		TotalRepayment:  weiString(l.TotalRepayment),
		DueAt:           l.DueAt,
		Status:          l.Status.StatusString(),
		AmountRepaid:    weiString(l.AmountRepaid),
	}
}

type voteLoanResponse struct {
	Proposal *loanProposalResponse `json:"proposal"`
	Loan     *loanResponse         `json:"loan,omitempty"`
}

type repayResponse struct {
	Loan   *loanResponse `json:"loan"`
	Refund string        `json:"refund"`
}

type treasuryProposalResponse struct {
	ID           uint64 `json:"id"`
	Proposer     string `json:"proposer"`
	Amount       string `json:"amount"`
	Destination  string `json:"destination"`
	Reason       string `json:"reason,omitempty"`
	VotingEndsAt uint64 `json:"votingEndsAt"`
	Status       string `json:"status"`
	ForVotes     uint64 `json:"forVotes"`
	AgainstVotes uint64 `json:"againstVotes"`
}

func toTreasuryProposalResponse(p *coop.TreasuryProposal) *treasuryProposalResponse {
	if p == nil {
		return nil
	}
	return &treasuryProposalResponse{
		ID:           p.ID,
		Proposer:     p.Proposer.String(),
		Amount:       weiString(p.Amount),
		Destination:  p.Destination.String(),
		Reason:       p.Reason,
		VotingEndsAt: p.VotingEndsAt,
		Status:       p.Status.StatusString(),
		ForVotes:     p.ForVotes,
		AgainstVotes: p.AgainstVotes,
	}
}

type termsResponse struct {
	Amount          string `json:"amount"`
	InterestRateBps uint64 `json:"interestRateBps"`
	DurationSeconds uint64 `json:"durationSeconds"`
	TotalRepayment  string `json:"totalRepayment"`
}

func toTermsResponse(t *coop.Terms) *termsResponse {
	if t == nil {
		return nil
	}
	return &termsResponse{
		Amount:          weiString(t.Amount),
		InterestRateBps: t.InterestRateBps,
		DurationSeconds: t.DurationSeconds,
		TotalRepayment:  weiString(t.TotalRepayment),
	}
}

type rewardsResponse struct {
	Address  string `json:"address"`
	Interest string `json:"interest"`
	Yield    string `json:"yield"`
}

type claimResponse struct {
	Claimed string `json:"claimed"`
}

type treasuryResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type policyResponse struct {
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

func toPolicyResponse(p *coop.Policy) *policyResponse {
	if p == nil {
		return nil
	}
	return &policyResponse{
		MembershipContributionWei: weiString(p.MembershipContributionWei),
		MinMembershipSeconds:      p.MinMembershipSeconds,
		MaxLoanDurationSeconds:    p.MaxLoanDurationSeconds,
		CooldownSeconds:           p.CooldownSeconds,
		EditingPeriodSeconds:      p.EditingPeriodSeconds,
		VotingPeriodSeconds:       p.VotingPeriodSeconds,
		MinInterestRateBps:        p.MinInterestRateBps,
		MaxInterestRateBps:        p.MaxInterestRateBps,
		LoanQuorumBps:             p.LoanQuorumBps,
		TreasuryQuorumBps:         p.TreasuryQuorumBps,
		WeightedVoting:            p.WeightedVoting,
	}
}

type docResponse struct {
	EntityID     string `json:"entityId"`
	Category     string `json:"category"`
	Hash         string `json:"hash"`
	Actor        string `json:"actor"`
	RegisteredAt uint64 `json:"registeredAt"`
}

func toDocResponse(rec docs.Record) docResponse {
	return docResponse{
		EntityID:     rec.EntityID,
		Category:     rec.Category,
		Hash:         "0x" + hex.EncodeToString(rec.Hash[:]),
		Actor:        rec.Actor.String(),
		RegisteredAt: rec.RegisteredAt,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
