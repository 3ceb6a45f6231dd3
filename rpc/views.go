package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"saccochain/core/types"
	"saccochain/native/coop"
	"saccochain/native/docs"
	"saccochain/native/restaking"
)

func formatWei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type memberJSON struct {
	Address       string `json:"address"`
	Status        string `json:"status"`
	JoinedAt      uint64 `json:"joinedAt"`
	Contribution  string `json:"contribution"`
	ShareBalance  string `json:"shareBalance"`
	HasActiveLoan bool   `json:"hasActiveLoan"`
	LastLoanAt    uint64 `json:"lastLoanAt,omitempty"`
}

func newMemberJSON(m *coop.Member) *memberJSON {
	if m == nil {
		return nil
	}
	return &memberJSON{
		Address:       m.Address.String(),
		Status:        m.Status.StatusString(),
		JoinedAt:      m.JoinedAt,
		Contribution:  formatWei(m.ContributionAmount),
		ShareBalance:  formatWei(m.ShareBalance),
		HasActiveLoan: m.HasActiveLoan,
		LastLoanAt:    m.LastLoanAt,
	}
}

type loanProposalJSON struct {
	ID              uint64 `json:"id"`
	Borrower        string `json:"borrower"`
	Amount          string `json:"amount"`
	InterestRateBps uint64 `json:"interestRateBps"`
	DurationSeconds uint64 `json:"durationSeconds"`
	TotalRepayment  string `json:"totalRepayment"`
	CreatedAt       uint64 `json:"createdAt"`
	EditingEndsAt   uint64 `json:"editingEndsAt"`
	VotingEndsAt    uint64 `json:"votingEndsAt"`
	Status          string `json:"status"`
	Phase           string `json:"phase,omitempty"`
	ForVotes        uint64 `json:"forVotes"`
	AgainstVotes    uint64 `json:"againstVotes"`
}

func newLoanProposalJSON(p *coop.LoanProposal, phase coop.ProposalPhase) *loanProposalJSON {
	if p == nil {
		return nil
	}
	out := &loanProposalJSON{
		ID:              p.ID,
		Borrower:        p.Borrower.String(),
		Amount:          formatWei(p.Amount),
		InterestRateBps: p.InterestRateBps,
		DurationSeconds: p.DurationSeconds,
		TotalRepayment:  formatWei(p.TotalRepayment),
		CreatedAt:       p.CreatedAt,
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

type loanJSON struct {
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

func newLoanJSON(l *coop.Loan) *loanJSON {
	if l == nil {
		return nil
	}
	return &loanJSON{
		ID:              l.ID,
		ProposalID:      l.ProposalID,
		Borrower:        l.Borrower.String(),
		Principal:       formatWei(l.Principal),
		InterestRateBps: l.InterestRateBps,
		TotalRepayment:  formatWei(l.TotalRepayment),
		StartedAt:       l.StartedAt,
		DueAt:           l.DueAt,
		Status:          l.Status.StatusString(),
		AmountRepaid:    formatWei(l.AmountRepaid),
	}
}

type treasuryProposalJSON struct {
	ID           uint64 `json:"id"`
	Proposer     string `json:"proposer"`
	Amount       string `json:"amount"`
	Destination  string `json:"destination"`
	Reason       string `json:"reason,omitempty"`
	CreatedAt    uint64 `json:"createdAt"`
	VotingEndsAt uint64 `json:"votingEndsAt"`
	Status       string `json:"status"`
	ForVotes     uint64 `json:"forVotes"`
	AgainstVotes uint64 `json:"againstVotes"`
}

func newTreasuryProposalJSON(p *coop.TreasuryProposal) *treasuryProposalJSON {
	if p == nil {
		return nil
	}
	return &treasuryProposalJSON{
		ID:           p.ID,
		Proposer:     p.Proposer.String(),
		Amount:       formatWei(p.Amount),
		Destination:  p.Destination.String(),
		Reason:       p.Reason,
		CreatedAt:    p.CreatedAt,
		VotingEndsAt: p.VotingEndsAt,
		Status:       p.Status.StatusString(),
		ForVotes:     p.ForVotes,
		AgainstVotes: p.AgainstVotes,
	}
}

type termsJSON struct {
	Amount          string `json:"amount"`
	InterestRateBps uint64 `json:"interestRateBps"`
	DurationSeconds uint64 `json:"durationSeconds"`
	TotalRepayment  string `json:"totalRepayment"`
}

func newTermsJSON(t *coop.Terms) *termsJSON {
	if t == nil {
		return nil
	}
	return &termsJSON{
		Amount:          formatWei(t.Amount),
		InterestRateBps: t.InterestRateBps,
		DurationSeconds: t.DurationSeconds,
		TotalRepayment:  formatWei(t.TotalRepayment),
	}
}

type rewardBalanceJSON struct {
	Interest string `json:"interest"`
	Yield    string `json:"yield"`
}

func newRewardBalanceJSON(b *coop.RewardBalance) *rewardBalanceJSON {
	if b == nil {
		return &rewardBalanceJSON{Interest: "0", Yield: "0"}
	}
	return &rewardBalanceJSON{Interest: formatWei(b.Interest), Yield: formatWei(b.Yield)}
}

func newRewardTotalsJSON(t *coop.RewardTotals) *rewardBalanceJSON {
	if t == nil {
		return &rewardBalanceJSON{Interest: "0", Yield: "0"}
	}
	return &rewardBalanceJSON{Interest: formatWei(t.Interest), Yield: formatWei(t.Yield)}
}

type policyJSON struct {
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

func newPolicyJSON(p *coop.Policy) *policyJSON {
	if p == nil {
		return nil
	}
	return &policyJSON{
		MembershipContributionWei: formatWei(p.MembershipContributionWei),
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

func (p *policyJSON) toPolicy() (coop.Policy, error) {
	contribution, err := parseAmount(p.MembershipContributionWei, "membershipContributionWei")
	if err != nil {
		return coop.Policy{}, err
	}
	return coop.Policy{
		MembershipContributionWei: contribution,
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
	}, nil
}

type countersJSON struct {
	TotalMembers        uint64 `json:"totalMembers"`
	ActiveMembers       uint64 `json:"activeMembers"`
	LoanProposalSeq     uint64 `json:"loanProposalSeq"`
	TreasuryProposalSeq uint64 `json:"treasuryProposalSeq"`
	LoanSeq             uint64 `json:"loanSeq"`
}

func newCountersJSON(c *coop.Counters) *countersJSON {
	if c == nil {
		return nil
	}
	return &countersJSON{
		TotalMembers:        c.TotalMembers,
		ActiveMembers:       c.ActiveMembers,
		LoanProposalSeq:     c.LoanProposalSeq,
		TreasuryProposalSeq: c.TreasuryProposalSeq,
		LoanSeq:             c.LoanSeq,
	}
}

type auditRecordJSON struct {
	Sequence  uint64 `json:"sequence"`
	Timestamp uint64 `json:"timestamp"`
	Event     string `json:"event"`
	SubjectID uint64 `json:"subjectId,omitempty"`
	Actor     string `json:"actor"`
	Details   string `json:"details,omitempty"`
}

func newAuditRecordJSON(rec coop.AuditRecord) auditRecordJSON {
	return auditRecordJSON{
		Sequence:  rec.Sequence,
		Timestamp: rec.Timestamp,
		Event:     string(rec.Event),
		SubjectID: rec.SubjectID,
		Actor:     rec.Actor.String(),
		Details:   rec.Details,
	}
}

type docRecordJSON struct {
	EntityID     string `json:"entityId"`
	Category     string `json:"category"`
	Hash         string `json:"hash"`
	Actor        string `json:"actor"`
	RegisteredAt uint64 `json:"registeredAt"`
}

func newDocRecordJSON(rec docs.Record) docRecordJSON {
	return docRecordJSON{
		EntityID:     rec.EntityID,
		Category:     rec.Category,
		Hash:         fmt.Sprintf("0x%s", hex.EncodeToString(rec.Hash[:])),
		Actor:        rec.Actor.String(),
		RegisteredAt: rec.RegisteredAt,
	}
}

type positionJSON struct {
	Allocated     string `json:"allocated"`
	YieldReported string `json:"yieldReported"`
	LastYieldAt   uint64 `json:"lastYieldAt,omitempty"`
}

func newPositionJSON(p *restaking.Position) *positionJSON {
	if p == nil {
		return nil
	}
	return &positionJSON{
		Allocated:     formatWei(p.Allocated),
		YieldReported: formatWei(p.YieldReported),
		LastYieldAt:   p.LastYieldAt,
	}
}

type balanceJSON struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

func newBalanceJSON(addr string, account *types.Account) *balanceJSON {
	out := &balanceJSON{Address: addr, Balance: "0"}
	if account != nil {
		out.Nonce = account.Nonce
		out.Balance = formatWei(account.Balance)
	}
	return out
}
