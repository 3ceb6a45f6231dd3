package coop

import (
	"math/big"

	"saccochain/crypto"
)

// MemberStatus tracks whether a member currently participates in voting,
// distributions, and borrowing. Records are never deleted; exits flip the
// status to inactive and the historical row is retained.
type MemberStatus uint8

const (
	// MemberStatusUnspecified marks an uninitialised record and should not
	// appear in state.
	MemberStatusUnspecified MemberStatus = iota
	// MemberStatusActive marks a member eligible to vote, borrow, and earn.
	MemberStatusActive
	// MemberStatusInactive marks a member who exited. The record is retained
	// for audit history and skipped by distribution scans.
	MemberStatusInactive
)

// StatusString provides a stable textual representation for logs and APIs.
func (s MemberStatus) StatusString() string {
	switch s {
	case MemberStatusActive:
		return "active"
	case MemberStatusInactive:
		return "inactive"
	default:
		return "unspecified"
	}
}

// Member is one participant's standing in the cooperative.
type Member struct {
	Address            crypto.Address
	Status             MemberStatus
	JoinedAt           uint64
	ContributionAmount *big.Int
	ShareBalance       *big.Int
	HasActiveLoan      bool
	LastLoanAt         uint64
}

// Clone returns an independent copy of the member record.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	clone := *m
	if m.ContributionAmount != nil {
		clone.ContributionAmount = new(big.Int).Set(m.ContributionAmount)
	}
	if m.ShareBalance != nil {
		clone.ShareBalance = new(big.Int).Set(m.ShareBalance)
	}
	return &clone
}

// ProposalStatus is the persisted outcome state shared by loan and treasury
// proposals. Proposals that never reach quorum stay pending indefinitely.
type ProposalStatus uint8

const (
	// ProposalStatusUnspecified marks an uninitialised proposal.
	ProposalStatusUnspecified ProposalStatus = iota
	// ProposalStatusPending identifies proposals still collecting votes.
	ProposalStatusPending
	// ProposalStatusApproved identifies proposals whose tally reached quorum
	// and whose funds have been settled.
	ProposalStatusApproved
)

// StatusString provides a stable textual representation for logs and APIs.
func (s ProposalStatus) StatusString() string {
	switch s {
	case ProposalStatusPending:
		return "pending"
	case ProposalStatusApproved:
		return "approved"
	default:
		return "unspecified"
	}
}

// ProposalPhase is the lifecycle window a loan proposal currently sits in.
// The phase is derived from the stored deadlines and the caller's clock
// rather than persisted, so no background task is needed to advance it.
type ProposalPhase uint8

const (
	// ProposalPhaseUnspecified marks an uninitialised proposal.
	ProposalPhaseUnspecified ProposalPhase = iota
	// ProposalPhaseEditing is the window where only the borrower may adjust
	// the requested amount and no ballots are accepted.
	ProposalPhaseEditing
	// ProposalPhaseVoting is the window where active members cast ballots.
	ProposalPhaseVoting
	// ProposalPhaseExecuted marks proposals that reached quorum and
	// disbursed.
	ProposalPhaseExecuted
)

// PhaseString provides a stable textual representation for logs and APIs.
func (p ProposalPhase) PhaseString() string {
	switch p {
	case ProposalPhaseEditing:
		return "editing"
	case ProposalPhaseVoting:
		return "voting"
	case ProposalPhaseExecuted:
		return "executed"
	default:
		return "unspecified"
	}
}

// LoanProposal is a borrower's request for treasury funds. Deadlines are
// fixed at creation; the voting window opens when the editing window ends.
type LoanProposal struct {
	ID              uint64
	Borrower        crypto.Address
	Amount          *big.Int
	InterestRateBps uint64
	DurationSeconds uint64
	TotalRepayment  *big.Int
	CreatedAt       uint64
	EditingEndsAt   uint64
	VotingEndsAt    uint64
	Status          ProposalStatus
	ForVotes        uint64
	AgainstVotes    uint64
}

// Phase derives the lifecycle window for the proposal at the supplied unix
// time. Approved proposals report executed regardless of the clock; phases
// never regress because the deadlines are immutable.
func (p *LoanProposal) Phase(now uint64) ProposalPhase {
	if p == nil {
		return ProposalPhaseUnspecified
	}
	if p.Status == ProposalStatusApproved {
		return ProposalPhaseExecuted
	}
	if now <= p.EditingEndsAt {
		return ProposalPhaseEditing
	}
	return ProposalPhaseVoting
}

// Clone returns an independent copy of the proposal.
func (p *LoanProposal) Clone() *LoanProposal {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	}
	if p.TotalRepayment != nil {
		clone.TotalRepayment = new(big.Int).Set(p.TotalRepayment)
	}
	return &clone
}

// TreasuryProposal requests an outbound transfer from the pooled treasury to
// an external destination. There is no editing window; voting opens on
// creation.
type TreasuryProposal struct {
	ID           uint64
	Proposer     crypto.Address
	Amount       *big.Int
	Destination  crypto.Address
	Reason       string
	CreatedAt    uint64
	VotingEndsAt uint64
	Status       ProposalStatus
	ForVotes     uint64
	AgainstVotes uint64
}

// Clone returns an independent copy of the proposal.
func (p *TreasuryProposal) Clone() *TreasuryProposal {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	}
	return &clone
}

// LoanStatus tracks a disbursed loan through repayment.
type LoanStatus uint8

const (
	// LoanStatusUnspecified marks an uninitialised loan.
	LoanStatusUnspecified LoanStatus = iota
	// LoanStatusActive identifies outstanding loans awaiting repayment.
	LoanStatusActive
	// LoanStatusRepaid identifies loans settled in full.
	LoanStatusRepaid
)

// StatusString provides a stable textual representation for logs and APIs.
func (s LoanStatus) StatusString() string {
	switch s {
	case LoanStatusActive:
		return "active"
	case LoanStatusRepaid:
		return "repaid"
	default:
		return "unspecified"
	}
}

// Loan is the funded counterpart of an approved proposal. Exactly one loan is
// created per approval, under a fresh identifier.
type Loan struct {
	ID              uint64
	ProposalID      uint64
	Borrower        crypto.Address
	Principal       *big.Int
	InterestRateBps uint64
	TotalRepayment  *big.Int
	StartedAt       uint64
	DueAt           uint64
	Status          LoanStatus
	AmountRepaid    *big.Int
}

// Clone returns an independent copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Principal != nil {
		clone.Principal = new(big.Int).Set(l.Principal)
	}
	if l.TotalRepayment != nil {
		clone.TotalRepayment = new(big.Int).Set(l.TotalRepayment)
	}
	if l.AmountRepaid != nil {
		clone.AmountRepaid = new(big.Int).Set(l.AmountRepaid)
	}
	return &clone
}

// VoteDomain namespaces ballots so loan and treasury proposals with the same
// identifier never collide in state.
type VoteDomain string

const (
	VoteDomainLoan     VoteDomain = "loan"
	VoteDomainTreasury VoteDomain = "treasury"
)

// Vote records a single ballot. One entry exists per (domain, proposal,
// voter); tallies on the proposal are the running weighted sums.
type Vote struct {
	ProposalID uint64
	Voter      crypto.Address
	Support    bool
	Weight     uint64
	Timestamp  uint64
}

// Counters aggregates the cooperative's global sequence numbers. All fields
// are monotone except ActiveMembers, which decrements on exit.
type Counters struct {
	TotalMembers        uint64
	ActiveMembers       uint64
	LoanProposalSeq     uint64
	TreasuryProposalSeq uint64
	LoanSeq             uint64
}

// RewardBalance is one address's claimable rewards, split by source.
type RewardBalance struct {
	Interest *big.Int
	Yield    *big.Int
}

// EnsureDefaults normalises nil amounts to zero so callers can operate on the
// balances without nil checks.
func (r *RewardBalance) EnsureDefaults() {
	if r.Interest == nil {
		r.Interest = big.NewInt(0)
	}
	if r.Yield == nil {
		r.Yield = big.NewInt(0)
	}
}

// Clone returns an independent copy of the balance.
func (r *RewardBalance) Clone() *RewardBalance {
	if r == nil {
		return nil
	}
	clone := &RewardBalance{Interest: big.NewInt(0), Yield: big.NewInt(0)}
	if r.Interest != nil {
		clone.Interest = new(big.Int).Set(r.Interest)
	}
	if r.Yield != nil {
		clone.Yield = new(big.Int).Set(r.Yield)
	}
	return clone
}

// RewardTotals is the outstanding reward liability across all members, kept
// so the treasury-coverage invariant can be checked without a full scan.
type RewardTotals struct {
	Interest *big.Int
	Yield    *big.Int
}

// EnsureDefaults normalises nil amounts to zero.
func (r *RewardTotals) EnsureDefaults() {
	if r.Interest == nil {
		r.Interest = big.NewInt(0)
	}
	if r.Yield == nil {
		r.Yield = big.NewInt(0)
	}
}

// Terms is a priced loan quote.
type Terms struct {
	Amount          *big.Int
	InterestRateBps uint64
	DurationSeconds uint64
	TotalRepayment  *big.Int
}

// AuditEvent identifies the lifecycle milestone captured by an audit record.
type AuditEvent string

const (
	AuditEventMemberRegistered AuditEvent = "member.registered"
	AuditEventMemberExited     AuditEvent = "member.exited"
	AuditEventLoanProposed     AuditEvent = "loan.proposed"
	AuditEventLoanEdited       AuditEvent = "loan.edited"
	AuditEventLoanVote         AuditEvent = "loan.vote"
	AuditEventLoanApproved     AuditEvent = "loan.approved"
	AuditEventLoanDisbursed    AuditEvent = "loan.disbursed"
	AuditEventLoanRepaid       AuditEvent = "loan.repaid"
	AuditEventTreasuryProposed AuditEvent = "treasury.proposed"
	AuditEventTreasuryVote     AuditEvent = "treasury.vote"
	AuditEventTreasuryApproved AuditEvent = "treasury.approved"
	AuditEventRewardsClaimed   AuditEvent = "rewards.claimed"
	AuditEventYieldReported    AuditEvent = "yield.reported"
	AuditEventPolicyUpdated    AuditEvent = "policy.updated"
	AuditEventAdminUpdated     AuditEvent = "admin.updated"
)

// AuditRecord is an append-only lifecycle entry. Records carry a
// monotonically increasing sequence assigned by the state layer so operators
// can reconstruct the exact ordering of cooperative actions without relying
// on the event stream.
type AuditRecord struct {
	Sequence  uint64
	Timestamp uint64
	Event     AuditEvent
	SubjectID uint64
	Actor     crypto.Address
	Details   string
}
