package events

import (
	"math/big"
	"strconv"

	"saccochain/core/types"
	"saccochain/crypto"
)

const (
	TypeCoopMemberRegistered    = "coop.member.registered"
	TypeCoopMemberExited        = "coop.member.exited"
	TypeCoopLoanProposed        = "coop.loan.proposed"
	TypeCoopLoanEdited          = "coop.loan.edited"
	TypeCoopLoanVote            = "coop.loan.vote"
	TypeCoopLoanApproved        = "coop.loan.approved"
	TypeCoopLoanDisbursed       = "coop.loan.disbursed"
	TypeCoopLoanRepaid          = "coop.loan.repaid"
	TypeCoopInterestDistributed = "coop.rewards.interest"
	TypeCoopYieldDistributed    = "coop.rewards.yield"
	TypeCoopRewardsClaimed      = "coop.rewards.claimed"
	TypeCoopTreasuryProposed    = "coop.treasury.proposed"
	TypeCoopTreasuryVote        = "coop.treasury.vote"
	TypeCoopTreasuryApproved    = "coop.treasury.approved"
	TypeCoopYieldReported       = "coop.yield.reported"
	TypeCoopPolicyUpdated       = "coop.policy.updated"
	TypeCoopAdminUpdated        = "coop.admin.updated"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// CoopMemberRegistered is emitted when an address joins (or rejoins) the
// cooperative. Refund carries any excess payment returned to the caller.
type CoopMemberRegistered struct {
	Address      [20]byte
	Contribution *big.Int
	Refund       *big.Int
	Rejoined     bool
}

// EventType implements the Event interface.
func (CoopMemberRegistered) EventType() string { return TypeCoopMemberRegistered }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopMemberRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopMemberRegistered,
		Attributes: map[string]string{
			"address":      crypto.AddressFromRaw(e.Address).String(),
			"contribution": amountString(e.Contribution),
			"refund":       amountString(e.Refund),
			"rejoined":     strconv.FormatBool(e.Rejoined),
		},
	}
}

// CoopMemberExited is emitted when a member leaves and receives their
// proportional treasury share.
type CoopMemberExited struct {
	Address [20]byte
	Share   *big.Int
}

// EventType implements the Event interface.
func (CoopMemberExited) EventType() string { return TypeCoopMemberExited }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopMemberExited) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopMemberExited,
		Attributes: map[string]string{
			"address": crypto.AddressFromRaw(e.Address).String(),
			"share":   amountString(e.Share),
		},
	}
}

// CoopLoanProposed is emitted when a borrower opens a loan proposal.
type CoopLoanProposed struct {
	ProposalID      uint64
	Borrower        [20]byte
	Amount          *big.Int
	InterestRateBps uint64
	TotalRepayment  *big.Int
	EditingEndsAt   uint64
	VotingEndsAt    uint64
}

// EventType implements the Event interface.
func (CoopLoanProposed) EventType() string { return TypeCoopLoanProposed }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopLoanProposed) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopLoanProposed,
		Attributes: map[string]string{
			"proposalId":    strconv.FormatUint(e.ProposalID, 10),
			"borrower":      crypto.AddressFromRaw(e.Borrower).String(),
			"amount":        amountString(e.Amount),
			"rateBps":       strconv.FormatUint(e.InterestRateBps, 10),
			"repayment":     amountString(e.TotalRepayment),
			"editingEndsAt": strconv.FormatUint(e.EditingEndsAt, 10),
			"votingEndsAt":  strconv.FormatUint(e.VotingEndsAt, 10),
		},
	}
}

// CoopLoanEdited is emitted when the borrower re-prices a proposal during the
// editing window.
type CoopLoanEdited struct {
	ProposalID      uint64
	Borrower        [20]byte
	Amount          *big.Int
	InterestRateBps uint64
	TotalRepayment  *big.Int
}

// EventType implements the Event interface.
func (CoopLoanEdited) EventType() string { return TypeCoopLoanEdited }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopLoanEdited) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopLoanEdited,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(e.ProposalID, 10),
			"borrower":   crypto.AddressFromRaw(e.Borrower).String(),
			"amount":     amountString(e.Amount),
			"rateBps":    strconv.FormatUint(e.InterestRateBps, 10),
			"repayment":  amountString(e.TotalRepayment),
		},
	}
}

// CoopLoanVote is emitted for every accepted ballot on a loan proposal.
type CoopLoanVote struct {
	ProposalID   uint64
	Voter        [20]byte
	Support      bool
	Weight       uint64
	ForVotes     uint64
	AgainstVotes uint64
}

// EventType implements the Event interface.
func (CoopLoanVote) EventType() string { return TypeCoopLoanVote }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopLoanVote) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopLoanVote,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(e.ProposalID, 10),
			"voter":      crypto.AddressFromRaw(e.Voter).String(),
			"support":    strconv.FormatBool(e.Support),
			"weight":     strconv.FormatUint(e.Weight, 10),
			"for":        strconv.FormatUint(e.ForVotes, 10),
			"against":    strconv.FormatUint(e.AgainstVotes, 10),
		},
	}
}

// CoopLoanApproved is emitted the moment a proposal's tally reaches quorum.
type CoopLoanApproved struct {
	ProposalID uint64
	ForVotes   uint64
	Quorum     uint64
}

// EventType implements the Event interface.
func (CoopLoanApproved) EventType() string { return TypeCoopLoanApproved }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopLoanApproved) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopLoanApproved,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(e.ProposalID, 10),
			"for":        strconv.FormatUint(e.ForVotes, 10),
			"quorum":     strconv.FormatUint(e.Quorum, 10),
		},
	}
}

// CoopLoanDisbursed is emitted when an approved proposal's funds leave the
// treasury for the borrower.
type CoopLoanDisbursed struct {
	LoanID     uint64
	ProposalID uint64
	Borrower   [20]byte
	Principal  *big.Int
	DueAt      uint64
}

// EventType implements the Event interface.
func (CoopLoanDisbursed) EventType() string { return TypeCoopLoanDisbursed }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopLoanDisbursed) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopLoanDisbursed,
		Attributes: map[string]string{
			"loanId":     strconv.FormatUint(e.LoanID, 10),
			"proposalId": strconv.FormatUint(e.ProposalID, 10),
			"borrower":   crypto.AddressFromRaw(e.Borrower).String(),
			"principal":  amountString(e.Principal),
			"dueAt":      strconv.FormatUint(e.DueAt, 10),
		},
	}
}

// CoopLoanRepaid is emitted on full repayment of an active loan.
type CoopLoanRepaid struct {
	LoanID   uint64
	Borrower [20]byte
	Amount   *big.Int
	Interest *big.Int
}

// EventType implements the Event interface.
func (CoopLoanRepaid) EventType() string { return TypeCoopLoanRepaid }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopLoanRepaid) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopLoanRepaid,
		Attributes: map[string]string{
			"loanId":   strconv.FormatUint(e.LoanID, 10),
			"borrower": crypto.AddressFromRaw(e.Borrower).String(),
			"amount":   amountString(e.Amount),
			"interest": amountString(e.Interest),
		},
	}
}

// CoopInterestDistributed is emitted after repayment interest is split across
// active members.
type CoopInterestDistributed struct {
	Amount     *big.Int
	PerMember  *big.Int
	Recipients uint64
}

// EventType implements the Event interface.
func (CoopInterestDistributed) EventType() string { return TypeCoopInterestDistributed }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopInterestDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopInterestDistributed,
		Attributes: map[string]string{
			"amount":     amountString(e.Amount),
			"perMember":  amountString(e.PerMember),
			"recipients": strconv.FormatUint(e.Recipients, 10),
		},
	}
}

// CoopYieldDistributed is emitted after reported yield is split across active
// members.
type CoopYieldDistributed struct {
	Amount     *big.Int
	PerMember  *big.Int
	Recipients uint64
}

// EventType implements the Event interface.
func (CoopYieldDistributed) EventType() string { return TypeCoopYieldDistributed }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopYieldDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopYieldDistributed,
		Attributes: map[string]string{
			"amount":     amountString(e.Amount),
			"perMember":  amountString(e.PerMember),
			"recipients": strconv.FormatUint(e.Recipients, 10),
		},
	}
}

// CoopRewardsClaimed is emitted when a member withdraws pending rewards.
// Category is "interest" or "yield".
type CoopRewardsClaimed struct {
	Address  [20]byte
	Amount   *big.Int
	Category string
}

// EventType implements the Event interface.
func (CoopRewardsClaimed) EventType() string { return TypeCoopRewardsClaimed }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopRewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopRewardsClaimed,
		Attributes: map[string]string{
			"address":  crypto.AddressFromRaw(e.Address).String(),
			"amount":   amountString(e.Amount),
			"category": e.Category,
		},
	}
}

// CoopTreasuryProposed is emitted when a withdrawal proposal opens for voting.
type CoopTreasuryProposed struct {
	ProposalID   uint64
	Proposer     [20]byte
	Amount       *big.Int
	Destination  [20]byte
	VotingEndsAt uint64
}

// EventType implements the Event interface.
func (CoopTreasuryProposed) EventType() string { return TypeCoopTreasuryProposed }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopTreasuryProposed) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopTreasuryProposed,
		Attributes: map[string]string{
			"proposalId":   strconv.FormatUint(e.ProposalID, 10),
			"proposer":     crypto.AddressFromRaw(e.Proposer).String(),
			"amount":       amountString(e.Amount),
			"destination":  crypto.AddressFromRaw(e.Destination).String(),
			"votingEndsAt": strconv.FormatUint(e.VotingEndsAt, 10),
		},
	}
}

// CoopTreasuryVote is emitted for every accepted ballot on a withdrawal
// proposal.
type CoopTreasuryVote struct {
	ProposalID   uint64
	Voter        [20]byte
	Support      bool
	Weight       uint64
	ForVotes     uint64
	AgainstVotes uint64
}

// EventType implements the Event interface.
func (CoopTreasuryVote) EventType() string { return TypeCoopTreasuryVote }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopTreasuryVote) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopTreasuryVote,
		Attributes: map[string]string{
			"proposalId": strconv.FormatUint(e.ProposalID, 10),
			"voter":      crypto.AddressFromRaw(e.Voter).String(),
			"support":    strconv.FormatBool(e.Support),
			"weight":     strconv.FormatUint(e.Weight, 10),
			"for":        strconv.FormatUint(e.ForVotes, 10),
			"against":    strconv.FormatUint(e.AgainstVotes, 10),
		},
	}
}

// CoopTreasuryApproved is emitted when a withdrawal reaches quorum and the
// funds leave the treasury.
type CoopTreasuryApproved struct {
	ProposalID  uint64
	Amount      *big.Int
	Destination [20]byte
	ForVotes    uint64
	Quorum      uint64
}

// EventType implements the Event interface.
func (CoopTreasuryApproved) EventType() string { return TypeCoopTreasuryApproved }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopTreasuryApproved) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopTreasuryApproved,
		Attributes: map[string]string{
			"proposalId":  strconv.FormatUint(e.ProposalID, 10),
			"amount":      amountString(e.Amount),
			"destination": crypto.AddressFromRaw(e.Destination).String(),
			"for":         strconv.FormatUint(e.ForVotes, 10),
			"quorum":      strconv.FormatUint(e.Quorum, 10),
		},
	}
}

// CoopYieldReported is emitted when the restaking strategy pushes realised
// yield back into the treasury.
type CoopYieldReported struct {
	Source [20]byte
	Amount *big.Int
}

// EventType implements the Event interface.
func (CoopYieldReported) EventType() string { return TypeCoopYieldReported }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopYieldReported) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopYieldReported,
		Attributes: map[string]string{
			"source": crypto.AddressFromRaw(e.Source).String(),
			"amount": amountString(e.Amount),
		},
	}
}

// CoopPolicyUpdated is emitted when an admin replaces the cooperative policy.
type CoopPolicyUpdated struct {
	Actor [20]byte
}

// EventType implements the Event interface.
func (CoopPolicyUpdated) EventType() string { return TypeCoopPolicyUpdated }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopPolicyUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopPolicyUpdated,
		Attributes: map[string]string{
			"actor": crypto.AddressFromRaw(e.Actor).String(),
		},
	}
}

// CoopAdminUpdated is emitted when the admin set changes. Action is "added"
// or "removed".
type CoopAdminUpdated struct {
	Actor  [20]byte
	Admin  [20]byte
	Action string
}

// EventType implements the Event interface.
func (CoopAdminUpdated) EventType() string { return TypeCoopAdminUpdated }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e CoopAdminUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeCoopAdminUpdated,
		Attributes: map[string]string{
			"actor":  crypto.AddressFromRaw(e.Actor).String(),
			"admin":  crypto.AddressFromRaw(e.Admin).String(),
			"action": e.Action,
		},
	}
}
