package coop

import (
	"errors"

	nativecommon "saccochain/native/common"
)

// Kind classifies engine failures so transport layers can map them to
// stable error codes without string matching.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindState
	KindResource
	KindDuplicate
	KindNotFound
)

var (
	errStateNotConfigured = errors.New("coop engine: state not configured")

	ErrInvalidAmount       = errors.New("coop engine: amount must be positive")
	ErrZeroAddress         = errors.New("coop engine: address must not be zero")
	ErrInvalidPolicy       = errors.New("coop engine: invalid policy")
	ErrInsufficientBalance = errors.New("coop engine: insufficient account balance")

	ErrAlreadyMember       = errors.New("coop engine: already an active member")
	ErrNotMember           = errors.New("coop engine: caller is not a member")
	ErrMemberInactive      = errors.New("coop engine: membership is inactive")
	ErrInsufficientPayment = errors.New("coop engine: payment below membership contribution")
	ErrLoanOutstanding     = errors.New("coop engine: member has an active loan")
	ErrPendingProposal     = errors.New("coop engine: member has a pending loan proposal")
	ErrMembershipTooRecent = errors.New("coop engine: minimum membership duration not met")
	ErrCooldownActive      = errors.New("coop engine: loan cooldown has not elapsed")

	ErrProposalNotFound   = errors.New("coop engine: proposal not found")
	ErrProposalNotPending = errors.New("coop engine: proposal is not pending")
	ErrNotBorrower        = errors.New("coop engine: caller is not the borrower")
	ErrBorrowerCannotVote = errors.New("coop engine: borrower cannot vote on own proposal")
	ErrEditingClosed      = errors.New("coop engine: editing period has ended")
	ErrVotingNotStarted   = errors.New("coop engine: voting has not started")
	ErrVotingClosed       = errors.New("coop engine: voting window has closed")
	ErrAlreadyVoted       = errors.New("coop engine: ballot already cast")
	ErrTallyOverflow      = errors.New("coop engine: vote tally overflow")

	ErrLoanNotFound      = errors.New("coop engine: loan not found")
	ErrLoanNotActive     = errors.New("coop engine: loan is not active")
	ErrRepaymentMismatch = errors.New("coop engine: payment must equal total repayment")

	ErrInsufficientTreasury        = errors.New("coop engine: insufficient treasury funds")
	ErrInsufficientTreasuryForLoan = errors.New("coop engine: insufficient treasury funds for disbursement")

	ErrNothingToClaim = errors.New("coop engine: no pending rewards to claim")

	ErrNotAdmin      = errors.New("coop engine: caller is not an admin")
	ErrNotAuthorized = errors.New("coop engine: caller is not authorized")
)

// Classify resolves the taxonomy kind for an engine error. Wrapped errors are
// matched via errors.Is so callers may annotate failures freely.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrZeroAddress),
		errors.Is(err, ErrInvalidPolicy),
		errors.Is(err, ErrInsufficientPayment),
		errors.Is(err, ErrRepaymentMismatch):
		return KindValidation
	case errors.Is(err, ErrNotMember),
		errors.Is(err, ErrMemberInactive),
		errors.Is(err, ErrNotBorrower),
		errors.Is(err, ErrBorrowerCannotVote),
		errors.Is(err, ErrNotAdmin),
		errors.Is(err, ErrNotAuthorized):
		return KindAuthorization
	case errors.Is(err, ErrLoanOutstanding),
		errors.Is(err, ErrPendingProposal),
		errors.Is(err, ErrMembershipTooRecent),
		errors.Is(err, ErrCooldownActive),
		errors.Is(err, ErrProposalNotPending),
		errors.Is(err, ErrEditingClosed),
		errors.Is(err, ErrVotingNotStarted),
		errors.Is(err, ErrVotingClosed),
		errors.Is(err, ErrTallyOverflow),
		errors.Is(err, ErrLoanNotActive),
		errors.Is(err, ErrNothingToClaim),
		errors.Is(err, errStateNotConfigured),
		errors.Is(err, nativecommon.ErrModulePaused):
		return KindState
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInsufficientTreasury),
		errors.Is(err, ErrInsufficientTreasuryForLoan):
		return KindResource
	case errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrAlreadyVoted):
		return KindDuplicate
	case errors.Is(err, ErrProposalNotFound),
		errors.Is(err, ErrLoanNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}
