package coop

import (
	"fmt"
	"math/big"
)

const (
	// DefaultLoanQuorumBps is the share of the voting denominator required to
	// approve a loan proposal when the policy does not override it.
	DefaultLoanQuorumBps = 5100
	// DefaultTreasuryQuorumBps is the higher bar applied to treasury
	// withdrawals, which move funds outside the cooperative.
	DefaultTreasuryQuorumBps = 6000
)

// Policy captures the tunable parameters governing membership, loan pricing,
// and proposal voting. Values are expected to be pre-normalised (contribution
// in wei, durations in seconds, rates and quorums in basis points).
type Policy struct {
	MembershipContributionWei *big.Int
	MinMembershipSeconds      uint64
	MaxLoanDurationSeconds    uint64
	CooldownSeconds           uint64
	EditingPeriodSeconds      uint64
	VotingPeriodSeconds       uint64
	MinInterestRateBps        uint64
	MaxInterestRateBps        uint64
	LoanQuorumBps             uint64
	TreasuryQuorumBps         uint64
	WeightedVoting            bool
}

// DefaultPolicy returns the parameters a new cooperative starts with before
// genesis or admin overrides.
func DefaultPolicy() Policy {
	return Policy{
		MembershipContributionWei: new(big.Int).SetUint64(1_000_000_000_000_000_000),
		MinMembershipSeconds:      30 * 24 * 60 * 60,
		MaxLoanDurationSeconds:    365 * 24 * 60 * 60,
		CooldownSeconds:           30 * 24 * 60 * 60,
		EditingPeriodSeconds:      3 * 24 * 60 * 60,
		VotingPeriodSeconds:       7 * 24 * 60 * 60,
		MinInterestRateBps:        500,
		MaxInterestRateBps:        2000,
		LoanQuorumBps:             DefaultLoanQuorumBps,
		TreasuryQuorumBps:         DefaultTreasuryQuorumBps,
	}
}

// Validate reports whether the policy satisfies the structural invariants
// required before it may be persisted.
func (p Policy) Validate() error {
	if p.MembershipContributionWei == nil || p.MembershipContributionWei.Sign() <= 0 {
		return fmt.Errorf("%w: membership contribution must be positive", ErrInvalidPolicy)
	}
	if p.MinMembershipSeconds == 0 {
		return fmt.Errorf("%w: minimum membership duration must be positive", ErrInvalidPolicy)
	}
	if p.MaxLoanDurationSeconds == 0 {
		return fmt.Errorf("%w: maximum loan duration must be positive", ErrInvalidPolicy)
	}
	if p.CooldownSeconds == 0 {
		return fmt.Errorf("%w: cooldown period must be positive", ErrInvalidPolicy)
	}
	if p.EditingPeriodSeconds == 0 {
		return fmt.Errorf("%w: editing period must be positive", ErrInvalidPolicy)
	}
	if p.VotingPeriodSeconds == 0 {
		return fmt.Errorf("%w: voting period must be positive", ErrInvalidPolicy)
	}
	if p.MinInterestRateBps == 0 || p.MinInterestRateBps > 10_000 {
		return fmt.Errorf("%w: minimum interest rate out of range [1,10000]", ErrInvalidPolicy)
	}
	if p.MaxInterestRateBps == 0 || p.MaxInterestRateBps > 10_000 {
		return fmt.Errorf("%w: maximum interest rate out of range [1,10000]", ErrInvalidPolicy)
	}
	if p.MinInterestRateBps >= p.MaxInterestRateBps {
		return fmt.Errorf("%w: minimum interest rate must be below maximum", ErrInvalidPolicy)
	}
	if p.LoanQuorumBps == 0 || p.LoanQuorumBps > 10_000 {
		return fmt.Errorf("%w: loan quorum out of range [1,10000]", ErrInvalidPolicy)
	}
	if p.TreasuryQuorumBps == 0 || p.TreasuryQuorumBps > 10_000 {
		return fmt.Errorf("%w: treasury quorum out of range [1,10000]", ErrInvalidPolicy)
	}
	return nil
}

// Clone returns an independent copy so callers can mutate policies without
// aliasing the stored big integers.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	clone := *p
	if p.MembershipContributionWei != nil {
		clone.MembershipContributionWei = new(big.Int).Set(p.MembershipContributionWei)
	}
	return &clone
}
