package coop

import (
	"math/big"

	"saccochain/crypto"
)

// Member returns the membership record for an address.
func (e *Engine) Member(addr crypto.Address) (*Member, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	member, ok, err := e.state.CoopMember(addr)
	if err != nil {
		return nil, err
	}
	if !ok || member == nil {
		return nil, ErrNotMember
	}
	return member.Clone(), nil
}

// Members returns every membership record ever created, active or not, in
// registration order.
func (e *Engine) Members() ([]*Member, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	addresses, err := e.state.CoopMemberAddresses()
	if err != nil {
		return nil, err
	}
	members := make([]*Member, 0, len(addresses))
	for _, addr := range addresses {
		member, ok, err := e.state.CoopMember(addr)
		if err != nil {
			return nil, err
		}
		if !ok || member == nil {
			continue
		}
		members = append(members, member.Clone())
	}
	return members, nil
}

// LoanProposal returns a proposal along with its phase at the current clock.
func (e *Engine) LoanProposal(id uint64) (*LoanProposal, ProposalPhase, error) {
	if e == nil || e.state == nil {
		return nil, ProposalPhaseUnspecified, errStateNotConfigured
	}
	proposal, ok, err := e.state.CoopLoanProposal(id)
	if err != nil {
		return nil, ProposalPhaseUnspecified, err
	}
	if !ok || proposal == nil {
		return nil, ProposalPhaseUnspecified, ErrProposalNotFound
	}
	return proposal.Clone(), proposal.Phase(e.nowUnix()), nil
}

// Loan returns a loan record by identifier.
func (e *Engine) Loan(id uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	loan, ok, err := e.state.CoopLoan(id)
	if err != nil {
		return nil, err
	}
	if !ok || loan == nil {
		return nil, ErrLoanNotFound
	}
	return loan.Clone(), nil
}

// TreasuryProposal returns a withdrawal proposal by identifier.
func (e *Engine) TreasuryProposal(id uint64) (*TreasuryProposal, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	proposal, ok, err := e.state.CoopTreasuryProposal(id)
	if err != nil {
		return nil, err
	}
	if !ok || proposal == nil {
		return nil, ErrProposalNotFound
	}
	return proposal.Clone(), nil
}

// QuoteLoanTerms prices a hypothetical loan against the current treasury
// without touching state.
func (e *Engine) QuoteLoanTerms(amount *big.Int) (*Terms, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	policy, err := e.policy()
	if err != nil {
		return nil, err
	}
	treasuryAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	return CalculateTerms(amount, treasuryAcc.Balance, *policy)
}

// PendingRewards returns the caller's unclaimed interest and yield balances.
func (e *Engine) PendingRewards(addr crypto.Address) (*RewardBalance, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	rewards, err := e.loadRewards(addr)
	if err != nil {
		return nil, err
	}
	return rewards.Clone(), nil
}

// ActiveLoanIDs returns the identifiers of loans not yet repaid.
func (e *Engine) ActiveLoanIDs() ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.state.CoopActiveLoanIDs()
}

// Policy returns the active cooperative policy.
func (e *Engine) Policy() (*Policy, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.policy()
}

// Counters returns the aggregate membership and sequence counters.
func (e *Engine) Counters() (*Counters, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.loadCounters()
}

// Admins returns the current admin set.
func (e *Engine) Admins() ([]crypto.Address, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.state.CoopAdmins()
}

// IsAdmin reports whether the address holds admin rights.
func (e *Engine) IsAdmin(addr crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errStateNotConfigured
	}
	return e.isAdmin(addr)
}

// RewardTotals returns the outstanding reward liability owed from the
// treasury, by bucket.
func (e *Engine) RewardTotals() (*RewardTotals, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	totals, err := e.loadRewardTotals()
	if err != nil {
		return nil, err
	}
	return &RewardTotals{
		Interest: new(big.Int).Set(totals.Interest),
		Yield:    new(big.Int).Set(totals.Yield),
	}, nil
}
