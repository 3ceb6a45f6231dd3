package coop

import (
	"fmt"
	"math/big"

	"saccochain/core/events"
	"saccochain/crypto"
)

// Register admits the caller as an active member. The caller pays the policy
// contribution out of their ledger account; any excess over the fee is
// refunded in the same call so the net contribution always equals the fee.
// Former members may rejoin: the historical record is reused with a fresh
// join date and contribution. The refunded amount is returned alongside the
// stored record.
func (e *Engine) Register(caller crypto.Address, payment *big.Int) (*Member, *big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	if caller.IsZero() {
		return nil, nil, ErrZeroAddress
	}
	if payment == nil || payment.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	policy, err := e.policy()
	if err != nil {
		return nil, nil, err
	}
	fee := policy.MembershipContributionWei
	if payment.Cmp(fee) < 0 {
		return nil, nil, ErrInsufficientPayment
	}

	member, exists, err := e.state.CoopMember(caller)
	if err != nil {
		return nil, nil, err
	}
	if exists && member != nil && member.Status == MemberStatusActive {
		return nil, nil, ErrAlreadyMember
	}

	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, nil, err
	}
	if callerAcc.Balance.Cmp(payment) < 0 {
		return nil, nil, ErrInsufficientBalance
	}
	treasuryAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, nil, err
	}

	now := e.nowUnix()
	rejoined := exists && member != nil
	if rejoined {
		member.Status = MemberStatusActive
		member.JoinedAt = now
		member.ContributionAmount = new(big.Int).Set(fee)
		member.ShareBalance = new(big.Int).Set(fee)
	} else {
		member = &Member{
			Address:            caller,
			Status:             MemberStatusActive,
			JoinedAt:           now,
			ContributionAmount: new(big.Int).Set(fee),
			ShareBalance:       new(big.Int).Set(fee),
		}
	}

	counters, err := e.loadCounters()
	if err != nil {
		return nil, nil, err
	}
	if !rejoined {
		counters.TotalMembers++
	}
	counters.ActiveMembers++

	refund := new(big.Int).Sub(payment, fee)

	if err := e.state.CoopPutMember(member); err != nil {
		return nil, nil, err
	}
	if !rejoined {
		if err := e.state.CoopAppendMemberAddress(caller); err != nil {
			return nil, nil, err
		}
	}
	if err := e.state.CoopSetCounters(counters); err != nil {
		return nil, nil, err
	}

	// The excess refund never leaves the caller's account: only the fee moves.
	callerAcc.Balance = new(big.Int).Sub(callerAcc.Balance, fee)
	treasuryAcc.Balance = new(big.Int).Add(treasuryAcc.Balance, fee)
	if err := e.persistAccount(caller, callerAcc); err != nil {
		return nil, nil, err
	}
	if err := e.persistAccount(e.moduleAddress, treasuryAcc); err != nil {
		return nil, nil, err
	}

	if err := e.appendAudit(AuditEventMemberRegistered, 0, caller, fmt.Sprintf("contribution=%s refund=%s", fee.String(), refund.String())); err != nil {
		return nil, nil, err
	}
	e.emit(events.CoopMemberRegistered{
		Address:      caller.Raw(),
		Contribution: new(big.Int).Set(fee),
		Refund:       new(big.Int).Set(refund),
		Rejoined:     rejoined,
	})
	return member.Clone(), refund, nil
}

// Exit retires the caller's membership and pays out their proportional share
// of the treasury. Members with an active loan or a pending loan proposal
// cannot leave. The record is retained with inactive status so distribution
// scans and audit history keep working.
func (e *Engine) Exit(caller crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	member, ok, err := e.state.CoopMember(caller)
	if err != nil {
		return nil, err
	}
	if !ok || member == nil {
		return nil, ErrNotMember
	}
	if member.Status != MemberStatusActive {
		return nil, ErrMemberInactive
	}
	if member.HasActiveLoan {
		return nil, ErrLoanOutstanding
	}

	counters, err := e.loadCounters()
	if err != nil {
		return nil, err
	}
	for id := uint64(1); id <= counters.LoanProposalSeq; id++ {
		proposal, ok, err := e.state.CoopLoanProposal(id)
		if err != nil {
			return nil, err
		}
		if ok && proposal != nil && proposal.Borrower.Equal(caller) && proposal.Status == ProposalStatusPending {
			return nil, ErrPendingProposal
		}
	}

	policy, err := e.policy()
	if err != nil {
		return nil, err
	}
	treasuryAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}

	// share = treasury * contribution / (fee * totalMembers)
	numerator := new(big.Int).Mul(treasuryAcc.Balance, member.ContributionAmount)
	denominator := new(big.Int).Mul(policy.MembershipContributionWei, new(big.Int).SetUint64(counters.TotalMembers))
	if denominator.Sign() == 0 {
		return nil, ErrInsufficientTreasury
	}
	share := numerator.Quo(numerator, denominator)
	if treasuryAcc.Balance.Cmp(share) < 0 {
		return nil, ErrInsufficientTreasury
	}

	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}

	member.Status = MemberStatusInactive
	member.ShareBalance = big.NewInt(0)
	counters.ActiveMembers--

	if err := e.state.CoopPutMember(member); err != nil {
		return nil, err
	}
	if err := e.state.CoopSetCounters(counters); err != nil {
		return nil, err
	}

	treasuryAcc.Balance = new(big.Int).Sub(treasuryAcc.Balance, share)
	callerAcc.Balance = new(big.Int).Add(callerAcc.Balance, share)
	if err := e.persistAccount(e.moduleAddress, treasuryAcc); err != nil {
		return nil, err
	}
	if err := e.persistAccount(caller, callerAcc); err != nil {
		return nil, err
	}

	if err := e.appendAudit(AuditEventMemberExited, 0, caller, fmt.Sprintf("share=%s", share.String())); err != nil {
		return nil, err
	}
	e.emit(events.CoopMemberExited{Address: caller.Raw(), Share: new(big.Int).Set(share)})
	return share, nil
}

// EligibleForLoan reports whether the address may open a loan proposal right
// now. The predicate mirrors the gates RequestLoan enforces.
func (e *Engine) EligibleForLoan(addr crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errStateNotConfigured
	}
	member, ok, err := e.state.CoopMember(addr)
	if err != nil {
		return false, err
	}
	if !ok || member == nil {
		return false, nil
	}
	policy, err := e.policy()
	if err != nil {
		return false, err
	}
	return loanEligibility(member, policy, e.nowUnix()) == nil, nil
}
