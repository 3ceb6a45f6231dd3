package coop

import (
	"fmt"
	"math/big"

	"saccochain/core/events"
	"saccochain/crypto"
)

// distribute splits amount evenly across the active membership, crediting
// each member's pending balance in the bucket named by category. Integer
// division decides the per-member cut; any remainder simply stays in the
// treasury. Amounts too small to yield a non-zero cut are a no-op.
func (e *Engine) distribute(amount *big.Int, category string) (*big.Int, uint64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), 0, nil
	}
	counters, err := e.loadCounters()
	if err != nil {
		return nil, 0, err
	}
	if counters.ActiveMembers == 0 {
		return big.NewInt(0), 0, nil
	}
	perMember := new(big.Int).Quo(amount, new(big.Int).SetUint64(counters.ActiveMembers))
	if perMember.Sign() == 0 {
		return big.NewInt(0), 0, nil
	}

	addresses, err := e.state.CoopMemberAddresses()
	if err != nil {
		return nil, 0, err
	}
	recipients := uint64(0)
	for _, addr := range addresses {
		member, ok, err := e.state.CoopMember(addr)
		if err != nil {
			return nil, 0, err
		}
		if !ok || member == nil || member.Status != MemberStatusActive {
			continue
		}
		rewards, err := e.loadRewards(addr)
		if err != nil {
			return nil, 0, err
		}
		switch category {
		case rewardCategoryYield:
			rewards.Yield = new(big.Int).Add(rewards.Yield, perMember)
		default:
			rewards.Interest = new(big.Int).Add(rewards.Interest, perMember)
		}
		if err := e.state.CoopPutRewards(addr, rewards); err != nil {
			return nil, 0, err
		}
		recipients++
	}
	if recipients == 0 {
		return big.NewInt(0), 0, nil
	}

	credited := new(big.Int).Mul(perMember, new(big.Int).SetUint64(recipients))
	totals, err := e.loadRewardTotals()
	if err != nil {
		return nil, 0, err
	}
	switch category {
	case rewardCategoryYield:
		totals.Yield = new(big.Int).Add(totals.Yield, credited)
	default:
		totals.Interest = new(big.Int).Add(totals.Interest, credited)
	}
	if err := e.state.CoopSetRewardTotals(totals); err != nil {
		return nil, 0, err
	}
	return perMember, recipients, nil
}

// claim zeroes the caller's pending balance in the given bucket before moving
// the funds out of the treasury, so a repeated claim observes nothing left.
func (e *Engine) claim(caller crypto.Address, category string) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller.IsZero() {
		return nil, ErrZeroAddress
	}

	rewards, err := e.loadRewards(caller)
	if err != nil {
		return nil, err
	}
	pending := rewards.Interest
	if category == rewardCategoryYield {
		pending = rewards.Yield
	}
	if pending == nil || pending.Sign() <= 0 {
		return nil, ErrNothingToClaim
	}
	amount := new(big.Int).Set(pending)

	treasuryAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if treasuryAcc.Balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientTreasury
	}
	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}
	totals, err := e.loadRewardTotals()
	if err != nil {
		return nil, err
	}

	if category == rewardCategoryYield {
		rewards.Yield = big.NewInt(0)
		totals.Yield = new(big.Int).Sub(totals.Yield, amount)
		if totals.Yield.Sign() < 0 {
			totals.Yield = big.NewInt(0)
		}
	} else {
		rewards.Interest = big.NewInt(0)
		totals.Interest = new(big.Int).Sub(totals.Interest, amount)
		if totals.Interest.Sign() < 0 {
			totals.Interest = big.NewInt(0)
		}
	}
	if err := e.state.CoopPutRewards(caller, rewards); err != nil {
		return nil, err
	}
	if err := e.state.CoopSetRewardTotals(totals); err != nil {
		return nil, err
	}

	treasuryAcc.Balance = new(big.Int).Sub(treasuryAcc.Balance, amount)
	callerAcc.Balance = new(big.Int).Add(callerAcc.Balance, amount)
	if err := e.persistAccount(e.moduleAddress, treasuryAcc); err != nil {
		return nil, err
	}
	if err := e.persistAccount(caller, callerAcc); err != nil {
		return nil, err
	}

	if err := e.appendAudit(AuditEventRewardsClaimed, 0, caller, fmt.Sprintf("category=%s amount=%s", category, amount.String())); err != nil {
		return nil, err
	}
	e.emit(events.CoopRewardsClaimed{
		Address:  caller.Raw(),
		Amount:   new(big.Int).Set(amount),
		Category: category,
	})
	return amount, nil
}

// ClaimRewards moves the caller's accrued interest share from the treasury to
// their account. Membership status does not gate the claim: a member who
// exits keeps whatever they accrued before leaving.
func (e *Engine) ClaimRewards(caller crypto.Address) (*big.Int, error) {
	return e.claim(caller, rewardCategoryInterest)
}

// ClaimYield moves the caller's accrued restaking yield share from the
// treasury to their account.
func (e *Engine) ClaimYield(caller crypto.Address) (*big.Int, error) {
	return e.claim(caller, rewardCategoryYield)
}

// ReportYield ingests realised yield from the configured strategy source (or
// an admin) into the treasury and distributes it across active members.
func (e *Engine) ReportYield(caller crypto.Address, amount *big.Int) (*big.Int, uint64, error) {
	if err := e.ready(); err != nil {
		return nil, 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, 0, ErrInvalidAmount
	}

	admin, err := e.isAdmin(caller)
	if err != nil {
		return nil, 0, err
	}
	if !admin && (e.yieldSource.IsZero() || !caller.Equal(e.yieldSource)) {
		return nil, 0, ErrNotAuthorized
	}

	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, 0, err
	}
	if callerAcc.Balance.Cmp(amount) < 0 {
		return nil, 0, ErrInsufficientBalance
	}
	treasuryAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, 0, err
	}

	callerAcc.Balance = new(big.Int).Sub(callerAcc.Balance, amount)
	treasuryAcc.Balance = new(big.Int).Add(treasuryAcc.Balance, amount)
	if err := e.persistAccount(caller, callerAcc); err != nil {
		return nil, 0, err
	}
	if err := e.persistAccount(e.moduleAddress, treasuryAcc); err != nil {
		return nil, 0, err
	}

	perMember, recipients, err := e.distribute(amount, rewardCategoryYield)
	if err != nil {
		return nil, 0, err
	}

	if err := e.appendAudit(AuditEventYieldReported, 0, caller, fmt.Sprintf("amount=%s perMember=%s", amount.String(), perMember.String())); err != nil {
		return nil, 0, err
	}
	e.emit(events.CoopYieldReported{Source: caller.Raw(), Amount: new(big.Int).Set(amount)})
	if perMember.Sign() > 0 {
		e.emit(events.CoopYieldDistributed{
			Amount:     new(big.Int).Set(amount),
			PerMember:  new(big.Int).Set(perMember),
			Recipients: recipients,
		})
	}
	return perMember, recipients, nil
}
