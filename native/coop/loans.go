package coop

import (
	"fmt"
	"math/big"

	"saccochain/core/events"
	"saccochain/crypto"
)

// RequestLoan opens a loan proposal for an eligible borrower. Terms are
// quoted against the current treasury balance; the editing window and the
// voting deadline are fixed at creation. A borrower can only have one pending
// proposal at a time.
func (e *Engine) RequestLoan(borrower crypto.Address, amount *big.Int) (*LoanProposal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	policy, err := e.policy()
	if err != nil {
		return nil, err
	}
	member, ok, err := e.state.CoopMember(borrower)
	if err != nil {
		return nil, err
	}
	if !ok || member == nil {
		return nil, ErrNotMember
	}
	now := e.nowUnix()
	if err := loanEligibility(member, policy, now); err != nil {
		return nil, err
	}

	counters, err := e.loadCounters()
	if err != nil {
		return nil, err
	}
	for id := uint64(1); id <= counters.LoanProposalSeq; id++ {
		existing, ok, err := e.state.CoopLoanProposal(id)
		if err != nil {
			return nil, err
		}
		if ok && existing != nil && existing.Borrower.Equal(borrower) && existing.Status == ProposalStatusPending {
			return nil, ErrPendingProposal
		}
	}

	treasuryAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	terms, err := CalculateTerms(amount, treasuryAcc.Balance, *policy)
	if err != nil {
		return nil, err
	}

	counters.LoanProposalSeq++
	editingEndsAt := now + policy.EditingPeriodSeconds
	proposal := &LoanProposal{
		ID:              counters.LoanProposalSeq,
		Borrower:        borrower,
		Amount:          terms.Amount,
		InterestRateBps: terms.InterestRateBps,
		DurationSeconds: terms.DurationSeconds,
		TotalRepayment:  terms.TotalRepayment,
		CreatedAt:       now,
		EditingEndsAt:   editingEndsAt,
		VotingEndsAt:    editingEndsAt + policy.VotingPeriodSeconds,
		Status:          ProposalStatusPending,
	}

	if err := e.state.CoopSetCounters(counters); err != nil {
		return nil, err
	}
	if err := e.state.CoopPutLoanProposal(proposal); err != nil {
		return nil, err
	}

	if err := e.appendAudit(AuditEventLoanProposed, proposal.ID, borrower, fmt.Sprintf("amount=%s rate=%d", proposal.Amount.String(), proposal.InterestRateBps)); err != nil {
		return nil, err
	}
	e.emit(events.CoopLoanProposed{
		ProposalID:      proposal.ID,
		Borrower:        borrower.Raw(),
		Amount:          new(big.Int).Set(proposal.Amount),
		InterestRateBps: proposal.InterestRateBps,
		TotalRepayment:  new(big.Int).Set(proposal.TotalRepayment),
		EditingEndsAt:   proposal.EditingEndsAt,
		VotingEndsAt:    proposal.VotingEndsAt,
	})
	return proposal.Clone(), nil
}

// EditLoanProposal re-prices a pending proposal while the editing window is
// open. Only the borrower may edit, and no ballots can exist yet because
// voting is barred until the window elapses.
func (e *Engine) EditLoanProposal(caller crypto.Address, proposalID uint64, amount *big.Int) (*LoanProposal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	proposal, ok, err := e.state.CoopLoanProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if !ok || proposal == nil {
		return nil, ErrProposalNotFound
	}
	if proposal.Status != ProposalStatusPending {
		return nil, ErrProposalNotPending
	}
	if !proposal.Borrower.Equal(caller) {
		return nil, ErrNotBorrower
	}
	if proposal.Phase(e.nowUnix()) != ProposalPhaseEditing {
		return nil, ErrEditingClosed
	}

	policy, err := e.policy()
	if err != nil {
		return nil, err
	}
	treasuryAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	terms, err := CalculateTerms(amount, treasuryAcc.Balance, *policy)
	if err != nil {
		return nil, err
	}

	proposal.Amount = terms.Amount
	proposal.InterestRateBps = terms.InterestRateBps
	proposal.DurationSeconds = terms.DurationSeconds
	proposal.TotalRepayment = terms.TotalRepayment

	if err := e.state.CoopPutLoanProposal(proposal); err != nil {
		return nil, err
	}

	if err := e.appendAudit(AuditEventLoanEdited, proposal.ID, caller, fmt.Sprintf("amount=%s rate=%d", proposal.Amount.String(), proposal.InterestRateBps)); err != nil {
		return nil, err
	}
	e.emit(events.CoopLoanEdited{
		ProposalID:      proposal.ID,
		Borrower:        proposal.Borrower.Raw(),
		Amount:          new(big.Int).Set(proposal.Amount),
		InterestRateBps: proposal.InterestRateBps,
		TotalRepayment:  new(big.Int).Set(proposal.TotalRepayment),
	})
	return proposal.Clone(), nil
}

// VoteLoan records a ballot on a pending proposal once the voting window is
// open. The moment the weighted "for" tally reaches quorum the proposal is
// approved and the loan disburses synchronously inside the same call; if the
// treasury cannot cover the disbursement the entire vote fails and no state
// is written. The disbursed loan is returned when approval fired.
func (e *Engine) VoteLoan(caller crypto.Address, proposalID uint64, support bool) (*LoanProposal, *Loan, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}

	proposal, ok, err := e.state.CoopLoanProposal(proposalID)
	if err != nil {
		return nil, nil, err
	}
	if !ok || proposal == nil {
		return nil, nil, ErrProposalNotFound
	}
	if proposal.Status != ProposalStatusPending {
		return nil, nil, ErrProposalNotPending
	}
	if proposal.Borrower.Equal(caller) {
		return nil, nil, ErrBorrowerCannotVote
	}
	if _, err := e.activeMember(caller); err != nil {
		return nil, nil, err
	}

	now := e.nowUnix()
	if proposal.Phase(now) == ProposalPhaseEditing {
		return nil, nil, ErrVotingNotStarted
	}
	if now > proposal.VotingEndsAt {
		return nil, nil, ErrVotingClosed
	}
	if _, voted, err := e.state.CoopVote(VoteDomainLoan, proposalID, caller); err != nil {
		return nil, nil, err
	} else if voted {
		return nil, nil, ErrAlreadyVoted
	}

	policy, err := e.policy()
	if err != nil {
		return nil, nil, err
	}
	weight, err := e.votingWeight(caller, policy)
	if err != nil {
		return nil, nil, err
	}
	if support {
		if proposal.ForVotes, err = addTally(proposal.ForVotes, weight); err != nil {
			return nil, nil, err
		}
	} else {
		if proposal.AgainstVotes, err = addTally(proposal.AgainstVotes, weight); err != nil {
			return nil, nil, err
		}
	}

	var quorum uint64
	approved := false
	if support {
		denominator, err := e.quorumDenominator(policy)
		if err != nil {
			return nil, nil, err
		}
		quorum = requiredQuorum(denominator, policy.LoanQuorumBps)
		approved = quorum > 0 && proposal.ForVotes >= quorum
	}

	vote := &Vote{ProposalID: proposalID, Voter: caller, Support: support, Weight: weight, Timestamp: now}

	var loan *Loan
	if approved {
		loan, err = e.disburse(proposal, vote, now)
		if err != nil {
			return nil, nil, err
		}
	} else {
		if err := e.state.CoopPutVote(VoteDomainLoan, vote); err != nil {
			return nil, nil, err
		}
		if err := e.state.CoopPutLoanProposal(proposal); err != nil {
			return nil, nil, err
		}
	}

	if err := e.appendAudit(AuditEventLoanVote, proposalID, caller, fmt.Sprintf("support=%t weight=%d", support, weight)); err != nil {
		return nil, nil, err
	}
	e.emit(events.CoopLoanVote{
		ProposalID:   proposalID,
		Voter:        caller.Raw(),
		Support:      support,
		Weight:       weight,
		ForVotes:     proposal.ForVotes,
		AgainstVotes: proposal.AgainstVotes,
	})
	if approved {
		if err := e.appendAudit(AuditEventLoanApproved, proposalID, caller, fmt.Sprintf("for=%d quorum=%d", proposal.ForVotes, quorum)); err != nil {
			return nil, nil, err
		}
		if err := e.appendAudit(AuditEventLoanDisbursed, loan.ID, proposal.Borrower, fmt.Sprintf("principal=%s", loan.Principal.String())); err != nil {
			return nil, nil, err
		}
		e.emit(events.CoopLoanApproved{ProposalID: proposalID, ForVotes: proposal.ForVotes, Quorum: quorum})
		e.emit(events.CoopLoanDisbursed{
			LoanID:     loan.ID,
			ProposalID: proposalID,
			Borrower:   proposal.Borrower.Raw(),
			Principal:  new(big.Int).Set(loan.Principal),
			DueAt:      loan.DueAt,
		})
	}
	return proposal.Clone(), loan.Clone(), nil
}

// disburse settles an approved proposal: it validates the treasury can cover
// the principal, creates the loan under a fresh identifier, flags the
// borrower, and moves the funds. All validation happens before the first
// write so a failure leaves no partial state.
func (e *Engine) disburse(proposal *LoanProposal, vote *Vote, now uint64) (*Loan, error) {
	borrowerMember, ok, err := e.state.CoopMember(proposal.Borrower)
	if err != nil {
		return nil, err
	}
	if !ok || borrowerMember == nil {
		return nil, ErrNotMember
	}
	treasuryAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if treasuryAcc.Balance.Cmp(proposal.Amount) < 0 {
		return nil, ErrInsufficientTreasuryForLoan
	}
	borrowerAcc, err := e.loadAccount(proposal.Borrower)
	if err != nil {
		return nil, err
	}
	counters, err := e.loadCounters()
	if err != nil {
		return nil, err
	}
	activeIDs, err := e.state.CoopActiveLoanIDs()
	if err != nil {
		return nil, err
	}

	counters.LoanSeq++
	loan := &Loan{
		ID:              counters.LoanSeq,
		ProposalID:      proposal.ID,
		Borrower:        proposal.Borrower,
		Principal:       new(big.Int).Set(proposal.Amount),
		InterestRateBps: proposal.InterestRateBps,
		TotalRepayment:  new(big.Int).Set(proposal.TotalRepayment),
		StartedAt:       now,
		DueAt:           now + proposal.DurationSeconds,
		Status:          LoanStatusActive,
		AmountRepaid:    big.NewInt(0),
	}
	proposal.Status = ProposalStatusApproved
	borrowerMember.HasActiveLoan = true
	borrowerMember.LastLoanAt = now
	activeIDs = append(activeIDs, loan.ID)

	if err := e.state.CoopPutVote(VoteDomainLoan, vote); err != nil {
		return nil, err
	}
	if err := e.state.CoopPutLoanProposal(proposal); err != nil {
		return nil, err
	}
	if err := e.state.CoopPutLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.CoopSetCounters(counters); err != nil {
		return nil, err
	}
	if err := e.state.CoopPutMember(borrowerMember); err != nil {
		return nil, err
	}
	if err := e.state.CoopSetActiveLoanIDs(activeIDs); err != nil {
		return nil, err
	}

	treasuryAcc.Balance = new(big.Int).Sub(treasuryAcc.Balance, proposal.Amount)
	borrowerAcc.Balance = new(big.Int).Add(borrowerAcc.Balance, proposal.Amount)
	if err := e.persistAccount(e.moduleAddress, treasuryAcc); err != nil {
		return nil, err
	}
	if err := e.persistAccount(proposal.Borrower, borrowerAcc); err != nil {
		return nil, err
	}
	return loan, nil
}

// RepayLoan settles an active loan in full. Partial repayment is not
// supported: the payment must equal the quoted total exactly. The interest
// component is distributed to active members' pending reward balances in the
// same call.
func (e *Engine) RepayLoan(caller crypto.Address, loanID uint64, payment *big.Int) (*Loan, *big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}

	loan, ok, err := e.state.CoopLoan(loanID)
	if err != nil {
		return nil, nil, err
	}
	if !ok || loan == nil {
		return nil, nil, ErrLoanNotFound
	}
	if !loan.Borrower.Equal(caller) {
		return nil, nil, ErrNotBorrower
	}
	if loan.Status != LoanStatusActive {
		return nil, nil, ErrLoanNotActive
	}
	if payment == nil || payment.Cmp(loan.TotalRepayment) != 0 {
		return nil, nil, ErrRepaymentMismatch
	}

	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, nil, err
	}
	if callerAcc.Balance.Cmp(payment) < 0 {
		return nil, nil, ErrInsufficientBalance
	}
	member, ok, err := e.state.CoopMember(caller)
	if err != nil {
		return nil, nil, err
	}
	if !ok || member == nil {
		return nil, nil, ErrNotMember
	}
	treasuryAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, nil, err
	}
	activeIDs, err := e.state.CoopActiveLoanIDs()
	if err != nil {
		return nil, nil, err
	}

	loan.Status = LoanStatusRepaid
	loan.AmountRepaid = new(big.Int).Set(payment)
	member.HasActiveLoan = false
	for i, id := range activeIDs {
		if id == loanID {
			activeIDs[i] = activeIDs[len(activeIDs)-1]
			activeIDs = activeIDs[:len(activeIDs)-1]
			break
		}
	}

	if err := e.state.CoopPutLoan(loan); err != nil {
		return nil, nil, err
	}
	if err := e.state.CoopPutMember(member); err != nil {
		return nil, nil, err
	}
	if err := e.state.CoopSetActiveLoanIDs(activeIDs); err != nil {
		return nil, nil, err
	}

	callerAcc.Balance = new(big.Int).Sub(callerAcc.Balance, payment)
	treasuryAcc.Balance = new(big.Int).Add(treasuryAcc.Balance, payment)
	if err := e.persistAccount(caller, callerAcc); err != nil {
		return nil, nil, err
	}
	if err := e.persistAccount(e.moduleAddress, treasuryAcc); err != nil {
		return nil, nil, err
	}

	interest := new(big.Int).Sub(loan.TotalRepayment, loan.Principal)
	perMember, recipients, err := e.distribute(interest, rewardCategoryInterest)
	if err != nil {
		return nil, nil, err
	}

	if err := e.appendAudit(AuditEventLoanRepaid, loan.ID, caller, fmt.Sprintf("amount=%s interest=%s", payment.String(), interest.String())); err != nil {
		return nil, nil, err
	}
	e.emit(events.CoopLoanRepaid{
		LoanID:   loan.ID,
		Borrower: caller.Raw(),
		Amount:   new(big.Int).Set(payment),
		Interest: new(big.Int).Set(interest),
	})
	if perMember.Sign() > 0 {
		e.emit(events.CoopInterestDistributed{
			Amount:     new(big.Int).Set(interest),
			PerMember:  perMember,
			Recipients: recipients,
		})
	}
	return loan.Clone(), interest, nil
}
