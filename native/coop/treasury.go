package coop

import (
	"fmt"
	"math/big"

	"saccochain/core/events"
	"saccochain/core/types"
	"saccochain/crypto"
)

// ProposeWithdrawal opens a treasury withdrawal proposal. Active members and
// admins may propose. The treasury check here is advisory: the balance is
// re-validated when the approving vote lands, since it can drift while the
// ballot is open.
func (e *Engine) ProposeWithdrawal(proposer crypto.Address, amount *big.Int, destination crypto.Address, reason string) (*TreasuryProposal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if destination.IsZero() {
		return nil, ErrZeroAddress
	}

	admin, err := e.isAdmin(proposer)
	if err != nil {
		return nil, err
	}
	if !admin {
		if _, err := e.activeMember(proposer); err != nil {
			return nil, ErrNotAuthorized
		}
	}

	treasuryAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if treasuryAcc.Balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientTreasury
	}

	policy, err := e.policy()
	if err != nil {
		return nil, err
	}
	counters, err := e.loadCounters()
	if err != nil {
		return nil, err
	}
	counters.TreasuryProposalSeq++
	now := e.nowUnix()
	proposal := &TreasuryProposal{
		ID:           counters.TreasuryProposalSeq,
		Proposer:     proposer,
		Amount:       new(big.Int).Set(amount),
		Destination:  destination,
		Reason:       reason,
		CreatedAt:    now,
		VotingEndsAt: now + policy.VotingPeriodSeconds,
		Status:       ProposalStatusPending,
	}

	if err := e.state.CoopSetCounters(counters); err != nil {
		return nil, err
	}
	if err := e.state.CoopPutTreasuryProposal(proposal); err != nil {
		return nil, err
	}

	if err := e.appendAudit(AuditEventTreasuryProposed, proposal.ID, proposer, fmt.Sprintf("amount=%s dest=%s", proposal.Amount.String(), destination.String())); err != nil {
		return nil, err
	}
	e.emit(events.CoopTreasuryProposed{
		ProposalID:   proposal.ID,
		Proposer:     proposer.Raw(),
		Amount:       new(big.Int).Set(proposal.Amount),
		Destination:  destination.Raw(),
		VotingEndsAt: proposal.VotingEndsAt,
	})
	return proposal.Clone(), nil
}

// VoteWithdrawal records a ballot on a pending withdrawal. Unlike loan votes
// there is no editing window and the proposer is not barred from voting on
// their own proposal. Reaching quorum on the "for" tally executes the
// transfer synchronously after the treasury balance is re-checked.
func (e *Engine) VoteWithdrawal(caller crypto.Address, proposalID uint64, support bool) (*TreasuryProposal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	proposal, ok, err := e.state.CoopTreasuryProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if !ok || proposal == nil {
		return nil, ErrProposalNotFound
	}
	if proposal.Status != ProposalStatusPending {
		return nil, ErrProposalNotPending
	}
	if _, err := e.activeMember(caller); err != nil {
		return nil, err
	}
	now := e.nowUnix()
	if now > proposal.VotingEndsAt {
		return nil, ErrVotingClosed
	}
	if _, voted, err := e.state.CoopVote(VoteDomainTreasury, proposalID, caller); err != nil {
		return nil, err
	} else if voted {
		return nil, ErrAlreadyVoted
	}

	policy, err := e.policy()
	if err != nil {
		return nil, err
	}
	weight, err := e.votingWeight(caller, policy)
	if err != nil {
		return nil, err
	}
	if support {
		if proposal.ForVotes, err = addTally(proposal.ForVotes, weight); err != nil {
			return nil, err
		}
	} else {
		if proposal.AgainstVotes, err = addTally(proposal.AgainstVotes, weight); err != nil {
			return nil, err
		}
	}

	var quorum uint64
	approved := false
	if support {
		denominator, err := e.quorumDenominator(policy)
		if err != nil {
			return nil, err
		}
		quorum = requiredQuorum(denominator, policy.TreasuryQuorumBps)
		approved = quorum > 0 && proposal.ForVotes >= quorum
	}

	vote := &Vote{ProposalID: proposalID, Voter: caller, Support: support, Weight: weight, Timestamp: now}

	var treasuryAcc, destinationAcc *types.Account
	if approved {
		if treasuryAcc, err = e.loadAccount(e.moduleAddress); err != nil {
			return nil, err
		}
		if treasuryAcc.Balance.Cmp(proposal.Amount) < 0 {
			return nil, ErrInsufficientTreasury
		}
		if destinationAcc, err = e.loadAccount(proposal.Destination); err != nil {
			return nil, err
		}
		proposal.Status = ProposalStatusApproved
	}

	if err := e.state.CoopPutVote(VoteDomainTreasury, vote); err != nil {
		return nil, err
	}
	if err := e.state.CoopPutTreasuryProposal(proposal); err != nil {
		return nil, err
	}
	if approved {
		treasuryAcc.Balance = new(big.Int).Sub(treasuryAcc.Balance, proposal.Amount)
		destinationAcc.Balance = new(big.Int).Add(destinationAcc.Balance, proposal.Amount)
		if err := e.persistAccount(e.moduleAddress, treasuryAcc); err != nil {
			return nil, err
		}
		if err := e.persistAccount(proposal.Destination, destinationAcc); err != nil {
			return nil, err
		}
	}

	if err := e.appendAudit(AuditEventTreasuryVote, proposalID, caller, fmt.Sprintf("support=%t weight=%d", support, weight)); err != nil {
		return nil, err
	}
	e.emit(events.CoopTreasuryVote{
		ProposalID:   proposalID,
		Voter:        caller.Raw(),
		Support:      support,
		Weight:       weight,
		ForVotes:     proposal.ForVotes,
		AgainstVotes: proposal.AgainstVotes,
	})
	if approved {
		if err := e.appendAudit(AuditEventTreasuryApproved, proposalID, caller, fmt.Sprintf("amount=%s dest=%s", proposal.Amount.String(), proposal.Destination.String())); err != nil {
			return nil, err
		}
		e.emit(events.CoopTreasuryApproved{
			ProposalID:  proposalID,
			Amount:      new(big.Int).Set(proposal.Amount),
			Destination: proposal.Destination.Raw(),
			ForVotes:    proposal.ForVotes,
			Quorum:      quorum,
		})
	}
	return proposal.Clone(), nil
}

// TreasuryBalance reports the pooled balance held at the module address.
func (e *Engine) TreasuryBalance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	account, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}
