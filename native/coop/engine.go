package coop

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"saccochain/core/events"
	"saccochain/core/types"
	"saccochain/crypto"
	nativecommon "saccochain/native/common"
)

var basisPoints = big.NewInt(10_000)

// ModuleName identifies the cooperative engine in pause toggles and module
// account derivation.
const ModuleName = "coop"

const (
	rewardCategoryInterest = "interest"
	rewardCategoryYield    = "yield"
)

// engineState is the persistence surface the engine drives. core/state.Manager
// implements it directly.
type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error

	CoopPolicy() (*Policy, bool, error)
	CoopSetPolicy(policy *Policy) error

	CoopMember(addr crypto.Address) (*Member, bool, error)
	CoopPutMember(member *Member) error
	CoopMemberAddresses() ([]crypto.Address, error)
	CoopAppendMemberAddress(addr crypto.Address) error

	CoopCounters() (*Counters, error)
	CoopSetCounters(counters *Counters) error

	CoopLoanProposal(id uint64) (*LoanProposal, bool, error)
	CoopPutLoanProposal(proposal *LoanProposal) error
	CoopTreasuryProposal(id uint64) (*TreasuryProposal, bool, error)
	CoopPutTreasuryProposal(proposal *TreasuryProposal) error
	CoopVote(domain VoteDomain, proposalID uint64, voter crypto.Address) (*Vote, bool, error)
	CoopPutVote(domain VoteDomain, vote *Vote) error

	CoopLoan(id uint64) (*Loan, bool, error)
	CoopPutLoan(loan *Loan) error
	CoopActiveLoanIDs() ([]uint64, error)
	CoopSetActiveLoanIDs(ids []uint64) error

	CoopRewards(addr crypto.Address) (*RewardBalance, error)
	CoopPutRewards(addr crypto.Address, balance *RewardBalance) error
	CoopRewardTotals() (*RewardTotals, error)
	CoopSetRewardTotals(totals *RewardTotals) error

	CoopAdmins() ([]crypto.Address, error)
	CoopSetAdmins(admins []crypto.Address) error

	CoopAppendAudit(record *AuditRecord) (uint64, error)

	IdentityVotingWeight(addr crypto.Address) (uint64, error)
}

// Engine orchestrates the cooperative's state transitions: membership, loan
// proposals and votes, the loan book, treasury governance, and reward
// settlement. Callers are expected to serialize invocations; the engine
// performs no locking of its own.
type Engine struct {
	state         engineState
	emitter       events.Emitter
	nowFn         func() time.Time
	moduleAddress crypto.Address
	yieldSource   crypto.Address
	pauses        nativecommon.PauseView
}

// NewEngine constructs a cooperative engine bound to the module treasury
// address, with default no-op dependencies.
func NewEngine(moduleAddr crypto.Address) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		emitter:       events.NoopEmitter{},
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used to stamp transitions. Nil
// restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

// SetPauses wires the runtime pause switches consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetYieldSource authorizes an additional address (the restaking strategy)
// to report yield alongside admins.
func (e *Engine) SetYieldSource(addr crypto.Address) {
	if e == nil {
		return
	}
	e.yieldSource = addr
}

// TreasuryAddress returns the module account holding the pooled funds.
func (e *Engine) TreasuryAddress() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.moduleAddress
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) nowUnix() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().UTC().Unix())
	}
	ts := e.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	return nativecommon.Guard(e.pauses, ModuleName)
}

// policy loads the stored parameters, falling back to the defaults when the
// cooperative has not been configured yet.
func (e *Engine) policy() (*Policy, error) {
	stored, ok, err := e.state.CoopPolicy()
	if err != nil {
		return nil, err
	}
	if !ok || stored == nil {
		fallback := DefaultPolicy()
		return &fallback, nil
	}
	return stored.Clone(), nil
}

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &types.Account{}
	}
	account.EnsureDefaults()
	return account, nil
}

func (e *Engine) persistAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("coop engine: account must not be nil")
	}
	account.EnsureDefaults()
	return e.state.PutAccount(addr, account)
}

func (e *Engine) loadCounters() (*Counters, error) {
	counters, err := e.state.CoopCounters()
	if err != nil {
		return nil, err
	}
	if counters == nil {
		counters = &Counters{}
	}
	return counters, nil
}

func (e *Engine) loadRewards(addr crypto.Address) (*RewardBalance, error) {
	rewards, err := e.state.CoopRewards(addr)
	if err != nil {
		return nil, err
	}
	if rewards == nil {
		rewards = &RewardBalance{}
	}
	rewards.EnsureDefaults()
	return rewards, nil
}

func (e *Engine) loadRewardTotals() (*RewardTotals, error) {
	totals, err := e.state.CoopRewardTotals()
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = &RewardTotals{}
	}
	totals.EnsureDefaults()
	return totals, nil
}

func (e *Engine) isAdmin(addr crypto.Address) (bool, error) {
	admins, err := e.state.CoopAdmins()
	if err != nil {
		return false, err
	}
	for _, admin := range admins {
		if admin.Equal(addr) {
			return true, nil
		}
	}
	return false, nil
}

// activeMember resolves the caller to an active membership record.
func (e *Engine) activeMember(addr crypto.Address) (*Member, error) {
	member, ok, err := e.state.CoopMember(addr)
	if err != nil {
		return nil, err
	}
	if !ok || member == nil {
		return nil, ErrNotMember
	}
	if member.Status != MemberStatusActive {
		return nil, ErrMemberInactive
	}
	return member, nil
}

// loanEligibility reports why a member may not borrow right now, or nil when
// every gate passes.
func loanEligibility(member *Member, policy *Policy, now uint64) error {
	if member == nil {
		return ErrNotMember
	}
	if member.Status != MemberStatusActive {
		return ErrMemberInactive
	}
	if member.HasActiveLoan {
		return ErrLoanOutstanding
	}
	if now < member.JoinedAt+policy.MinMembershipSeconds {
		return ErrMembershipTooRecent
	}
	if member.LastLoanAt != 0 && now < member.LastLoanAt+policy.CooldownSeconds {
		return ErrCooldownActive
	}
	return nil
}

// votingWeight resolves the ballot weight for a voter. Uniform tallying uses
// weight 1; weighted tallying consults the identity module and treats an
// unset multiplier as 1.
func (e *Engine) votingWeight(addr crypto.Address, policy *Policy) (uint64, error) {
	if policy == nil || !policy.WeightedVoting {
		return 1, nil
	}
	weight, err := e.state.IdentityVotingWeight(addr)
	if err != nil {
		return 0, err
	}
	if weight == 0 {
		return 1, nil
	}
	return weight, nil
}

// quorumDenominator computes the total eligible voting weight: the active
// member count under uniform tallying, or the sum of active members'
// multipliers under weighted tallying. The weighted path scans the full
// member list.
func (e *Engine) quorumDenominator(policy *Policy) (uint64, error) {
	counters, err := e.loadCounters()
	if err != nil {
		return 0, err
	}
	if policy == nil || !policy.WeightedVoting {
		return counters.ActiveMembers, nil
	}
	addrs, err := e.state.CoopMemberAddresses()
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, addr := range addrs {
		member, ok, err := e.state.CoopMember(addr)
		if err != nil {
			return 0, err
		}
		if !ok || member == nil || member.Status != MemberStatusActive {
			continue
		}
		weight, err := e.votingWeight(addr, policy)
		if err != nil {
			return 0, err
		}
		if weight > math.MaxUint64-total {
			return 0, ErrTallyOverflow
		}
		total += weight
	}
	return total, nil
}

// requiredQuorum applies ceiling division so a fractional threshold on an odd
// denominator still demands the extra ballot.
func requiredQuorum(denominator, thresholdBps uint64) uint64 {
	if denominator == 0 || thresholdBps == 0 {
		return 0
	}
	product := new(big.Int).Mul(new(big.Int).SetUint64(denominator), new(big.Int).SetUint64(thresholdBps))
	product.Add(product, new(big.Int).SetUint64(9_999))
	product.Quo(product, basisPoints)
	return product.Uint64()
}

func addTally(tally, weight uint64) (uint64, error) {
	if weight > math.MaxUint64-tally {
		return 0, ErrTallyOverflow
	}
	return tally + weight, nil
}

func (e *Engine) appendAudit(event AuditEvent, subjectID uint64, actor crypto.Address, details string) error {
	record := &AuditRecord{
		Timestamp: e.nowUnix(),
		Event:     event,
		SubjectID: subjectID,
		Actor:     actor,
		Details:   details,
	}
	_, err := e.state.CoopAppendAudit(record)
	return err
}
