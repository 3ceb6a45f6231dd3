package core

import (
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sync"
	"time"

	"saccochain/core/events"
	"saccochain/core/genesis"
	"saccochain/core/state"
	"saccochain/core/types"
	"saccochain/crypto"
	"saccochain/native/coop"
	nativecommon "saccochain/native/common"
	"saccochain/native/docs"
	"saccochain/native/identity"
	"saccochain/native/restaking"
	"saccochain/storage"
)

// Node is the central controller. It owns the ledger database, serialises
// every state transition behind a single mutex, and fans committed events out
// to stream subscribers.
type Node struct {
	db storage.Database

	stateMu sync.Mutex

	pauses      *nativecommon.PauseSet
	quotaConfig map[string]nativecommon.Quota
	quotaUsage  map[string]nativecommon.QuotaNow

	yieldSource crypto.Address
	nowFunc     func() time.Time
	docsBackup  *docs.BackupStore

	eventMu      sync.Mutex
	eventSubs    map[uint64]chan EventUpdate
	eventNextID  uint64
	eventSeq     uint64
	eventHistory []EventUpdate
}

// NewNode opens the ledger on db. A fresh database is seeded from the genesis
// file at genesisPath; when the path is empty and allowAutogenesis is set, a
// development genesis with operator as the sole admin is applied instead. For
// an already-seeded database both are ignored and only the schema version is
// checked.
func NewNode(db storage.Database, operator crypto.Address, genesisPath string, allowAutogenesis bool) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}

	applied, err := genesis.IsApplied(db)
	if err != nil {
		return nil, err
	}
	switch {
	case applied:
		if err := state.EnsureStateVersion(db, false); err != nil {
			return nil, err
		}
	case genesisPath != "":
		spec, err := genesis.LoadGenesisSpec(genesisPath)
		if err != nil {
			return nil, err
		}
		summary, err := genesis.Apply(spec, db)
		if err != nil {
			return nil, err
		}
		slog.Info("applied genesis", "admins", len(summary.Admins), "members", summary.Members, "treasury", summary.TreasuryBalance.String())
	case allowAutogenesis:
		if operator.IsZero() {
			return nil, fmt.Errorf("core: autogenesis requires an operator address")
		}
		spec := genesis.DevSpec(operator, time.Now().UTC())
		if _, err := genesis.Apply(spec, db); err != nil {
			return nil, err
		}
		slog.Warn("applied development genesis", "admin", operator.String())
	default:
		return nil, fmt.Errorf("core: database has no genesis; provide a genesis file or enable autogenesis")
	}

	return &Node{
		db:      db,
		pauses:  nativecommon.NewPauseSet(),
		nowFunc: func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetNowFunc overrides the time source used to stamp transitions. Nil
// restores the default UTC clock.
func (n *Node) SetNowFunc(now func() time.Time) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if now == nil {
		n.nowFunc = func() time.Time { return time.Now().UTC() }
		return
	}
	n.nowFunc = now
}

// SetYieldSource binds the external strategy account. It is the target of
// restaking allocations and the only non-admin address allowed to report
// yield.
func (n *Node) SetYieldSource(addr crypto.Address) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.yieldSource = addr
}

// SetDocsBackup attaches an off-ledger mirror for document registrations.
// Passing nil detaches it.
func (n *Node) SetDocsBackup(store *docs.BackupStore) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.docsBackup = store
}

// SetQuotaConfig installs per-module caller quotas enforced on every mutating
// operation. Passing an empty map disables enforcement.
func (n *Node) SetQuotaConfig(quotas map[string]nativecommon.Quota) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.quotaConfig = make(map[string]nativecommon.Quota, len(quotas))
	for module, quota := range quotas {
		n.quotaConfig[module] = quota
	}
	n.quotaUsage = make(map[string]nativecommon.QuotaNow)
}

// knownModules lists the engines whose pause switches operators may toggle.
var knownModules = map[string]bool{
	coop.ModuleName:      true,
	identity.ModuleName:  true,
	docs.ModuleName:      true,
	restaking.ModuleName: true,
}

// SetModulePaused toggles the runtime pause switch for a module.
func (n *Node) SetModulePaused(module string, paused bool) error {
	if !knownModules[module] {
		return fmt.Errorf("core: unknown module %q", module)
	}
	n.pauses.SetPaused(module, paused)
	n.publishEvent(events.ModulePauseUpdated{Module: module, Paused: paused}.Event())
	return nil
}

// PausedModules returns the modules currently paused.
func (n *Node) PausedModules() []string {
	return n.pauses.Snapshot()
}

// checkQuota debits one request (plus wei for funds-moving calls) from the
// caller's per-module allowance. Callers hold stateMu.
func (n *Node) checkQuota(module string, addr crypto.Address, addWei uint64) error {
	quota, ok := n.quotaConfig[module]
	if !ok {
		return nil
	}
	epochSeconds := quota.EpochSeconds
	if epochSeconds == 0 {
		epochSeconds = 60
	}
	nowEpoch := uint64(n.nowFunc().Unix()) / uint64(epochSeconds)
	key := module + "/" + string(addr.Bytes())
	next, err := nativecommon.CheckQuota(quota, nowEpoch, n.quotaUsage[key], 1, addWei)
	if err != nil {
		n.publishEvent(events.QuotaExceeded{Module: module, Address: addr.Raw()}.Event())
		return err
	}
	if n.quotaUsage == nil {
		n.quotaUsage = make(map[string]nativecommon.QuotaNow)
	}
	n.quotaUsage[key] = next
	return nil
}

// quotaWei converts a payment to the quota counter unit, saturating at the
// counter's range instead of failing on oversized amounts.
func quotaWei(amount *big.Int) uint64 {
	if amount == nil || amount.Sign() <= 0 {
		return 0
	}
	if !amount.IsUint64() {
		return math.MaxUint64
	}
	return amount.Uint64()
}

type coopEventEmitter struct {
	node *Node
}

type eventWithPayload interface {
	Event() *types.Event
}

func (e coopEventEmitter) Emit(evt events.Event) {
	if e.node == nil || evt == nil {
		return
	}
	payload, ok := evt.(eventWithPayload)
	if !ok {
		return
	}
	event := payload.Event()
	if event == nil {
		return
	}
	e.node.publishEvent(event)
}

func (n *Node) newCoopEngine(manager *state.Manager) *coop.Engine {
	engine := coop.NewEngine(state.ModuleAddress(coop.ModuleName))
	engine.SetState(manager)
	engine.SetEmitter(coopEventEmitter{node: n})
	engine.SetPauses(n.pauses)
	engine.SetNowFunc(n.nowFunc)
	engine.SetYieldSource(n.yieldSource)
	return engine
}

func (n *Node) newIdentityEngine(manager *state.Manager) *identity.Engine {
	engine := identity.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(coopEventEmitter{node: n})
	engine.SetPauses(n.pauses)
	return engine
}

func (n *Node) newDocsEngine(manager *state.Manager) *docs.Engine {
	engine := docs.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(coopEventEmitter{node: n})
	engine.SetPauses(n.pauses)
	engine.SetNowFunc(func() uint64 {
		ts := n.nowFunc().Unix()
		if ts < 0 {
			return 0
		}
		return uint64(ts)
	})
	return engine
}

func (n *Node) newRestakingEngine(manager *state.Manager) *restaking.Engine {
	engine := restaking.NewEngine(state.ModuleAddress(coop.ModuleName))
	engine.SetState(manager)
	engine.SetEmitter(coopEventEmitter{node: n})
	engine.SetPauses(n.pauses)
	engine.SetStrategy(n.yieldSource)
	engine.SetNowFunc(n.nowFunc)
	return engine
}

// --- Cooperative transitions ---

// CoopRegister joins caller as an active member, debiting the membership
// contribution and refunding any excess payment.
func (n *Node) CoopRegister(caller crypto.Address, payment *big.Int) (*coop.Member, *big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, quotaWei(payment)); err != nil {
		return nil, nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.Register(caller, payment)
}

// CoopExit retires caller's membership and pays out the proportional treasury
// share.
func (n *Node) CoopExit(caller crypto.Address) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, 0); err != nil {
		return nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.Exit(caller)
}

// CoopRequestLoan opens a loan proposal for borrower with terms quoted at the
// current utilization.
func (n *Node) CoopRequestLoan(borrower crypto.Address, amount *big.Int) (*coop.LoanProposal, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, borrower, 0); err != nil {
		return nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.RequestLoan(borrower, amount)
}

// CoopEditLoanProposal re-prices a proposal that is still in its editing
// window.
func (n *Node) CoopEditLoanProposal(caller crypto.Address, proposalID uint64, amount *big.Int) (*coop.LoanProposal, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, 0); err != nil {
		return nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.EditLoanProposal(caller, proposalID, amount)
}

// CoopVoteLoan casts caller's ballot on a loan proposal. When the ballot
// reaches quorum the loan is disbursed in the same call and returned.
func (n *Node) CoopVoteLoan(caller crypto.Address, proposalID uint64, support bool) (*coop.LoanProposal, *coop.Loan, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, 0); err != nil {
		return nil, nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.VoteLoan(caller, proposalID, support)
}

// CoopRepayLoan settles an active loan in full and distributes the interest
// to active members.
func (n *Node) CoopRepayLoan(caller crypto.Address, loanID uint64, payment *big.Int) (*coop.Loan, *big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, quotaWei(payment)); err != nil {
		return nil, nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.RepayLoan(caller, loanID, payment)
}

// CoopProposeWithdrawal opens a treasury withdrawal proposal.
func (n *Node) CoopProposeWithdrawal(proposer crypto.Address, amount *big.Int, destination crypto.Address, reason string) (*coop.TreasuryProposal, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, proposer, 0); err != nil {
		return nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.ProposeWithdrawal(proposer, amount, destination, reason)
}

// CoopVoteWithdrawal casts caller's ballot on a treasury proposal; quorum
// executes the withdrawal in the same call.
func (n *Node) CoopVoteWithdrawal(caller crypto.Address, proposalID uint64, support bool) (*coop.TreasuryProposal, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, 0); err != nil {
		return nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.VoteWithdrawal(caller, proposalID, support)
}

// CoopClaimRewards pays out caller's pending interest rewards.
func (n *Node) CoopClaimRewards(caller crypto.Address) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, 0); err != nil {
		return nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.ClaimRewards(caller)
}

// CoopClaimYield pays out caller's pending restaking yield.
func (n *Node) CoopClaimYield(caller crypto.Address) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, 0); err != nil {
		return nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.ClaimYield(caller)
}

// CoopReportYield credits external yield to the treasury and distributes it
// across active members.
func (n *Node) CoopReportYield(caller crypto.Address, amount *big.Int) (*big.Int, uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, quotaWei(amount)); err != nil {
		return nil, 0, err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.ReportYield(caller, amount)
}

// CoopUpdatePolicy replaces the cooperative policy. Admin only.
func (n *Node) CoopUpdatePolicy(caller crypto.Address, policy coop.Policy) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, 0); err != nil {
		return err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.UpdatePolicy(caller, policy)
}

// CoopAddAdmin grants admin rights to admin. Admin only; idempotent.
func (n *Node) CoopAddAdmin(caller, admin crypto.Address) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, 0); err != nil {
		return err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.AddAdmin(caller, admin)
}

// CoopRemoveAdmin revokes admin rights. Admin only; idempotent.
func (n *Node) CoopRemoveAdmin(caller, admin crypto.Address) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(coop.ModuleName, caller, 0); err != nil {
		return err
	}
	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.RemoveAdmin(caller, admin)
}

// --- Cooperative views ---

// CoopMember returns the membership record for addr.
func (n *Node) CoopMember(addr crypto.Address) (*coop.Member, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.Member(addr)
}

// CoopMembers returns every membership record in registration order.
func (n *Node) CoopMembers() ([]*coop.Member, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.Members()
}

// CoopLoanProposal returns a loan proposal together with its lazily derived
// phase.
func (n *Node) CoopLoanProposal(id uint64) (*coop.LoanProposal, coop.ProposalPhase, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.LoanProposal(id)
}

// CoopLoan returns a loan record.
func (n *Node) CoopLoan(id uint64) (*coop.Loan, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.Loan(id)
}

// CoopTreasuryProposal returns a treasury withdrawal proposal.
func (n *Node) CoopTreasuryProposal(id uint64) (*coop.TreasuryProposal, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.TreasuryProposal(id)
}

// CoopQuoteLoanTerms prices a prospective loan at current utilization without
// mutating state.
func (n *Node) CoopQuoteLoanTerms(amount *big.Int) (*coop.Terms, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.QuoteLoanTerms(amount)
}

// CoopPendingRewards returns addr's unclaimed reward balances.
func (n *Node) CoopPendingRewards(addr crypto.Address) (*coop.RewardBalance, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.PendingRewards(addr)
}

// CoopRewardTotals returns the outstanding reward liability totals.
func (n *Node) CoopRewardTotals() (*coop.RewardTotals, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.RewardTotals()
}

// CoopActiveLoanIDs returns the identifiers of loans currently active.
func (n *Node) CoopActiveLoanIDs() ([]uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.ActiveLoanIDs()
}

// CoopPolicy returns the effective cooperative policy.
func (n *Node) CoopPolicy() (*coop.Policy, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.Policy()
}

// CoopCounters returns the lifecycle counters.
func (n *Node) CoopCounters() (*coop.Counters, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.Counters()
}

// CoopAdmins returns the administrator set.
func (n *Node) CoopAdmins() ([]crypto.Address, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.Admins()
}

// CoopIsAdmin reports whether addr holds admin rights.
func (n *Node) CoopIsAdmin(addr crypto.Address) (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.IsAdmin(addr)
}

// CoopEligibleForLoan reports whether addr may open a loan proposal now.
func (n *Node) CoopEligibleForLoan(addr crypto.Address) (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.EligibleForLoan(addr)
}

// CoopTreasuryBalance returns the pooled treasury balance.
func (n *Node) CoopTreasuryBalance() (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newCoopEngine(manager)
	return engine.TreasuryBalance()
}

// CoopTreasuryAddress returns the module account holding the pooled funds.
func (n *Node) CoopTreasuryAddress() crypto.Address {
	return state.ModuleAddress(coop.ModuleName)
}

// CoopAuditLog returns up to limit audit records with sequence greater than
// afterSeq.
func (n *Node) CoopAuditLog(afterSeq uint64, limit int) ([]coop.AuditRecord, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return manager.CoopAuditLog(afterSeq, limit)
}

// CoopAuditHead returns the sequence of the newest audit record.
func (n *Node) CoopAuditHead() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return manager.CoopAuditHead()
}

// GetAccount returns the on-ledger wallet for addr.
func (n *Node) GetAccount(addr crypto.Address) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return manager.GetAccount(addr)
}

// --- Identity ---

// IdentitySetAlias binds alias to caller, releasing any previous alias.
func (n *Node) IdentitySetAlias(caller crypto.Address, alias string) (string, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(identity.ModuleName, caller, 0); err != nil {
		return "", err
	}
	manager := state.NewManager(n.db)
	engine := n.newIdentityEngine(manager)
	return engine.SetAlias(caller, alias)
}

// IdentityResolve returns the address bound to alias.
func (n *Node) IdentityResolve(alias string) (crypto.Address, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newIdentityEngine(manager)
	return engine.Resolve(alias)
}

// IdentityAliasOf returns the alias bound to addr, if any.
func (n *Node) IdentityAliasOf(addr crypto.Address) (string, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newIdentityEngine(manager)
	return engine.AliasOf(addr)
}

// IdentitySetVotingWeight records a voting-weight override for target. Admin
// only; weight zero clears the override.
func (n *Node) IdentitySetVotingWeight(caller, target crypto.Address, weight uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(identity.ModuleName, caller, 0); err != nil {
		return err
	}
	manager := state.NewManager(n.db)
	engine := n.newIdentityEngine(manager)
	return engine.SetVotingWeight(caller, target, weight)
}

// IdentityVotingWeight returns the effective voting weight for addr.
func (n *Node) IdentityVotingWeight(addr crypto.Address) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newIdentityEngine(manager)
	return engine.VotingWeight(addr)
}

// --- Documents ---

// DocsRegister anchors a document hash against an entity. When a backup
// store is attached the record is mirrored to it; a mirror failure is logged
// and does not fail the registration.
func (n *Node) DocsRegister(caller crypto.Address, entityID, category string, hash [32]byte) (*docs.Record, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(docs.ModuleName, caller, 0); err != nil {
		return nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newDocsEngine(manager)
	record, err := engine.Register(caller, entityID, category, hash)
	if err != nil {
		return nil, err
	}
	if n.docsBackup != nil {
		if err := n.docsBackup.Mirror(*record); err != nil {
			slog.Warn("docs backup mirror failed", "entity", record.EntityID, "error", err)
		}
	}
	return record, nil
}

// DocsLookup returns the registrations recorded for an entity.
func (n *Node) DocsLookup(entityID string) ([]docs.Record, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newDocsEngine(manager)
	return engine.Lookup(entityID)
}

// --- Restaking ---

// RestakingAllocate moves treasury funds to the strategy account. Admin only.
func (n *Node) RestakingAllocate(caller crypto.Address, amount *big.Int) (*restaking.Position, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(restaking.ModuleName, caller, quotaWei(amount)); err != nil {
		return nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newRestakingEngine(manager)
	return engine.Allocate(caller, amount)
}

// RestakingRecall pulls funds back from the strategy account into the
// treasury. Admin only.
func (n *Node) RestakingRecall(caller crypto.Address, amount *big.Int) (*restaking.Position, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(restaking.ModuleName, caller, quotaWei(amount)); err != nil {
		return nil, err
	}
	manager := state.NewManager(n.db)
	engine := n.newRestakingEngine(manager)
	return engine.Recall(caller, amount)
}

// RestakingReportYield settles a strategy yield report in one transition:
// the cooperative distributes the amount to members, then the restaking
// position is annotated with the report. Returns the updated position and
// the per-member payout.
func (n *Node) RestakingReportYield(caller crypto.Address, amount *big.Int) (*restaking.Position, *big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.checkQuota(restaking.ModuleName, caller, quotaWei(amount)); err != nil {
		return nil, nil, err
	}
	if err := nativecommon.Guard(n.pauses, restaking.ModuleName); err != nil {
		return nil, nil, err
	}
	manager := state.NewManager(n.db)
	perMember, _, err := n.newCoopEngine(manager).ReportYield(caller, amount)
	if err != nil {
		return nil, nil, err
	}
	position, err := n.newRestakingEngine(manager).NoteYield(caller, amount)
	if err != nil {
		return nil, nil, err
	}
	return position, perMember, nil
}

// RestakingPosition returns the current allocation record.
func (n *Node) RestakingPosition() (*restaking.Position, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	engine := n.newRestakingEngine(manager)
	return engine.Position()
}
