package core

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"saccochain/core/events"
	"saccochain/core/genesis"
	"saccochain/crypto"
	"saccochain/native/coop"
	nativecommon "saccochain/native/common"
	"saccochain/native/docs"
	"saccochain/native/identity"
	"saccochain/native/restaking"
	"saccochain/storage"
)

const testGenesisTime = "2024-01-01T00:00:00Z"

func nodeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(raw)
}

type nodeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *nodeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *nodeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// nodeGenesisSpec funds the given accounts with 10_000 each and installs a
// small-number policy so test arithmetic stays readable.
func nodeGenesisSpec(admin crypto.Address, funded ...crypto.Address) *genesis.GenesisSpec {
	alloc := make(map[string]string, len(funded))
	for _, addr := range funded {
		alloc[addr.String()] = "10000"
	}
	return &genesis.GenesisSpec{
		GenesisTime: testGenesisTime,
		Policy:      &genesis.PolicySpec{MembershipContributionWei: "100"},
		Admins:      []string{admin.String()},
		Alloc:       alloc,
	}
}

func writeGenesisFile(t *testing.T, spec *genesis.GenesisSpec) string {
	t.Helper()
	raw, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		t.Fatalf("marshal genesis: %v", err)
	}
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	return path
}

func newTestNode(t *testing.T, admin crypto.Address, funded ...crypto.Address) (*Node, storage.Database, *nodeClock) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	if _, err := genesis.Apply(nodeGenesisSpec(admin, funded...), db); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	node, err := NewNode(db, admin, "", false)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clock := &nodeClock{now: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	node.SetNowFunc(clock.Now)
	return node, db, clock
}

func registerNodeMembers(t *testing.T, node *Node, suffixes ...byte) []crypto.Address {
	t.Helper()
	members := make([]crypto.Address, 0, len(suffixes))
	for _, suffix := range suffixes {
		addr := nodeAddress(suffix)
		if _, _, err := node.CoopRegister(addr, big.NewInt(100)); err != nil {
			t.Fatalf("register member %d: %v", suffix, err)
		}
		members = append(members, addr)
	}
	return members
}

func TestNewNodeRequiresGenesis(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)

	if _, err := NewNode(db, nodeAddress(1), "", false); err == nil {
		t.Fatal("expected error when no genesis is available")
	}

	operator := nodeAddress(1)
	node, err := NewNode(db, operator, "", true)
	if err != nil {
		t.Fatalf("autogenesis: %v", err)
	}
	ok, err := node.CoopIsAdmin(operator)
	if err != nil {
		t.Fatalf("is admin: %v", err)
	}
	if !ok {
		t.Fatal("operator should be admin after autogenesis")
	}

	// Reopening the same database must not reapply genesis.
	if _, err := NewNode(db, nodeAddress(2), "", false); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	admins, err := node.CoopAdmins()
	if err != nil {
		t.Fatalf("admins: %v", err)
	}
	if len(admins) != 1 || !admins[0].Equal(operator) {
		t.Fatalf("unexpected admin set %v", admins)
	}
}

func TestNewNodeLoadsGenesisFile(t *testing.T) {
	admin := nodeAddress(1)
	member := nodeAddress(2)
	path := writeGenesisFile(t, nodeGenesisSpec(admin, member))

	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := NewNode(db, crypto.Address{}, path, false)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	policy, err := node.CoopPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if policy.MembershipContributionWei.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected contribution %s", policy.MembershipContributionWei)
	}
	account, err := node.GetAccount(member)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.Balance.Cmp(big.NewInt(10000)) != 0 {
		t.Fatalf("unexpected funded balance %s", account.Balance)
	}
}

func TestNodeLoanLifecycle(t *testing.T) {
	admin := nodeAddress(0xAA)
	borrower := nodeAddress(1)
	voterA := nodeAddress(2)
	voterB := nodeAddress(3)
	node, db, clock := newTestNode(t, admin, borrower, voterA, voterB)

	member, refund, err := node.CoopRegister(borrower, big.NewInt(150))
	if err != nil {
		t.Fatalf("register borrower: %v", err)
	}
	if refund.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected refund 50, got %s", refund)
	}
	if member.ContributionAmount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected contribution 100, got %s", member.ContributionAmount)
	}
	registerNodeMembers(t, node, 2, 3)

	// Season the memberships past the minimum duration.
	clock.Advance(31 * 24 * time.Hour)

	proposal, err := node.CoopRequestLoan(borrower, big.NewInt(90))
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}

	// Editing must close before ballots open.
	clock.Advance(4 * 24 * time.Hour)

	if _, _, err := node.CoopVoteLoan(borrower, proposal.ID, true); !errors.Is(err, coop.ErrBorrowerCannotVote) {
		t.Fatalf("expected borrower rejection, got %v", err)
	}
	if _, loan, err := node.CoopVoteLoan(voterA, proposal.ID, true); err != nil || loan != nil {
		t.Fatalf("first vote: loan=%v err=%v", loan, err)
	}
	_, loan, err := node.CoopVoteLoan(voterB, proposal.ID, true)
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if loan == nil {
		t.Fatal("quorum vote should disburse the loan")
	}
	if loan.Principal.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("unexpected principal %s", loan.Principal)
	}

	borrowerAcc, err := node.GetAccount(borrower)
	if err != nil {
		t.Fatalf("borrower account: %v", err)
	}
	// 10_000 funded - 100 contribution + 90 principal.
	if borrowerAcc.Balance.Cmp(big.NewInt(9990)) != 0 {
		t.Fatalf("unexpected borrower balance %s", borrowerAcc.Balance)
	}

	repaid, perMember, err := node.CoopRepayLoan(borrower, loan.ID, new(big.Int).Set(loan.TotalRepayment))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid.Status != coop.LoanStatusRepaid {
		t.Fatalf("unexpected loan status %v", repaid.Status)
	}
	interest := new(big.Int).Sub(loan.TotalRepayment, loan.Principal)
	expectedPerMember := new(big.Int).Div(interest, big.NewInt(3))
	if perMember.Cmp(expectedPerMember) != 0 {
		t.Fatalf("expected per-member %s, got %s", expectedPerMember, perMember)
	}

	ids, err := node.CoopActiveLoanIDs()
	if err != nil {
		t.Fatalf("active loans: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no active loans, got %v", ids)
	}

	// State must survive a node restart over the same database.
	reopened, err := NewNode(db, admin, "", false)
	if err != nil {
		t.Fatalf("reopen node: %v", err)
	}
	storedLoan, err := reopened.CoopLoan(loan.ID)
	if err != nil {
		t.Fatalf("loan after reopen: %v", err)
	}
	if storedLoan.Status != coop.LoanStatusRepaid {
		t.Fatalf("loan status lost across restart: %v", storedLoan.Status)
	}
	storedMember, err := reopened.CoopMember(borrower)
	if err != nil {
		t.Fatalf("member after reopen: %v", err)
	}
	if storedMember.HasActiveLoan {
		t.Fatal("repaid borrower should not be flagged with an active loan")
	}
}

func TestNodeQuotaEnforcement(t *testing.T) {
	admin := nodeAddress(0xAA)
	caller := nodeAddress(1)
	node, _, clock := newTestNode(t, admin, caller)

	node.SetQuotaConfig(map[string]nativecommon.Quota{
		coop.ModuleName: {MaxRequestsPerMin: 2, EpochSeconds: 60},
	})

	for i := 0; i < 2; i++ {
		if _, err := node.CoopClaimRewards(caller); !errors.Is(err, coop.ErrNothingToClaim) {
			t.Fatalf("claim %d: expected ErrNothingToClaim, got %v", i, err)
		}
	}
	if _, err := node.CoopClaimRewards(caller); !errors.Is(err, nativecommon.ErrQuotaRequestsExceeded) {
		t.Fatalf("expected quota rejection, got %v", err)
	}

	// A new epoch refreshes the allowance.
	clock.Advance(time.Minute)
	if _, err := node.CoopClaimRewards(caller); !errors.Is(err, coop.ErrNothingToClaim) {
		t.Fatalf("expected business error after epoch reset, got %v", err)
	}
}

func TestNodePauseToggles(t *testing.T) {
	admin := nodeAddress(0xAA)
	caller := nodeAddress(1)
	node, _, _ := newTestNode(t, admin, caller)

	if err := node.SetModulePaused("lottery", true); err == nil {
		t.Fatal("expected unknown module rejection")
	}
	if err := node.SetModulePaused(coop.ModuleName, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, _, err := node.CoopRegister(caller, big.NewInt(100)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected pause rejection, got %v", err)
	}
	paused := node.PausedModules()
	if len(paused) != 1 || paused[0] != coop.ModuleName {
		t.Fatalf("unexpected paused set %v", paused)
	}
	if err := node.SetModulePaused(coop.ModuleName, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, _, err := node.CoopRegister(caller, big.NewInt(100)); err != nil {
		t.Fatalf("register after unpause: %v", err)
	}
}

func TestNodeEventStream(t *testing.T) {
	admin := nodeAddress(0xAA)
	caller := nodeAddress(1)
	node, _, _ := newTestNode(t, admin, caller)

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	updates, cancel, backlog, err := node.SubscribeEvents(ctx, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	if len(backlog) != 0 {
		t.Fatalf("expected empty backlog, got %d entries", len(backlog))
	}

	if _, _, err := node.CoopRegister(caller, big.NewInt(100)); err != nil {
		t.Fatalf("register: %v", err)
	}

	select {
	case update := <-updates:
		if update.Event.Type != events.TypeCoopMemberRegistered {
			t.Fatalf("unexpected event type %q", update.Event.Type)
		}
		if update.Sequence == 0 || update.Cursor == "" {
			t.Fatalf("missing stream cursor: %+v", update)
		}

		// Resuming from the cursor must skip the delivered event.
		_, cancelSecond, replay, err := node.SubscribeEvents(context.Background(), update.Cursor)
		if err != nil {
			t.Fatalf("resubscribe: %v", err)
		}
		defer cancelSecond()
		for _, entry := range replay {
			if entry.Sequence <= update.Sequence {
				t.Fatalf("cursor resume replayed sequence %d", entry.Sequence)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream event")
	}

	// Backlog replay delivers the event to late subscribers.
	_, cancelLate, late, err := node.SubscribeEvents(context.Background(), "")
	if err != nil {
		t.Fatalf("late subscribe: %v", err)
	}
	defer cancelLate()
	if len(late) == 0 || late[0].Event.Type != events.TypeCoopMemberRegistered {
		t.Fatalf("unexpected late backlog %+v", late)
	}

	if _, _, _, err := node.SubscribeEvents(context.Background(), "not-a-sequence"); err == nil {
		t.Fatal("expected malformed cursor rejection")
	}
}

func TestNodeIdentityAliasLifecycle(t *testing.T) {
	admin := nodeAddress(0xAA)
	member := nodeAddress(1)
	other := nodeAddress(2)
	node, _, _ := newTestNode(t, admin, member, other)

	normalized, err := node.IdentitySetAlias(member, "FrankRocks")
	if err != nil {
		t.Fatalf("set alias: %v", err)
	}
	if normalized != "frankrocks" {
		t.Fatalf("unexpected normalized alias %q", normalized)
	}
	owner, found, err := node.IdentityResolve("frankrocks")
	if err != nil || !found {
		t.Fatalf("resolve: found=%v err=%v", found, err)
	}
	if !owner.Equal(member) {
		t.Fatalf("alias resolves to %s", owner)
	}

	if _, err := node.IdentitySetAlias(other, "frankrocks"); !errors.Is(err, identity.ErrAliasTaken) {
		t.Fatalf("expected alias-taken rejection, got %v", err)
	}

	if err := node.IdentitySetVotingWeight(member, member, 3); err == nil {
		t.Fatal("non-admin weight update should fail")
	}
	if err := node.IdentitySetVotingWeight(admin, member, 3); err != nil {
		t.Fatalf("set weight: %v", err)
	}
	weight, err := node.IdentityVotingWeight(member)
	if err != nil {
		t.Fatalf("voting weight: %v", err)
	}
	if weight != 3 {
		t.Fatalf("expected weight 3, got %d", weight)
	}
}

func TestNodeDocsRegistration(t *testing.T) {
	admin := nodeAddress(1)
	member := nodeAddress(2)
	node, _, _ := newTestNode(t, admin, member)
	registerNodeMembers(t, node, 2)

	backupPath := filepath.Join(t.TempDir(), "docs.db")
	backup, err := docs.OpenBackup(backupPath, nil)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	t.Cleanup(func() { _ = backup.Close() })
	node.SetDocsBackup(backup)

	hash := docs.Checksum([]byte("loan agreement"))
	record, err := node.DocsRegister(member, "loan/1", "agreement", hash)
	if err != nil {
		t.Fatalf("register document: %v", err)
	}
	if !record.Actor.Equal(member) {
		t.Fatalf("unexpected actor %s", record.Actor)
	}

	if _, err := node.DocsRegister(member, "loan/1", "agreement", hash); !errors.Is(err, docs.ErrDuplicateDocument) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	records, err := node.DocsLookup("loan/1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(records) != 1 || records[0].Hash != hash {
		t.Fatalf("unexpected records %+v", records)
	}

	mirrored, err := backup.Records("loan/1")
	if err != nil {
		t.Fatalf("backup records: %v", err)
	}
	if len(mirrored) != 1 || mirrored[0].Hash != hash {
		t.Fatalf("backup missed the registration: %+v", mirrored)
	}
}

func TestNodeRestakingLifecycle(t *testing.T) {
	admin := nodeAddress(1)
	strategy := nodeAddress(9)
	node, _, _ := newTestNode(t, admin, nodeAddress(2), nodeAddress(3), nodeAddress(4))
	members := registerNodeMembers(t, node, 2, 3, 4)
	node.SetYieldSource(strategy)

	// Treasury holds the three contributions.
	treasury, err := node.CoopTreasuryBalance()
	if err != nil {
		t.Fatalf("treasury: %v", err)
	}
	if treasury.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("unexpected treasury %s", treasury)
	}

	if _, err := node.RestakingAllocate(members[0], big.NewInt(120)); !errors.Is(err, restaking.ErrNotAuthorized) {
		t.Fatalf("expected admin gate, got %v", err)
	}
	position, err := node.RestakingAllocate(admin, big.NewInt(120))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if position.Allocated.Cmp(big.NewInt(120)) != 0 {
		t.Fatalf("unexpected allocation %s", position.Allocated)
	}
	treasury, _ = node.CoopTreasuryBalance()
	if treasury.Cmp(big.NewInt(180)) != 0 {
		t.Fatalf("treasury after allocate %s", treasury)
	}

	position, err = node.RestakingRecall(admin, big.NewInt(20))
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if position.Allocated.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("allocation after recall %s", position.Allocated)
	}

	// The strategy account reports 30 of yield out of its allocated funds.
	position, perMember, err := node.RestakingReportYield(strategy, big.NewInt(30))
	if err != nil {
		t.Fatalf("report yield: %v", err)
	}
	if perMember.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected per-member payout %s", perMember)
	}
	if position.YieldReported.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("unexpected yield total %s", position.YieldReported)
	}
	pending, err := node.CoopPendingRewards(members[1])
	if err != nil {
		t.Fatalf("pending rewards: %v", err)
	}
	if pending.Yield.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected pending yield %s", pending.Yield)
	}

	// Pausing restaking blocks the combined report before any funds move.
	if err := node.SetModulePaused(restaking.ModuleName, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, _, err := node.RestakingReportYield(strategy, big.NewInt(10)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected pause rejection, got %v", err)
	}
	if err := node.SetModulePaused(restaking.ModuleName, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}

	position, err = node.RestakingPosition()
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if position.YieldReported.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("yield total changed while paused: %s", position.YieldReported)
	}
}
