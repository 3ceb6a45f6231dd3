package state

import (
	"math/big"
	"testing"

	"saccochain/crypto"
	"saccochain/native/coop"
)

func TestCoopMemberRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	addr := testAddress(0x11)
	if _, ok, err := mgr.CoopMember(addr); err != nil || ok {
		t.Fatalf("expected absent member, got ok=%t err=%v", ok, err)
	}

	member := &coop.Member{
		Address:            addr,
		Status:             coop.MemberStatusActive,
		JoinedAt:           1_700_000_000,
		ContributionAmount: big.NewInt(100),
		ShareBalance:       big.NewInt(100),
		HasActiveLoan:      true,
		LastLoanAt:         1_700_000_500,
	}
	if err := mgr.CoopPutMember(member); err != nil {
		t.Fatalf("put member: %v", err)
	}

	got, ok, err := mgr.CoopMember(addr)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if !ok {
		t.Fatalf("expected member present")
	}
	if !got.Address.Equal(addr) {
		t.Fatalf("unexpected address %s", got.Address)
	}
	if got.Status != coop.MemberStatusActive {
		t.Fatalf("unexpected status %v", got.Status)
	}
	if got.JoinedAt != member.JoinedAt || got.LastLoanAt != member.LastLoanAt {
		t.Fatalf("timestamps lost: %+v", got)
	}
	if got.ContributionAmount.Cmp(big.NewInt(100)) != 0 || got.ShareBalance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("amounts lost: %+v", got)
	}
	if !got.HasActiveLoan {
		t.Fatalf("expected active loan flag retained")
	}

	// Mutating the returned record must not leak into state.
	got.ShareBalance.SetInt64(999)
	again, _, err := mgr.CoopMember(addr)
	if err != nil {
		t.Fatalf("reload member: %v", err)
	}
	if again.ShareBalance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("stored member aliased: %s", again.ShareBalance)
	}
}

func TestCoopMemberListKeepsRegistrationOrder(t *testing.T) {
	mgr := newTestManager(t)

	first := testAddress(0x21)
	second := testAddress(0x22)
	if err := mgr.CoopAppendMemberAddress(first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.CoopAppendMemberAddress(second); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.CoopAppendMemberAddress(first); err != nil {
		t.Fatalf("append duplicate: %v", err)
	}

	addrs, err := mgr.CoopMemberAddresses()
	if err != nil {
		t.Fatalf("member addresses: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(addrs))
	}
	if !addrs[0].Equal(first) || !addrs[1].Equal(second) {
		t.Fatalf("unexpected order: %v", addrs)
	}
}

func TestCoopCountersRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	counters, err := mgr.CoopCounters()
	if err != nil {
		t.Fatalf("fresh counters: %v", err)
	}
	if counters.TotalMembers != 0 || counters.LoanSeq != 0 {
		t.Fatalf("expected zeroed counters, got %+v", counters)
	}

	counters = &coop.Counters{
		TotalMembers:        5,
		ActiveMembers:       4,
		LoanProposalSeq:     9,
		TreasuryProposalSeq: 2,
		LoanSeq:             3,
	}
	if err := mgr.CoopSetCounters(counters); err != nil {
		t.Fatalf("set counters: %v", err)
	}
	got, err := mgr.CoopCounters()
	if err != nil {
		t.Fatalf("get counters: %v", err)
	}
	if *got != *counters {
		t.Fatalf("counters lost: %+v", got)
	}
}

func TestCoopPolicyRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	if _, ok, err := mgr.CoopPolicy(); err != nil || ok {
		t.Fatalf("expected absent policy, got ok=%t err=%v", ok, err)
	}

	policy := coop.DefaultPolicy()
	policy.LoanQuorumBps = 7500
	policy.WeightedVoting = true
	if err := mgr.CoopSetPolicy(&policy); err != nil {
		t.Fatalf("set policy: %v", err)
	}

	got, ok, err := mgr.CoopPolicy()
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if !ok {
		t.Fatalf("expected policy present")
	}
	if got.LoanQuorumBps != 7500 || !got.WeightedVoting {
		t.Fatalf("policy lost overrides: %+v", got)
	}
	if got.MembershipContributionWei.Cmp(policy.MembershipContributionWei) != 0 {
		t.Fatalf("contribution lost: %s", got.MembershipContributionWei)
	}
}

func TestCoopLoanProposalRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	if _, ok, err := mgr.CoopLoanProposal(1); err != nil || ok {
		t.Fatalf("expected absent proposal, got ok=%t err=%v", ok, err)
	}

	proposal := &coop.LoanProposal{
		ID:              1,
		Borrower:        testAddress(0x31),
		Amount:          big.NewInt(200),
		InterestRateBps: 1100,
		DurationSeconds: 3600,
		TotalRepayment:  big.NewInt(222),
		CreatedAt:       1_700_000_000,
		EditingEndsAt:   1_700_000_600,
		VotingEndsAt:    1_700_001_200,
		Status:          coop.ProposalStatusPending,
		ForVotes:        2,
		AgainstVotes:    1,
	}
	if err := mgr.CoopPutLoanProposal(proposal); err != nil {
		t.Fatalf("put proposal: %v", err)
	}

	got, ok, err := mgr.CoopLoanProposal(1)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if !ok {
		t.Fatalf("expected proposal present")
	}
	if !got.Borrower.Equal(proposal.Borrower) {
		t.Fatalf("borrower lost: %s", got.Borrower)
	}
	if got.Amount.Cmp(proposal.Amount) != 0 || got.TotalRepayment.Cmp(proposal.TotalRepayment) != 0 {
		t.Fatalf("amounts lost: %+v", got)
	}
	if got.Status != coop.ProposalStatusPending || got.ForVotes != 2 || got.AgainstVotes != 1 {
		t.Fatalf("tallies lost: %+v", got)
	}
	if got.EditingEndsAt != proposal.EditingEndsAt || got.VotingEndsAt != proposal.VotingEndsAt {
		t.Fatalf("deadlines lost: %+v", got)
	}

	if err := mgr.CoopPutLoanProposal(&coop.LoanProposal{}); err == nil {
		t.Fatalf("expected zero id rejection")
	}
}

func TestCoopTreasuryProposalRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	proposal := &coop.TreasuryProposal{
		ID:           4,
		Proposer:     testAddress(0x41),
		Amount:       big.NewInt(150),
		Destination:  testAddress(0x42),
		Reason:       "audit retainer",
		CreatedAt:    1_700_000_000,
		VotingEndsAt: 1_700_500_000,
		Status:       coop.ProposalStatusApproved,
		ForVotes:     3,
	}
	if err := mgr.CoopPutTreasuryProposal(proposal); err != nil {
		t.Fatalf("put proposal: %v", err)
	}

	got, ok, err := mgr.CoopTreasuryProposal(4)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if !ok {
		t.Fatalf("expected proposal present")
	}
	if !got.Destination.Equal(proposal.Destination) || got.Reason != "audit retainer" {
		t.Fatalf("fields lost: %+v", got)
	}
	if got.Status != coop.ProposalStatusApproved || got.ForVotes != 3 {
		t.Fatalf("outcome lost: %+v", got)
	}
}

func TestCoopVotesAreNamespacedByDomain(t *testing.T) {
	mgr := newTestManager(t)

	voter := testAddress(0x51)
	loanVote := &coop.Vote{ProposalID: 1, Voter: voter, Support: true, Weight: 1, Timestamp: 10}
	if err := mgr.CoopPutVote(coop.VoteDomainLoan, loanVote); err != nil {
		t.Fatalf("put loan vote: %v", err)
	}

	if _, ok, err := mgr.CoopVote(coop.VoteDomainTreasury, 1, voter); err != nil || ok {
		t.Fatalf("treasury vote should be absent, got ok=%t err=%v", ok, err)
	}

	treasuryVote := &coop.Vote{ProposalID: 1, Voter: voter, Support: false, Weight: 2, Timestamp: 20}
	if err := mgr.CoopPutVote(coop.VoteDomainTreasury, treasuryVote); err != nil {
		t.Fatalf("put treasury vote: %v", err)
	}

	gotLoan, ok, err := mgr.CoopVote(coop.VoteDomainLoan, 1, voter)
	if err != nil || !ok {
		t.Fatalf("loan vote lookup failed: ok=%t err=%v", ok, err)
	}
	if !gotLoan.Support || gotLoan.Weight != 1 {
		t.Fatalf("loan vote corrupted: %+v", gotLoan)
	}

	gotTreasury, ok, err := mgr.CoopVote(coop.VoteDomainTreasury, 1, voter)
	if err != nil || !ok {
		t.Fatalf("treasury vote lookup failed: ok=%t err=%v", ok, err)
	}
	if gotTreasury.Support || gotTreasury.Weight != 2 {
		t.Fatalf("treasury vote corrupted: %+v", gotTreasury)
	}
}

func TestCoopLoanAndActiveIndexRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	loan := &coop.Loan{
		ID:              1,
		ProposalID:      1,
		Borrower:        testAddress(0x61),
		Principal:       big.NewInt(200),
		InterestRateBps: 1100,
		TotalRepayment:  big.NewInt(222),
		StartedAt:       1_700_000_000,
		DueAt:           1_731_536_000,
		Status:          coop.LoanStatusActive,
		AmountRepaid:    big.NewInt(0),
	}
	if err := mgr.CoopPutLoan(loan); err != nil {
		t.Fatalf("put loan: %v", err)
	}

	got, ok, err := mgr.CoopLoan(1)
	if err != nil || !ok {
		t.Fatalf("loan lookup failed: ok=%t err=%v", ok, err)
	}
	if got.Principal.Cmp(big.NewInt(200)) != 0 || got.Status != coop.LoanStatusActive {
		t.Fatalf("loan corrupted: %+v", got)
	}

	ids, err := mgr.CoopActiveLoanIDs()
	if err != nil {
		t.Fatalf("active ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty index, got %v", ids)
	}

	if err := mgr.CoopSetActiveLoanIDs([]uint64{1, 7}); err != nil {
		t.Fatalf("set active ids: %v", err)
	}
	ids, err = mgr.CoopActiveLoanIDs()
	if err != nil {
		t.Fatalf("active ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 7 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if err := mgr.CoopSetActiveLoanIDs(nil); err != nil {
		t.Fatalf("clear active ids: %v", err)
	}
	ids, err = mgr.CoopActiveLoanIDs()
	if err != nil {
		t.Fatalf("active ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected cleared index, got %v", ids)
	}
}

func TestCoopRewardsRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	addr := testAddress(0x71)
	balance, err := mgr.CoopRewards(addr)
	if err != nil {
		t.Fatalf("fresh rewards: %v", err)
	}
	if balance.Interest.Sign() != 0 || balance.Yield.Sign() != 0 {
		t.Fatalf("expected zeroed rewards, got %+v", balance)
	}

	if err := mgr.CoopPutRewards(addr, &coop.RewardBalance{Interest: big.NewInt(40), Yield: big.NewInt(25)}); err != nil {
		t.Fatalf("put rewards: %v", err)
	}
	balance, err = mgr.CoopRewards(addr)
	if err != nil {
		t.Fatalf("get rewards: %v", err)
	}
	if balance.Interest.Cmp(big.NewInt(40)) != 0 || balance.Yield.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("rewards lost: %+v", balance)
	}

	totals, err := mgr.CoopRewardTotals()
	if err != nil {
		t.Fatalf("fresh totals: %v", err)
	}
	if totals.Interest.Sign() != 0 {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
	if err := mgr.CoopSetRewardTotals(&coop.RewardTotals{Interest: big.NewInt(40), Yield: big.NewInt(25)}); err != nil {
		t.Fatalf("set totals: %v", err)
	}
	totals, err = mgr.CoopRewardTotals()
	if err != nil {
		t.Fatalf("get totals: %v", err)
	}
	if totals.Interest.Cmp(big.NewInt(40)) != 0 || totals.Yield.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("totals lost: %+v", totals)
	}
}

func TestCoopAdminsRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	admins, err := mgr.CoopAdmins()
	if err != nil {
		t.Fatalf("fresh admins: %v", err)
	}
	if len(admins) != 0 {
		t.Fatalf("expected no admins, got %v", admins)
	}

	want := []crypto.Address{testAddress(0x81), testAddress(0x82)}
	if err := mgr.CoopSetAdmins(want); err != nil {
		t.Fatalf("set admins: %v", err)
	}
	admins, err = mgr.CoopAdmins()
	if err != nil {
		t.Fatalf("get admins: %v", err)
	}
	if len(admins) != 2 || !admins[0].Equal(want[0]) || !admins[1].Equal(want[1]) {
		t.Fatalf("admins lost: %v", admins)
	}

	if err := mgr.CoopSetAdmins([]crypto.Address{{}}); err == nil {
		t.Fatalf("expected zero admin rejection")
	}
}

func TestCoopAuditAssignsSequence(t *testing.T) {
	mgr := newTestManager(t)

	head, err := mgr.CoopAuditHead()
	if err != nil {
		t.Fatalf("fresh head: %v", err)
	}
	if head != 0 {
		t.Fatalf("expected empty log, got head %d", head)
	}

	first, err := mgr.CoopAppendAudit(&coop.AuditRecord{
		Timestamp: 100,
		Event:     coop.AuditEventMemberRegistered,
		Actor:     testAddress(0x91),
		Details:   "contribution=100",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected sequence 1, got %d", first)
	}

	second, err := mgr.CoopAppendAudit(&coop.AuditRecord{
		Timestamp: 200,
		Event:     coop.AuditEventLoanProposed,
		SubjectID: 1,
		Actor:     testAddress(0x92),
		Details:   "amount=200 rate=1100",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if second != 2 {
		t.Fatalf("expected sequence 2, got %d", second)
	}

	head, err = mgr.CoopAuditHead()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head != 2 {
		t.Fatalf("expected head 2, got %d", head)
	}
}

func TestCoopAuditLogPaging(t *testing.T) {
	mgr := newTestManager(t)

	for i := 0; i < 5; i++ {
		if _, err := mgr.CoopAppendAudit(&coop.AuditRecord{
			Timestamp: uint64(100 + i),
			Event:     coop.AuditEventLoanVote,
			SubjectID: uint64(i + 1),
			Actor:     testAddress(0xA0),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	page, err := mgr.CoopAuditLog(0, 3)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 records, got %d", len(page))
	}
	if page[0].Sequence != 1 || page[2].Sequence != 3 {
		t.Fatalf("unexpected page bounds: %+v", page)
	}
	if page[2].SubjectID != 3 {
		t.Fatalf("unexpected subject: %+v", page[2])
	}

	page, err = mgr.CoopAuditLog(3, 10)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 trailing records, got %d", len(page))
	}
	if page[0].Sequence != 4 || page[1].Sequence != 5 {
		t.Fatalf("unexpected trailing sequences: %+v", page)
	}

	page, err = mgr.CoopAuditLog(5, 10)
	if err != nil {
		t.Fatalf("empty page: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("expected empty page, got %d records", len(page))
	}
}

func TestIdentityAliasBinding(t *testing.T) {
	mgr := newTestManager(t)

	owner := testAddress(0xB1)
	if _, ok, err := mgr.IdentityAliasOwner("kofi"); err != nil || ok {
		t.Fatalf("expected unbound alias, got ok=%t err=%v", ok, err)
	}

	if err := mgr.IdentitySetAliasOwner("kofi", owner); err != nil {
		t.Fatalf("bind alias: %v", err)
	}
	if err := mgr.IdentitySetAliasOf(owner, "kofi"); err != nil {
		t.Fatalf("bind reverse: %v", err)
	}

	got, ok, err := mgr.IdentityAliasOwner("kofi")
	if err != nil || !ok {
		t.Fatalf("resolve failed: ok=%t err=%v", ok, err)
	}
	if !got.Equal(owner) {
		t.Fatalf("unexpected owner %s", got)
	}
	alias, ok, err := mgr.IdentityAliasOf(owner)
	if err != nil || !ok {
		t.Fatalf("reverse failed: ok=%t err=%v", ok, err)
	}
	if alias != "kofi" {
		t.Fatalf("unexpected alias %q", alias)
	}

	// Releasing writes a zero owner which reads back as absent.
	if err := mgr.IdentitySetAliasOwner("kofi", crypto.Address{}); err != nil {
		t.Fatalf("release alias: %v", err)
	}
	if _, ok, _ := mgr.IdentityAliasOwner("kofi"); ok {
		t.Fatalf("expected released alias to be absent")
	}
	if err := mgr.IdentitySetAliasOf(owner, ""); err != nil {
		t.Fatalf("clear reverse: %v", err)
	}
	if _, ok, _ := mgr.IdentityAliasOf(owner); ok {
		t.Fatalf("expected cleared reverse mapping")
	}
}

func TestIdentityVotingWeightDefaultsToZero(t *testing.T) {
	mgr := newTestManager(t)

	addr := testAddress(0xC1)
	weight, err := mgr.IdentityVotingWeight(addr)
	if err != nil {
		t.Fatalf("fresh weight: %v", err)
	}
	if weight != 0 {
		t.Fatalf("expected zero weight, got %d", weight)
	}

	if err := mgr.IdentitySetVotingWeight(addr, 3); err != nil {
		t.Fatalf("set weight: %v", err)
	}
	weight, err = mgr.IdentityVotingWeight(addr)
	if err != nil {
		t.Fatalf("get weight: %v", err)
	}
	if weight != 3 {
		t.Fatalf("expected weight 3, got %d", weight)
	}
}
