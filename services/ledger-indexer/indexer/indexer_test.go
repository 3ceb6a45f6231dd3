package indexer

import (
	"context"
	"fmt"
	"math/big"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"saccochain/core"
	"saccochain/core/events"
	"saccochain/core/genesis"
	"saccochain/crypto"
	"saccochain/rpc"
	"saccochain/storage"
)

func setupMirror(t *testing.T) *Indexer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open mirror: %v", err)
	}
	ix, err := New(db)
	if err != nil {
		t.Fatalf("new indexer: %v", err)
	}
	return ix
}

func mirrorAddress(suffix byte) string {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(raw).String()
}

func testFrame(seq uint64, eventType string, attrs map[string]string) StreamFrame {
	return StreamFrame{
		Sequence:   seq,
		Cursor:     strconv.FormatUint(seq, 10),
		Type:       eventType,
		Attributes: attrs,
	}
}

func applyFrame(t *testing.T, ix *Indexer, frame StreamFrame) {
	t.Helper()
	if err := ix.Apply(frame); err != nil {
		t.Fatalf("apply sequence %d: %v", frame.Sequence, err)
	}
}

func TestIndexerProjectsMemberLifecycle(t *testing.T) {
	ix := setupMirror(t)
	addr := mirrorAddress(1)

	applyFrame(t, ix, testFrame(1, events.TypeCoopMemberRegistered, map[string]string{
		"address":      addr,
		"contribution": "100",
		"refund":       "50",
	}))
	applyFrame(t, ix, testFrame(2, events.TypeCoopMemberExited, map[string]string{
		"address": addr,
		"share":   "120",
	}))

	var member Member
	if err := ix.db.First(&member, "address = ?", addr).Error; err != nil {
		t.Fatalf("load member: %v", err)
	}
	if member.State != MemberStateExited {
		t.Fatalf("unexpected state %q", member.State)
	}
	if member.Contribution != "100" || member.ExitShare != "120" {
		t.Fatalf("unexpected balances %+v", member)
	}
	if member.UpdatedSeq != 2 {
		t.Fatalf("unexpected update sequence %d", member.UpdatedSeq)
	}

	cursor, err := ix.Cursor()
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != "2" {
		t.Fatalf("unexpected cursor %q", cursor)
	}
}

func TestIndexerProjectsLoanLifecycle(t *testing.T) {
	ix := setupMirror(t)
	borrower := mirrorAddress(1)
	voter := mirrorAddress(2)

	applyFrame(t, ix, testFrame(1, events.TypeCoopLoanProposed, map[string]string{
		"proposalId":    "1",
		"borrower":      borrower,
		"amount":        "90",
		"rateBps":       "1250",
		"repayment":     "101",
		"editingEndsAt": "100",
		"votingEndsAt":  "200",
	}))
	applyFrame(t, ix, testFrame(2, events.TypeCoopLoanEdited, map[string]string{
		"proposalId": "1",
		"borrower":   borrower,
		"amount":     "80",
		"rateBps":    "1200",
		"repayment":  "89",
	}))
	applyFrame(t, ix, testFrame(3, events.TypeCoopLoanVote, map[string]string{
		"proposalId": "1",
		"voter":      voter,
		"support":    "true",
		"weight":     "1",
		"for":        "1",
		"against":    "0",
	}))
	applyFrame(t, ix, testFrame(4, events.TypeCoopLoanApproved, map[string]string{
		"proposalId": "1",
		"for":        "2",
		"quorum":     "2",
	}))
	applyFrame(t, ix, testFrame(5, events.TypeCoopLoanDisbursed, map[string]string{
		"loanId":     "1",
		"proposalId": "1",
		"borrower":   borrower,
		"principal":  "80",
		"dueAt":      "999",
	}))
	applyFrame(t, ix, testFrame(6, events.TypeCoopLoanRepaid, map[string]string{
		"loanId":   "1",
		"borrower": borrower,
		"amount":   "89",
		"interest": "9",
	}))

	var proposal LoanProposal
	if err := ix.db.First(&proposal, "id = ?", 1).Error; err != nil {
		t.Fatalf("load proposal: %v", err)
	}
	if proposal.State != ProposalStateApproved {
		t.Fatalf("unexpected proposal state %q", proposal.State)
	}
	if proposal.Amount != "80" || proposal.RateBps != 1200 || proposal.TotalRepayment != "89" {
		t.Fatalf("edit not applied: %+v", proposal)
	}
	if proposal.ForVotes != 2 {
		t.Fatalf("unexpected tally %+v", proposal)
	}

	var loan Loan
	if err := ix.db.First(&loan, "id = ?", 1).Error; err != nil {
		t.Fatalf("load loan: %v", err)
	}
	if loan.State != LoanStateRepaid {
		t.Fatalf("unexpected loan state %q", loan.State)
	}
	if loan.ProposalID != 1 || loan.Principal != "80" || loan.RepaidAmount != "89" || loan.InterestPaid != "9" {
		t.Fatalf("unexpected loan row %+v", loan)
	}

	var count int64
	if err := ix.db.Model(&LedgerEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 6 {
		t.Fatalf("expected 6 feed rows, got %d", count)
	}
}

func TestIndexerProjectsTreasuryLifecycle(t *testing.T) {
	ix := setupMirror(t)
	proposer := mirrorAddress(1)
	destination := mirrorAddress(9)

	applyFrame(t, ix, testFrame(1, events.TypeCoopTreasuryProposed, map[string]string{
		"proposalId":   "1",
		"proposer":     proposer,
		"amount":       "40",
		"destination":  destination,
		"votingEndsAt": "500",
	}))
	applyFrame(t, ix, testFrame(2, events.TypeCoopTreasuryVote, map[string]string{
		"proposalId": "1",
		"voter":      proposer,
		"support":    "true",
		"weight":     "1",
		"for":        "1",
		"against":    "0",
	}))
	applyFrame(t, ix, testFrame(3, events.TypeCoopTreasuryApproved, map[string]string{
		"proposalId":  "1",
		"amount":      "40",
		"destination": destination,
		"for":         "2",
		"quorum":      "2",
	}))

	var proposal TreasuryProposal
	if err := ix.db.First(&proposal, "id = ?", 1).Error; err != nil {
		t.Fatalf("load proposal: %v", err)
	}
	if proposal.State != ProposalStateApproved {
		t.Fatalf("unexpected state %q", proposal.State)
	}
	if proposal.Proposer != proposer || proposal.Destination != destination || proposal.Amount != "40" {
		t.Fatalf("unexpected row %+v", proposal)
	}
	if proposal.ForVotes != 2 {
		t.Fatalf("unexpected tally %+v", proposal)
	}
}

func TestIndexerReplayIsIdempotent(t *testing.T) {
	ix := setupMirror(t)
	addr := mirrorAddress(1)

	registered := testFrame(1, events.TypeCoopMemberRegistered, map[string]string{
		"address":      addr,
		"contribution": "100",
	})
	applyFrame(t, ix, registered)
	applyFrame(t, ix, testFrame(2, events.TypeCoopMemberExited, map[string]string{
		"address": addr,
		"share":   "100",
	}))

	// A reconnect replays the backlog from the last cursor; older frames must
	// not regress the projection.
	applyFrame(t, ix, registered)

	var member Member
	if err := ix.db.First(&member, "address = ?", addr).Error; err != nil {
		t.Fatalf("load member: %v", err)
	}
	if member.State != MemberStateExited {
		t.Fatalf("replay regressed state to %q", member.State)
	}

	var count int64
	if err := ix.db.Model(&LedgerEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 2 {
		t.Fatalf("replay duplicated the feed: %d rows", count)
	}

	cursor, err := ix.Cursor()
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != "2" {
		t.Fatalf("replay moved the cursor back: %q", cursor)
	}

	if err := ix.Apply(StreamFrame{Type: events.TypeCoopMemberRegistered}); err == nil {
		t.Fatal("expected rejection of frame without sequence")
	}
}

type mirrorClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mirrorClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mirrorClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func waitForMirror(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("mirror did not catch up before the deadline")
}

func TestRunnerMirrorsNodeStream(t *testing.T) {
	admin := crypto.NewAddress(append(make([]byte, 19), 0xAA))
	borrowerRaw := append(make([]byte, 19), 1)
	voterARaw := append(make([]byte, 19), 2)
	voterBRaw := append(make([]byte, 19), 3)
	borrower := crypto.NewAddress(borrowerRaw)
	voterA := crypto.NewAddress(voterARaw)
	voterB := crypto.NewAddress(voterBRaw)

	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	spec := &genesis.GenesisSpec{
		GenesisTime: "2024-01-01T00:00:00Z",
		Policy:      &genesis.PolicySpec{MembershipContributionWei: "100"},
		Admins:      []string{admin.String()},
		Alloc: map[string]string{
			borrower.String(): "10000",
			voterA.String():   "10000",
			voterB.String():   "10000",
		},
	}
	if _, err := genesis.Apply(spec, db); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	node, err := core.NewNode(db, admin, "", false)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clock := &mirrorClock{now: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	node.SetNowFunc(clock.Now)

	for _, member := range []crypto.Address{borrower, voterA, voterB} {
		if _, _, err := node.CoopRegister(member, big.NewInt(100)); err != nil {
			t.Fatalf("register %s: %v", member, err)
		}
	}
	clock.Advance(31 * 24 * time.Hour)
	proposal, err := node.CoopRequestLoan(borrower, big.NewInt(90))
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}
	clock.Advance(4 * 24 * time.Hour)
	if _, _, err := node.CoopVoteLoan(voterA, proposal.ID, true); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	_, loan, err := node.CoopVoteLoan(voterB, proposal.ID, true)
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if loan == nil {
		t.Fatal("quorum vote should disburse the loan")
	}
	if _, _, err := node.CoopRepayLoan(borrower, loan.ID, new(big.Int).Set(loan.TotalRepayment)); err != nil {
		t.Fatalf("repay: %v", err)
	}

	srv := httptest.NewServer(rpc.NewServer(node).Handler())
	t.Cleanup(srv.Close)
	streamURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"

	ix := setupMirror(t)
	runner, err := NewRunner(ix, streamURL, 10*time.Millisecond, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = runner.consume(ctx)
	}()

	waitForMirror(t, func() bool {
		var mirrored Loan
		if err := ix.db.First(&mirrored, "id = ?", loan.ID).Error; err != nil {
			return false
		}
		return mirrored.State == LoanStateRepaid
	})
	cancel()
	<-done

	var members int64
	if err := ix.db.Model(&Member{}).Where("state = ?", MemberStateActive).Count(&members).Error; err != nil {
		t.Fatalf("count members: %v", err)
	}
	if members != 3 {
		t.Fatalf("expected 3 active members, got %d", members)
	}

	var mirroredProposal LoanProposal
	if err := ix.db.First(&mirroredProposal, "id = ?", proposal.ID).Error; err != nil {
		t.Fatalf("load proposal: %v", err)
	}
	if mirroredProposal.State != ProposalStateApproved {
		t.Fatalf("unexpected proposal state %q", mirroredProposal.State)
	}
	if mirroredProposal.Borrower != borrower.String() {
		t.Fatalf("unexpected borrower %q", mirroredProposal.Borrower)
	}

	var mirroredLoan Loan
	if err := ix.db.First(&mirroredLoan, "id = ?", loan.ID).Error; err != nil {
		t.Fatalf("load loan: %v", err)
	}
	if mirroredLoan.Principal != loan.Principal.String() {
		t.Fatalf("unexpected principal %q", mirroredLoan.Principal)
	}
	if mirroredLoan.RepaidAmount != loan.TotalRepayment.String() {
		t.Fatalf("unexpected repaid amount %q", mirroredLoan.RepaidAmount)
	}

	cursor, err := ix.Cursor()
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor == "" {
		t.Fatal("expected checkpoint after stream catch-up")
	}

	// Resuming with the stored checkpoint must not duplicate feed rows.
	var before int64
	if err := ix.db.Model(&LedgerEvent{}).Count(&before).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	resumeCtx, cancelResume := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancelResume()
	_, _ = runner.consume(resumeCtx)
	var after int64
	if err := ix.db.Model(&LedgerEvent{}).Count(&after).Error; err != nil {
		t.Fatalf("recount events: %v", err)
	}
	if after != before {
		t.Fatalf("resume duplicated feed rows: %d -> %d", before, after)
	}
}
