package client

import (
	"context"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"saccochain/core"
	"saccochain/core/genesis"
	"saccochain/crypto"
	"saccochain/rpc"
	"saccochain/storage"
)

const testToken = "sdk-test-token"

func testAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(raw)
}

// newTestEndpoint boots a real node from an in-memory genesis with a 100 wei
// membership contribution, funds the given accounts with 10_000 wei each, and
// serves it over a live HTTP listener.
func newTestEndpoint(t *testing.T, admin crypto.Address, funded ...crypto.Address) (string, *core.Node) {
	t.Helper()
	t.Setenv("SACCO_RPC_TOKEN", testToken)
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	alloc := make(map[string]string, len(funded))
	for _, addr := range funded {
		alloc[addr.String()] = "10000"
	}
	spec := &genesis.GenesisSpec{
		GenesisTime: "2024-01-01T00:00:00Z",
		Policy:      &genesis.PolicySpec{MembershipContributionWei: "100"},
		Admins:      []string{admin.String()},
		Alloc:       alloc,
	}
	if _, err := genesis.Apply(spec, db); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	node, err := core.NewNode(db, admin, "", false)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	server := rpc.NewServer(node)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return httpServer.URL, node
}

func TestClientLoanLifecycle(t *testing.T) {
	admin := testAddress(0x01)
	borrower := testAddress(0x02)
	voterA := testAddress(0x03)
	voterB := testAddress(0x04)
	endpoint, node := newTestEndpoint(t, admin, borrower, voterA, voterB)

	clock := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	node.SetNowFunc(func() time.Time { return clock })

	sdk, err := New(endpoint, WithAuthToken(testToken))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	receipt, err := sdk.Register(ctx, borrower.String(), big.NewInt(150))
	if err != nil {
		t.Fatalf("register borrower: %v", err)
	}
	if receipt.Refund != "50" {
		t.Fatalf("refund = %s, want 50", receipt.Refund)
	}
	if receipt.Member == nil || receipt.Member.Status != "active" {
		t.Fatalf("unexpected member payload: %+v", receipt.Member)
	}
	for _, voter := range []crypto.Address{voterA, voterB} {
		if _, err := sdk.Register(ctx, voter.String(), big.NewInt(100)); err != nil {
			t.Fatalf("register %s: %v", voter, err)
		}
	}

	// Treasury 300, request 90: 30% utilization interpolates to 950 bps.
	terms, err := sdk.QuoteLoanTerms(ctx, big.NewInt(90))
	if err != nil {
		t.Fatalf("quote terms: %v", err)
	}
	if terms.InterestRateBps != 950 || terms.TotalRepayment != "98" {
		t.Fatalf("unexpected quote: %+v", terms)
	}

	// Satisfy the minimum-membership age before borrowing.
	clock = clock.Add(31 * 24 * time.Hour)

	proposal, err := sdk.RequestLoan(ctx, borrower.String(), big.NewInt(90))
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}
	if proposal.Phase != "editing" || proposal.Amount != "90" {
		t.Fatalf("unexpected proposal: %+v", proposal)
	}

	edited, err := sdk.EditLoanProposal(ctx, borrower.String(), proposal.ID, big.NewInt(80))
	if err != nil {
		t.Fatalf("edit proposal: %v", err)
	}
	if edited.Amount != "80" || edited.InterestRateBps != 899 || edited.TotalRepayment != "87" {
		t.Fatalf("unexpected repriced proposal: %+v", edited)
	}

	// Voting opens once the editing window lapses.
	clock = clock.Add(4 * 24 * time.Hour)

	first, err := sdk.VoteLoan(ctx, voterA.String(), proposal.ID, true)
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if first.Loan != nil {
		t.Fatalf("loan disbursed after a single vote: %+v", first.Loan)
	}
	second, err := sdk.VoteLoan(ctx, voterB.String(), proposal.ID, true)
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if second.Loan == nil {
		t.Fatal("expected disbursement once quorum reached")
	}
	if second.Loan.Principal != "80" || second.Loan.Status != "active" {
		t.Fatalf("unexpected loan: %+v", second.Loan)
	}

	balance, err := sdk.Balance(ctx, borrower.String())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != "9980" {
		t.Fatalf("borrower balance = %s, want 9980", balance.Balance)
	}

	repayment, ok := new(big.Int).SetString(second.Loan.TotalRepayment, 10)
	if !ok {
		t.Fatalf("malformed repayment %q", second.Loan.TotalRepayment)
	}
	settled, err := sdk.RepayLoan(ctx, borrower.String(), second.Loan.ID, repayment)
	if err != nil {
		t.Fatalf("repay loan: %v", err)
	}
	if settled.Loan.Status != "repaid" {
		t.Fatalf("loan status = %s, want repaid", settled.Loan.Status)
	}

	member, err := sdk.Member(ctx, borrower.String())
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	if member.HasActiveLoan {
		t.Fatal("borrower still flagged with an active loan after repayment")
	}

	// 7 wei of interest split three ways credits 2 wei per member.
	pendingA, err := sdk.PendingRewards(ctx, voterA.String())
	if err != nil {
		t.Fatalf("pending rewards: %v", err)
	}
	pendingB, err := sdk.PendingRewards(ctx, voterB.String())
	if err != nil {
		t.Fatalf("pending rewards: %v", err)
	}
	if pendingA.Interest == "0" || pendingA.Interest != pendingB.Interest {
		t.Fatalf("interest shares diverge: voterA %+v voterB %+v", pendingA, pendingB)
	}
	if pendingA.Yield != "0" {
		t.Fatalf("unexpected yield balance: %+v", pendingA)
	}

	claimed, err := sdk.ClaimRewards(ctx, voterA.String())
	if err != nil {
		t.Fatalf("claim rewards: %v", err)
	}
	if claimed.String() != pendingA.Interest {
		t.Fatalf("claimed %s, want %s", claimed, pendingA.Interest)
	}
	if _, err := sdk.ClaimRewards(ctx, voterA.String()); err == nil {
		t.Fatal("expected repeated claim to fail")
	}
}

func TestClientRequiresAuthToken(t *testing.T) {
	admin := testAddress(0x01)
	member := testAddress(0x02)
	endpoint, _ := newTestEndpoint(t, admin, member)

	sdk, err := New(endpoint)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	if _, err := sdk.Register(ctx, member.String(), big.NewInt(100)); err == nil {
		t.Fatal("expected error without auth token")
	} else if !strings.Contains(err.Error(), "auth token required") {
		t.Fatalf("unexpected error: %v", err)
	}

	// Reads stay open without credentials.
	if _, err := sdk.Balance(ctx, member.String()); err != nil {
		t.Fatalf("balance without token: %v", err)
	}

	wrong, err := New(endpoint, WithAuthToken("not-the-token"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := wrong.Register(ctx, member.String(), big.NewInt(100)); err == nil {
		t.Fatal("expected error with wrong token")
	} else if !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientSurfacesEngineErrors(t *testing.T) {
	admin := testAddress(0x01)
	member := testAddress(0x02)
	endpoint, _ := newTestEndpoint(t, admin, member)

	sdk, err := New(endpoint, WithAuthToken(testToken))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	// 50 wei falls short of the 100 wei contribution.
	_, err = sdk.Register(ctx, member.String(), big.NewInt(50))
	if err == nil {
		t.Fatal("expected underpayment to fail")
	}
	if !strings.Contains(err.Error(), "client: rpc error") {
		t.Fatalf("unexpected error: %v", err)
	}
}
