package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"saccochain/core"
	"saccochain/core/genesis"
	"saccochain/crypto"
	"saccochain/native/privacy"
	"saccochain/storage"
)

const testAuthToken = "rpc-test-token"

func testAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(raw)
}

// newTestServer boots a node from an in-memory genesis with a 100 wei
// membership contribution, funds the given accounts with 10_000 wei each,
// and fronts it with an authenticated server.
func newTestServer(t *testing.T, admin crypto.Address, funded ...crypto.Address) (*Server, *core.Node) {
	t.Helper()
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
	node.SetNowFunc(func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) })
	server := NewServer(node)
	server.authToken = testAuthToken
	return server, node
}

// testResponse mirrors RPCResponse with a raw result so each test decodes
// into its own shape.
type testResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	ID     int             `json:"id"`
}

func rpcCall(t *testing.T, server *Server, token, method string, params interface{}) (testResponse, int) {
	t.Helper()
	request := RPCRequest{JSONRPC: "2.0", Method: method, ID: 7}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		request.Params = []json.RawMessage{raw}
	}
	body, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httpReq)
	var resp testResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, recorder.Body.String())
	}
	return resp, recorder.Code
}

func decodeResult(t *testing.T, resp testResponse, dst interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if err := json.Unmarshal(resp.Result, dst); err != nil {
		t.Fatalf("decode result: %v (raw %s)", err, resp.Result)
	}
}

func mustRegisterMember(t *testing.T, server *Server, addr crypto.Address, amount string) {
	t.Helper()
	resp, status := rpcCall(t, server, testAuthToken, "coop_register", coopRegisterParams{
		Caller: addr.String(),
		Amount: amount,
	})
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("register %s: status %d error %+v", addr, status, resp.Error)
	}
}

func TestServerRequiresAuthForMutations(t *testing.T) {
	admin := testAddress(0x01)
	member := testAddress(0x02)
	server, _ := newTestServer(t, admin, member)

	params := coopRegisterParams{Caller: member.String(), Amount: "150"}

	resp, status := rpcCall(t, server, "", "coop_register", params)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized code, got %+v", resp.Error)
	}

	resp, status = rpcCall(t, server, "wrong-token", "coop_register", params)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", status)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized code, got %+v", resp.Error)
	}
}

func TestServerRegisterAndQueryMember(t *testing.T) {
	admin := testAddress(0x01)
	member := testAddress(0x02)
	server, _ := newTestServer(t, admin, member)

	resp, status := rpcCall(t, server, testAuthToken, "coop_register", coopRegisterParams{
		Caller: member.String(),
		Amount: "150",
	})
	if status != http.StatusOK {
		t.Fatalf("register status = %d, error %+v", status, resp.Error)
	}
	var registered coopRegisterResult
	decodeResult(t, resp, &registered)
	if registered.Refund != "50" {
		t.Fatalf("refund = %s, want 50", registered.Refund)
	}
	if registered.Member == nil || registered.Member.Contribution != "100" {
		t.Fatalf("unexpected member payload: %+v", registered.Member)
	}

	// Views stay open; no token on purpose.
	resp, status = rpcCall(t, server, "", "coop_getMember", addressParams{Address: member.String()})
	if status != http.StatusOK {
		t.Fatalf("getMember status = %d, error %+v", status, resp.Error)
	}
	var fetched memberJSON
	decodeResult(t, resp, &fetched)
	if fetched.Status != "active" || fetched.ShareBalance != "100" {
		t.Fatalf("unexpected member view: %+v", fetched)
	}

	resp, status = rpcCall(t, server, "", "sacco_getBalance", addressParams{Address: member.String()})
	if status != http.StatusOK {
		t.Fatalf("getBalance status = %d, error %+v", status, resp.Error)
	}
	var balance balanceJSON
	decodeResult(t, resp, &balance)
	if balance.Balance != "9900" {
		t.Fatalf("balance = %s, want 9900", balance.Balance)
	}
}

func TestServerMapsEngineErrors(t *testing.T) {
	admin := testAddress(0x01)
	member := testAddress(0x02)
	stranger := testAddress(0x03)
	server, _ := newTestServer(t, admin, member)

	mustRegisterMember(t, server, member, "100")

	// Unknown membership surfaces as an authorization failure.
	resp, status := rpcCall(t, server, "", "coop_getMember", addressParams{Address: stranger.String()})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", status)
	}
	if resp.Error == nil || resp.Error.Code != codeCoopForbidden {
		t.Fatalf("expected coop forbidden code, got %+v", resp.Error)
	}

	// Double registration is a duplicate, reported as a conflict.
	resp, status = rpcCall(t, server, testAuthToken, "coop_register", coopRegisterParams{
		Caller: member.String(),
		Amount: "100",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate registration, got %d", status)
	}
	if resp.Error == nil || resp.Error.Code != codeCoopConflict {
		t.Fatalf("expected coop conflict code, got %+v", resp.Error)
	}
}

func TestServerRejectsMalformedRequests(t *testing.T) {
	admin := testAddress(0x01)
	server, _ := newTestServer(t, admin)

	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httpReq)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad JSON, got %d", recorder.Code)
	}
	var resp testResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}

	body, _ := json.Marshal(RPCRequest{JSONRPC: "1.0", Method: "coop_getPolicy", ID: 1})
	httpReq = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	recorder = httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httpReq)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong version, got %d", recorder.Code)
	}

	unknown, status := rpcCall(t, server, "", "coop_noSuchMethod", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown method, got %d", status)
	}
	if unknown.Error == nil || unknown.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found code, got %+v", unknown.Error)
	}
}

func TestServerQuotesLoanTerms(t *testing.T) {
	admin := testAddress(0x01)
	member := testAddress(0x02)
	server, _ := newTestServer(t, admin, member)

	mustRegisterMember(t, server, member, "100")

	// Treasury 100, request 50: 50% utilization prices halfway across the
	// 500..2000 bps band.
	resp, status := rpcCall(t, server, "", "coop_quoteLoanTerms", coopQuoteParams{Amount: "50"})
	if status != http.StatusOK {
		t.Fatalf("quote status = %d, error %+v", status, resp.Error)
	}
	var terms termsJSON
	decodeResult(t, resp, &terms)
	if terms.InterestRateBps != 1250 {
		t.Fatalf("rate = %d bps, want 1250", terms.InterestRateBps)
	}
	if terms.TotalRepayment != "56" {
		t.Fatalf("total repayment = %s, want 56", terms.TotalRepayment)
	}
}

func TestServerShieldedWithdrawalCommitment(t *testing.T) {
	admin := testAddress(0x01)
	member := testAddress(0x02)
	destination := testAddress(0x09)
	server, _ := newTestServer(t, admin, member)
	server.SetPrivacyShielded(true)

	mustRegisterMember(t, server, member, "100")

	resp, status := rpcCall(t, server, testAuthToken, "coop_proposeWithdrawal", coopProposeWithdrawalParams{
		Proposer:    member.String(),
		Amount:      "50",
		Destination: destination.String(),
		Reason:      "community well repairs",
	})
	if status != http.StatusOK {
		t.Fatalf("propose status = %d, error %+v", status, resp.Error)
	}
	var result coopProposeWithdrawalResult
	decodeResult(t, resp, &result)
	if result.Proposal == nil || result.Proposal.ID != 1 || result.Proposal.Status != "pending" {
		t.Fatalf("unexpected proposal payload: %+v", result.Proposal)
	}
	if result.Commitment == "" || result.Salt == "" {
		t.Fatalf("expected commitment and salt in shielded mode, got %+v", result)
	}

	salt, err := hex.DecodeString(result.Salt)
	if err != nil {
		t.Fatalf("decode salt: %v", err)
	}
	rawCommitment, err := hex.DecodeString(result.Commitment[2:])
	if err != nil {
		t.Fatalf("decode commitment: %v", err)
	}
	var commitment [32]byte
	copy(commitment[:], rawCommitment)
	if !privacy.Verify(commitment, big.NewInt(50), salt) {
		t.Fatal("commitment does not verify against the plain amount")
	}
	if privacy.Verify(commitment, big.NewInt(51), salt) {
		t.Fatal("commitment verified a different amount")
	}
}

func TestServerDocsRegisterAndLookup(t *testing.T) {
	admin := testAddress(0x01)
	server, _ := newTestServer(t, admin)

	hash := bytes.Repeat([]byte{0xab}, 32)
	resp, status := rpcCall(t, server, testAuthToken, "docs_register", docsRegisterParams{
		Caller:   admin.String(),
		EntityID: "loan/1",
		Category: "agreement",
		Hash:     "0x" + hex.EncodeToString(hash),
	})
	if status != http.StatusOK {
		t.Fatalf("docs register status = %d, error %+v", status, resp.Error)
	}
	var registered docRecordJSON
	decodeResult(t, resp, &registered)
	if registered.EntityID != "loan/1" || registered.Category != "agreement" {
		t.Fatalf("unexpected record: %+v", registered)
	}

	resp, status = rpcCall(t, server, "", "docs_lookup", docsLookupParams{EntityID: "loan/1"})
	if status != http.StatusOK {
		t.Fatalf("docs lookup status = %d, error %+v", status, resp.Error)
	}
	var records []docRecordJSON
	decodeResult(t, resp, &records)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Hash != "0x"+hex.EncodeToString(hash) {
		t.Fatalf("hash mismatch: %s", records[0].Hash)
	}
}

func TestServerLoanLifecycleOverRPC(t *testing.T) {
	admin := testAddress(0x01)
	borrower := testAddress(0x02)
	voterA := testAddress(0x03)
	voterB := testAddress(0x04)
	server, node := newTestServer(t, admin, borrower, voterA, voterB)

	clock := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	node.SetNowFunc(func() time.Time { return clock })

	for _, member := range []crypto.Address{borrower, voterA, voterB} {
		mustRegisterMember(t, server, member, "100")
	}

	// Satisfy the minimum-membership age before borrowing.
	clock = clock.Add(31 * 24 * time.Hour)

	resp, status := rpcCall(t, server, testAuthToken, "coop_requestLoan", coopRequestLoanParams{
		Borrower: borrower.String(),
		Amount:   "90",
	})
	if status != http.StatusOK {
		t.Fatalf("requestLoan status = %d, error %+v", status, resp.Error)
	}
	var proposal loanProposalJSON
	decodeResult(t, resp, &proposal)
	if proposal.Phase != "editing" {
		t.Fatalf("phase = %s, want editing", proposal.Phase)
	}

	// Voting opens once the editing window lapses.
	clock = clock.Add(4 * 24 * time.Hour)

	resp, status = rpcCall(t, server, testAuthToken, "coop_voteLoan", coopVoteParams{
		Caller:     voterA.String(),
		ProposalID: proposal.ID,
		Support:    true,
	})
	if status != http.StatusOK {
		t.Fatalf("first vote status = %d, error %+v", status, resp.Error)
	}
	var afterFirst coopVoteLoanResult
	decodeResult(t, resp, &afterFirst)
	if afterFirst.Loan != nil {
		t.Fatalf("loan disbursed after a single vote: %+v", afterFirst.Loan)
	}

	resp, status = rpcCall(t, server, testAuthToken, "coop_voteLoan", coopVoteParams{
		Caller:     voterB.String(),
		ProposalID: proposal.ID,
		Support:    true,
	})
	if status != http.StatusOK {
		t.Fatalf("second vote status = %d, error %+v", status, resp.Error)
	}
	var afterSecond coopVoteLoanResult
	decodeResult(t, resp, &afterSecond)
	if afterSecond.Loan == nil {
		t.Fatal("expected disbursement once quorum reached")
	}
	if afterSecond.Loan.Principal != "90" || afterSecond.Loan.Status != "active" {
		t.Fatalf("unexpected loan: %+v", afterSecond.Loan)
	}

	resp, status = rpcCall(t, server, "", "coop_listActiveLoans", nil)
	if status != http.StatusOK {
		t.Fatalf("listActiveLoans status = %d, error %+v", status, resp.Error)
	}
	var active []uint64
	decodeResult(t, resp, &active)
	if len(active) != 1 || active[0] != afterSecond.Loan.ID {
		t.Fatalf("active loans = %v, want [%d]", active, afterSecond.Loan.ID)
	}

	resp, status = rpcCall(t, server, testAuthToken, "coop_repayLoan", coopRepayLoanParams{
		Caller: borrower.String(),
		LoanID: afterSecond.Loan.ID,
		Amount: afterSecond.Loan.TotalRepayment,
	})
	if status != http.StatusOK {
		t.Fatalf("repay status = %d, error %+v", status, resp.Error)
	}
	var repaid coopRepayLoanResult
	decodeResult(t, resp, &repaid)
	if repaid.Loan.Status != "repaid" {
		t.Fatalf("loan status after repay = %s, want repaid", repaid.Loan.Status)
	}
}
