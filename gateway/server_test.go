package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"saccochain/core"
	"saccochain/core/genesis"
	"saccochain/crypto"
	"saccochain/storage"
)

const (
	testJWTSecret = "gateway-test-secret"
	testIssuer    = "saccochain-tests"
	testAudience  = "sacco-gateway"
)

func gatewayAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(raw)
}

// newGatewayNode boots a ledger with a 100 wei membership contribution and
// 10_000 wei on each funded account, clock pinned one day past genesis.
func newGatewayNode(t *testing.T, admin crypto.Address, funded ...crypto.Address) *core.Node {
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
	_, err := genesis.Apply(spec, db)
	require.NoError(t, err)
	node, err := core.NewNode(db, admin, "", false)
	require.NoError(t, err)
	node.SetNowFunc(func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) })
	return node
}

func newGatewayServer(t *testing.T, node *core.Node, rateLimitPerMin int) *Server {
	t.Helper()
	dir := t.TempDir()
	server, err := New(node, Options{
		JWTSecret:         testJWTSecret,
		Issuer:            testIssuer,
		Audience:          testAudience,
		RateLimitPerMin:   rateLimitPerMin,
		IdempotencyDBPath: filepath.Join(dir, "idempotency.db"),
		AuditDBPath:       filepath.Join(dir, "audit.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server
}

func signTestToken(t *testing.T, secret, subject, scope string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   subject,
		"iss":   testIssuer,
		"aud":   testAudience,
		"scope": scope,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, handler http.Handler, method, path, token, idemKey string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set(headerIdempotencyKey, idemKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGatewayRegisterIsIdempotent(t *testing.T) {
	admin := gatewayAddress(0x01)
	alice := gatewayAddress(0xA1)
	node := newGatewayNode(t, admin, alice)
	server := newGatewayServer(t, node, 0)
	handler := server.Handler()
	token := signTestToken(t, testJWTSecret, "ops-alice", ScopeLedgerWrite)

	payload := map[string]string{"caller": alice.String(), "amount": "150"}
	rec := doRequest(t, handler, http.MethodPost, "/v1/members", token, "reg-1", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, rec.Header().Get(headerRequestID))

	var created registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "50", created.Refund)
	require.Equal(t, "100", created.Member.ShareBalance)

	// A replay with the same key must serve the cached body. A second engine
	// call would reject the duplicate membership with a conflict.
	replay := doRequest(t, handler, http.MethodPost, "/v1/members", token, "reg-1", payload)
	require.Equal(t, http.StatusCreated, replay.Code)
	require.JSONEq(t, rec.Body.String(), replay.Body.String())

	// Same key, different payload: refuse rather than replay the wrong result.
	altered := map[string]string{"caller": alice.String(), "amount": "175"}
	mismatch := doRequest(t, handler, http.MethodPost, "/v1/members", token, "reg-1", altered)
	require.Equal(t, http.StatusConflict, mismatch.Code)

	members := doRequest(t, handler, http.MethodGet, "/v1/members", "", "", nil)
	require.Equal(t, http.StatusOK, members.Code)
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(members.Body.Bytes(), &list))
	require.Len(t, list, 1)

	count, err := server.audit.Count(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, int64(3))
}

func TestGatewayWriteAuth(t *testing.T) {
	admin := gatewayAddress(0x01)
	alice := gatewayAddress(0xA1)
	node := newGatewayNode(t, admin, alice)
	server := newGatewayServer(t, node, 0)
	handler := server.Handler()
	payload := map[string]string{"caller": alice.String(), "amount": "100"}

	rec := doRequest(t, handler, http.MethodPost, "/v1/members", "", "k1", payload)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	readOnly := signTestToken(t, testJWTSecret, "auditor", "ledger:read")
	rec = doRequest(t, handler, http.MethodPost, "/v1/members", readOnly, "k1", payload)
	require.Equal(t, http.StatusForbidden, rec.Code)

	forged := signTestToken(t, "some-other-secret", "intruder", ScopeLedgerWrite)
	rec = doRequest(t, handler, http.MethodPost, "/v1/members", forged, "k1", payload)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	valid := signTestToken(t, testJWTSecret, "ops", ScopeLedgerWrite)
	rec = doRequest(t, handler, http.MethodPost, "/v1/members", valid, "", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Reads stay open.
	policy := doRequest(t, handler, http.MethodGet, "/v1/policy", "", "", nil)
	require.Equal(t, http.StatusOK, policy.Code)
}

func TestGatewayMapsEngineErrors(t *testing.T) {
	admin := gatewayAddress(0x01)
	alice := gatewayAddress(0xA1)
	node := newGatewayNode(t, admin, alice)
	server := newGatewayServer(t, node, 0)
	handler := server.Handler()
	token := signTestToken(t, testJWTSecret, "ops", ScopeLedgerWrite)

	payload := map[string]string{"caller": alice.String(), "amount": "100"}
	rec := doRequest(t, handler, http.MethodPost, "/v1/members", token, "reg-1", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Fresh key, same member: the engine conflict maps onto 409.
	dup := doRequest(t, handler, http.MethodPost, "/v1/members", token, "reg-2", payload)
	require.Equal(t, http.StatusConflict, dup.Code)

	stranger := gatewayAddress(0xEE)
	member := doRequest(t, handler, http.MethodGet, "/v1/members/"+stranger.String(), "", "", nil)
	require.Equal(t, http.StatusForbidden, member.Code)

	loan := doRequest(t, handler, http.MethodGet, "/v1/loans/999", "", "", nil)
	require.Equal(t, http.StatusNotFound, loan.Code)

	quote := doRequest(t, handler, http.MethodGet, "/v1/quotes/loan?amount=nonsense", "", "", nil)
	require.Equal(t, http.StatusBadRequest, quote.Code)
}

func TestGatewayQuotesLoanTerms(t *testing.T) {
	admin := gatewayAddress(0x01)
	alice := gatewayAddress(0xA1)
	node := newGatewayNode(t, admin, alice)
	server := newGatewayServer(t, node, 0)
	handler := server.Handler()
	token := signTestToken(t, testJWTSecret, "ops", ScopeLedgerWrite)

	payload := map[string]string{"caller": alice.String(), "amount": "100"}
	rec := doRequest(t, handler, http.MethodPost, "/v1/members", token, "reg-1", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	quote := doRequest(t, handler, http.MethodGet, "/v1/quotes/loan?amount=50", "", "", nil)
	require.Equal(t, http.StatusOK, quote.Code)
	var terms termsResponse
	require.NoError(t, json.Unmarshal(quote.Body.Bytes(), &terms))
	require.Equal(t, uint64(1250), terms.InterestRateBps)
	require.Equal(t, "56", terms.TotalRepayment)
}

func TestGatewayRateLimitsClients(t *testing.T) {
	admin := gatewayAddress(0x01)
	node := newGatewayNode(t, admin)
	server := newGatewayServer(t, node, 1)
	handler := server.Handler()

	first := doRequest(t, handler, http.MethodGet, "/v1/policy", "", "", nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, handler, http.MethodGet, "/v1/policy", "", "", nil)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestGatewayDocsLifecycle(t *testing.T) {
	admin := gatewayAddress(0x01)
	node := newGatewayNode(t, admin)
	server := newGatewayServer(t, node, 0)
	handler := server.Handler()
	token := signTestToken(t, testJWTSecret, "ops", ScopeLedgerWrite)

	hash := "0x" + strings.Repeat("ab", 32)
	payload := map[string]string{
		"caller":   admin.String(),
		"entityId": "loan/1",
		"category": "agreement",
		"hash":     hash,
	}
	rec := doRequest(t, handler, http.MethodPost, "/v1/docs", token, "doc-1", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	var registered docResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	require.Equal(t, "loan/1", registered.EntityID)
	require.Equal(t, hash, registered.Hash)

	lookup := doRequest(t, handler, http.MethodGet, "/v1/docs/loan/1", "", "", nil)
	require.Equal(t, http.StatusOK, lookup.Code)
	var records []docResponse
	require.NoError(t, json.Unmarshal(lookup.Body.Bytes(), &records))
	require.Len(t, records, 1)
	require.Equal(t, "agreement", records[0].Category)
}

func TestGatewayHealthAndMetricsOpen(t *testing.T) {
	admin := gatewayAddress(0x01)
	node := newGatewayNode(t, admin)
	server := newGatewayServer(t, node, 0)
	handler := server.Handler()

	health := doRequest(t, handler, http.MethodGet, "/healthz", "", "", nil)
	require.Equal(t, http.StatusOK, health.Code)

	metrics := doRequest(t, handler, http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
}
