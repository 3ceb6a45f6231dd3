package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"saccochain/core"
	"saccochain/native/coop"
	"saccochain/native/docs"
	"saccochain/native/identity"
	"saccochain/native/restaking"
	"saccochain/observability"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

const maxRequestBytes = 1 << 20

// envRPCToken names the environment variable carrying the bearer token that
// guards mutating methods. An empty token disables all mutations.
const envRPCToken = "SACCO_RPC_TOKEN"

// RPCRequest is a JSON-RPC 2.0 call envelope. Params carries positional
// raw messages; handlers decode the first entry into their own struct.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RPCResponse is a JSON-RPC 2.0 reply envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      int         `json:"id"`
}

// Server exposes the ledger node over JSON-RPC plus a websocket event feed.
// Mutating methods require the bearer token from SACCO_RPC_TOKEN; read-only
// methods are open.
type Server struct {
	node      *core.Node
	authToken string
	shielded  bool
}

// NewServer wires a server around the node. The auth token is read from the
// environment once at construction.
func NewServer(node *core.Node) *Server {
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(os.Getenv(envRPCToken)),
	}
}

// SetPrivacyShielded toggles withdrawal commitments. When enabled the
// propose-withdrawal handler returns a salted hash binding the amount so the
// plain value can be kept out of downstream mirrors.
func (s *Server) SetPrivacyShielded(enabled bool) {
	s.shielded = enabled
}

// Handler returns the HTTP routes served by Start. Exposed so tests and
// embedding processes can mount the server on their own listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/ws/events", s.handleEventStream)
	return mux
}

// Start blocks serving JSON-RPC traffic on addr.
func (s *Server) Start(addr string) error {
	slog.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, 0, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "unable to read request body", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "2.0" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "jsonrpc must be \"2.0\"", nil)
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method is required", nil)
		return
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	s.route(rec, r, &req)
	observability.ModuleMetrics().Observe(moduleOf(req.Method), req.Method, rec.status, time.Since(start))
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "coop_register":
		s.handleCoopRegister(w, r, req)
	case "coop_exit":
		s.handleCoopExit(w, r, req)
	case "coop_requestLoan":
		s.handleCoopRequestLoan(w, r, req)
	case "coop_editLoanProposal":
		s.handleCoopEditLoanProposal(w, r, req)
	case "coop_voteLoan":
		s.handleCoopVoteLoan(w, r, req)
	case "coop_repayLoan":
		s.handleCoopRepayLoan(w, r, req)
	case "coop_proposeWithdrawal":
		s.handleCoopProposeWithdrawal(w, r, req)
	case "coop_voteWithdrawal":
		s.handleCoopVoteWithdrawal(w, r, req)
	case "coop_claimRewards":
		s.handleCoopClaimRewards(w, r, req)
	case "coop_claimYield":
		s.handleCoopClaimYield(w, r, req)
	case "coop_reportYield":
		s.handleCoopReportYield(w, r, req)
	case "coop_updatePolicy":
		s.handleCoopUpdatePolicy(w, r, req)
	case "coop_addAdmin":
		s.handleCoopAddAdmin(w, r, req)
	case "coop_removeAdmin":
		s.handleCoopRemoveAdmin(w, r, req)
	case "coop_getMember":
		s.handleCoopGetMember(w, req)
	case "coop_listMembers":
		s.handleCoopListMembers(w, req)
	case "coop_getLoanProposal":
		s.handleCoopGetLoanProposal(w, req)
	case "coop_getLoan":
		s.handleCoopGetLoan(w, req)
	case "coop_getTreasuryProposal":
		s.handleCoopGetTreasuryProposal(w, req)
	case "coop_quoteLoanTerms":
		s.handleCoopQuoteLoanTerms(w, req)
	case "coop_pendingRewards":
		s.handleCoopPendingRewards(w, req)
	case "coop_rewardTotals":
		s.handleCoopRewardTotals(w, req)
	case "coop_listActiveLoans":
		s.handleCoopListActiveLoans(w, req)
	case "coop_getPolicy":
		s.handleCoopGetPolicy(w, req)
	case "coop_getCounters":
		s.handleCoopGetCounters(w, req)
	case "coop_listAdmins":
		s.handleCoopListAdmins(w, req)
	case "coop_loanEligibility":
		s.handleCoopLoanEligibility(w, req)
	case "coop_getTreasury":
		s.handleCoopGetTreasury(w, req)
	case "coop_auditLog":
		s.handleCoopAuditLog(w, req)
	case "identity_setAlias":
		s.handleIdentitySetAlias(w, r, req)
	case "identity_resolve":
		s.handleIdentityResolve(w, req)
	case "identity_aliasOf":
		s.handleIdentityAliasOf(w, req)
	case "identity_setVotingWeight":
		s.handleIdentitySetVotingWeight(w, r, req)
	case "identity_votingWeight":
		s.handleIdentityVotingWeight(w, req)
	case "docs_register":
		s.handleDocsRegister(w, r, req)
	case "docs_lookup":
		s.handleDocsLookup(w, req)
	case "restaking_allocate":
		s.handleRestakingAllocate(w, r, req)
	case "restaking_recall":
		s.handleRestakingRecall(w, r, req)
	case "restaking_reportYield":
		s.handleRestakingReportYield(w, r, req)
	case "restaking_getPosition":
		s.handleRestakingGetPosition(w, req)
	case "sacco_getBalance":
		s.handleGetBalance(w, req)
	case "system_setPaused":
		s.handleSystemSetPaused(w, r, req)
	case "system_listPaused":
		s.handleSystemListPaused(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

// moduleOf maps a method name to its metrics label.
func moduleOf(method string) string {
	switch {
	case strings.HasPrefix(method, "coop_"):
		return coop.ModuleName
	case strings.HasPrefix(method, "identity_"):
		return identity.ModuleName
	case strings.HasPrefix(method, "docs_"):
		return docs.ModuleName
	case strings.HasPrefix(method, "restaking_"):
		return restaking.ModuleName
	case strings.HasPrefix(method, "system_"):
		return "system"
	default:
		return "node"
	}
}

// requireAuth gates mutating methods behind the configured bearer token. A
// server started without a token refuses every mutation.
func (s *Server) requireAuth(r *http.Request) error {
	if s.authToken == "" {
		return errors.New("rpc auth token not configured")
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return errors.New("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return errors.New("invalid bearer token")
	}
	return nil
}

func writeUnauthorized(w http.ResponseWriter, id int, err error) {
	writeError(w, http.StatusUnauthorized, id, codeUnauthorized, "unauthorized", err.Error())
}

func writeResult(w http.ResponseWriter, id int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: "2.0", Result: result, ID: id})
}

func writeError(w http.ResponseWriter, status, id, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message, Data: data},
		ID:      id,
	})
}
