package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"saccochain/core"
	"saccochain/crypto"
	"saccochain/gateway/middleware"
	"saccochain/native/coop"
	nativecommon "saccochain/native/common"
	"saccochain/native/docs"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerRequestID      = "X-Request-Id"
	maxRequestBody       = 1 << 20

	// ScopeLedgerWrite must be granted by the JWT for any mutating route.
	ScopeLedgerWrite = "ledger:write"
)

// Options configures the REST facade. The JWT secret arrives resolved; the
// caller owns reading it from the environment.
type Options struct {
	JWTSecret         string
	Issuer            string
	Audience          string
	RateLimitPerMin   int
	IdempotencyDBPath string
	AuditDBPath       string
	LogRequests       bool
}

// Server exposes the cooperative ledger as authenticated REST routes with
// idempotent writes and a sqlite audit trail.
type Server struct {
	node        *core.Node
	idempotency *IdempotencyStore
	audit       *AuditStore
	auth        *middleware.Authenticator
	limiter     *middleware.RateLimiter
	obs         *middleware.Observability
	nowFn       func() time.Time
}

func New(node *core.Node, opts Options) (*Server, error) {
	if node == nil {
		return nil, errors.New("gateway: node must not be nil")
	}
	if strings.TrimSpace(opts.JWTSecret) == "" {
		return nil, errors.New("gateway: JWT secret must not be empty")
	}
	idemPath := opts.IdempotencyDBPath
	if idemPath == "" {
		idemPath = "gateway-idempotency.db"
	}
	auditPath := opts.AuditDBPath
	if auditPath == "" {
		auditPath = "gateway-audit.db"
	}
	idempotency, err := NewIdempotencyStore(idemPath)
	if err != nil {
		return nil, fmt.Errorf("gateway: open idempotency store: %w", err)
	}
	audit, err := NewAuditStore(auditPath)
	if err != nil {
		_ = idempotency.Close()
		return nil, fmt.Errorf("gateway: open audit store: %w", err)
	}
	return &Server{
		node:        node,
		idempotency: idempotency,
		audit:       audit,
		auth: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    true,
			HMACSecret: opts.JWTSecret,
			Issuer:     opts.Issuer,
			Audience:   opts.Audience,
		}),
		limiter: middleware.NewRateLimiter(opts.RateLimitPerMin),
		obs:     middleware.NewObservability(opts.LogRequests),
		nowFn:   time.Now,
	}, nil
}

// Close releases the sqlite stores.
func (s *Server) Close() error {
	err := s.idempotency.Close()
	if auditErr := s.audit.Close(); err == nil {
		err = auditErr
	}
	return err
}

// Handler builds the route tree. Reads are open; writes require the
// ledger:write scope and an Idempotency-Key header.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.obs.MetricsHandler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.limiter.Middleware())

		v1.Group(func(read chi.Router) {
			read.Use(s.obs.Middleware("read"))
			read.Get("/members", s.handleListMembers)
			read.Get("/members/{address}", s.handleGetMember)
			read.Get("/policy", s.handleGetPolicy)
			read.Get("/treasury", s.handleGetTreasury)
			read.Get("/loans", s.handleListLoans)
			read.Get("/loans/{id}", s.handleGetLoan)
			read.Get("/loan-proposals/{id}", s.handleGetLoanProposal)
			read.Get("/treasury-proposals/{id}", s.handleGetTreasuryProposal)
			read.Get("/rewards/{address}", s.handleGetRewards)
			read.Get("/quotes/loan", s.handleQuoteLoan)
			read.Get("/docs/*", s.handleDocsLookup)
		})

		v1.Group(func(write chi.Router) {
			write.Use(s.auth.Middleware(ScopeLedgerWrite))
			write.Use(s.obs.Middleware("write"))
			write.Post("/members", s.handleRegisterMember)
			write.Post("/members/exit", s.handleExitMember)
			write.Post("/loans", s.handleRequestLoan)
			write.Post("/loan-proposals/{id}/amount", s.handleEditLoanProposal)
			write.Post("/loan-proposals/{id}/votes", s.handleVoteLoan)
			write.Post("/loans/{id}/repayments", s.handleRepayLoan)
			write.Post("/treasury-proposals", s.handleProposeWithdrawal)
			write.Post("/treasury-proposals/{id}/votes", s.handleVoteWithdrawal)
			write.Post("/rewards/claims", s.handleClaimRewards)
			write.Post("/yield/claims", s.handleClaimYield)
			write.Post("/docs", s.handleRegisterDoc)
		})
	})

	return otelhttp.NewHandler(r, "sacco-gateway")
}

// Start blocks serving the facade on addr.
func (s *Server) Start(addr string) error {
	slog.Info("starting gateway", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

// engineStatus maps ledger failures onto REST statuses. Quota and pause
// rejections are shared across modules; the rest follows the cooperative
// error taxonomy plus the docs sentinels routed through this facade.
func engineStatus(err error) int {
	switch {
	case errors.Is(err, nativecommon.ErrQuotaRequestsExceeded),
		errors.Is(err, nativecommon.ErrQuotaValueExceeded),
		errors.Is(err, nativecommon.ErrQuotaCounterOverflow):
		return http.StatusTooManyRequests
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	}
	switch coop.Classify(err) {
	case coop.KindValidation:
		return http.StatusBadRequest
	case coop.KindAuthorization:
		return http.StatusForbidden
	case coop.KindNotFound:
		return http.StatusNotFound
	case coop.KindState, coop.KindResource, coop.KindDuplicate:
		return http.StatusConflict
	}
	switch {
	case errors.Is(err, docs.ErrInvalidEntityID),
		errors.Is(err, docs.ErrInvalidCategory),
		errors.Is(err, docs.ErrInvalidHash),
		errors.Is(err, docs.ErrZeroAddress):
		return http.StatusBadRequest
	case errors.Is(err, docs.ErrDuplicateDocument):
		return http.StatusConflict
	case errors.Is(err, docs.ErrNotAuthorized):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func hashRequest(method, path string, body []byte) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{strings.ToUpper(method), path, string(body)}, "\n")))
	return fmt.Sprintf("%x", sum)
}

// runMutation wraps a write handler with the idempotency replay, audit, and
// error mapping shared by every mutating route. Only successful outcomes are
// cached; failures stay retryable.
func (s *Server) runMutation(w http.ResponseWriter, r *http.Request, perform func(ctx context.Context, body []byte) (int, interface{}, error)) {
	requestID := uuid.NewString()
	w.Header().Set(headerRequestID, requestID)

	body, err := readBody(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	subject := middleware.Subject(r.Context())

	key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if key == "" {
		err := errors.New("missing Idempotency-Key header")
		writeJSONError(w, http.StatusBadRequest, err)
		s.recordAudit(r, requestID, subject, body, http.StatusBadRequest, []byte(`{"error":"missing idempotency key"}`))
		return
	}
	requestHash := hashRequest(r.Method, r.URL.Path, body)

	cached, err := s.idempotency.Lookup(r.Context(), subject, key, requestHash)
	switch {
	case err == nil && cached != nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(cached.Status)
		_, _ = w.Write(cached.Body)
		s.recordAudit(r, requestID, subject, body, cached.Status, cached.Body)
		return
	case errors.Is(err, ErrIdempotencyMismatch):
		writeJSONError(w, http.StatusConflict, err)
		s.recordAudit(r, requestID, subject, body, http.StatusConflict, nil)
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	status, payload, err := perform(r.Context(), body)
	if err != nil {
		status = engineStatus(err)
		response, _ := json.Marshal(errorResponse{Error: err.Error()})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(response)
		s.recordAudit(r, requestID, subject, body, status, response)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.idempotency.Save(r.Context(), subject, key, requestHash, status, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
	s.recordAudit(r, requestID, subject, body, status, response)
}

func (s *Server) recordAudit(r *http.Request, requestID, subject string, requestBody []byte, status int, responseBody []byte) {
	entry := AuditEntry{
		RequestID:      requestID,
		Subject:        subject,
		Method:         r.Method,
		Path:           r.URL.Path,
		RequestBody:    append([]byte(nil), requestBody...),
		ResponseStatus: status,
		ResponseBody:   append([]byte(nil), responseBody...),
		Timestamp:      s.nowFn().UTC(),
	}
	if err := s.audit.Insert(r.Context(), entry); err != nil {
		slog.Warn("gateway audit insert failed", "path", entry.Path, "error", err)
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	limited := io.LimitReader(r.Body, maxRequestBody+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > maxRequestBody {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxRequestBody)
	}
	return data, nil
}

func decodeAddress(value, field string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s is required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr, nil
}

func decodeAmount(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: not a base-10 integer", field)
	}
	return amount, nil
}

func pathID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
