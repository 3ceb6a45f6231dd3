package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
)

const (
	jsonRPCVersion = "2.0"
	defaultRPCID   = 1
)

// Client wraps a ledger JSON-RPC endpoint and exposes typed helpers for the
// cooperative lifecycle. Read methods work without credentials; mutating
// methods require a bearer token configured via WithAuthToken.
type Client struct {
	endpoint   string
	httpClient *http.Client
	authToken  string
}

// Option configures the client during construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for RPC calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAuthToken sets the bearer token attached to privileged RPC requests.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = strings.TrimSpace(token)
	}
}

// New initialises a client bound to the provided JSON-RPC endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("client: endpoint required")
	}
	c := &Client{
		endpoint:   trimmed,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c, nil
}

// Balance mirrors the sacco_getBalance result.
type Balance struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

// Member mirrors the member view returned by the coop methods. Wei amounts
// stay base-10 strings exactly as they travel on the wire.
type Member struct {
	Address       string `json:"address"`
	Status        string `json:"status"`
	JoinedAt      uint64 `json:"joinedAt"`
	Contribution  string `json:"contribution"`
	ShareBalance  string `json:"shareBalance"`
	HasActiveLoan bool   `json:"hasActiveLoan"`
	LastLoanAt    uint64 `json:"lastLoanAt"`
}

// LoanProposal mirrors the proposal view.
type LoanProposal struct {
	ID              uint64 `json:"id"`
	Borrower        string `json:"borrower"`
	Amount          string `json:"amount"`
	InterestRateBps uint64 `json:"interestRateBps"`
	DurationSeconds uint64 `json:"durationSeconds"`
	TotalRepayment  string `json:"totalRepayment"`
	CreatedAt       uint64 `json:"createdAt"`
	EditingEndsAt   uint64 `json:"editingEndsAt"`
	VotingEndsAt    uint64 `json:"votingEndsAt"`
	Status          string `json:"status"`
	Phase           string `json:"phase"`
	ForVotes        uint64 `json:"forVotes"`
	AgainstVotes    uint64 `json:"againstVotes"`
}

// Loan mirrors the loan view.
type Loan struct {
	ID              uint64 `json:"id"`
	ProposalID      uint64 `json:"proposalId"`
	Borrower        string `json:"borrower"`
	Principal       string `json:"principal"`
	InterestRateBps uint64 `json:"interestRateBps"`
	TotalRepayment  string `json:"totalRepayment"`
	StartedAt       uint64 `json:"startedAt"`
	DueAt           uint64 `json:"dueAt"`
	Status          string `json:"status"`
	AmountRepaid    string `json:"amountRepaid"`
}

// LoanTerms mirrors the coop_quoteLoanTerms result.
type LoanTerms struct {
	Amount          string `json:"amount"`
	InterestRateBps uint64 `json:"interestRateBps"`
	DurationSeconds uint64 `json:"durationSeconds"`
	TotalRepayment  string `json:"totalRepayment"`
}

// RewardBalance mirrors the coop_pendingRewards result.
type RewardBalance struct {
	Interest string `json:"interest"`
	Yield    string `json:"yield"`
}

// RegisterReceipt is the outcome of a membership registration. Refund carries
// any overpayment returned to the caller.
type RegisterReceipt struct {
	Member *Member `json:"member"`
	Refund string  `json:"refund"`
}

// VoteOutcome is the outcome of a loan ballot. Loan is set only on the vote
// that reaches quorum and triggers the disbursement.
type VoteOutcome struct {
	Proposal *LoanProposal `json:"proposal"`
	Loan     *Loan         `json:"loan"`
}

// RepaymentReceipt is the outcome of a loan repayment.
type RepaymentReceipt struct {
	Loan   *Loan  `json:"loan"`
	Refund string `json:"refund"`
}

type registerParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type addressParams struct {
	Address string `json:"address"`
}

type quoteParams struct {
	Amount string `json:"amount"`
}

type requestLoanParams struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
}

type editLoanParams struct {
	Caller     string `json:"caller"`
	ProposalID uint64 `json:"proposalId"`
	Amount     string `json:"amount"`
}

type voteLoanParams struct {
	Caller     string `json:"caller"`
	ProposalID uint64 `json:"proposalId"`
	Support    bool   `json:"support"`
}

type repayLoanParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
	Amount string `json:"amount"`
}

type exitResult struct {
	Payout string `json:"payout"`
}

type claimResult struct {
	Claimed string `json:"claimed"`
}

// Balance fetches the on-ledger account for the given bech32 address.
func (c *Client) Balance(ctx context.Context, address string) (*Balance, error) {
	var resp Balance
	if err := c.call(ctx, "sacco_getBalance", addressParams{Address: address}, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register joins the cooperative, paying the membership contribution from the
// caller's account. Overpayment beyond the policy contribution is refunded.
func (c *Client) Register(ctx context.Context, caller string, amount *big.Int) (*RegisterReceipt, error) {
	if err := requireAmount(amount); err != nil {
		return nil, err
	}
	var resp RegisterReceipt
	if err := c.call(ctx, "coop_register", registerParams{Caller: caller, Amount: amount.String()}, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Exit leaves the cooperative and returns the proportional treasury payout.
func (c *Client) Exit(ctx context.Context, caller string) (*big.Int, error) {
	var resp exitResult
	if err := c.call(ctx, "coop_exit", callerParams{Caller: caller}, true, &resp); err != nil {
		return nil, err
	}
	return parseWei(resp.Payout)
}

// Member fetches a member record.
func (c *Client) Member(ctx context.Context, address string) (*Member, error) {
	var resp Member
	if err := c.call(ctx, "coop_getMember", addressParams{Address: address}, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QuoteLoanTerms prices a principal against the current treasury utilisation
// without creating a proposal.
func (c *Client) QuoteLoanTerms(ctx context.Context, amount *big.Int) (*LoanTerms, error) {
	if err := requireAmount(amount); err != nil {
		return nil, err
	}
	var resp LoanTerms
	if err := c.call(ctx, "coop_quoteLoanTerms", quoteParams{Amount: amount.String()}, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestLoan opens a loan proposal for the borrower at terms locked in from
// the current utilisation.
func (c *Client) RequestLoan(ctx context.Context, borrower string, amount *big.Int) (*LoanProposal, error) {
	if err := requireAmount(amount); err != nil {
		return nil, err
	}
	var resp LoanProposal
	if err := c.call(ctx, "coop_requestLoan", requestLoanParams{Borrower: borrower, Amount: amount.String()}, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EditLoanProposal re-prices a proposal's amount while its editing window is
// still open. Only the borrower may edit.
func (c *Client) EditLoanProposal(ctx context.Context, caller string, proposalID uint64, amount *big.Int) (*LoanProposal, error) {
	if err := requireAmount(amount); err != nil {
		return nil, err
	}
	var resp LoanProposal
	if err := c.call(ctx, "coop_editLoanProposal", editLoanParams{Caller: caller, ProposalID: proposalID, Amount: amount.String()}, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VoteLoan casts a ballot on a loan proposal. When the supporting vote tips
// the proposal over quorum the response carries the disbursed loan.
func (c *Client) VoteLoan(ctx context.Context, voter string, proposalID uint64, support bool) (*VoteOutcome, error) {
	var resp VoteOutcome
	if err := c.call(ctx, "coop_voteLoan", voteLoanParams{Caller: voter, ProposalID: proposalID, Support: support}, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RepayLoan settles a loan. The payment must cover the full obligation; any
// overpayment is refunded in the receipt.
func (c *Client) RepayLoan(ctx context.Context, caller string, loanID uint64, amount *big.Int) (*RepaymentReceipt, error) {
	if err := requireAmount(amount); err != nil {
		return nil, err
	}
	var resp RepaymentReceipt
	if err := c.call(ctx, "coop_repayLoan", repayLoanParams{Caller: caller, LoanID: loanID, Amount: amount.String()}, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PendingRewards fetches the unclaimed interest and yield balances for an
// address.
func (c *Client) PendingRewards(ctx context.Context, address string) (*RewardBalance, error) {
	var resp RewardBalance
	if err := c.call(ctx, "coop_pendingRewards", addressParams{Address: address}, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClaimRewards moves the caller's accrued interest share from the treasury to
// their account and returns the claimed amount.
func (c *Client) ClaimRewards(ctx context.Context, caller string) (*big.Int, error) {
	var resp claimResult
	if err := c.call(ctx, "coop_claimRewards", callerParams{Caller: caller}, true, &resp); err != nil {
		return nil, err
	}
	return parseWei(resp.Claimed)
}

// ClaimYield moves the caller's accrued restaking yield share from the
// treasury to their account and returns the claimed amount.
func (c *Client) ClaimYield(ctx context.Context, caller string) (*big.Int, error) {
	var resp claimResult
	if err := c.call(ctx, "coop_claimYield", callerParams{Caller: caller}, true, &resp); err != nil {
		return nil, err
	}
	return parseWei(resp.Claimed)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call issues one JSON-RPC request. The server expects positional params with
// exactly one entry for parameterised methods, so a non-nil params value is
// wrapped into a single-element array.
func (c *Client) call(ctx context.Context, method string, params interface{}, requireAuth bool, out interface{}) error {
	if requireAuth && c.authToken == "" {
		return fmt.Errorf("client: auth token required for %s", method)
	}
	positional := []interface{}{}
	if params != nil {
		positional = append(positional, params)
	}
	payload := rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      defaultRPCID,
		Method:  method,
		Params:  positional,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("client: encode rpc payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requireAuth {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: rpc call failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("client: read rpc response: %w", err)
	}
	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("client: decode rpc response (status %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("client: rpc error %d: %s", decoded.Error.Code, renderError(decoded.Error))
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("client: decode rpc result: %w", err)
	}
	return nil
}

// renderError appends the server's detail string when one is attached, since
// the message member is a short stable label.
func renderError(e *rpcError) string {
	if len(e.Data) == 0 {
		return e.Message
	}
	var detail string
	if err := json.Unmarshal(e.Data, &detail); err != nil || detail == "" {
		return e.Message
	}
	return e.Message + ": " + detail
}

func requireAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("client: amount must be greater than zero")
	}
	return nil
}

func parseWei(value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("client: malformed wei amount %q", value)
	}
	return parsed, nil
}
