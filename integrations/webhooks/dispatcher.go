package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"saccochain/core"
	"saccochain/core/events"
	"saccochain/observability"
)

// EventType represents the logical webhook topic.
type EventType string

const (
	// EventDistribution is emitted after an interest or yield split posts to
	// member reward balances.
	EventDistribution EventType = "sacco.rewards.distributed"
	// EventLoanDisbursed is emitted when an approved loan leaves the treasury.
	EventLoanDisbursed EventType = "sacco.loan.disbursed"
	// EventTreasuryApproved is emitted when a withdrawal proposal reaches
	// quorum and executes.
	EventTreasuryApproved EventType = "sacco.treasury.approved"

	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
)

// DistributionPayload describes the webhook body for reward distributions.
// Category is "interest" or "yield".
type DistributionPayload struct {
	Type       EventType `json:"type"`
	Category   string    `json:"category"`
	Amount     string    `json:"amount"`
	PerMember  string    `json:"perMember"`
	Recipients uint64    `json:"recipients"`
	PostedAt   time.Time `json:"postedAt"`
	DeliveryID string    `json:"deliveryId"`
}

// LoanDisbursedPayload describes the webhook body for loan disbursements.
type LoanDisbursedPayload struct {
	Type       EventType `json:"type"`
	LoanID     uint64    `json:"loanId"`
	ProposalID uint64    `json:"proposalId"`
	Borrower   string    `json:"borrower"`
	Principal  string    `json:"principal"`
	DueAt      uint64    `json:"dueAt"`
	PostedAt   time.Time `json:"postedAt"`
	DeliveryID string    `json:"deliveryId"`
}

// TreasuryApprovedPayload describes the webhook body for executed withdrawals.
type TreasuryApprovedPayload struct {
	Type        EventType `json:"type"`
	ProposalID  uint64    `json:"proposalId"`
	Amount      string    `json:"amount"`
	Destination string    `json:"destination"`
	PostedAt    time.Time `json:"postedAt"`
	DeliveryID  string    `json:"deliveryId"`
}

// Dispatcher orchestrates webhook deliveries with retry and exponential backoff.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan delivery
	wg     sync.WaitGroup
}

type delivery struct {
	eventType EventType
	body      []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns the worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = string(bytes.TrimSpace([]byte(endpoint)))
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, 32),
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	dispatcher.wg.Add(1)
	go dispatcher.worker()
	return dispatcher, nil
}

// Close stops the dispatcher and waits for inflight deliveries to complete.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
}

// EnqueueDistribution sends a distribution event asynchronously.
func (d *Dispatcher) EnqueueDistribution(payload DistributionPayload) error {
	payload.Type = EventDistribution
	if payload.PostedAt.IsZero() {
		payload.PostedAt = time.Now().UTC()
	}
	if payload.DeliveryID == "" {
		payload.DeliveryID = uuid.NewString()
	}
	return d.enqueue(payload.Type, payload)
}

// EnqueueLoanDisbursed sends a disbursement event asynchronously.
func (d *Dispatcher) EnqueueLoanDisbursed(payload LoanDisbursedPayload) error {
	payload.Type = EventLoanDisbursed
	if payload.PostedAt.IsZero() {
		payload.PostedAt = time.Now().UTC()
	}
	if payload.DeliveryID == "" {
		payload.DeliveryID = uuid.NewString()
	}
	return d.enqueue(payload.Type, payload)
}

// EnqueueTreasuryApproved sends a withdrawal-executed event asynchronously.
func (d *Dispatcher) EnqueueTreasuryApproved(payload TreasuryApprovedPayload) error {
	payload.Type = EventTreasuryApproved
	if payload.PostedAt.IsZero() {
		payload.PostedAt = time.Now().UTC()
	}
	if payload.DeliveryID == "" {
		payload.DeliveryID = uuid.NewString()
	}
	return d.enqueue(payload.Type, payload)
}

// Relay converts a ledger stream update into its webhook. Event types without
// a registered topic are ignored.
func (d *Dispatcher) Relay(update core.EventUpdate) error {
	attrs := update.Event.Attributes
	switch update.Event.Type {
	case events.TypeCoopInterestDistributed:
		return d.EnqueueDistribution(DistributionPayload{
			Category:   "interest",
			Amount:     attrs["amount"],
			PerMember:  attrs["perMember"],
			Recipients: parseUintAttr(attrs["recipients"]),
		})
	case events.TypeCoopYieldDistributed:
		return d.EnqueueDistribution(DistributionPayload{
			Category:   "yield",
			Amount:     attrs["amount"],
			PerMember:  attrs["perMember"],
			Recipients: parseUintAttr(attrs["recipients"]),
		})
	case events.TypeCoopLoanDisbursed:
		return d.EnqueueLoanDisbursed(LoanDisbursedPayload{
			LoanID:     parseUintAttr(attrs["loanId"]),
			ProposalID: parseUintAttr(attrs["proposalId"]),
			Borrower:   attrs["borrower"],
			Principal:  attrs["principal"],
			DueAt:      parseUintAttr(attrs["dueAt"]),
		})
	case events.TypeCoopTreasuryApproved:
		return d.EnqueueTreasuryApproved(TreasuryApprovedPayload{
			ProposalID:  parseUintAttr(attrs["proposalId"]),
			Amount:      attrs["amount"],
			Destination: attrs["destination"],
		})
	}
	return nil
}

func parseUintAttr(value string) uint64 {
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func (d *Dispatcher) enqueue(eventType EventType, body interface{}) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	select {
	case d.queue <- delivery{eventType: eventType, body: data}:
		return nil
	case <-d.ctx.Done():
		return errors.New("webhook: dispatcher closed")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) process(job delivery) {
	attempt := 0
	backoff := d.minBackoff
	for {
		attempt++
		ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
		start := time.Now()
		err := d.send(ctx, job)
		cancel()
		observability.Webhooks().ObserveDelivery(d.endpoint, time.Since(start), err)
		if err == nil {
			return
		}
		if attempt >= d.maxAttempts {
			observability.Webhooks().RecordExhausted(d.endpoint)
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sacco-Event", string(job.eventType))
	req.Header.Set("X-Sacco-Signature", d.sign(job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

func (d *Dispatcher) sign(body []byte) string {
	mac := hmac.New(sha256.New, d.secret)
	_, _ = mac.Write(body)
	sum := mac.Sum(nil)
	return "sha256=" + hex.EncodeToString(sum)
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	if next < current {
		return max
	}
	return next
}
