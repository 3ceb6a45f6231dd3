package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"nhooyr.io/websocket"
)

const (
	defaultDuration = 2 * time.Minute
	defaultRate     = 600 // registrations per minute
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int             `json:"id"`
}

type registerParams struct {
	Caller   string `json:"caller"`
	EntityID string `json:"entityId"`
	Category string `json:"category"`
	Hash     string `json:"hash"`
}

type eventPayload struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type latencyTracker struct {
	mu        sync.Mutex
	pending   map[string]time.Time
	latencies []time.Duration
}

func newLatencyTracker() *latencyTracker {
	return &latencyTracker{pending: make(map[string]time.Time)}
}

func (lt *latencyTracker) track(entityID string, at time.Time) {
	lt.mu.Lock()
	lt.pending[entityID] = at
	lt.mu.Unlock()
}

func (lt *latencyTracker) finalize(entityID string, at time.Time) {
	lt.mu.Lock()
	start, ok := lt.pending[entityID]
	if ok {
		lt.latencies = append(lt.latencies, at.Sub(start))
		delete(lt.pending, entityID)
	}
	lt.mu.Unlock()
}

func (lt *latencyTracker) snapshot() (latencies []time.Duration, pending int) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	latencies = append([]time.Duration(nil), lt.latencies...)
	pending = len(lt.pending)
	return latencies, pending
}

func (lt *latencyTracker) waitForEmpty(ctx context.Context) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		lt.mu.Lock()
		remaining := len(lt.pending)
		lt.mu.Unlock()
		if remaining == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func main() {
	var (
		rpcURL       string
		caller       string
		submitRate   int
		durationFlag time.Duration
		entityPrefix string
	)
	flag.StringVar(&rpcURL, "rpc", "http://127.0.0.1:8080", "RPC endpoint for submitting registrations")
	flag.StringVar(&caller, "caller", "", "bech32 member or admin address used as the registering caller (overrides DOCLOADER_CALLER)")
	flag.IntVar(&submitRate, "rate", defaultRate, "target rate of document registrations per minute")
	flag.DurationVar(&durationFlag, "duration", defaultDuration, "load duration")
	flag.StringVar(&entityPrefix, "entity-prefix", "doc-load", "prefix for generated entity identifiers")
	flag.Parse()

	if caller == "" {
		caller = os.Getenv("DOCLOADER_CALLER")
	}
	caller = strings.TrimSpace(caller)
	if caller == "" {
		log.Fatal("missing caller: provide --caller or DOCLOADER_CALLER")
	}

	token := strings.TrimSpace(os.Getenv("SACCO_RPC_TOKEN"))
	if token == "" {
		log.Fatal("missing SACCO_RPC_TOKEN for RPC authentication")
	}
	parsed, err := url.Parse(rpcURL)
	if err != nil {
		log.Fatalf("parse rpc url: %v", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}

	if submitRate <= 0 {
		log.Fatalf("rate must be positive, got %d", submitRate)
	}
	if durationFlag <= 0 {
		durationFlag = defaultDuration
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	tracker := newLatencyTracker()

	wsURL := *parsed
	switch strings.ToLower(parsed.Scheme) {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws/events"
	wsURL.RawQuery = ""

	wsCtx, wsCancel := context.WithTimeout(ctx, 5*time.Second)
	conn, _, err := websocket.Dial(wsCtx, wsURL.String(), nil)
	wsCancel()
	if err != nil {
		log.Fatalf("connect event stream: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "load complete")

	eventsCtx, eventsCancel := context.WithCancel(ctx)
	defer eventsCancel()
	go consumeEvents(eventsCtx, conn, tracker)

	interval := time.Minute / time.Duration(submitRate)
	if interval <= 0 {
		interval = time.Millisecond
	}
	deadline := time.Now().Add(durationFlag)
	var sequence uint64
	var submitted int
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			log.Printf("context cancelled: %v", ctx.Err())
			return
		default:
		}
		entityID := fmt.Sprintf("%s-%d", entityPrefix, sequence)
		if err := submitRegistration(ctx, httpClient, parsed, token, caller, entityID); err != nil {
			log.Printf("submit registration %d failed: %v", sequence, err)
		} else {
			tracker.track(entityID, time.Now())
			submitted++
		}
		sequence++
		time.Sleep(interval)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer waitCancel()
	if !tracker.waitForEmpty(waitCtx) {
		log.Printf("pending events for %d registrations", trackerPending(tracker))
	}

	eventsCancel()

	latencies, pending := tracker.snapshot()
	reportLoadSummary(latencies, pending, submitted)
}

func submitRegistration(ctx context.Context, client *http.Client, rpcURL *url.URL, token, caller, entityID string) error {
	var digest [32]byte
	if _, err := rand.Read(digest[:]); err != nil {
		return fmt.Errorf("generate hash: %w", err)
	}

	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "docs_register",
		Params: []interface{}{registerParams{
			Caller:   caller,
			EntityID: entityID,
			Category: "loadtest",
			Hash:     "0x" + hex.EncodeToString(digest[:]),
		}},
		ID: 1,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL.String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	return nil
}

func consumeEvents(ctx context.Context, conn *websocket.Conn, tracker *latencyTracker) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var payload eventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Printf("decode event payload: %v", err)
			continue
		}
		if payload.Type != "docs.registered" {
			continue
		}
		if entityID, ok := payload.Attributes["entityId"]; ok {
			tracker.finalize(entityID, time.Now())
		}
	}
}

func trackerPending(t *latencyTracker) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func reportLoadSummary(latencies []time.Duration, pending int, submitted int) {
	var max time.Duration
	var total time.Duration
	for _, latency := range latencies {
		if latency > max {
			max = latency
		}
		total += latency
	}
	avg := time.Duration(0)
	if len(latencies) > 0 {
		avg = time.Duration(int64(total) / int64(len(latencies)))
	}
	log.Printf("Doc loader submitted %d registrations", submitted)
	log.Printf("Observed %d registration events (pending: %d)", len(latencies), pending)
	log.Printf("Latency avg=%s max=%s", avg, max)
}
