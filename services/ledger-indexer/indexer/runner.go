package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"nhooyr.io/websocket"

	"saccochain/observability"
)

// Runner keeps a websocket subscription to the node's event feed alive and
// feeds every frame through the indexer. After a drop it reconnects with
// exponential backoff, resuming from the stored checkpoint so the node
// replays only what the mirror has not applied yet.
type Runner struct {
	indexer    *Indexer
	streamURL  string
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewRunner wires a runner around ix that dials streamURL.
func NewRunner(ix *Indexer, streamURL string, minBackoff, maxBackoff time.Duration) (*Runner, error) {
	if ix == nil {
		return nil, errors.New("indexer: runner requires an indexer")
	}
	if streamURL == "" {
		return nil, errors.New("indexer: runner requires a stream url")
	}
	if minBackoff <= 0 {
		minBackoff = 2 * time.Second
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	return &Runner{indexer: ix, streamURL: streamURL, minBackoff: minBackoff, maxBackoff: maxBackoff}, nil
}

// Run blocks until ctx is cancelled, reconnecting after every stream error.
func (r *Runner) Run(ctx context.Context) error {
	backoff := r.minBackoff
	for {
		applied, err := r.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if applied {
			backoff = r.minBackoff
		}
		observability.Indexer().RecordError("stream")
		slog.Warn("ledger stream dropped", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
}

// consume dials the feed once and applies frames until the connection fails.
// It reports whether at least one frame was applied so Run can reset backoff
// only after real progress.
func (r *Runner) consume(ctx context.Context) (bool, error) {
	cursor, err := r.indexer.Cursor()
	if err != nil {
		return false, err
	}
	target := r.streamURL
	if cursor != "" {
		target = fmt.Sprintf("%s?cursor=%s", r.streamURL, url.QueryEscape(cursor))
	}
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", r.streamURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "indexer stopping")
	slog.Info("ledger stream connected", "url", r.streamURL, "cursor", cursor)

	applied := false
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return applied, err
		}
		if msgType != websocket.MessageText {
			continue
		}
		var frame StreamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			observability.Indexer().RecordError("decode")
			slog.Warn("discarding malformed stream frame", "error", err)
			continue
		}
		if err := r.indexer.Apply(frame); err != nil {
			return applied, err
		}
		applied = true
	}
}
