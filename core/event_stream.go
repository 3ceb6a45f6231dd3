package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"saccochain/core/types"
	"saccochain/observability"
)

const eventHistoryLimit = 2048

// EventUpdate pairs a committed ledger event with the fan-out sequence number
// subscribers use to resume after a disconnect.
type EventUpdate struct {
	Sequence uint64
	Cursor   string
	Event    types.Event
}

func cloneEventUpdate(update EventUpdate) EventUpdate {
	cloned := update
	if copied := update.Event.Copy(); copied != nil {
		cloned.Event = *copied
	}
	return cloned
}

// publishEvent stamps the event with the next stream sequence and hands it to
// every subscriber. Slow subscribers drop updates instead of blocking the
// ledger; the bounded history lets them catch up via the cursor.
func (n *Node) publishEvent(event *types.Event) {
	if n == nil || event == nil {
		return
	}
	observability.Events().RecordPublished(event.Type)

	n.eventMu.Lock()
	if n.eventSubs == nil {
		n.eventSubs = make(map[uint64]chan EventUpdate)
	}
	n.eventSeq++
	update := EventUpdate{
		Sequence: n.eventSeq,
		Cursor:   strconv.FormatUint(n.eventSeq, 10),
		Event:    *event,
	}
	n.eventHistory = append(n.eventHistory, cloneEventUpdate(update))
	if len(n.eventHistory) > eventHistoryLimit {
		excess := len(n.eventHistory) - eventHistoryLimit
		trimmed := make([]EventUpdate, eventHistoryLimit)
		copy(trimmed, n.eventHistory[excess:])
		n.eventHistory = trimmed
	}
	subscribers := make([]chan EventUpdate, 0, len(n.eventSubs))
	for _, ch := range n.eventSubs {
		subscribers = append(subscribers, ch)
	}
	n.eventMu.Unlock()

	broadcast := cloneEventUpdate(update)
	for _, ch := range subscribers {
		select {
		case ch <- broadcast:
		default:
		}
	}
}

// SubscribeEvents registers a subscriber for ledger events with sequence
// greater than the supplied cursor. An empty cursor starts from the full
// retained history. The returned backlog replays retained history; the cancel
// func releases the subscription and is safe to call more than once.
func (n *Node) SubscribeEvents(ctx context.Context, cursor string) (<-chan EventUpdate, func(), []EventUpdate, error) {
	if n == nil {
		return nil, nil, nil, fmt.Errorf("node not initialised")
	}

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		parsed, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid event cursor %q", cursor)
		}
		since = parsed
	}
	updates := make(chan EventUpdate, 32)

	n.eventMu.Lock()
	if n.eventSubs == nil {
		n.eventSubs = make(map[uint64]chan EventUpdate)
	}
	id := n.eventNextID
	n.eventNextID++
	n.eventSubs[id] = updates
	history := make([]EventUpdate, len(n.eventHistory))
	copy(history, n.eventHistory)
	n.eventMu.Unlock()

	backlog := make([]EventUpdate, 0, len(history))
	for _, entry := range history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEventUpdate(entry))
		}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.eventMu.Lock()
			sub, ok := n.eventSubs[id]
			if ok {
				delete(n.eventSubs, id)
				close(sub)
			}
			n.eventMu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return updates, cancel, backlog, nil
}
