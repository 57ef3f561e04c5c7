// Package hub holds the single choke point every state-changing write
// goes through to advance the control plane's global config version and
// wake the ADS delivery engine (spec.md §4.6): advance the version
// atomically, snapshot the subscriber set under lock, then fire a
// multi-subscriber broadcast with lag detection after unlock.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/flowplane/flowplane/internal/metrics"
)

// Event is broadcast to every subscriber each time the global version
// advances. It carries no resource payload — subscribers (the ADS
// engine's streams) always re-read the repository graph to build a
// fresh snapshot, so a dropped or coalesced event never causes stale
// data, only a slightly delayed push.
type Event struct {
	Version uint64
}

const subscriberBuffer = 8

// Hub owns the atomic global version counter from spec.md §3 ("a single
// process-wide monotonically increasing 64-bit counter; incremented on
// every successful write that changes xDS-visible state") and fans out
// a notification to every subscribed channel on each increment.
type Hub struct {
	version atomic.Uint64

	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func New() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// CurrentVersion returns the global version without blocking on the
// subscriber lock.
func (h *Hub) CurrentVersion() uint64 { return h.version.Load() }

// IncrementAndBroadcast is the single mutation point for the global
// version: every materializer and repository write path that changes
// xDS-visible state calls this exactly once after its transaction
// commits. It never blocks on a slow subscriber — a bounded channel
// with "drop if full" semantics means a lagging ADS stream just resyncs
// from the latest version on its next read rather than stalling every
// writer.
func (h *Hub) IncrementAndBroadcast() uint64 {
	v := h.version.Add(1)
	metrics.GlobalVersion.Set(float64(v))

	h.mu.Lock()
	subs := make([]chan Event, 0, len(h.subscribers))
	for ch := range h.subscribers {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	event := Event{Version: v}
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Subscriber is lagging; it will observe the gap by comparing
			// the version it last saw against CurrentVersion() and resync
			// in full rather than replaying a backlog of events.
		}
	}
	return v
}

// Subscribe registers a new channel that receives an Event on every
// future IncrementAndBroadcast call. Callers must call the returned
// cancel function when done (typically on ADS stream termination) to
// avoid leaking the channel.
func (h *Hub) Subscribe() (ch <-chan Event, cancel func()) {
	c := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[c] = struct{}{}
	h.mu.Unlock()

	return c, func() {
		h.mu.Lock()
		delete(h.subscribers, c)
		h.mu.Unlock()
	}
}
