// Package notify fans generation status events out to live subscribers. The
// hub is an owned, injectable registry keyed by dream id: created at process
// start, closed at shutdown, no package-level state.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event types pushed to subscribers.
const (
	EventStatusSnapshot = "status-snapshot"
	EventStoryCompleted = "storyCompleted"
	EventStoryFailed    = "storyFailed"
	EventMusicCompleted = "musicCompleted"
	EventMusicFailed    = "musicFailed"
	EventComicCompleted = "comicCompleted"
	EventComicFailed    = "comicFailed"
)

// Event is one frame delivered to subscribers. Data carries enough for the
// client to render the artifact without a follow-up fetch.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// subscriber channels are buffered; a subscriber that falls this far behind
// is considered dead and gets pruned rather than blocking publishers.
const subscriberBuffer = 16

// Hub is the process-local registry of live subscribers per dream.
type Hub struct {
	logger zerolog.Logger

	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber for the dream and returns its channel.
// The channel is closed by the hub when the subscriber is pruned or the hub
// shuts down; callers must stop reading after Unsubscribe.
func (h *Hub) Subscribe(dreamID string) chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	set, ok := h.subs[dreamID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[dreamID] = set
	}
	set[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber; the registry entry is dropped when the
// last subscriber for a dream leaves.
func (h *Hub) Unsubscribe(dreamID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[dreamID]
	if !ok {
		return
	}
	if _, ok := set[ch]; ok {
		delete(set, ch)
		close(ch)
	}
	if len(set) == 0 {
		delete(h.subs, dreamID)
	}
}

// Publish delivers the event to every current subscriber of the dream.
// Delivery never blocks: a subscriber with a full buffer is dropped from the
// registry and its channel closed.
func (h *Hub) Publish(dreamID, eventType string, data any) {
	event := Event{Type: eventType, Data: data}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[dreamID]
	if !ok {
		return
	}
	for ch := range set {
		select {
		case ch <- event:
		default:
			h.logger.Warn().Str("dream_id", dreamID).Msg("notify: dropping slow subscriber")
			delete(set, ch)
			close(ch)
		}
	}
	if len(set) == 0 {
		delete(h.subs, dreamID)
	}
}

// SubscriberCount reports live subscribers for a dream.
func (h *Hub) SubscriberCount(dreamID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[dreamID])
}

// Close tears the hub down, closing all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for dreamID, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, dreamID)
	}
}
