// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package realtime delivers search progress events and late-arriving
// candidates to subscribers. Topics are query hashes; there is no other
// addressing, so independent callers issuing the identical normalized
// query share one topic naturally.
package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf/pkg/types"
)

// Event types published on a query topic.
const (
	EventStarting        = "starting"
	EventProviderAttempt = "provider_attempt"
	EventProviderSuccess = "provider_success"
	EventProviderFailure = "provider_failure"
	EventCandidates      = "candidates"
	EventComplete        = "complete"
)

// Event is one message on a query topic.
type Event struct {
	Type string `json:"type"`
	Hash string `json:"hash"`

	// Provider and Tier identify which call path an attempt/success/
	// failure event describes.
	Provider string `json:"provider,omitempty"`
	Tier     string `json:"tier,omitempty"`

	// Done marks the provider's stream as finished on success/failure
	// events.
	Done bool `json:"done,omitempty"`

	// Reason carries the failure classification for diagnostics.
	Reason string `json:"reason,omitempty"`

	// Candidates carries the deduplicated delta on candidates events.
	Candidates []types.CandidateResult `json:"candidates,omitempty"`
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls further behind misses events rather than blocking the
// publisher.
const subscriberBuffer = 32

type subscriber struct {
	ch chan Event
}

// Hub is the in-process topic registry. Delivery is best-effort and
// ordered per publisher; there is no replay buffer, so a subscriber
// connecting after events have fired never sees them and must rely on
// the synchronous initial response for baseline state.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]*subscriber
	closed atomic.Bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[string]*subscriber)}
}

// Subscribe registers for events on hash. The returned cancel function
// removes the subscription and closes the event channel; it is safe to
// call more than once.
func (h *Hub) Subscribe(hash string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	id := uuid.NewString()

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	subs := h.topics[hash]
	if subs == nil {
		subs = make(map[string]*subscriber)
		h.topics[hash] = subs
	}
	subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.topics[hash]; ok {
				if _, ok := subs[id]; ok {
					delete(subs, id)
					close(sub.ch)
				}
				if len(subs) == 0 {
					delete(h.topics, hash)
				}
			}
		})
	}
	return sub.ch, cancel
}

// Publish delivers ev to every subscriber of ev.Hash. Publishing is
// fire-and-forget with respect to subscriber presence: a missing topic
// is not an error and a full subscriber buffer drops the event.
func (h *Hub) Publish(ev Event) {
	if h.closed.Load() {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.topics[ev.Hash] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// PublishProgress publishes a progress event on hash.
func (h *Hub) PublishProgress(hash, eventType string, provider types.Source, tier string, done bool, reason string) {
	h.Publish(Event{
		Type:     eventType,
		Hash:     hash,
		Provider: string(provider),
		Tier:     tier,
		Done:     done,
		Reason:   reason,
	})
}

// PublishCandidates publishes an incremental-candidates event on hash.
func (h *Hub) PublishCandidates(hash string, candidates []types.CandidateResult) {
	if len(candidates) == 0 {
		return
	}
	h.Publish(Event{Type: EventCandidates, Hash: hash, Candidates: candidates})
}

// Subscribers reports how many subscribers a topic currently has.
func (h *Hub) Subscribers(hash string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[hash])
}

// Close shuts the hub down and closes every subscriber channel.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.topics {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	h.topics = make(map[string]map[string]*subscriber)
}
