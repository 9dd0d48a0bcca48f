// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var promWSSubscribers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "arguslm_ws_subscribers",
		Help: "Live progress subscribers currently connected",
	},
)

func init() {
	prometheus.MustRegister(promWSSubscribers)
}

// Event type values carried on the progress bus.
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventComplete = "complete"
	EventError    = "error"
	EventPing     = "ping"
)

// Event is one progress message for a run. Fields absent from a given
// event type stay nil/empty and are omitted from the JSON.
type Event struct {
	Type    string   `json:"type"`
	Status  string   `json:"status,omitempty"`
	ModelID string   `json:"model_id,omitempty"`
	TTFTMS  *float64 `json:"ttft_ms,omitempty"`
	TPS     *float64 `json:"tps,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Terminal reports whether the event ends the run's stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

func progressEvent() Event {
	return Event{Type: EventProgress, Status: StatusRunning}
}

// resultEvent always carries ttft_ms and tps, zeros included, so errored
// tasks are visible on the stream.
func resultEvent(modelID string, ttftMS, tps float64) Event {
	return Event{Type: EventResult, ModelID: modelID, TTFTMS: &ttftMS, TPS: &tps}
}

func completeEvent() Event {
	return Event{Type: EventComplete, Status: StatusCompleted}
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Error: message, Status: StatusFailed}
}

// Bus is the progress fan-out: engines publish on it, stream handlers
// subscribe. Hub is the in-process implementation; Bridge adds cross-
// process delivery over Redis.
type Bus interface {
	Publish(runID string, event Event)
	Subscribe(runID string) *Subscription
	Unsubscribe(sub *Subscription)
}

// subscriberBuffer bounds how far a subscriber may lag before it is
// dropped.
const subscriberBuffer = 64

// Subscription is one registered consumer of a run's events. Its channel
// closes when the run reaches a terminal event, when the subscriber is
// dropped for lagging, or on Unsubscribe.
type Subscription struct {
	runID string
	ch    chan Event
}

// Events returns the ordered event stream.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Hub is the in-process progress bus: per-run subscriber sets under one
// mutex. Events for runs with no subscribers are discarded; the hub is
// not a queue.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a consumer for one run's events.
func (h *Hub) Subscribe(runID string) *Subscription {
	sub := &Subscription{runID: runID, ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[runID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[runID] = set
	}
	set[sub] = struct{}{}
	promWSSubscribers.Inc()
	return sub
}

// Unsubscribe removes a consumer. Safe to call after the hub has already
// dropped the subscription.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(sub)
}

// Publish delivers event to every subscriber of runID. A subscriber whose
// buffer is full is dropped silently. Terminal events close every
// subscription for the run after delivery.
func (h *Hub) Publish(runID string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[runID]
	if set == nil {
		return
	}

	for sub := range set {
		select {
		case sub.ch <- event:
		default:
			h.drop(sub)
		}
	}

	if event.Terminal() {
		for sub := range set {
			h.drop(sub)
		}
	}
}

// SubscriberCount reports how many consumers a run currently has.
func (h *Hub) SubscriberCount(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[runID])
}

// drop removes one subscription and closes its channel. Caller holds the
// lock; repeated drops of the same subscription are no-ops.
func (h *Hub) drop(sub *Subscription) {
	set := h.subs[sub.runID]
	if set == nil {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.runID)
	}
	close(sub.ch)
	promWSSubscribers.Dec()
}
