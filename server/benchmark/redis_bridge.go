// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"arguslm/platform/shared/logger"
)

// channelPrefix namespaces run event channels in Redis.
const channelPrefix = "arguslm:runs:"

// redisConnectTimeout bounds the startup ping.
const redisConnectTimeout = 5 * time.Second

// envelope wraps an event for cross-process delivery. Origin lets each
// instance skip the copies of its own publishes.
type envelope struct {
	Origin string `json:"origin"`
	RunID  string `json:"run_id"`
	Event  Event  `json:"event"`
}

// Bridge extends a Hub across processes: every local publish is mirrored
// to Redis pub/sub, and events published by other instances are injected
// into the local hub. Redis outages degrade to local-only delivery.
type Bridge struct {
	hub    *Hub
	client *redis.Client
	origin string
	log    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sub    *redis.PubSub
	done   chan struct{}
}

// NewBridge connects to Redis and starts the remote-event listener.
func NewBridge(redisURL string, hub *Hub, log *logger.Logger) (*Bridge, error) {
	if log == nil {
		log = logger.New("benchmark")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		hub:    hub,
		client: client,
		origin: uuid.New().String(),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	b.sub = client.PSubscribe(ctx, channelPrefix+"*")
	go b.listen()

	log.Info("Benchmark progress bridge connected to Redis", nil)
	return b, nil
}

// Publish delivers locally, then mirrors the event to Redis. Mirror
// failures are logged and swallowed: remote dashboards miss an event,
// local ones do not.
func (b *Bridge) Publish(runID string, event Event) {
	b.hub.Publish(runID, event)

	payload, err := json.Marshal(envelope{Origin: b.origin, RunID: runID, Event: event})
	if err != nil {
		b.log.ErrorWithErr("Failed to encode progress envelope", err, map[string]interface{}{
			"run_id": runID,
		})
		return
	}

	if err := b.client.Publish(b.ctx, channelPrefix+runID, payload).Err(); err != nil {
		b.log.ErrorWithErr("Failed to mirror progress event to Redis", err, map[string]interface{}{
			"run_id": runID,
		})
	}
}

// Subscribe registers a consumer on the local hub.
func (b *Bridge) Subscribe(runID string) *Subscription {
	return b.hub.Subscribe(runID)
}

// Unsubscribe removes a consumer from the local hub.
func (b *Bridge) Unsubscribe(sub *Subscription) {
	b.hub.Unsubscribe(sub)
}

// Healthy reports whether the Redis connection answers a ping.
func (b *Bridge) Healthy(ctx context.Context) bool {
	return b.client.Ping(ctx).Err() == nil
}

// Close stops the listener and closes the Redis connection.
func (b *Bridge) Close() {
	b.cancel()
	b.sub.Close()
	<-b.done
	b.client.Close()
}

// listen injects events published by other instances into the local hub.
func (b *Bridge) listen() {
	defer close(b.done)

	ch := b.sub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.inject(msg.Payload)
		}
	}
}

// inject decodes one remote envelope and publishes it locally, skipping
// envelopes this instance produced itself.
func (b *Bridge) inject(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("Dropping malformed progress envelope", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if env.Origin == b.origin || env.RunID == "" {
		return
	}

	b.hub.Publish(env.RunID, env.Event)
}
