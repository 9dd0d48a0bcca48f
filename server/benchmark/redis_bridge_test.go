// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestBridge(t *testing.T) (*Bridge, *miniredis.Miniredis, *Hub) {
	t.Helper()
	mr := miniredis.RunT(t)

	hub := NewHub()
	bridge, err := NewBridge(fmt.Sprintf("redis://%s", mr.Addr()), hub, nil)
	if err != nil {
		t.Fatalf("NewBridge failed: %v", err)
	}
	t.Cleanup(bridge.Close)
	return bridge, mr, hub
}

func TestNewBridgeRejectsBadURL(t *testing.T) {
	_, err := NewBridge("not-a-url", NewHub(), nil)
	if err == nil || !strings.Contains(err.Error(), "failed to parse Redis URL") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestNewBridgeUnreachableServer(t *testing.T) {
	_, err := NewBridge("redis://127.0.0.1:1", NewHub(), nil)
	if err == nil || !strings.Contains(err.Error(), "failed to connect to Redis") {
		t.Errorf("expected connect error, got %v", err)
	}
}

func TestBridgeMirrorsPublishesToRedis(t *testing.T) {
	bridge, mr, _ := newTestBridge(t)

	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer raw.Close()

	sub := raw.Subscribe(context.Background(), channelPrefix+"run-1")
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	bridge.Publish("run-1", resultEvent("m1", 123.4, 42.0))

	select {
	case msg := <-sub.Channel():
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			t.Fatalf("failed to decode envelope: %v", err)
		}
		if env.Origin == "" {
			t.Error("envelope missing origin")
		}
		if env.RunID != "run-1" {
			t.Errorf("expected run-1, got %s", env.RunID)
		}
		if env.Event.Type != EventResult {
			t.Errorf("expected result event, got %s", env.Event.Type)
		}
		if env.Event.TTFTMS == nil || *env.Event.TTFTMS != 123.4 {
			t.Errorf("ttft not carried: %v", env.Event.TTFTMS)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("mirrored event never reached Redis")
	}
}

// TestBridgeSkipsOwnEcho verifies a local subscriber sees each published
// event exactly once even though the bridge's own mirror comes back over
// the pattern subscription.
func TestBridgeSkipsOwnEcho(t *testing.T) {
	bridge, _, _ := newTestBridge(t)

	sub := bridge.Subscribe("run-2")
	defer bridge.Unsubscribe(sub)

	bridge.Publish("run-2", progressEvent())

	select {
	case ev := <-sub.Events():
		if ev.Type != EventProgress {
			t.Errorf("expected progress event, got %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("local delivery never happened")
	}

	select {
	case ev := <-sub.Events():
		t.Errorf("own echo was injected back: %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestBridgeInjectsRemoteEvents(t *testing.T) {
	bridge, mr, _ := newTestBridge(t)

	sub := bridge.Subscribe("run-3")
	defer bridge.Unsubscribe(sub)

	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer raw.Close()

	payload, err := json.Marshal(envelope{
		Origin: "another-instance",
		RunID:  "run-3",
		Event:  resultEvent("m2", 88.0, 30.0),
	})
	if err != nil {
		t.Fatalf("failed to encode envelope: %v", err)
	}

	// The bridge's pattern subscription registers asynchronously, so keep
	// republishing until the event lands.
	deadline := time.After(2 * time.Second)
	for {
		raw.Publish(context.Background(), channelPrefix+"run-3", payload)
		select {
		case ev := <-sub.Events():
			if ev.Type != EventResult || ev.ModelID != "m2" {
				t.Errorf("unexpected event: %+v", ev)
			}
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("remote event never reached the local hub")
		}
	}
}

func TestBridgeDropsMalformedEnvelopes(t *testing.T) {
	bridge, mr, _ := newTestBridge(t)

	sub := bridge.Subscribe("run-4")
	defer bridge.Unsubscribe(sub)

	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer raw.Close()

	good, _ := json.Marshal(envelope{Origin: "elsewhere", RunID: "run-4", Event: progressEvent()})

	// Garbage first, then a valid envelope: receiving the valid one proves
	// the listener survived the bad payload.
	deadline := time.After(2 * time.Second)
	for {
		raw.Publish(context.Background(), channelPrefix+"run-4", "{not json")
		raw.Publish(context.Background(), channelPrefix+"run-4", good)
		select {
		case ev := <-sub.Events():
			if ev.Type != EventProgress {
				t.Errorf("unexpected event: %+v", ev)
			}
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("listener did not survive malformed payload")
		}
	}
}

func TestBridgeHealthy(t *testing.T) {
	bridge, mr, _ := newTestBridge(t)

	if !bridge.Healthy(context.Background()) {
		t.Error("expected healthy bridge while Redis is up")
	}

	mr.Close()
	if bridge.Healthy(context.Background()) {
		t.Error("expected unhealthy bridge after Redis shutdown")
	}
}

func TestBridgeSubscribeDelegatesToHub(t *testing.T) {
	bridge, _, hub := newTestBridge(t)

	sub := bridge.Subscribe("run-5")
	if got := hub.SubscriberCount("run-5"); got != 1 {
		t.Errorf("expected 1 subscriber, got %d", got)
	}

	bridge.Unsubscribe(sub)
	if got := hub.SubscriberCount("run-5"); got != 0 {
		t.Errorf("expected 0 subscribers, got %d", got)
	}
}
