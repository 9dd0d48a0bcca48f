// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package throttle bounds concurrent provider calls at three levels: one
// global ceiling, one per provider account, one per model. Probes and
// benchmark workers acquire all three before touching the network, so a
// burst against one provider cannot starve the rest of the fleet.
package throttle

import (
	"context"
	"fmt"
	"sync"
)

// Default limits applied when a Manager is built with zero-value Limits.
const (
	DefaultGlobalLimit      = 50
	DefaultPerProviderLimit = 10
	DefaultPerModelLimit    = 3
)

// Limits is the concurrency ceiling at each level.
type Limits struct {
	Global      int `json:"global"`
	PerProvider int `json:"per_provider"`
	PerModel    int `json:"per_model"`
}

// DefaultLimits returns the stock profile.
func DefaultLimits() Limits {
	return Limits{
		Global:      DefaultGlobalLimit,
		PerProvider: DefaultPerProviderLimit,
		PerModel:    DefaultPerModelLimit,
	}
}

// Validate rejects non-positive ceilings.
func (l Limits) Validate() error {
	if l.Global <= 0 {
		return fmt.Errorf("global limit must be positive, got %d", l.Global)
	}
	if l.PerProvider <= 0 {
		return fmt.Errorf("per-provider limit must be positive, got %d", l.PerProvider)
	}
	if l.PerModel <= 0 {
		return fmt.Errorf("per-model limit must be positive, got %d", l.PerModel)
	}
	return nil
}

// KeyStats reports one semaphore's ceiling and free slots.
type KeyStats struct {
	Limit     int `json:"limit"`
	Available int `json:"available"`
}

// Stats is a point-in-time snapshot of every semaphore the Manager has
// created so far.
type Stats struct {
	Global    KeyStats            `json:"global"`
	Providers map[string]KeyStats `json:"providers"`
	Models    map[string]KeyStats `json:"models"`
}

// Manager hands out slots from counting semaphores built on buffered
// channels. Provider and model buckets are created lazily on first use.
// Safe for concurrent use.
type Manager struct {
	limits Limits

	mu        sync.Mutex
	global    chan struct{}
	providers map[string]chan struct{}
	models    map[string]chan struct{}
}

// NewManager builds a Manager. Zero-value Limits fields fall back to the
// defaults; explicitly negative values are rejected.
func NewManager(limits Limits) (*Manager, error) {
	if limits.Global == 0 {
		limits.Global = DefaultGlobalLimit
	}
	if limits.PerProvider == 0 {
		limits.PerProvider = DefaultPerProviderLimit
	}
	if limits.PerModel == 0 {
		limits.PerModel = DefaultPerModelLimit
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		limits:    limits,
		global:    make(chan struct{}, limits.Global),
		providers: make(map[string]chan struct{}),
		models:    make(map[string]chan struct{}),
	}, nil
}

// Limits returns the profile the Manager was built with.
func (m *Manager) Limits() Limits {
	return m.limits
}

// bucket returns the semaphore for key, creating it on first use. The
// double check keeps bucket creation race-free without holding the lock
// on the fast path.
func (m *Manager) bucket(table map[string]chan struct{}, key string, limit int) chan struct{} {
	m.mu.Lock()
	sem, ok := table[key]
	if !ok {
		sem = make(chan struct{}, limit)
		table[key] = sem
	}
	m.mu.Unlock()
	return sem
}

// Acquire takes one slot at every level, global first, then provider, then
// model. It blocks until all three are held or ctx is done; on
// cancellation, slots already taken are returned before the error. The
// release function gives the slots back in reverse order and is safe to
// call more than once.
func (m *Manager) Acquire(ctx context.Context, providerKey, modelKey string) (func(), error) {
	m.mu.Lock()
	global := m.global
	m.mu.Unlock()
	provider := m.bucket(m.providers, providerKey, m.limits.PerProvider)
	model := m.bucket(m.models, modelKey, m.limits.PerModel)

	select {
	case global <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case provider <- struct{}{}:
	case <-ctx.Done():
		<-global
		return nil, ctx.Err()
	}
	select {
	case model <- struct{}{}:
	case <-ctx.Done():
		<-provider
		<-global
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-model
			<-provider
			<-global
		})
	}
	return release, nil
}

// Stats snapshots the free-slot count of every semaphore created so far.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		Global: KeyStats{
			Limit:     m.limits.Global,
			Available: m.limits.Global - len(m.global),
		},
		Providers: make(map[string]KeyStats, len(m.providers)),
		Models:    make(map[string]KeyStats, len(m.models)),
	}
	for key, sem := range m.providers {
		stats.Providers[key] = KeyStats{
			Limit:     m.limits.PerProvider,
			Available: m.limits.PerProvider - len(sem),
		}
	}
	for key, sem := range m.models {
		stats.Models[key] = KeyStats{
			Limit:     m.limits.PerModel,
			Available: m.limits.PerModel - len(sem),
		}
	}
	return stats
}

// Reset discards every semaphore and starts fresh. Outstanding holders keep
// references to the old channels, so their releases land harmlessly in the
// discarded buckets. Only call this when no work is expected to be in
// flight, such as between test runs.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global = make(chan struct{}, m.limits.Global)
	m.providers = make(map[string]chan struct{})
	m.models = make(map[string]chan struct{})
}
