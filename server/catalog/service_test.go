// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// mockProvider is the parent-account slice of data the mock joins in.
type mockProvider struct {
	providerType         string
	displayName          string
	encryptedCredentials string
}

// MockRepository implements Repository for testing
type MockRepository struct {
	mu sync.RWMutex

	models    map[string]*Model
	order     []string
	providers map[string]mockProvider

	createErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		models:    make(map[string]*Model),
		providers: make(map[string]mockProvider),
	}
}

func (m *MockRepository) Create(ctx context.Context, model *Model) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copied := *model
	m.models[model.ID] = &copied
	m.order = append(m.order, model.ID)
	return nil
}

func (m *MockRepository) Get(ctx context.Context, id string) (*Model, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	model, ok := m.models[id]
	if !ok {
		return nil, ErrModelNotFound
	}
	copied := *model
	copied.ProviderName = m.providerName(model.ProviderAccountID)
	return &copied, nil
}

func (m *MockRepository) List(ctx context.Context, filter ListFilter) ([]Model, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Model
	for _, id := range m.order {
		model := m.models[id]
		if filter.ProviderID != "" && model.ProviderAccountID != filter.ProviderID {
			continue
		}
		if filter.EnabledForMonitoring != nil && model.EnabledForMonitoring != *filter.EnabledForMonitoring {
			continue
		}
		if filter.EnabledForBenchmark != nil && model.EnabledForBenchmark != *filter.EnabledForBenchmark {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			custom := ""
			if model.CustomName != nil {
				custom = strings.ToLower(*model.CustomName)
			}
			if !strings.Contains(strings.ToLower(model.ModelID), needle) && !strings.Contains(custom, needle) {
				continue
			}
		}
		copied := *model
		copied.ProviderName = m.providerName(model.ProviderAccountID)
		matched = append(matched, copied)
	}

	total := len(matched)
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *MockRepository) Update(ctx context.Context, model *Model) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.models[model.ID]; !ok {
		return ErrModelNotFound
	}
	copied := *model
	m.models[model.ID] = &copied
	return nil
}

func (m *MockRepository) ListMonitored(ctx context.Context) ([]ModelWithProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ModelWithProvider
	for _, id := range m.order {
		model := m.models[id]
		if !model.EnabledForMonitoring {
			continue
		}
		out = append(out, m.withProvider(model))
	}
	return out, nil
}

func (m *MockRepository) GetWithProvider(ctx context.Context, ids []string) ([]ModelWithProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []ModelWithProvider
	for _, id := range m.order {
		if !wanted[id] {
			continue
		}
		out = append(out, m.withProvider(m.models[id]))
	}
	return out, nil
}

func (m *MockRepository) providerName(providerID string) string {
	p, ok := m.providers[providerID]
	if !ok {
		return ""
	}
	if p.displayName != "" {
		return p.displayName
	}
	return p.providerType
}

func (m *MockRepository) withProvider(model *Model) ModelWithProvider {
	copied := *model
	copied.ProviderName = m.providerName(model.ProviderAccountID)
	p := m.providers[model.ProviderAccountID]
	return ModelWithProvider{
		Model:                copied,
		ProviderType:         p.providerType,
		EncryptedCredentials: p.encryptedCredentials,
	}
}

func TestCreateModelDefaults(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo)

	model, err := svc.CreateModel(context.Background(), CreateModelRequest{
		ProviderAccountID: "prov-1",
		ModelID:           "my-custom-model_v2",
	})
	if err != nil {
		t.Fatalf("CreateModel failed: %v", err)
	}

	if model.Source != "manual" {
		t.Errorf("source = %q, want manual", model.Source)
	}
	if model.EnabledForMonitoring {
		t.Error("manual models must start monitoring-disabled")
	}
	if !model.EnabledForBenchmark {
		t.Error("manual models must start benchmark-enabled")
	}
	if model.Metadata == nil {
		t.Error("metadata must default to an empty map")
	}
	if model.ID == "" {
		t.Error("expected a generated id")
	}
}

func TestCreateModelValidation(t *testing.T) {
	svc := NewService(NewMockRepository())

	cases := []struct {
		name string
		req  CreateModelRequest
		want error
	}{
		{"missing provider", CreateModelRequest{ModelID: "gpt-4o"}, ErrProviderRequired},
		{"empty model id", CreateModelRequest{ProviderAccountID: "p", ModelID: ""}, ErrInvalidModelID},
		{"spaces", CreateModelRequest{ProviderAccountID: "p", ModelID: "gpt 4o"}, ErrInvalidModelID},
		{"dots", CreateModelRequest{ProviderAccountID: "p", ModelID: "gpt.4o"}, ErrInvalidModelID},
		{"slash", CreateModelRequest{ProviderAccountID: "p", ModelID: "openai/gpt-4o"}, ErrInvalidModelID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateModel(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestListModelsClampsPagination(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo)

	resp, err := svc.ListModels(context.Background(), ListFilter{Limit: 10000, Offset: -3})
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if resp.Limit != maxListLimit {
		t.Errorf("limit = %d, want %d", resp.Limit, maxListLimit)
	}
	if resp.Offset != 0 {
		t.Errorf("offset = %d, want 0", resp.Offset)
	}
	if resp.Items == nil {
		t.Error("items must serialize as an empty array, not null")
	}

	resp, err = svc.ListModels(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if resp.Limit != defaultListLimit {
		t.Errorf("default limit = %d, want %d", resp.Limit, defaultListLimit)
	}
}

func TestListModelsSearch(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo)

	name := "Prod Haiku"
	seed := []Model{
		{ID: "1", ProviderAccountID: "p", ModelID: "gpt-4o"},
		{ID: "2", ProviderAccountID: "p", ModelID: "claude-3-haiku", CustomName: &name},
		{ID: "3", ProviderAccountID: "p", ModelID: "llama3-8b"},
	}
	for i := range seed {
		if err := repo.Create(context.Background(), &seed[i]); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	resp, err := svc.ListModels(context.Background(), ListFilter{Search: "HAIKU"})
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 || resp.Items[0].ID != "2" {
		t.Errorf("search should match model_id and custom_name case-insensitively, got %+v", resp.Items)
	}
}

func TestUpdateModelClearsCustomName(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo)

	name := "Old Name"
	model := &Model{ID: "m1", ProviderAccountID: "p", ModelID: "gpt-4o", CustomName: &name}
	if err := repo.Create(context.Background(), model); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// Absent custom_name leaves the stored value alone.
	monitored := true
	updated, err := svc.UpdateModel(context.Background(), "m1", UpdateModelRequest{
		EnabledForMonitoring: &monitored,
	})
	if err != nil {
		t.Fatalf("UpdateModel failed: %v", err)
	}
	if updated.CustomName == nil || *updated.CustomName != "Old Name" {
		t.Error("absent custom_name must not clear the stored name")
	}
	if !updated.EnabledForMonitoring {
		t.Error("expected monitoring enabled")
	}

	// Explicit null clears it.
	updated, err = svc.UpdateModel(context.Background(), "m1", UpdateModelRequest{
		CustomName: NullableString{Set: true, Value: nil},
	})
	if err != nil {
		t.Fatalf("UpdateModel failed: %v", err)
	}
	if updated.CustomName != nil {
		t.Errorf("explicit null must clear the custom name, got %q", *updated.CustomName)
	}

	// A new value replaces it.
	fresh := "New Name"
	updated, err = svc.UpdateModel(context.Background(), "m1", UpdateModelRequest{
		CustomName: NullableString{Set: true, Value: &fresh},
	})
	if err != nil {
		t.Fatalf("UpdateModel failed: %v", err)
	}
	if updated.CustomName == nil || *updated.CustomName != "New Name" {
		t.Error("expected custom name replaced")
	}
}

func TestUpdateModelNotFound(t *testing.T) {
	svc := NewService(NewMockRepository())

	_, err := svc.UpdateModel(context.Background(), "missing", UpdateModelRequest{})
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestDisplayNamePrefersCustomName(t *testing.T) {
	name := "Friendly"
	model := Model{ModelID: "gpt-4o", CustomName: &name}
	if model.DisplayName() != "Friendly" {
		t.Errorf("DisplayName = %q, want Friendly", model.DisplayName())
	}

	empty := ""
	model.CustomName = &empty
	if model.DisplayName() != "gpt-4o" {
		t.Errorf("DisplayName = %q, want gpt-4o", model.DisplayName())
	}

	model.CustomName = nil
	if model.DisplayName() != "gpt-4o" {
		t.Errorf("DisplayName = %q, want gpt-4o", model.DisplayName())
	}
}
