// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"arguslm/platform/shared/logger"
)

// Service implements the model inventory business logic
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new catalog service
func NewService(repo Repository) *Service {
	return NewServiceWithOptions(repo, nil)
}

// NewServiceWithOptions creates a catalog service with explicit dependencies.
func NewServiceWithOptions(repo Repository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.New("catalog")
	}
	return &Service{repo: repo, log: log}
}

// CreateModel registers a manually entered model. Manual models start
// benchmark-enabled and monitoring-disabled, like discovered ones.
func (s *Service) CreateModel(ctx context.Context, req CreateModelRequest) (*Model, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	now := time.Now().UTC()
	model := &Model{
		ID:                   uuid.New().String(),
		ProviderAccountID:    req.ProviderAccountID,
		ModelID:              req.ModelID,
		CustomName:           req.CustomName,
		Source:               "manual",
		EnabledForMonitoring: false,
		EnabledForBenchmark:  true,
		Metadata:             metadata,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Create(ctx, model); err != nil {
		return nil, err
	}

	s.log.Info("Manual model created", map[string]interface{}{
		"model_id":    model.ID,
		"provider_id": model.ProviderAccountID,
		"model_name":  model.ModelID,
	})

	return model, nil
}

// GetModel retrieves a model by ID.
func (s *Service) GetModel(ctx context.Context, id string) (*Model, error) {
	return s.repo.Get(ctx, id)
}

// ListModels retrieves models matching the filter.
func (s *Service) ListModels(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	filter.normalize()

	models, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if models == nil {
		models = []Model{}
	}

	return &ListResponse{
		Items:  models,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// UpdateModel applies a partial update. The provider's model_id is
// immutable; an explicit null clears the custom name.
func (s *Service) UpdateModel(ctx context.Context, id string, req UpdateModelRequest) (*Model, error) {
	model, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CustomName.Set {
		model.CustomName = req.CustomName.Value
	}
	if req.EnabledForMonitoring != nil {
		model.EnabledForMonitoring = *req.EnabledForMonitoring
	}
	if req.EnabledForBenchmark != nil {
		model.EnabledForBenchmark = *req.EnabledForBenchmark
	}

	if err := s.repo.Update(ctx, model); err != nil {
		return nil, err
	}

	s.log.Info("Model updated", map[string]interface{}{
		"model_id":               model.ID,
		"enabled_for_monitoring": model.EnabledForMonitoring,
		"enabled_for_benchmark":  model.EnabledForBenchmark,
	})

	return model, nil
}
