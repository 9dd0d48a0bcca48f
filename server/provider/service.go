// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"arguslm/platform/server/discovery"
	"arguslm/platform/server/invoke"
	"arguslm/platform/shared/logger"
)

// Service manages provider accounts. Credentials are sealed before they
// reach the repository and decrypted only for probes, discovery, and the
// non-sensitive addressing fields in responses.
type Service struct {
	repo      Repository
	vault     *Vault
	invoker   CompletionClient
	client    invoke.HTTPClient
	sourceFor func(kind string) discovery.Source
	log       *logger.Logger
}

// NewService creates a provider service with default probe clients.
func NewService(repo Repository, vault *Vault, invoker CompletionClient) *Service {
	return NewServiceWithOptions(repo, vault, invoker, nil, nil)
}

// NewServiceWithOptions creates a service with injected probe client and
// logger.
func NewServiceWithOptions(repo Repository, vault *Vault, invoker CompletionClient, client invoke.HTTPClient, log *logger.Logger) *Service {
	if client == nil {
		client = &http.Client{Timeout: connectionTestTimeout}
	}
	if log == nil {
		log = logger.New("provider")
	}
	return &Service{
		repo:      repo,
		vault:     vault,
		invoker:   invoker,
		client:    client,
		sourceFor: discovery.SourceFor,
		log:       log,
	}
}

// CreateAccount validates, seals the credential bundle, and persists a new
// account. New accounts start enabled.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*AccountResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	blob, err := s.vault.Encrypt(req.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credentials: %w", err)
	}

	now := time.Now().UTC()
	account := &Account{
		ID:                   uuid.New().String(),
		ProviderType:         req.ProviderType,
		DisplayName:          strings.TrimSpace(req.DisplayName),
		EncryptedCredentials: blob,
		Enabled:              true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	s.log.Info("Created provider account", map[string]interface{}{
		"provider_id":   account.ID,
		"provider_type": account.ProviderType,
		"display_name":  account.DisplayName,
	})

	return s.response(account), nil
}

// GetAccount returns one account.
func (s *Service) GetAccount(ctx context.Context, id string) (*AccountResponse, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.response(account), nil
}

// ListAccounts returns all accounts, oldest first.
func (s *Service) ListAccounts(ctx context.Context) ([]AccountResponse, int, error) {
	accounts, total, err := s.repo.List(ctx)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, *s.response(&accounts[i]))
	}
	return responses, total, nil
}

// UpdateAccount applies a partial update. A non-nil credentials map
// replaces the stored bundle wholesale.
func (s *Service) UpdateAccount(ctx context.Context, id string, req UpdateAccountRequest) (*AccountResponse, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, ErrDisplayNameRequired
		}
		account.DisplayName = name
	}
	if req.Credentials != nil {
		blob, err := s.vault.Encrypt(req.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to seal credentials: %w", err)
		}
		account.EncryptedCredentials = blob
	}
	if req.Enabled != nil {
		account.Enabled = *req.Enabled
	}

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}

	s.log.Info("Updated provider account", map[string]interface{}{
		"provider_id":         account.ID,
		"credentials_rotated": req.Credentials != nil,
	})

	return s.response(account), nil
}

// DeleteAccount removes an account unless any of its models has benchmark
// history; history must outlive nothing, so deletion is refused instead of
// cascading through recorded results.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	has, err := s.repo.HasBenchmarkHistory(ctx, id)
	if err != nil {
		return err
	}
	if has {
		return ErrModelHasHistory
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info("Deleted provider account", map[string]interface{}{
		"provider_id":  id,
		"display_name": account.DisplayName,
	})
	return nil
}

// TestConnection probes an endpoint with not-yet-saved credentials.
func (s *Service) TestConnection(ctx context.Context, req TestConnectionRequest) (*ConnectionTestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := runConnectionTest(ctx, s.invoker, s.client, req.ProviderType, req.Credentials)
	s.log.Info("Connection test for new provider", map[string]interface{}{
		"provider_type": req.ProviderType,
		"success":       result.Success,
	})
	return result, nil
}

// TestAccount probes a stored account with its sealed credentials.
func (s *Service) TestAccount(ctx context.Context, id string) (*ConnectionTestResult, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	credentials, err := s.vault.Decrypt(account.EncryptedCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal credentials: %w", err)
	}

	result := runConnectionTest(ctx, s.invoker, s.client, account.ProviderType, credentials)
	s.log.Info("Connection test for provider", map[string]interface{}{
		"provider_id":   account.ID,
		"provider_type": account.ProviderType,
		"success":       result.Success,
	})
	return result, nil
}

// RefreshModels runs discovery for an account and registers models it does
// not have yet. Existing rows are left untouched so operator edits
// (custom names, flags) survive refreshes.
func (s *Service) RefreshModels(ctx context.Context, id string) (*RefreshResult, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	src := s.sourceFor(account.ProviderType)
	if src == nil {
		return nil, fmt.Errorf("%w: %s", ErrDiscoveryUnsupported, account.ProviderType)
	}

	credentials, err := s.vault.Decrypt(account.EncryptedCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal credentials: %w", err)
	}

	descriptors, err := src.ListModels(ctx, invoke.Target{
		Kind:        account.ProviderType,
		Credentials: credentials,
	})
	if err != nil {
		return nil, fmt.Errorf("model refresh failed: %w", err)
	}

	existing, err := s.repo.ExistingModelIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	var fresh []DiscoveredModel
	for _, d := range descriptors {
		if d.ID == "" || existing[d.ID] {
			continue
		}
		fresh = append(fresh, DiscoveredModel{ModelID: d.ID, Metadata: d.Metadata})
	}

	added, err := s.repo.InsertDiscoveredModels(ctx, id, fresh)
	if err != nil {
		return nil, err
	}

	s.log.Info("Refreshed models", map[string]interface{}{
		"provider_id":   account.ID,
		"provider_type": account.ProviderType,
		"discovered":    len(descriptors),
		"added":         added,
	})

	return &RefreshResult{
		Success:          true,
		ModelsDiscovered: len(descriptors),
		Message:          fmt.Sprintf("Discovered %d models, added %d new models", len(descriptors), added),
	}, nil
}

// response builds the wire shape for an account without its secrets.
// base_url and region come from the bundle; an unreadable bundle (key
// rotation) degrades to nulls rather than failing the request.
func (s *Service) response(account *Account) *AccountResponse {
	resp := &AccountResponse{
		ID:           account.ID,
		ProviderType: account.ProviderType,
		DisplayName:  account.DisplayName,
		Enabled:      account.Enabled,
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	}

	credentials, err := s.vault.Decrypt(account.EncryptedCredentials)
	if err != nil {
		s.log.Warn("Cannot unseal credentials for response", map[string]interface{}{
			"provider_id": account.ID,
		})
		return resp
	}

	if base := credentials["base_url"]; base != "" {
		resp.BaseURL = &base
	}
	if region := credentials["region"]; region != "" {
		resp.Region = &region
	}
	return resp
}
