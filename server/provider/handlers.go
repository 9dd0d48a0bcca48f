// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler provides HTTP handlers for provider account APIs
type Handler struct {
	service *Service
}

// NewHandler creates a new provider handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers all provider routes with a gorilla/mux router.
// The test-connection route is registered before the {id} routes so the
// literal path wins.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/providers/test-connection", h.TestConnection).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/providers", h.CreateProvider).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/providers", h.ListProviders).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/providers/{id}", h.GetProvider).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/providers/{id}", h.UpdateProvider).Methods("PATCH", "OPTIONS")
	r.HandleFunc("/api/v1/providers/{id}", h.DeleteProvider).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/v1/providers/{id}/test", h.TestProvider).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/providers/{id}/refresh-models", h.RefreshModels).Methods("POST", "OPTIONS")
}

// CreateProvider handles POST /api/v1/providers
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req)
	if err != nil {
		if isValidationError(err) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(account)
}

// ListProviders handles GET /api/v1/providers
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	providers, total, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if providers == nil {
		providers = []AccountResponse{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"providers": providers,
		"total":     total,
	})
}

// GetProvider handles GET /api/v1/providers/{id}
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]
	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			h.writeNotFound(w, id)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(account)
}

// UpdateProvider handles PATCH /api/v1/providers/{id}
// Supports partial updates: display_name, credentials, enabled.
func (h *Handler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			h.writeNotFound(w, id)
			return
		}
		if isValidationError(err) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(account)
}

// DeleteProvider handles DELETE /api/v1/providers/{id}
func (h *Handler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			h.writeNotFound(w, id)
			return
		}
		if errors.Is(err, ErrModelHasHistory) {
			h.writeError(w, "Cannot delete provider with models that have benchmark history", http.StatusConflict)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TestConnection handles POST /api/v1/providers/test-connection
// Probes with not-yet-saved credentials; failures come back in-band.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req TestConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.TestConnection(r.Context(), req)
	if err != nil {
		if isValidationError(err) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// TestProvider handles POST /api/v1/providers/{id}/test
func (h *Handler) TestProvider(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]
	result, err := h.service.TestAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			h.writeNotFound(w, id)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// RefreshModels handles POST /api/v1/providers/{id}/refresh-models
func (h *Handler) RefreshModels(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]
	result, err := h.service.RefreshModels(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			h.writeNotFound(w, id)
			return
		}
		if errors.Is(err, ErrDiscoveryUnsupported) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// Helper functions

// isValidationError reports whether err maps to a 400.
func isValidationError(err error) bool {
	return errors.Is(err, ErrUnknownProviderType) ||
		errors.Is(err, ErrDisplayNameRequired) ||
		errors.Is(err, ErrCredentialsRequired)
}

// setCORSHeaders sets CORS headers on all responses (not just OPTIONS)
func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func (h *Handler) writeNotFound(w http.ResponseWriter, id string) {
	h.writeError(w, fmt.Sprintf("Provider account %s not found", id), http.StatusNotFound)
}

// writeError writes the error envelope: a single detail field, nothing
// else, so internal structure never leaks.
func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": message})
}
