// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"arguslm/platform/server/discovery"
	"arguslm/platform/server/invoke"
)

func setupTestHandler(t *testing.T) (*Handler, *MockRepository, *stubInvoker) {
	t.Helper()
	repo := NewMockRepository()
	invoker := &stubInvoker{completion: &invoke.Completion{Model: "gpt-3.5-turbo-0125"}}
	svc := newTestService(t, repo, invoker)
	return NewHandler(svc), repo, invoker
}

func createTestAccount(t *testing.T, h *Handler) *AccountResponse {
	t.Helper()
	account, err := h.service.CreateAccount(context.Background(), CreateAccountRequest{
		ProviderType: "openai",
		DisplayName:  "Production OpenAI",
		Credentials:  map[string]string{"api_key": "sk-live-secret"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return account
}

func TestRegisterRoutes(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	routes := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/providers/test-connection"},
		{"POST", "/api/v1/providers"},
		{"GET", "/api/v1/providers"},
		{"GET", "/api/v1/providers/some-id"},
		{"PATCH", "/api/v1/providers/some-id"},
		{"DELETE", "/api/v1/providers/some-id"},
		{"POST", "/api/v1/providers/some-id/test"},
		{"POST", "/api/v1/providers/some-id/refresh-models"},
	}

	for _, route := range routes {
		req := httptest.NewRequest(route.method, route.path, nil)
		match := &mux.RouteMatch{}
		if !r.Match(req, match) {
			t.Errorf("route %s %s not registered", route.method, route.path)
		}
	}
}

func TestCreateProviderHandler(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	body := `{"provider_type": "openai", "display_name": "Production", "credentials": {"api_key": "sk-live-secret"}}`
	req := httptest.NewRequest("POST", "/api/v1/providers", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp AccountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.ID == "" || resp.DisplayName != "Production" || !resp.Enabled {
		t.Errorf("unexpected response: %+v", resp)
	}
	if strings.Contains(rr.Body.String(), "sk-live-secret") {
		t.Error("response leaks a credential value")
	}
}

func TestCreateProviderHandlerValidation(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	cases := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"provider_type":`},
		{"unknown provider type", `{"provider_type": "doesnotexist", "display_name": "x", "credentials": {}}`},
		{"blank display name", `{"provider_type": "openai", "display_name": " ", "credentials": {}}`},
		{"missing credentials", `{"provider_type": "openai", "display_name": "x"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/providers", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
			var envelope map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if envelope["detail"] == "" {
				t.Error("error envelope missing detail")
			}
		})
	}
}

func TestListProvidersHandler(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest("GET", "/api/v1/providers", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var empty struct {
		Providers []AccountResponse `json:"providers"`
		Total     int               `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &empty); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if empty.Total != 0 || empty.Providers == nil {
		t.Errorf("expected empty list envelope, got %s", rr.Body.String())
	}

	createTestAccount(t, h)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/providers", nil))

	var listed struct {
		Providers []AccountResponse `json:"providers"`
		Total     int               `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if listed.Total != 1 || len(listed.Providers) != 1 {
		t.Errorf("expected one provider, got %s", rr.Body.String())
	}
}

func TestGetProviderHandler(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	account := createTestAccount(t, h)

	req := httptest.NewRequest("GET", "/api/v1/providers/"+account.ID, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "sk-live-secret") {
		t.Error("response leaks a credential value")
	}
}

func TestGetProviderNotFound(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest("GET", "/api/v1/providers/missing-id", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
	var envelope map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if envelope["detail"] != "Provider account missing-id not found" {
		t.Errorf("unexpected detail: %q", envelope["detail"])
	}
}

func TestUpdateProviderHandler(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	account := createTestAccount(t, h)

	req := httptest.NewRequest("PATCH", "/api/v1/providers/"+account.ID,
		strings.NewReader(`{"enabled": false}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp AccountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Enabled {
		t.Error("expected account disabled")
	}
	if resp.DisplayName != "Production OpenAI" {
		t.Errorf("display name must survive partial update, got %q", resp.DisplayName)
	}
}

func TestUpdateProviderNotFound(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest("PATCH", "/api/v1/providers/missing-id",
		strings.NewReader(`{"enabled": false}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestDeleteProviderHandler(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	account := createTestAccount(t, h)

	req := httptest.NewRequest("DELETE", "/api/v1/providers/"+account.ID, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}
}

func TestDeleteProviderConflict(t *testing.T) {
	h, repo, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	account := createTestAccount(t, h)
	repo.history[account.ID] = true

	req := httptest.NewRequest("DELETE", "/api/v1/providers/"+account.ID, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
	var envelope map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if envelope["detail"] != "Cannot delete provider with models that have benchmark history" {
		t.Errorf("unexpected detail: %q", envelope["detail"])
	}
}

func TestTestConnectionHandler(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	body := `{"provider_type": "openai", "credentials": {"api_key": "sk-candidate"}}`
	req := httptest.NewRequest("POST", "/api/v1/providers/test-connection", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var result ConnectionTestResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got %+v", result)
	}
}

func TestTestConnectionHandlerInBandFailure(t *testing.T) {
	h, _, invoker := setupTestHandler(t)
	invoker.completion = nil
	invoker.err = &invoke.ProviderError{Kind: invoke.AuthFailure, StatusCode: 401, Message: "invalid api key"}
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	body := `{"provider_type": "openai", "credentials": {"api_key": "sk-bad"}}`
	req := httptest.NewRequest("POST", "/api/v1/providers/test-connection", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	// Probe failures are reported in-band, not as HTTP errors.
	if rr.Code != http.StatusOK {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var result ConnectionTestResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if result.Success {
		t.Error("expected in-band failure")
	}
	if result.Details["error_type"] != "auth_failure" {
		t.Errorf("error_type = %v, want auth_failure", result.Details["error_type"])
	}
}

func TestTestConnectionHandlerUnknownKind(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	body := `{"provider_type": "doesnotexist", "credentials": {}}`
	req := httptest.NewRequest("POST", "/api/v1/providers/test-connection", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestTestProviderHandlerNotFound(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest("POST", "/api/v1/providers/missing-id/test", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestRefreshModelsHandler(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	h.service.sourceFor = func(kind string) discovery.Source {
		return &stubSource{descriptors: []discovery.Descriptor{{ID: "gpt-4o"}, {ID: "o1-mini"}}}
	}
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	account := createTestAccount(t, h)

	req := httptest.NewRequest("POST", "/api/v1/providers/"+account.ID+"/refresh-models", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var result RefreshResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !result.Success || result.ModelsDiscovered != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Message != "Discovered 2 models, added 2 new models" {
		t.Errorf("unexpected message: %q", result.Message)
	}
}

func TestRefreshModelsHandlerUnsupported(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	h.service.sourceFor = func(kind string) discovery.Source { return nil }
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	account := createTestAccount(t, h)

	req := httptest.NewRequest("POST", "/api/v1/providers/"+account.ID+"/refresh-models", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestCORSHeadersSet(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest("OPTIONS", "/api/v1/providers", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %v, want %v", rr.Code, http.StatusOK)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}

func TestCreateProviderHandlerTrimsBody(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(CreateAccountRequest{
		ProviderType: "ollama",
		DisplayName:  "  Local Ollama  ",
		Credentials:  map[string]string{"base_url": "http://gpu-box:11434"},
	})
	req := httptest.NewRequest("POST", "/api/v1/providers", &buf)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %v, want %v, body = %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var resp AccountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.DisplayName != "Local Ollama" {
		t.Errorf("expected trimmed display name, got %q", resp.DisplayName)
	}
	if resp.BaseURL == nil || *resp.BaseURL != "http://gpu-box:11434" {
		t.Errorf("expected base_url surfaced, got %v", resp.BaseURL)
	}
}
