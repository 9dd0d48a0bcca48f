// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func setupTestHandler(t *testing.T) (*mux.Router, *MockRepository) {
	t.Helper()
	repo := NewMockRepository()
	r := mux.NewRouter()
	NewHandler(NewService(repo)).RegisterRoutes(r)
	return r, repo
}

func TestRegisterRoutes(t *testing.T) {
	r, _ := setupTestHandler(t)

	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/alerts/rules"},
		{"POST", "/api/v1/alerts/rules"},
		{"PATCH", "/api/v1/alerts/rules/some-id"},
		{"DELETE", "/api/v1/alerts/rules/some-id"},
		{"GET", "/api/v1/alerts"},
		{"GET", "/api/v1/alerts/unread-count"},
		{"GET", "/api/v1/alerts/recent"},
		{"PATCH", "/api/v1/alerts/some-id/acknowledge"},
	}

	for _, route := range routes {
		req := httptest.NewRequest(route.method, route.path, nil)
		match := &mux.RouteMatch{}
		if !r.Match(req, match) {
			t.Errorf("route %s %s not registered", route.method, route.path)
		}
	}
}

func TestCreateRuleHandler(t *testing.T) {
	r, _ := setupTestHandler(t)

	body := `{"name": "Any down", "rule_type": "any_model_down"}`
	req := httptest.NewRequest("POST", "/api/v1/alerts/rules", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %v, want %v, body = %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var rule Rule
	if err := json.Unmarshal(rr.Body.Bytes(), &rule); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if rule.RuleType != RuleAnyModelDown || !rule.Enabled || !rule.NotifyInApp {
		t.Errorf("unexpected rule: %+v", rule)
	}
}

func TestCreateRuleHandlerCrossFieldValidation(t *testing.T) {
	r, _ := setupTestHandler(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			"specific without target",
			`{"name": "r", "rule_type": "specific_model_down"}`,
			"specific_model_down rule requires target_model_id",
		},
		{
			"everywhere without name",
			`{"name": "r", "rule_type": "model_unavailable_everywhere"}`,
			"model_unavailable_everywhere rule requires target_model_name",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/alerts/rules", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %v, want %v, body = %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
			var envelope map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if envelope["detail"] != tc.want {
				t.Errorf("detail = %q, want %q", envelope["detail"], tc.want)
			}
		})
	}
}

func TestUpdateRuleHandlerNotFound(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("PATCH", "/api/v1/alerts/rules/missing", strings.NewReader(`{"enabled": false}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestDeleteRuleHandler(t *testing.T) {
	r, repo := setupTestHandler(t)
	seedRule(t, repo, Rule{ID: "r1", RuleType: RuleAnyModelDown, Name: "r"})

	req := httptest.NewRequest("DELETE", "/api/v1/alerts/rules/r1", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %v, want %v, body = %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}

	req = httptest.NewRequest("DELETE", "/api/v1/alerts/rules/r1", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %v, want %v", rr.Code, http.StatusNotFound)
	}
}

func TestListAlertsHandlerFilters(t *testing.T) {
	r, repo := setupTestHandler(t)

	rule := seedRule(t, repo, Rule{ID: "r1", RuleType: RuleAnyModelDown, Name: "r"})
	other := seedRule(t, repo, Rule{ID: "r2", RuleType: RuleAnyModelDown, Name: "other"})
	m1 := "m1"
	now := time.Now().UTC()
	seed := []Alert{
		{ID: "a1", RuleID: rule.ID, ModelID: &m1, Message: "Model is down: e", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "a2", RuleID: rule.ID, ModelID: &m1, Message: "Model is down: e", Acknowledged: true, CreatedAt: now.Add(-time.Hour)},
		{ID: "a3", RuleID: other.ID, ModelID: &m1, Message: "Model is down: e", CreatedAt: now},
	}
	for i := range seed {
		if err := repo.CreateAlert(context.Background(), &seed[i]); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	req := httptest.NewRequest("GET", "/api/v1/alerts?rule_id=r1&acknowledged=false", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %v, want %v, body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp ListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "a1" {
		t.Errorf("unexpected items: %+v", resp.Items)
	}
	if resp.UnacknowledgedCount != 2 {
		t.Errorf("unacknowledged_count = %d, want 2", resp.UnacknowledgedCount)
	}

	// since filter keeps only newer rows.
	since := now.Add(-30 * time.Minute).Format(time.RFC3339)
	req = httptest.NewRequest("GET", "/api/v1/alerts?since="+since, nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %v, want %v, body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "a3" {
		t.Errorf("since filter returned %+v", resp.Items)
	}
}

func TestListAlertsHandlerBadSince(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/alerts?since=yesterday", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %v, want %v, body = %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestUnreadCountHandler(t *testing.T) {
	r, repo := setupTestHandler(t)

	rule := seedRule(t, repo, Rule{ID: "r1", RuleType: RuleAnyModelDown, Name: "r"})
	for i, acked := range []bool{false, false, true} {
		if err := repo.CreateAlert(context.Background(), &Alert{
			ID: string(rune('a' + i)), RuleID: rule.ID, Message: "m", Acknowledged: acked, CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	req := httptest.NewRequest("GET", "/api/v1/alerts/unread-count", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %v, want %v, body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp UnreadCountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
}

func TestAcknowledgeHandlerIdempotent(t *testing.T) {
	r, repo := setupTestHandler(t)

	rule := seedRule(t, repo, Rule{ID: "r1", RuleType: RuleAnyModelDown, Name: "r"})
	if err := repo.CreateAlert(context.Background(), &Alert{
		ID: "a1", RuleID: rule.ID, Message: "m", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("PATCH", "/api/v1/alerts/a1/acknowledge", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %v, want %v, body = %s", i+1, rr.Code, http.StatusOK, rr.Body.String())
		}
		var alert Alert
		if err := json.Unmarshal(rr.Body.Bytes(), &alert); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if !alert.Acknowledged {
			t.Errorf("attempt %d: expected acknowledged", i+1)
		}
	}

	req := httptest.NewRequest("PATCH", "/api/v1/alerts/missing/acknowledge", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %v, want %v", rr.Code, http.StatusNotFound)
	}
}
