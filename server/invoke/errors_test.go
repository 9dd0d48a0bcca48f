// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FailureKind
	}{
		{401, AuthFailure},
		{403, AuthFailure},
		{400, BadRequest},
		{404, BadRequest},
		{422, BadRequest},
		{418, BadRequest},
		{408, Timeout},
		{429, RateLimited},
		{500, ServiceUnavailable},
		{502, ServiceUnavailable},
		{503, ServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.want {
				t.Errorf("classifyStatus(%d) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

// timeoutError satisfies net.Error with Timeout() == true.
type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyTransport(t *testing.T) {
	t.Run("deadline exceeded maps to timeout", func(t *testing.T) {
		perr := classifyTransport(fmt.Errorf("request failed: %w", context.DeadlineExceeded))
		if perr.Kind != Timeout {
			t.Errorf("expected Timeout, got %s", perr.Kind)
		}
	})

	t.Run("net timeout maps to timeout", func(t *testing.T) {
		perr := classifyTransport(timeoutError{})
		if perr.Kind != Timeout {
			t.Errorf("expected Timeout, got %s", perr.Kind)
		}
	})

	t.Run("connection failure maps to service unavailable", func(t *testing.T) {
		perr := classifyTransport(errors.New("dial tcp 127.0.0.1:9999: connect: connection refused"))
		if perr.Kind != ServiceUnavailable {
			t.Errorf("expected ServiceUnavailable, got %s", perr.Kind)
		}
	})

	t.Run("classified error passes through", func(t *testing.T) {
		orig := &ProviderError{Kind: RateLimited, StatusCode: 429, Message: "slow down"}
		perr := classifyTransport(fmt.Errorf("wrapped: %w", orig))
		if perr.Kind != RateLimited || perr.StatusCode != 429 {
			t.Errorf("expected original classification preserved, got %+v", perr)
		}
	})
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &ProviderError{Kind: RateLimited}, true},
		{"timeout", &ProviderError{Kind: Timeout}, true},
		{"service unavailable", &ProviderError{Kind: ServiceUnavailable}, true},
		{"auth failure", &ProviderError{Kind: AuthFailure}, false},
		{"bad request", &ProviderError{Kind: BadRequest}, false},
		{"wrapped provider error", fmt.Errorf("call failed: %w", &ProviderError{Kind: RateLimited}), true},
		{"bare transport error", errors.New("connection reset by peer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetriable(tt.err); got != tt.want {
				t.Errorf("IsRetriable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	withStatus := &ProviderError{Kind: RateLimited, StatusCode: 429, Message: "quota exhausted"}
	if withStatus.Error() != "provider error (rate_limited, status 429): quota exhausted" {
		t.Errorf("unexpected error string: %s", withStatus.Error())
	}

	withoutStatus := &ProviderError{Kind: Timeout, Message: "i/o timeout"}
	if withoutStatus.Error() != "provider error (timeout): i/o timeout" {
		t.Errorf("unexpected error string: %s", withoutStatus.Error())
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	perr := &ProviderError{Kind: ServiceUnavailable, Message: "boom", Cause: cause}
	if !errors.Is(perr, cause) {
		t.Error("expected Unwrap to reach the cause")
	}
}
