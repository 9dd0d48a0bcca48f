// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind is the closed taxonomy every provider failure is mapped into.
// Kinds RateLimited, Timeout, and ServiceUnavailable are retriable;
// AuthFailure and BadRequest surface immediately.
type FailureKind string

const (
	AuthFailure        FailureKind = "auth_failure"
	BadRequest         FailureKind = "bad_request"
	RateLimited        FailureKind = "rate_limited"
	Timeout            FailureKind = "timeout"
	ServiceUnavailable FailureKind = "service_unavailable"
)

// ProviderError is the classified form of a provider failure. Message is
// the upstream error text; credentials never appear in it.
type ProviderError struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Retriable reports whether the failure kind is eligible for retry.
func (e *ProviderError) Retriable() bool {
	switch e.Kind {
	case RateLimited, Timeout, ServiceUnavailable:
		return true
	default:
		return false
	}
}

// KindOf extracts the failure kind from err, classifying transport errors
// on the way. Unrecognized errors map to ServiceUnavailable.
func KindOf(err error) FailureKind {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return classifyTransport(err).Kind
}

// IsRetriable reports whether err should be retried under the backoff policy.
func IsRetriable(err error) bool {
	switch KindOf(err) {
	case RateLimited, Timeout, ServiceUnavailable:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(statusCode int) FailureKind {
	switch {
	case statusCode == 401 || statusCode == 403:
		return AuthFailure
	case statusCode == 408:
		return Timeout
	case statusCode == 429:
		return RateLimited
	case statusCode >= 500:
		return ServiceUnavailable
	default:
		// 400, 404, 422, and any other 4xx: the request itself is wrong.
		return BadRequest
	}
}

// newStatusError builds a ProviderError from an HTTP response status and
// the upstream error text.
func newStatusError(statusCode int, message string) *ProviderError {
	return &ProviderError{
		Kind:       classifyStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
	}
}

// classifyTransport wraps a non-HTTP failure (connection refused, DNS,
// deadline) in a ProviderError. Already-classified errors pass through.
func classifyTransport(err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}

	kind := ServiceUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = Timeout
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = Timeout
		}
	}

	return &ProviderError{
		Kind:    kind,
		Message: err.Error(),
		Cause:   err,
	}
}
