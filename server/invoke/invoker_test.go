// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{
		Temperature:     1,
		Timeout:         time.Second,
		MaxRetries:      3,
		RetryDelay:      time.Millisecond,
		RetryMultiplier: 2,
	}
}

func TestInvokerComplete_RetriesThenSucceeds(t *testing.T) {
	mockClient := new(MockHTTPClient)
	inv := NewInvoker(nil)
	inv.SetHTTPClient(mockClient)

	mockClient.On("Do", mock.Anything).Return(jsonResponse(503, `{"error":{"message":"overloaded"}}`), nil).Once()
	mockClient.On("Do", mock.Anything).Return(jsonResponse(503, `{"error":{"message":"overloaded"}}`), nil).Once()
	mockClient.On("Do", mock.Anything).Return(jsonResponse(200, `{
		"model": "gpt-4o",
		"choices": [{"index":0,"message":{"content":"finally"},"finish_reason":"stop"}],
		"usage": {"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}
	}`), nil).Once()

	completion, err := inv.Complete(context.Background(), openAITarget(), "hi", fastOptions())

	require.NoError(t, err)
	assert.Equal(t, "finally", completion.Content)
	mockClient.AssertNumberOfCalls(t, "Do", 3)
}

func TestInvokerComplete_ExhaustsRetries(t *testing.T) {
	mockClient := new(MockHTTPClient)
	inv := NewInvoker(nil)
	inv.SetHTTPClient(mockClient)

	for i := 0; i < 3; i++ {
		mockClient.On("Do", mock.Anything).Return(jsonResponse(429, `{"error":{"message":"rate limit"}}`), nil).Once()
	}

	_, err := inv.Complete(context.Background(), openAITarget(), "hi", fastOptions())

	require.Error(t, err)
	assert.Equal(t, RateLimited, KindOf(err))
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "rate limit", perr.Message)
	mockClient.AssertNumberOfCalls(t, "Do", 3)
}

func TestInvokerComplete_NoRetryOnAuthFailure(t *testing.T) {
	mockClient := new(MockHTTPClient)
	inv := NewInvoker(nil)
	inv.SetHTTPClient(mockClient)

	mockClient.On("Do", mock.Anything).Return(jsonResponse(401, `{"error":{"message":"bad key"}}`), nil).Once()

	_, err := inv.Complete(context.Background(), openAITarget(), "hi", fastOptions())

	require.Error(t, err)
	assert.Equal(t, AuthFailure, KindOf(err))
	mockClient.AssertNumberOfCalls(t, "Do", 1)
}

func TestInvokerComplete_NoRetryOnBadRequest(t *testing.T) {
	mockClient := new(MockHTTPClient)
	inv := NewInvoker(nil)
	inv.SetHTTPClient(mockClient)

	mockClient.On("Do", mock.Anything).Return(jsonResponse(400, `{"error":{"message":"bad params"}}`), nil).Once()

	_, err := inv.Complete(context.Background(), openAITarget(), "hi", fastOptions())

	require.Error(t, err)
	assert.Equal(t, BadRequest, KindOf(err))
	mockClient.AssertNumberOfCalls(t, "Do", 1)
}

func TestInvokerComplete_CancelStopsRetries(t *testing.T) {
	mockClient := new(MockHTTPClient)
	inv := NewInvoker(nil)
	inv.SetHTTPClient(mockClient)

	ctx, cancel := context.WithCancel(context.Background())
	mockClient.On("Do", mock.Anything).Run(func(args mock.Arguments) {
		cancel()
	}).Return(nil, context.Canceled).Once()

	_, err := inv.Complete(ctx, openAITarget(), "hi", fastOptions())

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	mockClient.AssertNumberOfCalls(t, "Do", 1)
}

func TestInvokerCompleteStream_RestartChunkOnRetry(t *testing.T) {
	mockClient := new(MockHTTPClient)
	inv := NewInvoker(nil)
	inv.SetHTTPClient(mockClient)

	streamData := `data: {"id":"1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"Hello"}}]}

data: [DONE]

`
	mockClient.On("Do", mock.Anything).Return(jsonResponse(503, `{"error":{"message":"overloaded"}}`), nil).Once()
	mockClient.On("Do", mock.Anything).Return(jsonResponse(200, streamData), nil).Once()

	type observed struct {
		content string
		restart bool
		done    bool
	}
	var sequence []observed
	handler := func(chunk Chunk) error {
		sequence = append(sequence, observed{chunk.Content, chunk.Restart, chunk.Done})
		return nil
	}

	completion, err := inv.CompleteStream(context.Background(), openAITarget(), "hi", fastOptions(), handler)

	require.NoError(t, err)
	assert.Equal(t, "Hello", completion.Content)
	require.Len(t, sequence, 3)
	assert.True(t, sequence[0].restart, "first delivered chunk must be the restart marker")
	assert.Equal(t, "Hello", sequence[1].content)
	assert.True(t, sequence[2].done)
	mockClient.AssertNumberOfCalls(t, "Do", 2)
}

func TestInvokerCompleteStream_HandlerAbortNotRetried(t *testing.T) {
	mockClient := new(MockHTTPClient)
	inv := NewInvoker(nil)
	inv.SetHTTPClient(mockClient)

	streamData := `data: {"id":"1","choices":[{"index":0,"delta":{"content":"Hello"}}]}

data: [DONE]

`
	mockClient.On("Do", mock.Anything).Return(jsonResponse(200, streamData), nil).Once()

	boom := errors.New("stop consuming")
	_, err := inv.CompleteStream(context.Background(), openAITarget(), "hi", fastOptions(), func(chunk Chunk) error {
		return boom
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	mockClient.AssertNumberOfCalls(t, "Do", 1)
}

func TestInvokerCompleteStream_ExhaustsRetries(t *testing.T) {
	mockClient := new(MockHTTPClient)
	inv := NewInvoker(nil)
	inv.SetHTTPClient(mockClient)

	for i := 0; i < 3; i++ {
		mockClient.On("Do", mock.Anything).Return(jsonResponse(500, `{"error":{"message":"internal"}}`), nil).Once()
	}

	var restarts int
	_, err := inv.CompleteStream(context.Background(), openAITarget(), "hi", fastOptions(), func(chunk Chunk) error {
		if chunk.Restart {
			restarts++
		}
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, ServiceUnavailable, KindOf(err))
	assert.Equal(t, 2, restarts, "one restart marker per retry attempt")
	mockClient.AssertNumberOfCalls(t, "Do", 3)
}

func TestInvokerDispatch(t *testing.T) {
	inv := NewInvoker(nil)

	assert.Same(t, inv.anthropic, inv.clientFor(KindAnthropic).(*anthropicClient))
	assert.Same(t, inv.bedrock, inv.clientFor(KindBedrock).(*bedrockClient))
	assert.Same(t, inv.openai, inv.clientFor(KindOpenAI).(*openAIClient))
	assert.Same(t, inv.openai, inv.clientFor(KindGroq).(*openAIClient))
	assert.Same(t, inv.openai, inv.clientFor(KindLMStudio).(*openAIClient))
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{}.withDefaults()

	assert.Equal(t, 0.0, opts.Temperature, "zero temperature is valid and preserved")
	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.Equal(t, DefaultMaxRetries, opts.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, opts.RetryDelay)
	assert.Equal(t, DefaultRetryMultiplier, opts.RetryMultiplier)

	negative := Options{Temperature: -1}.withDefaults()
	assert.Equal(t, DefaultTemperature, negative.Temperature)
}
