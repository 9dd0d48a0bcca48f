// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
)

// DefaultBedrockRegion applies when the credential bundle carries no region.
const DefaultBedrockRegion = "us-east-1"

// bedrockDefaultMaxTokens applies when the caller sets no limit; Bedrock
// model bodies require an output cap.
const bedrockDefaultMaxTokens = 4096

// inferenceProfilePrefixes are the AWS Bedrock inference profile prefixes
// that may precede the model family in a model id.
var inferenceProfilePrefixes = []string{"eu", "us", "apac", "global"}

// supportedBedrockFamilies are the model families with known request and
// response body shapes.
var supportedBedrockFamilies = []string{"anthropic", "amazon", "meta", "mistral"}

// bedrockRuntime is the subset of the Bedrock runtime client the invoker
// uses (enables testing).
type bedrockRuntime interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// bedrockClient invokes models through AWS Bedrock. Runtime clients are
// built per region and credential set and cached.
type bedrockClient struct {
	mu      sync.Mutex
	clients map[string]bedrockRuntime

	// newRuntime is swapped in tests to avoid real AWS config loading.
	newRuntime func(ctx context.Context, target Target, region string) (bedrockRuntime, error)
}

func newBedrockClient() *bedrockClient {
	return &bedrockClient{
		clients:    make(map[string]bedrockRuntime),
		newRuntime: newBedrockRuntime,
	}
}

// newBedrockRuntime builds an SDK client for the target's region. When the
// credential bundle carries static keys they take precedence over the
// default AWS credential chain.
func newBedrockRuntime(ctx context.Context, target Target, region string) (bedrockRuntime, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	accessKeyID := target.Credentials["access_key_id"]
	secretAccessKey := target.Credentials["secret_access_key"]
	if accessKeyID != "" && secretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			accessKeyID, secretAccessKey, target.Credentials["session_token"])
		optFns = append(optFns, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return bedrockruntime.NewFromConfig(cfg), nil
}

func (c *bedrockClient) runtimeFor(ctx context.Context, target Target) (bedrockRuntime, error) {
	region := target.Region()
	if region == "" {
		region = DefaultBedrockRegion
	}
	cacheKey := region + "|" + target.Credentials["access_key_id"]

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[cacheKey]; ok {
		return client, nil
	}

	client, err := c.newRuntime(ctx, target, region)
	if err != nil {
		return nil, err
	}
	c.clients[cacheKey] = client
	return client, nil
}

// detectBedrockModelFamily extracts the model family from a Bedrock model
// id, skipping an inference profile prefix when present.
func detectBedrockModelFamily(modelID string) string {
	segments := strings.Split(modelID, ".")
	if len(segments) < 2 {
		return ""
	}

	first := segments[0]
	for _, prefix := range inferenceProfilePrefixes {
		if first == prefix {
			return validateBedrockFamily(segments[1])
		}
	}
	return validateBedrockFamily(first)
}

func validateBedrockFamily(family string) string {
	for _, supported := range supportedBedrockFamilies {
		if family == supported {
			return family
		}
	}
	return ""
}

// buildBedrockBody builds the request body for the model's family.
func buildBedrockBody(model, prompt string, opts Options) (map[string]interface{}, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = bedrockDefaultMaxTokens
	}

	switch detectBedrockModelFamily(model) {
	case "anthropic":
		return map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        maxTokens,
			"temperature":       opts.Temperature,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
		}, nil
	case "amazon":
		return map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": maxTokens,
				"temperature":   opts.Temperature,
				"topP":          0.9,
			},
		}, nil
	case "meta":
		return map[string]interface{}{
			"prompt":      prompt,
			"max_gen_len": maxTokens,
			"temperature": opts.Temperature,
			"top_p":       0.9,
		}, nil
	case "mistral":
		return map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  maxTokens,
			"temperature": opts.Temperature,
			"top_p":       0.9,
		}, nil
	default:
		return nil, &ProviderError{
			Kind:    BadRequest,
			Message: fmt.Sprintf("unsupported bedrock model family for model %s", model),
		}
	}
}

func (c *bedrockClient) complete(ctx context.Context, target Target, prompt string, opts Options) (*Completion, error) {
	start := time.Now()

	client, err := c.runtimeFor(ctx, target)
	if err != nil {
		return nil, classifyTransport(err)
	}

	body, err := buildBedrockBody(target.Model, prompt, opts)
	if err != nil {
		return nil, err
	}
	requestJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(target.Model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyBedrockError(err)
	}

	completion, err := parseBedrockBody(output.Body, target.Model)
	if err != nil {
		return nil, err
	}
	completion.Latency = time.Since(start)
	return completion, nil
}

// parseBedrockBody parses a non-streaming response body per model family.
func parseBedrockBody(body []byte, model string) (*Completion, error) {
	switch detectBedrockModelFamily(model) {
	case "anthropic":
		var resp struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			StopReason string `json:"stop_reason"`
			Usage      struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		content := ""
		if len(resp.Content) > 0 {
			content = resp.Content[0].Text
		}
		return &Completion{
			Content:    content,
			Model:      model,
			StopReason: resp.StopReason,
			Usage: Usage{
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
				TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
			},
		}, nil
	case "amazon":
		var resp struct {
			Results []struct {
				OutputText       string `json:"outputText"`
				TokenCount       int    `json:"tokenCount"`
				CompletionReason string `json:"completionReason"`
			} `json:"results"`
			InputTextTokenCount int `json:"inputTextTokenCount"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		content := ""
		outputTokens := 0
		stopReason := ""
		if len(resp.Results) > 0 {
			content = resp.Results[0].OutputText
			outputTokens = resp.Results[0].TokenCount
			stopReason = resp.Results[0].CompletionReason
		}
		return &Completion{
			Content:    content,
			Model:      model,
			StopReason: stopReason,
			Usage: Usage{
				InputTokens:  resp.InputTextTokenCount,
				OutputTokens: outputTokens,
				TotalTokens:  resp.InputTextTokenCount + outputTokens,
			},
		}, nil
	case "meta":
		var resp struct {
			Generation       string `json:"generation"`
			StopReason       string `json:"stop_reason"`
			PromptTokenCount int    `json:"prompt_token_count"`
			GenTokenCount    int    `json:"generation_token_count"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return &Completion{
			Content:    resp.Generation,
			Model:      model,
			StopReason: resp.StopReason,
			Usage: Usage{
				InputTokens:  resp.PromptTokenCount,
				OutputTokens: resp.GenTokenCount,
				TotalTokens:  resp.PromptTokenCount + resp.GenTokenCount,
			},
		}, nil
	case "mistral":
		var resp struct {
			Outputs []struct {
				Text       string `json:"text"`
				StopReason string `json:"stop_reason"`
			} `json:"outputs"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		content := ""
		stopReason := ""
		if len(resp.Outputs) > 0 {
			content = resp.Outputs[0].Text
			stopReason = resp.Outputs[0].StopReason
		}
		// Mistral on Bedrock does not report token counts.
		return &Completion{
			Content:    content,
			Model:      model,
			StopReason: stopReason,
		}, nil
	default:
		return nil, &ProviderError{
			Kind:    BadRequest,
			Message: fmt.Sprintf("unsupported bedrock model family for model %s", model),
		}
	}
}

// bedrockStreamChunk is the union of per-family streaming payloads plus
// the invocation metrics trailer Bedrock appends to the final chunk.
type bedrockStreamChunk struct {
	// anthropic family
	Type  string `json:"type"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	// amazon titan family
	OutputText       string `json:"outputText"`
	CompletionReason string `json:"completionReason"`
	// meta family
	Generation string `json:"generation"`
	StopReason string `json:"stop_reason"`
	// mistral family
	Outputs []struct {
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"outputs"`

	Metrics *struct {
		InputTokenCount  int `json:"inputTokenCount"`
		OutputTokenCount int `json:"outputTokenCount"`
	} `json:"amazon-bedrock-invocationMetrics"`
}

func (c *bedrockClient) completeStream(ctx context.Context, target Target, prompt string, opts Options, handler ChunkHandler) (*Completion, error) {
	start := time.Now()

	client, err := c.runtimeFor(ctx, target)
	if err != nil {
		return nil, classifyTransport(err)
	}

	body, err := buildBedrockBody(target.Model, prompt, opts)
	if err != nil {
		return nil, err
	}
	requestJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(target.Model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyBedrockError(err)
	}

	stream := output.GetStream()
	defer func() {
		_ = stream.Close()
	}()

	family := detectBedrockModelFamily(target.Model)
	var contentBuilder strings.Builder
	var usage Usage
	var stopReason string

	for event := range stream.Events() {
		chunkEvent, ok := event.(*bedrocktypes.ResponseStreamMemberChunk)
		if !ok {
			continue
		}

		var chunk bedrockStreamChunk
		if err := json.Unmarshal(chunkEvent.Value.Bytes, &chunk); err != nil {
			continue // skip malformed events
		}

		text := ""
		switch family {
		case "anthropic":
			if chunk.Type == "content_block_delta" && chunk.Delta != nil && chunk.Delta.Type == "text_delta" {
				text = chunk.Delta.Text
			}
			if chunk.Type == "message_delta" && chunk.Delta != nil && chunk.Delta.StopReason != "" {
				stopReason = chunk.Delta.StopReason
			}
		case "amazon":
			text = chunk.OutputText
			if chunk.CompletionReason != "" {
				stopReason = chunk.CompletionReason
			}
		case "meta":
			text = chunk.Generation
			if chunk.StopReason != "" {
				stopReason = chunk.StopReason
			}
		case "mistral":
			if len(chunk.Outputs) > 0 {
				text = chunk.Outputs[0].Text
				if chunk.Outputs[0].StopReason != "" {
					stopReason = chunk.Outputs[0].StopReason
				}
			}
		}

		if text != "" {
			contentBuilder.WriteString(text)
			if handler != nil {
				if err := handler(Chunk{Content: text}); err != nil {
					return nil, &handlerAbort{err: err}
				}
			}
		}

		if chunk.Metrics != nil {
			usage.InputTokens = chunk.Metrics.InputTokenCount
			usage.OutputTokens = chunk.Metrics.OutputTokenCount
		}
	}

	if err := stream.Err(); err != nil {
		return nil, classifyBedrockError(err)
	}

	if handler != nil {
		if err := handler(Chunk{Done: true}); err != nil {
			return nil, &handlerAbort{err: err}
		}
	}

	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	return &Completion{
		Content:    contentBuilder.String(),
		Model:      target.Model,
		StopReason: stopReason,
		Usage:      usage,
		Latency:    time.Since(start),
	}, nil
}

// classifyBedrockError maps AWS SDK error codes onto the failure taxonomy.
func classifyBedrockError(err error) *ProviderError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		kind := ServiceUnavailable
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			kind = RateLimited
		case "AccessDeniedException", "UnauthorizedException",
			"UnrecognizedClientException", "InvalidSignatureException",
			"ExpiredTokenException":
			kind = AuthFailure
		case "ValidationException", "ResourceNotFoundException":
			kind = BadRequest
		case "ModelTimeoutException":
			kind = Timeout
		}
		return &ProviderError{
			Kind:    kind,
			Message: apiErr.ErrorMessage(),
			Cause:   err,
		}
	}
	return classifyTransport(err)
}
