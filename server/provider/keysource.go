// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretsManagerAPI is the subset of the AWS Secrets Manager client used to
// fetch the vault key (enables testing).
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// FetchVaultKey retrieves the vault key from AWS Secrets Manager. The
// secret value is either the base64-encoded key itself or a JSON object
// carrying it under "encryption_key". Deployments that keep the key out of
// the environment set ARGUSLM_ENCRYPTION_KEY_SECRET_ID and grant the task
// role secretsmanager:GetSecretValue on it.
func FetchVaultKey(ctx context.Context, secretID, region string) ([]byte, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return fetchVaultKey(ctx, secretsmanager.NewFromConfig(cfg), secretID)
}

func fetchVaultKey(ctx context.Context, client secretsManagerAPI, secretID string) ([]byte, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch encryption key secret %s: %w", maskSecretID(secretID), err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("encryption key secret %s has no string value", maskSecretID(secretID))
	}

	value := *out.SecretString
	var fields map[string]string
	if err := json.Unmarshal([]byte(value), &fields); err == nil {
		if k, ok := fields["encryption_key"]; ok {
			value = k
		}
	}

	key, err := decodeVaultKey(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("encryption key secret %s is not valid base64: %w", maskSecretID(secretID), err)
	}
	if len(key) < vaultKeySize {
		return nil, fmt.Errorf("encryption key secret %s decodes to %d bytes, need at least %d", maskSecretID(secretID), len(key), vaultKeySize)
	}

	return key, nil
}

// decodeVaultKey accepts both standard and URL-safe base64 encodings.
func decodeVaultKey(value string) ([]byte, error) {
	if key, err := base64.StdEncoding.DecodeString(value); err == nil {
		return key, nil
	}
	return base64.URLEncoding.DecodeString(value)
}

// maskSecretID masks the secret id for error messages (last 8 characters).
func maskSecretID(id string) string {
	if len(id) <= 12 {
		return "***"
	}
	return "..." + id[len(id)-8:]
}
