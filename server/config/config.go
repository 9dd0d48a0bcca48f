// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDatabaseURL is used when neither the config file nor DATABASE_URL
// provides a DSN.
const DefaultDatabaseURL = "postgres://localhost:5432/arguslm?sslmode=disable"

// secretKeyPlaceholders are values the secret key is rejected for. Shipping
// a default key is worse than refusing to start.
var secretKeyPlaceholders = []string{
	"",
	"your-secret-key-here-change-in-production",
	"dev-secret-key-change-in-production",
}

// Config holds all server configuration. Values come from an optional YAML
// file overridden by environment variables; Validate must pass before the
// server starts listening.
type Config struct {
	Port        string   `yaml:"port"`
	DatabaseURL string   `yaml:"database_url"`
	CORSOrigins []string `yaml:"cors_origins"`

	// EncryptionKey is the base64-encoded AES key for the credential vault.
	// EncryptionKeySecretID, when set, names an AWS Secrets Manager secret
	// the key is fetched from instead.
	EncryptionKey         string `yaml:"encryption_key"`
	EncryptionKeySecretID string `yaml:"encryption_key_secret_id"`
	SecretKey             string `yaml:"secret_key"`

	RedisURL  string `yaml:"redis_url"`
	AWSRegion string `yaml:"aws_region"`

	Archive ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig selects the export archival backend. An empty Backend
// disables archival.
type ArchiveConfig struct {
	Backend    string `yaml:"backend"` // s3 | gcs | azure | fs
	Bucket     string `yaml:"bucket"`
	Container  string `yaml:"container"`
	AccountURL string `yaml:"account_url"`
	Prefix     string `yaml:"prefix"`
	Dir        string `yaml:"dir"`
}

// Load builds the configuration from an optional YAML file at path (skipped
// when path is empty or the file does not exist) and the environment.
// Environment variables always win over file values.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Port:        "8080",
		DatabaseURL: DefaultDatabaseURL,
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else {
			expanded := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		c.CORSOrigins = origins
	}
	if v := os.Getenv("ARGUSLM_ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
	if v := os.Getenv("ARGUSLM_ENCRYPTION_KEY_SECRET_ID"); v != "" {
		c.EncryptionKeySecretID = v
	}
	if v := os.Getenv("ARGUSLM_SECRET_KEY"); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.AWSRegion = v
	}
	if v := os.Getenv("ARCHIVE_BACKEND"); v != "" {
		c.Archive.Backend = v
	}
	if v := os.Getenv("ARCHIVE_BUCKET"); v != "" {
		c.Archive.Bucket = v
	}
	if v := os.Getenv("ARCHIVE_CONTAINER"); v != "" {
		c.Archive.Container = v
	}
	if v := os.Getenv("ARCHIVE_ACCOUNT_URL"); v != "" {
		c.Archive.AccountURL = v
	}
	if v := os.Getenv("ARCHIVE_PREFIX"); v != "" {
		c.Archive.Prefix = v
	}
	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		c.Archive.Dir = v
	}
}

// Validate enforces the startup requirements: a usable encryption key
// (directly or via Secrets Manager) and a non-placeholder secret key.
// The process must exit non-zero when this fails.
func (c *Config) Validate() error {
	if c.EncryptionKeySecretID == "" {
		if c.EncryptionKey == "" {
			return fmt.Errorf("encryption key is required: set ARGUSLM_ENCRYPTION_KEY or ARGUSLM_ENCRYPTION_KEY_SECRET_ID")
		}
		if err := ValidateEncryptionKey(c.EncryptionKey); err != nil {
			return err
		}
	}

	for _, placeholder := range secretKeyPlaceholders {
		if c.SecretKey == placeholder {
			return fmt.Errorf("secret key is missing or still set to a placeholder: set ARGUSLM_SECRET_KEY")
		}
	}

	switch c.Archive.Backend {
	case "", "fs", "s3", "gcs", "azure":
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}

	return nil
}

// ValidateEncryptionKey checks that key is base64 and decodes to at least
// 32 bytes (AES-256).
func ValidateEncryptionKey(key string) error {
	decoded, err := decodeKey(key)
	if err != nil {
		return fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(decoded) < 32 {
		return fmt.Errorf("encryption key must decode to at least 32 bytes, got %d", len(decoded))
	}
	return nil
}

// decodeKey accepts both standard and URL-safe base64 encodings.
func decodeKey(key string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(key); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(key)
}

// DecodeEncryptionKey returns the raw key bytes for the vault.
func (c *Config) DecodeEncryptionKey() ([]byte, error) {
	return decodeKey(c.EncryptionKey)
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} references in file content with the
// environment value; unset variables expand to the empty string.
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
