// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package archive stores served export files in object storage. Exports
// are archived after being delivered to the HTTP caller; a failed Put is
// the caller's to log, never to surface.
package archive

import (
	"context"
	"fmt"
	"strings"

	"arguslm/platform/server/config"
)

// Store archives one export file under a key.
type Store interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// FromConfig builds the store selected by cfg.Backend. An empty backend
// disables archival: the returned store is nil with no error. region is
// used by the S3 backend when set.
func FromConfig(ctx context.Context, cfg config.ArchiveConfig, region string) (Store, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "s3":
		return NewS3Store(ctx, cfg.Bucket, cfg.Prefix, region)
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix)
	case "azure":
		return NewAzureStore(cfg.AccountURL, cfg.Container, cfg.Prefix)
	case "fs":
		return NewFSStore(cfg.Dir, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// withPrefix joins an optional key prefix onto key with single slashes.
func withPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
