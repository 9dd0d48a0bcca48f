// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore archives exports to a Google Cloud Storage bucket. Credentials
// come from Application Default Credentials, or inline JSON via
// GOOGLE_APPLICATION_CREDENTIALS_JSON for environments without a
// credentials file.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a GCS store for bucket.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs archive backend requires a bucket")
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Put uploads body as one object.
func (s *GCSStore) Put(ctx context.Context, key, contentType string, body []byte) error {
	w := s.client.Bucket(s.bucket).Object(withPrefix(s.prefix, key)).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(body); err != nil {
		w.Close()
		return fmt.Errorf("failed to archive object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to archive object %s: %w", key, err)
	}
	return nil
}
