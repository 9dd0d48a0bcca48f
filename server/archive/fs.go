// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore archives exports under a local directory. Useful for
// single-node deployments and for development.
type FSStore struct {
	dir    string
	prefix string
}

// NewFSStore creates a filesystem store rooted at dir.
func NewFSStore(dir, prefix string) (*FSStore, error) {
	if dir == "" {
		return nil, errors.New("fs archive backend requires a directory")
	}
	return &FSStore{dir: dir, prefix: prefix}, nil
}

// Put writes body to <dir>/<prefix>/<key>, creating parent directories as
// needed. The content type has no filesystem representation and is
// ignored.
func (s *FSStore) Put(ctx context.Context, key, contentType string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(s.dir, filepath.FromSlash(withPrefix(s.prefix, key)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}
