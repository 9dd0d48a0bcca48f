// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "")
	require.NoError(t, err)

	body := []byte(`{"run_id":"abc"}`)
	err = store.Put(context.Background(), "benchmarks/abc.json", "application/json", body)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "benchmarks", "abc.json"))
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFSStorePutWithPrefix(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "exports")
	require.NoError(t, err)

	err = store.Put(context.Background(), "uptime/20250115.csv", "text/csv", []byte("a,b\n"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "exports", "uptime", "20250115.csv"))
	assert.NoError(t, err)
}

func TestFSStorePutCancelledContext(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.Put(ctx, "benchmarks/abc.json", "application/json", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFSStoreRequiresDir(t *testing.T) {
	_, err := NewFSStore("", "")
	assert.Error(t, err)
}
