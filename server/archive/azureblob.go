// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// azureUploader is the subset of the azblob client used by the store
// (enables testing).
type azureUploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureStore archives exports to an Azure Blob Storage container using
// the default credential chain (environment, workload identity, managed
// identity, CLI).
type AzureStore struct {
	client    azureUploader
	container string
	prefix    string
}

// NewAzureStore creates an Azure Blob store for container under the
// storage account at accountURL.
func NewAzureStore(accountURL, container, prefix string) (*AzureStore, error) {
	if accountURL == "" {
		return nil, errors.New("azure archive backend requires an account URL")
	}
	if container == "" {
		return nil, errors.New("azure archive backend requires a container")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Azure credential: %w", err)
	}
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &AzureStore{client: client, container: container, prefix: prefix}, nil
}

// Put uploads body as one blob.
func (s *AzureStore) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.client.UploadBuffer(ctx, s.container, withPrefix(s.prefix, key), body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("failed to archive blob %s: %w", key, err)
	}
	return nil
}
