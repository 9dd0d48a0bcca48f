// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// vaultKeySize is the AES-256 key length in bytes.
const vaultKeySize = 32

// Vault seals credential bundles for storage. AES-256-GCM with a fresh
// random nonce per encryption; the nonce is prepended to the ciphertext and
// the whole blob is base64-encoded so it fits a text column. The key is
// read-only after process start.
type Vault struct {
	aead cipher.AEAD
}

// NewVault creates a Vault from a raw key. Keys shorter than 32 bytes are
// rejected; longer keys use the first 32 bytes.
func NewVault(key []byte) (*Vault, error) {
	if len(key) < vaultKeySize {
		return nil, fmt.Errorf("encryption key must be at least %d bytes, got %d", vaultKeySize, len(key))
	}

	block, err := aes.NewCipher(key[:vaultKeySize])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals a credential bundle into a storable blob.
func (v *Vault) Encrypt(credentials map[string]string) (string, error) {
	plaintext, err := json.Marshal(credentials)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. A truncated blob, a tampered
// blob, or a blob sealed under a different key all return
// ErrInvalidCiphertext; the caller learns nothing about which.
func (v *Vault) Decrypt(blob string) (map[string]string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	if len(raw) < v.aead.NonceSize() {
		return nil, ErrInvalidCiphertext
	}

	nonce, ciphertext := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	var credentials map[string]string
	if err := json.Unmarshal(plaintext, &credentials); err != nil {
		return nil, ErrInvalidCiphertext
	}

	return credentials, nil
}
